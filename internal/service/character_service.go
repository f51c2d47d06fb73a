package service

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"ai-persona-chat/internal/models"
	"ai-persona-chat/pkg/cache"
	"ai-persona-chat/pkg/logger"

	"gorm.io/gorm"
)

// Sentinel errors returned by CharacterService
var (
	ErrCharacterNotFound = errors.New("character not found")
	ErrInvalidCharacter  = errors.New("invalid character")
	ErrNotOwner          = errors.New("not the character owner")
)

// Character field limits
const (
	MaxNameLen   = 50
	MaxPromptLen = 2000
)

// defaultPersonas are seeded once at startup with a NULL owner
var defaultPersonas = []models.Character{
	{Name: "Sage", Prompt: "You are a wise mentor. Offer only concise, actionable advice."},
	{Name: "Buddy", Prompt: "You are a friendly helper. Keep your answers relaxed and kind."},
	{Name: "Galaxy", Prompt: "You are a science fiction expert. Answer creatively but in a practical tone."},
}

// CharacterService handles persona listing, creation and deletion.
// Single character reads go through an in-memory cache because the chat
// path resolves the persona on every send.
type CharacterService struct {
	db    *gorm.DB
	cache *cache.Cache
	log   *logger.Logger
}

// NewCharacterService creates a character service
func NewCharacterService(db *gorm.DB, c *cache.Cache, log *logger.Logger) *CharacterService {
	return &CharacterService{db: db, cache: c, log: log}
}

// SeedDefaults inserts the built-in personas if they are missing
func (s *CharacterService) SeedDefaults(ctx context.Context) error {
	for _, persona := range defaultPersonas {
		var count int64
		err := s.db.WithContext(ctx).Model(&models.Character{}).
			Where("owner_user_id IS NULL AND name = ?", persona.Name).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		record := persona
		if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
			return err
		}
		s.log.Info("Seeded default character", "name", record.Name, "id", record.ID)
	}
	return nil
}

// List returns the defaults plus the user's own characters, newest first
func (s *CharacterService) List(ctx context.Context, userID uint) ([]models.Character, error) {
	var characters []models.Character
	err := s.db.WithContext(ctx).
		Where("owner_user_id IS NULL OR owner_user_id = ?", userID).
		Order("created_at DESC").
		Find(&characters).Error
	if err != nil {
		return nil, err
	}
	return characters, nil
}

// Create stores a new user-owned character. thumbnailPath is the
// already-saved relative path under the uploads dir, or nil.
func (s *CharacterService) Create(ctx context.Context, userID uint, name, prompt string, thumbnailPath *string) (*models.Character, error) {
	if l := utf8.RuneCountInString(name); l < 1 || l > MaxNameLen {
		return nil, fmt.Errorf("%w: name must be 1 to %d characters", ErrInvalidCharacter, MaxNameLen)
	}
	if l := utf8.RuneCountInString(prompt); l < 1 || l > MaxPromptLen {
		return nil, fmt.Errorf("%w: prompt must be 1 to %d characters", ErrInvalidCharacter, MaxPromptLen)
	}

	character := models.Character{
		Name:          name,
		Prompt:        prompt,
		ThumbnailPath: thumbnailPath,
		OwnerUserID:   &userID,
	}
	if err := s.db.WithContext(ctx).Create(&character).Error; err != nil {
		return nil, err
	}

	s.log.Info("Character created", "id", character.ID, "user_id", userID)
	return &character, nil
}

// Get returns a character visible to the user. Characters owned by
// someone else look like they do not exist.
func (s *CharacterService) Get(ctx context.Context, userID, characterID uint) (*models.Character, error) {
	key := fmt.Sprintf("character:%d", characterID)
	if cached, found := s.cache.Get(key); found {
		character := cached.(models.Character)
		if !s.visible(&character, userID) {
			return nil, ErrCharacterNotFound
		}
		return &character, nil
	}

	var character models.Character
	err := s.db.WithContext(ctx).First(&character, characterID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCharacterNotFound
		}
		return nil, err
	}

	s.cache.Set(key, character)

	if !s.visible(&character, userID) {
		return nil, ErrCharacterNotFound
	}
	return &character, nil
}

// Delete removes a user-owned character and its messages. Defaults and
// other users' characters are owned by someone else, which is ErrNotOwner.
// Returns the removed row so the caller can clean up its thumbnail file.
func (s *CharacterService) Delete(ctx context.Context, userID, characterID uint) (*models.Character, error) {
	var character models.Character
	err := s.db.WithContext(ctx).First(&character, characterID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCharacterNotFound
		}
		return nil, err
	}
	if !character.OwnedBy(userID) {
		return nil, ErrNotOwner
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("character_id = ?", characterID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&character).Error
	})
	if err != nil {
		return nil, err
	}

	s.cache.Delete(fmt.Sprintf("character:%d", characterID))
	s.log.Info("Character deleted", "id", characterID, "user_id", userID)
	return &character, nil
}

func (s *CharacterService) visible(c *models.Character, userID uint) bool {
	return c.IsDefault() || c.OwnedBy(userID)
}
