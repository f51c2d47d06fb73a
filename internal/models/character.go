package models

import (
	"time"
)

// Character represents a chat persona. Seeded defaults have a NULL
// owner and are visible to everyone; user-created characters are only
// visible to their owner.
type Character struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"not null" json:"name"`
	Prompt        string    `gorm:"type:text;not null" json:"prompt"`
	ThumbnailPath *string   `json:"-"`
	OwnerUserID   *uint     `gorm:"index" json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsDefault reports whether the character is a seeded default
func (c *Character) IsDefault() bool {
	return c.OwnerUserID == nil
}

// OwnedBy reports whether the character belongs to the given user
func (c *Character) OwnedBy(userID uint) bool {
	return c.OwnerUserID != nil && *c.OwnerUserID == userID
}

// CharacterResponse is the public shape of a character
type CharacterResponse struct {
	ID           uint    `json:"id"`
	Name         string  `json:"name"`
	Prompt       string  `json:"prompt"`
	ThumbnailURL *string `json:"thumbnail_url"`
	Owned        bool    `json:"owned"`
}

// ToResponse converts a Character to its public shape for the given
// viewer. Thumbnails are served from the uploads route.
func (c *Character) ToResponse(viewerID uint) CharacterResponse {
	var url *string
	if c.ThumbnailPath != nil {
		u := "/uploads/" + *c.ThumbnailPath
		url = &u
	}
	return CharacterResponse{
		ID:           c.ID,
		Name:         c.Name,
		Prompt:       c.Prompt,
		ThumbnailURL: url,
		Owned:        c.OwnedBy(viewerID),
	}
}
