package models

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation. CreatedAt is epoch
// milliseconds and doubles as the pagination cursor. CharacterID is
// NULL for persona-less chats, which are stored but never listed.
type Message struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CharacterID *uint     `gorm:"index:idx_messages_history" json:"-"`
	Character   Character `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	UserID      uint      `gorm:"index:idx_messages_history" json:"-"`
	Role        string    `gorm:"not null" json:"role"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	CreatedAt   int64     `gorm:"autoCreateTime:milli;index:idx_messages_history" json:"created_at"`
}
