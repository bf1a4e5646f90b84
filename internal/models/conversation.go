package models

import "time"

// ArchivedConversation is the local transcript record of one visitor chat.
type ArchivedConversation struct {
	ID                string `gorm:"primaryKey;size:64"`
	DisplayName       string `gorm:"size:128"`
	LastMessageText   string `gorm:"type:text"`
	LastMessageAt     time.Time
	LastMessageSender string `gorm:"size:16"`
	CreatedAt         time.Time
	UpdatedAt         time.Time

	Messages []ArchivedMessage `gorm:"foreignKey:ConversationID"`
}
