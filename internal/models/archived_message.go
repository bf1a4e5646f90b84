package models

import "time"

// ArchivedMessage is one confirmed chat message in the local transcript
// archive. The primary key is the server-assigned message ID, which makes
// redelivered events idempotent at the storage layer too.
type ArchivedMessage struct {
	ID             string    `gorm:"primaryKey;size:64"`
	ConversationID string    `gorm:"size:64;index"`
	Sender         string    `gorm:"size:16"`
	Text           string    `gorm:"type:text"`
	SentAt         time.Time `gorm:"index"`
	ArchivedAt     time.Time
}
