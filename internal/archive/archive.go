// Package archive implements the local transcript archive: every
// confirmed chat message is mirrored into a SQLite database so past
// conversations survive restarts and can be searched offline.
package archive

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/blackfroglabs/shopdesk/internal/chat"
	"github.com/blackfroglabs/shopdesk/internal/models"
)

// DefaultHistoryLimit bounds History results when no limit is given.
const DefaultHistoryLimit = 200

// Open opens (or creates) the archive database at path and migrates the
// schema. Use ":memory:" for tests.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&models.ArchivedConversation{}, &models.ArchivedMessage{}); err != nil {
		return nil, fmt.Errorf("archive: auto-migrate: %w", err)
	}
	return db, nil
}

// Store is the transcript archive. It implements the desk engine's
// Archiver interface.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store over an opened archive database.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("archive: store: db is required")
	}
	return &Store{db: db}, nil
}

// Record mirrors a confirmed message into the archive. The conversation
// summary is upserted alongside it; a redelivered message ID is a no-op.
func (s *Store) Record(conv chat.Conversation, msg chat.Message) error {
	if msg.ID == "" {
		return fmt.Errorf("archive: record: message id is required")
	}
	if conv.ID == "" {
		conv.ID = msg.ConversationID
	}

	row := models.ArchivedConversation{
		ID:                conv.ID,
		DisplayName:       conv.DisplayName,
		LastMessageText:   conv.LastMessageText,
		LastMessageAt:     conv.LastMessageAt,
		LastMessageSender: string(conv.LastMessageSender),
	}
	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "last_message_text", "last_message_at", "last_message_sender", "updated_at"}),
	}).Create(&row)
	if result.Error != nil {
		return fmt.Errorf("archive: upsert conversation %s: %w", conv.ID, result.Error)
	}

	entry := models.ArchivedMessage{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Sender:         string(msg.Sender),
		Text:           msg.Text,
		SentAt:         msg.CreatedAt,
		ArchivedAt:     time.Now(),
	}
	result = s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
	if result.Error != nil {
		return fmt.Errorf("archive: insert message %s: %w", msg.ID, result.Error)
	}
	return nil
}

// History returns the archived messages for a conversation in send order.
func (s *Store) History(conversationID string, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	var rows []models.ArchivedMessage
	err := s.db.
		Where("conversation_id = ?", conversationID).
		Order("sent_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("archive: history %s: %w", conversationID, err)
	}
	return toMessages(rows), nil
}

// Search returns archived messages whose text contains the query,
// newest first.
func (s *Store) Search(query string, limit int) ([]chat.Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("archive: search: query is required")
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	var rows []models.ArchivedMessage
	err := s.db.
		Where("text LIKE ?", "%"+query+"%").
		Order("sent_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("archive: search %q: %w", query, err)
	}
	return toMessages(rows), nil
}

// Conversations returns the archived conversation summaries, most
// recently active first.
func (s *Store) Conversations() ([]chat.Conversation, error) {
	var rows []models.ArchivedConversation
	if err := s.db.Order("last_message_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("archive: conversations: %w", err)
	}
	out := make([]chat.Conversation, len(rows))
	for i, r := range rows {
		out[i] = chat.Conversation{
			ID:                r.ID,
			DisplayName:       r.DisplayName,
			LastMessageText:   r.LastMessageText,
			LastMessageAt:     r.LastMessageAt,
			LastMessageSender: chat.Sender(r.LastMessageSender),
		}
	}
	return out, nil
}

func toMessages(rows []models.ArchivedMessage) []chat.Message {
	out := make([]chat.Message, len(rows))
	for i, r := range rows {
		out[i] = chat.Message{
			ID:             r.ID,
			ConversationID: r.ConversationID,
			Sender:         chat.Sender(r.Sender),
			Text:           r.Text,
			CreatedAt:      r.SentAt,
			Delivery:       chat.DeliveryConfirmed,
		}
	}
	return out
}
