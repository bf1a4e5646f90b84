package archive

import (
	"testing"
	"time"

	"github.com/blackfroglabs/shopdesk/internal/chat"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func at(minute int) time.Time {
	return time.Date(2026, 8, 30, 10, minute, 0, 0, time.UTC)
}

func record(t *testing.T, s *Store, conv chat.Conversation, msg chat.Message) {
	t.Helper()
	if err := s.Record(conv, msg); err != nil {
		t.Fatalf("Record(%s): %v", msg.ID, err)
	}
}

func TestStore_RecordAndHistory(t *testing.T) {
	s := newTestStore(t)
	conv := chat.Conversation{ID: "c1", DisplayName: "Visitor #1"}

	record(t, s, conv, chat.Message{ID: "m2", ConversationID: "c1", Sender: chat.SenderOperator, Text: "how can I help?", CreatedAt: at(2)})
	record(t, s, conv, chat.Message{ID: "m1", ConversationID: "c1", Sender: chat.SenderVisitor, Text: "hi", CreatedAt: at(1)})

	msgs, err := s.History("c1", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("History = %d messages, want 2", len(msgs))
	}
	// Ordered by send time, not insertion order.
	if msgs[0].ID != "m1" || msgs[1].ID != "m2" {
		t.Errorf("History order = %s, %s", msgs[0].ID, msgs[1].ID)
	}
	if msgs[0].Delivery != chat.DeliveryConfirmed {
		t.Errorf("Delivery = %q, want confirmed", msgs[0].Delivery)
	}
}

func TestStore_RedeliveredMessageIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	conv := chat.Conversation{ID: "c1"}
	msg := chat.Message{ID: "m1", ConversationID: "c1", Sender: chat.SenderVisitor, Text: "hi", CreatedAt: at(1)}

	record(t, s, conv, msg)
	record(t, s, conv, msg)
	record(t, s, conv, msg)

	msgs, err := s.History("c1", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(msgs) != 1 {
		t.Errorf("History = %d messages, want 1", len(msgs))
	}
}

func TestStore_RecordRequiresMessageID(t *testing.T) {
	s := newTestStore(t)
	err := s.Record(chat.Conversation{ID: "c1"}, chat.Message{ConversationID: "c1", Text: "hi"})
	if err == nil {
		t.Error("missing message id not rejected")
	}
}

func TestStore_ConversationSummaryUpserts(t *testing.T) {
	s := newTestStore(t)

	record(t, s,
		chat.Conversation{ID: "c1", DisplayName: "Visitor #1", LastMessageText: "hi", LastMessageAt: at(1)},
		chat.Message{ID: "m1", ConversationID: "c1", Sender: chat.SenderVisitor, Text: "hi", CreatedAt: at(1)})
	record(t, s,
		chat.Conversation{ID: "c1", DisplayName: "Sam", LastMessageText: "thanks!", LastMessageAt: at(5)},
		chat.Message{ID: "m2", ConversationID: "c1", Sender: chat.SenderVisitor, Text: "thanks!", CreatedAt: at(5)})

	convs, err := s.Conversations()
	if err != nil {
		t.Fatalf("Conversations: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("Conversations = %d, want 1", len(convs))
	}
	if convs[0].DisplayName != "Sam" || convs[0].LastMessageText != "thanks!" {
		t.Errorf("summary = %+v", convs[0])
	}
}

func TestStore_ConversationsOrderedByActivity(t *testing.T) {
	s := newTestStore(t)

	record(t, s,
		chat.Conversation{ID: "c1", LastMessageAt: at(1)},
		chat.Message{ID: "m1", ConversationID: "c1", Text: "old", CreatedAt: at(1)})
	record(t, s,
		chat.Conversation{ID: "c2", LastMessageAt: at(9)},
		chat.Message{ID: "m2", ConversationID: "c2", Text: "new", CreatedAt: at(9)})

	convs, err := s.Conversations()
	if err != nil {
		t.Fatalf("Conversations: %v", err)
	}
	if len(convs) != 2 || convs[0].ID != "c2" {
		t.Errorf("Conversations order = %+v", convs)
	}
}

func TestStore_Search(t *testing.T) {
	s := newTestStore(t)
	conv := chat.Conversation{ID: "c1"}

	record(t, s, conv, chat.Message{ID: "m1", ConversationID: "c1", Text: "my screen is cracked", CreatedAt: at(1)})
	record(t, s, conv, chat.Message{ID: "m2", ConversationID: "c1", Text: "battery drains fast", CreatedAt: at(2)})
	record(t, s, conv, chat.Message{ID: "m3", ConversationID: "c1", Text: "the new screen works great", CreatedAt: at(3)})

	msgs, err := s.Search("screen", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("Search = %d messages, want 2", len(msgs))
	}
	// Newest first.
	if msgs[0].ID != "m3" || msgs[1].ID != "m1" {
		t.Errorf("Search order = %s, %s", msgs[0].ID, msgs[1].ID)
	}

	if _, err := s.Search("   ", 0); err == nil {
		t.Error("blank query not rejected")
	}
}

func TestStore_HistoryLimit(t *testing.T) {
	s := newTestStore(t)
	conv := chat.Conversation{ID: "c1"}
	for i := 0; i < 5; i++ {
		record(t, s, conv, chat.Message{
			ID:             string(rune('a' + i)),
			ConversationID: "c1",
			Text:           "msg",
			CreatedAt:      at(i),
		})
	}

	msgs, err := s.History("c1", 3)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(msgs) != 3 {
		t.Errorf("History = %d messages, want 3", len(msgs))
	}
}
