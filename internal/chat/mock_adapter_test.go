package chat

import (
	"context"
	"testing"
)

func TestMockAdapter_Lifecycle(t *testing.T) {
	m := NewMockAdapter()
	ctx := context.Background()

	if _, err := m.Listen(ctx); err == nil {
		t.Error("Listen before Connect did not fail")
	}
	if err := m.Emit(ctx, Intent{Kind: IntentJoin}); err == nil {
		t.Error("Emit before Connect did not fail")
	}

	if err := m.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	events, err := m.Listen(ctx)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	m.SimulateEvent(Event{Kind: EventMessageReceived, ID: "m1"})
	ev := <-events
	if ev.ID != "m1" {
		t.Errorf("event = %+v", ev)
	}

	if err := m.Emit(ctx, Intent{Kind: IntentSend, ConversationID: "c1", Text: "hi"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	last, ok := m.LastIntent()
	if !ok || last.Text != "hi" {
		t.Errorf("LastIntent = %+v, %v", last, ok)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, open := <-events; open {
		t.Error("event channel still open after Close")
	}
	if err := m.Connect(ctx); err == nil {
		t.Error("Connect after Close did not fail")
	}
}
