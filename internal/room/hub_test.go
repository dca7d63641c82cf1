package room

import (
	"context"
	"testing"
)

func TestTextSharedAcrossConns(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	connA, err := hub.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	connB, err := hub.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	connA.Text().Insert(0, "Hello world")
	if got := connB.Text().String(); got != "Hello world" {
		t.Errorf("expected peer to observe insert, got %q", got)
	}
	if got := connB.Text().Len(); got != 11 {
		t.Errorf("expected length 11, got %d", got)
	}

	connB.Text().Delete(5, 6)
	connB.Text().Insert(5, "!")
	if got := connA.Text().String(); got != "Hello!" {
		t.Errorf("expected %q, got %q", "Hello!", got)
	}
}

func TestTextInsertClampsPosition(t *testing.T) {
	hub := NewHub()
	conn, _ := hub.Connect(context.Background())
	text := conn.Text()

	text.Insert(100, "abc")
	text.Insert(-5, "x")
	if got := text.String(); got != "xabc" {
		t.Errorf("expected %q, got %q", "xabc", got)
	}
}

func TestTextUpdateNotifications(t *testing.T) {
	hub := NewHub()
	conn, _ := hub.Connect(context.Background())
	text := conn.Text()

	fired := 0
	cancel := text.OnUpdate(func() { fired++ })

	text.Insert(0, "a")
	text.Delete(0, 1)
	if fired != 2 {
		t.Errorf("expected 2 update callbacks, got %d", fired)
	}

	cancel()
	text.Insert(0, "b")
	if fired != 2 {
		t.Errorf("expected no callback after cancel, got %d", fired)
	}
}

func TestAwarenessStatesAndChangeEvents(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()
	connA, _ := hub.Connect(ctx)
	connB, _ := hub.Connect(ctx)

	fired := 0
	cancel := connB.Awareness().OnChange(func() { fired++ })
	defer cancel()

	connA.Awareness().SetLocalState(UserState{Name: "User-3", Color: "#ffb61e"})
	if fired != 1 {
		t.Fatalf("expected change event, got %d", fired)
	}

	states := connB.Awareness().States()
	if len(states) != 1 {
		t.Fatalf("expected 1 state, got %d", len(states))
	}
	for _, state := range states {
		if state.Name != "User-3" {
			t.Errorf("expected User-3, got %q", state.Name)
		}
	}
}

func TestCloseClearsPresence(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()
	connA, _ := hub.Connect(ctx)
	connB, _ := hub.Connect(ctx)

	connA.Awareness().SetLocalState(UserState{Name: "User-1", Color: "#abc"})

	fired := 0
	cancel := connB.Awareness().OnChange(func() { fired++ })
	defer cancel()

	if err := connA.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if fired != 1 {
		t.Errorf("expected change event on close, got %d", fired)
	}
	if states := connB.Awareness().States(); len(states) != 0 {
		t.Errorf("expected empty presence after close, got %v", states)
	}
}
