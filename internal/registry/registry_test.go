package registry

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRegistry(t *testing.T, sessionID string) (*Registry, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewWithClient(client, sessionID), s
}

func TestRegisterSelfIsIdempotent(t *testing.T) {
	reg, _ := setupTestRegistry(t, "session-a")
	ctx := context.Background()

	if err := reg.RegisterSelf(ctx); err != nil {
		t.Fatalf("RegisterSelf failed: %v", err)
	}
	if err := reg.RegisterSelf(ctx); err != nil {
		t.Fatalf("second RegisterSelf failed: %v", err)
	}

	ids, err := reg.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "session-a" {
		t.Errorf("expected [session-a], got %v", ids)
	}
}

func TestIsLeaderPicksLexicographicMax(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()
	ctx := context.Background()

	ids := []string{"session-b", "session-a", "session-c"}
	registries := make([]*Registry, 0, len(ids))
	for _, id := range ids {
		reg := NewWithClient(client, id)
		if err := reg.RegisterSelf(ctx); err != nil {
			t.Fatalf("RegisterSelf %s failed: %v", id, err)
		}
		registries = append(registries, reg)
	}

	leaders := 0
	for _, reg := range registries {
		lead, err := reg.IsLeader(ctx)
		if err != nil {
			t.Fatalf("IsLeader %s failed: %v", reg.SessionID(), err)
		}
		if lead {
			leaders++
			if reg.SessionID() != "session-c" {
				t.Errorf("expected session-c to lead, got %s", reg.SessionID())
			}
		}
	}
	if leaders != 1 {
		t.Errorf("expected exactly one leader, got %d", leaders)
	}
}

func TestIsLeaderEmptySet(t *testing.T) {
	reg, _ := setupTestRegistry(t, "session-a")

	lead, err := reg.IsLeader(context.Background())
	if err != nil {
		t.Fatalf("IsLeader failed: %v", err)
	}
	if lead {
		t.Error("expected no leader for empty session set")
	}
}

func TestDeregisterSelfHandsOverLeadership(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()
	ctx := context.Background()

	regA := NewWithClient(client, "session-a")
	regB := NewWithClient(client, "session-b")
	for _, reg := range []*Registry{regA, regB} {
		if err := reg.RegisterSelf(ctx); err != nil {
			t.Fatalf("RegisterSelf failed: %v", err)
		}
	}

	if lead, _ := regA.IsLeader(ctx); lead {
		t.Fatal("session-a should not lead while session-b is open")
	}

	if err := regB.DeregisterSelf(ctx); err != nil {
		t.Fatalf("DeregisterSelf failed: %v", err)
	}

	lead, err := regA.IsLeader(ctx)
	if err != nil {
		t.Fatalf("IsLeader failed: %v", err)
	}
	if !lead {
		t.Error("session-a should lead after session-b deregistered")
	}
}

func TestMutationsPublishNotifications(t *testing.T) {
	reg, _ := setupTestRegistry(t, "session-a")
	ctx := context.Background()

	sub := reg.Subscribe(ctx)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if err := reg.RegisterSelf(ctx); err != nil {
		t.Fatalf("RegisterSelf failed: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		if msg.Payload != "session-a" {
			t.Errorf("expected payload session-a, got %q", msg.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no notification after RegisterSelf")
	}

	if err := reg.DeregisterSelf(ctx); err != nil {
		t.Fatalf("DeregisterSelf failed: %v", err)
	}

	select {
	case <-sub.Channel():
	case <-time.After(2 * time.Second):
		t.Fatal("no notification after DeregisterSelf")
	}
}

func TestDisplayNameGeneratedOnce(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()
	ctx := context.Background()

	regA := NewWithClient(client, "session-a")
	regB := NewWithClient(client, "session-b")

	name, err := regA.DisplayName(ctx)
	if err != nil {
		t.Fatalf("DisplayName failed: %v", err)
	}
	if !strings.HasPrefix(name, "User-") {
		t.Errorf("expected User-<n> name, got %q", name)
	}

	// Same profile, so every session sees the same name.
	again, err := regB.DisplayName(ctx)
	if err != nil {
		t.Fatalf("second DisplayName failed: %v", err)
	}
	if again != name {
		t.Errorf("expected stable name %q, got %q", name, again)
	}
}
