// Package registry tracks the set of open sessions for one browser profile.
// Redis stands in for the profile's shared local storage: every same-profile
// process observes the same session set, and mutations are fanned out over
// pub/sub the way storage events are. There is no locking; the last writer
// to the persisted set wins.
package registry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"inkroom/collab/internal/util"
)

const (
	sessionsKey = "inkroom:tab-ids"
	nameKey     = "inkroom:username"

	// EventsChannel carries a message on every session-set mutation.
	EventsChannel = "inkroom:tab-ids:changes"
)

type Registry struct {
	client    *redis.Client
	sessionID string
}

func New(redisURL string) (*Registry, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Registry{
		client:    client,
		sessionID: util.NewSessionID(),
	}, nil
}

// NewWithClient creates a registry from an existing Redis client and a fixed
// session id.
func NewWithClient(client *redis.Client, sessionID string) *Registry {
	return &Registry{client: client, sessionID: sessionID}
}

func (r *Registry) SessionID() string {
	return r.sessionID
}

// RegisterSelf appends the local session id to the persisted set if absent.
// Called once per session start.
func (r *Registry) RegisterSelf(ctx context.Context) error {
	ids, err := r.Sessions(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == r.sessionID {
			return nil
		}
	}
	if err := r.client.RPush(ctx, sessionsKey, r.sessionID).Err(); err != nil {
		return fmt.Errorf("register session: %w", err)
	}
	return r.notify(ctx)
}

// DeregisterSelf removes the local session id. Called on session teardown;
// if the process dies before this runs the stale id lingers until another
// session mutates the set.
func (r *Registry) DeregisterSelf(ctx context.Context) error {
	if err := r.client.LRem(ctx, sessionsKey, 0, r.sessionID).Err(); err != nil {
		return fmt.Errorf("deregister session: %w", err)
	}
	return r.notify(ctx)
}

func (r *Registry) Sessions(ctx context.Context) ([]string, error) {
	ids, err := r.client.LRange(ctx, sessionsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read session set: %w", err)
	}
	return ids, nil
}

// IsLeader reports whether the local session id is the lexicographic maximum
// of the session set. Deterministic and coordinator-free; exactly one session
// satisfies it at any instant the set is queried.
func (r *Registry) IsLeader(ctx context.Context) (bool, error) {
	ids, err := r.Sessions(ctx)
	if err != nil {
		return false, err
	}
	if len(ids) == 0 {
		return false, nil
	}
	max := ids[0]
	for _, id := range ids[1:] {
		if id > max {
			max = id
		}
	}
	return max == r.sessionID, nil
}

// Subscribe delivers a message for every session-set mutation. The caller
// owns the returned PubSub and must Close it.
func (r *Registry) Subscribe(ctx context.Context) *redis.PubSub {
	return r.client.Subscribe(ctx, EventsChannel)
}

// DisplayName returns the profile's generated-once display name, creating
// it on first access.
func (r *Registry) DisplayName(ctx context.Context) (string, error) {
	name, err := r.client.Get(ctx, nameKey).Result()
	if err == nil {
		return name, nil
	}
	if !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("read display name: %w", err)
	}

	generated := fmt.Sprintf("User-%d", rand.Intn(1000))
	if err := r.client.SetNX(ctx, nameKey, generated, 0).Err(); err != nil {
		return "", fmt.Errorf("store display name: %w", err)
	}
	// Re-read in case another session won the SetNX.
	name, err = r.client.Get(ctx, nameKey).Result()
	if err != nil {
		return "", fmt.Errorf("read display name: %w", err)
	}
	return name, nil
}

func (r *Registry) notify(ctx context.Context) error {
	if err := r.client.Publish(ctx, EventsChannel, r.sessionID).Err(); err != nil {
		return fmt.Errorf("publish session change: %w", err)
	}
	return nil
}

func (r *Registry) Close() error {
	return r.client.Close()
}

func (r *Registry) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
