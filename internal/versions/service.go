// Package versions is the client for the durable snapshot store. Versions
// are immutable, timestamped and sequentially numbered per novel; the parent
// row carries a pointer to the version considered canonical.
package versions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"inkroom/collab/internal/search"
	"inkroom/collab/internal/store"
	"inkroom/collab/internal/util"
)

// ErrStalePointer marks a save whose version row was persisted but whose
// parent pointer update failed. The snapshot exists; the inconsistency is
// recoverable by the next successful save or revert, not data loss.
var ErrStalePointer = errors.New("current-version pointer not updated")

type dataStore interface {
	UpsertNovel(ctx context.Context, item store.Novel) error
	GetNovel(ctx context.Context, novelID string) (store.Novel, error)
	ListVersions(ctx context.Context, novelID string) ([]store.NovelVersion, error)
	LatestVersionNumber(ctx context.Context, novelID string) (int, error)
	InsertVersion(ctx context.Context, item store.NovelVersion) error
	SetCurrentVersion(ctx context.Context, novelID, versionID, manuscript string) error
}

type indexer interface {
	IndexVersion(record search.VersionRecord) error
}

type archiver interface {
	ArchiveVersion(ctx context.Context, novelID string, versionNumber int, payload []byte) error
}

// SaveRequest describes one snapshot to persist.
type SaveRequest struct {
	NovelID     string
	Content     json.RawMessage
	PlainText   string
	IsAutoSave  bool
	Description string
}

// Event is published on the novel's change channel after every save or
// pointer update.
type Event struct {
	NovelID       string `json:"novelId"`
	VersionID     string `json:"versionId"`
	VersionNumber int    `json:"versionNumber"`
}

// Service coordinates version reads and writes. The redis client fans out
// change notifications; indexer and archiver are optional best-effort
// side-cars.
type Service struct {
	store   dataStore
	rdb     *redis.Client
	index   indexer
	archive archiver

	mu       sync.Mutex
	lastList map[string][]store.NovelVersion
}

func NewService(st dataStore, rdb *redis.Client) *Service {
	return &Service{
		store:    st,
		rdb:      rdb,
		lastList: make(map[string][]store.NovelVersion),
	}
}

// SetIndexer attaches a search indexer.
func (s *Service) SetIndexer(ix indexer) {
	s.index = ix
}

// SetArchiver attaches a payload archiver.
func (s *Service) SetArchiver(a archiver) {
	s.archive = a
}

// List returns all versions for the novel, newest first. It fails soft: on a
// storage error it logs and returns the previous successful list, so a
// transient outage never surfaces past this client.
func (s *Service) List(ctx context.Context, novelID string) []store.NovelVersion {
	items, err := s.store.ListVersions(ctx, novelID)
	if err != nil {
		log.Printf("versions: list %s: %v", novelID, err)
		s.mu.Lock()
		defer s.mu.Unlock()
		return append([]store.NovelVersion(nil), s.lastList[novelID]...)
	}

	s.mu.Lock()
	s.lastList[novelID] = items
	s.mu.Unlock()
	return append([]store.NovelVersion(nil), items...)
}

// Save persists a new version and moves the parent's current-version
// pointer. The read-max-then-insert numbering is not atomic: two sessions
// saving concurrently can compute the same next number. Accepted as rare
// under the actor model (one autosaving leader, infrequent manual saves).
func (s *Service) Save(ctx context.Context, req SaveRequest) (store.NovelVersion, error) {
	if err := s.store.UpsertNovel(ctx, store.Novel{ID: req.NovelID}); err != nil {
		return store.NovelVersion{}, fmt.Errorf("ensure novel: %w", err)
	}

	latest, err := s.store.LatestVersionNumber(ctx, req.NovelID)
	if err != nil {
		return store.NovelVersion{}, fmt.Errorf("read latest version: %w", err)
	}

	item := store.NovelVersion{
		ID:            util.NewID("ver"),
		NovelID:       req.NovelID,
		Content:       req.Content,
		PlainText:     req.PlainText,
		WordCount:     WordCount(req.PlainText),
		IsAutoSave:    req.IsAutoSave,
		VersionNumber: latest + 1,
		Description:   req.Description,
	}
	if err := s.store.InsertVersion(ctx, item); err != nil {
		return store.NovelVersion{}, fmt.Errorf("insert version: %w", err)
	}

	if err := s.store.SetCurrentVersion(ctx, req.NovelID, item.ID, req.PlainText); err != nil {
		return item, fmt.Errorf("%w: %v", ErrStalePointer, err)
	}

	s.notify(ctx, item)
	s.sidecars(ctx, item)
	return item, nil
}

// SetCurrentVersion moves the pointer without creating a version (revert
// path) and notifies listeners.
func (s *Service) SetCurrentVersion(ctx context.Context, novelID, versionID, manuscript string) error {
	if err := s.store.SetCurrentVersion(ctx, novelID, versionID, manuscript); err != nil {
		return err
	}
	s.notify(ctx, store.NovelVersion{ID: versionID, NovelID: novelID})
	return nil
}

// GetNovel reads the parent row.
func (s *Service) GetNovel(ctx context.Context, novelID string) (store.Novel, error) {
	return s.store.GetNovel(ctx, novelID)
}

// Subscribe delivers a message whenever any session saves or reverts the
// novel. The caller owns the returned PubSub and must Close it. Push
// delivery is not guaranteed; pair it with periodic List polling.
func (s *Service) Subscribe(ctx context.Context, novelID string) *redis.PubSub {
	return s.rdb.Subscribe(ctx, Channel(novelID))
}

// Channel names the pub/sub channel carrying change events for a novel.
func Channel(novelID string) string {
	return "inkroom:versions:" + novelID
}

func (s *Service) notify(ctx context.Context, item store.NovelVersion) {
	if s.rdb == nil {
		return
	}
	payload, err := json.Marshal(Event{
		NovelID:       item.NovelID,
		VersionID:     item.ID,
		VersionNumber: item.VersionNumber,
	})
	if err != nil {
		log.Printf("versions: marshal event: %v", err)
		return
	}
	if err := s.rdb.Publish(ctx, Channel(item.NovelID), payload).Err(); err != nil {
		log.Printf("versions: publish change for %s: %v", item.NovelID, err)
	}
}

func (s *Service) sidecars(ctx context.Context, item store.NovelVersion) {
	if s.index != nil {
		if err := s.index.IndexVersion(search.VersionRecord{
			ID:            item.ID,
			NovelID:       item.NovelID,
			VersionNumber: item.VersionNumber,
			Description:   item.Description,
			PlainText:     item.PlainText,
			IsAutoSave:    item.IsAutoSave,
			CreatedAt:     item.CreatedAt.Unix(),
		}); err != nil {
			log.Printf("versions: index v%d of %s: %v", item.VersionNumber, item.NovelID, err)
		}
	}
	if s.archive != nil {
		if err := s.archive.ArchiveVersion(ctx, item.NovelID, item.VersionNumber, item.Content); err != nil {
			log.Printf("versions: archive v%d of %s: %v", item.VersionNumber, item.NovelID, err)
		}
	}
}

// WordCount counts whitespace-separated words in the trimmed text.
func WordCount(plainText string) int {
	return len(strings.Fields(plainText))
}
