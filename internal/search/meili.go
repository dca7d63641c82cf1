// Package search indexes saved manuscript versions in Meilisearch. Indexing
// is a best-effort side-car on save; when Meilisearch is down, saves proceed
// and the index catches up after recovery.
package search

import (
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxVersions = "inkroom_versions"

// VersionRecord is the searchable projection of a saved version.
type VersionRecord struct {
	ID            string `json:"id"`
	NovelID       string `json:"novelId"`
	VersionNumber int    `json:"versionNumber"`
	Description   string `json:"description"`
	PlainText     string `json:"plainText"`
	IsAutoSave    bool   `json:"isAutoSave"`
	CreatedAt     int64  `json:"createdAt"`
}

// Result is one search hit.
type Result struct {
	ID            string
	NovelID       string
	VersionNumber int
	Description   string
	Snippet       string
}

// Meili wraps the Meilisearch client with a health gate.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates the client and configures the versions index. The caller
// proceeds without search if the service never becomes healthy.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxVersions,
		PrimaryKey: "id",
	}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxVersions, err)
	}

	index := m.client.Index(idxVersions)
	filterable := []interface{}{"novelId", "isAutoSave"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: update filterable attrs for %s: %v", idxVersions, err)
	}
	searchable := []string{"description", "plainText"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs for %s: %v", idxVersions, err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// IndexVersion adds or updates a version in the search index.
func (m *Meili) IndexVersion(record VersionRecord) error {
	if !m.healthy.Load() {
		return fmt.Errorf("meilisearch unhealthy")
	}
	_, err := m.client.Index(idxVersions).AddDocuments([]VersionRecord{record}, nil)
	return err
}

// Search queries version descriptions and plain text for one novel.
func (m *Meili) Search(novelID, query string, limit int) ([]Result, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}
	if limit == 0 {
		limit = 20
	}

	resp, err := m.client.Index(idxVersions).Search(query, &meili.SearchRequest{
		Limit:                 int64(limit),
		Filter:                []string{fmt.Sprintf("novelId = %q", novelID)},
		AttributesToHighlight: []string{"*"},
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	results := make([]Result, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		results = append(results, hitToResult(hit))
	}
	return results, nil
}

func hitToResult(hit meili.Hit) Result {
	r := Result{
		ID:          decodeString(hit, "id"),
		NovelID:     decodeString(hit, "novelId"),
		Description: decodeString(hit, "description"),
		Snippet:     decodeFormattedString(hit, "plainText"),
	}
	if raw, ok := hit["versionNumber"]; ok {
		var n int
		if err := json.Unmarshal(raw, &n); err == nil {
			r.VersionNumber = n
		}
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]string
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	return formatted[key]
}
