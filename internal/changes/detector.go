// Package changes decides whether the live document diverges from the last
// persisted snapshot this session knows about.
package changes

import (
	"strings"
	"sync"
	"time"
)

// Detector compares the live plain-text projection against a per-session
// baseline. The baseline moves only on this session's successful saves and
// reverts, never on other sessions' saves.
type Detector struct {
	mu       sync.Mutex
	source   func() string
	baseline string
	dirty    bool
	debounce time.Duration
	timer    *time.Timer
}

// NewDetector builds a detector over a plain-text source. Edits schedule a
// debounced recompute after the given delay rather than recomputing on
// every keystroke.
func NewDetector(source func() string, debounce time.Duration) *Detector {
	return &Detector{source: source, debounce: debounce}
}

// HasChanges recomputes synchronously and reports whether the trimmed live
// text differs from the trimmed baseline.
func (d *Detector) HasChanges() bool {
	current := d.source()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dirty = strings.TrimSpace(current) != strings.TrimSpace(d.baseline)
	return d.dirty
}

// Dirty reports the last computed state without recomputing.
func (d *Detector) Dirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dirty
}

// SetBaseline records content as the new persisted baseline and clears the
// dirty flag.
func (d *Detector) SetBaseline(content string) {
	d.mu.Lock()
	d.baseline = content
	d.dirty = false
	d.mu.Unlock()
}

// Baseline returns the current baseline text.
func (d *Detector) Baseline() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.baseline
}

// NoteEdit schedules a debounced recompute. Intended as the editor's
// content-changed callback.
func (d *Detector) NoteEdit() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.debounce, func() { d.HasChanges() })
	d.mu.Unlock()
}

// Stop cancels any pending recompute.
func (d *Detector) Stop() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
}
