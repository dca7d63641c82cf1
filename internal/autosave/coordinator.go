// Package autosave runs the unattended periodic save loop for one session.
package autosave

import (
	"context"
	"encoding/json"
	"log"
	"sync/atomic"
	"time"

	"github.com/fmpwizard/go-quilljs-delta/delta"

	"inkroom/collab/internal/presence"
	"inkroom/collab/internal/store"
	"inkroom/collab/internal/versions"
)

// Description is recorded on every automatic save.
const Description = "Autosave"

// State of the per-session save machine. Every tick re-enters Evaluating and
// falls back to Idle; Saving is reached only when every gate passes.
type State int32

const (
	StateIdle State = iota
	StateEvaluating
	StateSaving
)

type editorSource interface {
	Ready() bool
	Contents() *delta.Delta
	PlainText() string
}

type participantDirectory interface {
	Snapshot() []presence.Participant
	Leader() (presence.Participant, bool)
}

type sessionSet interface {
	IsLeader(ctx context.Context) (bool, error)
}

type changeDetector interface {
	HasChanges() bool
	SetBaseline(content string)
}

type saver interface {
	Save(ctx context.Context, req versions.SaveRequest) (store.NovelVersion, error)
}

// Options wires a coordinator. LocalName is this session's display name; a
// save requires it to match the presence-ranked leader while the session is
// also the session-set leader.
type Options struct {
	NovelID   string
	LocalName string
	Interval  time.Duration
	Editor    editorSource
	Presence  participantDirectory
	Sessions  sessionSet
	Detector  changeDetector
	Saver     saver
}

type Coordinator struct {
	opts  Options
	state atomic.Int32
}

func New(opts Options) *Coordinator {
	if opts.Interval == 0 {
		opts.Interval = 30 * time.Second
	}
	return &Coordinator{opts: opts}
}

func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Run ticks until the context is cancelled. Only one attempt is ever in
// flight: the next Evaluating is reached after the prior Saving completes,
// by construction of the single loop.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce performs one Idle → Evaluating → (Saving) → Idle pass and reports
// whether a version was saved.
func (c *Coordinator) RunOnce(ctx context.Context) bool {
	c.state.Store(int32(StateEvaluating))
	defer c.state.Store(int32(StateIdle))

	if !c.evaluate(ctx) {
		return false
	}

	c.state.Store(int32(StateSaving))
	return c.save(ctx)
}

// evaluate checks every autosave gate. Any unmet condition skips this tick
// without saving.
func (c *Coordinator) evaluate(ctx context.Context) bool {
	if !c.opts.Editor.Ready() {
		return false
	}
	if len(c.opts.Presence.Snapshot()) == 0 {
		return false
	}
	leader, ok := c.opts.Presence.Leader()
	if !ok || leader.Name != c.opts.LocalName {
		return false
	}
	isTabLeader, err := c.opts.Sessions.IsLeader(ctx)
	if err != nil {
		log.Printf("autosave: session leader check: %v", err)
		return false
	}
	if !isTabLeader {
		return false
	}
	return c.opts.Detector.HasChanges()
}

func (c *Coordinator) save(ctx context.Context) bool {
	contents := c.opts.Editor.Contents()
	plainText := c.opts.Editor.PlainText()

	payload, err := json.Marshal(contents)
	if err != nil {
		log.Printf("autosave: marshal contents: %v", err)
		return false
	}

	item, err := c.opts.Saver.Save(ctx, versions.SaveRequest{
		NovelID:     c.opts.NovelID,
		Content:     payload,
		PlainText:   plainText,
		IsAutoSave:  true,
		Description: Description,
	})
	if err != nil {
		// No retry before the next tick; the baseline stays put so the
		// content still reads as dirty.
		log.Printf("autosave: save failed: %v", err)
		return false
	}

	c.opts.Detector.SetBaseline(plainText)
	log.Printf("autosave: saved v%d of %s (%d words)", item.VersionNumber, item.NovelID, item.WordCount)
	return true
}
