// Package revert applies a stored version back onto the live document.
package revert

import (
	"context"
	"fmt"
	"time"

	"github.com/fmpwizard/go-quilljs-delta/delta"

	"inkroom/collab/internal/editor"
	"inkroom/collab/internal/store"
)

type contentApplier interface {
	SetContents(d *delta.Delta) <-chan struct{}
	PlainText() string
}

type changeDetector interface {
	SetBaseline(content string)
}

type versionStore interface {
	SetCurrentVersion(ctx context.Context, novelID, versionID, manuscript string) error
	List(ctx context.Context, novelID string) []store.NovelVersion
}

type Controller struct {
	editor     contentApplier
	detector   changeDetector
	versions   versionStore
	applyDelay time.Duration
}

// New builds a controller. applyDelay bounds the wait for the editor to
// report the applied content when no completion signal arrives.
func New(applier contentApplier, detector changeDetector, versions versionStore, applyDelay time.Duration) *Controller {
	if applyDelay == 0 {
		applyDelay = 100 * time.Millisecond
	}
	return &Controller{
		editor:     applier,
		detector:   detector,
		versions:   versions,
		applyDelay: applyDelay,
	}
}

// Revert overwrites the live document with the version's payload. The
// overwrite is a full replace, not a merge: it is destructive for every
// connected participant, since all sessions share one replicated document.
// The local baseline update and the durable pointer update are not
// transactional; the replicated document, not the pointer, is the source of
// truth for live content.
func (c *Controller) Revert(ctx context.Context, item store.NovelVersion) error {
	applied := c.editor.SetContents(editor.ParseContent(item.Content))

	// The editor's apply is observed, not confirmed; wait for its signal
	// with the fixed delay as fallback.
	timer := time.NewTimer(c.applyDelay)
	defer timer.Stop()
	select {
	case <-applied:
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.detector.SetBaseline(c.editor.PlainText())

	if err := c.versions.SetCurrentVersion(ctx, item.NovelID, item.ID, item.PlainText); err != nil {
		return fmt.Errorf("persist reverted pointer: %w", err)
	}

	c.versions.List(ctx, item.NovelID)
	return nil
}
