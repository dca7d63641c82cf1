// Package editor is the boundary to the editing widget. Content is an
// opaque Quill Delta payload; the only interpreted projection is plain text.
package editor

import (
	"sync"
	"sync/atomic"

	"github.com/fmpwizard/go-quilljs-delta/delta"
)

type Editor struct {
	mu        sync.Mutex
	doc       delta.Delta
	listeners map[int]func()
	nextID    int
	ready     atomic.Bool
}

func New() *Editor {
	return &Editor{
		doc:       *delta.New(nil),
		listeners: make(map[int]func()),
	}
}

// Contents returns a copy of the structured content.
func (e *Editor) Contents() *delta.Delta {
	e.mu.Lock()
	ops := make([]delta.Op, len(e.doc.Ops))
	copy(ops, e.doc.Ops)
	e.mu.Unlock()
	return delta.New(ops)
}

// SetContents replaces the document wholesale. The returned channel closes
// once the content has been applied and change listeners have run; callers
// that cannot rely on it fall back to a fixed delay.
func (e *Editor) SetContents(d *delta.Delta) <-chan struct{} {
	e.mu.Lock()
	if d == nil {
		e.doc = *delta.New(nil)
	} else {
		ops := make([]delta.Op, len(d.Ops))
		copy(ops, d.Ops)
		e.doc = *delta.New(ops)
	}
	e.mu.Unlock()

	applied := make(chan struct{})
	e.fireChange()
	close(applied)
	return applied
}

// SetText replaces the document with unformatted text.
func (e *Editor) SetText(s string) {
	if s == "" {
		e.SetContents(delta.New(nil))
		return
	}
	e.SetContents(delta.New(nil).Insert(s, nil))
}

// PlainText walks the ops and concatenates text inserts. Embeds and
// formatting contribute nothing, so structural-only changes are invisible
// here; that is the documented approximation the change detector accepts.
func (e *Editor) PlainText() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return PlainText(&e.doc)
}

// OnTextChange registers a callback fired after every content change.
func (e *Editor) OnTextChange(fn func()) (cancel func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// MarkReady flags the editor as fully initialized. The autosave gate reads
// this through Ready.
func (e *Editor) MarkReady() {
	e.ready.Store(true)
}

func (e *Editor) Ready() bool {
	return e.ready.Load()
}

func (e *Editor) fireChange() {
	e.mu.Lock()
	subs := make([]func(), 0, len(e.listeners))
	for _, fn := range e.listeners {
		subs = append(subs, fn)
	}
	e.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// PlainText extracts the plain-text projection of a delta payload.
func PlainText(d *delta.Delta) string {
	if d == nil {
		return ""
	}
	var out []rune
	for _, op := range d.Ops {
		if op.Insert != nil {
			out = append(out, op.Insert...)
		}
	}
	return string(out)
}
