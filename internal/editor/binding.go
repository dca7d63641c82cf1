package editor

import (
	"sync/atomic"

	"inkroom/collab/internal/room"
)

// Binding mirrors the editor's plain text into the room's shared text handle
// and applies remote text updates back onto the editor. It is a reference
// binding: the transport's merge algorithm is external, so propagation here
// is a whole-text replace.
type Binding struct {
	editor   *Editor
	text     room.Text
	applying atomic.Bool

	cancelEditor func()
	cancelText   func()
}

func Bind(ed *Editor, txt room.Text) *Binding {
	b := &Binding{editor: ed, text: txt}
	b.cancelEditor = ed.OnTextChange(b.pushLocal)
	b.cancelText = txt.OnUpdate(b.pullRemote)
	return b
}

func (b *Binding) pushLocal() {
	if b.applying.Load() {
		return
	}
	b.applying.Store(true)
	defer b.applying.Store(false)

	plain := b.editor.PlainText()
	if n := b.text.Len(); n > 0 {
		b.text.Delete(0, n)
	}
	b.text.Insert(0, plain)
}

func (b *Binding) pullRemote() {
	if b.applying.Load() {
		return
	}
	b.applying.Store(true)
	defer b.applying.Store(false)

	b.editor.SetText(b.text.String())
}

func (b *Binding) Destroy() {
	if b.cancelEditor != nil {
		b.cancelEditor()
	}
	if b.cancelText != nil {
		b.cancelText()
	}
}
