package editor

import (
	"encoding/json"
	"testing"

	"github.com/fmpwizard/go-quilljs-delta/delta"
)

func TestPlainTextConcatenatesInserts(t *testing.T) {
	d := delta.New(nil).Insert("Hello ", nil).Insert("world", map[string]interface{}{"bold": true})
	if got := PlainText(d); got != "Hello world" {
		t.Errorf("expected %q, got %q", "Hello world", got)
	}
	if got := PlainText(nil); got != "" {
		t.Errorf("expected empty text for nil delta, got %q", got)
	}
}

func TestSetContentsSignalsApply(t *testing.T) {
	e := New()
	applied := e.SetContents(delta.New(nil).Insert("draft", nil))

	select {
	case <-applied:
	default:
		t.Fatal("applied channel not closed after SetContents returned")
	}
	if got := e.PlainText(); got != "draft" {
		t.Errorf("expected %q, got %q", "draft", got)
	}
}

func TestSetContentsFiresChangeListeners(t *testing.T) {
	e := New()
	fired := 0
	cancel := e.OnTextChange(func() { fired++ })

	e.SetText("one")
	e.SetText("two")
	if fired != 2 {
		t.Errorf("expected 2 change events, got %d", fired)
	}

	cancel()
	e.SetText("three")
	if fired != 2 {
		t.Errorf("expected no event after cancel, got %d", fired)
	}
}

func TestContentsReturnsCopy(t *testing.T) {
	e := New()
	e.SetText("stable")

	c := e.Contents()
	c.Insert(" mutated", nil)

	if got := e.PlainText(); got != "stable" {
		t.Errorf("mutating the returned contents changed the editor: %q", got)
	}
}

func TestReadyFlag(t *testing.T) {
	e := New()
	if e.Ready() {
		t.Error("editor should not start ready")
	}
	e.MarkReady()
	if !e.Ready() {
		t.Error("expected ready after MarkReady")
	}
}

func TestParseContentDeltaJSON(t *testing.T) {
	raw, err := json.Marshal(delta.New(nil).Insert("Chapter one", nil))
	if err != nil {
		t.Fatalf("marshal delta: %v", err)
	}

	d := ParseContent(raw)
	if got := PlainText(d); got != "Chapter one" {
		t.Errorf("expected %q, got %q", "Chapter one", got)
	}
}

func TestParseContentFallsBackToPlainText(t *testing.T) {
	d := ParseContent([]byte("just a manuscript"))
	if got := PlainText(d); got != "just a manuscript" {
		t.Errorf("expected plain-text fallback, got %q", got)
	}

	d = ParseContent([]byte(`"quoted text"`))
	if got := PlainText(d); got != "quoted text" {
		t.Errorf("expected JSON string fallback, got %q", got)
	}
}

func TestParseContentEmptyInput(t *testing.T) {
	for _, raw := range [][]byte{nil, {}, []byte(`""`)} {
		d := ParseContent(raw)
		if got := PlainText(d); got != "" {
			t.Errorf("ParseContent(%q) = %q, want empty document", raw, got)
		}
	}
}
