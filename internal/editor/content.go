package editor

import (
	"encoding/json"

	"github.com/fmpwizard/go-quilljs-delta/delta"
)

// ParseContent interprets a persisted content payload. Valid Delta JSON is
// used as-is; anything else is treated as plain text, and blank input as an
// empty document. Malformed payloads never surface as errors.
func ParseContent(raw []byte) *delta.Delta {
	if len(raw) == 0 {
		return delta.New(nil)
	}

	var d delta.Delta
	if err := json.Unmarshal(raw, &d); err == nil && len(d.Ops) > 0 {
		return delta.New(d.Ops)
	}

	// Payloads written as a bare JSON string hold plain text.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return delta.New(nil)
		}
		return delta.New(nil).Insert(s, nil)
	}

	return delta.New(nil).Insert(string(raw), nil)
}
