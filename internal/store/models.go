package store

import (
	"encoding/json"
	"time"
)

type Novel struct {
	ID               string
	FinalManuscript  string
	CurrentVersionID *string
	CreatedAt        time.Time
}

type NovelVersion struct {
	ID            string
	NovelID       string
	Content       json.RawMessage
	PlainText     string
	WordCount     int
	IsAutoSave    bool
	VersionNumber int
	Description   string
	CreatedAt     time.Time
}
