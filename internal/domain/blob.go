package domain

import (
	"context"
	"time"
)

// BlobWriter uploads one object and returns the full key it was stored
// under.
type BlobWriter interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// ArchiveResult summarizes one export run.
type ArchiveResult struct {
	RunID     string         `json:"run_id"`
	Paths     []string       `json:"paths"`
	Counts    map[string]int `json:"counts"`
	CreatedAt time.Time      `json:"created_at"`
}

// Archiver exports league state to cold storage.
type Archiver interface {
	Export(ctx context.Context) (ArchiveResult, error)
}
