package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/mentionleague/internal/domain"
)

// ArchiveImpl implements domain.Archiver by dumping the league tables to
// JSONL and uploading one file per table under <date>/<run id>/ below the
// writer's prefix.
//
// Archived rows are not removed from the primary store.
type ArchiveImpl struct {
	writer    domain.BlobWriter
	picks     domain.PickStore
	snapshots domain.SnapshotStore
	scores    domain.ScoreStore
	audit     domain.AuditStore
	now       func() time.Time
}

// NewArchiver creates a new ArchiveImpl. audit may be nil.
func NewArchiver(
	writer domain.BlobWriter,
	picks domain.PickStore,
	snapshots domain.SnapshotStore,
	scores domain.ScoreStore,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:    writer,
		picks:     picks,
		snapshots: snapshots,
		scores:    scores,
		audit:     audit,
		now:       time.Now,
	}
}

// Export uploads picks, snapshot history and scores. Empty tables are still
// written so every run has the same three files.
func (a *ArchiveImpl) Export(ctx context.Context) (domain.ArchiveResult, error) {
	res := domain.ArchiveResult{
		RunID:     uuid.New().String(),
		Counts:    make(map[string]int, 3),
		CreatedAt: a.now().UTC(),
	}

	picks, err := a.picks.List(ctx)
	if err != nil {
		return res, fmt.Errorf("s3blob: archive picks query: %w", err)
	}
	if err := upload(ctx, a.writer, &res, "picks", picks); err != nil {
		return res, err
	}

	snaps, err := a.snapshots.ListAll(ctx)
	if err != nil {
		return res, fmt.Errorf("s3blob: archive snapshots query: %w", err)
	}
	if err := upload(ctx, a.writer, &res, "market_snapshots", snaps); err != nil {
		return res, err
	}

	scores, err := a.scores.List(ctx)
	if err != nil {
		return res, fmt.Errorf("s3blob: archive scores query: %w", err)
	}
	if err := upload(ctx, a.writer, &res, "scores", scores); err != nil {
		return res, err
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.export", map[string]any{
			"run_id": res.RunID,
			"paths":  res.Paths,
			"counts": res.Counts,
		}); err != nil {
			return res, fmt.Errorf("s3blob: archive audit log: %w", err)
		}
	}
	return res, nil
}

// upload writes records as one JSONL object and records it on res.
func upload[T any](ctx context.Context, w domain.BlobWriter, res *domain.ArchiveResult, kind string, records []T) error {
	buf, err := marshalJSONL(records)
	if err != nil {
		return fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
	}

	key, err := w.Upload(ctx, runKey(res.CreatedAt, res.RunID, kind), buf, "application/x-ndjson")
	if err != nil {
		return fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
	}

	res.Paths = append(res.Paths, key)
	res.Counts[kind] = len(records)
	return nil
}

// runKey builds the unprefixed key for one table of a run.
//
//	2026-03-02/6f1c.../picks.jsonl
func runKey(at time.Time, runID, kind string) string {
	return fmt.Sprintf("%s/%s/%s.jsonl", at.Format("2006-01-02"), runID, kind)
}

// marshalJSONL encodes each record as one compact JSON line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
