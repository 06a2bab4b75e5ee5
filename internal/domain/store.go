package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// PickStore persists the append-only pick ledger.
type PickStore interface {
	InsertBatch(ctx context.Context, picks []Pick) error
	List(ctx context.Context) ([]Pick, error)
	ListUnlinked(ctx context.Context) ([]Pick, error)
	// LinkInstrument sets the instrument and event group of a pick whose
	// instrument id is still empty. It reports whether a row changed.
	LinkInstrument(ctx context.Context, id int64, instrumentID, eventGroupID string) (bool, error)
	Clear(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// SnapshotStore persists the append-only market observation history.
type SnapshotStore interface {
	// AppendBatch stores every observation with the same observedAt.
	AppendBatch(ctx context.Context, rows []MarketObservation, observedAt time.Time) error
	ListByEventGroup(ctx context.Context, eventGroupID string) ([]MarketSnapshot, error)
	ListAll(ctx context.Context) ([]MarketSnapshot, error)
	LatestPerInstrument(ctx context.Context) (map[string]MarketSnapshot, error)
}

// ScoreStore persists the materialized leaderboard.
type ScoreStore interface {
	// Replace makes records the complete score set: rows are upserted by
	// participant and participants absent from records are removed.
	Replace(ctx context.Context, records []ScoreRecord) error
	List(ctx context.Context) ([]ScoreRecord, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
