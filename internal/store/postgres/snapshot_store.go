package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/mentionleague/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL. The BIGSERIAL
// id is the snapshot sequence number.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a new SnapshotStore backed by the given connection pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

const snapshotSelectCols = `id, instrument_id, event_group_id, display_title,
	yes_price, yes_bid, yes_ask, status, result, observed_at`

func scanSnapshotRows(rows pgx.Rows) ([]domain.MarketSnapshot, error) {
	var out []domain.MarketSnapshot
	for rows.Next() {
		var s domain.MarketSnapshot
		if err := rows.Scan(
			&s.Seq, &s.InstrumentID, &s.EventGroupID, &s.DisplayTitle,
			&s.YesPrice, &s.YesBid, &s.YesAsk, &s.Status, &s.Result, &s.ObservedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AppendBatch inserts one row per observation, all stamped with observedAt,
// in a single transaction. Rows are never deduplicated.
func (s *SnapshotStore) AppendBatch(ctx context.Context, obs []domain.MarketObservation, observedAt time.Time) error {
	if len(obs) == 0 {
		return nil
	}

	const query = `
		INSERT INTO market_snapshots (
			instrument_id, event_group_id, display_title,
			yes_price, yes_bid, yes_ask, status, result, observed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	batch := &pgx.Batch{}
	for _, o := range obs {
		batch.Queue(query,
			o.InstrumentID, o.EventGroupID, o.DisplayTitle,
			o.YesPrice, o.YesBid, o.YesAsk, o.Status, o.Result, observedAt,
		)
	}

	return inTx(ctx, s.pool, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		for i := range obs {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("postgres: insert snapshot batch item %d: %w", i, err)
			}
		}
		return br.Close()
	})
}

// ListByEventGroup returns the full history of an event group, oldest first.
func (s *SnapshotStore) ListByEventGroup(ctx context.Context, eventGroupID string) ([]domain.MarketSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+snapshotSelectCols+` FROM market_snapshots
		 WHERE event_group_id = $1 ORDER BY observed_at, id`, eventGroupID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots for %s: %w", eventGroupID, err)
	}
	defer rows.Close()

	out, err := scanSnapshotRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan snapshots: %w", err)
	}
	return out, nil
}

// ListAll returns every snapshot in sequence order.
func (s *SnapshotStore) ListAll(ctx context.Context) ([]domain.MarketSnapshot, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+snapshotSelectCols+` FROM market_snapshots ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots: %w", err)
	}
	defer rows.Close()

	out, err := scanSnapshotRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan snapshots: %w", err)
	}
	return out, nil
}

// LatestPerInstrument returns the row with the greatest id for each instrument.
func (s *SnapshotStore) LatestPerInstrument(ctx context.Context) (map[string]domain.MarketSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT ON (instrument_id) `+snapshotSelectCols+`
		 FROM market_snapshots ORDER BY instrument_id, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: latest snapshots: %w", err)
	}
	defer rows.Close()

	list, err := scanSnapshotRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan latest snapshots: %w", err)
	}
	out := make(map[string]domain.MarketSnapshot, len(list))
	for _, snap := range list {
		out[snap.InstrumentID] = snap
	}
	return out, nil
}
