package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/mentionleague/internal/domain"
)

// PickStore implements domain.PickStore using PostgreSQL.
type PickStore struct {
	pool *pgxpool.Pool
}

// NewPickStore creates a new PickStore backed by the given connection pool.
func NewPickStore(pool *pgxpool.Pool) *PickStore {
	return &PickStore{pool: pool}
}

const pickSelectCols = `id, submitted_at, participant, option_name, point_value,
	market_instrument_id, event_group_id, locked_at`

func scanPickRows(rows pgx.Rows) ([]domain.Pick, error) {
	var picks []domain.Pick
	for rows.Next() {
		var p domain.Pick
		if err := rows.Scan(
			&p.ID, &p.SubmittedAt, &p.Participant, &p.Option, &p.PointValue,
			&p.MarketInstrumentID, &p.EventGroupID, &p.LockedAt,
		); err != nil {
			return nil, err
		}
		picks = append(picks, p)
	}
	return picks, rows.Err()
}

// InsertBatch inserts every pick inside one transaction so an upload is
// stored entirely or not at all.
func (s *PickStore) InsertBatch(ctx context.Context, picks []domain.Pick) error {
	if len(picks) == 0 {
		return nil
	}

	const query = `
		INSERT INTO picks (
			submitted_at, participant, option_name, point_value,
			market_instrument_id, event_group_id, locked_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	batch := &pgx.Batch{}
	for _, p := range picks {
		batch.Queue(query,
			p.SubmittedAt, p.Participant, p.Option, p.PointValue,
			p.MarketInstrumentID, p.EventGroupID, p.LockedAt,
		)
	}

	return inTx(ctx, s.pool, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		for i := range picks {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("postgres: insert pick batch item %d: %w", i, err)
			}
		}
		return br.Close()
	})
}

// List returns every pick in insertion order.
func (s *PickStore) List(ctx context.Context) ([]domain.Pick, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pickSelectCols+` FROM picks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list picks: %w", err)
	}
	defer rows.Close()

	picks, err := scanPickRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan picks: %w", err)
	}
	return picks, nil
}

// ListUnlinked returns the picks still waiting for an instrument id.
func (s *PickStore) ListUnlinked(ctx context.Context) ([]domain.Pick, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pickSelectCols+` FROM picks WHERE market_instrument_id = '' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list unlinked picks: %w", err)
	}
	defer rows.Close()

	picks, err := scanPickRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan unlinked picks: %w", err)
	}
	return picks, nil
}

// LinkInstrument fills the instrument id and event group of a pick. Rows that
// already carry an instrument id are left untouched.
func (s *PickStore) LinkInstrument(ctx context.Context, id int64, instrumentID, eventGroupID string) (bool, error) {
	const query = `
		UPDATE picks
		SET market_instrument_id = $2, event_group_id = $3
		WHERE id = $1 AND market_instrument_id = ''`

	tag, err := s.pool.Exec(ctx, query, id, instrumentID, eventGroupID)
	if err != nil {
		return false, fmt.Errorf("postgres: link pick %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Clear deletes every pick and returns how many were removed.
func (s *PickStore) Clear(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM picks`)
	if err != nil {
		return 0, fmt.Errorf("postgres: clear picks: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Count returns the number of stored picks.
func (s *PickStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM picks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count picks: %w", err)
	}
	return n, nil
}
