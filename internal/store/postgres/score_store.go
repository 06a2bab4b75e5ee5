package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/mentionleague/internal/domain"
)

// ScoreStore implements domain.ScoreStore using PostgreSQL.
type ScoreStore struct {
	pool *pgxpool.Pool
}

// NewScoreStore creates a new ScoreStore backed by the given connection pool.
func NewScoreStore(pool *pgxpool.Pool) *ScoreStore {
	return &ScoreStore{pool: pool}
}

// Replace upserts every record and deletes participants that are not in
// records, all in one transaction.
func (s *ScoreStore) Replace(ctx context.Context, records []domain.ScoreRecord) error {
	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.Participant)
	}

	const upsert = `
		INSERT INTO scores (participant, total_points, correct_picks, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (participant) DO UPDATE SET
			total_points  = EXCLUDED.total_points,
			correct_picks = EXCLUDED.correct_picks,
			updated_at    = EXCLUDED.updated_at`

	return inTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM scores WHERE NOT (participant = ANY($1))`, names); err != nil {
			return fmt.Errorf("postgres: prune scores: %w", err)
		}
		if len(records) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, r := range records {
			batch.Queue(upsert, r.Participant, r.TotalPoints, r.CorrectPicks, r.UpdatedAt)
		}
		br := tx.SendBatch(ctx, batch)
		for _, r := range records {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("postgres: upsert score %s: %w", r.Participant, err)
			}
		}
		return br.Close()
	})
}

// List returns the leaderboard ordered by total points, then name.
func (s *ScoreStore) List(ctx context.Context) ([]domain.ScoreRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT participant, total_points, correct_picks, updated_at
		FROM scores ORDER BY total_points DESC, participant`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list scores: %w", err)
	}
	defer rows.Close()

	var out []domain.ScoreRecord
	for rows.Next() {
		var r domain.ScoreRecord
		if err := rows.Scan(&r.Participant, &r.TotalPoints, &r.CorrectPicks, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan score: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list scores rows: %w", err)
	}
	return out, nil
}
