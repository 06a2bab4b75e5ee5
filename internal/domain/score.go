package domain

import "time"

// ScoreRecord is the materialized per-participant aggregate.
type ScoreRecord struct {
	Participant  string    `json:"participant"`
	TotalPoints  int       `json:"total_points"`
	CorrectPicks int       `json:"correct_picks"`
	UpdatedAt    time.Time `json:"updated_at"`
}
