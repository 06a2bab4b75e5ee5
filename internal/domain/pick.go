package domain

import (
	"fmt"
	"strings"
	"time"
)

// Pick is a participant's locked-in choice. PointValue is frozen at lock time.
// Only MarketInstrumentID and EventGroupID may change, and only once from empty.
type Pick struct {
	ID                 int64     `json:"id"`
	SubmittedAt        string    `json:"submitted_at"`
	Participant        string    `json:"participant"`
	Option             string    `json:"option"`
	PointValue         int       `json:"point_value"`
	MarketInstrumentID string    `json:"market_instrument_id"`
	EventGroupID       string    `json:"event_group_id"`
	LockedAt           time.Time `json:"locked_at"`
}

// Linked reports whether the pick already carries a market instrument id.
func (p Pick) Linked() bool {
	return p.MarketInstrumentID != ""
}

// PickCell is one raw pick-bearing cell of an uploaded row.
type PickCell struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// SubmissionRow is one uploaded row before validation. Row is 1-based.
type SubmissionRow struct {
	Row         int        `json:"row"`
	Participant string     `json:"participant"`
	SubmittedAt string     `json:"submitted_at"`
	Picks       []PickCell `json:"picks"`
}

// IsPlaceholder reports whether a raw cell carries no pick at all.
func IsPlaceholder(raw string) bool {
	v := strings.TrimSpace(raw)
	return v == "" || strings.EqualFold(v, "nan") || strings.EqualFold(v, "none")
}

// ValidationFailure describes one cell that did not canonicalize.
type ValidationFailure struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

func (f ValidationFailure) String() string {
	return fmt.Sprintf("Row %d, %s: '%s' %s", f.Row, f.Column, f.Value, f.Reason)
}

// ValidationError rejects an entire upload batch.
type ValidationError struct {
	Failures []ValidationFailure
}

func (e *ValidationError) Error() string {
	lines := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		lines = append(lines, f.String())
	}
	return fmt.Sprintf("%d invalid pick(s):\n  - %s", len(e.Failures), strings.Join(lines, "\n  - "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
