// Package scoring resolves locked picks against the current market snapshots
// and aggregates per-participant scores. Everything here is a pure function of
// its inputs; persistence lives in the service layer.
package scoring

import (
	"sort"
	"time"

	"github.com/alanyoungcy/mentionleague/internal/domain"
)

// Outcome is the resolution state of a single pick.
type Outcome string

const (
	OutcomeWon     Outcome = "won"
	OutcomeLost    Outcome = "lost"
	OutcomePending Outcome = "pending"
)

// Thresholds decide when an unresolved market price counts as settled.
type Thresholds struct {
	WinPrice  float64
	LossPrice float64
}

// DefaultThresholds treats a YES price of 0.99 or more as a win and 0.01 or
// less as a loss.
func DefaultThresholds() Thresholds {
	return Thresholds{WinPrice: 0.99, LossPrice: 0.01}
}

// Classify maps a joined snapshot to an outcome. A nil snapshot is pending.
func (t Thresholds) Classify(s *domain.MarketSnapshot) Outcome {
	if s == nil {
		return OutcomePending
	}
	switch s.Result {
	case domain.ResultYes:
		return OutcomeWon
	case domain.ResultNo:
		return OutcomeLost
	case domain.ResultNone:
		if s.YesPrice >= t.WinPrice {
			return OutcomeWon
		}
		if s.YesPrice <= t.LossPrice {
			return OutcomeLost
		}
	}
	return OutcomePending
}

// Index is the join side of resolution: the current snapshot per instrument
// plus a by-title view used when a pick has no instrument id yet.
type Index struct {
	byInstrument map[string]domain.MarketSnapshot
	byTitle      map[string]domain.MarketSnapshot
}

// NewIndex builds an Index from the latest snapshot of each instrument. When
// two instruments share a display title the one with the greater Seq owns it.
func NewIndex(latest map[string]domain.MarketSnapshot) *Index {
	ix := &Index{
		byInstrument: latest,
		byTitle:      make(map[string]domain.MarketSnapshot, len(latest)),
	}
	for _, s := range latest {
		if prev, ok := ix.byTitle[s.DisplayTitle]; ok && prev.Seq > s.Seq {
			continue
		}
		ix.byTitle[s.DisplayTitle] = s
	}
	return ix
}

// Match is the result of looking a pick up in the Index.
type Match struct {
	Snapshot *domain.MarketSnapshot
	ByTitle  bool
	// Divergent is set when a linked pick joined by instrument id while its
	// option title currently points at a different instrument.
	Divergent bool
}

// Match joins p to a snapshot. A linked pick joins on instrument id only and
// never falls back to the title; an unlinked pick joins on its option name.
func (ix *Index) Match(p domain.Pick) Match {
	if p.Linked() {
		s, ok := ix.byInstrument[p.MarketInstrumentID]
		if !ok {
			return Match{}
		}
		m := Match{Snapshot: &s}
		if other, ok := ix.byTitle[p.Option]; ok && other.InstrumentID != s.InstrumentID {
			m.Divergent = true
		}
		return m
	}
	s, ok := ix.byTitle[p.Option]
	if !ok {
		return Match{}
	}
	return Match{Snapshot: &s, ByTitle: true}
}

// PickResult is one resolved pick.
type PickResult struct {
	Pick      domain.Pick
	Snapshot  *domain.MarketSnapshot
	Outcome   Outcome
	Earned    int
	ByTitle   bool
	Divergent bool
}

// Result is the output of a resolution run.
type Result struct {
	Picks  []PickResult
	Scores []domain.ScoreRecord
}

// Divergences returns the picks whose id join disagreed with the title join.
func (r Result) Divergences() []PickResult {
	var out []PickResult
	for _, pr := range r.Picks {
		if pr.Divergent {
			out = append(out, pr)
		}
	}
	return out
}

// Resolve classifies every pick and aggregates one ScoreRecord per participant
// that has at least one pick. Scores are ordered by total points descending,
// then by participant name, and stamped with now.
func Resolve(picks []domain.Pick, latest map[string]domain.MarketSnapshot, th Thresholds, now time.Time) Result {
	ix := NewIndex(latest)
	res := Result{Picks: make([]PickResult, 0, len(picks))}

	totals := make(map[string]*domain.ScoreRecord)
	for _, p := range picks {
		m := ix.Match(p)
		pr := PickResult{
			Pick:      p,
			Snapshot:  m.Snapshot,
			Outcome:   th.Classify(m.Snapshot),
			ByTitle:   m.ByTitle,
			Divergent: m.Divergent,
		}
		if pr.Outcome == OutcomeWon {
			pr.Earned = p.PointValue
		}
		res.Picks = append(res.Picks, pr)

		rec, ok := totals[p.Participant]
		if !ok {
			rec = &domain.ScoreRecord{Participant: p.Participant, UpdatedAt: now}
			totals[p.Participant] = rec
		}
		if pr.Outcome == OutcomeWon {
			rec.TotalPoints += pr.Earned
			rec.CorrectPicks++
		}
	}

	res.Scores = make([]domain.ScoreRecord, 0, len(totals))
	for _, rec := range totals {
		res.Scores = append(res.Scores, *rec)
	}
	SortScores(res.Scores)
	return res
}

// SortScores orders records by total points descending, then name ascending.
func SortScores(scores []domain.ScoreRecord) {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].TotalPoints != scores[j].TotalPoints {
			return scores[i].TotalPoints > scores[j].TotalPoints
		}
		return scores[i].Participant < scores[j].Participant
	})
}
