// Package memory implements the league stores in process memory. It backs the
// "memory" storage mode and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/mentionleague/internal/domain"
)

// PickStore implements domain.PickStore.
type PickStore struct {
	mu     sync.Mutex
	nextID int64
	picks  []domain.Pick
}

// NewPickStore returns an empty PickStore.
func NewPickStore() *PickStore {
	return &PickStore{}
}

// InsertBatch appends picks and assigns their ids.
func (s *PickStore) InsertBatch(_ context.Context, picks []domain.Pick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range picks {
		s.nextID++
		p.ID = s.nextID
		s.picks = append(s.picks, p)
	}
	return nil
}

// List returns a copy of every pick in insertion order.
func (s *PickStore) List(_ context.Context) ([]domain.Pick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Pick, len(s.picks))
	copy(out, s.picks)
	return out, nil
}

// ListUnlinked returns the picks without an instrument id.
func (s *PickStore) ListUnlinked(_ context.Context) ([]domain.Pick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Pick
	for _, p := range s.picks {
		if !p.Linked() {
			out = append(out, p)
		}
	}
	return out, nil
}

// LinkInstrument sets the instrument of an unlinked pick.
func (s *PickStore) LinkInstrument(_ context.Context, id int64, instrumentID, eventGroupID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.picks {
		if s.picks[i].ID != id {
			continue
		}
		if s.picks[i].Linked() {
			return false, nil
		}
		s.picks[i].MarketInstrumentID = instrumentID
		s.picks[i].EventGroupID = eventGroupID
		return true, nil
	}
	return false, nil
}

// Clear removes every pick.
func (s *PickStore) Clear(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.picks))
	s.picks = nil
	return n, nil
}

// Count returns the number of picks.
func (s *PickStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.picks)), nil
}

// SnapshotStore implements domain.SnapshotStore.
type SnapshotStore struct {
	mu   sync.Mutex
	seq  int64
	rows []domain.MarketSnapshot
}

// NewSnapshotStore returns an empty SnapshotStore.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// AppendBatch stores every observation with the shared timestamp.
func (s *SnapshotStore) AppendBatch(_ context.Context, obs []domain.MarketObservation, observedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range obs {
		s.seq++
		s.rows = append(s.rows, domain.MarketSnapshot{
			Seq:          s.seq,
			InstrumentID: o.InstrumentID,
			EventGroupID: o.EventGroupID,
			DisplayTitle: o.DisplayTitle,
			YesPrice:     o.YesPrice,
			YesBid:       o.YesBid,
			YesAsk:       o.YesAsk,
			Status:       o.Status,
			Result:       o.Result,
			ObservedAt:   observedAt,
		})
	}
	return nil
}

// ListByEventGroup returns the event group history ordered by time then sequence.
func (s *SnapshotStore) ListByEventGroup(_ context.Context, eventGroupID string) ([]domain.MarketSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MarketSnapshot
	for _, r := range s.rows {
		if r.EventGroupID == eventGroupID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ObservedAt.Equal(out[j].ObservedAt) {
			return out[i].ObservedAt.Before(out[j].ObservedAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

// ListAll returns every snapshot in sequence order.
func (s *SnapshotStore) ListAll(_ context.Context) ([]domain.MarketSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.MarketSnapshot, len(s.rows))
	copy(out, s.rows)
	return out, nil
}

// LatestPerInstrument returns the greatest-sequence row of each instrument.
func (s *SnapshotStore) LatestPerInstrument(_ context.Context) (map[string]domain.MarketSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.MarketSnapshot)
	for _, r := range s.rows {
		if prev, ok := out[r.InstrumentID]; !ok || r.Seq > prev.Seq {
			out[r.InstrumentID] = r
		}
	}
	return out, nil
}

// ScoreStore implements domain.ScoreStore.
type ScoreStore struct {
	mu     sync.Mutex
	scores map[string]domain.ScoreRecord
}

// NewScoreStore returns an empty ScoreStore.
func NewScoreStore() *ScoreStore {
	return &ScoreStore{scores: make(map[string]domain.ScoreRecord)}
}

// Replace makes records the complete score set.
func (s *ScoreStore) Replace(_ context.Context, records []domain.ScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string]domain.ScoreRecord, len(records))
	for _, r := range records {
		next[r.Participant] = r
	}
	s.scores = next
	return nil
}

// List returns scores ordered by total points descending, then name.
func (s *ScoreStore) List(_ context.Context) ([]domain.ScoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ScoreRecord, 0, len(s.scores))
	for _, r := range s.scores {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalPoints != out[j].TotalPoints {
			return out[i].TotalPoints > out[j].TotalPoints
		}
		return out[i].Participant < out[j].Participant
	})
	return out, nil
}

// AuditStore implements domain.AuditStore.
type AuditStore struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	now     func() time.Time
}

// NewAuditStore returns an empty AuditStore.
func NewAuditStore() *AuditStore {
	return &AuditStore{now: time.Now}
}

// Log appends an entry.
func (s *AuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, domain.AuditEntry{
		ID:        int64(len(s.entries) + 1),
		Event:     event,
		Detail:    detail,
		CreatedAt: s.now(),
	})
	return nil
}

// List returns entries newest first.
func (s *AuditStore) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AuditEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if opts.Since != nil && e.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && e.CreatedAt.After(*opts.Until) {
			continue
		}
		out = append(out, e)
	}
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Compile-time interface checks.
var (
	_ domain.PickStore     = (*PickStore)(nil)
	_ domain.SnapshotStore = (*SnapshotStore)(nil)
	_ domain.ScoreStore    = (*ScoreStore)(nil)
	_ domain.AuditStore    = (*AuditStore)(nil)
)
