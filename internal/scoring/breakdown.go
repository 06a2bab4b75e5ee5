package scoring

import (
	"sort"

	"github.com/alanyoungcy/mentionleague/internal/domain"
)

// PickRow is the display form of one resolved pick.
type PickRow struct {
	PickID       int64   `json:"pick_id"`
	Option       string  `json:"option"`
	Potential    int     `json:"potential"`
	Earned       int     `json:"earned"`
	Outcome      Outcome `json:"outcome"`
	Result       string  `json:"result"`
	MarketStatus string  `json:"market_status"`
	YesPrice     float64 `json:"yes_price"`
	YesBid       float64 `json:"yes_bid"`
	YesAsk       float64 `json:"yes_ask"`
	InstrumentID string  `json:"instrument_id"`
	Divergent    bool    `json:"divergent,omitempty"`
}

// ParticipantBreakdown groups a participant's resolved picks.
type ParticipantBreakdown struct {
	Participant string    `json:"participant"`
	Earned      int       `json:"earned"`
	Correct     int       `json:"correct"`
	Pending     int       `json:"pending"`
	Picks       []PickRow `json:"picks"`
}

// Breakdown groups pick results by participant, sorted by earned points
// descending then name. Picks within a participant keep ledger order.
func Breakdown(results []PickResult) []ParticipantBreakdown {
	byName := make(map[string]*ParticipantBreakdown)
	var order []string
	for _, pr := range results {
		b, ok := byName[pr.Pick.Participant]
		if !ok {
			b = &ParticipantBreakdown{Participant: pr.Pick.Participant}
			byName[pr.Pick.Participant] = b
			order = append(order, pr.Pick.Participant)
		}
		row := PickRow{
			PickID:       pr.Pick.ID,
			Option:       pr.Pick.Option,
			Potential:    pr.Pick.PointValue,
			Earned:       pr.Earned,
			Outcome:      pr.Outcome,
			Result:       resultLabel(pr.Outcome),
			InstrumentID: pr.Pick.MarketInstrumentID,
			Divergent:    pr.Divergent,
		}
		if pr.Snapshot != nil {
			row.MarketStatus = pr.Snapshot.Status
			row.YesPrice = pr.Snapshot.YesPrice
			row.YesBid = pr.Snapshot.YesBid
			row.YesAsk = pr.Snapshot.YesAsk
			if row.InstrumentID == "" {
				row.InstrumentID = pr.Snapshot.InstrumentID
			}
		}
		b.Picks = append(b.Picks, row)
		b.Earned += pr.Earned
		switch pr.Outcome {
		case OutcomeWon:
			b.Correct++
		case OutcomePending:
			b.Pending++
		}
	}

	out := make([]ParticipantBreakdown, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Earned != out[j].Earned {
			return out[i].Earned > out[j].Earned
		}
		return out[i].Participant < out[j].Participant
	})
	return out
}

// Standing is a ranked leaderboard row.
type Standing struct {
	Rank int `json:"rank"`
	domain.ScoreRecord
}

// Rank assigns 1-based positions to scores after sorting them.
func Rank(scores []domain.ScoreRecord) []Standing {
	sorted := make([]domain.ScoreRecord, len(scores))
	copy(sorted, scores)
	SortScores(sorted)
	out := make([]Standing, len(sorted))
	for i, s := range sorted {
		out[i] = Standing{Rank: i + 1, ScoreRecord: s}
	}
	return out
}

// resultLabel is the venue-style label of a classified outcome; pending
// picks have none.
func resultLabel(o Outcome) string {
	switch o {
	case OutcomeWon:
		return domain.ResultYes
	case OutcomeLost:
		return domain.ResultNo
	default:
		return domain.ResultNone
	}
}
