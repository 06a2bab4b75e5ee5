package domain

import (
	"sort"
	"time"
)

// Market results as posted by the venue.
const (
	ResultNone = ""
	ResultYes  = "yes"
	ResultNo   = "no"
)

// MarketSnapshot is one observation of a market instrument. Seq is the
// storage insertion order and decides which row is current.
type MarketSnapshot struct {
	Seq          int64     `json:"seq"`
	InstrumentID string    `json:"instrument_id"`
	EventGroupID string    `json:"event_group_id"`
	DisplayTitle string    `json:"display_title"`
	YesPrice     float64   `json:"yes_price"`
	YesBid       float64   `json:"yes_bid"`
	YesAsk       float64   `json:"yes_ask"`
	Status       string    `json:"status"`
	Result       string    `json:"result"`
	ObservedAt   time.Time `json:"observed_at"`
}

// MarketObservation is a parsed venue row waiting to be appended.
type MarketObservation struct {
	InstrumentID string  `json:"instrument_id"`
	EventGroupID string  `json:"event_group_id"`
	DisplayTitle string  `json:"display_title"`
	YesPrice     float64 `json:"yes_price"`
	YesBid       float64 `json:"yes_bid"`
	YesAsk       float64 `json:"yes_ask"`
	Status       string  `json:"status"`
	Result       string  `json:"result"`
}

// LatestSlice returns the rows sharing the greatest ObservedAt, sorted by title.
func LatestSlice(history []MarketSnapshot) []MarketSnapshot {
	if len(history) == 0 {
		return nil
	}
	latest := history[0].ObservedAt
	for _, s := range history[1:] {
		if s.ObservedAt.After(latest) {
			latest = s.ObservedAt
		}
	}
	var out []MarketSnapshot
	for _, s := range history {
		if s.ObservedAt.Equal(latest) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DisplayTitle < out[j].DisplayTitle
	})
	return out
}
