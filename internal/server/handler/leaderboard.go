package handler

import (
	"encoding/json"
	"net/http"

	"github.com/alanyoungcy/mentionleague/internal/domain"
	"github.com/alanyoungcy/mentionleague/internal/scoring"
)

// Leaderboard returns the stored standings.
// GET /api/leaderboard
func (h *LeagueHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	standings, err := h.league.Leaderboard(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "leaderboard", err)
		return
	}
	if standings == nil {
		standings = []scoring.Standing{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"standings": standings})
}

// Breakdown returns each participant's picks with their current outcome.
// GET /api/leaderboard/picks
func (h *LeagueHandler) Breakdown(w http.ResponseWriter, r *http.Request) {
	rows, err := h.league.Breakdown(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "breakdown", err)
		return
	}
	if rows == nil {
		rows = []scoring.ParticipantBreakdown{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"participants": rows})
}

// Finalize refreshes, backfills and resolves. A gateway fault still returns
// 200 with the warning set, since scores were resolved from stored data.
// POST /api/leaderboard/finalize
func (h *LeagueHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	res, err := h.league.Finalize(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "finalize", err)
		return
	}
	if res.Standings == nil {
		res.Standings = []scoring.Standing{}
	}
	writeJSON(w, http.StatusOK, res)
}

type resolveResponse struct {
	Standings []scoring.Standing `json:"standings"`
	Picks     int                `json:"picks"`
	Outcomes  map[string]int     `json:"outcomes"`
	Divergent int                `json:"divergent"`
}

// Resolve recomputes the leaderboard from the stored snapshots only.
// POST /api/leaderboard/resolve
func (h *LeagueHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	res, err := h.league.Resolve(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "resolve", err)
		return
	}
	outcomes := map[string]int{}
	for _, pr := range res.Picks {
		outcomes[string(pr.Outcome)]++
	}
	standings := scoring.Rank(res.Scores)
	if standings == nil {
		standings = []scoring.Standing{}
	}
	writeJSON(w, http.StatusOK, resolveResponse{
		Standings: standings,
		Picks:     len(res.Picks),
		Outcomes:  outcomes,
		Divergent: len(res.Divergences()),
	})
}

// Archive exports the league tables to object storage.
// POST /api/archive
func (h *LeagueHandler) Archive(w http.ResponseWriter, r *http.Request) {
	if h.archiver == nil {
		writeError(w, http.StatusServiceUnavailable, "archiving is not configured")
		return
	}
	res, err := h.archiver.Export(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "archive", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Events replays the league event stream.
// GET /api/events?after=0&limit=100
func (h *LeagueHandler) Events(w http.ResponseWriter, r *http.Request) {
	after := r.URL.Query().Get("after")
	if after == "" {
		after = "0"
	}
	msgs, err := h.league.Events(r.Context(), after, queryInt(r, "limit", 100, 1000))
	if err != nil {
		writeServiceError(w, r, h.logger, "events", err)
		return
	}

	type event struct {
		ID      string `json:"id"`
		Payload any    `json:"payload"`
	}
	out := make([]event, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, event{ID: m.ID, Payload: rawOrString(m)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

func rawOrString(m domain.StreamMessage) any {
	if json.Valid(m.Payload) {
		return json.RawMessage(m.Payload)
	}
	return string(m.Payload)
}
