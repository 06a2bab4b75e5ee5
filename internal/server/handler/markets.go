package handler

import (
	"net/http"

	"github.com/alanyoungcy/mentionleague/internal/domain"
)

// RefreshMarkets fetches every event group and appends one snapshot batch.
// A gateway fault answers 502 and leaves stored data unchanged.
// POST /api/markets/refresh
func (h *LeagueHandler) RefreshMarkets(w http.ResponseWriter, r *http.Request) {
	res, err := h.league.RefreshMarkets(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "refresh markets", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// LatestPerInstrument returns the newest snapshot of every instrument.
// GET /api/markets/latest
func (h *LeagueHandler) LatestPerInstrument(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.league.LatestPerInstrument(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "latest snapshots", err)
		return
	}
	writeSnapshots(w, "", snaps)
}

// History returns the full snapshot history of an event group.
// GET /api/markets/{event}/history
func (h *LeagueHandler) History(w http.ResponseWriter, r *http.Request) {
	_, ev, ok := h.resolveEvent(pathParam(r, "event"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown event group")
		return
	}
	snaps, err := h.league.History(r.Context(), ev)
	if err != nil {
		writeServiceError(w, r, h.logger, "market history", err)
		return
	}
	writeSnapshots(w, ev, snaps)
}

// Latest returns the most recent batch of an event group.
// GET /api/markets/{event}/latest
func (h *LeagueHandler) Latest(w http.ResponseWriter, r *http.Request) {
	_, ev, ok := h.resolveEvent(pathParam(r, "event"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown event group")
		return
	}
	snaps, err := h.league.Latest(r.Context(), ev)
	if err != nil {
		writeServiceError(w, r, h.logger, "latest batch", err)
		return
	}
	writeSnapshots(w, ev, snaps)
}

// Chart renders the YES price history of an event group as PNG. picked=1
// keeps only options somebody picked.
// GET /api/markets/{event}/chart.png[?picked=1]
func (h *LeagueHandler) Chart(w http.ResponseWriter, r *http.Request) {
	cat, ev, ok := h.resolveEvent(pathParam(r, "event"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown event group")
		return
	}
	snaps, err := h.league.ChartSeries(r.Context(), cat, queryBool(r, "picked"))
	if err != nil {
		writeServiceError(w, r, h.logger, "chart series", err)
		return
	}
	img, err := h.charts.PriceHistory(ev, snaps)
	if err != nil {
		writeServiceError(w, r, h.logger, "render chart", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(img)
}

func writeSnapshots(w http.ResponseWriter, eventGroup string, snaps []domain.MarketSnapshot) {
	if snaps == nil {
		snaps = []domain.MarketSnapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"event_group": eventGroup,
		"snapshots":   snaps,
		"total":       len(snaps),
	})
}
