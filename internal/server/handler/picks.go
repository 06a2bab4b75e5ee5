package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/alanyoungcy/mentionleague/internal/domain"
	"github.com/alanyoungcy/mentionleague/internal/ingest"
)

// maxUploadBytes caps pick sheet uploads.
const maxUploadBytes = 10 << 20

type optionsResponse struct {
	Say     []domain.CanonicalOption `json:"say"`
	Mention []domain.CanonicalOption `json:"mention"`
	Aliases []domain.AliasEntry      `json:"aliases"`
	Events  map[string]string        `json:"events"`
}

// Options returns the option tables, aliases and event tickers.
// GET /api/options
func (h *LeagueHandler) Options(w http.ResponseWriter, r *http.Request) {
	events := make(map[string]string, len(domain.Categories))
	for _, cat := range domain.Categories {
		if ev, ok := h.league.EventGroup(cat); ok {
			events[string(cat)] = ev
		}
	}
	writeJSON(w, http.StatusOK, optionsResponse{
		Say:     h.league.Options(domain.CategorySay),
		Mention: h.league.Options(domain.CategoryMention),
		Aliases: h.league.Aliases(),
		Events:  events,
	})
}

type previewResponse struct {
	Valid    bool                       `json:"valid"`
	Sheet    *ingest.Sheet              `json:"sheet"`
	Failures []domain.ValidationFailure `json:"failures"`
	Messages []string                   `json:"messages"`
}

// UploadPicks parses a pick sheet from the multipart "file" field. With
// dry_run=1 it only previews and validates; otherwise the picks are locked
// in, all or nothing.
// POST /api/picks/upload[?dry_run=1]
func (h *LeagueHandler) UploadPicks(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}

	sheet, err := ingest.Parse(header.Filename, data)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ingest.ErrUnsupportedFormat) {
			status = http.StatusUnsupportedMediaType
		}
		writeError(w, status, err.Error())
		return
	}

	if queryBool(r, "dry_run") {
		failures := h.league.Validate(sheet.Rows)
		resp := newValidationResponse(failures)
		writeJSON(w, http.StatusOK, previewResponse{
			Valid:    len(failures) == 0,
			Sheet:    sheet,
			Failures: failures,
			Messages: resp.Messages,
		})
		return
	}

	res, err := h.league.LockIn(r.Context(), sheet.Rows)
	if err != nil {
		writeServiceError(w, r, h.logger, "lock in picks", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// ListPicks returns every locked pick.
// GET /api/picks
func (h *LeagueHandler) ListPicks(w http.ResponseWriter, r *http.Request) {
	picks, err := h.league.Picks(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "list picks", err)
		return
	}
	if picks == nil {
		picks = []domain.Pick{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"picks": picks, "total": len(picks)})
}

// ClearPicks deletes every pick.
// DELETE /api/picks
func (h *LeagueHandler) ClearPicks(w http.ResponseWriter, r *http.Request) {
	n, err := h.league.ClearPicks(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "clear picks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"cleared": n})
}
