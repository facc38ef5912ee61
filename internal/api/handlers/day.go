package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/tradekit/bandtrack/internal/capture"
	"github.com/tradekit/bandtrack/internal/contracts"
	"github.com/tradekit/bandtrack/pkg/logger"
)

// CaptureEngine is the slice of the capture engine the HTTP layer uses.
type CaptureEngine interface {
	Capture(ctx context.Context, date time.Time, cp contracts.Checkpoint, force bool) (*capture.Result, error)
	BackfillRange(ctx context.Context, from, to time.Time, force bool) (*capture.BackfillSummary, error)
	RefreshToday(ctx context.Context) ([]capture.Result, error)
}

// DayHandler serves daily aggregates and the capture entry points.
type DayHandler struct {
	aggregates contracts.AggregateRepository
	engine     CaptureEngine
	loc        *time.Location
	logger     *logger.Logger
}

// NewDayHandler creates a day handler.
func NewDayHandler(aggregates contracts.AggregateRepository, engine CaptureEngine, loc *time.Location, log *logger.Logger) *DayHandler {
	return &DayHandler{aggregates: aggregates, engine: engine, loc: loc, logger: log}
}

// GetDay returns the aggregate for a date.
// GET /api/days/{date}
//
// Requesting today's date first triggers the lazy refresh, so checkpoints
// whose instant has passed are captured on read.
func (h *DayHandler) GetDay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	date, ok := parseDate(mux.Vars(r)["date"])
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid date (expected YYYY-MM-DD)")
		return
	}

	if h.isToday(date) {
		if _, err := h.engine.RefreshToday(ctx); err != nil {
			// Reads still serve whatever is already captured.
			h.logger.WithError(err).Warn("Lazy refresh failed")
		}
	}

	agg, err := h.aggregates.GetByDate(ctx, date)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to retrieve day")
		return
	}
	if agg == nil {
		respondError(w, http.StatusNotFound, "No data for date")
		return
	}

	respondJSON(w, http.StatusOK, agg)
}

// ListDays returns aggregates for a date range.
// GET /api/days?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *DayHandler) ListDays(w http.ResponseWriter, r *http.Request) {
	from, okFrom := parseDate(r.URL.Query().Get("from"))
	to, okTo := parseDate(r.URL.Query().Get("to"))
	if !okFrom || !okTo {
		respondError(w, http.StatusBadRequest, "Invalid 'from' or 'to' date (expected YYYY-MM-DD)")
		return
	}

	aggs, err := h.aggregates.ListRange(r.Context(), from, to)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list days")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"days":  aggs,
		"count": len(aggs),
	})
}

// CaptureRequest represents a forced capture request
type CaptureRequest struct {
	Date       string `json:"date"`
	Checkpoint string `json:"checkpoint"`
	Force      bool   `json:"force"`
}

// Capture triggers a single capture.
// POST /api/capture
func (h *DayHandler) Capture(w http.ResponseWriter, r *http.Request) {
	var req CaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	date, ok := parseDate(req.Date)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid date (expected YYYY-MM-DD)")
		return
	}
	cp, err := contracts.ParseCheckpoint(req.Checkpoint)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Unknown checkpoint")
		return
	}

	result, err := h.engine.Capture(r.Context(), date, cp, req.Force)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Capture failed")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// BackfillRequest represents a range backfill request
type BackfillRequest struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Force bool   `json:"force"`
}

// Backfill refreshes a date range.
// POST /api/backfill
func (h *DayHandler) Backfill(w http.ResponseWriter, r *http.Request) {
	var req BackfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	from, okFrom := parseDate(req.From)
	to, okTo := parseDate(req.To)
	if !okFrom || !okTo || to.Before(from) {
		respondError(w, http.StatusBadRequest, "Invalid date range")
		return
	}

	summary, err := h.engine.BackfillRange(r.Context(), from, to, req.Force)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Backfill failed")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

func (h *DayHandler) isToday(date time.Time) bool {
	now := time.Now().In(h.loc)
	return date.Year() == now.Year() && date.Month() == now.Month() && date.Day() == now.Day()
}
