package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/tradekit/bandtrack/internal/contracts"
	"github.com/tradekit/bandtrack/pkg/logger"
)

// PredictionService is the slice of the prediction service the HTTP layer
// uses.
type PredictionService interface {
	GetCanonical(ctx context.Context, date time.Time) ([]*contracts.PredictionRecord, error)
	CreateOrGet(ctx context.Context, date time.Time, forceRegenerate bool) ([]*contracts.PredictionRecord, error)
	PublishBand(ctx context.Context, date time.Time, low, high float64, source string) (*contracts.DailyAggregate, error)
	BackfillActuals(ctx context.Context, date time.Time) (int, error)
}

// PredictionHandler serves prediction reads, generation and band publish.
type PredictionHandler struct {
	service PredictionService
	logger  *logger.Logger
}

// NewPredictionHandler creates a prediction handler.
func NewPredictionHandler(service PredictionService, log *logger.Logger) *PredictionHandler {
	return &PredictionHandler{service: service, logger: log}
}

// GetPredictions returns the canonical predictions for a date.
// GET /api/predictions/{date}
func (h *PredictionHandler) GetPredictions(w http.ResponseWriter, r *http.Request) {
	date, ok := parseDate(mux.Vars(r)["date"])
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid date (expected YYYY-MM-DD)")
		return
	}

	records, err := h.service.GetCanonical(r.Context(), date)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to retrieve predictions")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date":        date.Format(contracts.DateFormat),
		"predictions": records,
	})
}

// Generate creates (or returns) the canonical predictions for a date.
// POST /api/predictions/{date}?force=true
func (h *PredictionHandler) Generate(w http.ResponseWriter, r *http.Request) {
	date, ok := parseDate(mux.Vars(r)["date"])
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid date (expected YYYY-MM-DD)")
		return
	}
	force := r.URL.Query().Get("force") == "true"

	records, err := h.service.CreateOrGet(r.Context(), date, force)
	if err != nil {
		if errors.Is(err, contracts.ErrCannotPredict) {
			respondError(w, http.StatusUnprocessableEntity, "Cannot predict: no anchor price available")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to generate predictions")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date":        date.Format(contracts.DateFormat),
		"predictions": records,
	})
}

// BandRequest represents a band publish request
type BandRequest struct {
	Low    float64 `json:"low"`
	High   float64 `json:"high"`
	Source string  `json:"source"`
}

// PublishBand locks the band for a date.
// POST /api/days/{date}/band
func (h *PredictionHandler) PublishBand(w http.ResponseWriter, r *http.Request) {
	date, ok := parseDate(mux.Vars(r)["date"])
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid date (expected YYYY-MM-DD)")
		return
	}

	var req BandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Source == "" {
		req.Source = "manual"
	}

	agg, err := h.service.PublishBand(r.Context(), date, req.Low, req.High, req.Source)
	if err != nil {
		if errors.Is(err, contracts.ErrBandLocked) {
			respondError(w, http.StatusConflict, "Band already locked for date")
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, agg)
}

// BackfillActuals completes a date's predictions with captured prices.
// POST /api/predictions/{date}/actuals
func (h *PredictionHandler) BackfillActuals(w http.ResponseWriter, r *http.Request) {
	date, ok := parseDate(mux.Vars(r)["date"])
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid date (expected YYYY-MM-DD)")
		return
	}

	updated, err := h.service.BackfillActuals(r.Context(), date)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to backfill actuals")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date":    date.Format(contracts.DateFormat),
		"updated": updated,
	})
}
