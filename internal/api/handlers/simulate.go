package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/tradekit/bandtrack/internal/simulation"
	"github.com/tradekit/bandtrack/pkg/logger"
)

// Simulator runs leakage-guarded backtests.
type Simulator interface {
	Run(ctx context.Context, from, to time.Time, persist bool) (*simulation.Report, error)
}

// SimulationHandler serves backtest runs.
type SimulationHandler struct {
	simulator Simulator
	logger    *logger.Logger
}

// NewSimulationHandler creates a simulation handler.
func NewSimulationHandler(simulator Simulator, log *logger.Logger) *SimulationHandler {
	return &SimulationHandler{simulator: simulator, logger: log}
}

// SimulateRequest represents a simulation request
type SimulateRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Persist bool   `json:"persist"`
}

// Simulate runs a historical simulation over a date range.
// POST /api/simulate
func (h *SimulationHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	from, okFrom := parseDate(req.From)
	to, okTo := parseDate(req.To)
	if !okFrom || !okTo {
		respondError(w, http.StatusBadRequest, "Invalid 'from' or 'to' date (expected YYYY-MM-DD)")
		return
	}

	report, err := h.simulator.Run(r.Context(), from, to, req.Persist)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, report)
}
