package handlers

import (
	"net/http"

	"github.com/tradekit/bandtrack/internal/scheduler"
	"github.com/tradekit/bandtrack/pkg/logger"
)

// SchedulerStats exposes scheduler job statistics.
type SchedulerStats interface {
	GetAllJobs() []string
	GetJobStats() map[string]scheduler.JobStats
	RunJob(jobName string) error
}

// SchedulerHandler serves the scheduler status surface. The scheduler is
// nil when the process runs API-only.
type SchedulerHandler struct {
	stats  SchedulerStats
	logger *logger.Logger
}

// NewSchedulerHandler creates a scheduler handler.
func NewSchedulerHandler(stats SchedulerStats, log *logger.Logger) *SchedulerHandler {
	return &SchedulerHandler{stats: stats, logger: log}
}

// Status returns per-job statistics.
// GET /api/scheduler/status
func (h *SchedulerHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		respondError(w, http.StatusServiceUnavailable, "Scheduler not running in this process")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  h.stats.GetAllJobs(),
		"stats": h.stats.GetJobStats(),
	})
}

// TriggerRequest represents a manual job trigger
type TriggerRequest struct {
	Job string `json:"job"`
}

// Trigger runs a job immediately.
// POST /api/scheduler/trigger
func (h *SchedulerHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		respondError(w, http.StatusServiceUnavailable, "Scheduler not running in this process")
		return
	}

	job := r.URL.Query().Get("job")
	if job == "" {
		respondError(w, http.StatusBadRequest, "Missing 'job' parameter")
		return
	}

	if err := h.stats.RunJob(job); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"job":    job,
		"status": "triggered",
	})
}
