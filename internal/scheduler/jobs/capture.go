package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/tradekit/bandtrack/internal/capture"
	"github.com/tradekit/bandtrack/internal/contracts"
	"github.com/tradekit/bandtrack/pkg/logger"
)

// Checkpoint cron schedules, exchange-local, weekdays only. Each fires a
// few minutes after the nominal instant so the bar exists upstream.
var captureSchedules = map[contracts.Checkpoint]string{
	contracts.CheckpointPreMarket: "0 0 9 * * 1-5",
	contracts.CheckpointOpen:      "0 32 9 * * 1-5",
	contracts.CheckpointNoon:      "0 2 12 * * 1-5",
	contracts.CheckpointTwoPM:     "0 2 14 * * 1-5",
	contracts.CheckpointClose:     "0 5 16 * * 1-5",
}

// CaptureJob captures one checkpoint for the current trading date. One job
// instance is registered per checkpoint.
type CaptureJob struct {
	engine     *capture.Engine
	checkpoint contracts.Checkpoint
	loc        *time.Location
	logger     *logger.Logger
}

// NewCaptureJob creates a capture job for one checkpoint.
func NewCaptureJob(engine *capture.Engine, cp contracts.Checkpoint, loc *time.Location, log *logger.Logger) *CaptureJob {
	return &CaptureJob{engine: engine, checkpoint: cp, loc: loc, logger: log}
}

// NewCaptureJobs creates one capture job per checkpoint.
func NewCaptureJobs(engine *capture.Engine, loc *time.Location, log *logger.Logger) []*CaptureJob {
	jobs := make([]*CaptureJob, 0, len(contracts.AllCheckpoints))
	for _, cp := range contracts.AllCheckpoints {
		jobs = append(jobs, NewCaptureJob(engine, cp, loc, log))
	}
	return jobs
}

// Name returns the job name
func (j *CaptureJob) Name() string {
	return "capture_" + j.checkpoint.String()
}

// Schedule returns the cron schedule for this checkpoint
func (j *CaptureJob) Schedule() string {
	return captureSchedules[j.checkpoint]
}

// Run captures the checkpoint for today. The capture primitive is
// idempotent, so overlapping with the lazy refresh or an admin trigger is
// harmless.
func (j *CaptureJob) Run(ctx context.Context) error {
	today := tradingDate(time.Now().In(j.loc))

	result, err := j.engine.Capture(ctx, today, j.checkpoint, false)
	if err != nil {
		return fmt.Errorf("capture %s: %w", j.checkpoint, err)
	}

	j.logger.WithFields(map[string]interface{}{
		"date":       today.Format(contracts.DateFormat),
		"checkpoint": j.checkpoint.String(),
		"status":     string(result.Status),
	}).Info("Scheduled capture finished")
	return nil
}

// tradingDate normalizes a local timestamp to its date key.
func tradingDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
