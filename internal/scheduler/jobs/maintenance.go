package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/tradekit/bandtrack/internal/capture"
	"github.com/tradekit/bandtrack/pkg/logger"
)

// MaintenanceJob prunes the price audit log past the retention window.
type MaintenanceJob struct {
	engine    *capture.Engine
	retention time.Duration
	logger    *logger.Logger
}

// NewMaintenanceJob creates the retention cleanup job.
func NewMaintenanceJob(engine *capture.Engine, retention time.Duration, log *logger.Logger) *MaintenanceJob {
	return &MaintenanceJob{engine: engine, retention: retention, logger: log}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "price_log_cleanup"
}

// Schedule runs nightly at 3:00, outside market hours.
func (j *MaintenanceJob) Schedule() string {
	return "0 0 3 * * *"
}

// Run deletes audit records older than the retention window.
func (j *MaintenanceJob) Run(ctx context.Context) error {
	deleted, err := j.engine.CleanupLogs(ctx, j.retention)
	if err != nil {
		return fmt.Errorf("cleanup price logs: %w", err)
	}

	j.logger.WithField("deleted", deleted).Info("Maintenance finished")
	return nil
}
