package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/artisouq/artisouq/internal/jobs"
	"github.com/artisouq/artisouq/internal/pilots"
)

// PilotStatsJob recomputes courier delivery counters and frees pilots left
// attached to finished orders. Catches drift from crashed assignments.
type PilotStatsJob struct {
	Pilots  *pilots.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewPilotStatsJob initialises the reconcile handler.
func NewPilotStatsJob(svc *pilots.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *PilotStatsJob {
	return &PilotStatsJob{Pilots: svc, Logger: logger, Metrics: metrics}
}

// Handle executes the reconcile run.
func (j *PilotStatsJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Pilots == nil {
		return errors.New("pilot stats: handler not configured")
	}
	tracker := j.Metrics.Track(TaskPilotStatsReconcile)
	res, err := j.Pilots.ReconcileStats(ctx)
	if err != nil {
		j.Logger.Error("pilot stats reconcile", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Logger.Info("pilot stats reconcile complete",
		slog.Int64("counts_fixed", res.StatsFixed),
		slog.Int64("flags_fixed", res.FlagsFixed),
	)
	return tracker.End(nil)
}
