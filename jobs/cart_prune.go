package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/artisouq/artisouq/internal/jobs"
)

const defaultCartMaxAgeDays = 30

// CartPruneJob deletes cart lines that have sat untouched past the
// retention window. Cart rows themselves stay so returning customers keep
// a stable cart id.
type CartPruneJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCartPruneJob initialises the prune handler.
func NewCartPruneJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *CartPruneJob {
	return &CartPruneJob{Pool: pool, Logger: logger, Metrics: metrics}
}

// Handle executes the sweep.
func (j *CartPruneJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("cart prune: handler not configured")
	}
	var payload CartPrunePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.MaxAgeDays <= 0 {
		payload.MaxAgeDays = defaultCartMaxAgeDays
	}

	tracker := j.Metrics.Track(TaskCartPrune)
	tag, err := j.Pool.Exec(ctx, `
		DELETE FROM cart_items ci
		USING carts c
		WHERE ci.cart_id = c.id
		  AND c.updated_at < now() - make_interval(days => $1)`,
		payload.MaxAgeDays,
	)
	if err != nil {
		j.Logger.Error("cart prune", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Logger.Info("cart prune complete",
		slog.Int64("lines_removed", tag.RowsAffected()),
		slog.Int("max_age_days", payload.MaxAgeDays),
	)
	return tracker.End(nil)
}
