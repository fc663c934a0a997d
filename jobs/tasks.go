package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPilotStatsReconcile repairs courier delivery counters and busy flags.
	TaskPilotStatsReconcile = "pilots:reconcile_stats"
	// TaskCartPrune removes carts abandoned beyond the retention window.
	TaskCartPrune = "carts:prune_stale"
)

// CartPrunePayload controls the abandoned-cart sweep.
type CartPrunePayload struct {
	MaxAgeDays int `json:"maxAgeDays"`
}

// NewPilotStatsTask constructs the reconcile task; it carries no payload.
func NewPilotStatsTask() *asynq.Task {
	return asynq.NewTask(TaskPilotStatsReconcile, nil)
}

// NewCartPruneTask constructs a cart prune task.
func NewCartPruneTask(payload CartPrunePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCartPrune, data), nil
}
