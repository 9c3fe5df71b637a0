package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskExpiryScan bands shelf rows by days left and warms the dashboard.
	TaskExpiryScan = "selling:expiry_scan"
	// TaskLowStockScan flags items under their shelf threshold.
	TaskLowStockScan = "selling:low_stock_scan"
	// TaskIdempotencyCleanup removes expired transfer request ids.
	TaskIdempotencyCleanup = "selling:idempotency_cleanup"
)

// ScanPayload overrides the configured presets for one scan run.
type ScanPayload struct {
	// Threshold replaces the global low-stock threshold when positive.
	Threshold int `json:"threshold,omitempty"`
}

// CleanupPayload configures the idempotency cleanup.
type CleanupPayload struct {
	RetentionHours int `json:"retention_hours,omitempty"`
}

// NewExpiryScanTask creates an expiry scan task.
func NewExpiryScanTask() *asynq.Task {
	return asynq.NewTask(TaskExpiryScan, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(2))
}

// NewLowStockScanTask creates a low-stock scan task.
func NewLowStockScanTask(payload ScanPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault), asynq.MaxRetry(2)), nil
}

// NewIdempotencyCleanupTask creates a cleanup task keeping keys younger than retention.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(CleanupPayload{RetentionHours: int(retention.Hours())})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}

func decodePayload(t *asynq.Task, dest any) error {
	if len(t.Payload()) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.Payload(), dest); err != nil {
		return asynq.SkipRetry
	}
	return nil
}
