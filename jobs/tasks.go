package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRetention is the task type for the audit log retention sweep.
	TaskAuditRetention = "audit:retention"
)

// AuditRetentionPayload parameterises one retention sweep. A zero
// OlderThanHours falls back to the worker's configured retention window.
type AuditRetentionPayload struct {
	OlderThanHours int `json:"olderThanHours"`
}

// NewAuditRetentionTask constructs an Asynq task for the retention sweep.
func NewAuditRetentionTask(payload AuditRetentionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, data), nil
}
