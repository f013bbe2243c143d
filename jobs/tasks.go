package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/ngo-fms/fms/internal/session"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionLogin is emitted after a session logs in.
	TaskSessionLogin = "session:login"
	// TaskSessionLogout is emitted after a session logs out.
	TaskSessionLogout = "session:logout"
	// TaskRegistryPendingDigest summarises signups awaiting approval.
	TaskRegistryPendingDigest = "registry:pending_digest"
)

// TaskTypeForEvent maps a session event kind onto its task type.
func TaskTypeForEvent(kind session.EventKind) (string, error) {
	switch kind {
	case session.EventLogin:
		return TaskSessionLogin, nil
	case session.EventLogout:
		return TaskSessionLogout, nil
	default:
		return "", fmt.Errorf("jobs: unknown session event %q", kind)
	}
}

// NewSessionEventTask constructs an Asynq task carrying event.
func NewSessionEventTask(event session.Event) (*asynq.Task, error) {
	taskType, err := TaskTypeForEvent(event.Kind)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data, asynq.MaxRetry(3)), nil
}

// PendingDigestPayload configures the pending registration digest.
type PendingDigestPayload struct {
	// Limit caps how many pending emails are logged.
	Limit int `json:"limit"`
}

// NewPendingDigestTask constructs the digest task.
func NewPendingDigestTask(limit int) (*asynq.Task, error) {
	data, err := json.Marshal(PendingDigestPayload{Limit: limit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRegistryPendingDigest, data), nil
}
