package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/ngo-fms/fms/internal/jobs"
	"github.com/ngo-fms/fms/internal/session"
)

// Enqueuer is the part of asynq.Client the notifier needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// SessionEventNotifier publishes session events to the queue. Failures are
// logged and never reach the session store.
type SessionEventNotifier struct {
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewSessionEventNotifier constructs a SessionEventNotifier.
func NewSessionEventNotifier(enqueuer Enqueuer, logger *slog.Logger) *SessionEventNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionEventNotifier{enqueuer: enqueuer, logger: logger}
}

// Notify implements session.Notifier.
func (n *SessionEventNotifier) Notify(ctx context.Context, event session.Event) {
	if n == nil || n.enqueuer == nil {
		return
	}
	task, err := NewSessionEventTask(event)
	if err != nil {
		n.logger.WarnContext(ctx, "build session event task", slog.Any("error", err))
		return
	}
	if _, err := n.enqueuer.EnqueueContext(ctx, task, asynq.Queue(QueueDefault)); err != nil {
		n.logger.WarnContext(ctx, "enqueue session event",
			slog.String("kind", string(event.Kind)),
			slog.Any("error", err),
		)
	}
}

// SessionEventJob consumes session event tasks.
type SessionEventJob struct {
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewSessionEventJob initialises the session event handler.
func NewSessionEventJob(logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionEventJob {
	return &SessionEventJob{Logger: logger, Metrics: metrics}
}

// Handle records one session event. Malformed payloads are not retried.
func (j *SessionEventJob) Handle(ctx context.Context, t *asynq.Task) error {
	var event session.Event
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return fmt.Errorf("session event: %v: %w", err, asynq.SkipRetry)
	}
	want, err := TaskTypeForEvent(event.Kind)
	if err != nil || want != t.Type() {
		return fmt.Errorf("session event: kind %q does not match task %q: %w", event.Kind, t.Type(), asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(t.Type())
	j.logger().InfoContext(ctx, "session event",
		slog.String("kind", string(event.Kind)),
		slog.String("email", event.Email),
		slog.String("role", event.Role),
		slog.Time("at", event.At),
	)
	j.Metrics.AddSessionEvent(string(event.Kind))
	return tracker.End(nil)
}

func (j *SessionEventJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
