package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/ngo-fms/fms/internal/jobs"
	"github.com/ngo-fms/fms/internal/users"
)

// PendingLister lists registry entries. users.Service satisfies it.
type PendingLister interface {
	List(ctx context.Context, filter users.ListFilter) ([]users.User, error)
}

// PendingDigestJob logs signups awaiting approval so super admins can act on them.
type PendingDigestJob struct {
	Registry PendingLister
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewPendingDigestJob initialises the digest handler.
func NewPendingDigestJob(registry PendingLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *PendingDigestJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &PendingDigestJob{Registry: registry, Logger: logger, Metrics: metrics}
}

// Handle executes the digest.
func (j *PendingDigestJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	var payload PendingDigestPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("pending digest: %v: %w", err, asynq.SkipRetry)
		}
	}
	if payload.Limit <= 0 {
		payload.Limit = 20
	}

	tracker := j.Metrics.Track(TaskRegistryPendingDigest)
	defer func() {
		err = tracker.End(err)
	}()

	pending, err := j.Registry.List(ctx, users.ListFilter{Status: users.StatusPending})
	if err != nil {
		j.Logger.ErrorContext(ctx, "pending digest failed", slog.Any("error", err))
		return err
	}
	j.Metrics.SetPendingRegistrations(len(pending))

	emails := make([]string, 0, min(len(pending), payload.Limit))
	for _, u := range pending {
		if len(emails) == payload.Limit {
			break
		}
		emails = append(emails, u.Email)
	}
	j.Logger.InfoContext(ctx, "pending registrations",
		slog.Int("count", len(pending)),
		slog.Any("emails", emails),
	)
	return nil
}
