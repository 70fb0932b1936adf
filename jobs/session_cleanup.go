package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/draftgate/draftgate/internal/jobs"
)

// SessionPurger deletes session rows that expired before the cutoff.
type SessionPurger interface {
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error)
}

// SessionCleanupJob prunes expired session bookkeeping rows. The live
// session state lives in redis with a TTL; the database rows only back
// auditing, so this runs on a relaxed cron.
type SessionCleanupJob struct {
	Sessions SessionPurger
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewSessionCleanupJob initialises the cleanup handler.
func NewSessionCleanupJob(sessions SessionPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionCleanupJob {
	return &SessionCleanupJob{
		Sessions: sessions,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one cleanup run.
func (j *SessionCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sessions == nil {
		return errors.New("session cleanup: handler not configured")
	}
	tracker := j.Metrics.Track("session_cleanup")

	removed, err := j.Sessions.DeleteExpiredSessions(ctx, j.clock())
	if err != nil {
		return tracker.End(err)
	}
	if j.Logger != nil {
		j.Logger.Info("session cleanup finished", slog.Int64("removed", removed))
	}
	return tracker.End(nil)
}
