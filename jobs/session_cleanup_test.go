package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	removed int64
	err     error
	before  time.Time
}

func (f *fakePurger) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	f.before = before
	return f.removed, f.err
}

func TestSessionCleanupPurgesWithCurrentCutoff(t *testing.T) {
	purger := &fakePurger{removed: 3}
	job := NewSessionCleanupJob(purger, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	now := time.Date(2026, 5, 1, 4, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return now }

	task, err := NewSessionCleanupTask()
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, now, purger.before)
}

func TestSessionCleanupPropagatesError(t *testing.T) {
	purger := &fakePurger{err: context.DeadlineExceeded}
	job := NewSessionCleanupJob(purger, nil, nil)

	task, err := NewSessionCleanupTask()
	require.NoError(t, err)
	require.Error(t, job.Handle(context.Background(), task))
}
