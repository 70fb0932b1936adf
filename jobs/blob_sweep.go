package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/draftgate/draftgate/internal/platform/blob"

	jobmetrics "github.com/draftgate/draftgate/internal/jobs"
)

const defaultSweepGrace = 60 * time.Minute

// KeySource lists every object key still referenced by attachment
// metadata.
type KeySource interface {
	StorageKeys(ctx context.Context) ([]string, error)
}

// BlobSweepJob deletes stored objects no metadata row references.
// Orphans appear when a compensating delete loses a race or the process
// dies between the object write and the row insert. Objects younger
// than the grace period are skipped so in-flight uploads survive.
type BlobSweepJob struct {
	Store   *blob.Store
	Keys    KeySource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewBlobSweepJob initialises the sweep handler.
func NewBlobSweepJob(store *blob.Store, keys KeySource, logger *slog.Logger, metrics *jobmetrics.Metrics) *BlobSweepJob {
	return &BlobSweepJob{
		Store:   store,
		Keys:    keys,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one sweep run.
func (j *BlobSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil || j.Keys == nil {
		return errors.New("blob sweep: handler not configured")
	}
	tracker := j.Metrics.Track("blob_sweep")

	var payload BlobSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(asynq.SkipRetry)
	}
	grace := time.Duration(payload.GracePeriodMinutes) * time.Minute
	if grace <= 0 {
		grace = defaultSweepGrace
	}

	referenced, err := j.Keys.StorageKeys(ctx)
	if err != nil {
		return tracker.End(err)
	}
	live := make(map[string]struct{}, len(referenced))
	for _, key := range referenced {
		live[key] = struct{}{}
	}

	cutoff := j.clock().Add(-grace)
	var orphans []string
	err = j.Store.Walk(ctx, func(info blob.ObjectInfo) error {
		if _, ok := live[info.Key]; ok {
			return nil
		}
		if info.ModTime.After(cutoff) {
			return nil
		}
		orphans = append(orphans, info.Key)
		return nil
	})
	if err != nil {
		return tracker.End(err)
	}

	var removed atomic.Int64
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(4)
	for _, key := range orphans {
		group.Go(func() error {
			if err := j.Store.Delete(groupCtx, key); err != nil {
				return err
			}
			removed.Add(1)
			return nil
		})
	}
	err = group.Wait()
	j.Metrics.AddSweptObjects(int(removed.Load()))
	if j.Logger != nil {
		j.Logger.Info("blob sweep finished",
			slog.Int64("removed", removed.Load()),
			slog.Int("candidates", len(orphans)))
	}
	return tracker.End(err)
}
