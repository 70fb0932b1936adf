package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeBlobSweep is the task type for the orphaned object sweep.
	TaskTypeBlobSweep = "blob:sweep"
	// TaskTypeSessionCleanup is the task type for purging expired
	// session bookkeeping rows.
	TaskTypeSessionCleanup = "sessions:cleanup"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewSendEmailHandler builds the TaskTypeSendEmail handler.
func NewSendEmailHandler(logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SendEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		// Placeholder until an SMTP relay is provisioned; the
		// notification row is the delivery of record.
		if logger != nil {
			logger.Info("send email",
				slog.String("to", payload.To),
				slog.String("subject", payload.Subject))
		}
		return nil
	}
}

// BlobSweepPayload configures one sweep run.
type BlobSweepPayload struct {
	GracePeriodMinutes int `json:"grace_period_minutes"`
}

// NewBlobSweepTask constructs an Asynq task.
func NewBlobSweepTask(payload BlobSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeBlobSweep, data), nil
}

// NewSessionCleanupTask constructs an Asynq task.
func NewSessionCleanupTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskTypeSessionCleanup, nil), nil
}
