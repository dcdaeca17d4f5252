package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeBackfillMonths is the task type for the role month backfill.
	TaskTypeBackfillMonths = "members:backfill_months"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	UID     string `json:"uid"`
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

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder: integrate with the mail relay once it is provisioned.
	fmt.Printf("[jobs] send email to %s subject=%s\n", payload.UID, payload.Subject)
	return nil
}

// BackfillMonthsPayload controls the role month backfill run.
type BackfillMonthsPayload struct {
	DryRun bool `json:"dry_run"`
}

// NewBackfillMonthsTask constructs an Asynq task for the month backfill.
func NewBackfillMonthsTask(payload BackfillMonthsPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeBackfillMonths, data), nil
}
