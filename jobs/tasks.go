package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeStatsSnapshot dumps the dashboard statistics to a JSON file.
	TaskTypeStatsSnapshot = "stats:snapshot"
	// TaskTypeLowStockScan looks for medications at or below their
	// reorder threshold and alerts the pharmacist.
	TaskTypeLowStockScan = "stock:lowscan"
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

// NewStatsSnapshotTask constructs a snapshot task with no payload.
func NewStatsSnapshotTask() *asynq.Task {
	return asynq.NewTask(TaskTypeStatsSnapshot, nil)
}

// NewLowStockScanTask constructs a low stock scan task with no payload.
func NewLowStockScanTask() *asynq.Task {
	return asynq.NewTask(TaskTypeLowStockScan, nil)
}

// Mailer sends emails for background jobs.
type Mailer struct {
	Addr   string
	From   string
	Logger *slog.Logger
}

// Send delivers a plain-text email through the configured SMTP relay.
// A mailer without an address logs the message and drops it, which
// keeps development environments working without an SMTP server.
func (m *Mailer) Send(to, subject, body string) error {
	if m == nil || m.Addr == "" {
		logger := slog.Default()
		if m != nil && m.Logger != nil {
			logger = m.Logger
		}
		logger.Info("smtp not configured, dropping email",
			slog.String("to", to), slog.String("subject", subject))
		return nil
	}
	msg := strings.Join([]string{
		"From: " + m.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"utf-8\"",
		"",
		body,
	}, "\r\n")
	return smtp.SendMail(m.Addr, nil, m.From, []string{to}, []byte(msg))
}

// HandleSendEmailTask returns the handler processing TaskTypeSendEmail.
func HandleSendEmailTask(mailer *Mailer) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SendEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		return mailer.Send(payload.To, payload.Subject, payload.Body)
	}
}
