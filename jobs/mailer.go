package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/procurement"
)

// SMTPConfig points the mail job at the relay.
type SMTPConfig struct {
	Host string
	Port int
	From string
}

// SendEmailJob delivers mail:send tasks over SMTP.
type SendEmailJob struct {
	cfg    SMTPConfig
	logger *slog.Logger
	// send is swapped in tests.
	send func(addr, from string, to []string, msg []byte) error
}

// NewSendEmailJob constructs the mail handler.
func NewSendEmailJob(cfg SMTPConfig, logger *slog.Logger) *SendEmailJob {
	return &SendEmailJob{
		cfg:    cfg,
		logger: logger,
		send: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}
}

// Handle processes one mail:send task. A malformed payload is dropped
// instead of retried.
func (j *SendEmailJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", j.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", payload.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n\r\n", payload.Subject)
	msg.WriteString(payload.Body)

	addr := j.cfg.Host + ":" + strconv.Itoa(j.cfg.Port)
	if err := j.send(addr, j.cfg.From, []string{payload.To}, []byte(msg.String())); err != nil {
		j.logger.Warn("send email", slog.String("to", payload.To), slog.Any("error", err))
		return err
	}
	return nil
}

// ConfirmationEnqueuer adapts the job client to the procurement mailer
// port: order confirmation emails go through the queue, never inline.
type ConfirmationEnqueuer struct {
	client  *Client
	baseURL string
}

// NewConfirmationEnqueuer constructs the adapter. baseURL is the public
// address the confirmation links point at.
func NewConfirmationEnqueuer(client *Client, baseURL string) *ConfirmationEnqueuer {
	return &ConfirmationEnqueuer{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// EnqueueConfirmation queues the supplier confirmation email.
func (e *ConfirmationEnqueuer) EnqueueConfirmation(ctx context.Context, email procurement.ConfirmationEmail) error {
	body := fmt.Sprintf(
		"A purchase order %s awaits your confirmation.\r\n\r\nConfirm: %s/api/purchase-orders/confirm?token=%s\r\nDecline: %s/api/purchase-orders/decline?token=%s\r\n",
		email.PONumber, e.baseURL, email.Token, e.baseURL, email.Token)
	_, err := e.client.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      email.To,
		Subject: "Please confirm purchase order " + email.PONumber,
		Body:    body,
	})
	return err
}
