package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/inventory"
)

func TestSendEmailJobHandle(t *testing.T) {
	job := NewSendEmailJob(SMTPConfig{Host: "mail.local", Port: 1025, From: "no-reply@sims.local"}, slog.Default())

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	job.send = func(addr, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	payload, err := json.Marshal(SendEmailPayload{To: "orders@acme.test", Subject: "Please confirm", Body: "hello"})
	require.NoError(t, err)

	err = job.Handle(context.Background(), asynq.NewTask(TaskTypeSendEmail, payload))
	require.NoError(t, err)
	require.Equal(t, "mail.local:1025", gotAddr)
	require.Equal(t, "no-reply@sims.local", gotFrom)
	require.Equal(t, []string{"orders@acme.test"}, gotTo)
	require.Contains(t, string(gotMsg), "Subject: Please confirm")
	require.Contains(t, string(gotMsg), "hello")
}

func TestSendEmailJobDropsMalformedPayload(t *testing.T) {
	job := NewSendEmailJob(SMTPConfig{}, slog.Default())
	err := job.Handle(context.Background(), asynq.NewTask(TaskTypeSendEmail, []byte("{broken")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestAlertBodyListsEveryRecord(t *testing.T) {
	body := alertBody([]inventory.Record{
		{SKU: "SKU-1", CurrentStock: 2, ReservedStock: 1, MinLevel: 5, Status: inventory.StatusLowStock},
		{SKU: "SKU-2", CurrentStock: 0, MinLevel: 3, Status: inventory.StatusIncoming},
	})
	require.Contains(t, body, "SKU-1")
	require.Contains(t, body, "SKU-2")
	require.Contains(t, body, "min=5")

	require.Contains(t, alertSubject(2), "2 item(s)")
}
