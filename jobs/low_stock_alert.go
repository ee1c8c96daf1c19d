package jobs

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/inventory"
	jobmetrics "github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/jobs"
)

// LowStockAlertJob scans the ledger for items at or below their minimum
// level, refreshes the cached snapshot and mails the report. A run that
// finds nothing sends nothing.
type LowStockAlertJob struct {
	service *inventory.Service
	cache   *inventory.LowStockCache
	client  *Client
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
	to      string
}

// NewLowStockAlertJob constructs the alert handler.
func NewLowStockAlertJob(service *inventory.Service, cache *inventory.LowStockCache, client *Client, logger *slog.Logger, metrics *jobmetrics.Metrics, to string) *LowStockAlertJob {
	return &LowStockAlertJob{service: service, cache: cache, client: client, logger: logger, metrics: metrics, to: to}
}

// Handle runs one scan.
func (j *LowStockAlertJob) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := j.metrics.Track("low_stock_alert")
	if flipped, err := j.service.InvalidateUnsellable(ctx); err != nil {
		j.logger.Warn("invalidate unsellable records", slog.Any("error", err))
	} else if flipped > 0 {
		j.logger.Info("invalidated unsellable records", slog.Int64("count", flipped))
	}
	records, err := j.service.ListLowStock(ctx, "", "")
	if err != nil {
		j.logger.Error("low stock scan", slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics.SetLowStockItems(len(records))

	if err := j.cache.Set(ctx, records); err != nil {
		// The snapshot is an optimization; the alert still goes out.
		j.logger.Warn("cache low stock snapshot", slog.Any("error", err))
	}

	if len(records) == 0 {
		return tracker.End(nil)
	}

	payload := SendEmailPayload{
		To:      j.to,
		Subject: alertSubject(len(records)),
		Body:    alertBody(records),
	}
	if _, err := j.client.EnqueueSendEmail(ctx, payload); err != nil {
		j.logger.Error("enqueue low stock alert", slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger.Info("low stock alert queued", slog.Int("items", len(records)))
	return tracker.End(nil)
}

func alertSubject(count int) string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("Low stock alert: %d item(s) need replenishment", count)
}

func alertBody(records []inventory.Record) string {
	p := message.NewPrinter(language.English)
	var b strings.Builder
	b.WriteString("The following items are at or below their minimum level:\r\n\r\n")
	for _, rec := range records {
		p.Fprintf(&b, "  %-20s current=%d reserved=%d min=%d status=%s\r\n",
			rec.SKU, rec.CurrentStock, rec.ReservedStock, rec.MinLevel, rec.Status)
	}
	return b.String()
}
