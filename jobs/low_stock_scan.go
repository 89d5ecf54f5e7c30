package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/pharmaflow/pharmaflow/internal/jobs"
)

// LowStockScanJob looks for medications at or below their reorder
// threshold and mails the pharmacist a summary. Scans that find
// nothing stay silent.
type LowStockScanJob struct {
	Pool    *pgxpool.Pool
	Client  *Client
	AlertTo string
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLowStockScanJob constructs the job.
func NewLowStockScanJob(pool *pgxpool.Pool, client *Client, alertTo string, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Pool: pool, Client: client, AlertTo: alertTo, Logger: logger, Metrics: metrics}
}

type lowStockRow struct {
	Name        string
	Quantity    int64
	MinQuantity int64
}

// Handle processes TaskTypeLowStockScan.
func (j *LowStockScanJob) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := j.Metrics.Track("low_stock_scan")
	rows, err := j.scan(ctx)
	if err != nil {
		j.Logger.Error("low stock scan failed", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Metrics.SetLowStockCount(len(rows))
	if len(rows) == 0 {
		j.Logger.Info("low stock scan clean")
		return tracker.End(nil)
	}

	j.Logger.Warn("low stock medications found", slog.Int("count", len(rows)))
	if j.Client != nil && j.AlertTo != "" {
		if _, err := j.Client.EnqueueSendEmail(ctx, SendEmailPayload{
			To:      j.AlertTo,
			Subject: fmt.Sprintf("Alerte stock: %d médicament(s) sous le seuil", len(rows)),
			Body:    formatLowStockAlert(rows),
		}); err != nil {
			j.Logger.Error("enqueue low stock alert failed", slog.Any("error", err))
			return tracker.End(err)
		}
	}
	return tracker.End(nil)
}

func (j *LowStockScanJob) scan(ctx context.Context) ([]lowStockRow, error) {
	rows, err := j.Pool.Query(ctx, `SELECT name, quantity, min_quantity
FROM medications
WHERE quantity <= min_quantity
ORDER BY quantity, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []lowStockRow
	for rows.Next() {
		var r lowStockRow
		if err := rows.Scan(&r.Name, &r.Quantity, &r.MinQuantity); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func formatLowStockAlert(rows []lowStockRow) string {
	var b strings.Builder
	b.WriteString("Les médicaments suivants sont au niveau ou sous leur seuil de réapprovisionnement:\n\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "- %s: %d en stock (seuil %d)\n", r.Name, r.Quantity, r.MinQuantity)
	}
	return b.String()
}
