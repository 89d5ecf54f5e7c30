package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/pharmaflow/pharmaflow/internal/dashboard"
	jobmetrics "github.com/pharmaflow/pharmaflow/internal/jobs"
)

// StatsSnapshotJob dumps the dashboard statistics into a timestamped
// JSON file so successive runs can be diffed after a migration or an
// incident.
type StatsSnapshotJob struct {
	Dashboard *dashboard.Service
	Dir       string
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewStatsSnapshotJob constructs the job.
func NewStatsSnapshotJob(svc *dashboard.Service, dir string, logger *slog.Logger, metrics *jobmetrics.Metrics) *StatsSnapshotJob {
	return &StatsSnapshotJob{Dashboard: svc, Dir: dir, Logger: logger, Metrics: metrics}
}

// Handle processes TaskTypeStatsSnapshot.
func (j *StatsSnapshotJob) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := j.Metrics.Track("stats_snapshot")
	path, err := j.Dashboard.WriteSnapshot(ctx, j.Dir)
	if err != nil {
		j.Logger.Error("stats snapshot failed", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Logger.Info("stats snapshot written", slog.String("path", path))
	return tracker.End(nil)
}
