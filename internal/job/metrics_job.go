package job

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// defaultCollectTimeout bounds one gauge refresh so a slow database cannot pile up runs
const defaultCollectTimeout = 20 * time.Second

// Collector refreshes gauges derived from stored state
type Collector interface {
	Collect(ctx context.Context)
}

// MetricsJob refreshes the live-group and paid-participant gauges on a schedule
type MetricsJob struct {
	collector Collector
	timeout   time.Duration
	logger    *zap.Logger
}

// NewMetricsJob creates a new MetricsJob instance
func NewMetricsJob(collector Collector, logger *zap.Logger) *MetricsJob {
	return &MetricsJob{
		collector: collector,
		timeout:   defaultCollectTimeout,
		logger:    logger,
	}
}

// Run executes one collection. It satisfies cron.Job.
func (j *MetricsJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	j.collector.Collect(ctx)
	j.logger.Debug("Business metrics refreshed", zap.Duration("took", time.Since(start)))
}

// Schedule registers job on c with the given cron spec and runs it once immediately so the
// gauges are populated before the first tick.
func Schedule(c *cron.Cron, spec string, job cron.Job, logger *zap.Logger) error {
	id, err := c.AddJob(spec, cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(job))
	if err != nil {
		return err
	}
	logger.Info("Scheduled job", zap.String("schedule", spec), zap.Int("entry_id", int(id)))
	go job.Run()
	return nil
}
