package metrics

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BusinessMetricsCollector refreshes gauges that are derived from stored state
type BusinessMetricsCollector struct {
	db      *gorm.DB
	metrics *Metrics
	logger  *zap.Logger
}

// NewBusinessMetricsCollector creates a new collector
func NewBusinessMetricsCollector(db *gorm.DB, metrics *Metrics, logger *zap.Logger) *BusinessMetricsCollector {
	return &BusinessMetricsCollector{db: db, metrics: metrics, logger: logger}
}

// Collect counts live groups and paid participants. Failures are logged and the gauges keep
// their last value.
func (c *BusinessMetricsCollector) Collect(ctx context.Context) {
	var liveGroups int64
	if err := c.db.WithContext(ctx).Table("matching_groups").
		Where("status <> ?", "CANCELLED").
		Count(&liveGroups).Error; err != nil {
		c.logger.Warn("Failed to count live groups", zap.Error(err))
	} else {
		c.metrics.SetLiveGroupsTotal(liveGroups)
	}

	var paid int64
	if err := c.db.WithContext(ctx).Table("event_participants").
		Where("payment_status = ?", "PAID").
		Count(&paid).Error; err != nil {
		c.logger.Warn("Failed to count paid participants", zap.Error(err))
	} else {
		c.metrics.SetPaidParticipantsTotal(paid)
	}
}
