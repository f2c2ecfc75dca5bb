package database

import (
	"time"

	"gorm.io/gorm"
)

const startTimeKey = "metrics:start_time"

// MetricsRecorder is an interface for recording database metrics
type MetricsRecorder interface {
	RecordDBQuery(operation, table string, duration time.Duration, err error)
	UpdateDBStats(stats interface{})
}

// RegisterMetricsCallbacks times every create/query/update/delete/raw/row statement
func RegisterMetricsCallbacks(db *gorm.DB, recorder MetricsRecorder) error {
	cb := db.Callback()
	registrations := []func() error{
		func() error { return cb.Create().Before("gorm:create").Register("metrics:insert_before", markStart) },
		func() error {
			return cb.Create().After("gorm:create").Register("metrics:insert_after", record(recorder, "insert"))
		},
		func() error { return cb.Query().Before("gorm:query").Register("metrics:select_before", markStart) },
		func() error {
			return cb.Query().After("gorm:query").Register("metrics:select_after", record(recorder, "select"))
		},
		func() error { return cb.Update().Before("gorm:update").Register("metrics:update_before", markStart) },
		func() error {
			return cb.Update().After("gorm:update").Register("metrics:update_after", record(recorder, "update"))
		},
		func() error { return cb.Delete().Before("gorm:delete").Register("metrics:delete_before", markStart) },
		func() error {
			return cb.Delete().After("gorm:delete").Register("metrics:delete_after", record(recorder, "delete"))
		},
		func() error { return cb.Raw().Before("gorm:raw").Register("metrics:raw_before", markStart) },
		func() error { return cb.Raw().After("gorm:raw").Register("metrics:raw_after", record(recorder, "raw")) },
		func() error { return cb.Row().Before("gorm:row").Register("metrics:row_before", markStart) },
		func() error { return cb.Row().After("gorm:row").Register("metrics:row_after", record(recorder, "row")) },
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return err
		}
	}
	return nil
}

func markStart(tx *gorm.DB) {
	tx.InstanceSet(startTimeKey, time.Now())
}

func record(recorder MetricsRecorder, operation string) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		started, ok := tx.InstanceGet(startTimeKey)
		if !ok {
			return
		}
		table := tx.Statement.Table
		if table == "" {
			table = "unknown"
		}
		recorder.RecordDBQuery(operation, table, time.Since(started.(time.Time)), tx.Error)
	}
}

// StartDBStatsCollector publishes connection pool stats every interval until done is closed
func StartDBStatsCollector(db *gorm.DB, recorder MetricsRecorder, interval time.Duration) chan struct{} {
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					continue
				}
				recorder.UpdateDBStats(sqlDB.Stats())
			case <-done:
				return
			}
		}
	}()

	return done
}
