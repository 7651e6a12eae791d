package database

import (
	"time"

	"alltrade/internal/observability"

	"gorm.io/gorm"
)

// registerMetricsCallbacks hooks query latency observation into GORM so every
// statement is recorded in the Prometheus histogram, labeled by operation and
// table.
func registerMetricsCallbacks(db *gorm.DB) error {
	markStart := func(tx *gorm.DB) {
		tx.InstanceSet("metrics:start", time.Now())
	}
	observe := func(op string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			v, ok := tx.InstanceGet("metrics:start")
			if !ok {
				return
			}
			start, ok := v.(time.Time)
			if !ok {
				return
			}
			observability.ObserveQuery(op, tx.Statement.Table, start)
		}
	}

	if err := db.Callback().Create().Before("gorm:create").Register("metrics:create:before", markStart); err != nil {
		return err
	}
	if err := db.Callback().Create().After("gorm:create").Register("metrics:create:after", observe("create")); err != nil {
		return err
	}
	if err := db.Callback().Query().Before("gorm:query").Register("metrics:query:before", markStart); err != nil {
		return err
	}
	if err := db.Callback().Query().After("gorm:query").Register("metrics:query:after", observe("query")); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("metrics:update:before", markStart); err != nil {
		return err
	}
	if err := db.Callback().Update().After("gorm:update").Register("metrics:update:after", observe("update")); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("metrics:delete:before", markStart); err != nil {
		return err
	}
	if err := db.Callback().Delete().After("gorm:delete").Register("metrics:delete:after", observe("delete")); err != nil {
		return err
	}
	return nil
}
