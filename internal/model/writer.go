package model

import "context"

// RollupWriter defines a generic interface for persisting rollups to a store.
// A write with an existing (sensor, period-start) key replaces the previous
// value; it never accumulates. That replace semantic is what makes re-running
// the pipeline over overlapping windows safe.
type RollupWriter interface {
	// Name returns the configured writer name, used to match a sensor's
	// store label.
	Name() string

	WriteHourly(ctx context.Context, rows []HourlyAggregate) error
	WriteDaily(ctx context.Context, rows []DailyAggregate) error

	Close() error
}
