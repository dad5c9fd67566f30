package store

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"TrafficLens/internal/config"
	"TrafficLens/internal/model"
)

const createPostgresTables = `
CREATE TABLE IF NOT EXISTS footfall_hourly (
    sensor_id      text        NOT NULL,
    period_start   timestamptz NOT NULL,
    total_entries  bigint      NOT NULL,
    total_exits    bigint      NOT NULL,
    net_flow       bigint      NOT NULL,
    avg_occupancy  double precision NOT NULL,
    peak_occupancy integer     NOT NULL,
    sample_count   integer     NOT NULL,
    line_entries   integer[]   NOT NULL DEFAULT '{}',
    line_exits     integer[]   NOT NULL DEFAULT '{}',
    PRIMARY KEY (sensor_id, period_start)
);
CREATE TABLE IF NOT EXISTS footfall_daily (
    sensor_id      text        NOT NULL,
    period_start   timestamptz NOT NULL,
    total_entries  bigint      NOT NULL,
    total_exits    bigint      NOT NULL,
    net_flow       bigint      NOT NULL,
    avg_occupancy  double precision NOT NULL,
    peak_occupancy integer     NOT NULL,
    sample_count   integer     NOT NULL,
    PRIMARY KEY (sensor_id, period_start)
);
`

const upsertHourly = `
INSERT INTO footfall_hourly
    (sensor_id, period_start, total_entries, total_exits, net_flow,
     avg_occupancy, peak_occupancy, sample_count, line_entries, line_exits)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (sensor_id, period_start) DO UPDATE SET
    total_entries  = EXCLUDED.total_entries,
    total_exits    = EXCLUDED.total_exits,
    net_flow       = EXCLUDED.net_flow,
    avg_occupancy  = EXCLUDED.avg_occupancy,
    peak_occupancy = EXCLUDED.peak_occupancy,
    sample_count   = EXCLUDED.sample_count,
    line_entries   = EXCLUDED.line_entries,
    line_exits     = EXCLUDED.line_exits
`

const upsertDaily = `
INSERT INTO footfall_daily
    (sensor_id, period_start, total_entries, total_exits, net_flow,
     avg_occupancy, peak_occupancy, sample_count)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (sensor_id, period_start) DO UPDATE SET
    total_entries  = EXCLUDED.total_entries,
    total_exits    = EXCLUDED.total_exits,
    net_flow       = EXCLUDED.net_flow,
    avg_occupancy  = EXCLUDED.avg_occupancy,
    peak_occupancy = EXCLUDED.peak_occupancy,
    sample_count   = EXCLUDED.sample_count
`

// PostgresWriter implements the model.RollupWriter interface for Postgres.
// The ON CONFLICT DO UPDATE form is the replace-on-existing-key write the
// contract requires.
type PostgresWriter struct {
	name string
	pool *pgxpool.Pool
}

// NewPostgresWriter creates a new Postgres writer and ensures the rollup
// tables exist.
func NewPostgresWriter(name string, cfg config.PostgresConfig) (model.RollupWriter, error) {
	pool, err := pgxpool.New(context.Background(), cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to configure postgres pool: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if _, err := pool.Exec(context.Background(), createPostgresTables); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	log.Println("Successfully connected to Postgres and ensured rollup tables exist.")

	return &PostgresWriter{name: name, pool: pool}, nil
}

// Name returns the configured writer name.
func (w *PostgresWriter) Name() string {
	return w.name
}

// WriteHourly upserts hourly rollups one key at a time.
func (w *PostgresWriter) WriteHourly(ctx context.Context, rows []model.HourlyAggregate) error {
	for _, row := range rows {
		lineIn, lineOut := lineArrays(row.LineTotals)
		_, err := w.pool.Exec(ctx, upsertHourly,
			row.SensorID,
			row.HourStart,
			row.TotalEntries,
			row.TotalExits,
			row.NetFlow,
			row.AvgOccupancy,
			row.PeakOccupancy,
			row.SampleCount,
			lineIn,
			lineOut,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert hourly rollup for %s @ %s: %w", row.SensorID, row.HourStart, err)
		}
	}
	if len(rows) > 0 {
		log.Printf("Wrote %d hourly rollup(s) to Postgres", len(rows))
	}
	return nil
}

// WriteDaily upserts daily rollups.
func (w *PostgresWriter) WriteDaily(ctx context.Context, rows []model.DailyAggregate) error {
	for _, row := range rows {
		_, err := w.pool.Exec(ctx, upsertDaily,
			row.SensorID,
			row.DayStart,
			row.TotalEntries,
			row.TotalExits,
			row.NetFlow,
			row.AvgOccupancy,
			row.PeakOccupancy,
			row.SampleCount,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert daily rollup for %s @ %s: %w", row.SensorID, row.DayStart, err)
		}
	}
	if len(rows) > 0 {
		log.Printf("Wrote %d daily rollup(s) to Postgres", len(rows))
	}
	return nil
}

// Close releases the connection pool.
func (w *PostgresWriter) Close() error {
	w.pool.Close()
	return nil
}
