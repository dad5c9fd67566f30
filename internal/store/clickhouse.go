// Package store holds the rollup store writers and the real-time status
// cache. All writers implement replace-on-existing-key semantics keyed by
// (sensor, period start), which is what makes pipeline re-runs convergent.
package store

import (
	"context"
	"fmt"
	"log"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"TrafficLens/internal/config"
	"TrafficLens/internal/model"
)

// ReplacingMergeTree keyed by (SensorID, PeriodStart) gives the
// replace-not-accumulate upsert the aggregation contract requires; readers
// query with FINAL.
const createHourlyStatement = `
CREATE TABLE IF NOT EXISTS footfall_hourly (
    SensorID      String,
    PeriodStart   DateTime,
    TotalEntries  Int64,
    TotalExits    Int64,
    NetFlow       Int64,
    AvgOccupancy  Float64,
    PeakOccupancy Int32,
    SampleCount   Int32,
    LineEntries   Array(Int32),
    LineExits     Array(Int32)
) ENGINE = ReplacingMergeTree()
PARTITION BY toYYYYMM(PeriodStart)
ORDER BY (SensorID, PeriodStart);
`

const createDailyStatement = `
CREATE TABLE IF NOT EXISTS footfall_daily (
    SensorID      String,
    PeriodStart   DateTime,
    TotalEntries  Int64,
    TotalExits    Int64,
    NetFlow       Int64,
    AvgOccupancy  Float64,
    PeakOccupancy Int32,
    SampleCount   Int32
) ENGINE = ReplacingMergeTree()
PARTITION BY toYYYYMM(PeriodStart)
ORDER BY (SensorID, PeriodStart);
`

// ClickHouseWriter implements the model.RollupWriter interface for
// ClickHouse.
type ClickHouseWriter struct {
	name string
	conn driver.Conn
}

// NewClickHouseWriter creates a new ClickHouse writer and ensures the rollup
// tables exist.
func NewClickHouseWriter(name string, cfg config.ClickHouseConfig) (model.RollupWriter, error) {
	conn, err := Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	for _, stmt := range []string{createHourlyStatement, createDailyStatement} {
		if err := conn.Exec(context.Background(), stmt); err != nil {
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}
	log.Println("Successfully connected to ClickHouse and ensured rollup tables exist.")

	return &ClickHouseWriter{name: name, conn: conn}, nil
}

// Connect opens and pings a ClickHouse connection.
func Connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return conn, nil
}

// Name returns the configured writer name.
func (w *ClickHouseWriter) Name() string {
	return w.name
}

// WriteHourly inserts hourly rollups; an existing (sensor, hour) key is
// replaced on merge.
func (w *ClickHouseWriter) WriteHourly(ctx context.Context, rows []model.HourlyAggregate) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO footfall_hourly")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, row := range rows {
		lineIn, lineOut := lineArrays(row.LineTotals)
		err = batch.Append(
			row.SensorID,
			row.HourStart,
			int64(row.TotalEntries),
			int64(row.TotalExits),
			int64(row.NetFlow),
			row.AvgOccupancy,
			int32(row.PeakOccupancy),
			int32(row.SampleCount),
			lineIn,
			lineOut,
		)
		if err != nil {
			return fmt.Errorf("failed to append hourly rollup to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	log.Printf("Wrote %d hourly rollup(s) to ClickHouse", len(rows))
	return nil
}

// WriteDaily inserts daily rollups with the same replace semantics.
func (w *ClickHouseWriter) WriteDaily(ctx context.Context, rows []model.DailyAggregate) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO footfall_daily")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, row := range rows {
		err = batch.Append(
			row.SensorID,
			row.DayStart,
			int64(row.TotalEntries),
			int64(row.TotalExits),
			int64(row.NetFlow),
			row.AvgOccupancy,
			int32(row.PeakOccupancy),
			int32(row.SampleCount),
		)
		if err != nil {
			return fmt.Errorf("failed to append daily rollup to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	log.Printf("Wrote %d daily rollup(s) to ClickHouse", len(rows))
	return nil
}

// Close closes the underlying connection.
func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}

// lineArrays flattens the per-line breakdown into dense arrays indexed from
// line 1; lines missing from the map stay zero.
func lineArrays(lines map[int]model.LineCount) ([]int32, []int32) {
	max := 0
	for i := range lines {
		if i > max {
			max = i
		}
	}
	in := make([]int32, max)
	out := make([]int32, max)
	for i, lc := range lines {
		if i < 1 {
			continue
		}
		in[i-1] = int32(lc.In)
		out[i-1] = int32(lc.Out)
	}
	return in, out
}

// BuildWriters constructs every enabled writer from the config, mirroring
// the type switch the factory uses for connectors.
func BuildWriters(cfg *config.Config) ([]model.RollupWriter, error) {
	var writers []model.RollupWriter
	for _, def := range cfg.Writers {
		if !def.Enabled {
			continue
		}

		name := def.Name
		if name == "" {
			name = def.Type
		}

		var (
			writer model.RollupWriter
			err    error
		)
		switch def.Type {
		case "clickhouse":
			writer, err = NewClickHouseWriter(name, def.ClickHouse)
		case "postgres":
			writer, err = NewPostgresWriter(name, def.Postgres)
		default:
			log.Printf("Warning: unknown writer type '%s' in config, skipping.", def.Type)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create writer '%s': %w", name, err)
		}
		writers = append(writers, writer)
	}
	return writers, nil
}
