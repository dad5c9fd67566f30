package query

import (
	"context"
	"fmt"
	"time"

	"TrafficLens/internal/config"
	"TrafficLens/internal/model"
	"TrafficLens/internal/store"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Querier defines the interface for reading rollups back out of the store.
type Querier interface {
	HourlySeries(ctx context.Context, sensorID string, from, to time.Time) ([]model.HourlyAggregate, error)
	DailySeries(ctx context.Context, sensorID string, from, to time.Time) ([]model.DailyAggregate, error)
	Sensors(ctx context.Context) ([]string, error)
}

// clickhouseQuerier implements the Querier interface for ClickHouse. FINAL
// collapses replaced rows so re-written rollups read back as single rows.
type clickhouseQuerier struct {
	conn driver.Conn
}

// NewClickHouseQuerier creates a new querier for ClickHouse.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (Querier, error) {
	conn, err := store.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &clickhouseQuerier{conn: conn}, nil
}

// HourlySeries returns one sensor's hourly rollups in chronological order.
func (q *clickhouseQuerier) HourlySeries(ctx context.Context, sensorID string, from, to time.Time) ([]model.HourlyAggregate, error) {
	rows, err := q.conn.Query(ctx, `
		SELECT PeriodStart, TotalEntries, TotalExits, NetFlow,
		       AvgOccupancy, PeakOccupancy, SampleCount, LineEntries, LineExits
		FROM footfall_hourly FINAL
		WHERE SensorID = ? AND PeriodStart >= ? AND PeriodStart < ?
		ORDER BY PeriodStart
	`, sensorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query hourly rollups: %w", err)
	}
	defer rows.Close()

	var series []model.HourlyAggregate
	for rows.Next() {
		var (
			agg             model.HourlyAggregate
			entries, exits  int64
			netFlow         int64
			peak, samples   int32
			lineIn, lineOut []int32
		)
		if err := rows.Scan(&agg.HourStart, &entries, &exits, &netFlow,
			&agg.AvgOccupancy, &peak, &samples, &lineIn, &lineOut); err != nil {
			return nil, fmt.Errorf("failed to scan hourly rollup: %w", err)
		}
		agg.SensorID = sensorID
		agg.TotalEntries = int(entries)
		agg.TotalExits = int(exits)
		agg.NetFlow = int(netFlow)
		agg.PeakOccupancy = int(peak)
		agg.SampleCount = int(samples)
		agg.LineTotals = lineTotals(lineIn, lineOut)
		series = append(series, agg)
	}
	return series, nil
}

// DailySeries returns one sensor's daily rollups in chronological order.
func (q *clickhouseQuerier) DailySeries(ctx context.Context, sensorID string, from, to time.Time) ([]model.DailyAggregate, error) {
	rows, err := q.conn.Query(ctx, `
		SELECT PeriodStart, TotalEntries, TotalExits, NetFlow,
		       AvgOccupancy, PeakOccupancy, SampleCount
		FROM footfall_daily FINAL
		WHERE SensorID = ? AND PeriodStart >= ? AND PeriodStart < ?
		ORDER BY PeriodStart
	`, sensorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily rollups: %w", err)
	}
	defer rows.Close()

	var series []model.DailyAggregate
	for rows.Next() {
		var (
			agg            model.DailyAggregate
			entries, exits int64
			netFlow        int64
			peak, samples  int32
		)
		if err := rows.Scan(&agg.DayStart, &entries, &exits, &netFlow,
			&agg.AvgOccupancy, &peak, &samples); err != nil {
			return nil, fmt.Errorf("failed to scan daily rollup: %w", err)
		}
		agg.SensorID = sensorID
		agg.TotalEntries = int(entries)
		agg.TotalExits = int(exits)
		agg.NetFlow = int(netFlow)
		agg.PeakOccupancy = int(peak)
		agg.SampleCount = int(samples)
		series = append(series, agg)
	}
	return series, nil
}

// Sensors lists the sensor IDs present in the hourly rollup table.
func (q *clickhouseQuerier) Sensors(ctx context.Context) ([]string, error) {
	rows, err := q.conn.Query(ctx, `SELECT DISTINCT SensorID FROM footfall_hourly ORDER BY SensorID`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sensors: %w", err)
	}
	defer rows.Close()

	var sensors []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan sensor id: %w", err)
		}
		sensors = append(sensors, id)
	}
	return sensors, nil
}

func lineTotals(in, out []int32) map[int]model.LineCount {
	if len(in) == 0 && len(out) == 0 {
		return nil
	}
	totals := make(map[int]model.LineCount)
	for i := range in {
		lc := totals[i+1]
		lc.In = int(in[i])
		totals[i+1] = lc
	}
	for i := range out {
		lc := totals[i+1]
		lc.Out = int(out[i])
		totals[i+1] = lc
	}
	return totals
}
