// Package rollup is the aggregation engine: it folds chronologically ordered
// normalized records into hourly and daily occupancy rollups. It is stateless
// per invocation except for the per-sensor occupancy accumulators threaded
// through a batch, so re-running it over the same input is idempotent.
package rollup

import (
	"sort"
	"time"

	"TrafficLens/internal/model"
)

// OccupancyState is the running non-negative occupancy counter. It is seeded
// at zero at the start of an aggregation batch and never persisted; its
// trajectory yields the average and peak occupancy figures.
type OccupancyState struct {
	current int
}

// Advance applies one record's net count. Clipping at zero is policy: a
// sensor under-counting exits produces a transient negative delta that must
// not corrupt reported occupancy.
func (s *OccupancyState) Advance(netCount int) int {
	s.current += netCount
	if s.current < 0 {
		s.current = 0
	}
	return s.current
}

// Current returns the current occupancy estimate.
func (s *OccupancyState) Current() int {
	return s.current
}

// Dedupe removes duplicate records keyed by (sensor, interval start),
// keeping the first occurrence. Overlapping chunk fetches and re-runs
// produce duplicates routinely.
func Dedupe(records []model.NormalizedRecord) []model.NormalizedRecord {
	seen := make(map[string]map[time.Time]bool)
	out := records[:0:0]
	for _, rec := range records {
		byStart := seen[rec.SensorID]
		if byStart == nil {
			byStart = make(map[time.Time]bool)
			seen[rec.SensorID] = byStart
		}
		if byStart[rec.IntervalStart] {
			continue
		}
		byStart[rec.IntervalStart] = true
		out = append(out, rec)
	}
	return out
}

// sortChronological orders records by interval start ascending. Occupancy
// correctness depends on chronological replay.
func sortChronological(records []model.NormalizedRecord) []model.NormalizedRecord {
	sorted := make([]model.NormalizedRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].IntervalStart.Before(sorted[j].IntervalStart)
	})
	return sorted
}

// bucketKey identifies one sensor's aggregation period. Batches may mix
// sensors; each sensor gets its own buckets and occupancy replay.
type bucketKey struct {
	sensor string
	start  time.Time
}

type bucketAcc struct {
	entries      int
	exits        int
	occupancySum int
	peak         int
	samples      int
	lines        map[int]model.LineCount
}

func (b *bucketAcc) add(rec model.NormalizedRecord, occupancy int) {
	b.entries += rec.TotalIn
	b.exits += rec.TotalOut
	b.occupancySum += occupancy
	if occupancy > b.peak {
		b.peak = occupancy
	}
	b.samples++
	for i, lc := range rec.Lines {
		cur := b.lines[i]
		cur.In += lc.In
		cur.Out += lc.Out
		b.lines[i] = cur
	}
}

// HourlyRollups aggregates a batch into hourly rollups, bucketed per sensor
// and ordered by first appearance. An hour with no input records produces no
// row at all, so a missing hour stays distinguishable from a measured-zero
// hour.
func HourlyRollups(records []model.NormalizedRecord) []model.HourlyAggregate {
	sorted := sortChronological(records)

	buckets := make(map[bucketKey]*bucketAcc)
	var order []bucketKey
	occ := make(map[string]*OccupancyState)

	for _, rec := range sorted {
		state := occ[rec.SensorID]
		if state == nil {
			state = &OccupancyState{}
			occ[rec.SensorID] = state
		}
		occupancy := state.Advance(rec.NetCount)

		key := bucketKey{sensor: rec.SensorID, start: rec.IntervalStart.Truncate(time.Hour)}
		b, ok := buckets[key]
		if !ok {
			b = &bucketAcc{lines: make(map[int]model.LineCount)}
			buckets[key] = b
			order = append(order, key)
		}
		b.add(rec, occupancy)
	}

	rollups := make([]model.HourlyAggregate, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		rollups = append(rollups, model.HourlyAggregate{
			SensorID:      key.sensor,
			HourStart:     key.start,
			TotalEntries:  b.entries,
			TotalExits:    b.exits,
			NetFlow:       b.entries - b.exits, // negative is valid, reported as-is
			AvgOccupancy:  float64(b.occupancySum) / float64(b.samples),
			PeakOccupancy: b.peak,
			SampleCount:   b.samples,
			LineTotals:    b.lines,
		})
	}
	return rollups
}

// DailyRollups aggregates a batch into daily rollups, bucketed per sensor and
// ordered by first appearance. The occupancy accumulators are re-seeded for
// the daily pass so both passes replay the batch identically from zero.
func DailyRollups(records []model.NormalizedRecord) []model.DailyAggregate {
	sorted := sortChronological(records)

	buckets := make(map[bucketKey]*bucketAcc)
	var order []bucketKey
	occ := make(map[string]*OccupancyState)

	for _, rec := range sorted {
		state := occ[rec.SensorID]
		if state == nil {
			state = &OccupancyState{}
			occ[rec.SensorID] = state
		}
		occupancy := state.Advance(rec.NetCount)

		t := rec.IntervalStart
		key := bucketKey{
			sensor: rec.SensorID,
			start:  time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC),
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucketAcc{lines: make(map[int]model.LineCount)}
			buckets[key] = b
			order = append(order, key)
		}
		b.add(rec, occupancy)
	}

	rollups := make([]model.DailyAggregate, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		rollups = append(rollups, model.DailyAggregate{
			SensorID:      key.sensor,
			DayStart:      key.start,
			TotalEntries:  b.entries,
			TotalExits:    b.exits,
			NetFlow:       b.entries - b.exits,
			AvgOccupancy:  float64(b.occupancySum) / float64(b.samples),
			PeakOccupancy: b.peak,
			SampleCount:   b.samples,
		})
	}
	return rollups
}
