// Package timenorm is the single source of truth for sensor clock handling:
// offset detection, window chunking, and future-timestamp filtering. It runs
// between collection and aggregation.
package timenorm

import (
	"context"
	"log"
	"math"
	"time"

	"TrafficLens/internal/config"
	"TrafficLens/internal/model"
)

// TimeRange is a half-open collection window.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Normalizer applies clock-offset correction, chunking and future filtering
// to one sensor's collection requests.
type Normalizer struct {
	defaultOffset  int
	chunkThreshold time.Duration
	probeWindow    time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// New creates a normalizer from the collector configuration.
func New(cfg config.CollectorConfig) *Normalizer {
	return &Normalizer{
		defaultOffset:  cfg.DefaultUTCOffset,
		chunkThreshold: config.Duration(cfg.ChunkThreshold, 24*time.Hour),
		probeWindow:    config.Duration(cfg.ProbeWindow, 3*time.Hour),
		now:            time.Now,
	}
}

// DetectClockOffset probes a short recent window and compares the most
// recent non-zero-activity row against the current UTC time, yielding an
// integer hour offset wrapped into [-12, +12]. When no non-zero row is
// available it falls back to the configured default offset.
func (n *Normalizer) DetectClockOffset(ctx context.Context, c model.Connector) int {
	now := n.now().UTC()
	payload, err := c.FetchRaw(ctx, now.Add(-n.probeWindow), now.Add(n.probeWindow), model.EndpointPeopleCounting)
	if err != nil {
		log.Printf("Sensor %s: offset probe failed, using default offset %+dh: %v", c.Name(), n.defaultOffset, err)
		return n.defaultOffset
	}

	records := c.Parse(payload, model.EndpointPeopleCounting)
	var latest *model.NormalizedRecord
	for i := range records {
		rec := &records[i]
		if rec.TotalIn+rec.TotalOut == 0 {
			continue
		}
		if latest == nil || rec.IntervalEnd.After(latest.IntervalEnd) {
			latest = rec
		}
	}
	if latest == nil {
		log.Printf("Sensor %s: no activity in probe window, using default offset %+dh", c.Name(), n.defaultOffset)
		return n.defaultOffset
	}

	offset := wrapOffset(int(math.Round(latest.IntervalEnd.Sub(now).Hours())))
	log.Printf("Sensor %s: detected clock offset %+dh", c.Name(), offset)
	return offset
}

// Chunk splits a request spanning more than the chunk threshold into
// sequential sub-windows, to avoid sensor-side timeouts on large exports.
// Results are meant to be fetched one at a time, in order.
func (n *Normalizer) Chunk(start, end time.Time) []TimeRange {
	if !end.After(start) {
		return nil
	}
	if end.Sub(start) <= n.chunkThreshold {
		return []TimeRange{{Start: start, End: end}}
	}

	var chunks []TimeRange
	for cur := start; cur.Before(end); cur = cur.Add(n.chunkThreshold) {
		chunkEnd := cur.Add(n.chunkThreshold)
		if chunkEnd.After(end) {
			chunkEnd = end
		}
		chunks = append(chunks, TimeRange{Start: cur, End: chunkEnd})
	}
	return chunks
}

// FilterFuture discards records whose interval start, corrected by the
// detected offset, lies in the future relative to collection time. Such
// records are symptomatic of clock drift and are counted, not raised.
func (n *Normalizer) FilterFuture(records []model.NormalizedRecord, offsetHours int) ([]model.NormalizedRecord, int) {
	now := n.now().UTC()
	offset := time.Duration(offsetHours) * time.Hour

	kept := records[:0:0]
	dropped := 0
	for _, rec := range records {
		corrected := rec.IntervalStart.Add(-offset)
		if corrected.After(now) {
			dropped++
			continue
		}
		kept = append(kept, rec)
	}
	if dropped > 0 {
		log.Printf("Dropped %d record(s) with future timestamps after %+dh offset correction", dropped, offsetHours)
	}
	return kept, dropped
}

// wrapOffset wraps an hour offset into [-12, +12].
func wrapOffset(offset int) int {
	for offset > 12 {
		offset -= 24
	}
	for offset < -12 {
		offset += 24
	}
	return offset
}
