package model

import "time"

// Endpoint is a logical data category exposed by a sensor.
type Endpoint string

const (
	EndpointPeopleCounting   Endpoint = "people_counting"
	EndpointRegionalCounting Endpoint = "regional_counting"
	EndpointHeatmap          Endpoint = "heatmap"
	EndpointSpaceHeatmap     Endpoint = "space_heatmap"
	EndpointRealTimeStatus   Endpoint = "real_time_status"
)

// LineCount holds the in/out counts for a single counting line.
type LineCount struct {
	In  int `json:"in"`
	Out int `json:"out"`
}

// NormalizedRecord is the canonical per-interval reading produced by parsing
// a sensor payload. Lines and Regions are keyed by 1-based index; a line that
// is absent from the payload simply has no entry and contributes zero to the
// totals.
type NormalizedRecord struct {
	SensorID      string            `json:"sensor_id"`
	IntervalStart time.Time         `json:"interval_start"`
	IntervalEnd   time.Time         `json:"interval_end"`
	Lines         map[int]LineCount `json:"lines,omitempty"`
	Regions       map[int]int       `json:"regions,omitempty"`
	TotalIn       int               `json:"total_in"`
	TotalOut      int               `json:"total_out"`
	NetCount      int               `json:"net_count"`
}

// NewNormalizedRecord derives the totals from the line counts that are
// actually present, so TotalIn always equals the sum of the line In values.
func NewNormalizedRecord(sensorID string, start, end time.Time, lines map[int]LineCount, regions map[int]int) NormalizedRecord {
	rec := NormalizedRecord{
		SensorID:      sensorID,
		IntervalStart: start,
		IntervalEnd:   end,
		Lines:         lines,
		Regions:       regions,
	}
	for _, lc := range lines {
		rec.TotalIn += lc.In
		rec.TotalOut += lc.Out
	}
	rec.NetCount = rec.TotalIn - rec.TotalOut
	return rec
}

// HeatPoint is a single cell of a spatial heat grid.
type HeatPoint struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Value int `json:"value"`
}

// HeatmapGrid is the spatial heat distribution for one query window. It is a
// single record per window, not a per-interval series.
type HeatmapGrid struct {
	SensorID    string      `json:"sensor_id"`
	WindowStart time.Time   `json:"window_start"`
	WindowEnd   time.Time   `json:"window_end"`
	Max         int         `json:"max"`
	Min         int         `json:"min"`
	Points      []HeatPoint `json:"points"`
}

// HeatSample is one interval of the temporal heat series.
type HeatSample struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Value int       `json:"value"`
}

// StatusSnapshot holds the cumulative counters reported by the low-latency
// status endpoint.
type StatusSnapshot struct {
	SensorID  string    `json:"sensor_id"`
	Timestamp time.Time `json:"timestamp"`
	In        int       `json:"in"`
	Out       int       `json:"out"`
	Sum       int       `json:"sum"`
	Capacity  int       `json:"capacity"`
	Alarm     int       `json:"alarm"`
}

// HourlyAggregate is the hourly rollup for one sensor, keyed by
// (SensorID, HourStart). A missing row means the hour had no input records;
// an all-zero row means the hour was measured with zero activity.
type HourlyAggregate struct {
	SensorID      string            `json:"sensor_id"`
	HourStart     time.Time         `json:"hour_start"`
	TotalEntries  int               `json:"total_entries"`
	TotalExits    int               `json:"total_exits"`
	NetFlow       int               `json:"net_flow"`
	AvgOccupancy  float64           `json:"avg_occupancy"`
	PeakOccupancy int               `json:"peak_occupancy"`
	SampleCount   int               `json:"sample_count"`
	LineTotals    map[int]LineCount `json:"line_totals,omitempty"`
}

// DailyAggregate is the daily rollup for one sensor, keyed by
// (SensorID, DayStart).
type DailyAggregate struct {
	SensorID      string    `json:"sensor_id"`
	DayStart      time.Time `json:"day_start"`
	TotalEntries  int       `json:"total_entries"`
	TotalExits    int       `json:"total_exits"`
	NetFlow       int       `json:"net_flow"`
	AvgOccupancy  float64   `json:"avg_occupancy"`
	PeakOccupancy int       `json:"peak_occupancy"`
	SampleCount   int       `json:"sample_count"`
}

// EndpointFailure records a collection failure for a single endpoint. The
// failing endpoint degrades to an empty record list; siblings are unaffected.
type EndpointFailure struct {
	Endpoint Endpoint `json:"endpoint"`
	Reason   string   `json:"reason"`
}

// CollectionResult is the outcome of one CollectData call against one sensor.
type CollectionResult struct {
	SensorID   string
	Records    map[Endpoint][]NormalizedRecord
	Grids      map[Endpoint]*HeatmapGrid
	HeatSeries []HeatSample
	Status     *StatusSnapshot
	Failures   []EndpointFailure
}

// NewCollectionResult creates an empty result for a sensor.
func NewCollectionResult(sensorID string) *CollectionResult {
	return &CollectionResult{
		SensorID: sensorID,
		Records:  make(map[Endpoint][]NormalizedRecord),
		Grids:    make(map[Endpoint]*HeatmapGrid),
	}
}

// Fail records a per-endpoint failure and ensures the endpoint still has an
// (empty) record list so callers can range over everything they asked for.
func (r *CollectionResult) Fail(endpoint Endpoint, reason string) {
	if _, ok := r.Records[endpoint]; !ok {
		r.Records[endpoint] = nil
	}
	r.Failures = append(r.Failures, EndpointFailure{Endpoint: endpoint, Reason: reason})
}

// SensorOutcome summarizes one sensor's run within a collection cycle. It is
// the immutable message passed back across the task boundary.
type SensorOutcome struct {
	Sensor        string
	Records       int
	HourlyRows    int
	DailyRows     int
	PeakOccupancy int
	Failures      []string
}

// Failed reports whether the sensor's run recorded any failure.
func (o SensorOutcome) Failed() bool {
	return len(o.Failures) > 0
}
