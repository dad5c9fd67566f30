package wire

import (
	"testing"
	"time"

	"TrafficLens/internal/model"
)

func TestParseCountingCSV_FourLineExport(t *testing.T) {
	// 1. A four-line export with the "LineN - In" header spelling
	payload := []byte(
		"StartTime,EndTime,Line1 - In,Line1 - Out,Line2 - In,Line2 - Out,Line3 - In,Line3 - Out,Line4 - In,Line4 - Out\n" +
			"2025/07/18 15:00:00,2025/07/18 15:59:59,6,6,0,0,0,0,434,171\n")
	m := Mapping{SensorID: "front-door", LineCount: 4}

	// 2. Parse it
	records := ParseCountingCSV(payload, m)
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	rec := records[0]

	// 3. Verify the interval
	wantStart := time.Date(2025, 7, 18, 15, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2025, 7, 18, 15, 59, 59, 0, time.UTC)
	if !rec.IntervalStart.Equal(wantStart) {
		t.Errorf("Expected interval start %v, got %v", wantStart, rec.IntervalStart)
	}
	if !rec.IntervalEnd.Equal(wantEnd) {
		t.Errorf("Expected interval end %v, got %v", wantEnd, rec.IntervalEnd)
	}

	// 4. Verify per-line counts
	if got := rec.Lines[1]; got.In != 6 || got.Out != 6 {
		t.Errorf("Expected line 1 counts 6/6, got %d/%d", got.In, got.Out)
	}
	if got := rec.Lines[4]; got.In != 434 || got.Out != 171 {
		t.Errorf("Expected line 4 counts 434/171, got %d/%d", got.In, got.Out)
	}

	// 5. Totals are derived from the lines, not read from the payload
	if rec.TotalIn != 440 {
		t.Errorf("Expected total in 440, got %d", rec.TotalIn)
	}
	if rec.TotalOut != 177 {
		t.Errorf("Expected total out 177, got %d", rec.TotalOut)
	}
	if rec.NetCount != 263 {
		t.Errorf("Expected net count 263, got %d", rec.NetCount)
	}
}

func TestParseCountingCSV_HeaderSpellings(t *testing.T) {
	// The same logical export seen across firmware revisions
	payloads := map[string][]byte{
		"dashed":     []byte("StartTime,EndTime,Line1-In,Line1-Out\n2025/07/18 10:00:00,2025/07/18 10:59:59,10,4\n"),
		"underscore": []byte("start_time,end_time,line1_in,line1_out\n2025/07/18 10:00:00,2025/07/18 10:59:59,10,4\n"),
		"spaced":     []byte("Start Time,End Time,Line1 - In,Line1 - Out\n2025/07/18 10:00:00,2025/07/18 10:59:59,10,4\n"),
	}
	m := Mapping{SensorID: "s1", LineCount: 1}

	for name, payload := range payloads {
		records := ParseCountingCSV(payload, m)
		if len(records) != 1 {
			t.Errorf("%s header: expected 1 record, got %d", name, len(records))
			continue
		}
		if lc := records[0].Lines[1]; lc.In != 10 || lc.Out != 4 {
			t.Errorf("%s header: expected line 1 counts 10/4, got %d/%d", name, lc.In, lc.Out)
		}
	}
}

func TestParseCountingCSV_TotalsOnlyExport(t *testing.T) {
	// 1. Single-line firmwares export only totals; the transposed
	//    "In Total"/"Out Total" spelling is a known vendor typo.
	payload := []byte("StartTime,EndTime,In Total,Out Total\n" +
		"2025/07/18 12:00:00,2025/07/18 12:59:59,25,19\n")
	m := Mapping{SensorID: "s1", LineCount: 1}

	// 2. Totals fold into line 1
	records := ParseCountingCSV(payload, m)
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if lc := rec.Lines[1]; lc.In != 25 || lc.Out != 19 {
		t.Errorf("Expected totals folded into line 1 as 25/19, got %d/%d", lc.In, lc.Out)
	}
	if rec.TotalIn != 25 || rec.TotalOut != 19 || rec.NetCount != 6 {
		t.Errorf("Expected totals 25/19 net 6, got %d/%d net %d", rec.TotalIn, rec.TotalOut, rec.NetCount)
	}
}

func TestParseCountingCSV_FieldOverrides(t *testing.T) {
	// An unrecognized header resolves only through the configured override
	payload := []byte("Zeit,Eingang,Ausgang\n2025/07/18 09:00:00,7,3\n")
	m := Mapping{
		SensorID:  "s1",
		LineCount: 1,
		Overrides: map[string]string{
			"Zeit":    FieldStartTime,
			"Eingang": FieldTotalIn,
			"Ausgang": FieldTotalOut,
		},
	}

	records := ParseCountingCSV(payload, m)
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.TotalIn != 7 || rec.TotalOut != 3 {
		t.Errorf("Expected totals 7/3, got %d/%d", rec.TotalIn, rec.TotalOut)
	}
	// With no end-time column, the interval end falls back to the start
	if !rec.IntervalEnd.Equal(rec.IntervalStart) {
		t.Errorf("Expected interval end to equal start, got %v / %v", rec.IntervalStart, rec.IntervalEnd)
	}
}

func TestParseCountingCSV_MalformedRows(t *testing.T) {
	// 1. A batch with one bad timestamp and one non-numeric count
	payload := []byte("StartTime,EndTime,Line1 - In,Line1 - Out\n" +
		"not-a-timestamp,2025/07/18 10:59:59,1,1\n" +
		"2025/07/18 11:00:00,2025/07/18 11:59:59,oops,2\n" +
		"2025/07/18 12:00:00,2025/07/18 12:59:59,3,1\n")
	m := Mapping{SensorID: "s1", LineCount: 1}

	// 2. Only the well-formed row survives
	records := ParseCountingCSV(payload, m)
	if len(records) != 1 {
		t.Fatalf("Expected 1 surviving record, got %d", len(records))
	}
	if records[0].TotalIn != 3 || records[0].TotalOut != 1 {
		t.Errorf("Expected surviving record 3/1, got %d/%d", records[0].TotalIn, records[0].TotalOut)
	}
}

func TestParseCountingCSV_EmptyPayload(t *testing.T) {
	m := Mapping{SensorID: "s1", LineCount: 4}
	if records := ParseCountingCSV(nil, m); records != nil {
		t.Errorf("Expected nil records for empty payload, got %v", records)
	}
	if records := ParseCountingCSV([]byte("  \n  "), m); records != nil {
		t.Errorf("Expected nil records for whitespace payload, got %v", records)
	}
}

func TestParseCountingCSV_MissingLineContributesZero(t *testing.T) {
	// A two-line mapping against a payload that only carries line 1
	payload := []byte("StartTime,EndTime,Line1 - In,Line1 - Out\n" +
		"2025/07/18 10:00:00,2025/07/18 10:59:59,5,2\n")
	m := Mapping{SensorID: "s1", LineCount: 2}

	records := ParseCountingCSV(payload, m)
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if _, ok := rec.Lines[2]; ok {
		t.Errorf("Expected no entry for missing line 2, got %v", rec.Lines[2])
	}
	if rec.TotalIn != 5 || rec.TotalOut != 2 {
		t.Errorf("Expected totals 5/2, got %d/%d", rec.TotalIn, rec.TotalOut)
	}
}

func TestParseRegionalCSV(t *testing.T) {
	payload := []byte("StartTime,EndTime,Region1,Region2,Region3,Region4\n" +
		"2025/07/18 10:00:00,2025/07/18 10:59:59,12,0,7,1\n")
	m := Mapping{SensorID: "s1", RegionCount: 4}

	records := ParseRegionalCSV(payload, m)
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if len(rec.Regions) != 4 {
		t.Fatalf("Expected 4 regions, got %d", len(rec.Regions))
	}
	if rec.Regions[1] != 12 || rec.Regions[3] != 7 {
		t.Errorf("Expected region counts 12 and 7, got %d and %d", rec.Regions[1], rec.Regions[3])
	}
	// Regional records carry no line counts and therefore no totals
	if rec.TotalIn != 0 || rec.TotalOut != 0 || rec.NetCount != 0 {
		t.Errorf("Expected zero totals for regional record, got %d/%d net %d", rec.TotalIn, rec.TotalOut, rec.NetCount)
	}
}

func TestParseHeatSeriesCSV(t *testing.T) {
	payload := []byte("StartTime,EndTime,Value\n" +
		"2025/07/18 10:00:00,2025/07/18 10:59:59,120\n" +
		"2025/07/18 11:00:00,2025/07/18 11:59:59,95\n")
	m := Mapping{SensorID: "s1"}

	samples := ParseHeatSeriesCSV(payload, m)
	if len(samples) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(samples))
	}
	if samples[0].Value != 120 || samples[1].Value != 95 {
		t.Errorf("Expected sample values 120 and 95, got %d and %d", samples[0].Value, samples[1].Value)
	}
}

func TestExportParams(t *testing.T) {
	start := time.Date(2025, 7, 18, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 7, 18, 23, 59, 59, 0, time.UTC)

	// 1. Per-endpoint defaults
	params := ExportParams(model.EndpointPeopleCounting, start, end, nil)
	if params["dw"] != "pcdatalog" {
		t.Errorf("Expected dw=pcdatalog, got %s", params["dw"])
	}
	if params["time_start"] != "2025-07-18-00:00:00" {
		t.Errorf("Unexpected time_start: %s", params["time_start"])
	}
	if params["time_end"] != "2025-07-18-23:59:59" {
		t.Errorf("Unexpected time_end: %s", params["time_end"])
	}

	// 2. Configured endpoint parameters override the defaults
	params = ExportParams(model.EndpointPeopleCounting, start, end, map[string]string{"report_type": "3", "linetype": "1"})
	if params["report_type"] != "3" || params["linetype"] != "1" {
		t.Errorf("Expected overrides to win, got report_type=%s linetype=%s", params["report_type"], params["linetype"])
	}
}
