// Package wire owns the sensor wire formats: the CSV export family, the
// variable-assignment status blob, and the spatial heat grid JSON. Vendor
// quirks (header typos, alternate column spellings, the two report-type
// parameter schemes) stay in this package so the canonical model never
// depends on them.
package wire

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"TrafficLens/internal/model"
)

// ExportTimeLayout is the textual timestamp format the export interface
// expects in time_start/time_end query parameters.
const ExportTimeLayout = "2006-01-02-15:04:05"

// DefaultRowTimeLayout is the row timestamp format most firmware revisions
// emit; sensors can override it via data_mapping.timestamp_format.
const DefaultRowTimeLayout = "2006/01/02 15:04:05"

// Canonical field names used by the column lookup table.
const (
	FieldStartTime = "start_time"
	FieldEndTime   = "end_time"
	FieldTotalIn   = "total_in"
	FieldTotalOut  = "total_out"
	FieldHeatValue = "heat_value"
)

// Mapping configures how one sensor's CSV payloads translate into canonical
// records.
type Mapping struct {
	SensorID        string
	TimestampLayout string
	LineCount       int
	RegionCount     int
	// Overrides maps an exact raw header cell to a canonical field name, for
	// firmware revisions whose headers match none of the known spellings.
	Overrides map[string]string
}

func (m Mapping) rowLayout() string {
	if m.TimestampLayout != "" {
		return m.TimestampLayout
	}
	return DefaultRowTimeLayout
}

// ExportParams builds the query parameters for a CSV export request. The
// per-endpoint defaults cover the current parameter scheme; configured
// endpoint parameters override them, which is how the older daily/weekly
// report_type scheme is still addressable.
func ExportParams(endpoint model.Endpoint, start, end time.Time, extra map[string]string) map[string]string {
	params := map[string]string{
		"report_type":     "0",
		"statistics_type": "0",
		"linetype":        "15", // all four lines
	}

	switch endpoint {
	case model.EndpointPeopleCounting:
		params["dw"] = "pcdatalog"
	case model.EndpointRegionalCounting:
		params["dw"] = "rcdatalog"
	case model.EndpointHeatmap:
		params["dw"] = "heatmapcsv"
	case model.EndpointSpaceHeatmap:
		params["dw"] = "spaceheatmap"
	}

	for k, v := range extra {
		params[k] = v
	}

	params["time_start"] = start.Format(ExportTimeLayout)
	params["time_end"] = end.Format(ExportTimeLayout)
	return params
}

// StatusParams builds the query parameters for the low-latency status probe.
func StatusParams() map[string]string {
	return map[string]string{"dw": "status"}
}

var (
	lineColRe   = regexp.MustCompile(`^line(\d+)(in|out)$`)
	regionColRe = regexp.MustCompile(`^region(\d+)$`)
)

// normalizeHeader collapses the spellings seen across firmware revisions:
// "Line1 - In", "Line1-In" and "line1_in" all normalize to "line1in".
func normalizeHeader(cell string) string {
	cell = strings.ToLower(strings.TrimSpace(cell))
	cell = strings.NewReplacer(" ", "", "-", "", "_", "").Replace(cell)
	return cell
}

// canonicalField resolves one raw header cell to a canonical field name. The
// transposed "In Total"/"Out Total" spellings are a documented vendor typo
// for the total columns and are accepted alongside the correct order.
func canonicalField(cell string, m Mapping) (string, bool) {
	if field, ok := m.Overrides[strings.TrimSpace(cell)]; ok {
		return field, true
	}

	switch n := normalizeHeader(cell); {
	case n == "starttime":
		return FieldStartTime, true
	case n == "endtime":
		return FieldEndTime, true
	case n == "totalin" || n == "intotal":
		return FieldTotalIn, true
	case n == "totalout" || n == "outtotal":
		return FieldTotalOut, true
	case n == "heatvalue" || n == "value":
		return FieldHeatValue, true
	case lineColRe.MatchString(n):
		return n, true // already canonical: lineNin / lineNout
	case regionColRe.MatchString(n):
		return n, true
	}
	return "", false
}

// resolveColumns maps canonical field names to column indices. Columns that
// resolve to no known field are ignored, not rejected.
func resolveColumns(header []string, m Mapping) map[string]int {
	cols := make(map[string]int, len(header))
	for i, cell := range header {
		if field, ok := canonicalField(cell, m); ok {
			cols[field] = i
		}
	}
	return cols
}

// readRows parses the payload into a header and data rows. A nil header
// means the payload was empty or whitespace-only, which is a valid,
// non-exceptional outcome.
func readRows(payload []byte) ([]string, [][]string) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, nil
	}

	r := csv.NewReader(bytes.NewReader(payload))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var header []string
	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("Warning: skipping malformed CSV row: %v", err)
			continue
		}
		if header == nil {
			header = row
			continue
		}
		rows = append(rows, row)
	}
	return header, rows
}

func cellInt(row []string, idx int) (int, error) {
	if idx >= len(row) {
		return 0, fmt.Errorf("column %d out of range", idx)
	}
	return strconv.Atoi(strings.TrimSpace(row[idx]))
}

// rowInterval parses the start/end timestamps of one row. A row without a
// parsable start timestamp is dropped; a missing end timestamp falls back to
// the start.
func rowInterval(row []string, cols map[string]int, layout string) (time.Time, time.Time, error) {
	idx, ok := cols[FieldStartTime]
	if !ok || idx >= len(row) {
		return time.Time{}, time.Time{}, fmt.Errorf("missing start time column")
	}
	start, err := time.ParseInLocation(layout, strings.TrimSpace(row[idx]), time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("unparsable start time %q: %w", row[idx], err)
	}

	end := start
	if idx, ok := cols[FieldEndTime]; ok && idx < len(row) {
		if parsed, err := time.ParseInLocation(layout, strings.TrimSpace(row[idx]), time.UTC); err == nil {
			end = parsed
		}
	}
	return start, end, nil
}

// ParseCountingCSV parses a people-counting export into normalized records.
// One malformed row never discards the rest of the batch.
func ParseCountingCSV(payload []byte, m Mapping) []model.NormalizedRecord {
	header, rows := readRows(payload)
	if header == nil {
		return nil
	}
	cols := resolveColumns(header, m)

	lineCount := m.LineCount
	if lineCount <= 0 {
		lineCount = 4
	}

	var records []model.NormalizedRecord
	for _, row := range rows {
		start, end, err := rowInterval(row, cols, m.rowLayout())
		if err != nil {
			log.Printf("Warning: sensor %s: dropping row: %v", m.SensorID, err)
			continue
		}

		lines := make(map[int]model.LineCount)
		malformed := false
		for i := 1; i <= lineCount; i++ {
			inIdx, inOK := cols[fmt.Sprintf("line%din", i)]
			outIdx, outOK := cols[fmt.Sprintf("line%dout", i)]
			if !inOK && !outOK {
				continue // missing line contributes zero
			}
			var lc model.LineCount
			if inOK {
				if lc.In, err = cellInt(row, inIdx); err != nil {
					malformed = true
					break
				}
			}
			if outOK {
				if lc.Out, err = cellInt(row, outIdx); err != nil {
					malformed = true
					break
				}
			}
			lines[i] = lc
		}
		if malformed {
			log.Printf("Warning: sensor %s: dropping row with non-numeric count: %v", m.SensorID, err)
			continue
		}

		// Single-line firmwares export only the total columns; fold them
		// into line 1 so downstream code sees one shape.
		if len(lines) == 0 {
			if lc, ok := totalsAsLine(row, cols); ok {
				lines[1] = lc
			}
		}

		records = append(records, model.NewNormalizedRecord(m.SensorID, start, end, lines, nil))
	}
	return records
}

func totalsAsLine(row []string, cols map[string]int) (model.LineCount, bool) {
	inIdx, inOK := cols[FieldTotalIn]
	outIdx, outOK := cols[FieldTotalOut]
	if !inOK || !outOK {
		return model.LineCount{}, false
	}
	in, err1 := cellInt(row, inIdx)
	out, err2 := cellInt(row, outIdx)
	if err1 != nil || err2 != nil {
		return model.LineCount{}, false
	}
	return model.LineCount{In: in, Out: out}, true
}

// ParseRegionalCSV parses a regional-counting export. Regional records carry
// region occupancy counts and no line counts.
func ParseRegionalCSV(payload []byte, m Mapping) []model.NormalizedRecord {
	header, rows := readRows(payload)
	if header == nil {
		return nil
	}
	cols := resolveColumns(header, m)

	regionCount := m.RegionCount
	if regionCount <= 0 {
		regionCount = 4
	}

	var records []model.NormalizedRecord
	for _, row := range rows {
		start, end, err := rowInterval(row, cols, m.rowLayout())
		if err != nil {
			log.Printf("Warning: sensor %s: dropping regional row: %v", m.SensorID, err)
			continue
		}

		regions := make(map[int]int)
		malformed := false
		for i := 1; i <= regionCount; i++ {
			idx, ok := cols[fmt.Sprintf("region%d", i)]
			if !ok {
				continue
			}
			v, err := cellInt(row, idx)
			if err != nil {
				malformed = true
				break
			}
			regions[i] = v
		}
		if malformed {
			log.Printf("Warning: sensor %s: dropping regional row with non-numeric count", m.SensorID)
			continue
		}

		records = append(records, model.NewNormalizedRecord(m.SensorID, start, end, nil, regions))
	}
	return records
}

// ParseHeatSeriesCSV parses a temporal heat-map export into per-interval
// samples.
func ParseHeatSeriesCSV(payload []byte, m Mapping) []model.HeatSample {
	header, rows := readRows(payload)
	if header == nil {
		return nil
	}
	cols := resolveColumns(header, m)

	var samples []model.HeatSample
	for _, row := range rows {
		start, end, err := rowInterval(row, cols, m.rowLayout())
		if err != nil {
			log.Printf("Warning: sensor %s: dropping heat row: %v", m.SensorID, err)
			continue
		}
		idx, ok := cols[FieldHeatValue]
		if !ok {
			continue
		}
		v, err := cellInt(row, idx)
		if err != nil {
			log.Printf("Warning: sensor %s: dropping heat row with non-numeric value", m.SensorID)
			continue
		}
		samples = append(samples, model.HeatSample{Start: start, End: end, Value: v})
	}
	return samples
}
