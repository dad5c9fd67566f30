package multisense

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"TrafficLens/internal/config"
	"TrafficLens/internal/model"
)

const countingCSV = "StartTime,EndTime,Line1 - In,Line1 - Out\n" +
	"2025/07/18 10:00:00,2025/07/18 10:59:59,8,3\n"

func sensorFor(t *testing.T, server *httptest.Server) config.SensorConfig {
	t.Helper()
	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("Failed to parse test server URL: %v", err)
	}
	port, _ := strconv.Atoi(u.Port())
	return config.SensorConfig{
		Name: "test-multisense",
		Type: "multisense",
		Connection: config.ConnectionConfig{
			Host:     u.Hostname(),
			Port:     port,
			Protocol: "http",
		},
		DataMapping: config.DataMappingConfig{
			LineCount:                1,
			RegionCount:              2,
			SupportsRegionalCounting: true,
			SupportsRealTimeStatus:   true,
		},
	}
}

func fastCollector() config.CollectorConfig {
	return config.CollectorConfig{
		FetchTimeout:  "5s",
		RetryAttempts: 2,
		RetryBackoff:  "1ms",
	}
}

func TestEndpoints_CapabilityDerived(t *testing.T) {
	sensor := config.SensorConfig{
		Name:       "caps",
		Connection: config.ConnectionConfig{Host: "10.0.0.1"},
		DataMapping: config.DataMappingConfig{
			SupportsRegionalCounting: true,
		},
	}
	conn, err := New(sensor, fastCollector())
	if err != nil {
		t.Fatalf("Failed to create connector: %v", err)
	}

	eps := conn.Endpoints()
	if len(eps) != 2 {
		t.Fatalf("Expected 2 capability-derived endpoints, got %d: %v", len(eps), eps)
	}
	if eps[0] != model.EndpointPeopleCounting || eps[1] != model.EndpointRegionalCounting {
		t.Errorf("Unexpected endpoint set: %v", eps)
	}
}

func TestCollectData_PartialFailureIsolation(t *testing.T) {
	// 1. A sensor whose regional export is broken while everything else works
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("dw") {
		case "pcdatalog":
			w.Write([]byte(countingCSV))
		case "rcdatalog":
			w.WriteHeader(http.StatusInternalServerError)
		case "status":
			w.Write([]byte("var in='120';var out='95';var sum='25';var capacity='300';var alarm='0';"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	conn, err := New(sensorFor(t, server), fastCollector())
	if err != nil {
		t.Fatalf("Failed to create connector: %v", err)
	}

	now := time.Now().UTC()
	result := conn.CollectData(context.Background(), now.Add(-time.Hour), now, []model.Endpoint{
		model.EndpointPeopleCounting,
		model.EndpointRegionalCounting,
		model.EndpointRealTimeStatus,
	})

	// 2. The healthy counting endpoint is unaffected by the sibling failure
	if len(result.Records[model.EndpointPeopleCounting]) != 1 {
		t.Errorf("Expected 1 counting record, got %d", len(result.Records[model.EndpointPeopleCounting]))
	}

	// 3. The broken endpoint degrades to exactly one recorded failure
	if len(result.Failures) != 1 {
		t.Fatalf("Expected 1 failure, got %d: %+v", len(result.Failures), result.Failures)
	}
	if result.Failures[0].Endpoint != model.EndpointRegionalCounting {
		t.Errorf("Expected the regional endpoint to fail, got %s", result.Failures[0].Endpoint)
	}

	// 4. The status blob still coerces into a snapshot
	if result.Status == nil {
		t.Fatal("Expected a status snapshot")
	}
	if result.Status.In != 120 || result.Status.Out != 95 || result.Status.Capacity != 300 {
		t.Errorf("Unexpected status snapshot: %+v", result.Status)
	}
}

func TestCollectData_DisabledCapability(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(countingCSV))
	}))
	defer server.Close()

	sensor := sensorFor(t, server)
	sensor.DataMapping.SupportsRegionalCounting = false
	conn, err := New(sensor, fastCollector())
	if err != nil {
		t.Fatalf("Failed to create connector: %v", err)
	}

	now := time.Now().UTC()
	result := conn.CollectData(context.Background(), now.Add(-time.Hour), now,
		[]model.Endpoint{model.EndpointRegionalCounting})

	if len(result.Failures) != 1 {
		t.Fatalf("Expected 1 failure for the disabled capability, got %d", len(result.Failures))
	}
	if len(result.Records[model.EndpointRegionalCounting]) != 0 {
		t.Error("Expected no records for the disabled capability")
	}
}

func TestParse_SpatialGridPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("dw") == "spaceheatmap" {
			w.Write([]byte(`{"max":50,"min":0,"data":[{"x":0,"y":1,"value":50}]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	conn, err := New(sensorFor(t, server), fastCollector())
	if err != nil {
		t.Fatalf("Failed to create connector: %v", err)
	}

	start := time.Date(2025, 7, 18, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	result := conn.CollectData(context.Background(), start, end, []model.Endpoint{model.EndpointSpaceHeatmap})

	grid := result.Grids[model.EndpointSpaceHeatmap]
	if grid == nil {
		t.Fatal("Expected a spatial grid")
	}
	if grid.Max != 50 || len(grid.Points) != 1 {
		t.Errorf("Unexpected grid: %+v", grid)
	}
	if !grid.WindowStart.Equal(start) || !grid.WindowEnd.Equal(end) {
		t.Errorf("Expected grid to carry the query window, got %v - %v", grid.WindowStart, grid.WindowEnd)
	}
}
