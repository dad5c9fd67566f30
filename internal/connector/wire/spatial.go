package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"TrafficLens/internal/model"
)

type spatialPayload struct {
	Max  int               `json:"max"`
	Min  int               `json:"min"`
	Data []model.HeatPoint `json:"data"`
}

// ParseSpatialGrid parses a spatial heat-map JSON object. The grid is a
// single record for the whole query window, not a per-interval series. An
// empty payload yields a nil grid and no error.
func ParseSpatialGrid(payload []byte, sensorID string, start, end time.Time) (*model.HeatmapGrid, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, nil
	}

	var p spatialPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("invalid spatial heatmap payload: %w", err)
	}

	return &model.HeatmapGrid{
		SensorID:    sensorID,
		WindowStart: start,
		WindowEnd:   end,
		Max:         p.Max,
		Min:         p.Min,
		Points:      p.Data,
	}, nil
}
