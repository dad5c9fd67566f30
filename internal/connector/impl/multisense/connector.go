// Package multisense implements the richer connector family: sensors that
// expose regional counting, temporal and spatial heat-maps, and a real-time
// status blob on top of the line-counting export.
package multisense

import (
	"context"
	"fmt"
	"log"
	"time"

	"TrafficLens/internal/config"
	"TrafficLens/internal/connector/impl/linecounter"
	"TrafficLens/internal/connector/wire"
	"TrafficLens/internal/factory"
	"TrafficLens/internal/model"
	"TrafficLens/internal/obs"
)

func init() {
	factory.RegisterConnector("multisense", New)
}

// Connector wraps the line-counting base and adds the regional, heat-map
// and status capabilities declared in the sensor's data mapping.
type Connector struct {
	base     *linecounter.Connector
	declared []model.Endpoint
	regional bool
	realtime bool
}

// New creates a connector from a sensor descriptor.
func New(sensor config.SensorConfig, collector config.CollectorConfig) (model.Connector, error) {
	base, err := linecounter.NewBase(sensor, collector)
	if err != nil {
		return nil, err
	}

	declared := make([]model.Endpoint, 0, len(sensor.Endpoints))
	for name := range sensor.Endpoints {
		declared = append(declared, model.Endpoint(name))
	}

	return &Connector{
		base:     base,
		declared: declared,
		regional: sensor.DataMapping.SupportsRegionalCounting,
		realtime: sensor.DataMapping.SupportsRealTimeStatus,
	}, nil
}

// Name returns the configured sensor name.
func (c *Connector) Name() string {
	return c.base.Name()
}

// Endpoints returns the declared endpoints, or the capability-derived set
// when the config declares none.
func (c *Connector) Endpoints() []model.Endpoint {
	if len(c.declared) > 0 {
		return c.declared
	}
	eps := []model.Endpoint{model.EndpointPeopleCounting}
	if c.regional {
		eps = append(eps, model.EndpointRegionalCounting)
	}
	if c.realtime {
		eps = append(eps, model.EndpointRealTimeStatus)
	}
	return eps
}

// Authenticate issues the base family's status probe.
func (c *Connector) Authenticate(ctx context.Context) bool {
	return c.base.Authenticate(ctx)
}

// ValidateConnection confirms credentials and the data path end to end.
func (c *Connector) ValidateConnection(ctx context.Context) bool {
	return c.base.ValidateConnection(ctx)
}

// FetchRaw issues exactly one HTTP GET for the given window and endpoint.
func (c *Connector) FetchRaw(ctx context.Context, start, end time.Time, endpoint model.Endpoint) ([]byte, error) {
	return c.base.FetchRaw(ctx, start, end, endpoint)
}

// Parse turns a raw payload into normalized records. Heat-map and status
// payloads do not normalize to interval records; CollectData routes them to
// their typed outputs instead.
func (c *Connector) Parse(payload []byte, endpoint model.Endpoint) []model.NormalizedRecord {
	switch endpoint {
	case model.EndpointPeopleCounting:
		return wire.ParseCountingCSV(payload, c.base.Mapping())
	case model.EndpointRegionalCounting:
		return wire.ParseRegionalCSV(payload, c.base.Mapping())
	default:
		return nil
	}
}

// CollectData fetches and parses every requested endpoint. A failure on one
// endpoint is recorded and never aborts the others.
func (c *Connector) CollectData(ctx context.Context, start, end time.Time, endpoints []model.Endpoint) *model.CollectionResult {
	result := model.NewCollectionResult(c.Name())

	for _, ep := range endpoints {
		if !c.supports(ep) {
			result.Fail(ep, fmt.Sprintf("endpoint '%s' not enabled for this sensor", ep))
			continue
		}

		payload, err := c.base.FetchWithRetry(ctx, start, end, ep)
		if err != nil {
			obs.FetchErrors.WithLabelValues(c.Name(), string(ep)).Inc()
			result.Fail(ep, err.Error())
			continue
		}

		switch ep {
		case model.EndpointPeopleCounting, model.EndpointRegionalCounting:
			result.Records[ep] = c.Parse(payload, ep)
		case model.EndpointHeatmap:
			result.HeatSeries = wire.ParseHeatSeriesCSV(payload, c.base.Mapping())
		case model.EndpointSpaceHeatmap:
			grid, err := wire.ParseSpatialGrid(payload, c.Name(), start, end)
			if err != nil {
				result.Fail(ep, err.Error())
				continue
			}
			if grid != nil {
				result.Grids[ep] = grid
			}
		case model.EndpointRealTimeStatus:
			status := wire.CoerceStatus(wire.ParseVarBlob(payload))
			result.Status = &model.StatusSnapshot{
				SensorID:  c.Name(),
				Timestamp: time.Now().UTC(),
				In:        status.In,
				Out:       status.Out,
				Sum:       status.Sum,
				Capacity:  status.Capacity,
				Alarm:     status.Alarm,
			}
		}
	}

	return result
}

func (c *Connector) supports(ep model.Endpoint) bool {
	switch ep {
	case model.EndpointPeopleCounting, model.EndpointHeatmap, model.EndpointSpaceHeatmap:
		return true
	case model.EndpointRegionalCounting:
		return c.regional
	case model.EndpointRealTimeStatus:
		return c.realtime
	default:
		log.Printf("Sensor %s: unknown endpoint '%s' requested", c.Name(), ep)
		return false
	}
}
