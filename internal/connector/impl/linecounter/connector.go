// Package linecounter implements the generic line-counting connector family:
// sensors that expose a people-counting CSV export and nothing else.
package linecounter

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-resty/resty/v2"

	"TrafficLens/internal/config"
	"TrafficLens/internal/connector/wire"
	"TrafficLens/internal/factory"
	"TrafficLens/internal/model"
	"TrafficLens/internal/obs"
)

const defaultPath = "/dataloader.cgi"

func init() {
	factory.RegisterConnector("linecounter", New)
}

// Connector talks to one line-counting sensor over its HTTP export
// interface.
type Connector struct {
	name      string
	mapping   wire.Mapping
	client    *resty.Client
	endpoints map[model.Endpoint]map[string]string
	attempts  int
	backoff   time.Duration
}

// New creates a connector from a sensor descriptor.
func New(sensor config.SensorConfig, collector config.CollectorConfig) (model.Connector, error) {
	c, err := NewBase(sensor, collector)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewBase creates the concrete connector. Richer families build on it.
func NewBase(sensor config.SensorConfig, collector config.CollectorConfig) (*Connector, error) {
	if sensor.Connection.Host == "" {
		return nil, fmt.Errorf("sensor '%s' has no host configured", sensor.Name)
	}

	protocol := sensor.Connection.Protocol
	if protocol == "" {
		protocol = "http"
	}
	port := sensor.Connection.Port
	if port == 0 {
		port = 80
	}

	client := resty.New().
		SetBaseURL(fmt.Sprintf("%s://%s:%d", protocol, sensor.Connection.Host, port)).
		SetTimeout(config.Duration(collector.FetchTimeout, 30*time.Second)).
		SetBasicAuth(sensor.Connection.Auth.Username, sensor.Connection.Auth.Password).
		SetDisableWarn(true)

	endpoints := make(map[model.Endpoint]map[string]string, len(sensor.Endpoints))
	for name, params := range sensor.Endpoints {
		endpoints[model.Endpoint(name)] = params
	}

	return &Connector{
		name: sensor.Name,
		mapping: wire.Mapping{
			SensorID:        sensor.Name,
			TimestampLayout: sensor.DataMapping.TimestampFormat,
			LineCount:       sensor.DataMapping.LineCount,
			RegionCount:     sensor.DataMapping.RegionCount,
			Overrides:       sensor.DataMapping.FieldOverrides,
		},
		client:    client,
		endpoints: endpoints,
		attempts:  collector.RetryAttempts,
		backoff:   config.Duration(collector.RetryBackoff, 5*time.Second),
	}, nil
}

// Name returns the configured sensor name.
func (c *Connector) Name() string {
	return c.name
}

// Endpoints returns the logical endpoints declared for this sensor, falling
// back to the family's one supported endpoint when none are declared.
func (c *Connector) Endpoints() []model.Endpoint {
	if len(c.endpoints) == 0 {
		return []model.Endpoint{model.EndpointPeopleCounting}
	}
	eps := make([]model.Endpoint, 0, len(c.endpoints))
	for ep := range c.endpoints {
		eps = append(eps, ep)
	}
	return eps
}

// Mapping exposes the field mapping for reuse by richer families.
func (c *Connector) Mapping() wire.Mapping {
	return c.mapping
}

// Authenticate issues the lightweight status probe. It fails silently so
// callers can treat it as a precondition check; an offline sensor is an
// expected condition, not an error.
func (c *Connector) Authenticate(ctx context.Context) bool {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(wire.StatusParams()).
		Get(c.path(model.EndpointRealTimeStatus))
	if err != nil {
		log.Printf("Sensor %s: authentication probe failed: %v", c.name, err)
		return false
	}
	return resp.IsSuccess()
}

// FetchRaw issues exactly one HTTP GET for the given window and endpoint.
func (c *Connector) FetchRaw(ctx context.Context, start, end time.Time, endpoint model.Endpoint) ([]byte, error) {
	params := wire.ExportParams(endpoint, start, end, c.requestParams(endpoint))
	if endpoint == model.EndpointRealTimeStatus {
		params = wire.StatusParams()
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(c.path(endpoint))
	if err != nil {
		return nil, &model.FetchError{Sensor: c.name, Endpoint: endpoint, Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &model.FetchError{Sensor: c.name, Endpoint: endpoint, StatusCode: resp.StatusCode()}
	}
	return resp.Body(), nil
}

// Parse turns a raw payload into normalized records. Endpoints outside this
// family parse to nothing.
func (c *Connector) Parse(payload []byte, endpoint model.Endpoint) []model.NormalizedRecord {
	switch endpoint {
	case model.EndpointPeopleCounting:
		return wire.ParseCountingCSV(payload, c.mapping)
	default:
		log.Printf("Sensor %s: endpoint '%s' is not supported by the linecounter family", c.name, endpoint)
		return nil
	}
}

// CollectData fetches and parses every requested endpoint, isolating
// failures per endpoint.
func (c *Connector) CollectData(ctx context.Context, start, end time.Time, endpoints []model.Endpoint) *model.CollectionResult {
	result := model.NewCollectionResult(c.name)

	for _, ep := range endpoints {
		if ep != model.EndpointPeopleCounting {
			result.Fail(ep, fmt.Sprintf("endpoint '%s' not supported by sensor type", ep))
			continue
		}

		payload, err := c.FetchWithRetry(ctx, start, end, ep)
		if err != nil {
			obs.FetchErrors.WithLabelValues(c.name, string(ep)).Inc()
			result.Fail(ep, err.Error())
			continue
		}
		result.Records[ep] = c.Parse(payload, ep)
	}

	return result
}

// ValidateConnection confirms the data path end to end: credentials plus a
// micro-fetch over the last few minutes. An empty result is still a success.
func (c *Connector) ValidateConnection(ctx context.Context) bool {
	if !c.Authenticate(ctx) {
		return false
	}
	now := time.Now().UTC()
	_, err := c.FetchRaw(ctx, now.Add(-5*time.Minute), now, model.EndpointPeopleCounting)
	if err != nil {
		log.Printf("Sensor %s: connection validation fetch failed: %v", c.name, err)
		return false
	}
	return true
}

// FetchWithRetry wraps FetchRaw in the bounded fixed-backoff retry policy.
// Retry lives here, at the connector boundary, never inside FetchRaw.
func (c *Connector) FetchWithRetry(ctx context.Context, start, end time.Time, endpoint model.Endpoint) ([]byte, error) {
	return fetchWithRetry(ctx, c.FetchRaw, start, end, endpoint, c.attempts, c.backoff)
}

func (c *Connector) path(endpoint model.Endpoint) string {
	if params, ok := c.endpoints[endpoint]; ok {
		if p, ok := params["path"]; ok {
			return p
		}
	}
	return defaultPath
}

func (c *Connector) requestParams(endpoint model.Endpoint) map[string]string {
	params := make(map[string]string)
	for k, v := range c.endpoints[endpoint] {
		if k == "path" {
			continue
		}
		params[k] = v
	}
	return params
}

type fetchFunc func(ctx context.Context, start, end time.Time, endpoint model.Endpoint) ([]byte, error)

// fetchWithRetry retries a fetch a bounded number of times with a fixed
// backoff, respecting context cancellation between attempts.
func fetchWithRetry(ctx context.Context, fetch fetchFunc, start, end time.Time, endpoint model.Endpoint, attempts int, backoff time.Duration) ([]byte, error) {
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		payload, err := fetch(ctx, start, end, endpoint)
		if err == nil {
			return payload, nil
		}
		lastErr = err
		log.Printf("Fetch attempt %d/%d for endpoint '%s' failed: %v", i+1, attempts, endpoint, err)
	}
	return nil, lastErr
}
