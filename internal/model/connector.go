package model

import (
	"context"
	"fmt"
	"time"
)

// Connector is the capability facade for one sensor, combining
// authentication, fetch and parse behind a uniform collection contract.
// Implementations are registered with the factory under a type string.
type Connector interface {
	// Name returns the configured sensor name.
	Name() string

	// Endpoints returns the logical endpoints declared for this sensor.
	Endpoints() []Endpoint

	// Authenticate issues a lightweight status probe with the configured
	// credentials. It never returns an error: a sensor being offline is an
	// expected operating condition, so callers treat this as a boolean
	// precondition check.
	Authenticate(ctx context.Context) bool

	// FetchRaw issues exactly one HTTP GET for the given window and endpoint.
	// It does not retry; retry policy lives in CollectData.
	FetchRaw(ctx context.Context, start, end time.Time, endpoint Endpoint) ([]byte, error)

	// Parse turns a raw payload into normalized records. It is pure: an empty
	// or whitespace-only payload yields an empty slice, and a malformed row is
	// logged and skipped without discarding the rest of the batch.
	Parse(payload []byte, endpoint Endpoint) []NormalizedRecord

	// CollectData orchestrates fetch+parse for every endpoint in the set. A
	// failing endpoint degrades to an empty list and a recorded failure; it
	// never aborts collection of the remaining endpoints.
	CollectData(ctx context.Context, start, end time.Time, endpoints []Endpoint) *CollectionResult

	// ValidateConnection composes Authenticate with a best-effort micro-fetch
	// to confirm the data path end to end. An empty-but-successful fetch
	// counts as valid.
	ValidateConnection(ctx context.Context) bool
}

// FetchError signals a failed HTTP fetch: network error, timeout, or a
// non-2xx response.
type FetchError struct {
	Sensor     string
	Endpoint   Endpoint
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s/%s: unexpected status %d", e.Sensor, e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s/%s: %v", e.Sensor, e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
