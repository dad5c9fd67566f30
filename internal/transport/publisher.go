// Package transport carries normalized record batches between the collector
// and a detached aggregation engine over NATS.
package transport

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"TrafficLens/internal/config"
	"TrafficLens/internal/model"
)

// RecordBatch is the wire envelope for one endpoint's normalized records
// from one collection window.
type RecordBatch struct {
	SensorID    string                   `json:"sensor_id"`
	Endpoint    model.Endpoint           `json:"endpoint"`
	Records     []model.NormalizedRecord `json:"records"`
	CollectedAt time.Time                `json:"collected_at"`
}

// Publisher is responsible for publishing record batches to a NATS subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(cfg config.NATSConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", cfg.URL)
	return &Publisher{nc: nc, subject: cfg.Subject}, nil
}

// Publish serializes a record batch to JSON and publishes it to the
// configured subject.
func (p *Publisher) Publish(batch RecordBatch) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject, data)
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		log.Println("NATS connection drained and closed.")
	}
}
