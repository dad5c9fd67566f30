package transport

import (
	"encoding/json"
	"log"

	"github.com/nats-io/nats.go"

	"TrafficLens/internal/config"
)

// BatchHandler is a function that processes a received record batch.
type BatchHandler func(batch RecordBatch)

// Subscriber is responsible for subscribing to the record subject and
// processing batches.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
}

// NewSubscriber creates a new NATS subscriber.
func NewSubscriber(cfg config.NATSConfig) (*Subscriber, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", cfg.URL)
	return &Subscriber{nc: nc, subject: cfg.Subject}, nil
}

// Start subscribes to the configured subject and processes batches with the
// provided handler. A batch that fails to decode is logged and skipped.
func (s *Subscriber) Start(handler BatchHandler) error {
	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		var batch RecordBatch
		if err := json.Unmarshal(msg.Data, &batch); err != nil {
			log.Printf("Error unmarshalling record batch: %v", err)
			return
		}
		handler(batch)
	})
	if err != nil {
		return err
	}
	s.sub = sub
	log.Printf("Subscribed to '%s'. Waiting for record batches...", s.subject)
	return nil
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
		log.Println("NATS connection closed.")
	}
}
