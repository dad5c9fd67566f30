package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"TrafficLens/internal/config"
	"TrafficLens/internal/engine/rollup"
	"TrafficLens/internal/model"
	"TrafficLens/internal/store"
	"TrafficLens/internal/transport"
)

// tl-engine is the detached aggregation engine: it consumes normalized
// record batches from NATS instead of polling sensors itself, rolls them up
// and writes to the configured stores. Deployments that run tl-collector
// with writers enabled do not need it.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	flag.Parse()

	log.Println("Starting tl-engine...")

	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env file.")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if !cfg.NATS.Enabled {
		log.Fatalf("NATS is disabled in config; tl-engine has no input to consume.")
	}

	writers, err := store.BuildWriters(cfg)
	if err != nil {
		log.Fatalf("Failed to create writers: %v", err)
	}
	if len(writers) == 0 {
		log.Fatalf("No enabled writers in config; tl-engine has nowhere to write.")
	}

	sub, err := transport.NewSubscriber(cfg.NATS)
	if err != nil {
		log.Fatalf("Failed to create subscriber: %v", err)
	}
	defer sub.Close()

	handler := func(batch transport.RecordBatch) {
		if batch.Endpoint != model.EndpointPeopleCounting {
			return // only counting records feed the occupancy rollups
		}

		records := rollup.Dedupe(batch.Records)
		if len(records) == 0 {
			return
		}
		hourly := rollup.HourlyRollups(records)
		daily := rollup.DailyRollups(records)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		for _, w := range writers {
			if err := w.WriteHourly(ctx, hourly); err != nil {
				log.Printf("Writer %s: failed to write hourly rollups for %s: %v", w.Name(), batch.SensorID, err)
				continue
			}
			if err := w.WriteDaily(ctx, daily); err != nil {
				log.Printf("Writer %s: failed to write daily rollups for %s: %v", w.Name(), batch.SensorID, err)
			}
		}
	}

	if err := sub.Start(handler); err != nil {
		log.Fatalf("Subscriber failed to start: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutdown signal received, cleaning up...")
	for _, w := range writers {
		if err := w.Close(); err != nil {
			log.Printf("Error closing writer %s: %v", w.Name(), err)
		}
	}
	log.Println("Shutdown complete.")
}
