package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"TrafficLens/internal/config"
	"TrafficLens/internal/engine/manager"
	"TrafficLens/internal/obs"
)

// Exit codes for the automation surface: operational alerting keys off the
// difference between "nothing configured" and "something failed".
const (
	exitOK        = 0
	exitFailures  = 1
	exitNoSensors = 2
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	mode := flag.String("mode", "daemon", "Operating mode: 'daemon' to poll on a schedule, 'once' for a single window, 'validate' to check sensor connectivity.")
	startFlag := flag.String("start", "", "Window start (RFC3339) for 'once' mode; defaults to lookback before now.")
	endFlag := flag.String("end", "", "Window end (RFC3339) for 'once' mode; defaults to now.")
	flag.Parse()

	// Credentials referenced as ${VAR} in the config come from the
	// environment; a .env file is optional.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env file.")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	mgr, err := manager.NewManager(cfg)
	if err != nil {
		log.Fatalf("Failed to create manager: %v", err)
	}

	if mgr.SensorCount() == 0 {
		log.Println("No sensors configured, nothing to do.")
		os.Exit(exitNoSensors)
	}

	switch *mode {
	case "daemon":
		runDaemon(mgr, cfg)
	case "once":
		os.Exit(runOnce(mgr, cfg, *startFlag, *endFlag))
	case "validate":
		os.Exit(runValidate(mgr))
	default:
		fmt.Fprintf(os.Stderr, "Invalid mode: %s\n", *mode)
		flag.Usage()
		os.Exit(exitFailures)
	}
}

// runDaemon polls all sensors on the configured interval until a shutdown
// signal arrives. The pipeline counters are incremented in this process, so
// the daemon serves its own metrics endpoint.
func runDaemon(mgr *manager.Manager, cfg *config.Config) {
	log.Println("Starting tl-collector in daemon mode...")
	mgr.Start()

	if addr := cfg.Collector.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", obs.Handler())
		go func() {
			log.Printf("Metrics endpoint listening on %s", addr)
			if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
				log.Printf("Metrics endpoint failed: %v", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutdown signal received, stopping manager...")
	mgr.Stop()
	log.Println("Shutdown complete.")
}

// runOnce collects a single window across all sensors and reports a
// structured summary through the exit code.
func runOnce(mgr *manager.Manager, cfg *config.Config, startFlag, endFlag string) int {
	defer mgr.Stop()

	end := time.Now().UTC()
	start := end.Add(-config.Duration(cfg.Collector.Lookback, time.Hour))

	var err error
	if endFlag != "" {
		if end, err = time.Parse(time.RFC3339, endFlag); err != nil {
			log.Printf("Invalid -end value: %v", err)
			return exitFailures
		}
	}
	if startFlag != "" {
		if start, err = time.Parse(time.RFC3339, startFlag); err != nil {
			log.Printf("Invalid -start value: %v", err)
			return exitFailures
		}
	}

	outcomes := mgr.RunCycle(context.Background(), start, end)

	failed := 0
	for _, o := range outcomes {
		if o.Failed() {
			failed++
		}
	}
	if failed > 0 {
		log.Printf("Collection finished with %d/%d sensor(s) failing.", failed, len(outcomes))
		return exitFailures
	}
	log.Println("Collection finished successfully.")
	return exitOK
}

// runValidate checks every sensor's credentials and data path.
func runValidate(mgr *manager.Manager) int {
	defer mgr.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	results := mgr.ValidateAll(ctx)
	failed := 0
	for sensor, ok := range results {
		if ok {
			log.Printf("Sensor %s: connection OK", sensor)
		} else {
			log.Printf("Sensor %s: connection FAILED", sensor)
			failed++
		}
	}
	if failed > 0 {
		return exitFailures
	}
	return exitOK
}
