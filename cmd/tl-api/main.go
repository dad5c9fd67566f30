package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"TrafficLens/internal/config"
	"TrafficLens/internal/obs"
	"TrafficLens/internal/query"
	"TrafficLens/internal/store"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	flag.Parse()

	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env file.")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Find the first enabled ClickHouse writer config; the API reads from
	// the same store the pipeline writes to.
	var chCfg *config.ClickHouseConfig
	for _, def := range cfg.Writers {
		if def.Enabled && def.Type == "clickhouse" {
			chCfg = &def.ClickHouse
			break
		}
	}
	if chCfg == nil {
		log.Fatalf("No enabled ClickHouse writer found in config. API server cannot start.")
	}

	querier, err := query.NewClickHouseQuerier(*chCfg)
	if err != nil {
		log.Fatalf("Failed to create querier: %v", err)
	}

	apiHandler := &APIHandler{querier: querier}
	if cfg.Redis.Enabled {
		cache, err := store.NewStatusCache(cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to connect to status cache: %v", err)
		}
		apiHandler.statusCache = cache
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/sensors", apiHandler.sensorsHandler).Methods("GET")
	r.HandleFunc("/api/v1/rollups/hourly", apiHandler.hourlyHandler).Methods("GET")
	r.HandleFunc("/api/v1/rollups/daily", apiHandler.dailyHandler).Methods("GET")
	r.HandleFunc("/api/v1/status/{sensor}", apiHandler.statusHandler).Methods("GET")
	r.HandleFunc("/healthz", apiHandler.healthHandler).Methods("GET")
	r.Handle("/metrics", obs.Handler()).Methods("GET")

	listenAddr := cfg.API.ListenAddr
	if listenAddr == "" {
		listenAddr = ":8080"
	}
	server := &http.Server{
		Addr:    listenAddr,
		Handler: r,
	}

	go func() {
		log.Printf("API server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", server.Addr, err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("API server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("API server stopped.")
}
