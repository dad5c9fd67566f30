package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"TrafficLens/internal/query"
	"TrafficLens/internal/store"
)

// APIHandler holds the read-side dependencies for the HTTP handlers.
type APIHandler struct {
	querier     query.Querier
	statusCache *store.StatusCache
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// timeWindow parses the from/to query params, defaulting to the last 24 hours.
func timeWindow(r *http.Request) (time.Time, time.Time, error) {
	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)

	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			return from, to, err
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			return from, to, err
		}
	}
	return from, to, nil
}

// sensorsHandler lists sensor IDs known to the rollup store.
func (h *APIHandler) sensorsHandler(w http.ResponseWriter, r *http.Request) {
	sensors, err := h.querier.Sensors(r.Context())
	if err != nil {
		log.Printf("Failed to list sensors: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list sensors")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"sensors": sensors})
}

// hourlyHandler serves one sensor's hourly rollups for a time window.
func (h *APIHandler) hourlyHandler(w http.ResponseWriter, r *http.Request) {
	sensor := r.URL.Query().Get("sensor")
	if sensor == "" {
		respondError(w, http.StatusBadRequest, "missing required query parameter 'sensor'")
		return
	}
	from, to, err := timeWindow(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid time parameter, expected RFC3339")
		return
	}

	series, err := h.querier.HourlySeries(r.Context(), sensor, from, to)
	if err != nil {
		log.Printf("Failed to query hourly rollups for %s: %v", sensor, err)
		respondError(w, http.StatusInternalServerError, "failed to query hourly rollups")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sensor":  sensor,
		"from":    from,
		"to":      to,
		"rollups": series,
	})
}

// dailyHandler serves one sensor's daily rollups for a time window.
func (h *APIHandler) dailyHandler(w http.ResponseWriter, r *http.Request) {
	sensor := r.URL.Query().Get("sensor")
	if sensor == "" {
		respondError(w, http.StatusBadRequest, "missing required query parameter 'sensor'")
		return
	}
	from, to, err := timeWindow(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid time parameter, expected RFC3339")
		return
	}

	series, err := h.querier.DailySeries(r.Context(), sensor, from, to)
	if err != nil {
		log.Printf("Failed to query daily rollups for %s: %v", sensor, err)
		respondError(w, http.StatusInternalServerError, "failed to query daily rollups")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sensor":  sensor,
		"from":    from,
		"to":      to,
		"rollups": series,
	})
}

// statusHandler serves the latest cached real-time status for a sensor.
func (h *APIHandler) statusHandler(w http.ResponseWriter, r *http.Request) {
	if h.statusCache == nil {
		respondError(w, http.StatusNotImplemented, "status cache is not enabled")
		return
	}

	sensor := mux.Vars(r)["sensor"]
	status, err := h.statusCache.Get(r.Context(), sensor)
	if err != nil {
		log.Printf("Failed to read status for %s: %v", sensor, err)
		respondError(w, http.StatusInternalServerError, "failed to read sensor status")
		return
	}
	if status == nil {
		respondError(w, http.StatusNotFound, "no status cached for sensor")
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (h *APIHandler) healthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
