package server

import (
	"encoding/json"
	"net/http"
	"time"

	"occupancy/internal/alerts"
	"occupancy/internal/kafka"
	"occupancy/internal/models"
	"occupancy/internal/worker"
)

type queueStats struct {
	Buffered int `json:"buffered"`
	Capacity int `json:"capacity"`
}

// Stats is the body of GET /stats.
type Stats struct {
	Node             string               `json:"node"`
	Level            models.Level         `json:"level"`
	Sensors          int                  `json:"sensors"`
	Alerts           alerts.Stats         `json:"alerts"`
	WebsocketClients int                  `json:"websocket_clients"`
	Worker           *worker.Stats        `json:"worker,omitempty"`
	Producer         *kafka.ProducerStats `json:"producer,omitempty"`
	Queue            *queueStats          `json:"queue,omitempty"`
}

func (s *Server) stats() Stats {
	st := Stats{
		Node:             s.nodeID,
		Level:            s.gauge.Current(),
		Sensors:          s.store.Len(),
		Alerts:           s.registry.Stats(),
		WebsocketClients: s.hub.Clients(),
	}
	if s.workerPool != nil {
		ws := s.workerPool.Stats()
		ps := s.producer.Stats()
		st.Worker = &ws
		st.Producer = &ps
		st.Queue = &queueStats{Buffered: s.queue.Len(), Capacity: cap(s.queue.C())}
	}
	return st
}

// healthHandler handles health check requests
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":    "healthy",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"node":      s.nodeID,
	}
	if !s.start.IsZero() {
		body["uptime_seconds"] = int64(s.now().Sub(s.start).Seconds())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body)
}

// statsHandler returns current statistics
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(s.stats())
}
