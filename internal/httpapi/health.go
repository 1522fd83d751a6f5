package httpapi

import (
	"math"
	"net/http"
	"os"
	"runtime"
	"time"
)

// Probes report process-level status only; they do not inspect the store.

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"message":   s.cfg.AppName,
		"version":   s.cfg.Version,
		"health":    "/healthz",
		"tasks":     "/api/v1/tasks",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"service":     s.cfg.AppName,
		"version":     s.cfg.Version,
		"environment": s.cfg.Environment,
		"timestamp":   time.Now().UTC(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"checks": map[string]string{
			"store":  "ok",
			"memory": "ok",
		},
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	uptime := time.Since(s.startedAt).Seconds()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "alive",
		"uptime_seconds": math.Round(uptime*100) / 100,
		"pid":            os.Getpid(),
		"go_version":     runtime.Version(),
		"timestamp":      time.Now().UTC(),
	})
}
