package http

import (
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	serviceDisplayName = "FSL Express Go Backend"
	healthServiceName  = "express-go"
)

// Version is reported by GET /. Overridden at build time with -ldflags.
var Version = "1.0.1"

type HealthHandler struct {
	started time.Time
	now     func() time.Time
	logger  *slog.Logger
}

func NewHealthHandler(started time.Time, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{started: started, now: time.Now, logger: logger.With("handler", "health")}
}

func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleRoot)
	r.Get("/health", h.handleHealth)
	r.Get("/wake", h.handleWake)
}

type memoryStats struct {
	Alloc      uint64 `json:"alloc"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	Sys        uint64 `json:"sys"`
	NumGC      uint32 `json:"num_gc"`
	Goroutines int    `json:"goroutines"`
}

func (h *HealthHandler) handleRoot(w http.ResponseWriter, r *http.Request) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	now := h.now()
	writeJSON(w, h.logger, http.StatusOK, map[string]any{
		"service":   serviceDisplayName,
		"status":    "alive",
		"timestamp": now.UTC().Format(time.RFC3339Nano),
		"uptime":    now.Sub(h.started).Seconds(),
		"memory": memoryStats{
			Alloc:      ms.Alloc,
			HeapAlloc:  ms.HeapAlloc,
			Sys:        ms.Sys,
			NumGC:      ms.NumGC,
			Goroutines: runtime.NumGoroutine(),
		},
		"version": Version,
	})
}

func (h *HealthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": h.now().UTC().Format(time.RFC3339Nano),
		"service":   healthServiceName,
	})
}

func (h *HealthHandler) handleWake(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC().Format(time.RFC3339Nano)
	h.logger.InfoContext(r.Context(), "Wake-up ping received", "at", now)
	writeJSON(w, h.logger, http.StatusOK, map[string]string{
		"message":   "Service is awake!",
		"timestamp": now,
		"status":    "active",
	})
}
