package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/jwebster45206/campfire/pkg/storage"
)

type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Service    string            `json:"service"`
	Components map[string]string `json:"components"`
}

type HealthHandler struct {
	blobs  storage.BlobStore
	logger *slog.Logger
	now    func() time.Time
}

func NewHealthHandler(blobs storage.BlobStore, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		blobs:  blobs,
		logger: logger,
		now:    time.Now,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	h.logger.Debug("Health check requested",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	components := make(map[string]string)
	overallStatus := "healthy"

	if err := h.blobs.Ping(ctx); err != nil {
		h.logger.Warn("Blob store health check failed", "error", err)
		components["blobStore"] = "unhealthy"
		overallStatus = "degraded"
	} else {
		components["blobStore"] = "healthy"
	}

	response := HealthResponse{
		Status:     overallStatus,
		Timestamp:  h.now(),
		Service:    "campfire",
		Components: components,
	}

	statusCode := http.StatusOK
	if overallStatus != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Error encoding health response",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path)
	}
}
