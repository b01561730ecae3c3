// Package handlers implements the three HTTP Surface endpoints: the
// webhook intake, the health probe, and the loaded-config introspection
// endpoint.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/janwychowaniak/flowbridge/internal/config"
	"github.com/janwychowaniak/flowbridge/internal/logging"
	"github.com/janwychowaniak/flowbridge/internal/pipeline"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// Handlers holds the dependencies shared by every route.
type Handlers struct {
	pipeline *pipeline.Pipeline
	config   *config.Config
	logger   *logging.Logger
}

func New(p *pipeline.Pipeline, cfg *config.Config, logger *logging.Logger) *Handlers {
	return &Handlers{pipeline: p, config: cfg, logger: logger}
}

// HandleWebhook implements POST /webhook per the request pipeline's
// validate -> filter -> route -> forward sequence.
func (h *Handlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "InvalidRequestError",
			"message": "failed to read request body",
		})
		return
	}
	if len(body) > maxBodyBytes {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "InvalidRequestError",
			"message": "request body exceeds the maximum allowed size",
		})
		return
	}

	result := h.pipeline.Process(r.Context(), body, r.Header)
	writeJSON(w, result.StatusCode, result.Body)
}

// HandleHealth implements GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "healthy",
		"timestamp":  time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		"request_id": uuid.New().String(),
	})
}

// HandleConfig implements GET /config, rendering the loaded Config as
// JSON. Destination URLs may never carry userinfo (enforced at load time),
// so no redaction is necessary.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.config)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
