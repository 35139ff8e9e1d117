// Package handlers holds the plain HTTP endpoints around the relay: liveness,
// readiness, and the pipeline health surface.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/linguacast/linguacast/pkg/relay/config"
	"github.com/linguacast/linguacast/pkg/relay/drain"
	"github.com/linguacast/linguacast/pkg/relay/pipeline"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config config.Config
	Drain  *drain.State
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK       bool     `json:"ok"`
		Draining bool     `json:"draining"`
		Issues   []string `json:"issues,omitempty"`
	}

	var issues []string
	if err := h.Config.Validate(); err != nil {
		issues = append(issues, err.Error())
	}

	draining := h.Drain.IsDraining()
	ok := !draining && len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{OK: ok, Draining: draining, Issues: issues})
}

// PipelineHealthHandler probes every provider tier and reports per-stage
// reachability. Intended for external monitoring, not for request routing.
type PipelineHealthHandler struct {
	Orchestrator *pipeline.Orchestrator
	ProbeTimeout time.Duration
}

func (h PipelineHealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	timeout := h.ProbeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	health := h.Orchestrator.Health(ctx)
	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(health)
}
