package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mcdev12/osce/go/internal/exam"
	"github.com/mcdev12/osce/go/internal/store"
)

// ConnStatus reports whether a broker connection is up. *nats.Conn satisfies it.
type ConnStatus interface {
	IsConnected() bool
}

type HealthStatus struct {
	Healthy        bool     `json:"healthy"`
	StoreConnected bool     `json:"store_connected"`
	NATSEnabled    bool     `json:"nats_enabled"`
	NATSConnected  bool     `json:"nats_connected"`
	RunnerActive   bool     `json:"runner_active"`
	ExamRunning    bool     `json:"exam_running"`
	Displays       int      `json:"displays"`
	Errors         []string `json:"errors"`
}

// HealthChecker backs GET /health/details.
type HealthChecker struct {
	store  store.Store
	nats   ConnStatus
	runner *exam.Runner
	hub    *Hub
}

// NewHealthChecker builds a checker. nats and hub may be nil.
func NewHealthChecker(st store.Store, nats ConnStatus, runner *exam.Runner, hub *Hub) *HealthChecker {
	return &HealthChecker{store: st, nats: nats, runner: runner, hub: hub}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy: true,
		Errors:  []string{},
	}

	if _, err := h.store.Has(ctx, store.KeyConfig); err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("store check failed: %v", err))
	} else {
		status.StoreConnected = true
	}

	if h.nats != nil {
		status.NATSEnabled = true
		status.NATSConnected = h.nats.IsConnected()
		if !status.NATSConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	if v, err := h.runner.View(ctx); err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("exam runner not responding: %v", err))
	} else {
		status.RunnerActive = true
		status.ExamRunning = v.Running
	}

	if h.hub != nil {
		status.Displays = h.hub.Stats().TotalConnections
	}
	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}
