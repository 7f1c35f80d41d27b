package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mcdev12/tarkovremote/go/internal/remote"
	"github.com/mcdev12/tarkovremote/go/internal/remote/connection"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const healthCheckTimeout = 5 * time.Second

type HealthStatus struct {
	Healthy           bool             `json:"healthy"`
	RelayState        connection.State `json:"relay_state"`
	Enabled           bool             `json:"enabled"`
	FramesSent        uint64           `json:"frames_sent"`
	CommandsReceived  uint64           `json:"commands_received"`
	DatabaseConnected *bool            `json:"database_connected,omitempty"`
	NATSConnected     *bool            `json:"nats_connected,omitempty"`
	Errors            []string         `json:"errors"`
}

// HealthChecker reports on the relay connection and whichever backing stores are wired.
// A nil db or NATS connection is left out of the report.
type HealthChecker struct {
	service  *remote.Service
	db       *sql.DB
	natsConn *nats.Conn
}

func NewHealthChecker(service *remote.Service, db *sql.DB, natsConn *nats.Conn) *HealthChecker {
	return &HealthChecker{
		service:  service,
		db:       db,
		natsConn: natsConn,
	}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	manager := h.service.Manager()
	stats := manager.Stats()

	status := HealthStatus{
		Healthy:          true,
		RelayState:       manager.State(),
		Enabled:          manager.Enabled(),
		FramesSent:       stats.FramesSent,
		CommandsReceived: stats.CommandsReceived,
		Errors:           []string{},
	}

	// An enabled client with no relay link is degraded; a disabled one is idle
	if status.Enabled && status.RelayState == connection.Disconnected {
		status.Healthy = false
		status.Errors = append(status.Errors, "relay disconnected")
	}

	if h.db != nil {
		connected := true
		if err := h.db.PingContext(ctx); err != nil {
			connected = false
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
		}
		status.DatabaseConnected = &connected
	}

	if h.natsConn != nil {
		connected := h.natsConn.IsConnected()
		if !connected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
		status.NATSConnected = &connected
	}

	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}
