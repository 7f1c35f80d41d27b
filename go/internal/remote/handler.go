package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mcdev12/tarkovremote/go/internal/remote/dispatch"
	"github.com/mcdev12/tarkovremote/go/internal/remote/pairing"
	"github.com/mcdev12/tarkovremote/go/internal/remote/session"
	"github.com/rs/zerolog/log"
)

type controlRequest struct {
	ControlID string `json:"control_id"`
}

type commandRequest struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// RegisterRoutes registers the local control surface used by UI layers
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/remote/status", s.HandleStatus)
	mux.HandleFunc("/api/remote/status/stream", s.HandleStatusStream)
	mux.HandleFunc("/api/remote/enable", s.HandleEnable)
	mux.HandleFunc("/api/remote/disable", s.HandleDisable)
	mux.HandleFunc("/api/remote/control", s.HandleControl)
	mux.HandleFunc("/api/remote/command", s.HandleCommand)
	mux.HandleFunc("/api/remote/pair.png", s.HandlePairingQR)
	log.Info().Msg("remote control routes registered")
}

// HandleStatus handles GET /api/remote/status
func (s *Service) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.Status(r.Context()))
}

// HandleStatusStream handles GET /api/remote/status/stream as server-sent events, one
// event per connection state change
func (s *Service) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	updates, cancel := s.manager.Status().Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case state, ok := <-updates:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: state\ndata: %s\n\n", state); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// HandleEnable handles POST /api/remote/enable
func (s *Service) HandleEnable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.Enable()
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": true})
}

// HandleDisable handles POST /api/remote/disable
func (s *Service) HandleDisable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.Disable()
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": false})
}

// HandleControl handles POST /api/remote/control. An empty control_id unpairs.
func (s *Service) HandleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if req.ControlID == "" {
		s.identity.ClearControlID(ctx)
		writeJSON(w, http.StatusOK, controlRequest{})
		return
	}

	if err := s.identity.SetControlID(ctx, session.ID(req.ControlID)); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, controlRequest{ControlID: s.identity.ControlID(ctx).String()})
}

// HandleCommand handles POST /api/remote/command
func (s *Service) HandleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := s.EmitCommand(r.Context(), req.Type, req.Value)
	switch {
	case errors.Is(err, dispatch.ErrNoControlID):
		http.Error(w, "No paired display", http.StatusConflict)
		return
	case errors.Is(err, dispatch.ErrEmptyTarget):
		http.Error(w, "Command type is required", http.StatusBadRequest)
		return
	case err != nil:
		log.Error().Err(err).Msg("failed to emit command")
		http.Error(w, "Failed to emit command", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "queued",
		"path":   dispatch.Path(req.Type, req.Value),
	})
}

// HandlePairingQR handles GET /api/remote/pair.png
func (s *Service) HandlePairingQR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	link, err := s.PairingURL(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to build pairing url")
		http.Error(w, "Failed to build pairing url", http.StatusInternalServerError)
		return
	}

	png, err := pairing.PNG(link, s.config.QRSize)
	if err != nil {
		log.Error().Err(err).Msg("failed to render pairing qr code")
		http.Error(w, "Failed to render qr code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(png); err != nil {
		log.Error().Err(err).Msg("failed to write pairing qr code")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
