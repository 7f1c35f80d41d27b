package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mcdev12/tarkovremote/go/internal/remote/connection"
	"github.com/mcdev12/tarkovremote/go/internal/remote/relaytest"
	"github.com/mcdev12/tarkovremote/go/internal/remote/session"
)

func newTestService(t *testing.T, relayURL string) *Service {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Connection.RelayURL = relayURL
	cfg.Connection.ReconnectInterval = 50 * time.Millisecond
	return NewService(cfg, session.NewMemoryStore(), nil)
}

func startService(t *testing.T, s *Service) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.Start(ctx); err != nil {
			t.Errorf("Start: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestAdoptFromURL(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		locator     string
		wantPresent bool
		wantErr     bool
		wantID      session.ID
		wantEnabled bool
	}{
		{name: "no token", locator: "https://tarkov.dev/map/customs", wantEnabled: false},
		{name: "token", locator: "https://tarkov.dev/?connection=K7QM", wantPresent: true, wantID: "K7QM", wantEnabled: true},
		{name: "short token", locator: "https://tarkov.dev/?connection=AB", wantPresent: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(t, "ws://127.0.0.1:1")
			u, _ := url.Parse(tt.locator)

			present, err := s.AdoptFromURL(ctx, u)
			if present != tt.wantPresent {
				t.Fatalf("present = %v, want %v", present, tt.wantPresent)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantID != "" {
				if got := s.Identity().GetOrCreateSessionID(ctx); got != tt.wantID {
					t.Fatalf("session id = %q, want %q", got, tt.wantID)
				}
			}
			if s.Manager().Enabled() != tt.wantEnabled {
				t.Fatalf("enabled = %v, want %v", s.Manager().Enabled(), tt.wantEnabled)
			}
		})
	}
}

func TestHandleStatus(t *testing.T) {
	s := newTestService(t, "ws://127.0.0.1:1")
	s.Identity().AdoptPairingToken(context.Background(), "DISP")

	rec := httptest.NewRecorder()
	s.HandleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/remote/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["state"] != "disconnected" || body["session_id"] != "DISP" || body["enabled"] != false {
		t.Fatalf("status body = %v", body)
	}
	if body["pairing_url"] != "https://tarkov.dev/?connection=DISP" {
		t.Fatalf("pairing url = %v", body["pairing_url"])
	}
	if _, ok := body["control_id"]; ok {
		t.Fatal("control_id present without pairing")
	}

	rec = httptest.NewRecorder()
	s.HandleStatus(rec, httptest.NewRequest(http.MethodPost, "/api/remote/status", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST status code = %d, want 405", rec.Code)
	}
}

func TestStatusResponseDecodes(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, "ws://127.0.0.1:1")
	s.Identity().AdoptPairingToken(ctx, "DISP")
	s.Identity().SetControlID(ctx, "CTRL")

	want := s.Status(ctx)
	data, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got StatusResponse
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	if got != want {
		t.Fatalf("decoded status = %+v, want %+v", got, want)
	}
	if got.State != connection.Disconnected {
		t.Fatalf("state = %s, want disconnected", got.State)
	}
}

func TestHandleEnableDisable(t *testing.T) {
	s := newTestService(t, "ws://127.0.0.1:1")

	rec := httptest.NewRecorder()
	s.HandleEnable(rec, httptest.NewRequest(http.MethodPost, "/api/remote/enable", nil))
	if rec.Code != http.StatusOK || !s.Manager().Enabled() {
		t.Fatalf("enable: code=%d enabled=%v", rec.Code, s.Manager().Enabled())
	}

	rec = httptest.NewRecorder()
	s.HandleDisable(rec, httptest.NewRequest(http.MethodPost, "/api/remote/disable", nil))
	if rec.Code != http.StatusOK || s.Manager().Enabled() {
		t.Fatalf("disable: code=%d enabled=%v", rec.Code, s.Manager().Enabled())
	}
}

func TestHandleControlAndCommand(t *testing.T) {
	s := newTestService(t, "ws://127.0.0.1:1")
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	post := func(path, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
		return rec
	}

	if rec := post("/api/remote/command", `{"type":"map","value":"customs"}`); rec.Code != http.StatusConflict {
		t.Fatalf("command without control id: code = %d, want 409", rec.Code)
	}

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"short control id", "/api/remote/control", `{"control_id":"AB"}`, http.StatusBadRequest},
		{"bad json", "/api/remote/control", `{`, http.StatusBadRequest},
		{"pair", "/api/remote/control", `{"control_id":"ABCD"}`, http.StatusOK},
		{"empty command type", "/api/remote/command", `{"type":"","value":"x"}`, http.StatusBadRequest},
		{"command", "/api/remote/command", `{"type":"map","value":"customs"}`, http.StatusAccepted},
		{"unpair", "/api/remote/control", `{"control_id":""}`, http.StatusOK},
		{"command after unpair", "/api/remote/command", `{"type":"map","value":"customs"}`, http.StatusConflict},
	}

	for _, tt := range tests {
		if rec := post(tt.path, tt.body); rec.Code != tt.want {
			t.Fatalf("%s: code = %d, want %d (%s)", tt.name, rec.Code, tt.want, rec.Body.String())
		}
	}
}

func TestHandlePairingQR(t *testing.T) {
	s := newTestService(t, "ws://127.0.0.1:1")

	rec := httptest.NewRecorder()
	s.HandlePairingQR(rec, httptest.NewRequest(http.MethodGet, "/api/remote/pair.png", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type = %q", ct)
	}
	if _, err := png.Decode(bytes.NewReader(rec.Body.Bytes())); err != nil {
		t.Fatalf("decode png: %v", err)
	}
}

func TestHandleStatusStream(t *testing.T) {
	s := newTestService(t, "ws://127.0.0.1:1")
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/remote/status/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	event, _ := reader.ReadString('\n')
	data, _ := reader.ReadString('\n')
	if event != "event: state\n" || data != "data: disconnected\n" {
		t.Fatalf("first event = %q %q", event, data)
	}
}

func TestDisplayFollowsControllerThroughRelay(t *testing.T) {
	cfg := relaytest.DefaultConfig()
	cfg.PingInterval = 0
	relay, srv := relaytest.NewServer(cfg)
	defer srv.Close()
	relayURL := relaytest.WebsocketURL(srv.URL)
	ctx := context.Background()

	display := newTestService(t, relayURL)
	var mu sync.Mutex
	var received []string
	display.OnCommand(func(_ context.Context, targetType, targetValue string) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, targetType+"/"+targetValue)
	})
	startService(t, display)

	// The controller joins through the pairing link shown by the display
	link, err := display.PairingURL(ctx)
	if err != nil {
		t.Fatalf("PairingURL: %v", err)
	}
	u, _ := url.Parse(link)
	displayID := session.PairingToken(u)

	controller := newTestService(t, relayURL)
	controller.Identity().SetControlID(ctx, session.ID(displayID))
	startService(t, controller)

	display.Enable()
	controller.Enable()
	waitFor(t, "display announced", func() bool { return relay.SessionCount(displayID) == 1 })
	waitFor(t, "controller connected", func() bool { return controller.Manager().State() == connection.Connected })

	mux := http.NewServeMux()
	controller.RegisterRoutes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/remote/command",
		strings.NewReader(`{"type":"item","value":"m4a1"}`)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("command code = %d", rec.Code)
	}

	waitFor(t, "display command", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	})
	mu.Lock()
	defer mu.Unlock()
	if received[0] != "item/m4a1" {
		t.Fatalf("display received %v", received)
	}
}
