package relaytest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mcdev12/tarkovremote/go/internal/remote/connection"
	"github.com/mcdev12/tarkovremote/go/internal/remote/dispatch"
	"github.com/mcdev12/tarkovremote/go/internal/remote/session"
)

type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNavigator) NavigateTo(_ context.Context, path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
	return nil
}

func (n *recordingNavigator) snapshot() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

type client struct {
	identity   *session.Identity
	manager    *connection.Manager
	dispatcher *dispatch.Dispatcher
}

func startClient(t *testing.T, relayURL string) *client {
	t.Helper()

	cfg := connection.DefaultConfig()
	cfg.RelayURL = relayURL
	cfg.ReconnectInterval = 50 * time.Millisecond
	cfg.SendRetryDelay = 50 * time.Millisecond

	identity := session.NewIdentity(session.NewMemoryStore())
	manager := connection.NewManager(cfg, connection.NewWebsocketDialer(cfg), identity)
	dispatcher := dispatch.New(manager, manager.Status(), identity)
	manager.SetCommandSink(dispatcher)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		manager.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &client{identity: identity, manager: manager, dispatcher: dispatcher}
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

func TestControllerNavigatesDisplay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PingInterval = 0
	relay, srv := NewServer(cfg)
	defer srv.Close()
	url := WebsocketURL(srv.URL)

	ctx := context.Background()

	display := startClient(t, url)
	nav := &recordingNavigator{}
	display.dispatcher.OnCommand(dispatch.NavigateHandler(nav))
	displayID := display.identity.GetOrCreateSessionID(ctx)

	controller := startClient(t, url)
	if err := controller.identity.SetControlID(ctx, displayID); err != nil {
		t.Fatalf("SetControlID: %v", err)
	}

	display.manager.Enable()
	controller.manager.Enable()

	waitFor(t, "display announced", func() bool { return relay.SessionCount(displayID.String()) == 1 })
	waitFor(t, "controller connected", func() bool { return controller.manager.State() == connection.Connected })

	if err := controller.dispatcher.EmitCommand(ctx, "map", "customs"); err != nil {
		t.Fatalf("EmitCommand: %v", err)
	}

	waitFor(t, "display navigation", func() bool { return len(nav.snapshot()) > 0 })
	time.Sleep(100 * time.Millisecond)

	paths := nav.snapshot()
	if len(paths) != 1 || paths[0] != "/map/customs" {
		t.Fatalf("display navigations = %v, want exactly [/map/customs]", paths)
	}
	if relay.Forwarded() != 1 {
		t.Fatalf("relay forwarded %d commands, want 1", relay.Forwarded())
	}
}

func TestCommandIgnoredByDisconnectedDisplay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PingInterval = 0
	relay, srv := NewServer(cfg)
	defer srv.Close()
	url := WebsocketURL(srv.URL)

	ctx := context.Background()

	display := startClient(t, url)
	nav := &recordingNavigator{}
	display.dispatcher.OnCommand(dispatch.NavigateHandler(nav))
	displayID := display.identity.GetOrCreateSessionID(ctx)

	controller := startClient(t, url)
	controller.identity.SetControlID(ctx, displayID)
	controller.manager.Enable()
	waitFor(t, "controller connected", func() bool { return controller.manager.State() == connection.Connected })

	if err := controller.dispatcher.EmitCommand(ctx, "map", "woods"); err != nil {
		t.Fatalf("EmitCommand: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if paths := nav.snapshot(); len(paths) != 0 {
		t.Fatalf("disconnected display navigated to %v", paths)
	}
	if relay.Forwarded() != 0 {
		t.Fatalf("relay forwarded %d commands to an absent display", relay.Forwarded())
	}
}

func TestRelayPingsAreAnswered(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PingInterval = 20 * time.Millisecond
	relay, srv := NewServer(cfg)
	defer srv.Close()

	display := startClient(t, WebsocketURL(srv.URL))
	display.manager.Enable()

	waitFor(t, "pongs", func() bool { return relay.Pongs() >= 3 })

	if display.manager.State() != connection.Connected {
		t.Fatalf("state = %s, want connected", display.manager.State())
	}
	if got := display.manager.Stats().Pongs; got < 3 {
		t.Fatalf("manager pongs = %d, want at least 3", got)
	}
}

func TestDisplayReconnectsAfterDrop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PingInterval = 0
	relay, srv := NewServer(cfg)
	defer srv.Close()

	ctx := context.Background()
	display := startClient(t, WebsocketURL(srv.URL))
	displayID := display.identity.GetOrCreateSessionID(ctx)
	display.manager.Enable()

	waitFor(t, "display announced", func() bool { return relay.SessionCount(displayID.String()) == 1 })

	relay.DropAll()

	waitFor(t, "reconnect", func() bool {
		return display.manager.Stats().Dials >= 2 &&
			display.manager.State() == connection.Connected &&
			relay.Connections() == 1 &&
			relay.SessionCount(displayID.String()) == 1
	})
}
