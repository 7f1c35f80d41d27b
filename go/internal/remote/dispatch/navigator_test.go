package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mcdev12/tarkovremote/go/internal/remote/protocol"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

func TestPath(t *testing.T) {
	tests := []struct {
		targetType  string
		targetValue string
		want        string
	}{
		{"map", "customs", "/map/customs"},
		{"item", "m4a1-assault-rifle", "/item/m4a1-assault-rifle"},
		{"item", "5.45x39mm BS", "/item/5.45x39mm%20BS"},
		{"map", "a/b", "/map/a%2Fb"},
		{"loot-tier", "", "/loot-tier/"},
	}

	for _, tt := range tests {
		if got := Path(tt.targetType, tt.targetValue); got != tt.want {
			t.Errorf("Path(%q, %q) = %q, want %q", tt.targetType, tt.targetValue, got, tt.want)
		}
	}
}

func TestURLNavigator(t *testing.T) {
	nav, err := NewURLNavigator("")
	if err != nil {
		t.Fatalf("NewURLNavigator: %v", err)
	}
	if nav.Current() != "" {
		t.Fatalf("current before navigation = %q", nav.Current())
	}

	if err := nav.NavigateTo(context.Background(), Path("map", "customs")); err != nil {
		t.Fatalf("NavigateTo: %v", err)
	}
	if got, want := nav.Current(), "https://tarkov.dev/map/customs"; got != want {
		t.Fatalf("current = %q, want %q", got, want)
	}

	if _, err := NewURLNavigator("not a url"); err == nil {
		t.Fatal("relative site url accepted")
	}
}

func TestNavigateHandlerNavigatesOnce(t *testing.T) {
	nav, _ := NewURLNavigator("http://localhost:3000")
	var calls []string
	recording := navigatorFunc(func(_ context.Context, path string) error {
		calls = append(calls, path)
		return nil
	})

	d := New(&recordingSender{}, fixedState(true), fixedControl(""))
	d.OnCommand(NavigateHandler(MultiNavigator{nav, recording}))
	d.HandleCommand(context.Background(), protocol.Command("map", "customs"))

	if len(calls) != 1 || calls[0] != "/map/customs" {
		t.Fatalf("navigations = %v, want [/map/customs]", calls)
	}
	if nav.Current() != "http://localhost:3000/map/customs" {
		t.Fatalf("url navigator current = %q", nav.Current())
	}
}

func TestMultiNavigatorJoinsErrors(t *testing.T) {
	errBoom := errors.New("boom")
	var reached bool
	m := MultiNavigator{
		navigatorFunc(func(context.Context, string) error { return errBoom }),
		navigatorFunc(func(context.Context, string) error { reached = true; return nil }),
	}

	err := m.NavigateTo(context.Background(), "/map/woods")
	if !errors.Is(err, errBoom) {
		t.Fatalf("error = %v, want boom", err)
	}
	if !reached {
		t.Fatal("navigation stopped at the first failure")
	}
}

type navigatorFunc func(ctx context.Context, path string) error

func (f navigatorFunc) NavigateTo(ctx context.Context, path string) error { return f(ctx, path) }

type fakePublisher struct {
	msgs []*nats.Msg
	err  error
}

func (p *fakePublisher) PublishMsg(_ context.Context, msg *nats.Msg, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.msgs = append(p.msgs, msg)
	return &jetstream.PubAck{Stream: "REMOTE_NAVIGATION", Sequence: uint64(len(p.msgs))}, nil
}

func TestNATSNavigatorPublishes(t *testing.T) {
	pub := &fakePublisher{}
	nav := NewNATSNavigator(pub, "", "REMOTE_NAVIGATION", "DISP")

	if nav.Subject() != "remote.navigate.DISP" {
		t.Fatalf("subject = %q", nav.Subject())
	}
	if err := nav.NavigateTo(context.Background(), "/map/customs"); err != nil {
		t.Fatalf("NavigateTo: %v", err)
	}

	if len(pub.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.msgs))
	}
	msg := pub.msgs[0]
	if msg.Subject != "remote.navigate.DISP" || msg.Header.Get("Session-ID") != "DISP" {
		t.Fatalf("message subject=%q headers=%v", msg.Subject, msg.Header)
	}

	var event navigationEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if event.Path != "/map/customs" || event.SessionID != "DISP" {
		t.Fatalf("event = %+v", event)
	}
	if event.EventID == "" || msg.Header.Get("Event-ID") != event.EventID {
		t.Fatal("event id missing from payload or header")
	}
}

func TestNATSNavigatorPublishError(t *testing.T) {
	errNoStream := errors.New("no stream")
	nav := NewNATSNavigator(&fakePublisher{err: errNoStream}, "overlay", "", "DISP")

	if nav.Subject() != "overlay.DISP" {
		t.Fatalf("subject = %q", nav.Subject())
	}
	if err := nav.NavigateTo(context.Background(), "/map/customs"); !errors.Is(err, errNoStream) {
		t.Fatalf("error = %v, want wrapped publish error", err)
	}
}
