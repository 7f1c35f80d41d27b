package natsutil

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.StreamName != "REMOTE_NAVIGATION" || cfg.SubjectPrefix != "remote.navigate" {
		t.Fatalf("stream=%q prefix=%q", cfg.StreamName, cfg.SubjectPrefix)
	}
	if cfg.MaxReconnects != -1 || cfg.Replicas != 1 {
		t.Fatalf("reconnects=%d replicas=%d", cfg.MaxReconnects, cfg.Replicas)
	}
}

func TestIsStreamConfigEqual(t *testing.T) {
	base := jetstream.StreamConfig{
		Name:     "REMOTE_NAVIGATION",
		Subjects: []string{"remote.navigate.>"},
		MaxAge:   time.Hour,
		MaxMsgs:  -1,
		Replicas: 1,
	}

	tests := []struct {
		name   string
		modify func(*jetstream.StreamConfig)
		want   bool
	}{
		{"identical", func(*jetstream.StreamConfig) {}, true},
		{"description ignored", func(c *jetstream.StreamConfig) { c.Description = "other" }, true},
		{"max age", func(c *jetstream.StreamConfig) { c.MaxAge = 2 * time.Hour }, false},
		{"max msgs", func(c *jetstream.StreamConfig) { c.MaxMsgs = 100 }, false},
		{"replicas", func(c *jetstream.StreamConfig) { c.Replicas = 3 }, false},
		{"subjects", func(c *jetstream.StreamConfig) { c.Subjects = []string{"overlay.>"} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base
			other.Subjects = append([]string(nil), base.Subjects...)
			tt.modify(&other)
			if got := isStreamConfigEqual(base, other); got != tt.want {
				t.Fatalf("isStreamConfigEqual = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConnectUnreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "nats://127.0.0.1:1"

	nc, js, err := Connect(cfg)
	if err == nil {
		nc.Close()
		t.Fatal("connected to an unreachable server")
	}
	if nc != nil || js != nil {
		t.Fatal("connection returned alongside error")
	}
}
