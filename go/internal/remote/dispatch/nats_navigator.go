package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// DefaultSubjectPrefix is the subject namespace navigation events are published under
const DefaultSubjectPrefix = "remote.navigate"

// Publisher is the subset of jetstream.JetStream the navigator needs
type Publisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSNavigator publishes every navigation of a display session to JetStream so other
// processes (overlays, recorders) can follow along.
type NATSNavigator struct {
	js        Publisher
	subject   string
	stream    string
	sessionID string
}

// NewNATSNavigator publishes on <prefix>.<sessionID>. When stream is set, publishes
// are rejected unless they land in that stream.
func NewNATSNavigator(js Publisher, prefix, stream, sessionID string) *NATSNavigator {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSNavigator{
		js:        js,
		subject:   fmt.Sprintf("%s.%s", prefix, sessionID),
		stream:    stream,
		sessionID: sessionID,
	}
}

// Subject returns the subject navigations are published on
func (n *NATSNavigator) Subject() string {
	return n.subject
}

type navigationEvent struct {
	EventID   string    `json:"eventId"`
	SessionID string    `json:"sessionId"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

func (n *NATSNavigator) NavigateTo(ctx context.Context, path string) error {
	event := navigationEvent{
		EventID:   uuid.New().String(),
		SessionID: n.sessionID,
		Path:      path,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal navigation event: %w", err)
	}

	opts := []jetstream.PublishOpt{jetstream.WithMsgID(event.EventID)}
	if n.stream != "" {
		opts = append(opts, jetstream.WithExpectStream(n.stream))
	}

	ack, err := n.js.PublishMsg(ctx, &nats.Msg{
		Subject: n.subject,
		Data:    data,
		Header: nats.Header{
			"Session-ID": []string{n.sessionID},
			"Event-ID":   []string{event.EventID},
		},
	}, opts...)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", n.subject).
		Str("event_id", event.EventID).
		Uint64("sequence", ack.Sequence).
		Msg("published navigation")
	return nil
}
