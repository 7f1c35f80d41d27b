package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mcdev12/tarkovremote/go/internal/remote/protocol"
	"github.com/mcdev12/tarkovremote/go/internal/remote/session"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNoControlID is returned by EmitCommand when this client is not paired with a display
	ErrNoControlID = errors.New("no control id set")
	// ErrEmptyTarget is returned by EmitCommand when the target type is empty
	ErrEmptyTarget = errors.New("command target type is empty")
)

// Handler consumes a navigation command
type Handler func(ctx context.Context, targetType, targetValue string)

// Sender hands outbound messages to the connection manager
type Sender interface {
	Send(msg protocol.Message)
}

// StateReader reports whether the relay connection is live
type StateReader interface {
	Connected() bool
}

// ControlSource yields the session id of the paired display
type ControlSource interface {
	ControlID(ctx context.Context) session.ID
}

// Dispatcher routes inbound commands to the registered handler and builds outbound ones
type Dispatcher struct {
	sender  Sender
	state   StateReader
	control ControlSource

	mu      sync.RWMutex
	handler Handler
}

func New(sender Sender, state StateReader, control ControlSource) *Dispatcher {
	return &Dispatcher{
		sender:  sender,
		state:   state,
		control: control,
	}
}

// OnCommand registers the consumer of inbound commands, replacing any previous one
func (d *Dispatcher) OnCommand(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = h
}

// HandleCommand delivers an inbound command to the handler. Commands arriving while the
// connection is not Connected are dropped. It runs on the connection manager loop, so the
// handler must not block for long.
func (d *Dispatcher) HandleCommand(ctx context.Context, msg protocol.Message) {
	if !msg.IsCommand() {
		return
	}

	if !d.state.Connected() {
		log.Debug().
			Str("target_type", msg.Data.Type).
			Msg("dropping command received while not connected")
		return
	}

	d.mu.RLock()
	h := d.handler
	d.mu.RUnlock()

	if h == nil {
		log.Debug().Str("target_type", msg.Data.Type).Msg("no command handler registered")
		return
	}

	log.Info().
		Str("target_type", msg.Data.Type).
		Str("target_value", msg.Data.Value).
		Msg("received command")

	h(ctx, msg.Data.Type, msg.Data.Value)
}

// EmitCommand sends a navigation command to the paired display
func (d *Dispatcher) EmitCommand(ctx context.Context, targetType, targetValue string) error {
	targetType = strings.TrimSpace(targetType)
	if targetType == "" {
		return ErrEmptyTarget
	}

	controlID := d.control.ControlID(ctx)
	if controlID == "" {
		return fmt.Errorf("emit %s command: %w", targetType, ErrNoControlID)
	}

	d.sender.Send(protocol.Command(targetType, targetValue))

	log.Info().
		Str("control_id", controlID.String()).
		Str("target_type", targetType).
		Str("target_value", targetValue).
		Msg("emitted command")
	return nil
}
