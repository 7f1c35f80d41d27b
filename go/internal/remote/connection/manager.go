package connection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tarkovremote/go/internal/remote/protocol"
	"github.com/mcdev12/tarkovremote/go/internal/remote/session"
	"github.com/rs/zerolog/log"
)

const (
	controlBufferSize = 16
	sendBufferSize    = 64
	eventBufferSize   = 64
)

// ErrAlreadyRunning is returned when Run is called on a manager whose loop is already running
var ErrAlreadyRunning = errors.New("connection manager already running")

// Identity supplies the ids the manager needs at connect and send time
type Identity interface {
	GetOrCreateSessionID(ctx context.Context) session.ID
	ControlID(ctx context.Context) session.ID
}

// CommandSink consumes inbound command messages. It is called on the manager loop.
type CommandSink interface {
	HandleCommand(ctx context.Context, msg protocol.Message)
}

// Option configures a Manager
type Option func(*Manager)

// WithClock replaces the real clock, e.g. with a clockwork fake clock in tests
func WithClock(clock clockwork.Clock) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

type eventKind int

const (
	eventOpened eventKind = iota
	eventFrame
	eventClosed
)

// connEvent is produced by dial and reader goroutines. The generation ties it to
// the connection attempt it belongs to so events from a dead transport are ignored.
type connEvent struct {
	generation uint64
	kind       eventKind
	transport  Transport
	data       []byte
	err        error
}

// outbound is an encoded frame waiting for the transport
type outbound struct {
	frame   []byte
	command bool
}

// Manager owns the single logical connection to the relay. All state transitions
// happen on the loop started by Run; the public methods only enqueue requests.
type Manager struct {
	config     Config
	dialer     Dialer
	identity   Identity
	clock      clockwork.Clock
	status     *Status
	stats      counters
	instanceID string

	sinkMu sync.RWMutex
	sink   CommandSink

	controlCh   chan bool
	sendCh      chan protocol.Message
	retryCh     chan outbound
	events      chan connEvent
	done        chan struct{}
	running     atomic.Bool
	enabledFlag atomic.Bool

	// Owned by the loop goroutine
	enabled    bool
	generation uint64
	transport  Transport
	connecting bool
	heartbeat  *Heartbeat
	supervisor *Supervisor
}

// NewManager creates a manager; call Run to start it
func NewManager(config Config, dialer Dialer, identity Identity, opts ...Option) *Manager {
	config = config.withDefaults()

	m := &Manager{
		config:     config,
		dialer:     dialer,
		identity:   identity,
		clock:      clockwork.NewRealClock(),
		status:     NewStatus(),
		instanceID: uuid.New().String()[:8], // short ID for logging

		controlCh: make(chan bool, controlBufferSize),
		sendCh:    make(chan protocol.Message, sendBufferSize),
		retryCh:   make(chan outbound, sendBufferSize),
		events:    make(chan connEvent, eventBufferSize),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.heartbeat = newHeartbeat(m.clock, config.HeartbeatTimeout())
	m.supervisor = newSupervisor(m.clock, config.ReconnectInterval)
	return m
}

// SetCommandSink registers the consumer of inbound commands
func (m *Manager) SetCommandSink(sink CommandSink) {
	m.sinkMu.Lock()
	defer m.sinkMu.Unlock()
	m.sink = sink
}

func (m *Manager) commandSink() CommandSink {
	m.sinkMu.RLock()
	defer m.sinkMu.RUnlock()
	return m.sink
}

// Status returns the read-only connection status publisher
func (m *Manager) Status() *Status {
	return m.status
}

// State returns the current connection state
func (m *Manager) State() State {
	return m.status.State()
}

// Enabled reports whether the feature is enabled
func (m *Manager) Enabled() bool {
	return m.enabledFlag.Load()
}

// Stats returns a snapshot of the manager's counters
func (m *Manager) Stats() Stats {
	return m.stats.snapshot()
}

// Config returns the effective configuration
func (m *Manager) Config() Config {
	return m.config
}

// Enable turns the feature on: connect now if no transport exists and keep reconnecting
func (m *Manager) Enable() {
	m.enabledFlag.Store(true)
	m.control(true)
}

// Disable stops reconnecting. An open transport is left to close on its own.
func (m *Manager) Disable() {
	m.enabledFlag.Store(false)
	m.control(false)
}

func (m *Manager) control(enable bool) {
	select {
	case m.controlCh <- enable:
	case <-m.done:
	}
}

// Send queues msg for the paired peer; the routing key is set to the current control id.
// Delivery is best-effort: if the transport is not open the frame is retried once after
// the configured delay and then dropped. Send never blocks.
func (m *Manager) Send(msg protocol.Message) {
	select {
	case m.sendCh <- msg:
	default:
		m.stats.droppedFrames.Add(1)
		log.Warn().
			Str("instance", m.instanceID).
			Str("type", string(msg.Type)).
			Msg("send queue full, dropping message")
	}
}

// Run processes events until ctx is cancelled. The transport is closed on return.
func (m *Manager) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(m.done)
	defer m.shutdown()

	log.Info().
		Str("instance", m.instanceID).
		Str("relay_url", m.config.RelayURL).
		Dur("heartbeat_timeout", m.config.HeartbeatTimeout()).
		Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("instance", m.instanceID).Msg("connection manager shutting down")
			return nil
		case enable := <-m.controlCh:
			if enable {
				m.handleEnable(ctx)
			} else {
				m.handleDisable()
			}
		case msg := <-m.sendCh:
			m.handleSend(ctx, msg)
		case out := <-m.retryCh:
			m.handleRetry(out)
		case ev := <-m.events:
			m.handleEvent(ctx, ev)
		case <-m.heartbeat.C():
			m.heartbeat.expired()
			m.handleHeartbeatExpired()
		case <-m.supervisor.C():
			m.handleSupervisorTick(ctx)
		}
	}
}

func (m *Manager) shutdown() {
	m.supervisor.Stop()
	m.heartbeat.Clear()
	if m.transport != nil {
		m.transport.Close()
		m.transport = nil
	}
	m.generation++
	m.connecting = false
	m.setState(Disconnected)
}

func (m *Manager) handleEnable(ctx context.Context) {
	m.enabled = true
	m.supervisor.Start()

	switch {
	case m.transport == nil && !m.connecting:
		m.connect(ctx)
	case m.transport != nil && !m.heartbeat.Armed():
		// Re-enabled while the previous transport is still open
		m.heartbeat.Arm()
	}
}

func (m *Manager) handleDisable() {
	if !m.enabled {
		return
	}
	m.enabled = false
	m.supervisor.Stop()
	m.heartbeat.Clear()

	log.Info().Str("instance", m.instanceID).Msg("remote connection disabled")
}

// connect starts a dial; the outcome arrives as an opened or closed event
func (m *Manager) connect(ctx context.Context) {
	m.generation++
	generation := m.generation
	m.connecting = true
	m.stats.dials.Add(1)
	m.setState(Connecting)

	url := m.config.RelayURL
	timeout := m.config.HandshakeTimeout

	go func() {
		dialCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		transport, err := m.dialer.Dial(dialCtx, url)
		if err != nil {
			m.post(connEvent{generation: generation, kind: eventClosed, err: err})
			return
		}
		if !m.post(connEvent{generation: generation, kind: eventOpened, transport: transport}) {
			transport.Close()
		}
	}()
}

// post delivers an event to the loop; false once the loop has exited
func (m *Manager) post(ev connEvent) bool {
	select {
	case m.events <- ev:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) handleEvent(ctx context.Context, ev connEvent) {
	if ev.generation != m.generation {
		if ev.kind == eventOpened && ev.transport != nil {
			ev.transport.Close()
		}
		return
	}

	switch ev.kind {
	case eventOpened:
		m.handleOpen(ctx, ev.transport)
	case eventFrame:
		m.handleFrame(ctx, ev.data)
	case eventClosed:
		m.handleClose(ev.err)
	}
}

func (m *Manager) handleOpen(ctx context.Context, transport Transport) {
	m.transport = transport
	m.connecting = false

	// The deadline is armed only while the feature is enabled
	if m.enabled {
		m.heartbeat.Arm()
	}
	m.setState(Connected)

	go m.readPump(m.generation, transport)

	sessionID := m.identity.GetOrCreateSessionID(ctx)
	m.writeMessage(protocol.Connect(sessionID.String()))

	log.Info().
		Str("instance", m.instanceID).
		Str("session_id", sessionID.String()).
		Msg("connected to relay")
}

func (m *Manager) handleFrame(ctx context.Context, data []byte) {
	if m.transport == nil {
		return
	}

	msg, err := protocol.Parse(data)
	if err != nil {
		m.stats.malformedFrames.Add(1)
		log.Warn().
			Err(err).
			Str("instance", m.instanceID).
			Int("size", len(data)).
			Msg("dropping malformed frame")
		return
	}

	switch msg.Type {
	case protocol.MessageTypePing:
		if m.enabled {
			m.heartbeat.Arm()
		}
		if m.writeMessage(protocol.Pong()) {
			m.stats.pongs.Add(1)
		}

	case protocol.MessageTypeCommand:
		m.stats.commandsReceived.Add(1)
		sink := m.commandSink()
		if sink == nil {
			log.Debug().Str("instance", m.instanceID).Msg("no command consumer registered")
			return
		}
		sink.HandleCommand(ctx, msg)

	default:
		log.Debug().
			Str("instance", m.instanceID).
			Str("type", string(msg.Type)).
			Msg("ignoring relay message")
	}
}

func (m *Manager) handleClose(err error) {
	if m.transport != nil {
		m.transport.Close()
		m.transport = nil
	}
	m.generation++
	m.connecting = false
	m.heartbeat.Clear()
	m.setState(Disconnected)

	log.Info().
		Err(err).
		Str("instance", m.instanceID).
		Msg("disconnected from relay")
}

func (m *Manager) handleHeartbeatExpired() {
	if m.transport == nil {
		return
	}

	log.Warn().
		Str("instance", m.instanceID).
		Dur("timeout", m.config.HeartbeatTimeout()).
		Msg("no ping from relay within deadline, terminating connection")

	m.stats.forcedCloses.Add(1)
	m.transport.Close()
	m.transport = nil
	m.generation++
	m.setState(Disconnected)
}

func (m *Manager) handleSupervisorTick(ctx context.Context) {
	if !m.enabled || m.transport != nil || m.connecting {
		return
	}

	log.Info().Str("instance", m.instanceID).Msg("trying to re-connect")
	m.connect(ctx)
}

func (m *Manager) handleSend(ctx context.Context, msg protocol.Message) {
	msg.SessionID = m.identity.ControlID(ctx).String()

	frame, err := protocol.Encode(msg)
	if err != nil {
		m.stats.droppedFrames.Add(1)
		log.Error().Err(err).Str("instance", m.instanceID).Msg("failed to encode outbound message")
		return
	}

	out := outbound{frame: frame, command: msg.IsCommand()}
	if m.transport != nil {
		m.writeOutbound(out)
		return
	}

	m.stats.deferredSends.Add(1)
	log.Debug().
		Str("instance", m.instanceID).
		Dur("delay", m.config.SendRetryDelay).
		Msg("transport not open, deferring send")

	// The retry is not cancelled by Disable; it fires once and is then discarded
	m.clock.AfterFunc(m.config.SendRetryDelay, func() {
		select {
		case m.retryCh <- out:
		case <-m.done:
		}
	})
}

func (m *Manager) handleRetry(out outbound) {
	if m.transport == nil {
		m.stats.droppedFrames.Add(1)
		log.Debug().Str("instance", m.instanceID).Msg("transport still not open, dropping deferred frame")
		return
	}
	m.writeOutbound(out)
}

func (m *Manager) writeOutbound(out outbound) {
	if m.writeFrame(out.frame) && out.command {
		m.stats.commandsSent.Add(1)
	}
}

func (m *Manager) writeMessage(msg protocol.Message) bool {
	frame, err := protocol.Encode(msg)
	if err != nil {
		log.Error().Err(err).Str("instance", m.instanceID).Msg("failed to encode message")
		return false
	}
	return m.writeFrame(frame)
}

// writeFrame writes on the open transport. A failed write is left to the reader to
// surface as a close event.
func (m *Manager) writeFrame(frame []byte) bool {
	if err := m.transport.WriteMessage(frame); err != nil {
		m.stats.droppedFrames.Add(1)
		log.Warn().Err(err).Str("instance", m.instanceID).Msg("failed to write frame")
		return false
	}
	m.stats.framesSent.Add(1)
	return true
}

// readPump forwards frames from one transport to the loop until it fails
func (m *Manager) readPump(generation uint64, transport Transport) {
	for {
		data, err := transport.ReadMessage()
		if err != nil {
			m.post(connEvent{generation: generation, kind: eventClosed, err: err})
			return
		}
		if !m.post(connEvent{generation: generation, kind: eventFrame, data: data}) {
			return
		}
	}
}

func (m *Manager) setState(state State) {
	if m.status.publish(state) {
		log.Debug().
			Str("instance", m.instanceID).
			Str("state", state.String()).
			Msg("connection state changed")
	}
}
