package connection

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is one open bidirectional text-frame connection to the relay.
// ReadMessage is called from a single reader goroutine and WriteMessage from
// the manager loop; Close may be called from either.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens transports. Dial returns once the transport is open.
type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

// WebsocketDialer dials the relay with gorilla/websocket
type WebsocketDialer struct {
	dialer         *websocket.Dialer
	header         http.Header
	writeTimeout   time.Duration
	maxMessageSize int64
}

// NewWebsocketDialer creates a dialer using the transport settings in config
func NewWebsocketDialer(config Config) *WebsocketDialer {
	config = config.withDefaults()
	return &WebsocketDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
		writeTimeout:   config.WriteTimeout,
		maxMessageSize: config.MaxMessageSize,
	}
}

// WithHeader sets extra request headers sent during the handshake (e.g. Origin)
func (d *WebsocketDialer) WithHeader(header http.Header) *WebsocketDialer {
	d.header = header
	return d
}

func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Transport, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, d.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial relay %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial relay %s: %w", url, err)
	}

	conn.SetReadLimit(d.maxMessageSize)

	return &websocketTransport{conn: conn, writeTimeout: d.writeTimeout}, nil
}

type websocketTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func (t *websocketTransport) ReadMessage() ([]byte, error) {
	for {
		messageType, data, err := t.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		// The protocol only uses text frames
		if messageType == websocket.TextMessage {
			return data, nil
		}
	}
}

func (t *websocketTransport) WriteMessage(data []byte) error {
	t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *websocketTransport) Close() error {
	return t.conn.Close()
}
