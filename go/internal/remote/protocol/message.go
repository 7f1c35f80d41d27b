package protocol

// MessageType identifies the kind of frame on the relay channel
type MessageType string

const (
	MessageTypeConnect MessageType = "connect"
	MessageTypePing    MessageType = "ping"
	MessageTypePong    MessageType = "pong"
	MessageTypeCommand MessageType = "command"
)

// Message is the envelope shared by every frame exchanged with the relay.
// Field order matches the order the relay documents on the wire.
type Message struct {
	SessionID string       `json:"sessionID,omitempty"` // Routing key: own id on connect, paired id on command
	Type      MessageType  `json:"type"`
	Data      *CommandData `json:"data,omitempty"` // Only set for command messages
}

// CommandData is a navigation instruction: a route segment and its parameter
type CommandData struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Ping returns the liveness ping the relay sends
func Ping() Message {
	return Message{Type: MessageTypePing}
}

// Pong returns the reply to a relay ping
func Pong() Message {
	return Message{Type: MessageTypePong}
}

// Connect returns the session announcement sent right after the transport opens
func Connect(sessionID string) Message {
	return Message{SessionID: sessionID, Type: MessageTypeConnect}
}

// Command returns a navigation command. The routing key is filled in by the sender.
func Command(targetType, targetValue string) Message {
	return Message{
		Type: MessageTypeCommand,
		Data: &CommandData{Type: targetType, Value: targetValue},
	}
}

// IsCommand reports whether the message carries a navigation instruction
func (m Message) IsCommand() bool {
	return m.Type == MessageTypeCommand && m.Data != nil
}
