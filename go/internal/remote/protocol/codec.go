package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedFrame is returned for frames that cannot be decoded into a known message.
// Callers drop such frames; they never affect the connection.
var ErrMalformedFrame = errors.New("malformed frame")

// Parse decodes a single text frame
func Parse(raw []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch msg.Type {
	case MessageTypePing, MessageTypePong:
		return msg, nil
	case MessageTypeConnect:
		if msg.SessionID == "" {
			return Message{}, fmt.Errorf("%w: connect without sessionID", ErrMalformedFrame)
		}
		return msg, nil
	case MessageTypeCommand:
		if msg.Data == nil || msg.Data.Type == "" {
			return Message{}, fmt.Errorf("%w: command without target type", ErrMalformedFrame)
		}
		return msg, nil
	case "":
		return Message{}, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	default:
		return Message{}, fmt.Errorf("%w: unknown type %q", ErrMalformedFrame, msg.Type)
	}
}

// Encode serializes a message into a text frame
func Encode(msg Message) ([]byte, error) {
	if msg.Type == "" {
		return nil, errors.New("encode message: missing type")
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", msg.Type, err)
	}
	return data, nil
}
