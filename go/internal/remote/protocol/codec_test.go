package protocol

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Message
	}{
		{
			name: "ping",
			raw:  `{"type":"ping"}`,
			want: Message{Type: MessageTypePing},
		},
		{
			name: "pong",
			raw:  `{"type":"pong"}`,
			want: Message{Type: MessageTypePong},
		},
		{
			name: "connect",
			raw:  `{"sessionID":"ABCD","type":"connect"}`,
			want: Message{SessionID: "ABCD", Type: MessageTypeConnect},
		},
		{
			name: "command",
			raw:  `{"sessionID":"ABCD","type":"command","data":{"type":"map","value":"customs"}}`,
			want: Message{
				SessionID: "ABCD",
				Type:      MessageTypeCommand,
				Data:      &CommandData{Type: "map", Value: "customs"},
			},
		},
		{
			name: "command without value",
			raw:  `{"type":"command","data":{"type":"ammo"}}`,
			want: Message{Type: MessageTypeCommand, Data: &CommandData{Type: "ammo"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Parse(%s) returned error: %v", tt.raw, err)
			}
			if got.Type != tt.want.Type || got.SessionID != tt.want.SessionID {
				t.Fatalf("Parse(%s) = %+v, want %+v", tt.raw, got, tt.want)
			}
			if (got.Data == nil) != (tt.want.Data == nil) {
				t.Fatalf("Parse(%s) data = %v, want %v", tt.raw, got.Data, tt.want.Data)
			}
			if got.Data != nil && *got.Data != *tt.want.Data {
				t.Fatalf("Parse(%s) data = %+v, want %+v", tt.raw, *got.Data, *tt.want.Data)
			}
		})
	}
}

func TestParseMalformed(t *testing.T) {
	frames := []string{
		``,
		`not json`,
		`{"type":`,
		`{}`,
		`{"sessionID":"ABCD"}`,
		`{"type":"reload"}`,
		`{"type":"connect"}`,
		`{"type":"command"}`,
		`{"type":"command","data":{"value":"customs"}}`,
		`["ping"]`,
		`{"type":42}`,
	}

	for _, raw := range frames {
		_, err := Parse([]byte(raw))
		if !errors.Is(err, ErrMalformedFrame) {
			t.Errorf("Parse(%q) error = %v, want ErrMalformedFrame", raw, err)
		}
	}
}

func TestEncodeWireFormat(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{"pong", Pong(), `{"type":"pong"}`},
		{"ping", Ping(), `{"type":"ping"}`},
		{"connect", Connect("ABCD"), `{"sessionID":"ABCD","type":"connect"}`},
		{
			name: "command",
			msg: func() Message {
				m := Command("map", "customs")
				m.SessionID = "ABCD"
				return m
			}(),
			want: `{"sessionID":"ABCD","type":"command","data":{"type":"map","value":"customs"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.msg)
			if err != nil {
				t.Fatalf("Encode returned error: %v", err)
			}
			if string(got) != tt.want {
				t.Fatalf("Encode = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEncodeRejectsMissingType(t *testing.T) {
	if _, err := Encode(Message{SessionID: "ABCD"}); err == nil {
		t.Fatal("expected error for message without type")
	}
}

func TestIsCommand(t *testing.T) {
	if !Command("map", "customs").IsCommand() {
		t.Fatal("Command() should report IsCommand")
	}
	if Ping().IsCommand() {
		t.Fatal("Ping() should not report IsCommand")
	}
	if (Message{Type: MessageTypeCommand}).IsCommand() {
		t.Fatal("command without data should not report IsCommand")
	}
}
