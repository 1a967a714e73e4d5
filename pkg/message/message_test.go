package message_test

import (
	goerrs "errors"
	"testing"

	"github.com/google/uuid"
	"github.com/sessamekesh/chessnet/pkg/errors"
	"github.com/sessamekesh/chessnet/pkg/message"
	"github.com/sessamekesh/chessnet/pkg/wire"
	"google.golang.org/protobuf/encoding/protowire"
)

var (
	_ wire.Message[message.ClientMessage]           = message.ClientMessage{}
	_ wire.Message[message.ServerMessage]           = message.ServerMessage{}
	_ wire.MessageSerializer[message.ClientMessage] = message.ClientMessageSerializer{}
	_ wire.MessageSerializer[message.ServerMessage] = message.ServerMessageSerializer{}
)

func TestKeepAliveCapability(t *testing.T) {
	var c message.ClientMessage
	if !c.Ping().IsPing() || c.Ping().IsPong() {
		t.Error("ClientMessage.Ping() should be a ping and not a pong")
	}
	if !c.Pong().IsPong() || c.Pong().IsPing() {
		t.Error("ClientMessage.Pong() should be a pong and not a ping")
	}

	var s message.ServerMessage
	if !s.Ping().IsPing() || !s.Pong().IsPong() {
		t.Error("ServerMessage keep-alive values are wrong")
	}

	if message.NewClientText("hi").IsPing() {
		t.Error("text message reported as ping")
	}
}

func TestServerMessageGamesSurviveSerialization(t *testing.T) {
	games := []message.GameSummary{
		{Id: uuid.New(), PlayerCount: 1, InProgress: false},
		{Id: uuid.New(), PlayerCount: 2, InProgress: true},
	}
	s := message.ServerMessageSerializer{}

	raw, err := s.SerializeMessage(message.ServerMessage{MessageType: message.ServerMessageType_Games, Games: games})
	if err != nil {
		t.Fatalf("SerializeMessage() error = %v", err)
	}

	parsed, err := s.Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(parsed.Games) != len(games) {
		t.Fatalf("got %d games, want %d", len(parsed.Games), len(games))
	}
	for i := range games {
		if parsed.Games[i] != games[i] {
			t.Errorf("game %d = %+v, want %+v", i, parsed.Games[i], games[i])
		}
	}
}

func TestParseRejectsMalformedMessages(t *testing.T) {
	unknownType := protowire.AppendTag(nil, 1, protowire.VarintType)
	unknownType = protowire.AppendVarint(unknownType, 200)

	noType := protowire.AppendTag(nil, 2, protowire.BytesType)
	noType = protowire.AppendString(noType, "hello")

	idMissing := protowire.AppendTag(nil, 1, protowire.VarintType)
	idMissing = protowire.AppendVarint(idMissing, uint64(message.ServerMessageType_PlayerIdResponse))

	tests := []struct {
		name   string
		raw    []byte
		target any
	}{
		{name: "unknown message type", raw: unknownType, target: new(*errors.InvalidEnumValue)},
		{name: "missing message type", raw: noType, target: new(*errors.MissingFieldError)},
		{name: "missing id", raw: idMissing, target: new(*errors.MissingFieldError)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := message.ServerMessageSerializer{}.Parse(tt.raw)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !goerrs.As(err, tt.target) {
				t.Errorf("error %v has unexpected type", err)
			}
		})
	}

	if _, err := (message.ClientMessageSerializer{}).Parse([]byte{0xff}); err == nil {
		t.Error("expected error for truncated client message")
	}
}

func TestParseSkipsUnknownFields(t *testing.T) {
	raw, err := message.ClientMessageSerializer{}.SerializeMessage(message.NewClientText("hello"))
	if err != nil {
		t.Fatalf("SerializeMessage() error = %v", err)
	}
	raw = protowire.AppendTag(raw, 99, protowire.VarintType)
	raw = protowire.AppendVarint(raw, 12345)

	parsed, err := message.ClientMessageSerializer{}.Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed != message.NewClientText("hello") {
		t.Errorf("Parse() = %+v, want text hello", parsed)
	}
}

func TestSerializeRejectsInvalidType(t *testing.T) {
	_, err := message.ClientMessageSerializer{}.SerializeMessage(message.ClientMessage{MessageType: message.ClientMessageType_NONE})
	var enumErr *errors.InvalidEnumValue
	if !goerrs.As(err, &enumErr) {
		t.Errorf("SerializeMessage() error = %v, want InvalidEnumValue", err)
	}
}
