package message

import (
	"github.com/sessamekesh/chessnet/pkg/errors"
)

type ClientMessageType uint8

const (
	ClientMessageType_Text ClientMessageType = iota
	ClientMessageType_Ping
	ClientMessageType_Pong
	ClientMessageType_PlayerIdRequest
	ClientMessageType_GamesRequest
	ClientMessageType_GameCreateRequest

	ClientMessageType_NONE
)

func (t ClientMessageType) String() string {
	switch t {
	case ClientMessageType_Text:
		return "Text"
	case ClientMessageType_Ping:
		return "Ping"
	case ClientMessageType_Pong:
		return "Pong"
	case ClientMessageType_PlayerIdRequest:
		return "PlayerIdRequest"
	case ClientMessageType_GamesRequest:
		return "GamesRequest"
	case ClientMessageType_GameCreateRequest:
		return "GameCreateRequest"
	}
	return "NONE"
}

// ClientMessage is sent from a player's client to the server.
type ClientMessage struct {
	MessageType ClientMessageType
	Text        string
}

func NewClientText(text string) ClientMessage {
	return ClientMessage{MessageType: ClientMessageType_Text, Text: text}
}

func (m ClientMessage) IsPing() bool {
	return m.MessageType == ClientMessageType_Ping
}

func (m ClientMessage) IsPong() bool {
	return m.MessageType == ClientMessageType_Pong
}

func (ClientMessage) Ping() ClientMessage {
	return ClientMessage{MessageType: ClientMessageType_Ping}
}

func (ClientMessage) Pong() ClientMessage {
	return ClientMessage{MessageType: ClientMessageType_Pong}
}

type ClientMessageSerializer struct{}

func (s ClientMessageSerializer) SerializeMessage(msg ClientMessage) ([]byte, error) {
	if msg.MessageType >= ClientMessageType_NONE {
		return nil, &errors.InvalidEnumValue{
			EnumName: "ClientMessage::MessageType",
			IntValue: uint64(msg.MessageType),
		}
	}

	out := appendMessageType([]byte{}, uint8(msg.MessageType))
	if msg.MessageType == ClientMessageType_Text {
		out = appendText(out, msg.Text)
	}

	return out, nil
}

func (s ClientMessageSerializer) Parse(msg []byte) (ClientMessage, error) {
	fields, err := parseFields("ClientMessage", msg)
	if err != nil {
		return ClientMessage{}, err
	}

	if fields.messageType >= uint64(ClientMessageType_NONE) {
		return ClientMessage{}, &errors.InvalidEnumValue{
			EnumName: "ClientMessage::MessageType",
			IntValue: fields.messageType,
		}
	}

	parsed := ClientMessage{MessageType: ClientMessageType(fields.messageType)}
	if parsed.MessageType == ClientMessageType_Text {
		parsed.Text = fields.text
	}

	return parsed, nil
}
