package message

import (
	"github.com/google/uuid"
	"github.com/sessamekesh/chessnet/pkg/errors"
)

type ServerMessageType uint8

const (
	ServerMessageType_Text ServerMessageType = iota
	ServerMessageType_Ping
	ServerMessageType_Pong
	ServerMessageType_PlayerIdResponse
	ServerMessageType_Games
	ServerMessageType_GameCreateSuccess
	ServerMessageType_GameCreateFail

	ServerMessageType_NONE
)

func (t ServerMessageType) String() string {
	switch t {
	case ServerMessageType_Text:
		return "Text"
	case ServerMessageType_Ping:
		return "Ping"
	case ServerMessageType_Pong:
		return "Pong"
	case ServerMessageType_PlayerIdResponse:
		return "PlayerIdResponse"
	case ServerMessageType_Games:
		return "Games"
	case ServerMessageType_GameCreateSuccess:
		return "GameCreateSuccess"
	case ServerMessageType_GameCreateFail:
		return "GameCreateFail"
	}
	return "NONE"
}

// ServerMessage is sent from the server to a player's client. Id is set for
// PlayerIdResponse and GameCreateSuccess, Games for Games, and Text for Text
// and GameCreateFail.
type ServerMessage struct {
	MessageType ServerMessageType
	Text        string
	Id          uuid.UUID
	Games       []GameSummary
}

func NewServerText(text string) ServerMessage {
	return ServerMessage{MessageType: ServerMessageType_Text, Text: text}
}

func (m ServerMessage) IsPing() bool {
	return m.MessageType == ServerMessageType_Ping
}

func (m ServerMessage) IsPong() bool {
	return m.MessageType == ServerMessageType_Pong
}

func (ServerMessage) Ping() ServerMessage {
	return ServerMessage{MessageType: ServerMessageType_Ping}
}

func (ServerMessage) Pong() ServerMessage {
	return ServerMessage{MessageType: ServerMessageType_Pong}
}

type ServerMessageSerializer struct{}

func (s ServerMessageSerializer) SerializeMessage(msg ServerMessage) ([]byte, error) {
	out := appendMessageType([]byte{}, uint8(msg.MessageType))

	switch msg.MessageType {
	case ServerMessageType_Text, ServerMessageType_GameCreateFail:
		out = appendText(out, msg.Text)
	case ServerMessageType_PlayerIdResponse, ServerMessageType_GameCreateSuccess:
		out = appendId(out, msg.Id)
	case ServerMessageType_Games:
		for _, game := range msg.Games {
			out = appendGameSummary(out, game)
		}
	case ServerMessageType_Ping, ServerMessageType_Pong:
		break
	default:
		return nil, &errors.InvalidEnumValue{
			EnumName: "ServerMessage::MessageType",
			IntValue: uint64(msg.MessageType),
		}
	}

	return out, nil
}

func (s ServerMessageSerializer) Parse(msg []byte) (ServerMessage, error) {
	fields, err := parseFields("ServerMessage", msg)
	if err != nil {
		return ServerMessage{}, err
	}

	if fields.messageType >= uint64(ServerMessageType_NONE) {
		return ServerMessage{}, &errors.InvalidEnumValue{
			EnumName: "ServerMessage::MessageType",
			IntValue: fields.messageType,
		}
	}

	parsed := ServerMessage{MessageType: ServerMessageType(fields.messageType)}

	switch parsed.MessageType {
	case ServerMessageType_Text, ServerMessageType_GameCreateFail:
		parsed.Text = fields.text
	case ServerMessageType_PlayerIdResponse, ServerMessageType_GameCreateSuccess:
		parsed.Id, err = parseId("ServerMessage", fields.id)
		if err != nil {
			return ServerMessage{}, err
		}
	case ServerMessageType_Games:
		parsed.Games = make([]GameSummary, 0, len(fields.games))
		for _, rawGame := range fields.games {
			game, err := parseGameSummary(rawGame)
			if err != nil {
				return ServerMessage{}, &errors.InvalidFieldError{
					MessageName: "ServerMessage",
					FieldName:   "Games",
					Err:         err,
				}
			}
			parsed.Games = append(parsed.Games, game)
		}
	}

	return parsed, nil
}
