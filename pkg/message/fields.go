package message

import (
	"github.com/google/uuid"
	"github.com/sessamekesh/chessnet/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldMessageType protowire.Number = 1
	fieldText        protowire.Number = 2
	fieldId          protowire.Number = 3
	fieldGames       protowire.Number = 4
)

const (
	fieldGameId          protowire.Number = 1
	fieldGamePlayerCount protowire.Number = 2
	fieldGameInProgress  protowire.Number = 3
)

// rawFields is the decoded field set shared by client and server messages.
type rawFields struct {
	hasType     bool
	messageType uint64
	text        string
	id          []byte
	games       [][]byte
}

func appendText(out []byte, text string) []byte {
	if text == "" {
		return out
	}
	out = protowire.AppendTag(out, fieldText, protowire.BytesType)
	return protowire.AppendString(out, text)
}

func appendId(out []byte, id uuid.UUID) []byte {
	out = protowire.AppendTag(out, fieldId, protowire.BytesType)
	return protowire.AppendBytes(out, id[:])
}

func appendMessageType(out []byte, messageType uint8) []byte {
	out = protowire.AppendTag(out, fieldMessageType, protowire.VarintType)
	return protowire.AppendVarint(out, uint64(messageType))
}

func parseFields(messageName string, msg []byte) (*rawFields, error) {
	fields := &rawFields{}

	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		msg = msg[n:]

		switch {
		case num == fieldMessageType && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(msg)
			if m < 0 {
				return nil, &errors.InvalidFieldError{MessageName: messageName, FieldName: "MessageType", Err: protowire.ParseError(m)}
			}
			fields.hasType = true
			fields.messageType = v
			n = m
		case num == fieldText && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(msg)
			if m < 0 {
				return nil, &errors.InvalidFieldError{MessageName: messageName, FieldName: "Text", Err: protowire.ParseError(m)}
			}
			fields.text = v
			n = m
		case num == fieldId && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(msg)
			if m < 0 {
				return nil, &errors.InvalidFieldError{MessageName: messageName, FieldName: "Id", Err: protowire.ParseError(m)}
			}
			fields.id = v
			n = m
		case num == fieldGames && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(msg)
			if m < 0 {
				return nil, &errors.InvalidFieldError{MessageName: messageName, FieldName: "Games", Err: protowire.ParseError(m)}
			}
			fields.games = append(fields.games, v)
			n = m
		default:
			// Unknown fields are skipped so peers can add fields without breaking older builds
			m := protowire.ConsumeFieldValue(num, typ, msg)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			n = m
		}

		msg = msg[n:]
	}

	if !fields.hasType {
		return nil, &errors.MissingFieldError{
			MessageName: messageName,
			FieldName:   "MessageType",
		}
	}

	return fields, nil
}

func parseId(messageName string, raw []byte) (uuid.UUID, error) {
	if raw == nil {
		return uuid.Nil, &errors.MissingFieldError{
			MessageName: messageName,
			FieldName:   "Id",
		}
	}

	id, err := uuid.FromBytes(raw)
	if err != nil {
		return uuid.Nil, &errors.InvalidFieldError{
			MessageName: messageName,
			FieldName:   "Id",
			Err:         err,
		}
	}
	return id, nil
}
