package message

import (
	"github.com/google/uuid"
	"github.com/sessamekesh/chessnet/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// GameSummary is the lobby-facing view of a hosted game.
type GameSummary struct {
	Id          uuid.UUID
	PlayerCount uint32
	InProgress  bool
}

func appendGameSummary(out []byte, game GameSummary) []byte {
	inner := []byte{}
	inner = protowire.AppendTag(inner, fieldGameId, protowire.BytesType)
	inner = protowire.AppendBytes(inner, game.Id[:])
	inner = protowire.AppendTag(inner, fieldGamePlayerCount, protowire.VarintType)
	inner = protowire.AppendVarint(inner, uint64(game.PlayerCount))
	inner = protowire.AppendTag(inner, fieldGameInProgress, protowire.VarintType)
	inner = protowire.AppendVarint(inner, protowire.EncodeBool(game.InProgress))

	out = protowire.AppendTag(out, fieldGames, protowire.BytesType)
	return protowire.AppendBytes(out, inner)
}

func parseGameSummary(msg []byte) (GameSummary, error) {
	game := GameSummary{}
	var rawId []byte

	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return GameSummary{}, protowire.ParseError(n)
		}
		msg = msg[n:]

		switch {
		case num == fieldGameId && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(msg)
			if m < 0 {
				return GameSummary{}, protowire.ParseError(m)
			}
			rawId = v
			n = m
		case num == fieldGamePlayerCount && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(msg)
			if m < 0 {
				return GameSummary{}, protowire.ParseError(m)
			}
			game.PlayerCount = uint32(v)
			n = m
		case num == fieldGameInProgress && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(msg)
			if m < 0 {
				return GameSummary{}, protowire.ParseError(m)
			}
			game.InProgress = protowire.DecodeBool(v)
			n = m
		default:
			m := protowire.ConsumeFieldValue(num, typ, msg)
			if m < 0 {
				return GameSummary{}, protowire.ParseError(m)
			}
			n = m
		}

		msg = msg[n:]
	}

	if rawId == nil {
		return GameSummary{}, &errors.MissingFieldError{
			MessageName: "GameSummary",
			FieldName:   "Id",
		}
	}
	id, err := parseId("GameSummary", rawId)
	if err != nil {
		return GameSummary{}, err
	}
	game.Id = id

	return game, nil
}
