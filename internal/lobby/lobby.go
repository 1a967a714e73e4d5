package lobby

import (
	"time"

	"github.com/google/uuid"
	"github.com/sessamekesh/chessnet/pkg/message"
	"go.uber.org/zap"
)

const MaxPlayersPerGame = 2

// Player is the lobby's view of one connected client.
type Player interface {
	Id() uuid.UUID
	Send(msg message.ServerMessage) error
	TakeReceivedMessages() []message.ClientMessage
}

type game struct {
	id        uuid.UUID
	players   []uuid.UUID
	createdAt time.Time
}

func (g *game) summary() message.GameSummary {
	return message.GameSummary{
		Id:          g.id,
		PlayerCount: uint32(len(g.players)),
		InProgress:  len(g.players) >= MaxPlayersPerGame,
	}
}

// Lobby answers the pre-game requests of connected players. It runs on the
// server loop and holds no network state of its own.
type Lobby struct {
	games    []*game
	inGameOf map[uuid.UUID]*game

	log *zap.Logger
}

func CreateLobby(logger *zap.Logger) *Lobby {
	if logger == nil {
		logger = zap.Must(zap.NewDevelopment())
	}

	return &Lobby{
		games:    []*game{},
		inGameOf: make(map[uuid.UUID]*game),
		log:      logger.With(zap.String("handler", "Lobby")),
	}
}

// Update handles every message players sent since the last tick. Players
// missing from players are considered gone and leave their games.
func (l *Lobby) Update(players []Player, now time.Time) {
	l.dropMissingPlayers(players)

	for _, player := range players {
		for _, msg := range player.TakeReceivedMessages() {
			l.handleMessage(player, msg, now)
		}
	}
}

func (l *Lobby) handleMessage(player Player, msg message.ClientMessage, now time.Time) {
	log := l.log.With(zap.String("playerId", player.Id().String()))

	var reply message.ServerMessage
	switch msg.MessageType {
	case message.ClientMessageType_Ping, message.ClientMessageType_Pong:
		return
	case message.ClientMessageType_Text:
		log.Debug("Player sent text", zap.String("text", msg.Text))
		return
	case message.ClientMessageType_PlayerIdRequest:
		reply = message.ServerMessage{
			MessageType: message.ServerMessageType_PlayerIdResponse,
			Id:          player.Id(),
		}
	case message.ClientMessageType_GamesRequest:
		log.Debug("Player requested the list of games")
		reply = message.ServerMessage{
			MessageType: message.ServerMessageType_Games,
			Games:       l.Games(),
		}
	case message.ClientMessageType_GameCreateRequest:
		reply = l.createGame(player.Id(), now)
	default:
		log.Warn("Unhandled message type", zap.Stringer("messageType", msg.MessageType))
		return
	}

	if err := player.Send(reply); err != nil {
		log.Error("Failed to send reply", zap.Stringer("messageType", reply.MessageType), zap.Error(err))
	}
}

func (l *Lobby) createGame(playerId uuid.UUID, now time.Time) message.ServerMessage {
	if existing, has := l.inGameOf[playerId]; has {
		return message.ServerMessage{
			MessageType: message.ServerMessageType_GameCreateFail,
			Text:        "already in game " + existing.id.String(),
		}
	}

	g := &game{
		id:        uuid.New(),
		players:   []uuid.UUID{playerId},
		createdAt: now,
	}
	l.games = append(l.games, g)
	l.inGameOf[playerId] = g

	l.log.Info("Created game", zap.String("gameId", g.id.String()), zap.String("playerId", playerId.String()))
	return message.ServerMessage{
		MessageType: message.ServerMessageType_GameCreateSuccess,
		Id:          g.id,
	}
}

func (l *Lobby) dropMissingPlayers(players []Player) {
	present := make(map[uuid.UUID]struct{}, len(players))
	for _, player := range players {
		present[player.Id()] = struct{}{}
	}

	for playerId, g := range l.inGameOf {
		if _, ok := present[playerId]; ok {
			continue
		}

		delete(l.inGameOf, playerId)
		kept := g.players[:0]
		for _, id := range g.players {
			if id != playerId {
				kept = append(kept, id)
			}
		}
		g.players = kept
		l.log.Debug("Player left game", zap.String("playerId", playerId.String()), zap.String("gameId", g.id.String()))
	}

	active := l.games[:0]
	for _, g := range l.games {
		if len(g.players) == 0 {
			l.log.Info("Removing empty game", zap.String("gameId", g.id.String()))
			continue
		}
		active = append(active, g)
	}
	for i := len(active); i < len(l.games); i++ {
		l.games[i] = nil
	}
	l.games = active
}

func (l *Lobby) Games() []message.GameSummary {
	summaries := make([]message.GameSummary, 0, len(l.games))
	for _, g := range l.games {
		summaries = append(summaries, g.summary())
	}
	return summaries
}
