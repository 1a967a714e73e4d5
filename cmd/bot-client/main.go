// Headless lobby client used to exercise a running chess server
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sessamekesh/chessnet/internal/loop"
	"github.com/sessamekesh/chessnet/internal/session"
	"github.com/sessamekesh/chessnet/pkg/message"
	"github.com/sessamekesh/chessnet/pkg/proxy"
	"github.com/sessamekesh/chessnet/pkg/transport"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type chessClient = transport.Client[message.ServerMessage, message.ClientMessage]

type botConfig struct {
	tps           float64
	gamesInterval time.Duration
	statsInterval time.Duration
	createGame    bool
}

// bot holds what only exists while a session is connected
type bot struct {
	config botConfig

	playerId *transport.Future[uuid.UUID, message.ServerMessage, message.ClientMessage]
	games    *transport.Future[[]message.GameSummary, message.ServerMessage, message.ClientMessage]

	lastGamesRequest time.Time
	lastStatsLog     time.Time
	createSent       bool

	log *zap.Logger
}

func newBot(config botConfig, logger *zap.Logger) *bot {
	return &bot{
		config: config,
		playerId: transport.CreateFuture(
			message.ClientMessage{MessageType: message.ClientMessageType_PlayerIdRequest},
			func(msg message.ServerMessage) bool {
				return msg.MessageType == message.ServerMessageType_PlayerIdResponse
			},
			func(msg message.ServerMessage) (uuid.UUID, error) {
				if msg.Id == uuid.Nil {
					return uuid.Nil, errors.New("server sent an empty player id")
				}
				return msg.Id, nil
			},
			logger),
		games: transport.CreateFuture(
			message.ClientMessage{MessageType: message.ClientMessageType_GamesRequest},
			func(msg message.ServerMessage) bool {
				return msg.MessageType == message.ServerMessageType_Games
			},
			func(msg message.ServerMessage) ([]message.GameSummary, error) {
				return msg.Games, nil
			},
			logger),
		log: logger.With(zap.String("handler", "Bot")),
	}
}

func (b *bot) update(client *chessClient, now time.Time) {
	b.playerId.Update(client)
	b.games.Update(client)

	if b.playerId.Changed() {
		id, _ := b.playerId.Value()
		b.log.Info("Received player id", zap.String("playerId", id.String()))
	}
	if b.games.Changed() {
		games, _ := b.games.Value()
		b.log.Info("Received game list", zap.Int("count", len(games)))
		for _, game := range games {
			b.log.Debug("Game",
				zap.String("gameId", game.Id.String()),
				zap.Uint32("players", game.PlayerCount),
				zap.Bool("inProgress", game.InProgress))
		}
	}

	if _, ok := b.games.Value(); ok && now.Sub(b.lastGamesRequest) >= b.config.gamesInterval {
		b.games.Request(client)
		b.lastGamesRequest = now
	}

	if b.config.createGame && !b.createSent {
		if _, ok := b.playerId.Value(); ok {
			if err := client.Send(message.ClientMessage{MessageType: message.ClientMessageType_GameCreateRequest}); err == nil {
				b.createSent = true
			}
		}
	}

	for _, msg := range client.TakeReceivedMessages() {
		switch msg.MessageType {
		case message.ServerMessageType_GameCreateSuccess:
			b.log.Info("Created game", zap.String("gameId", msg.Id.String()))
			b.games.Request(client)
		case message.ServerMessageType_GameCreateFail:
			b.log.Warn("Could not create game", zap.String("reason", msg.Text))
		case message.ServerMessageType_Text:
			b.log.Info("Server says", zap.String("text", msg.Text))
		}
	}

	if now.Sub(b.lastStatsLog) >= b.config.statsInterval {
		stats := client.Stats()
		b.log.Info("Network stats",
			zap.Duration("rtt", stats.GetRtt()),
			zap.Uint64("bpsSent", stats.Bps.BpsSentLast10Sec()),
			zap.Uint64("bpsReceived", stats.Bps.BpsReceivedLast10Sec()),
			zap.Uint64("totalSent", stats.Bps.TotalSent),
			zap.Uint64("totalReceived", stats.Bps.TotalReceived))
		b.lastStatsLog = now
	}
}

func main() {
	if dotenvErr := godotenv.Load(); dotenvErr != nil && !os.IsNotExist(dotenvErr) {
		fmt.Printf("Failed to load .env file! %s", dotenvErr.Error())
	}

	logger := zap.Must(zap.NewProduction())
	if os.Getenv("APP_ENV") == "development" {
		logger = zap.Must(zap.NewDevelopment())
	}
	defer logger.Sync()

	//
	// Flags
	defaultAddress := os.Getenv("CHESSNET_ADDRESS")
	if defaultAddress == "" {
		defaultAddress = proxy.DefaultAddress
	}
	address := flag.String("address", defaultAddress, "Address of the chess server")
	tps := flag.Float64("tps", 10, "Client loop ticks per second")
	gamesInterval := flag.Duration("games-interval", 5*time.Second, "How often to refresh the game list")
	statsInterval := flag.Duration("stats-interval", 10*time.Second, "How often to log network stats")
	createGame := flag.Bool("create", false, "Create a game once the player id is known")
	retryDelay := flag.Duration("retry-delay", session.DefaultRetryDelay, "Delay between connection attempts")
	flag.Parse()

	shutdownCtx, shutdownRelease := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer shutdownRelease()

	config := botConfig{
		tps:           *tps,
		gamesInterval: *gamesInterval,
		statsInterval: *statsInterval,
		createGame:    *createGame,
	}

	connect := func() (*chessClient, error) {
		clientConfig := proxy.DefaultClientConfig()
		clientConfig.Address = *address
		clientConfig.Logger = logger
		return transport.ConnectClient(transport.ClientParams[message.ServerMessage, message.ClientMessage]{
			Config:          clientConfig,
			ReadSerializer:  message.ServerMessageSerializer{},
			WriteSerializer: message.ClientMessageSerializer{},
		})
	}

	limiter := rate.NewLimiter(rate.Limit(config.tps), 1)
	health := loop.CreateLoopHealth("bot", config.tps, logger)

	var state session.State[*chessClient] = session.JustLaunched[*chessClient]{}
	var current *bot

	logger.Info("Starting bot loop", zap.String("address", *address))
	for {
		if err := limiter.Wait(shutdownCtx); err != nil {
			break
		}

		now := time.Now()
		health.Check(now)

		next := session.Advance(state, session.Inputs[*chessClient]{
			Now:        now,
			Connect:    connect,
			RetryDelay: *retryDelay,
			Logger:     logger,
		})
		if next.Name() != state.Name() {
			logger.Debug("Session state changed", zap.String("from", state.Name()), zap.String("to", next.Name()))
		}
		state = next

		connected, ok := state.(session.Connected[*chessClient])
		if !ok {
			if _, stillHasClient := session.ClientOf[*chessClient](state); !stillHasClient {
				current = nil
			}
			continue
		}

		if current == nil {
			current = newBot(config, logger)
		}
		current.update(connected.Client, now)
	}

	if client, ok := session.ClientOf[*chessClient](state); ok {
		client.Close()
	}
	logger.Info("Bot stopped", zap.Uint64("lateTicks", health.LateTicks()))
}
