// Chess lobby server: accepts player connections and answers lobby requests
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sessamekesh/chessnet/internal/lobby"
	"github.com/sessamekesh/chessnet/internal/loop"
	"github.com/sessamekesh/chessnet/internal/monitor"
	"github.com/sessamekesh/chessnet/pkg/message"
	"github.com/sessamekesh/chessnet/pkg/proxy"
	"github.com/sessamekesh/chessnet/pkg/transport"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type chessServer = transport.Server[message.ClientMessage, message.ServerMessage]

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
	address := flag.String("address", defaultAddress, "Address the game server listens on")
	tps := flag.Float64("tps", 10, "Server loop ticks per second")
	idleTimeout := flag.Duration("idle-timeout", 30*time.Second, "Drop clients silent for this long (0 disables)")
	maxConnections := flag.Int("max-connections", 256, "Maximum simultaneous players (0 is unlimited)")

	monitorAddress := flag.String("monitor-address", os.Getenv("CHESSNET_MONITOR_ADDRESS"), "Address for the WebSocket stats feed, empty disables it")
	monitorEndpoint := flag.String("monitor-endpoint", monitor.DefaultListenEndpoint, "HTTP endpoint that serves the stats feed")
	flag.Parse()

	shutdownCtx, shutdownRelease := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer shutdownRelease()

	clientConfig := proxy.DefaultServerConfig()
	clientConfig.Logger = logger

	server, err := transport.CreateServer(transport.ServerParams[message.ClientMessage, message.ServerMessage]{
		ListenAddress:   *address,
		ClientConfig:    clientConfig,
		ReadSerializer:  message.ClientMessageSerializer{},
		WriteSerializer: message.ServerMessageSerializer{},
		IdleTimeout:     *idleTimeout,
		MaxConnections:  *maxConnections,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("Failed to start server", zap.Error(err))
		return
	}
	defer server.Close()

	wg := sync.WaitGroup{}

	var statsFeed *monitor.Monitor
	if *monitorAddress != "" {
		statsFeed = monitor.CreateMonitor(monitor.MonitorParams{
			ListenAddress:  *monitorAddress,
			ListenEndpoint: *monitorEndpoint,
			AllowAllHosts:  true,
			Logger:         logger,
		})

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := statsFeed.Start(shutdownCtx); err != nil {
				logger.Error("Monitor stopped unexpectedly", zap.Error(err))
			}
		}()
	}

	runLoop(shutdownCtx, server, statsFeed, *tps, logger)

	wg.Wait()
	logger.Info("Successfully shutdown chess server")
}

func runLoop(ctx context.Context, server *chessServer, statsFeed *monitor.Monitor, tps float64, logger *zap.Logger) {
	limiter := rate.NewLimiter(rate.Limit(tps), 1)
	health := loop.CreateLoopHealth("server", tps, logger)
	lobbyMgr := lobby.CreateLobby(logger)

	start := time.Now()
	lastPublish := time.Time{}
	logger.Info("Starting server loop", zap.Float64("tps", tps))

	for {
		if err := limiter.Wait(ctx); err != nil {
			break
		}

		now := time.Now()
		health.Check(now)

		server.Update()

		clients := server.Clients()
		players := make([]lobby.Player, 0, len(clients))
		for _, client := range clients {
			players = append(players, client)
		}
		lobbyMgr.Update(players, now)

		if statsFeed != nil && now.Sub(lastPublish) >= monitor.DefaultInterval {
			statsFeed.Publish(statsFrame(server, now))
			lastPublish = now
		}
	}

	logger.Info("Stopping server loop",
		zap.Duration("uptime", time.Since(start)),
		zap.Uint64("ticks", health.Ticks()),
		zap.Uint64("lateTicks", health.LateTicks()))
}

func statsFrame(server *chessServer, now time.Time) monitor.StatsFrame {
	frame := monitor.StatsFrame{Timestamp: now}
	for _, client := range server.Clients() {
		stats := client.Stats()
		frame.Connections = append(frame.Connections, monitor.ConnectionStats{
			Id:            client.Id().String(),
			RemoteAddr:    client.RemoteAddr(),
			Connected:     client.IsConnected(),
			Rtt:           stats.GetRtt(),
			TotalSent:     stats.Bps.TotalSent,
			TotalReceived: stats.Bps.TotalReceived,
			BpsSent:       stats.Bps.BpsSentLast10Sec(),
			BpsReceived:   stats.Bps.BpsReceivedLast10Sec(),
		})
	}
	return frame
}
