package transport

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/sessamekesh/chessnet/pkg/message"
	"github.com/sessamekesh/chessnet/pkg/proxy"
	"go.uber.org/zap/zaptest"
)

type chessServer = Server[message.ClientMessage, message.ServerMessage]
type chessClient = Client[message.ServerMessage, message.ClientMessage]

// The server's handle on a connected player
type serverSideClient = Client[message.ClientMessage, message.ServerMessage]

func startServer(t *testing.T, idleTimeout time.Duration) *chessServer {
	t.Helper()

	logger := zaptest.NewLogger(t)
	config := proxy.DefaultServerConfig()
	config.Logger = logger

	server, err := CreateServer(ServerParams[message.ClientMessage, message.ServerMessage]{
		ListenAddress:   "127.0.0.1:0",
		ClientConfig:    config,
		ReadSerializer:  message.ClientMessageSerializer{},
		WriteSerializer: message.ServerMessageSerializer{},
		IdleTimeout:     idleTimeout,
		Logger:          logger,
	})
	if err != nil {
		t.Fatalf("CreateServer() error = %v", err)
	}
	t.Cleanup(func() { server.Close() })
	return server
}

func connectClient(t *testing.T, server *chessServer, autoReconnect bool) *chessClient {
	t.Helper()

	config := proxy.DefaultClientConfig()
	config.Address = server.Addr().String()
	config.AutoReconnect = autoReconnect
	config.Stats.PingInterval = 20 * time.Millisecond
	config.Logger = zaptest.NewLogger(t)

	client, err := ConnectClient(ClientParams[message.ServerMessage, message.ClientMessage]{
		Config:          config,
		ReadSerializer:  message.ServerMessageSerializer{},
		WriteSerializer: message.ClientMessageSerializer{},
	})
	if err != nil {
		t.Fatalf("ConnectClient() error = %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

// eventually ticks the server and clients until cond holds.
func eventually(t *testing.T, server *chessServer, clients []*chessClient, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if server != nil {
			server.Update()
		}
		for _, client := range clients {
			client.Update()
		}
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestClientServerExchange(t *testing.T) {
	server := startServer(t, 0)
	client := connectClient(t, server, false)
	clients := []*chessClient{client}

	eventually(t, server, clients, func() bool {
		return server.ClientCount() == 1 && client.IsConnected()
	})

	if err := client.Send(message.NewClientText("e4")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	var remote *serverSideClient
	eventually(t, server, clients, func() bool {
		remote = server.Clients()[0]
		for _, msg := range remote.ReceivedMessages() {
			if msg.MessageType == message.ClientMessageType_Text {
				return true
			}
		}
		return false
	})

	for _, msg := range remote.TakeReceivedMessages() {
		if msg.MessageType == message.ClientMessageType_Text && msg.Text != "e4" {
			t.Errorf("server got %q", msg.Text)
		}
	}

	if sent := server.Broadcast(message.NewServerText("e5")); sent != 1 {
		t.Errorf("Broadcast() reached %d clients", sent)
	}
	eventually(t, server, clients, func() bool {
		for _, msg := range client.ReceivedMessages() {
			if msg.MessageType == message.ServerMessageType_Text {
				return msg.Text == "e5"
			}
		}
		return false
	})

	if server.Client(remote.Id()) != remote {
		t.Errorf("Client(id) lookup failed")
	}
}

func TestClientMeasuresRtt(t *testing.T) {
	server := startServer(t, 0)
	client := connectClient(t, server, false)

	eventually(t, server, []*chessClient{client}, func() bool {
		stats := client.Stats()
		return stats.Rtt.HasRtt()
	})

	stats := client.Stats()
	if stats.Bps.TotalSent == 0 || stats.Bps.TotalReceived == 0 {
		t.Errorf("expected ping traffic to be counted, got %+v", stats.Bps)
	}
}

func TestClientReportsDisconnect(t *testing.T) {
	server := startServer(t, 0)
	client := connectClient(t, server, false)

	eventually(t, server, []*chessClient{client}, func() bool {
		return server.ClientCount() == 1 && client.IsConnected()
	})

	server.Close()

	var updateErr error
	eventually(t, nil, nil, func() bool {
		updateErr = client.Update()
		return updateErr != nil
	})
	if client.IsConnected() || client.IsRunning() {
		t.Errorf("client should be stopped after the server went away")
	}

	if err := client.Update(); err == nil {
		t.Errorf("Update() should keep failing once the proxy has exited")
	}
}

func TestServerDropsDisconnectedClient(t *testing.T) {
	server := startServer(t, 0)
	first := connectClient(t, server, false)
	second := connectClient(t, server, false)
	clients := []*chessClient{first, second}

	eventually(t, server, clients, func() bool {
		return server.ClientCount() == 2 && first.IsConnected() && second.IsConnected()
	})

	// Tag the second connection so its server-side handle can be told apart
	if err := second.Send(message.NewClientText("second")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	var secondRemote *serverSideClient
	eventually(t, server, clients, func() bool {
		for _, remote := range server.Clients() {
			for _, msg := range remote.ReceivedMessages() {
				if msg.MessageType == message.ClientMessageType_Text && msg.Text == "second" {
					secondRemote = remote
					return true
				}
			}
		}
		return false
	})

	first.Close()
	time.Sleep(200 * time.Millisecond)

	server.Update()
	if server.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d after one client left, want 1", server.ClientCount())
	}
	if survivor := server.Clients()[0]; survivor != secondRemote {
		t.Errorf("the wrong client was dropped")
	}
	if !secondRemote.IsConnected() || !second.IsConnected() {
		t.Errorf("remaining client should still be connected")
	}
	if server.Store().Count() != 1 || !server.Store().HasClient(secondRemote.Id()) {
		t.Errorf("store should only track the remaining client")
	}
}

func TestServerDropsIdleClient(t *testing.T) {
	server := startServer(t, 100*time.Millisecond)

	// A raw connection that never sends anything
	conn, err := net.Dial("tcp", server.Addr().String())
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()

	eventually(t, server, nil, func() bool {
		return server.ClientCount() == 1
	})
	eventually(t, server, nil, func() bool {
		return server.ClientCount() == 0
	})
	if server.Store().Count() != 0 {
		t.Errorf("store still tracks %d clients", server.Store().Count())
	}
}

func TestConnectClientWithoutServer(t *testing.T) {
	server := startServer(t, 0)
	addr := server.Addr().String()
	server.Close()

	config := proxy.DefaultClientConfig()
	config.Address = addr
	config.AutoReconnect = false
	config.Logger = zaptest.NewLogger(t)

	client, err := ConnectClient(ClientParams[message.ServerMessage, message.ClientMessage]{
		Config:          config,
		ReadSerializer:  message.ServerMessageSerializer{},
		WriteSerializer: message.ClientMessageSerializer{},
	})
	if err != nil {
		t.Fatalf("ConnectClient() error = %v", err)
	}
	defer client.Close()

	eventually(t, nil, []*chessClient{client}, func() bool {
		return !client.IsRunning()
	})
	if err := client.Update(); err == nil {
		t.Errorf("Update() should fail when the server never answered")
	}
}

func TestCloseDoesNotWaitForStalledWrite(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer ln.Close()

	// The peer connects and never reads
	peer, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("net.Dial() error = %v", err)
	}
	defer peer.Close()

	conn, err := ln.Accept()
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}

	config := proxy.DefaultServerConfig()
	config.WriteTimeout = 30 * time.Second
	config.Logger = zaptest.NewLogger(t)

	client, err := AcceptClient(conn, ClientParams[message.ClientMessage, message.ServerMessage]{
		Config:          config,
		ReadSerializer:  message.ClientMessageSerializer{},
		WriteSerializer: message.ServerMessageSerializer{},
	})
	if err != nil {
		t.Fatalf("AcceptClient() error = %v", err)
	}

	bulk := message.NewServerText(strings.Repeat("x", 900*1024))
	for i := 0; i < 16; i++ {
		if err := client.Send(bulk); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}
	// Let the worker fill the kernel buffers and block inside a write
	time.Sleep(200 * time.Millisecond)

	start := time.Now()
	client.Close()
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Close() took %v with a stalled write in progress", elapsed)
	}
	if client.IsRunning() {
		t.Error("IsRunning() = true after Close()")
	}
}
