package transport

import (
	goerrs "errors"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sessamekesh/chessnet/internal/store"
	"github.com/sessamekesh/chessnet/pkg/proxy"
	"github.com/sessamekesh/chessnet/pkg/wire"
	"go.uber.org/zap"
)

const DefaultAcceptPollTimeout = time.Millisecond

type ServerParams[R, W any] struct {
	ListenAddress string

	// Applied to the proxy of every accepted connection
	ClientConfig proxy.ProxyConfig

	ReadSerializer  wire.MessageSerializer[R]
	WriteSerializer wire.MessageSerializer[W]

	// How long Update may block waiting for a new connection
	AcceptPollTimeout time.Duration
	// Clients silent for longer than this are dropped. Zero disables the check.
	IdleTimeout time.Duration
	// Zero means unlimited
	MaxConnections int

	Logger *zap.Logger
}

// Server owns a TCP listener and one Client per accepted connection. Like
// Client, it is driven entirely by Update calls from the owner's loop.
type Server[R wire.Message[R], W wire.Message[W]] struct {
	params   ServerParams[R, W]
	listener *net.TCPListener

	clients []*Client[R, W]
	store   *store.ClientStore

	log *zap.Logger
}

func CreateServer[R wire.Message[R], W wire.Message[W]](params ServerParams[R, W]) (*Server[R, W], error) {
	if params.Logger == nil {
		params.Logger = zap.Must(zap.NewDevelopment())
	}
	if params.ListenAddress == "" {
		params.ListenAddress = proxy.DefaultAddress
	}
	if params.AcceptPollTimeout <= 0 {
		params.AcceptPollTimeout = DefaultAcceptPollTimeout
	}
	if params.ClientConfig.Logger == nil {
		params.ClientConfig.Logger = params.Logger
	}

	addr, err := net.ResolveTCPAddr("tcp", params.ListenAddress)
	if err != nil {
		return nil, err
	}

	listener, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, err
	}

	log := params.Logger.With(zap.String("handler", "Server"), zap.String("addr", listener.Addr().String()))
	log.Info("Listening for connections")

	return &Server[R, W]{
		params:   params,
		listener: listener,
		clients:  []*Client[R, W]{},
		store:    store.CreateClientStore(params.MaxConnections),
		log:      log,
	}, nil
}

// Update accepts at most one pending connection, then updates every client
// and drops the ones whose connection is gone.
func (s *Server[R, W]) Update() {
	s.acceptOne()

	now := time.Now()
	kept := s.clients[:0]
	for _, client := range s.clients {
		if err := client.Update(); err != nil {
			s.log.Info("Dropping client", zap.String("clientId", client.Id().String()), zap.Error(err))
			s.dropClient(client)
			continue
		}

		if !client.LastReceiveTime().IsZero() {
			s.store.SetClientRecvTimestamp(client.Id(), client.LastReceiveTime())
		}
		kept = append(kept, client)
	}
	for i := len(kept); i < len(s.clients); i++ {
		s.clients[i] = nil
	}
	s.clients = kept

	if s.params.IdleTimeout > 0 {
		s.pruneIdle(now)
	}
}

func (s *Server[R, W]) acceptOne() {
	if err := s.listener.SetDeadline(time.Now().Add(s.params.AcceptPollTimeout)); err != nil {
		s.log.Error("Could not set accept deadline", zap.Error(err))
		return
	}

	conn, err := s.listener.Accept()
	if err != nil {
		if goerrs.Is(err, os.ErrDeadlineExceeded) || goerrs.Is(err, net.ErrClosed) {
			return
		}
		s.log.Warn("Accept failed", zap.Error(err))
		return
	}

	if !s.store.HasCapacity() {
		s.log.Warn("Refusing connection, server is full", zap.String("remoteAddr", conn.RemoteAddr().String()))
		conn.Close()
		return
	}

	client, err := AcceptClient(conn, ClientParams[R, W]{
		Config:          s.params.ClientConfig,
		ReadSerializer:  s.params.ReadSerializer,
		WriteSerializer: s.params.WriteSerializer,
	})
	if err != nil {
		s.log.Error("Could not start client proxy", zap.Error(err))
		conn.Close()
		return
	}

	if err := s.store.CreateClient(client.Id(), client.RemoteAddr(), time.Now()); err != nil {
		s.log.Warn("Could not register client", zap.Error(err))
		client.Close()
		return
	}

	s.clients = append(s.clients, client)
	s.log.Info("Accepted client", zap.String("clientId", client.Id().String()), zap.String("remoteAddr", client.RemoteAddr()))
}

func (s *Server[R, W]) pruneIdle(now time.Time) {
	idle := s.store.GetTimeoutClientList(now.Add(-s.params.IdleTimeout))
	if len(idle) == 0 {
		return
	}

	for _, id := range idle {
		for i, client := range s.clients {
			if client.Id() != id {
				continue
			}
			s.log.Info("Dropping idle client", zap.String("clientId", id.String()))
			s.dropClient(client)
			s.clients = append(s.clients[:i], s.clients[i+1:]...)
			break
		}
	}
}

func (s *Server[R, W]) dropClient(client *Client[R, W]) {
	client.Close()
	s.store.RemoveClient(client.Id())
}

func (s *Server[R, W]) Clients() []*Client[R, W] {
	return s.clients
}

func (s *Server[R, W]) ClientCount() int {
	return len(s.clients)
}

func (s *Server[R, W]) Client(id uuid.UUID) *Client[R, W] {
	for _, client := range s.clients {
		if client.Id() == id {
			return client
		}
	}
	return nil
}

// Broadcast queues msg on every client, returning how many queues accepted it.
func (s *Server[R, W]) Broadcast(msg W) int {
	sent := 0
	for _, client := range s.clients {
		if err := client.Send(msg); err != nil {
			s.log.Warn("Broadcast skipped client", zap.String("clientId", client.Id().String()), zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

// Store exposes connection bookkeeping for read-only consumers such as the monitor.
func (s *Server[R, W]) Store() *store.ClientStore {
	return s.store
}

func (s *Server[R, W]) Addr() net.Addr {
	return s.listener.Addr()
}

// Close stops accepting and shuts every client down.
func (s *Server[R, W]) Close() error {
	err := s.listener.Close()
	for _, client := range s.clients {
		s.dropClient(client)
	}
	s.clients = nil
	s.log.Info("Server closed")
	return err
}
