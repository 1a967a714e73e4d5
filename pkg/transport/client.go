package transport

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/sessamekesh/chessnet/pkg/errors"
	"github.com/sessamekesh/chessnet/pkg/proxy"
	"github.com/sessamekesh/chessnet/pkg/stats"
	"github.com/sessamekesh/chessnet/pkg/wire"
	"go.uber.org/zap"
)

type ClientParams[R, W any] struct {
	Config proxy.ProxyConfig

	ReadSerializer  wire.MessageSerializer[R]
	WriteSerializer wire.MessageSerializer[W]

	// Random when unset
	Id uuid.UUID
}

// Client is the owner-side handle of one Proxy worker. It is used both by a
// player's client (dialing the server) and by the server for every accepted
// connection. All methods except Close are non-blocking and must be called
// from the owner's goroutine.
type Client[R wire.Message[R], W wire.Message[W]] struct {
	id         uuid.UUID
	remoteAddr string

	channel *proxy.Channel[proxy.ProxyMessage[R], W]
	flags   *proxy.ConnectionFlags
	stats   *stats.Cell

	received        []R
	lastReceiveTime time.Time

	exited  bool
	exitErr error

	cancel context.CancelFunc
	done   chan struct{}

	log *zap.Logger
}

// ConnectClient starts a Proxy that dials params.Config.Address in the
// background. The returned Client reports IsConnected once the dial succeeds.
func ConnectClient[R wire.Message[R], W wire.Message[W]](params ClientParams[R, W]) (*Client[R, W], error) {
	address := params.Config.Address
	if address == "" {
		address = proxy.DefaultAddress
		params.Config.Address = address
	}

	dial := func(ctx context.Context) (net.Conn, error) {
		dialer := net.Dialer{}
		return dialer.DialContext(ctx, "tcp", address)
	}

	return startClient(params, address, nil, dial)
}

// AcceptClient wraps a connection accepted by a listener. It never reconnects.
func AcceptClient[R wire.Message[R], W wire.Message[W]](conn net.Conn, params ClientParams[R, W]) (*Client[R, W], error) {
	params.Config.AutoReconnect = false
	return startClient(params, conn.RemoteAddr().String(), conn, nil)
}

func startClient[R wire.Message[R], W wire.Message[W]](params ClientParams[R, W], remoteAddr string, conn net.Conn, dial func(context.Context) (net.Conn, error)) (*Client[R, W], error) {
	logger := params.Config.Logger
	if logger == nil {
		logger = zap.Must(zap.NewDevelopment())
	}

	id := params.Id
	if id == uuid.Nil {
		id = uuid.New()
	}

	bufferLength := params.Config.ChannelBufferLength
	if bufferLength <= 0 {
		bufferLength = 1024
	}

	ownerHalf, workerHalf := proxy.CreateChannelPair[proxy.ProxyMessage[R], W](remoteAddr, bufferLength)
	flags := proxy.CreateConnectionFlags()
	statsCell := stats.CreateCell()

	log := logger.With(zap.String("clientId", id.String()), zap.String("remoteAddr", remoteAddr))
	config := params.Config
	config.Logger = log

	worker, err := proxy.CreateProxy(proxy.ProxyParams[R, W]{
		Config:          config,
		ReadSerializer:  params.ReadSerializer,
		WriteSerializer: params.WriteSerializer,
		Channel:         workerHalf,
		Flags:           flags,
		Stats:           statsCell,
		Conn:            conn,
		Dial:            dial,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	return &Client[R, W]{
		id:         id,
		remoteAddr: remoteAddr,
		channel:    ownerHalf,
		flags:      flags,
		stats:      statsCell,
		received:   []R{},
		cancel:     cancel,
		done:       done,
		log:        log.With(zap.String("handler", "Client")),
	}, nil
}

// Send queues msg for the worker. A nil error means the message was queued,
// not that the peer received it.
func (c *Client[R, W]) Send(msg W) error {
	return c.channel.Send(msg)
}

// Update drains everything the worker has published since the last call. It
// must be called once per owner tick before reading received messages or
// connection state.
func (c *Client[R, W]) Update() error {
	wasRunning := c.flags.IsRunning()

	for {
		msg, ok, err := c.channel.TryRecv()
		if err != nil {
			c.exited = true
			break
		}
		if !ok {
			break
		}

		switch msg.MessageType {
		case proxy.ProxyMessageType_Forward:
			c.received = append(c.received, msg.Message)
			c.lastReceiveTime = time.Now()
		case proxy.ProxyMessageType_ConnectionReset:
			c.log.Warn("Connection reset, proxy is reconnecting", zap.Error(msg.Err))
		case proxy.ProxyMessageType_Exit:
			c.exited = true
			c.exitErr = msg.Err
			if msg.Err != nil {
				c.log.Warn("Proxy exited", zap.Error(msg.Err))
			} else {
				c.log.Debug("Proxy exited")
			}
		}
	}

	if c.exited {
		return &errors.ConnectionLostError{RemoteAddr: c.remoteAddr, Reason: c.exitErr}
	}
	if !wasRunning {
		return &errors.ProxyStoppedError{RemoteAddr: c.remoteAddr}
	}
	return nil
}

func (c *Client[R, W]) ReceivedMessages() []R {
	return c.received
}

func (c *Client[R, W]) RemoveReceivedMessage(i int) R {
	msg := c.received[i]
	c.received = append(c.received[:i], c.received[i+1:]...)
	return msg
}

// TakeReceivedMessages returns the buffered messages and empties the buffer.
func (c *Client[R, W]) TakeReceivedMessages() []R {
	msgs := c.received
	c.received = []R{}
	return msgs
}

func (c *Client[R, W]) LastReceiveTime() time.Time {
	return c.lastReceiveTime
}

func (c *Client[R, W]) IsConnected() bool {
	return c.flags.IsConnected()
}

func (c *Client[R, W]) IsRunning() bool {
	return c.flags.IsRunning()
}

func (c *Client[R, W]) Stats() stats.NetworkStats {
	return c.stats.Load()
}

func (c *Client[R, W]) Id() uuid.UUID {
	return c.id
}

func (c *Client[R, W]) RemoteAddr() string {
	return c.remoteAddr
}

// Close stops the worker and waits for it to shut the socket down.
func (c *Client[R, W]) Close() {
	c.flags.Stop()
	c.cancel()
	c.channel.Close()
	<-c.done
}
