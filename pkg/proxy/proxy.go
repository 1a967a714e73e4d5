package proxy

import (
	"context"
	goerrs "errors"
	"net"
	"sync"
	"time"

	"github.com/sessamekesh/chessnet/pkg/errors"
	"github.com/sessamekesh/chessnet/pkg/stats"
	"github.com/sessamekesh/chessnet/pkg/wire"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var errOwnerGone = goerrs.New("proxy owner has hung up")

type MissingConnectionError struct{}

func (e *MissingConnectionError) Error() string {
	return "Proxy needs either an established connection or a dial function"
}

type ProxyParams[R, W any] struct {
	Config ProxyConfig

	ReadSerializer  wire.MessageSerializer[R]
	WriteSerializer wire.MessageSerializer[W]

	// Worker half of the ChannelPair: receives outgoing W, sends ProxyMessage[R]
	Channel *Channel[W, ProxyMessage[R]]
	Flags   *ConnectionFlags
	Stats   *stats.Cell

	// Already established connection (server side)
	Conn net.Conn
	// Dials Config.Address (client side). When set, the worker connects lazily
	// and may reconnect.
	Dial func(ctx context.Context) (net.Conn, error)
}

// Proxy owns one socket and bridges it to a Channel at a fixed tick rate.
type Proxy[R wire.Message[R], W wire.Message[W]] struct {
	config ProxyConfig
	params ProxyParams[R, W]

	// Written only by the worker; the lock lets interrupt read it from another goroutine
	mut_socket sync.Mutex
	socket     *wire.Socket[R, W]

	channel *Channel[W, ProxyMessage[R]]
	flags   *ConnectionFlags
	limiter *rate.Limiter

	stats     stats.NetworkStats
	statsCell *stats.Cell

	// Messages whose send failed, retried after a reconnect
	unsent []W

	exitOnce sync.Once
	log      *zap.Logger
}

func CreateProxy[R wire.Message[R], W wire.Message[W]](params ProxyParams[R, W]) (*Proxy[R, W], error) {
	if params.Conn == nil && params.Dial == nil {
		return nil, &MissingConnectionError{}
	}

	config := params.Config.withDefaults()
	statsCell := params.Stats
	if statsCell == nil {
		statsCell = stats.CreateCell()
	}

	remoteAddr := config.Address
	if params.Conn != nil {
		remoteAddr = params.Conn.RemoteAddr().String()
	}

	p := &Proxy[R, W]{
		config:    config,
		params:    params,
		channel:   params.Channel,
		flags:     params.Flags,
		limiter:   rate.NewLimiter(rate.Limit(config.TickRate), 1),
		statsCell: statsCell,
		log:       config.Logger.With(zap.String("handler", "Proxy"), zap.String("remoteAddr", remoteAddr)),
	}

	if params.Conn != nil {
		p.attach(params.Conn)
	}

	return p, nil
}

func (p *Proxy[R, W]) attach(conn net.Conn) {
	p.setSocket(wire.CreateSocket(conn, wire.SocketParams[R, W]{
		ReadSerializer:  p.params.ReadSerializer,
		WriteSerializer: p.params.WriteSerializer,
		ReadPollTimeout: p.config.ReadPollTimeout,
		WriteTimeout:    p.config.WriteTimeout,
		MaxMessageSize:  p.config.MaxMessageSize,
		Logger:          p.log,
	}))
	p.stats.Rtt.Reset()
	p.flags.setConnected(true)
}

func (p *Proxy[R, W]) setSocket(socket *wire.Socket[R, W]) {
	p.mut_socket.Lock()
	defer p.mut_socket.Unlock()
	p.socket = socket
}

// interrupt unblocks any read or write in progress so a cancelled worker
// exits without waiting out WriteTimeout.
func (p *Proxy[R, W]) interrupt() {
	p.mut_socket.Lock()
	defer p.mut_socket.Unlock()
	if p.socket != nil {
		p.socket.Interrupt()
	}
}

func (p *Proxy[R, W]) stopRequested(ctx context.Context) bool {
	return ctx.Err() != nil || !p.flags.IsRunning()
}

func (p *Proxy[R, W]) canReconnect(err error) bool {
	return p.config.AutoReconnect && p.params.Dial != nil && wire.IsConnectionLoss(err)
}

// Run blocks until the proxy stops: the owner cleared the running flag,
// cancelled ctx or hung up, or the connection failed for good.
func (p *Proxy[R, W]) Run(ctx context.Context) {
	var exitErr error
	defer func() {
		p.shutdown(exitErr)
	}()

	stopInterrupt := context.AfterFunc(ctx, p.interrupt)
	defer stopInterrupt()

	if p.socket == nil {
		if err := p.connect(ctx); err != nil {
			if !p.config.AutoReconnect {
				p.log.Warn("Could not connect", zap.Error(err))
				exitErr = &errors.ConnectionLostError{RemoteAddr: p.config.Address, Reason: err}
				return
			}
			if err := p.reconnect(ctx, err); err != nil {
				exitErr = err
				return
			}
		}
	}

	p.log.Debug("Proxy running", zap.Float64("tickRate", p.config.TickRate))

	for p.flags.IsRunning() {
		if err := p.limiter.Wait(ctx); err != nil {
			p.log.Debug("Proxy context done", zap.Error(err))
			return
		}

		err := p.tick(ctx, time.Now())
		if err == nil {
			continue
		}

		if goerrs.Is(err, errOwnerGone) {
			p.log.Debug("Proxy owner hung up, stopping")
			return
		}
		if p.stopRequested(ctx) {
			p.log.Debug("Proxy stopped during I/O", zap.Error(err))
			return
		}

		if p.canReconnect(err) {
			p.log.Warn("Connection lost, reconnecting", zap.Error(err))
			if rerr := p.reconnect(ctx, err); rerr != nil {
				exitErr = rerr
				return
			}
			continue
		}

		p.logTerminalError(err)
		exitErr = err
		return
	}
}

func (p *Proxy[R, W]) logTerminalError(err error) {
	switch {
	case wire.IsConnectionLoss(err):
		p.log.Warn("Peer disconnected", zap.Error(err))
	case wire.IsFramingError(err):
		p.log.Error("Framing error, connection state cannot be trusted", zap.Error(err))
	default:
		p.log.Error("Unexpected I/O error, aborting", zap.Error(err))
	}
}

func (p *Proxy[R, W]) tick(ctx context.Context, now time.Time) error {
	p.stats.Update(now)
	defer p.statsCell.Publish(&p.stats)

	if err := p.flushOutgoing(now); err != nil {
		return err
	}

	if err := p.pollIncoming(ctx, now); err != nil {
		return err
	}

	if p.config.Stats.RttEnabled && p.stats.Rtt.NeedsPing(now, p.config.Stats.PingInterval) {
		var zero W
		if p.stats.Rtt.PingOutstanding() {
			p.log.Debug("Abandoning unanswered ping")
			p.stats.Rtt.Reset()
		}
		if err := p.send(zero.Ping(), now); err != nil {
			return err
		}
	}

	return nil
}

func (p *Proxy[R, W]) flushOutgoing(now time.Time) error {
	for len(p.unsent) > 0 {
		if err := p.send(p.unsent[0], now); err != nil {
			return err
		}
		p.unsent = p.unsent[1:]
	}

	for {
		msg, ok, err := p.channel.TryRecv()
		if err != nil {
			return errOwnerGone
		}
		if !ok {
			return nil
		}

		if err := p.send(msg, now); err != nil {
			if p.config.KeepMessagesOnDisconnect {
				p.unsent = append(p.unsent, msg)
			}
			return err
		}
	}
}

func (p *Proxy[R, W]) pollIncoming(ctx context.Context, now time.Time) error {
	for i := 0; i < p.config.MaxReceivesPerTick; i++ {
		msg, header, err := p.socket.TryReceive()
		if wire.IsWouldBlock(err) {
			return nil
		}
		if err != nil {
			return err
		}

		if p.config.Stats.BytesEnabled {
			p.stats.Bps.OnBytesReceived(now, header.Size)
		}
		if p.config.Stats.RttEnabled && msg.IsPong() {
			p.stats.Rtt.OnPongReceived(now)
		}
		if msg.IsPing() {
			var zero W
			if err := p.send(zero.Pong(), now); err != nil {
				return err
			}
		}

		if err := p.channel.SendWait(ctx, forward(msg)); err != nil {
			return errOwnerGone
		}
	}

	return nil
}

func (p *Proxy[R, W]) send(msg W, now time.Time) error {
	header, err := p.socket.Send(msg)
	if err != nil {
		return err
	}

	if p.config.Stats.BytesEnabled {
		p.stats.Bps.OnBytesSent(now, header.Size)
	}
	if p.config.Stats.RttEnabled && msg.IsPing() && !p.stats.Rtt.PingOutstanding() {
		p.stats.Rtt.OnPingSent(now)
	}
	return nil
}

func (p *Proxy[R, W]) connect(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, p.config.DialTimeout)
	defer cancel()

	conn, err := p.params.Dial(dialCtx)
	if err != nil {
		return err
	}

	p.attach(conn)
	p.log.Info("Connected", zap.String("localAddr", conn.LocalAddr().String()))
	return nil
}

func (p *Proxy[R, W]) reconnect(ctx context.Context, cause error) error {
	p.flags.setConnected(false)

	// A first dial that failed has no connection to report as reset
	if p.socket != nil {
		p.socket.Shutdown()
		p.setSocket(nil)

		if err := p.channel.SendWait(ctx, connectionReset[R](cause)); err != nil {
			return errOwnerGone
		}
	}

	if !p.config.KeepMessagesOnDisconnect {
		dropped := p.channel.Discard() + len(p.unsent)
		p.unsent = nil
		if dropped > 0 {
			p.log.Info("Dropped queued messages after disconnect", zap.Int("count", dropped))
		}
	}

	lastErr := cause
	for attempt := 1; attempt <= p.config.ReconnectAttempts && p.flags.IsRunning(); attempt++ {
		select {
		case <-ctx.Done():
			return errOwnerGone
		case <-time.After(p.config.ReconnectDelay):
		}

		if err := p.connect(ctx); err != nil {
			p.log.Warn("Reconnect attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			lastErr = err
			continue
		}
		return nil
	}

	if !p.flags.IsRunning() {
		return errOwnerGone
	}

	p.log.Warn("Giving up on reconnecting", zap.Error(lastErr))
	return &errors.ConnectionLostError{RemoteAddr: p.config.Address, Reason: lastErr}
}

func (p *Proxy[R, W]) shutdown(exitErr error) {
	if goerrs.Is(exitErr, errOwnerGone) {
		exitErr = nil
	}

	if p.socket != nil {
		p.socket.Shutdown()
	}
	p.flags.setConnected(false)
	p.flags.Stop()
	p.statsCell.Publish(&p.stats)

	p.exitOnce.Do(func() {
		// Only returns early if the owner hung up, in which case nobody is listening anyway
		p.channel.SendWait(context.Background(), exit[R](exitErr))
	})
	p.channel.Close()

	p.log.Debug("Proxy has exited", zap.Error(exitErr))
}
