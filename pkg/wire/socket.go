package wire

import (
	"bufio"
	goerrs "errors"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/sessamekesh/chessnet/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultReadPollTimeout = 500 * time.Microsecond
	DefaultWriteTimeout    = 5 * time.Second
	DefaultMaxMessageSize  = 1 << 20
)

type SocketParams[R, W any] struct {
	ReadSerializer  MessageSerializer[R]
	WriteSerializer MessageSerializer[W]

	// How long a single poll may wait for bytes before reporting ErrWouldBlock
	ReadPollTimeout time.Duration
	// Zero disables the write deadline
	WriteTimeout   time.Duration
	MaxMessageSize int

	Logger *zap.Logger
}

// Socket is a packet-oriented wrapper around a stream connection. It reads
// R values and writes W values, each framed as [Header][Payload].
//
// A Socket is not safe for concurrent use; it is owned by exactly one Proxy.
// Interrupt is the exception and may be called from any goroutine.
type Socket[R, W any] struct {
	conn   net.Conn
	reader *bufio.Reader
	params SocketParams[R, W]
	log    *zap.Logger

	interrupted atomic.Bool

	// Header already consumed from the stream whose payload has not fully arrived
	pendingHeader *Header
}

func CreateSocket[R, W any](conn net.Conn, params SocketParams[R, W]) *Socket[R, W] {
	logger := params.Logger
	if logger == nil {
		logger = zap.Must(zap.NewDevelopment())
	}
	if params.ReadPollTimeout <= 0 {
		params.ReadPollTimeout = DefaultReadPollTimeout
	}
	if params.MaxMessageSize <= 0 {
		params.MaxMessageSize = DefaultMaxMessageSize
	}

	return &Socket[R, W]{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, params.MaxMessageSize+HeaderSize),
		params: params,
		log:    logger.With(zap.String("remoteAddr", conn.RemoteAddr().String())),
	}
}

func (s *Socket[R, W]) Send(msg W) (Header, error) {
	payload, err := s.params.WriteSerializer.SerializeMessage(msg)
	if err != nil {
		return Header{}, &errors.SerializationError{MessageName: "Payload", Err: err}
	}

	header := Header{Size: uint64(len(payload))}
	rawHeader, err := SerializeHeader(header)
	if err != nil {
		return Header{}, &errors.SerializationError{MessageName: "Header", Err: err}
	}

	if s.params.WriteTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.params.WriteTimeout)); err != nil {
			return Header{}, &errors.StreamWriteError{Err: err}
		}
	}
	// Checked after arming the deadline so a concurrent Interrupt cannot be overwritten
	if s.interrupted.Load() {
		return Header{}, &errors.StreamWriteError{Err: os.ErrDeadlineExceeded}
	}

	if _, err := s.conn.Write(rawHeader); err != nil {
		return Header{}, &errors.StreamWriteError{Err: err}
	}
	if _, err := s.conn.Write(payload); err != nil {
		return Header{}, &errors.StreamWriteError{Err: err}
	}

	s.log.Debug("Sent message", zap.Uint64("size", header.Size))
	return header, nil
}

// TryReceive never waits longer than ReadPollTimeout. It returns
// errors.ErrWouldBlock until a complete message is buffered; the pending
// header survives across calls so a later call resumes where this one stopped.
func (s *Socket[R, W]) TryReceive() (R, Header, error) {
	var zero R

	if s.pendingHeader == nil {
		rawHeader, err := s.peek(HeaderSize)
		if err != nil {
			return zero, Header{}, err
		}

		header, err := ParseHeader(rawHeader)
		if _, discardErr := s.reader.Discard(HeaderSize); discardErr != nil {
			return zero, Header{}, &errors.StreamReadError{Err: discardErr}
		}
		if err != nil {
			return zero, Header{}, &errors.DeserializationError{MessageName: "Header", Err: err}
		}

		if header.Size > uint64(s.params.MaxMessageSize) {
			return zero, Header{}, &errors.DeserializationError{
				MessageName: "Header",
				Err: &errors.MessageTooLarge{
					DeclaredSize: header.Size,
					MaximumSize:  s.params.MaxMessageSize,
				},
			}
		}

		s.pendingHeader = &header
	}

	header := *s.pendingHeader
	rawPayload, err := s.peek(int(header.Size))
	if err != nil {
		return zero, Header{}, err
	}

	// Peeked bytes alias the read buffer
	payload := append([]byte(nil), rawPayload...)
	if _, err := s.reader.Discard(len(payload)); err != nil {
		return zero, Header{}, &errors.StreamReadError{Err: err}
	}
	s.pendingHeader = nil

	msg, err := s.params.ReadSerializer.Parse(payload)
	if err != nil {
		return zero, Header{}, &errors.DeserializationError{MessageName: "Payload", Err: err}
	}

	return msg, header, nil
}

func (s *Socket[R, W]) HasPendingHeader() bool {
	return s.pendingHeader != nil
}

func (s *Socket[R, W]) peek(n int) ([]byte, error) {
	if s.reader.Buffered() < n {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.params.ReadPollTimeout)); err != nil {
			return nil, &errors.StreamReadError{Err: err}
		}
	}
	if s.interrupted.Load() {
		return nil, &errors.StreamReadError{Err: os.ErrDeadlineExceeded}
	}

	raw, err := s.reader.Peek(n)
	if err != nil {
		if goerrs.Is(err, os.ErrDeadlineExceeded) {
			if buffered := s.reader.Buffered(); buffered > 0 {
				s.log.Debug("Waiting for more bytes", zap.Int("buffered", buffered), zap.Int("wanted", n))
			}
			return nil, errors.ErrWouldBlock
		}
		return nil, &errors.StreamReadError{Err: err}
	}

	return raw, nil
}

// Interrupt fails any blocked or future Send and TryReceive promptly. The
// connection stays open; Shutdown still has to be called.
func (s *Socket[R, W]) Interrupt() {
	s.interrupted.Store(true)
	s.conn.SetDeadline(time.Now())
}

func (s *Socket[R, W]) IsInterrupted() bool {
	return s.interrupted.Load()
}

type halfCloser interface {
	CloseRead() error
	CloseWrite() error
}

// Shutdown closes both directions of the stream, then releases the connection.
func (s *Socket[R, W]) Shutdown() error {
	if hc, ok := s.conn.(halfCloser); ok {
		hc.CloseRead()
		hc.CloseWrite()
	}
	return s.conn.Close()
}

func (s *Socket[R, W]) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *Socket[R, W]) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}
