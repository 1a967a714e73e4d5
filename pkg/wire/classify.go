package wire

import (
	goerrs "errors"
	"io"
	"net"
	"syscall"

	"github.com/sessamekesh/chessnet/pkg/errors"
)

func IsWouldBlock(err error) bool {
	return goerrs.Is(err, errors.ErrWouldBlock)
}

func IsFramingError(err error) bool {
	var serErr *errors.SerializationError
	var deserErr *errors.DeserializationError
	return goerrs.As(err, &serErr) || goerrs.As(err, &deserErr)
}

// IsConnectionLoss reports whether err means the peer went away (closed,
// reset, unreachable) as opposed to a framing bug or some other I/O failure.
func IsConnectionLoss(err error) bool {
	if err == nil || IsFramingError(err) {
		return false
	}

	return goerrs.Is(err, io.EOF) ||
		goerrs.Is(err, io.ErrUnexpectedEOF) ||
		goerrs.Is(err, io.ErrClosedPipe) ||
		goerrs.Is(err, net.ErrClosed) ||
		goerrs.Is(err, syscall.ECONNRESET) ||
		goerrs.Is(err, syscall.ECONNABORTED) ||
		goerrs.Is(err, syscall.ECONNREFUSED) ||
		goerrs.Is(err, syscall.EPIPE)
}
