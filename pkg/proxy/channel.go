package proxy

import (
	"context"
	"sync"

	"github.com/sessamekesh/chessnet/pkg/errors"
)

type hangup struct {
	once sync.Once
	done chan struct{}
}

func (h *hangup) close() {
	h.once.Do(func() {
		close(h.done)
	})
}

// Channel is one half of a ChannelPair: it receives R values sent by the
// other half and sends W values to it. The underlying Go channels are never
// closed; each half signals hang-up separately so neither side can panic by
// sending to a closed channel.
type Channel[R, W any] struct {
	name string

	recv <-chan R
	send chan<- W

	sendCapacity int

	local  *hangup
	remote *hangup
}

// CreateChannelPair builds two linked halves. The first half receives A and
// sends B, the second receives B and sends A.
func CreateChannelPair[A, B any](name string, bufferLength int) (*Channel[A, B], *Channel[B, A]) {
	aMessages := make(chan A, bufferLength)
	bMessages := make(chan B, bufferLength)

	first := &hangup{done: make(chan struct{})}
	second := &hangup{done: make(chan struct{})}

	return &Channel[A, B]{
			name:         name,
			recv:         aMessages,
			send:         bMessages,
			sendCapacity: bufferLength,
			local:        first,
			remote:       second,
		}, &Channel[B, A]{
			name:         name,
			recv:         bMessages,
			send:         aMessages,
			sendCapacity: bufferLength,
			local:        second,
			remote:       first,
		}
}

// Send enqueues without blocking.
func (c *Channel[R, W]) Send(msg W) error {
	if c.RemoteClosed() {
		return &errors.ChannelClosedError{Context: c.name}
	}

	select {
	case c.send <- msg:
		return nil
	default:
		return &errors.ChannelFullError{Context: c.name, Capacity: c.sendCapacity}
	}
}

// SendWait blocks until the message is enqueued, the other half hangs up, or
// ctx is done.
func (c *Channel[R, W]) SendWait(ctx context.Context, msg W) error {
	if c.RemoteClosed() {
		return &errors.ChannelClosedError{Context: c.name}
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.remote.done:
		return &errors.ChannelClosedError{Context: c.name}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryRecv returns ok=false when nothing is queued. Messages queued before the
// other half hung up are still delivered; only afterwards does it report
// ChannelClosedError.
func (c *Channel[R, W]) TryRecv() (msg R, ok bool, err error) {
	select {
	case msg = <-c.recv:
		return msg, true, nil
	default:
	}

	if c.RemoteClosed() {
		return msg, false, &errors.ChannelClosedError{Context: c.name}
	}
	return msg, false, nil
}

// Discard drops everything currently queued for this half.
func (c *Channel[R, W]) Discard() int {
	dropped := 0
	for {
		select {
		case <-c.recv:
			dropped++
		default:
			return dropped
		}
	}
}

func (c *Channel[R, W]) Len() int {
	return len(c.recv)
}

func (c *Channel[R, W]) Close() {
	c.local.close()
}

func (c *Channel[R, W]) RemoteClosed() bool {
	select {
	case <-c.remote.done:
		return true
	default:
		return false
	}
}
