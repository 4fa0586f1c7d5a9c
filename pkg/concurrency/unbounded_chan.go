package concurrency

import (
	"context"

	"github.com/microsoft/inspectorbridge/pkg/container"
)

// UnboundedChan decouples producers from a slow consumer: sends on In are
// accepted as fast as the pump goroutine can take them, overflow parks in an
// in-memory FIFO, and Out delivers in arrival order. Closing In lets the
// backlog drain and then closes Out; cancelling ctx stops the pump
// immediately, discarding whatever is still queued, and also closes Out.
//
// Safe for concurrent producers and consumers.
type UnboundedChan[T any] struct {
	In  chan<- T
	Out <-chan T
}

func NewUnboundedChan[T any](ctx context.Context) *UnboundedChan[T] {
	in := make(chan T)
	out := make(chan T)
	go pump(ctx, in, out)
	return &UnboundedChan[T]{In: in, Out: out}
}

func pump[T any](ctx context.Context, in chan T, out chan T) {
	defer close(out)

	backlog := container.NewRingBuffer[T]()

	for {
		// With an empty backlog there is nothing to send, so the send case
		// is disabled via a nil channel. A closed input is likewise disabled
		// (receiving from nil blocks forever) so only drain progress remains.
		var (
			sendCh chan T
			next   T
		)
		if head, ok := backlog.Peek(); ok {
			sendCh = out
			next = head
		} else if in == nil {
			return
		}

		select {
		case <-ctx.Done():
			return

		case v, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			backlog.Push(v)

		case sendCh <- next:
			backlog.Pop()
		}
	}
}
