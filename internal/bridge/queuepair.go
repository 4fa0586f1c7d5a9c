package bridge

import (
	"sync"

	"github.com/microsoft/inspectorbridge/pkg/container"
)

// queuePair is the single mutex-guarded pair of FIFOs that carry entries
// between the engine thread and the I/O thread, plus the condition variable
// WaitForFrontendEvent blocks on.
//
// The append and swap methods are the only access paths to the buffers; no
// other code may reach into in or out directly.
type queuePair struct {
	mu  sync.Mutex
	cnd *sync.Cond

	in  *container.RingBuffer[incomingEntry]
	out *container.RingBuffer[outgoingEntry]

	// drainGen counts completed engine-side drain passes. waitForActivity
	// watches it alongside queue emptiness: a waiter parked between another
	// goroutine's swap and its dispatch would otherwise miss the activity
	// entirely and never re-examine the session table.
	drainGen uint64
}

func newQueuePair() *queuePair {
	qp := &queuePair{
		in:  container.NewRingBuffer[incomingEntry](),
		out: container.NewRingBuffer[outgoingEntry](),
	}
	qp.cnd = sync.NewCond(&qp.mu)
	return qp
}

// appendIncoming pushes an entry bound for the engine and reports whether the
// queue was empty beforehand. The condition variable is broadcast
// unconditionally so WaitForFrontendEvent wakes on every inbound arrival.
func (qp *queuePair) appendIncoming(e incomingEntry) (wasEmpty bool) {
	qp.mu.Lock()
	defer qp.mu.Unlock()

	wasEmpty = qp.in.Empty()
	qp.in.Push(e)
	qp.cnd.Broadcast()
	return wasEmpty
}

// appendOutgoing pushes an entry bound for the server and reports whether the
// queue was empty beforehand.
func (qp *queuePair) appendOutgoing(e outgoingEntry) (wasEmpty bool) {
	qp.mu.Lock()
	defer qp.mu.Unlock()

	wasEmpty = qp.out.Empty()
	qp.out.Push(e)
	return wasEmpty
}

// swapIncoming moves the entire incoming queue into a fresh thread-local
// drain buffer in O(1), without holding the lock during dispatch.
func (qp *queuePair) swapIncoming() *container.RingBuffer[incomingEntry] {
	qp.mu.Lock()
	defer qp.mu.Unlock()

	drained := qp.in
	qp.in = container.NewRingBuffer[incomingEntry]()
	return drained
}

// swapOutgoing is the outgoing-queue counterpart of swapIncoming.
func (qp *queuePair) swapOutgoing() *container.RingBuffer[outgoingEntry] {
	qp.mu.Lock()
	defer qp.mu.Unlock()

	drained := qp.out
	qp.out = container.NewRingBuffer[outgoingEntry]()
	return drained
}

// waitForActivity blocks on the condition variable until either queue is
// non-empty or a drain pass completes elsewhere. Callers must not hold qp.mu.
func (qp *queuePair) waitForActivity() {
	qp.mu.Lock()
	defer qp.mu.Unlock()

	gen := qp.drainGen
	for qp.in.Empty() && qp.out.Empty() && qp.drainGen == gen {
		qp.cnd.Wait()
	}
}

// notifyDrained records the completion of an engine-side drain pass and wakes
// anything parked in waitForActivity so it can re-check its own conditions.
func (qp *queuePair) notifyDrained() {
	qp.mu.Lock()
	defer qp.mu.Unlock()

	qp.drainGen++
	qp.cnd.Broadcast()
}
