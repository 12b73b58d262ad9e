package session

import "sync"

// inbox is a single-slot mailbox. A frame submitted while another is still
// pending replaces it, so the worker always sees the newest frame.
type inbox struct {
	mu      sync.Mutex
	cond    *sync.Cond
	payload string
	pending bool
	closed  bool
}

func newInbox() *inbox {
	b := &inbox{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// put stores payload. replaced reports whether an unconsumed frame was
// overwritten; ok is false once the inbox is closed.
func (b *inbox) put(payload string) (replaced, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false, false
	}
	replaced = b.pending
	b.payload = payload
	b.pending = true
	b.cond.Signal()
	return replaced, true
}

// take blocks until a frame is pending or the inbox is closed. A closed
// inbox returns ok == false even if a frame was pending.
func (b *inbox) take() (payload string, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for !b.pending && !b.closed {
		b.cond.Wait()
	}
	if b.closed {
		return "", false
	}
	payload = b.payload
	b.payload = ""
	b.pending = false
	return payload, true
}

// close wakes the consumer and rejects further puts.
func (b *inbox) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.payload = ""
	b.pending = false
	b.cond.Broadcast()
}
