package broadcast

import (
	"context"
	"sync"
)

// Local fans signals out to subscribers inside one process.  Each
// subscriber has a small buffer; when it is full the signal is dropped
// for that subscriber, which is acceptable because receivers reload
// state rather than replay signals.
type Local struct {
	mu     sync.Mutex
	subs   map[chan Signal]struct{}
	buffer int
}

// NewLocal constructs an in-process broadcaster.
func NewLocal() *Local {
	return &Local{subs: make(map[chan Signal]struct{}), buffer: 8}
}

// Publish delivers s to every subscriber without blocking.
func (l *Local) Publish(_ context.Context, s Signal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ch := range l.subs {
		select {
		case ch <- s:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber until ctx is done.
func (l *Local) Subscribe(ctx context.Context) (<-chan Signal, error) {
	ch := make(chan Signal, l.buffer)
	l.mu.Lock()
	l.subs[ch] = struct{}{}
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		delete(l.subs, ch)
		close(ch)
		l.mu.Unlock()
	}()
	return ch, nil
}

// Subscribers reports the current number of subscribers.
func (l *Local) Subscribers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}
