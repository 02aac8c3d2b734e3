package simulation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// TickSource paces the driver. The channel is closed when the source stops.
type TickSource interface {
	Ticks() <-chan time.Time
	Stop()
}

// Pauser is implemented by tick sources that can be suspended.
type Pauser interface {
	Pause()
	Resume()
	Paused() bool
}

// Ticker is a wall-clock tick source that can be paused. Ticks falling due
// while paused are dropped, not queued.
type Ticker struct {
	c      chan time.Time
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
	paused atomic.Bool
	ticker *time.Ticker
}

func NewTicker(d time.Duration) (*Ticker, error) {
	if d <= 0 {
		return nil, ErrInvalidTicker
	}

	t := &Ticker{
		c:      make(chan time.Time),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		ticker: time.NewTicker(d),
	}
	go t.run()
	return t, nil
}

func (t *Ticker) run() {
	defer close(t.done)
	defer close(t.c)

	for {
		select {
		case now := <-t.ticker.C:
			if t.paused.Load() {
				continue
			}
			select {
			case t.c <- now:
			case <-t.stop:
				return
			}
		case <-t.stop:
			return
		}
	}
}

func (t *Ticker) Ticks() <-chan time.Time { return t.c }

func (t *Ticker) Pause()       { t.paused.Store(true) }
func (t *Ticker) Resume()      { t.paused.Store(false) }
func (t *Ticker) Paused() bool { return t.paused.Load() }

// Stop halts the ticker and closes the tick channel. It is safe to call more
// than once.
func (t *Ticker) Stop() {
	t.once.Do(func() {
		close(t.stop)
		t.ticker.Stop()
	})
	<-t.done
}

// ManualTicker emits a tick only when asked to. Useful for headless runs and
// tests that need exact control over the number of steps.
type ManualTicker struct {
	mu     sync.Mutex
	c      chan time.Time
	closed bool
	now    func() time.Time
}

func NewManualTicker() *ManualTicker {
	return &ManualTicker{c: make(chan time.Time), now: time.Now}
}

func (m *ManualTicker) Ticks() <-chan time.Time { return m.c }

// Tick blocks until the consumer takes the tick or ctx ends.
func (m *ManualTicker) Tick(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrTickSourceClosed
	}
	select {
	case m.c <- m.now():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *ManualTicker) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.c)
	}
}
