package simulation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTickerRejectsNonPositiveInterval(t *testing.T) {
	_, err := NewTicker(0)
	assert.ErrorIs(t, err, ErrInvalidTicker)
	_, err = NewTicker(-time.Second)
	assert.ErrorIs(t, err, ErrInvalidTicker)
}

func TestTickerTicksUntilStopped(t *testing.T) {
	ticker, err := NewTicker(time.Millisecond)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		select {
		case _, ok := <-ticker.Ticks():
			require.True(t, ok)
		case <-time.After(time.Second):
			t.Fatal("no tick")
		}
	}

	ticker.Stop()
	ticker.Stop()

	_, ok := <-ticker.Ticks()
	assert.False(t, ok)
}

func TestTickerPause(t *testing.T) {
	ticker, err := NewTicker(time.Millisecond)
	require.NoError(t, err)
	defer ticker.Stop()

	ticker.Pause()
	assert.True(t, ticker.Paused())

	// a tick read before the pause took effect may still be in flight
	select {
	case <-ticker.Ticks():
	case <-time.After(20 * time.Millisecond):
	}

	select {
	case <-ticker.Ticks():
		t.Fatal("tick delivered while paused")
	case <-time.After(50 * time.Millisecond):
	}

	ticker.Resume()
	assert.False(t, ticker.Paused())
	select {
	case <-ticker.Ticks():
	case <-time.After(time.Second):
		t.Fatal("no tick after resume")
	}
}

func TestManualTickerRespectsContext(t *testing.T) {
	m := NewManualTicker()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, m.Tick(ctx), context.DeadlineExceeded)

	m.Stop()
	m.Stop()
	assert.ErrorIs(t, m.Tick(context.Background()), ErrTickSourceClosed)
}
