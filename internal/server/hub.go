package server

import (
	"sync"
	"sync/atomic"
)

// viewer is one frame subscriber, whatever the transport. Its writer drains
// send; a full queue drops frames rather than stalling the simulation.
type viewer struct {
	id      string
	kind    string
	send    chan []byte
	dropped atomic.Uint64
	once    sync.Once
}

func newViewer(id, kind string, buffer int) *viewer {
	if buffer <= 0 {
		buffer = 1
	}
	return &viewer{id: id, kind: kind, send: make(chan []byte, buffer)}
}

func (v *viewer) close() {
	v.once.Do(func() { close(v.send) })
}

type hub struct {
	mu      sync.RWMutex
	viewers map[*viewer]struct{}
	closed  bool
	// last payload, replayed to viewers that join while the world is at rest
	last []byte
}

func newHub() *hub { return &hub{viewers: make(map[*viewer]struct{})} }

func (h *hub) add(v *viewer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.viewers[v] = struct{}{}
	if h.last != nil {
		v.send <- h.last
	}
	return true
}

func (h *hub) remove(v *viewer) {
	h.mu.Lock()
	if _, ok := h.viewers[v]; ok {
		delete(h.viewers, v)
		v.close()
	}
	h.mu.Unlock()
}

// broadcast fans b out and keeps it for late joiners.
func (h *hub) broadcast(b []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = b
	h.fanoutLocked(b)
}

// notify fans b out without keeping it.
func (h *hub) notify(b []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fanoutLocked(b)
}

func (h *hub) fanoutLocked(b []byte) {
	for v := range h.viewers {
		select {
		case v.send <- b:
		default:
			v.dropped.Add(1)
		}
	}
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

// closeAll disconnects every viewer and refuses new ones.
func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for v := range h.viewers {
		delete(h.viewers, v)
		v.close()
	}
}

func (h *hub) reopen() {
	h.mu.Lock()
	h.closed = false
	h.last = nil
	h.mu.Unlock()
}
