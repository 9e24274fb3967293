// Package connectivity tracks the online/offline signal as an injected
// object with a normal subscription lifecycle, not ambient global state.
package connectivity

import "sync"

// Monitor holds the current connectivity state and notifies subscribers on
// transitions. SetOnline with an unchanged state notifies nobody, so each
// transition triggers each subscriber exactly once.
type Monitor struct {
	mu     sync.Mutex
	online bool
	subs   map[int]func(online bool)
	next   int
}

func NewMonitor(online bool) *Monitor {
	return &Monitor{
		online: online,
		subs:   make(map[int]func(online bool)),
	}
}

func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.online
}

// SetOnline records a state change and, if the state actually flipped,
// invokes every subscriber outside the lock.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()

	if m.online == online {
		m.mu.Unlock()
		return
	}

	m.online = online

	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}

	m.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
}

// Subscribe registers fn for transition notifications and returns its
// cancel function. Cancel is idempotent.
func (m *Monitor) Subscribe(fn func(online bool)) (cancel func()) {
	m.mu.Lock()

	id := m.next
	m.next++
	m.subs[id] = fn

	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}
