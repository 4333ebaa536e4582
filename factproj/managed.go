package factproj

import (
	"sync"
	"sync/atomic"

	"github.com/factline/factrt/fact"
)

// Managed is an embeddable base implementing the cursor and critical
// section every ManagedProjection needs, the same way servicePublisher
// and portPublisher embed sync.Mutex directly rather than asking every
// implementation to hand-roll its own locking. Applications embed
// Managed and only need to implement ClassID and Handlers themselves.
//
// The write lock (mu) guards only the ExecuteUpdate critical section;
// Cursor is backed by an atomic so readers outside a critical section
// (e.g. a concurrent fetch deciding whether to persist a snapshot) never
// contend with it, and so Advance — always called from inside the fn
// ExecuteUpdate is already running — never has to re-acquire mu.
type Managed struct {
	mu     sync.Mutex
	cursor atomic.Value
}

// Cursor implements ManagedProjection.
func (m *Managed) Cursor() fact.ID {
	v := m.cursor.Load()
	if v == nil {
		return ""
	}
	return v.(fact.ID)
}

// Advance implements ManagedProjection. Must only be called from inside a
// function passed to ExecuteUpdate.
func (m *Managed) Advance(id fact.ID) {
	m.cursor.Store(id)
}

// ExecuteUpdate implements ManagedProjection.
func (m *Managed) ExecuteUpdate(fn func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn()
}
