package sio

import (
	"math/rand"
	"sync"
	"time"
)

// maxAckID bounds the ack id space; ids are drawn from [0, maxAckID).
const maxAckID = 1000

type ackEntry struct {
	timeStarted time.Time
	timeout     time.Duration
	callback    func(Payload)
}

// ackStore tracks outstanding emit_with_ack callbacks, keyed by id. Ids are
// drawn at random and retried on collision against the currently
// outstanding set, so two simultaneously outstanding acks never share one.
type ackStore struct {
	mu      sync.Mutex
	entries map[int]*ackEntry
	rng     *rand.Rand
}

func newAckStore() *ackStore {
	return &ackStore{
		entries: make(map[int]*ackEntry),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// add registers a callback under a freshly drawn id and returns it.
func (a *ackStore) add(timeout time.Duration, cb func(Payload)) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reapExpiredLocked()

	var id int
	for {
		id = a.rng.Intn(maxAckID)
		if _, taken := a.entries[id]; !taken {
			break
		}
	}
	a.entries[id] = &ackEntry{timeStarted: time.Now(), timeout: timeout, callback: cb}
	return id
}

// cancel removes a registered id without invoking its callback, used when a
// packet fails to build after the id was already drawn.
func (a *ackStore) cancel(id int) {
	a.mu.Lock()
	delete(a.entries, id)
	a.mu.Unlock()
}

// resolve delivers an ACK/BINARY_ACK response to the callback registered
// for id, if the ack hasn't already timed out. Text is invoked before
// binary when both are present. The entry is removed regardless.
func (a *ackStore) resolve(id int, text *string, binary []byte) {
	a.mu.Lock()
	entry, ok := a.entries[id]
	if ok {
		delete(a.entries, id)
	}
	a.reapExpiredLocked()
	a.mu.Unlock()

	if !ok || time.Since(entry.timeStarted) >= entry.timeout {
		return
	}
	if text != nil {
		entry.callback(TextPayload(*text))
	}
	if binary != nil {
		entry.callback(BinaryPayload(binary))
	}
}

// reapExpiredLocked drops entries whose deadline has already passed.
// Callers must hold a.mu.
func (a *ackStore) reapExpiredLocked() {
	now := time.Now()
	for id, e := range a.entries {
		if now.Sub(e.timeStarted) >= e.timeout {
			delete(a.entries, id)
		}
	}
}
