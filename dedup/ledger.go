// Package dedup keeps track of already-notified message identifiers.
package dedup

const DefaultCapacity = 4096

// Ledger is a size-bounded set of message keys with FIFO eviction: when the
// ledger is full, recording a new key evicts the oldest one. A key older
// than the whole window can in theory be notified twice, in practice the
// capacity is far larger than any provider redelivery window.
//
// The ledger is not safe for concurrent use: the notification pipeline is
// its only writer.
type Ledger struct {
	capacity int
	keys     map[string]struct{}
	order    []string
	head     int
}

func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{
		capacity: capacity,
		keys:     make(map[string]struct{}, capacity),
		order:    make([]string, 0, capacity),
	}
}

// Seen reports whether the key was recorded and not yet evicted.
func (l *Ledger) Seen(key string) bool {
	_, found := l.keys[key]
	return found
}

// Record adds the key to the ledger. It returns false when the key was
// already present.
func (l *Ledger) Record(key string) bool {
	if l.Seen(key) {
		return false
	}
	if len(l.order) < l.capacity {
		l.order = append(l.order, key)
	} else {
		delete(l.keys, l.order[l.head])
		l.order[l.head] = key
		l.head = (l.head + 1) % l.capacity
	}
	l.keys[key] = struct{}{}
	return true
}

// Len returns the number of keys currently recorded.
func (l *Ledger) Len() int {
	return len(l.keys)
}

// Keys returns the recorded keys from oldest to newest, for persistence.
func (l *Ledger) Keys() []string {
	keys := make([]string, 0, len(l.order))
	if len(l.order) == 0 {
		return keys
	}
	for i := 0; i < len(l.order); i++ {
		keys = append(keys, l.order[(l.head+i)%len(l.order)])
	}
	return keys
}

// Load records the keys in order, typically from a persisted snapshot.
func (l *Ledger) Load(keys []string) {
	for _, key := range keys {
		l.Record(key)
	}
}
