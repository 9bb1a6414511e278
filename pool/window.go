package pool

// window is the attribution window: the last N rounds, keyed by last_hash_at,
// whose contributions may still be credited when the mining event arrives.
// Buckets older than the window are evicted on insert. Guarded by the
// Operator's round lock.
type window struct {
	cap     int
	keys    []int64 // oldest first
	buckets map[int64]*RoundSnapshot
}

func newWindow(cap int) *window {
	return &window{
		cap:     cap,
		buckets: make(map[int64]*RoundSnapshot, cap),
	}
}

// push stores a finalized round under its last_hash_at, evicting the oldest
// bucket once the window is full. Re-pushing an existing key refreshes the
// bucket without growing the window.
func (w *window) push(key int64, snap *RoundSnapshot) {
	if _, ok := w.buckets[key]; ok {
		w.buckets[key] = snap
		return
	}
	if len(w.keys) == w.cap {
		oldest := w.keys[0]
		w.keys = w.keys[1:]
		delete(w.buckets, oldest)
	}
	w.keys = append(w.keys, key)
	w.buckets[key] = snap
}

// get returns the bucket for a round key, or nil if it fell out of the window.
func (w *window) get(key int64) *RoundSnapshot {
	return w.buckets[key]
}

// contains reports whether the round key is still creditable.
func (w *window) contains(key int64) bool {
	_, ok := w.buckets[key]
	return ok
}

// len returns the number of retained rounds.
func (w *window) len() int { return len(w.keys) }
