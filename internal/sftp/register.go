package sftp

import "sync"

// Register is the session's key-value metadata store. It is seeded with
// the validated credential set and grows by merge only; no entry is ever
// removed. It lives exactly as long as the owning Session.
type Register struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewRegister returns an empty register.
func NewRegister() *Register {
	return &Register{values: make(map[string]any)}
}

// Merge copies the supplied values into the register, overwriting
// existing keys.
func (r *Register) Merge(values map[string]any) {
	if r == nil || len(values) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for key, value := range values {
		r.values[key] = value
	}
}

// Value returns a single register entry.
func (r *Register) Value(key string) (any, bool) {
	if r == nil {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	value, ok := r.values[key]
	return value, ok
}

// Snapshot returns a copy of the register contents. Mutating the copy
// does not affect the register.
func (r *Register) Snapshot() map[string]any {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[string]any, len(r.values))
	for key, value := range r.values {
		snapshot[key] = value
	}
	return snapshot
}

// Len returns the number of entries in the register.
func (r *Register) Len() int {
	if r == nil {
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.values)
}
