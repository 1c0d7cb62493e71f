package match

import "sync"

// ValueRegister holds the single process-of-captures-per-test match-value
// set described in spec §4.4 and §9: a new set is built by a Builder and
// replaces the register's current values atomically on Commit. A failed
// match never calls Commit, so the previous set survives unchanged (spec:
// "a failed match leaves the previous set intact").
type ValueRegister struct {
	mu     sync.Mutex
	values []string
}

// NewValueRegister returns an empty register.
func NewValueRegister() *ValueRegister { return &ValueRegister{} }

// Open starts a new capture builder for one test instruction.
func (r *ValueRegister) Open() *Builder {
	return &Builder{reg: r}
}

// Get returns the captured value at index n (0 = whole match / first
// capture depending on match type), or "" if n is beyond what was
// captured — unmatched groups produce empty strings per spec §4.4.
func (r *ValueRegister) Get(n int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n < 0 || n >= len(r.values) {
		return ""
	}
	return r.values[n]
}

// Len reports how many values are currently captured.
func (r *ValueRegister) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

// Builder accumulates captures for one test instruction; Skip records an
// empty value so that a capture that matched nothing (e.g. a regex group
// that did not participate) still occupies its ${n} slot.
type Builder struct {
	reg     *ValueRegister
	pending []string
}

// Append adds a captured value in order.
func (b *Builder) Append(s string) { b.pending = append(b.pending, s) }

// Skip advances the index without recording a value (an empty capture).
func (b *Builder) Skip() { b.pending = append(b.pending, "") }

// Commit atomically replaces the register's value set with everything
// accumulated so far.
func (b *Builder) Commit() {
	b.reg.mu.Lock()
	b.reg.values = b.pending
	b.reg.mu.Unlock()
}
