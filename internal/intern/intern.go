// Package intern implements a refcounted string interner so that two
// equal-valued strings compare equal by identity.
package intern

import (
	"sync"

	"github.com/oakmoth/medialib/internal/hashkey"
)

// Handle is an interned string. Two Handles compare equal (==) iff they
// were interned from equal byte sequences. A Handle is only valid for the
// lifetime of the process that created it.
type Handle struct {
	s string
}

// String returns the underlying string value.
func (h *Handle) String() string {
	if h == nil {
		return ""
	}
	return h.s
}

type entry struct {
	h   *Handle
	ref int
}

// Table is a refcounted interning table. The zero value is not usable;
// use New.
type Table struct {
	mu      sync.Mutex
	entries map[uint64][]*entry
}

// New creates an empty interning table.
func New() *Table {
	return &Table{entries: make(map[uint64][]*entry)}
}

// Intern returns the canonical Handle for s, creating one if this is the
// first time s has been seen. Every call increments the Handle's
// refcount; callers must call Release exactly once per Intern call.
func (t *Table) Intern(s string) *Handle {
	key := hashkey.Of(s)

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range t.entries[key] {
		if e.h.s == s {
			e.ref++
			return e.h
		}
	}

	e := &entry{h: &Handle{s: s}, ref: 1}
	t.entries[key] = append(t.entries[key], e)
	return e.h
}

// Release decrements h's refcount, freeing the entry when it drops to
// zero. Releasing a nil Handle is a no-op.
func (t *Table) Release(h *Handle) {
	if h == nil {
		return
	}

	key := hashkey.Of(h.s)

	t.mu.Lock()
	defer t.mu.Unlock()

	bucket := t.entries[key]
	for i, e := range bucket {
		if e.h == h {
			e.ref--
			if e.ref <= 0 {
				t.entries[key] = append(bucket[:i], bucket[i+1:]...)
			}
			return
		}
	}
}

// Len returns the number of distinct interned strings currently held
// (ref > 0). Primarily useful for tests.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, bucket := range t.entries {
		n += len(bucket)
	}
	return n
}
