package mutation

import "sync"

// State is the sync tag of a locally held record.
type State string

const (
	StateConfirmed State = "confirmed"
	StatePending   State = "pending"
	StateUnsynced  State = "unsynced"
)

// Order says where new keys go.
type Order int

const (
	Prepend Order = iota
	Append
)

// Entry is one record with its sync tag. Rev identifies the write that
// produced it.
type Entry[T any] struct {
	Value T
	State State
	Err   error
	Rev   uint64
}

// Collection is an ordered, keyed set of records shared by the UI and the
// coordinator.
type Collection[T any] struct {
	name  string
	key   func(T) string
	order Order

	mu      sync.RWMutex
	entries []Entry[T]
	rev     uint64
}

func NewCollection[T any](name string, key func(T) string, order Order) *Collection[T] {
	return &Collection[T]{name: name, key: key, order: order}
}

func (c *Collection[T]) Name() string { return c.name }

// Key returns the identity key of v.
func (c *Collection[T]) Key(v T) string { return c.key(v) }

// Upsert writes v tagged pending. An existing record with the same key is
// replaced in place; a new one goes to the ordered end.
func (c *Collection[T]) Upsert(v T) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.put(v, StatePending)
}

func (c *Collection[T]) put(v T, state State) uint64 {
	c.rev++
	entry := Entry[T]{Value: v, State: state, Rev: c.rev}

	k := c.key(v)
	for i := range c.entries {
		if c.key(c.entries[i].Value) == k {
			c.entries[i] = entry
			return c.rev
		}
	}

	if c.order == Prepend {
		c.entries = append([]Entry[T]{entry}, c.entries...)
	} else {
		c.entries = append(c.entries, entry)
	}
	return c.rev
}

// tag settles the write rev of key. It does nothing when the entry has been
// written again since, or is gone. A non-nil value replaces the record.
func (c *Collection[T]) tag(key string, rev uint64, state State, value *T, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.entries {
		if c.key(c.entries[i].Value) != key {
			continue
		}
		if c.entries[i].Rev != rev {
			return false
		}
		c.entries[i].State = state
		c.entries[i].Err = err
		if value != nil {
			c.entries[i].Value = *value
		}
		return true
	}
	return false
}

// Replace installs a full refetch. Every record is confirmed, and writes
// still in flight no longer re-tag anything.
func (c *Collection[T]) Replace(values []T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make([]Entry[T], 0, len(values))
	for _, v := range values {
		c.rev++
		c.entries = append(c.entries, Entry[T]{Value: v, State: StateConfirmed, Rev: c.rev})
	}
}

func (c *Collection[T]) Get(key string) (Entry[T], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, e := range c.entries {
		if c.key(e.Value) == key {
			return e, true
		}
	}
	return Entry[T]{}, false
}

// Find returns the first record, in collection order, matching pred.
func (c *Collection[T]) Find(pred func(T) bool) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, e := range c.entries {
		if pred(e.Value) {
			return e.Value, true
		}
	}
	var zero T
	return zero, false
}

func (c *Collection[T]) Values() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]T, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.Value)
	}
	return out
}

func (c *Collection[T]) Entries() []Entry[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Entry[T](nil), c.entries...)
}

func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
