package identity

import (
	"sync"

	"github.com/spigell/hirewire/internal/records"
)

// Holder owns the process-wide identity. Components receive it explicitly.
//
// Replace and Reset bump a generation counter; MergeProfile only applies to
// the generation it was fetched for, so a slow profile read from an earlier
// session cannot leak into the current one.
type Holder struct {
	mu         sync.RWMutex
	current    Identity
	generation uint64
	// profile is the last profile merged into current.
	profile  *records.Profile
	watchers map[int]func(Identity)
	nextID   int
}

func NewHolder() *Holder {
	return &Holder{current: Guest(), watchers: make(map[int]func(Identity))}
}

func (h *Holder) Current() Identity {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Replace installs id wholesale and returns the new generation.
func (h *Holder) Replace(id Identity) uint64 {
	h.mu.Lock()
	h.profile = nil
	gen := h.install(id)
	watchers := h.snapshotWatchers()
	h.mu.Unlock()

	notify(watchers, id)
	return gen
}

// Renew installs a fresh identity from a new session event. When it belongs
// to the same user as the current one, the last merged profile is applied to
// it again, so profile fields survive a token refresh even if the next fetch
// fails.
func (h *Holder) Renew(id Identity) (Identity, uint64) {
	h.mu.Lock()
	if h.profile != nil && !id.IsGuest() && h.profile.ID == id.ID {
		id = id.Merge(*h.profile)
	} else {
		h.profile = nil
	}
	gen := h.install(id)
	watchers := h.snapshotWatchers()
	h.mu.Unlock()

	notify(watchers, id)
	return id, gen
}

func (h *Holder) install(id Identity) uint64 {
	h.generation++
	h.current = id
	return h.generation
}

// Reset replaces the identity with the guest.
func (h *Holder) Reset() uint64 {
	return h.Replace(Guest())
}

// MergeProfile merges p into the current identity if gen is still current and
// the profile belongs to it. It reports whether the merge happened.
func (h *Holder) MergeProfile(gen uint64, p records.Profile) (Identity, bool) {
	h.mu.Lock()
	if gen != h.generation || p.ID != h.current.ID || h.current.IsGuest() {
		current := h.current
		h.mu.Unlock()
		return current, false
	}
	h.current = h.current.Merge(p)
	h.profile = &p
	merged := h.current
	watchers := h.snapshotWatchers()
	h.mu.Unlock()

	notify(watchers, merged)
	return merged, true
}

// Watch registers fn for every identity change. The returned func removes it.
func (h *Holder) Watch(fn func(Identity)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	h.watchers[id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.watchers, id)
	}
}

func (h *Holder) snapshotWatchers() []func(Identity) {
	out := make([]func(Identity), 0, len(h.watchers))
	for _, fn := range h.watchers {
		out = append(out, fn)
	}
	return out
}

func notify(watchers []func(Identity), id Identity) {
	for _, fn := range watchers {
		fn(id)
	}
}
