package session

import "sync"

// Registry hands out one Manager per user. A manager lives while a caller
// holds it or while its workout is running; idle, released managers are
// dropped.
type Registry struct {
	saver Saver
	opts  []Option

	mu      sync.Mutex
	entries map[int64]*entry
}

type entry struct {
	m    *Manager
	refs int
}

// NewRegistry returns an empty registry whose managers save through saver.
func NewRegistry(saver Saver, opts ...Option) *Registry {
	return &Registry{saver: saver, opts: opts, entries: make(map[int64]*entry)}
}

// Acquire returns the user's manager, creating it on first use, and a release
// func the caller must call once it is done with the manager.
func (r *Registry) Acquire(userID int64) (*Manager, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[userID]
	if !ok {
		e = &entry{m: NewManager(userID, r.saver, r.opts...)}
		r.entries[userID] = e
	}
	e.refs++

	var once sync.Once
	return e.m, func() { once.Do(func() { r.release(userID, e) }) }
}

func (r *Registry) release(userID int64, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e.refs--
	if e.refs == 0 && !e.m.IsActive() && r.entries[userID] == e {
		delete(r.entries, userID)
	}
}

// Lookup returns the user's manager without creating or holding one.
func (r *Registry) Lookup(userID int64) (*Manager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[userID]
	if !ok {
		return nil, false
	}
	return e.m, true
}

// Len reports how many managers the registry holds.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Active returns the managers that currently hold a running workout.
func (r *Registry) Active() []*Manager {
	r.mu.Lock()
	managers := make([]*Manager, 0, len(r.entries))
	for _, e := range r.entries {
		managers = append(managers, e.m)
	}
	r.mu.Unlock()

	active := managers[:0]
	for _, m := range managers {
		if m.IsActive() {
			active = append(active, m)
		}
	}
	return active
}
