// Package liveness tracks which ids are referenced by live callers so
// that garbage collection can refresh their timestamps before an
// age-based delete, without ever taking a process-wide lock.
//
// Go has no portable weak reference, so the live set here is
// reference-counted instead: Acquire on record creation, Release on
// record close. gc-older-than snapshots the ids whose count is greater
// than zero before touching them.
package liveness

import (
	"sync"

	"github.com/sasha-s/go-deadlock"
)

// mutex is a drop-in for sync.Mutex: a regular mutex in production,
// deadlock detection switched on in debug builds via deadlock.Opts.Disable.
type mutex = deadlock.Mutex

// SetDebug toggles go-deadlock's cycle detection process-wide. Call it
// once at startup with the app's debug flag; detection adds overhead, so
// it stays off unless a build explicitly asks for it.
func SetDebug(enabled bool) {
	deadlock.Opts.Disable = !enabled
}

// Registry is the process-local liveness tracker. It is safe for
// concurrent use.
type Registry struct {
	mu       mutex
	refs     map[string]int
	tempMu   sync.Mutex
	tempIDs  map[string]struct{}
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		refs:    make(map[string]int),
		tempIDs: make(map[string]struct{}),
	}
}

// Acquire registers id as referenced by a live caller. It is reference
// counted: it may be called more than once for the same id, and each
// call must be paired with one Release call.
func (r *Registry) Acquire(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs[id]++
}

// Release drops one reference to id, previously taken by Acquire.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refs[id] <= 1 {
		delete(r.refs, id)
		return
	}
	r.refs[id]--
}

// LiveIDs snapshots every id currently held by at least one live caller.
func (r *Registry) LiveIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.refs))
	for id, count := range r.refs {
		if count > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// Clear drops every committed reference, used by the store's
// clear-in-use operation. It does not touch the temp-id list.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs = make(map[string]int)
}

// AddTemp records tempID as reserved and mid-ingest.
func (r *Registry) AddTemp(tempID string) {
	r.tempMu.Lock()
	defer r.tempMu.Unlock()
	r.tempIDs[tempID] = struct{}{}
}

// RemoveTemp drops tempID from the mid-ingest set, called on every exit
// path of Store.Put, success or failure.
func (r *Registry) RemoveTemp(tempID string) {
	r.tempMu.Lock()
	defer r.tempMu.Unlock()
	delete(r.tempIDs, tempID)
}

// TempIDs snapshots the ids currently reserved and mid-ingest.
func (r *Registry) TempIDs() []string {
	r.tempMu.Lock()
	defer r.tempMu.Unlock()
	ids := make([]string, 0, len(r.tempIDs))
	for id := range r.tempIDs {
		ids = append(ids, id)
	}
	return ids
}
