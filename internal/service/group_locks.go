package service

import (
	"sort"
	"sync"
)

// GroupLocks serialises compound operations per group. Every
// read-decide-write on a group's enrollment set (admission, withdrawal
// with cascade, renumbering) runs under that group's lock; operations
// on different groups proceed in parallel.
type GroupLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewGroupLocks constructs an empty lock registry.
func NewGroupLocks() *GroupLocks {
	return &GroupLocks{locks: make(map[string]*sync.Mutex)}
}

func (g *GroupLocks) lockFor(groupID string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[groupID]
	if !ok {
		l = &sync.Mutex{}
		g.locks[groupID] = l
	}
	return l
}

// Lock acquires the lock for a single group and returns its release.
func (g *GroupLocks) Lock(groupID string) func() {
	l := g.lockFor(groupID)
	l.Lock()
	return l.Unlock
}

// LockPair acquires the locks for two groups in a deterministic order
// so that concurrent group changes between the same pair cannot
// deadlock. Both IDs may be equal, in which case a single lock is taken.
func (g *GroupLocks) LockPair(a, b string) func() {
	if a == b {
		return g.Lock(a)
	}
	ids := []string{a, b}
	sort.Strings(ids)
	first := g.lockFor(ids[0])
	second := g.lockFor(ids[1])
	first.Lock()
	second.Lock()
	return func() {
		second.Unlock()
		first.Unlock()
	}
}
