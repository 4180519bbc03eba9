// Package projectstore keeps the projects of the current session in memory,
// in insertion order.
package projectstore

import (
	"sort"
	"sync"

	"github.com/adb-analytics/apiserver/types"
)

// Listener receives a settled snapshot after every change. The snapshot is
// shared between listeners and must not be modified.
type Listener func(projects []types.Project)

// Store is an append-only, session-scoped project list. Add does not
// validate; callers run validation.ValidateProject first.
type Store struct {
	mu        sync.RWMutex
	projects  []types.Project
	listeners map[int]Listener
	nextID    int
}

func New() *Store {
	return &Store{listeners: make(map[int]Listener)}
}

// Add appends a project and notifies listeners.
func (s *Store) Add(project types.Project) {
	s.mu.Lock()
	s.projects = append(s.projects, project)
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	notify(listeners, snapshot)
}

// List returns a copy of the projects in insertion order.
func (s *Store) List() []types.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Project, len(s.projects))
	copy(out, s.projects)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.projects)
}

// Reset drops every project. Listeners see an empty snapshot.
func (s *Store) Reset() {
	s.mu.Lock()
	if len(s.projects) == 0 {
		s.mu.Unlock()
		return
	}
	s.projects = nil
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	notify(listeners, snapshot)
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Listener) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) snapshotLocked() ([]types.Project, []Listener) {
	snapshot := make([]types.Project, len(s.projects))
	copy(snapshot, s.projects)

	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, s.listeners[id])
	}
	return snapshot, listeners
}

func notify(listeners []Listener, snapshot []types.Project) {
	for _, fn := range listeners {
		fn(snapshot)
	}
}
