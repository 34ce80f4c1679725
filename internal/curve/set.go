package curve

import "sync"

// Set is an indexed collection of paths. Indices are stable until Clear and
// are what persisted placements refer to.
type Set struct {
	mu    sync.RWMutex
	paths []*Path
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{}
}

// Add appends a path and returns its index.
func (s *Set) Add(p *Path) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, p)
	return len(s.paths) - 1
}

// Get returns the path at index i.
func (s *Set) Get(i int) (*Path, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.paths) {
		return nil, false
	}
	return s.paths[i], true
}

// Curve satisfies the locomotion curve lookup.
func (s *Set) Curve(i int) (Curve, bool) {
	p, ok := s.Get(i)
	if !ok {
		return nil, false
	}
	return p, true
}

// Len returns the number of paths.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.paths)
}

// All returns the paths in index order.
func (s *Set) All() []*Path {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Path(nil), s.paths...)
}

// Clear removes every path.
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = nil
}

// Rescale scales every path for a radius change.
func (s *Set) Rescale(oldRadius, newRadius float64) {
	if oldRadius <= 0 || newRadius <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.paths {
		p.Scale(newRadius / oldRadius)
	}
}
