package registry

import (
	"sync"

	"github.com/talgya/catplanet/internal/placement"
	"github.com/talgya/catplanet/internal/surface"
)

// Registry is the sole owner of entity lifetimes. All methods are safe for
// concurrent use; reads return copies taken under one lock, so a caller sees
// a consistent snapshot.
type Registry struct {
	mu       sync.RWMutex
	entities map[ID]*Entity
	order    []ID
	nextID   ID
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		entities: make(map[ID]*Entity),
		nextID:   1,
	}
}

// SetNextID sets the next ID to issue (used when restoring a layout).
func (r *Registry) SetNextID(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id > 0 {
		r.nextID = id
	}
}

func (r *Registry) insert(e Entity) *Entity {
	e.ID = r.nextID
	r.nextID++
	stored := e.clone()
	r.entities[stored.ID] = &stored
	r.order = append(r.order, stored.ID)
	return &stored
}

// Add registers e under a fresh ID and returns the stored copy. Container and
// attachment kinds must go through AddPair.
func (r *Registry) Add(e Entity) Entity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insert(e).clone()
}

// AddPair registers a container and its attachment together and links them
// to each other.
func (r *Registry) AddPair(container, attachment Entity) (Entity, Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ck, _ := container.Kind.(Container)
	ak, _ := attachment.Kind.(Attachment)

	c := r.insert(container)
	a := r.insert(attachment)
	ck.Attachment = a.ID
	ak.Container = c.ID
	c.Kind = ck
	a.Kind = ak
	return c.clone(), a.clone()
}

// Remove deletes the entity and, for pairs, its partner. It returns how many
// entities were removed.
func (r *Registry) Remove(id ID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entities[id]
	if !ok {
		return 0
	}
	ids := []ID{id}
	if p, ok := e.Partner(); ok {
		if _, exists := r.entities[p]; exists {
			ids = append(ids, p)
		}
	}
	for _, x := range ids {
		delete(r.entities, x)
	}
	r.compact()
	return len(ids)
}

func (r *Registry) compact() {
	kept := r.order[:0]
	for _, id := range r.order {
		if _, ok := r.entities[id]; ok {
			kept = append(kept, id)
		}
	}
	r.order = kept
}

// Clear destroys every entity and its locomotion state. IDs keep increasing
// across clears.
func (r *Registry) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.entities)
	r.entities = make(map[ID]*Entity)
	r.order = nil
	return n
}

// Get returns a copy of the entity.
func (r *Registry) Get(id ID) (Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[id]
	if !ok {
		return Entity{}, false
	}
	return e.clone(), true
}

// Update runs fn on the stored entity under the write lock. The ID cannot be
// changed.
func (r *Registry) Update(id ID, fn func(*Entity)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entities[id]
	if !ok {
		return false
	}
	fn(e)
	e.ID = id
	return true
}

// Each runs fn on every stored entity in insertion order under the write
// lock. fn must not call back into the registry.
func (r *Registry) Each(fn func(*Entity)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		fn(r.entities[id])
	}
}

// Query returns copies of the entities matching pred, in insertion order.
func (r *Registry) Query(pred func(*Entity) bool) []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entity
	for _, id := range r.order {
		e := r.entities[id]
		if pred == nil || pred(e) {
			out = append(out, e.clone())
		}
	}
	return out
}

// All returns copies of every entity.
func (r *Registry) All() []Entity {
	return r.Query(nil)
}

// AllOfClass returns copies of the entities of class c.
func (r *Registry) AllOfClass(c placement.Class) []Entity {
	return r.Query(func(e *Entity) bool { return e.Class() == c })
}

// Mobile returns copies of the entities that carry locomotion state.
func (r *Registry) Mobile() []Entity {
	return r.Query(func(e *Entity) bool { return e.Motion != nil })
}

// Neighbors returns the validator view of every entity except exclude.
// Attachments are left out: they never block placement.
func (r *Registry) Neighbors(exclude ID) []placement.Neighbor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]placement.Neighbor, 0, len(r.order))
	for _, id := range r.order {
		e := r.entities[id]
		if id == exclude || e.Class() == placement.ClassAttachment {
			continue
		}
		out = append(out, e.Neighbor())
	}
	return out
}

// Len returns the number of entities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

// CountByClass returns how many entities each class has.
func (r *Registry) CountByClass() map[placement.Class]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[placement.Class]int)
	for _, e := range r.entities {
		counts[e.Class()]++
	}
	return counts
}

// Rescale moves every entity from a sphere of oldRadius to one of newRadius
// in place. Offsets and walk radii scale with the planet so entities keep
// their angular positions and paths.
func (r *Registry) Rescale(oldRadius, newRadius float64) {
	if oldRadius <= 0 || newRadius <= 0 || oldRadius == newRadius {
		return
	}
	f := newRadius / oldRadius

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entities {
		e.Position = surface.Rescale(e.Position, oldRadius, newRadius)
		e.Offset *= f
		if e.Motion != nil {
			e.Motion.Offset *= f
			e.Motion.WalkRadius *= f
		}
	}
}
