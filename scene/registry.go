package scene

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrEntityExists indicates an entity with the same ID is already present.
	ErrEntityExists = errors.New("entity already exists")
	// ErrEntityNotFound indicates a requested entity is not present.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrSingletonKind indicates a second entity of a singleton kind.
	ErrSingletonKind = errors.New("entity kind already present")
	// ErrUnknownKind indicates an entity with an unrecognised kind tag.
	ErrUnknownKind = errors.New("unknown entity kind")
	// ErrPayloadMismatch indicates the payload does not match the kind tag.
	ErrPayloadMismatch = errors.New("entity payload does not match kind")
)

// EventType indicates what kind of change happened in the registry.
type EventType int

const (
	EventEntityAdded EventType = iota
	EventEntityRemoved
)

// Event is emitted to subscribers when an entity is added or removed.
type Event struct {
	Type   EventType
	Entity Entity
}

// Registry is the in-memory store of scene entities. It enforces the
// at-most-one rule for singleton kinds and reports removals so GPU-side
// resources can be released.
type Registry struct {
	mu sync.RWMutex

	entities map[uuid.UUID]*Entity
	order    []uuid.UUID
	byKind   map[Kind]uuid.UUID

	subs   map[int]func(Event)
	nextID int
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[uuid.UUID]*Entity),
		byKind:   make(map[Kind]uuid.UUID),
		subs:     make(map[int]func(Event)),
	}
}

// Add stores e, assigning an ID when it has none.
func (r *Registry) Add(e *Entity) error {
	if err := e.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if _, exists := r.entities[e.ID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrEntityExists, e.ID)
	}
	if e.Kind.Singleton() {
		if existing, ok := r.byKind[e.Kind]; ok {
			r.mu.Unlock()
			return fmt.Errorf("%w: %v (%s)", ErrSingletonKind, e.Kind, existing)
		}
		r.byKind[e.Kind] = e.ID
	}
	r.entities[e.ID] = e
	r.order = append(r.order, e.ID)
	event := Event{Type: EventEntityAdded, Entity: e.Clone()}
	subs := r.subscribers()
	r.mu.Unlock()

	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// Get returns the entity with the given ID, or nil if not found.
func (r *Registry) Get(id uuid.UUID) *Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entities[id]
}

// Singleton returns the entity of a singleton kind, or nil.
func (r *Registry) Singleton(kind Kind) *Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byKind[kind]
	if !ok {
		return nil
	}
	return r.entities[id]
}

// Remove deletes the entity and notifies subscribers.
func (r *Registry) Remove(id uuid.UUID) error {
	r.mu.Lock()
	e, ok := r.entities[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	r.removeLocked(e)
	event := Event{Type: EventEntityRemoved, Entity: e.Clone()}
	subs := r.subscribers()
	r.mu.Unlock()

	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// RemoveWhere deletes every entity matching pred and returns how many
// were removed.
func (r *Registry) RemoveWhere(pred func(*Entity) bool) int {
	r.mu.Lock()
	var events []Event
	for _, id := range append([]uuid.UUID(nil), r.order...) {
		e := r.entities[id]
		if pred(e) {
			r.removeLocked(e)
			events = append(events, Event{Type: EventEntityRemoved, Entity: e.Clone()})
		}
	}
	subs := r.subscribers()
	r.mu.Unlock()

	for _, ev := range events {
		for _, sub := range subs {
			sub(ev)
		}
	}
	return len(events)
}

// Clear removes every entity.
func (r *Registry) Clear() int {
	return r.RemoveWhere(func(*Entity) bool { return true })
}

// List returns the entities in insertion order. Callers must treat the
// pointers as read-only.
func (r *Registry) List() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]*Entity, 0, len(r.order))
	for _, id := range r.order {
		res = append(res, r.entities[id])
	}
	return res
}

// Count returns the number of entities of the given kind.
func (r *Registry) Count(kind Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.entities {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Counts returns entity counts for every kind, including zeros.
func (r *Registry) Counts() map[Kind]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make(map[Kind]int, len(Kinds))
	for _, k := range Kinds {
		res[k] = 0
	}
	for _, e := range r.entities {
		res[e.Kind]++
	}
	return res
}

// Len returns the total number of entities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

// Subscribe registers a callback for registry events. It returns an
// unsubscribe function.
func (r *Registry) Subscribe(fn func(Event)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}

func (r *Registry) removeLocked(e *Entity) {
	delete(r.entities, e.ID)
	if e.Kind.Singleton() && r.byKind[e.Kind] == e.ID {
		delete(r.byKind, e.Kind)
	}
	for i, id := range r.order {
		if id == e.ID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Registry) subscribers() []func(Event) {
	subs := make([]func(Event), 0, len(r.subs))
	for i := 0; i < r.nextID; i++ {
		if fn, ok := r.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	return subs
}
