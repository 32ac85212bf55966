package core

import (
	"errors"
	"fmt"
)

// Handle is an opaque reference to an entity in the arena. The zero value
// refers to no entity.
type Handle int32

// NoHandle is the "none" handle
const NoHandle Handle = 0

// Status is the lifecycle status of an entity
type Status int

const (
	StatusActive Status = iota
	StatusInactive
	StatusDead
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "ACTIVE"
	case StatusInactive:
		return "INACTIVE"
	case StatusDead:
		return "DEAD"
	default:
		return "UNKNOWN"
	}
}

// Kind classifies what an entity is
type Kind string

const (
	KindAircraft    Kind = "aircraft"
	KindC2          Kind = "c2"
	KindFireUnit    Kind = "fire_unit"
	KindRadar       Kind = "radar"
	KindInterceptor Kind = "interceptor"
)

var (
	// ErrUnknownHandle is returned for handles that were never issued
	ErrUnknownHandle = errors.New("unknown entity handle")
	// ErrCycle is returned when a superior link would create a cycle
	ErrCycle = errors.New("superior link would create a cycle")
)

// Entity is a platform in the scenario
type Entity struct {
	ID           Handle
	Name         string
	Kind         Kind
	Location     Point
	Status       Status
	Superior     Handle   // weak back-reference, lookup only
	Subordinates []Handle // owned
	Points       int
}

// Alive reports whether the entity can still act or be acted upon
func (e *Entity) Alive() bool {
	return e != nil && e.Status == StatusActive
}

// Arena owns every entity of a run. Entities are never removed; DEAD ones
// stay for scoring.
type Arena struct {
	entities []*Entity
	byName   map[string]Handle
}

// NewArena creates an empty arena
func NewArena() *Arena {
	return &Arena{
		entities: []*Entity{nil}, // slot 0 is NoHandle
		byName:   make(map[string]Handle),
	}
}

// Add inserts an entity and returns its handle
func (a *Arena) Add(name string, kind Kind, loc Point, points int) Handle {
	h := Handle(len(a.entities))
	a.entities = append(a.entities, &Entity{
		ID:       h,
		Name:     name,
		Kind:     kind,
		Location: loc,
		Status:   StatusActive,
		Points:   points,
	})
	if name != "" {
		a.byName[name] = h
	}
	return h
}

// Get returns the entity for a handle, or nil
func (a *Arena) Get(h Handle) *Entity {
	if h <= NoHandle || int(h) >= len(a.entities) {
		return nil
	}
	return a.entities[h]
}

// Lookup finds an entity by name
func (a *Arena) Lookup(name string) (Handle, bool) {
	h, ok := a.byName[name]
	return h, ok
}

// Alive reports whether h refers to an ACTIVE entity
func (a *Arena) Alive(h Handle) bool {
	return a.Get(h).Alive()
}

// Name returns a printable name for a handle
func (a *Arena) Name(h Handle) string {
	e := a.Get(h)
	if e == nil {
		return "none"
	}
	if e.Name == "" {
		return fmt.Sprintf("%s-%d", e.Kind, e.ID)
	}
	return e.Name
}

// SetSuperior links child under parent. A link that would make parent a
// descendant of child is rejected with ErrCycle.
func (a *Arena) SetSuperior(child, parent Handle) error {
	c := a.Get(child)
	p := a.Get(parent)
	if c == nil || p == nil {
		return fmt.Errorf("link %d under %d: %w", child, parent, ErrUnknownHandle)
	}
	for h := parent; h != NoHandle; h = a.Get(h).Superior {
		if h == child {
			return fmt.Errorf("link %s under %s: %w", c.Name, p.Name, ErrCycle)
		}
	}

	if c.Superior != NoHandle {
		old := a.Get(c.Superior)
		for i, s := range old.Subordinates {
			if s == child {
				old.Subordinates = append(old.Subordinates[:i], old.Subordinates[i+1:]...)
				break
			}
		}
	}
	c.Superior = parent
	p.Subordinates = append(p.Subordinates, child)
	return nil
}

// OfKind returns the handles of all entities of a kind in creation order
func (a *Arena) OfKind(kind Kind) []Handle {
	var out []Handle
	for _, e := range a.entities[1:] {
		if e.Kind == kind {
			out = append(out, e.ID)
		}
	}
	return out
}

// Len is the number of entities
func (a *Arena) Len() int {
	return len(a.entities) - 1
}
