package scene

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func planetEntity() *Entity {
	return &Entity{Kind: KindPlanet, Scale: 1, Visible: true, Planet: &Planet{Radius: 1}}
}

func pulseEntity(owner uuid.UUID) *Entity {
	return &Entity{Kind: KindGlowPulse, Scale: 1, Pulse: &GlowPulse{Owner: owner}}
}

func TestRegistryAddAssignsID(t *testing.T) {
	reg := NewRegistry()
	e := planetEntity()
	if err := reg.Add(e); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if e.ID == uuid.Nil {
		t.Fatalf("expected Add to assign an ID")
	}
	if got := reg.Get(e.ID); got != e {
		t.Fatalf("Get returned %#v, want the added entity", got)
	}
	if got := reg.Singleton(KindPlanet); got != e {
		t.Fatalf("Singleton(planet) returned %#v", got)
	}
}

func TestRegistryDuplicateID(t *testing.T) {
	reg := NewRegistry()
	owner := uuid.New()
	p := pulseEntity(owner)
	if err := reg.Add(p); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	dup := pulseEntity(owner)
	dup.ID = p.ID
	if err := reg.Add(dup); !errors.Is(err, ErrEntityExists) {
		t.Fatalf("Add duplicate = %v, want ErrEntityExists", err)
	}
}

func TestRegistrySingletonKinds(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Add(planetEntity()); err != nil {
		t.Fatalf("first Add error: %v", err)
	}
	if err := reg.Add(planetEntity()); !errors.Is(err, ErrSingletonKind) {
		t.Fatalf("second planet = %v, want ErrSingletonKind", err)
	}

	owner := uuid.New()
	for i := range 3 {
		if err := reg.Add(pulseEntity(owner)); err != nil {
			t.Fatalf("pulse %d Add error: %v", i, err)
		}
	}
	if got := reg.Count(KindGlowPulse); got != 3 {
		t.Fatalf("Count(glow_pulse) = %d, want 3", got)
	}
}

func TestRegistryRejectsPayloadMismatch(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Add(&Entity{Kind: KindCraterRing}); !errors.Is(err, ErrPayloadMismatch) {
		t.Fatalf("Add without payload = %v, want ErrPayloadMismatch", err)
	}
	if err := reg.Add(&Entity{Kind: Kind(42)}); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("Add unknown kind = %v, want ErrUnknownKind", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("rejected entities were stored: Len = %d", reg.Len())
	}
}

func TestRegistryRemoveFreesSingletonSlot(t *testing.T) {
	reg := NewRegistry()
	e := planetEntity()
	if err := reg.Add(e); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if err := reg.Remove(e.ID); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if err := reg.Remove(e.ID); !errors.Is(err, ErrEntityNotFound) {
		t.Fatalf("second Remove = %v, want ErrEntityNotFound", err)
	}
	if err := reg.Add(planetEntity()); err != nil {
		t.Fatalf("Add after Remove error: %v", err)
	}
}

func TestRegistryEvents(t *testing.T) {
	reg := NewRegistry()
	var added, removed []Kind
	unsubscribe := reg.Subscribe(func(ev Event) {
		switch ev.Type {
		case EventEntityAdded:
			added = append(added, ev.Entity.Kind)
		case EventEntityRemoved:
			removed = append(removed, ev.Entity.Kind)
		}
	})

	owner := uuid.New()
	_ = reg.Add(planetEntity())
	_ = reg.Add(pulseEntity(owner))
	_ = reg.Add(pulseEntity(owner))
	if n := reg.RemoveWhere(func(e *Entity) bool { return e.Kind == KindGlowPulse }); n != 2 {
		t.Fatalf("RemoveWhere removed %d, want 2", n)
	}
	if len(added) != 3 || len(removed) != 2 {
		t.Fatalf("events added=%v removed=%v", added, removed)
	}

	unsubscribe()
	reg.Clear()
	if len(removed) != 2 {
		t.Fatalf("unsubscribed callback still invoked: %v", removed)
	}
	if reg.Len() != 0 {
		t.Fatalf("Clear left %d entities", reg.Len())
	}
}

func TestRegistryListInsertionOrderAndCounts(t *testing.T) {
	reg := NewRegistry()
	owner := uuid.New()
	first := pulseEntity(owner)
	_ = reg.Add(first)
	_ = reg.Add(planetEntity())

	list := reg.List()
	if len(list) != 2 || list[0] != first {
		t.Fatalf("List order unexpected: %#v", list)
	}

	counts := reg.Counts()
	if len(counts) != len(Kinds) {
		t.Fatalf("Counts has %d kinds, want %d", len(counts), len(Kinds))
	}
	if counts[KindPlanet] != 1 || counts[KindGlowPulse] != 1 || counts[KindMovingBody] != 0 {
		t.Fatalf("Counts = %v", counts)
	}
}

func TestCloneDetachesPayload(t *testing.T) {
	e := planetEntity()
	c := e.Clone()
	c.Planet.Spin = 1
	if e.Planet.Spin != 0 {
		t.Fatalf("Clone shares planet payload")
	}
}

func TestRepeatingTask(t *testing.T) {
	task := NewRepeatingTask(100)
	if task.Advance(60) {
		t.Fatalf("fired before interval")
	}
	if !task.Advance(60) {
		t.Fatalf("expected firing after interval elapsed")
	}
	if !task.Advance(1000) {
		t.Fatalf("expected firing on long frame")
	}
	if task.Advance(10) {
		t.Fatalf("backlog from long frame should be dropped")
	}
	task.Cancel()
	if task.Advance(1000) || !task.Cancelled() {
		t.Fatalf("cancelled task fired")
	}
	if NewRepeatingTask(0).Advance(1000) {
		t.Fatalf("zero-interval task fired")
	}
}
