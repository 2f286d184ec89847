package domain

import (
	"sort"
	"strings"
)

// Entity is a controllable device or sensor known to Home Assistant.
type Entity struct {
	ID           string `json:"entity_id"`
	FriendlyName string `json:"name"`
	Domain       string `json:"domain"`
}

// NewEntity builds an Entity and derives its domain from the id prefix.
func NewEntity(id, friendlyName string) Entity {
	return Entity{
		ID:           id,
		FriendlyName: friendlyName,
		Domain:       DomainOf(id),
	}
}

// DomainOf returns the "<domain>" part of a "<domain>.<object>" entity id, or
// "" when the id has no domain prefix.
func DomainOf(entityID string) string {
	d, _, ok := strings.Cut(entityID, ".")
	if !ok || d == "" {
		return ""
	}
	return d
}

// Snapshot is an immutable point-in-time view of the known entities.
// It is built once and never modified, so it can be shared between
// requests without locking.
type Snapshot struct {
	entities []Entity
	index    map[string]int
}

func NewSnapshot(entities []Entity) *Snapshot {
	s := &Snapshot{
		entities: make([]Entity, 0, len(entities)),
		index:    make(map[string]int, len(entities)),
	}
	for _, e := range entities {
		if e.ID == "" {
			continue
		}
		if e.Domain == "" {
			e.Domain = DomainOf(e.ID)
		}
		if _, dup := s.index[e.ID]; dup {
			continue
		}
		s.index[e.ID] = len(s.entities)
		s.entities = append(s.entities, e)
	}
	return s
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entities)
}

// Lookup returns the entity with the given id.
func (s *Snapshot) Lookup(id string) (Entity, bool) {
	if s == nil {
		return Entity{}, false
	}
	i, ok := s.index[id]
	if !ok {
		return Entity{}, false
	}
	return s.entities[i], true
}

func (s *Snapshot) Contains(id string) bool {
	_, ok := s.Lookup(id)
	return ok
}

// Entities returns a copy of the entities in load order.
func (s *Snapshot) Entities() []Entity {
	if s == nil {
		return nil
	}
	out := make([]Entity, len(s.entities))
	copy(out, s.entities)
	return out
}

// IDs returns the entity ids sorted alphabetically.
func (s *Snapshot) IDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.entities))
	for _, e := range s.entities {
		ids = append(ids, e.ID)
	}
	sort.Strings(ids)
	return ids
}
