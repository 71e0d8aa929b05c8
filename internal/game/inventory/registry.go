package inventory

import (
	"fmt"
	"sort"
)

// Registry holds every loaded item template indexed by ID.
//
// A Registry is immutable after loading and safe for concurrent reads.
type Registry struct {
	items     map[string]*ItemDef
	materials []*ItemDef
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]*ItemDef)}
}

// LoadRegistry loads every item template under dir into a new Registry.
func LoadRegistry(dir string) (*Registry, error) {
	defs, err := LoadItems(dir)
	if err != nil {
		return nil, err
	}
	r := NewRegistry()
	for _, d := range defs {
		if err := r.RegisterItem(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// RegisterItem adds d to the registry.
//
// Precondition: d must not be nil.
// Postcondition: Item(d.ID) returns (d, true); returns error if d.ID already registered.
func (r *Registry) RegisterItem(d *ItemDef) error {
	if _, exists := r.items[d.ID]; exists {
		return fmt.Errorf("inventory: Registry.RegisterItem: item ID %q already registered", d.ID)
	}
	r.items[d.ID] = d
	if d.Kind == KindMaterial {
		r.materials = append(r.materials, d)
		sort.Slice(r.materials, func(i, j int) bool { return r.materials[i].ID < r.materials[j].ID })
	}
	return nil
}

// Item returns the ItemDef for the given id and whether it was found.
func (r *Registry) Item(id string) (*ItemDef, bool) {
	d, ok := r.items[id]
	return d, ok
}

// MaterialsFor returns the material pool whose level band contains level,
// ordered by ID.
func (r *Registry) MaterialsFor(level int) []*ItemDef {
	var out []*ItemDef
	for _, m := range r.materials {
		if level >= m.MinLevel && level <= m.MaxLevel {
			out = append(out, m)
		}
	}
	return out
}

// Len returns the number of registered templates.
func (r *Registry) Len() int { return len(r.items) }
