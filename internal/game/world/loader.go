package world

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlMapFile is the top-level YAML structure for map files.
type yamlMapFile struct {
	Maps []Map `yaml:"maps"`
}

// Registry indexes maps by ID. It is immutable after loading.
type Registry struct {
	maps map[string]*Map
}

// NewRegistry builds a Registry from already-validated maps.
//
// Postcondition: Returns an error on a duplicate ID.
func NewRegistry(maps ...*Map) (*Registry, error) {
	r := &Registry{maps: make(map[string]*Map, len(maps))}
	for _, m := range maps {
		if _, dup := r.maps[m.ID]; dup {
			return nil, fmt.Errorf("duplicate map id %q", m.ID)
		}
		r.maps[m.ID] = m
	}
	return r, nil
}

// Map returns the map with the given ID.
func (r *Registry) Map(id string) (*Map, bool) {
	m, ok := r.maps[id]
	return m, ok
}

// IDs returns every map ID in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.maps))
	for id := range r.maps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadMapsFromBytes parses and validates a map file.
func LoadMapsFromBytes(data []byte) ([]*Map, error) {
	var f yamlMapFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing map YAML: %w", err)
	}
	out := make([]*Map, 0, len(f.Maps))
	for i := range f.Maps {
		m := f.Maps[i]
		if err := m.Validate(); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, nil
}

// LoadRegistry reads all *.yaml files in dir into a Registry.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns the registry or the first parse, validate, or duplicate error.
func LoadRegistry(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading map dir %q: %w", dir, err)
	}
	var all []*Map
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		maps, err := LoadMapsFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		all = append(all, maps...)
	}
	return NewRegistry(all...)
}
