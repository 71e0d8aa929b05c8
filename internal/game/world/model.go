// Package world holds the encounter map definitions: which monsters a map
// spawns and the level band they spawn in.
package world

import "fmt"

// PoolEntry is one weighted monster template in a map's spawn pool.
type PoolEntry struct {
	MonsterID string `yaml:"monster"`
	Weight    int    `yaml:"weight"`
}

// Map is a battle encounter area.
//
// Invariant: 1 <= MinLevel <= MaxLevel and every pool weight is positive.
type Map struct {
	ID          string      `yaml:"id"`
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	MinLevel    int         `yaml:"min_level"`
	MaxLevel    int         `yaml:"max_level"`
	Pool        []PoolEntry `yaml:"monster_pool"`
}

// Validate checks the map invariants.
//
// Postcondition: Returns nil iff the map is usable by the spawner.
func (m *Map) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("map: id must not be empty")
	}
	if m.MinLevel < 1 || m.MaxLevel < m.MinLevel {
		return fmt.Errorf("map %q: level range [%d,%d] is invalid", m.ID, m.MinLevel, m.MaxLevel)
	}
	if len(m.Pool) == 0 {
		return fmt.Errorf("map %q: monster_pool must not be empty", m.ID)
	}
	for i, e := range m.Pool {
		if e.MonsterID == "" {
			return fmt.Errorf("map %q: monster_pool[%d] must name a monster", m.ID, i)
		}
		if e.Weight <= 0 {
			return fmt.Errorf("map %q: monster_pool[%d] weight must be > 0, got %d", m.ID, i, e.Weight)
		}
	}
	return nil
}

// ClampLevel bounds level to the map's band.
func (m *Map) ClampLevel(level int) int {
	return max(m.MinLevel, min(m.MaxLevel, level))
}

// TotalWeight returns the sum of pool weights.
func (m *Map) TotalWeight() int {
	total := 0
	for _, e := range m.Pool {
		total += e.Weight
	}
	return total
}
