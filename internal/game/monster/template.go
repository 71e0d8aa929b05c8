// Package monster provides monster templates, level-based stat growth,
// drop tables, and the per-map spawner.
package monster

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rarity tiers.
const (
	RarityNormal = "NORMAL"
	RarityElite  = "ELITE"
	RarityBoss   = "BOSS"
)

// Growth types.
const (
	GrowthLinear      = "LINEAR"
	GrowthExponential = "EXPONENTIAL"
	GrowthSegment     = "SEGMENT"
)

// Stats are the four combat numbers a monster carries into battle.
type Stats struct {
	MaxHP   float64 `yaml:"max_hp"`
	Attack  float64 `yaml:"atk"`
	Defense float64 `yaml:"def"`
	Speed   float64 `yaml:"spd"`
}

func (s Stats) add(o Stats, k float64) Stats {
	return Stats{
		MaxHP:   s.MaxHP + o.MaxHP*k,
		Attack:  s.Attack + o.Attack*k,
		Defense: s.Defense + o.Defense*k,
		Speed:   s.Speed + o.Speed*k,
	}
}

// Segment applies PerLevel growth for levels in [From, To].
type Segment struct {
	From     int   `yaml:"from"`
	To       int   `yaml:"to"`
	PerLevel Stats `yaml:"per_level"`
}

// Growth describes how stats scale with level.
type Growth struct {
	Type     string    `yaml:"type"`
	PerLevel Stats     `yaml:"per_level"`
	Rate     Stats     `yaml:"rate"`
	Segments []Segment `yaml:"segments"`
}

// Template defines a reusable monster archetype loaded from YAML.
type Template struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	Rarity    string    `yaml:"rarity"`
	BaseStats Stats     `yaml:"base_stats"`
	Growth    Growth    `yaml:"growth"`
	Caps      *Stats    `yaml:"caps"`
	Drops     DropTable `yaml:"drops"`
}

// Validate checks that the template satisfies basic invariants.
//
// Postcondition: Returns nil iff the template can produce stats at any level.
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("monster template: id must not be empty")
	}
	if t.Name == "" {
		return fmt.Errorf("monster template %q: name must not be empty", t.ID)
	}
	switch t.Rarity {
	case "", RarityNormal, RarityElite, RarityBoss:
	default:
		return fmt.Errorf("monster template %q: unknown rarity %q", t.ID, t.Rarity)
	}
	if t.BaseStats.MaxHP < 1 {
		return fmt.Errorf("monster template %q: base max_hp must be >= 1", t.ID)
	}
	switch t.Growth.Type {
	case GrowthLinear, GrowthExponential:
	case GrowthSegment:
		for i, s := range t.Growth.Segments {
			if s.From < 1 || s.To < s.From {
				return fmt.Errorf("monster template %q: segment[%d] range [%d,%d] is invalid", t.ID, i, s.From, s.To)
			}
		}
	default:
		return fmt.Errorf("monster template %q: growth type must be LINEAR, EXPONENTIAL or SEGMENT, got %q", t.ID, t.Growth.Type)
	}
	if err := t.Drops.Validate(); err != nil {
		return fmt.Errorf("monster template %q: %w", t.ID, err)
	}
	return nil
}

// Level is the integer stat line of a template at a given level.
type Level struct {
	MaxHP   int
	Attack  int
	Defense int
	Speed   int
}

// StatsAt derives the template's stats at level.
//
// Precondition: level >= 1.
// Postcondition: MaxHP >= 1, Attack >= 1, Defense >= 0, Speed >= 1; caps apply before flooring.
func (t *Template) StatsAt(level int) Level {
	diff := float64(level - 1)
	s := t.BaseStats
	switch t.Growth.Type {
	case GrowthLinear:
		s = s.add(t.Growth.PerLevel, diff)
	case GrowthExponential:
		r := t.Growth.Rate
		s = Stats{
			MaxHP:   s.MaxHP * math.Pow(r.MaxHP, diff),
			Attack:  s.Attack * math.Pow(r.Attack, diff),
			Defense: s.Defense * math.Pow(r.Defense, diff),
			Speed:   s.Speed * math.Pow(r.Speed, diff),
		}
	case GrowthSegment:
		for _, seg := range t.Growth.Segments {
			if level >= seg.From && level <= seg.To {
				s = s.add(seg.PerLevel, float64(level-seg.From))
				break
			}
		}
	}
	if c := t.Caps; c != nil {
		s.MaxHP = math.Min(s.MaxHP, c.MaxHP)
		s.Attack = math.Min(s.Attack, c.Attack)
		s.Defense = math.Min(s.Defense, c.Defense)
		s.Speed = math.Min(s.Speed, c.Speed)
	}
	return Level{
		MaxHP:   max(1, int(math.Floor(s.MaxHP))),
		Attack:  max(1, int(math.Floor(s.Attack))),
		Defense: max(0, int(math.Floor(s.Defense))),
		Speed:   max(1, int(math.Floor(s.Speed))),
	}
}

// Registry indexes templates by ID.
type Registry struct {
	templates map[string]*Template
}

// NewRegistry builds a Registry, rejecting duplicate IDs.
func NewRegistry(templates ...*Template) (*Registry, error) {
	r := &Registry{templates: make(map[string]*Template, len(templates))}
	for _, t := range templates {
		if _, dup := r.templates[t.ID]; dup {
			return nil, fmt.Errorf("duplicate monster template id %q", t.ID)
		}
		r.templates[t.ID] = t
	}
	return r, nil
}

// Template returns the template with the given ID.
func (r *Registry) Template(id string) (*Template, bool) {
	t, ok := r.templates[id]
	return t, ok
}

// Len returns the number of registered templates.
func (r *Registry) Len() int { return len(r.templates) }

// LoadTemplatesFromBytes parses a YAML list of templates.
func LoadTemplatesFromBytes(data []byte) ([]*Template, error) {
	var tmpls []*Template
	if err := yaml.Unmarshal(data, &tmpls); err != nil {
		return nil, fmt.Errorf("parsing monster YAML: %w", err)
	}
	for _, t := range tmpls {
		if t.Rarity == "" {
			t.Rarity = RarityNormal
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	return tmpls, nil
}

// LoadRegistry reads all *.yaml files in dir.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a registry or the first parse, validate, or duplicate error.
func LoadRegistry(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading monster dir %q: %w", dir, err)
	}
	var all []*Template
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		tmpls, err := LoadTemplatesFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		all = append(all, tmpls...)
	}
	return NewRegistry(all...)
}
