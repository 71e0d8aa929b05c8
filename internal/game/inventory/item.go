package inventory

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Kind constants for ItemDef.Kind.
const (
	KindEquipment  = "equipment"
	KindConsumable = "consumable"
	KindMaterial   = "material"
)

var validKinds = map[string]bool{
	KindEquipment:  true,
	KindConsumable: true,
	KindMaterial:   true,
}

// Effect type constants for consumables.
const (
	EffectHeal = "heal"
	EffectMana = "mana"
	EffectBuff = "buff"
	EffectStat = "stat"
)

var validEffects = map[string]bool{
	EffectHeal: true,
	EffectMana: true,
	EffectBuff: true,
	EffectStat: true,
}

// Target scope constants restricting who a consumable may be used on.
const (
	TargetSelf  = "self"
	TargetAlly  = "ally"
	TargetEnemy = "enemy"
	TargetAny   = "any"
)

var validTargets = map[string]bool{
	TargetSelf:  true,
	TargetAlly:  true,
	TargetEnemy: true,
	TargetAny:   true,
}

// DefaultMaxStack is the stack ceiling for stackable items that do not set one.
const DefaultMaxStack = 99

// Effect is the consumable payload applied on use.
type Effect struct {
	Type  string `yaml:"type"`
	Value int    `yaml:"value"`
	// Stat names the attribute a buff or stat effect would touch.
	Stat string `yaml:"stat"`
	// Turns is the duration of a buff in battle turns.
	Turns int `yaml:"turns"`
}

// ItemDef defines the static properties of an item template loaded from YAML.
type ItemDef struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Kind        string `yaml:"kind"`
	// Level is the default generation level for equipment and consumables.
	Level     int  `yaml:"level"`
	Stackable bool `yaml:"stackable"`
	MaxStack  int  `yaml:"max_stack"`
	// Target restricts consumable use; defaults to self.
	Target string  `yaml:"target"`
	Effect *Effect `yaml:"effect"`
	// MinLevel and MaxLevel bound the monster level band a material drops in.
	MinLevel int `yaml:"min_level"`
	MaxLevel int `yaml:"max_level"`
}

// applyDefaults fills optional fields left empty in YAML.
func (d *ItemDef) applyDefaults() {
	if d.MaxStack == 0 {
		if d.Stackable {
			d.MaxStack = DefaultMaxStack
		} else {
			d.MaxStack = 1
		}
	}
	if d.Level == 0 {
		d.Level = 1
	}
	if d.Kind == KindConsumable && d.Target == "" {
		d.Target = TargetSelf
	}
}

// Validate checks that the ItemDef satisfies its invariants.
//
// Precondition: d is non-nil.
// Postcondition: returns nil iff all fields are valid.
func (d *ItemDef) Validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("ID must not be empty"))
	}
	if d.Name == "" {
		errs = append(errs, errors.New("Name must not be empty"))
	}
	if !validKinds[d.Kind] {
		errs = append(errs, fmt.Errorf("Kind must be one of equipment, consumable, material; got %q", d.Kind))
	}
	if d.MaxStack < 1 || d.MaxStack > DefaultMaxStack {
		errs = append(errs, fmt.Errorf("MaxStack must be in [1,%d]", DefaultMaxStack))
	}
	if !d.Stackable && d.MaxStack != 1 {
		errs = append(errs, errors.New("non-stackable items must have MaxStack 1"))
	}
	if d.Kind == KindConsumable {
		if d.Effect == nil {
			errs = append(errs, errors.New("Effect is required when Kind is consumable"))
		} else if !validEffects[d.Effect.Type] {
			errs = append(errs, fmt.Errorf("Effect.Type must be one of heal, mana, buff, stat; got %q", d.Effect.Type))
		}
		if !validTargets[d.Target] {
			errs = append(errs, fmt.Errorf("Target must be one of self, ally, enemy, any; got %q", d.Target))
		}
	}
	if d.Kind == KindMaterial {
		if d.MinLevel < 1 || d.MaxLevel < d.MinLevel {
			errs = append(errs, fmt.Errorf("material level band [%d,%d] is invalid", d.MinLevel, d.MaxLevel))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("item validation failed: %v", errs)
	}
	return nil
}

// LoadItems reads all *.yaml and *.yml files from dir. Each file holds a
// list of item templates.
//
// Precondition: dir is a readable directory path.
// Postcondition: returns all valid ItemDefs or the first encountered error.
func LoadItems(dir string) ([]*ItemDef, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("LoadItems: cannot read directory %q: %w", dir, err)
	}

	var items []*ItemDef
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("LoadItems: cannot read file %q: %w", path, err)
		}
		var defs []*ItemDef
		if err := yaml.Unmarshal(data, &defs); err != nil {
			return nil, fmt.Errorf("LoadItems: cannot parse file %q: %w", path, err)
		}
		for _, d := range defs {
			d.applyDefaults()
			if err := d.Validate(); err != nil {
				return nil, fmt.Errorf("LoadItems: invalid item %q in %q: %w", d.ID, path, err)
			}
		}
		items = append(items, defs...)
	}
	return items, nil
}
