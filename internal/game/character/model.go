// Package character defines the persistent character model and the pure
// state transitions applied to it after a battle.
package character

import (
	"errors"
	"time"

	"github.com/cory-johannsen/idlebattle/internal/game/inventory"
)

// ErrNotFound is returned by stores when no character exists for an account.
var ErrNotFound = errors.New("character not found")

// CombatStats holds the combat attributes derived from a character's
// cultivation and gear. They are read-only from the battle's perspective.
type CombatStats struct {
	PhysicalDamage  int `json:"pdmg"`
	MagicDamage     int `json:"mdmg"`
	PhysicalDefense int `json:"pdef"`
	MagicDefense    int `json:"mdef"`
	Speed           int `json:"spd"`
}

// Character represents a player character's persistent state.
//
// Invariant: 0 <= HP <= MaxHP and 0 <= MP <= MaxMP after any transition in this package.
type Character struct {
	AccountID string
	Name      string

	Level      int
	Experience int64

	HP    int
	MaxHP int
	MP    int
	MaxMP int

	Stats CombatStats

	// Qi and SpiritStones are the two soft currencies.
	Qi           int64
	SpiritStones int64

	Inventory []inventory.Slot

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New returns a fresh level-1 character for accountID with full resources.
//
// Precondition: accountID and name must be non-empty.
func New(accountID, name string) *Character {
	return &Character{
		AccountID: accountID,
		Name:      name,
		Level:     1,
		HP:        100,
		MaxHP:     100,
		MP:        50,
		MaxMP:     50,
		Stats: CombatStats{
			PhysicalDamage:  12,
			MagicDamage:     8,
			PhysicalDefense: 4,
			MagicDefense:    3,
			Speed:           10,
		},
	}
}

// Clone returns a deep copy of c.
func (c *Character) Clone() *Character {
	cp := *c
	cp.Inventory = make([]inventory.Slot, len(c.Inventory))
	copy(cp.Inventory, c.Inventory)
	return &cp
}
