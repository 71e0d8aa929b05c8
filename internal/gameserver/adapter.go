package gameserver

import (
	"github.com/cory-johannsen/idlebattle/internal/game/battle"
	"github.com/cory-johannsen/idlebattle/internal/game/character"
	"github.com/cory-johannsen/idlebattle/internal/game/inventory"
)

// PlayerParticipantID returns the stable participant id for an account's player.
func PlayerParticipantID(accountID string) string {
	return "player_" + accountID
}

// CombatantAdapter converts between persistent characters and battle combatants.
type CombatantAdapter struct {
	items          *inventory.Registry
	penaltyPercent int
}

// NewCombatantAdapter creates a CombatantAdapter.
//
// Precondition: items must be non-nil; 0 <= penaltyPercent <= 100.
func NewCombatantAdapter(items *inventory.Registry, penaltyPercent int) *CombatantAdapter {
	return &CombatantAdapter{items: items, penaltyPercent: penaltyPercent}
}

// FromCharacter builds a player combatant for c at board slot index.
//
// Postcondition: HP and MP are clamped to their maxima; a character at 0 hp
// enters dead; Items holds every consumable stack the registry recognises.
func (a *CombatantAdapter) FromCharacter(c *character.Character, index int) battle.Combatant {
	hp := min(max(c.HP, 0), c.MaxHP)
	mp := min(max(c.MP, 0), c.MaxMP)
	status := battle.StatusAlive
	if hp == 0 {
		status = battle.StatusDead
	}
	return battle.Combatant{
		ID:        PlayerParticipantID(c.AccountID),
		Side:      battle.SidePlayer,
		Name:      c.Name,
		Level:     c.Level,
		HP:        hp,
		MaxHP:     c.MaxHP,
		MP:        mp,
		MaxMP:     c.MaxMP,
		Speed:     c.Stats.Speed,
		Attack:    max(c.Stats.PhysicalDamage, c.Stats.MagicDamage),
		Defense:   max(c.Stats.PhysicalDefense, c.Stats.MagicDefense),
		Status:    status,
		Position:  battle.PlayerPosition(index),
		AccountID: c.AccountID,
		Items:     a.consumables(c.Inventory),
	}
}

func (a *CombatantAdapter) consumables(slots []inventory.Slot) []battle.Consumable {
	var out []battle.Consumable
	for _, s := range slots {
		def, ok := a.items.Item(s.ItemID)
		if !ok || def.Kind != inventory.KindConsumable || def.Effect == nil {
			continue
		}
		out = append(out, battle.Consumable{
			Ref:      s.InstanceID,
			ItemID:   s.ItemID,
			Name:     def.Name,
			Quantity: s.Quantity,
			Target:   def.Target,
			Effect:   def.Effect.Type,
			Value:    def.Effect.Value,
		})
	}
	return out
}

// ApplyFinalState writes a finished combatant's hp and mp onto c.
// Returns true if the death penalty was applied.
func (a *CombatantAdapter) ApplyFinalState(cb battle.Combatant, c *character.Character) bool {
	return c.SetBattleResult(cb.HP, cb.MP, a.penaltyPercent)
}
