package inventory

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// DefaultCapacity is the slot limit for a character's inventory.
const DefaultCapacity = 100

// ErrInventoryFull is returned when an item cannot fit into the remaining slots.
var ErrInventoryFull = errors.New("inventory full")

// ErrItemNotFound is returned when no slot matches the requested reference.
var ErrItemNotFound = errors.New("item not found in inventory")

// Slot is one occupied inventory slot.
type Slot struct {
	InstanceID string `json:"instanceId"`
	ItemID     string `json:"itemId"`
	Quantity   int    `json:"quantity"`
	Level      int    `json:"level"`
}

// Backpack is a slot-limited container with per-template stacking.
type Backpack struct {
	Capacity int
	slots    []Slot
}

// NewBackpack creates a Backpack holding a copy of slots.
//
// Precondition: capacity >= 0.
// Postcondition: returned Backpack owns its slot slice.
func NewBackpack(capacity int, slots []Slot) *Backpack {
	cp := make([]Slot, len(slots))
	copy(cp, slots)
	return &Backpack{Capacity: capacity, slots: cp}
}

// Add places quantity units of def at the given level into the backpack.
// It is atomic: if capacity would be exceeded, no state is modified.
//
// Precondition: quantity > 0.
// Postcondition: on success every unit is stored without exceeding Capacity
// or def.MaxStack per slot; on ErrInventoryFull the backpack is unchanged.
func (b *Backpack) Add(def *ItemDef, quantity, level int) error {
	if quantity <= 0 {
		return fmt.Errorf("backpack: quantity must be > 0")
	}
	maxStack := def.MaxStack
	if maxStack < 1 || !def.Stackable {
		maxStack = 1
	}

	// Phase 1: plan merges into existing stacks of the same template and level.
	remaining := quantity
	merges := map[int]int{}
	if def.Stackable {
		for i := range b.slots {
			if remaining == 0 {
				break
			}
			s := b.slots[i]
			if s.ItemID != def.ID || s.Level != level || s.Quantity >= maxStack {
				continue
			}
			take := min(remaining, maxStack-s.Quantity)
			merges[i] = take
			remaining -= take
		}
	}

	newSlots := (remaining + maxStack - 1) / maxStack
	if len(b.slots)+newSlots > b.Capacity {
		return fmt.Errorf("backpack: adding %d of %q: %w", quantity, def.ID, ErrInventoryFull)
	}

	// Phase 2: apply.
	for i, take := range merges {
		b.slots[i].Quantity += take
	}
	for remaining > 0 {
		q := min(remaining, maxStack)
		b.slots = append(b.slots, Slot{
			InstanceID: uuid.New().String(),
			ItemID:     def.ID,
			Quantity:   q,
			Level:      level,
		})
		remaining -= q
	}
	return nil
}

// Find returns the slot matching ref, trying instance IDs first and then
// template IDs (first stack in slot order).
func (b *Backpack) Find(ref string) (Slot, bool) {
	if i := b.index(ref); i >= 0 {
		return b.slots[i], true
	}
	return Slot{}, false
}

func (b *Backpack) index(ref string) int {
	for i := range b.slots {
		if b.slots[i].InstanceID == ref {
			return i
		}
	}
	for i := range b.slots {
		if b.slots[i].ItemID == ref {
			return i
		}
	}
	return -1
}

// Consume removes one unit from the slot matching ref.
//
// Postcondition: the slot's quantity is decremented, or the slot is removed
// when its last unit is consumed. Returns the slot as it was before use.
func (b *Backpack) Consume(ref string) (Slot, error) {
	i := b.index(ref)
	if i < 0 {
		return Slot{}, fmt.Errorf("backpack: %q: %w", ref, ErrItemNotFound)
	}
	before := b.slots[i]
	if before.Quantity <= 1 {
		b.slots = append(b.slots[:i], b.slots[i+1:]...)
	} else {
		b.slots[i].Quantity--
	}
	return before, nil
}

// Slots returns a snapshot copy of all occupied slots.
func (b *Backpack) Slots() []Slot {
	out := make([]Slot, len(b.slots))
	copy(out, b.slots)
	return out
}

// UsedSlots returns the number of occupied slots.
func (b *Backpack) UsedSlots() int {
	return len(b.slots)
}

// CountOf returns the total quantity held of a template.
func (b *Backpack) CountOf(itemID string) int {
	n := 0
	for _, s := range b.slots {
		if s.ItemID == itemID {
			n += s.Quantity
		}
	}
	return n
}
