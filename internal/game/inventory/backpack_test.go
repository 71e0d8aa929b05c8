package inventory_test

import (
	"errors"
	"testing"

	"pgregory.net/rapid"

	"github.com/cory-johannsen/idlebattle/internal/game/inventory"
)

func gearDef(id string) *inventory.ItemDef {
	return &inventory.ItemDef{ID: id, Name: id, Kind: inventory.KindEquipment, MaxStack: 1}
}

func stackDef(id string, maxStack int) *inventory.ItemDef {
	return &inventory.ItemDef{ID: id, Name: id, Kind: inventory.KindMaterial, Stackable: true, MaxStack: maxStack, MinLevel: 1, MaxLevel: 10}
}

func TestBackpack_Add_SingleItem(t *testing.T) {
	b := inventory.NewBackpack(10, nil)
	if err := b.Add(gearDef("sword"), 1, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	slots := b.Slots()
	if len(slots) != 1 || slots[0].ItemID != "sword" || slots[0].Level != 3 || slots[0].InstanceID == "" {
		t.Fatalf("unexpected slots: %+v", slots)
	}
}

func TestBackpack_Add_StackableMergesIntoExisting(t *testing.T) {
	b := inventory.NewBackpack(10, nil)
	def := stackDef("herb", 99)
	if err := b.Add(def, 5, 1); err != nil {
		t.Fatal(err)
	}
	if err := b.Add(def, 7, 1); err != nil {
		t.Fatal(err)
	}
	if b.UsedSlots() != 1 || b.CountOf("herb") != 12 {
		t.Fatalf("expected one stack of 12, got %+v", b.Slots())
	}
}

func TestBackpack_Add_DifferentLevelsDoNotMerge(t *testing.T) {
	b := inventory.NewBackpack(10, nil)
	def := stackDef("herb", 99)
	_ = b.Add(def, 1, 1)
	_ = b.Add(def, 1, 2)
	if b.UsedSlots() != 2 {
		t.Fatalf("expected 2 slots, got %d", b.UsedSlots())
	}
}

func TestBackpack_Add_OverflowsIntoNewStack(t *testing.T) {
	b := inventory.NewBackpack(10, nil)
	def := stackDef("herb", 99)
	if err := b.Add(def, 150, 1); err != nil {
		t.Fatal(err)
	}
	slots := b.Slots()
	if len(slots) != 2 || slots[0].Quantity != 99 || slots[1].Quantity != 51 {
		t.Fatalf("unexpected stacks: %+v", slots)
	}
}

func TestBackpack_Add_FullIsAtomic(t *testing.T) {
	b := inventory.NewBackpack(2, nil)
	_ = b.Add(gearDef("a"), 1, 1)
	before := b.Slots()
	err := b.Add(gearDef("b"), 2, 1)
	if !errors.Is(err, inventory.ErrInventoryFull) {
		t.Fatalf("expected ErrInventoryFull, got %v", err)
	}
	if len(b.Slots()) != len(before) {
		t.Fatal("backpack mutated on failed add")
	}
}

func TestBackpack_Add_FullStillMergesIntoOpenStack(t *testing.T) {
	b := inventory.NewBackpack(1, nil)
	def := stackDef("herb", 99)
	_ = b.Add(def, 10, 1)
	if err := b.Add(def, 5, 1); err != nil {
		t.Fatalf("merge into existing stack should not need a slot: %v", err)
	}
}

func TestBackpack_Consume_DecrementsThenRemoves(t *testing.T) {
	b := inventory.NewBackpack(10, []inventory.Slot{{InstanceID: "i1", ItemID: "pill", Quantity: 2, Level: 1}})
	if _, err := b.Consume("pill"); err != nil {
		t.Fatal(err)
	}
	if b.CountOf("pill") != 1 {
		t.Fatalf("expected 1 remaining, got %d", b.CountOf("pill"))
	}
	before, err := b.Consume("i1")
	if err != nil {
		t.Fatal(err)
	}
	if before.Quantity != 1 || b.UsedSlots() != 0 {
		t.Fatalf("expected slot removed, got %+v", b.Slots())
	}
	if _, err := b.Consume("pill"); !errors.Is(err, inventory.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestBackpack_Find_PrefersInstanceID(t *testing.T) {
	b := inventory.NewBackpack(10, []inventory.Slot{
		{InstanceID: "pill", ItemID: "other", Quantity: 1},
		{InstanceID: "x", ItemID: "pill", Quantity: 1},
	})
	s, ok := b.Find("pill")
	if !ok || s.ItemID != "other" {
		t.Fatalf("expected instance match first, got %+v", s)
	}
}

func TestBackpack_NewBackpackCopiesSlots(t *testing.T) {
	src := []inventory.Slot{{InstanceID: "i1", ItemID: "pill", Quantity: 1}}
	b := inventory.NewBackpack(10, src)
	_, _ = b.Consume("i1")
	if src[0].Quantity != 1 {
		t.Fatal("NewBackpack must not alias its input")
	}
}

func TestProperty_Backpack_NeverExceedsCapacityOrStack(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.IntRange(1, 20).Draw(rt, "capacity")
		maxStack := rapid.IntRange(1, 99).Draw(rt, "maxStack")
		def := stackDef("herb", maxStack)
		b := inventory.NewBackpack(capacity, nil)
		adds := rapid.SliceOfN(rapid.IntRange(1, 200), 1, 20).Draw(rt, "adds")
		total := 0
		for _, q := range adds {
			if err := b.Add(def, q, 1); err == nil {
				total += q
			}
		}
		if b.UsedSlots() > capacity {
			rt.Fatalf("used %d > capacity %d", b.UsedSlots(), capacity)
		}
		for _, s := range b.Slots() {
			if s.Quantity > maxStack || s.Quantity < 1 {
				rt.Fatalf("bad stack quantity %d (max %d)", s.Quantity, maxStack)
			}
		}
		if b.CountOf("herb") != total {
			rt.Fatalf("count %d != accepted total %d", b.CountOf("herb"), total)
		}
	})
}
