package battle_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/idlebattle/internal/game/battle"
	"github.com/cory-johannsen/idlebattle/internal/game/dice"
	"github.com/cory-johannsen/idlebattle/internal/game/inventory"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func player(id string, hp, spd, atk, def int) battle.Combatant {
	return battle.Combatant{
		ID: id, Side: battle.SidePlayer, Name: id, Level: 1,
		HP: hp, MaxHP: hp, MP: 10, MaxMP: 10,
		Speed: spd, Attack: atk, Defense: def,
		Status: battle.StatusAlive, AccountID: "acct-" + id,
	}
}

func monster(id string, hp, spd, atk, def int) battle.Combatant {
	return battle.Combatant{
		ID: id, Side: battle.SideMonster, Name: id, Level: 1,
		HP: hp, MaxHP: hp, Speed: spd, Attack: atk, Defense: def,
		Status: battle.StatusAlive, TemplateID: "wolf",
	}
}

func newRoom(ps ...battle.Combatant) *battle.Room {
	return &battle.Room{
		ID: "room-1", MapID: "map-1",
		Status: battle.RoomInProgress, Turn: 1, Phase: battle.PhaseTurnInput,
		DeadlineAt:   t0.Add(30 * time.Second),
		Participants: ps,
		Commands:     map[string]battle.Command{},
	}
}

func opts() battle.Options {
	return battle.Options{Now: t0, EscapeChance: 0.3, TurnDuration: 30 * time.Second}
}

func attack(actor, target string) battle.Command {
	return battle.Command{ID: "c-" + actor, ActorID: actor, Type: battle.CommandAttack, TargetID: target}
}

// failChance always loses probability rolls.
const failChance = (1 << 30) - 1

func TestResolveTurn_PlayerAttacksFirst(t *testing.T) {
	room := newRoom(player("p1", 50, 10, 15, 0), monster("m1", 20, 5, 3, 5))
	room.Commands["p1"] = attack("p1", "m1")

	res := battle.ResolveTurn(room, dice.NewSequenceSource(0), opts())

	m, _ := res.Room.Participant("m1")
	p, _ := res.Room.Participant("p1")
	assert.Equal(t, 10, m.HP)
	assert.Equal(t, battle.StatusAlive, m.Status)
	assert.Equal(t, 47, p.HP, "monster retaliates for max(1, 3-0)")
	assert.False(t, res.Ended)
	require.Len(t, res.Logs, 2)
	assert.Contains(t, res.Logs[0], "p1 attacks m1 for 10 damage")
	assert.Contains(t, res.Logs[1], "m1 attacks p1")
	assert.Equal(t, 2, res.Room.Turn)
	assert.Equal(t, battle.PhaseTurnInput, res.Room.Phase)
	assert.Empty(t, res.Room.Commands)
	assert.Equal(t, t0.Add(30*time.Second), res.Room.DeadlineAt)
}

func TestResolveTurn_DoesNotMutateInput(t *testing.T) {
	room := newRoom(player("p1", 50, 10, 15, 0), monster("m1", 20, 5, 3, 5))
	room.Commands["p1"] = attack("p1", "m1")
	before := room.Clone()

	_ = battle.ResolveTurn(room, dice.NewSequenceSource(0), opts())

	assert.Equal(t, before, room)
}

func TestResolveTurn_LastMonsterDiesPlayersWin(t *testing.T) {
	room := newRoom(
		player("p1", 50, 10, 30, 0),
		player("p2", 50, 1, 5, 0),
		monster("m1", 20, 5, 3, 5),
	)
	room.Participants[1].Status = battle.StatusEscaped
	room.Commands["p1"] = attack("p1", "m1")

	res := battle.ResolveTurn(room, dice.NewSequenceSource(0), opts())

	m, _ := res.Room.Participant("m1")
	assert.Equal(t, 0, m.HP)
	assert.Equal(t, battle.StatusDead, m.Status)
	assert.True(t, res.Ended)
	assert.Equal(t, battle.WinnerPlayers, res.Winner)
	assert.Equal(t, battle.PhaseEnded, res.Room.Phase)
	assert.Equal(t, battle.RoomFinished, res.Room.Status)
	assert.Equal(t, 1, res.Room.Turn, "turn does not advance on end")
}

func TestResolveTurn_KilledActorDoesNotAct(t *testing.T) {
	room := newRoom(player("p1", 50, 10, 100, 0), monster("m1", 20, 5, 100, 0))
	room.Commands["p1"] = attack("p1", "m1")

	res := battle.ResolveTurn(room, dice.NewSequenceSource(0), opts())

	p, _ := res.Room.Participant("p1")
	assert.Equal(t, 50, p.HP)
	assert.Len(t, res.Logs, 2, "one attack line and the end line")
}

func TestResolveTurn_AttackOnDeadTargetIsSkipped(t *testing.T) {
	room := newRoom(
		player("p1", 50, 10, 100, 0),
		player("p2", 50, 9, 100, 0),
		monster("m1", 20, 1, 1, 0),
		monster("m2", 20, 1, 1, 0),
	)
	room.Commands["p1"] = attack("p1", "m1")
	room.Commands["p2"] = attack("p2", "m1")

	res := battle.ResolveTurn(room, dice.NewSequenceSource(0), opts())

	assert.Contains(t, res.Logs[1], "already down")
	m2, _ := res.Room.Participant("m2")
	assert.Equal(t, 20, m2.HP)
	assert.False(t, res.Ended)
}

func TestResolveTurn_DefendReducesDamage(t *testing.T) {
	room := newRoom(player("p1", 50, 10, 1, 0), monster("m1", 50, 5, 20, 0))
	room.Commands["p1"] = battle.Command{ActorID: "p1", Type: battle.CommandDefend}

	res := battle.ResolveTurn(room, dice.NewSequenceSource(0), opts())

	p, _ := res.Room.Participant("p1")
	assert.Equal(t, 50-12, p.HP, "floor(20*0.6)")
	assert.Equal(t, battle.StatusAlive, p.Status, "defending clears at end of turn")
}

func TestResolveTurn_Escape(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		room := newRoom(player("p1", 50, 10, 1, 0), monster("m1", 50, 5, 20, 0))
		room.Commands["p1"] = battle.Command{ActorID: "p1", Type: battle.CommandEscape}
		res := battle.ResolveTurn(room, dice.NewSequenceSource(0), opts())
		p, _ := res.Room.Participant("p1")
		assert.Equal(t, battle.StatusEscaped, p.Status)
		assert.Equal(t, 50, p.HP, "monster targeted p1 before it escaped but acts after")
		assert.True(t, res.Ended)
		assert.Equal(t, battle.WinnerMonsters, res.Winner)
	})
	t.Run("failure", func(t *testing.T) {
		room := newRoom(player("p1", 50, 10, 1, 0), monster("m1", 50, 5, 20, 0))
		room.Commands["p1"] = battle.Command{ActorID: "p1", Type: battle.CommandEscape}
		res := battle.ResolveTurn(room, dice.NewSequenceSource(0, failChance), opts())
		p, _ := res.Room.Participant("p1")
		assert.Equal(t, battle.StatusAlive, p.Status)
		assert.Contains(t, res.Logs[0], "fails")
	})
}

func TestResolveTurn_Draw(t *testing.T) {
	room := newRoom(player("p1", 50, 10, 1, 0), monster("m1", 50, 5, 1, 0))
	room.Participants[0].Status = battle.StatusEscaped
	room.Participants[1].Status = battle.StatusEscaped
	res := battle.ResolveTurn(room, dice.NewSequenceSource(0), opts())
	assert.True(t, res.Ended)
	assert.Equal(t, battle.WinnerDraw, res.Winner)
}

func TestResolveTurn_UnimplementedCommandLogsNoOp(t *testing.T) {
	room := newRoom(player("p1", 50, 10, 1, 0), monster("m1", 50, 5, 1, 0))
	room.Commands["p1"] = battle.Command{ActorID: "p1", Type: battle.CommandSkill}
	res := battle.ResolveTurn(room, dice.NewSequenceSource(0), opts())
	assert.Contains(t, res.Logs[0], "no effect")
}

func TestResolveTurn_ItemHealsAllyAndReportsUse(t *testing.T) {
	healer := player("p1", 50, 10, 1, 0)
	healer.Items = []battle.Consumable{{
		Ref: "inst-1", ItemID: "pill", Name: "Pill", Quantity: 1,
		Target: inventory.TargetAlly, Effect: inventory.EffectHeal, Value: 30,
	}}
	hurt := player("p2", 50, 1, 1, 0)
	hurt.HP = 10
	room := newRoom(healer, hurt, monster("m1", 50, 5, 1, 0))
	room.Commands["p1"] = battle.Command{ActorID: "p1", Type: battle.CommandItem, ItemID: "pill", TargetID: "p2"}
	room.Commands["p2"] = battle.Command{ActorID: "p2", Type: battle.CommandWait}

	// monster targets p1 (index 0)
	res := battle.ResolveTurn(room, dice.NewSequenceSource(0), opts())

	p2, _ := res.Room.Participant("p2")
	assert.Equal(t, 40, p2.HP)
	p1, _ := res.Room.Participant("p1")
	assert.Empty(t, p1.Items)
	require.Len(t, res.ItemUses, 1)
	assert.Equal(t, battle.ItemUse{AccountID: "acct-p1", ActorID: "p1", ItemRef: "inst-1", ItemID: "pill", TargetID: "p2"}, res.ItemUses[0])
}

func TestResolveTurn_ItemScopeViolationSkipped(t *testing.T) {
	p := player("p1", 50, 10, 1, 0)
	p.Items = []battle.Consumable{{Ref: "i", ItemID: "pill", Name: "Pill", Quantity: 2, Target: inventory.TargetAlly, Effect: inventory.EffectHeal, Value: 5}}
	room := newRoom(p, monster("m1", 50, 5, 1, 0))
	room.Participants[1].HP = 10
	room.Commands["p1"] = battle.Command{ActorID: "p1", Type: battle.CommandItem, ItemID: "i", TargetID: "m1"}

	res := battle.ResolveTurn(room, dice.NewSequenceSource(0), opts())

	m, _ := res.Room.Participant("m1")
	assert.Equal(t, 10, m.HP)
	assert.Empty(t, res.ItemUses)
	assert.Contains(t, res.Logs[0], "cannot use")
}

func TestResolveTurn_SelfItemIgnoresTarget(t *testing.T) {
	p := player("p1", 50, 10, 1, 0)
	p.MP = 0
	p.Items = []battle.Consumable{{Ref: "i", ItemID: "mana", Name: "Mana", Quantity: 3, Target: inventory.TargetSelf, Effect: inventory.EffectMana, Value: 100}}
	room := newRoom(p, monster("m1", 50, 5, 1, 0))
	room.Commands["p1"] = battle.Command{ActorID: "p1", Type: battle.CommandItem, ItemID: "i", TargetID: "m1"}

	res := battle.ResolveTurn(room, dice.NewSequenceSource(0), opts())

	p1, _ := res.Room.Participant("p1")
	assert.Equal(t, 10, p1.MP, "capped at MaxMP")
	assert.Equal(t, 2, p1.Items[0].Quantity)
}

func TestDamage(t *testing.T) {
	assert.Equal(t, 10, battle.Damage(15, 5, false))
	assert.Equal(t, 1, battle.Damage(1, 50, false))
	assert.Equal(t, 6, battle.Damage(15, 5, true))
}

func TestTurnOrder_DescendingSpeedStable(t *testing.T) {
	ps := []battle.Combatant{
		player("a", 10, 5, 1, 0),
		monster("b", 10, 9, 1, 0),
		player("c", 10, 5, 1, 0),
		monster("d", 10, 1, 1, 0),
	}
	ps[3].Status = battle.StatusDead
	assert.Equal(t, []string{"b", "a", "c"}, battle.TurnOrder(ps))
}

func TestAutoFillMissing_TargetsWeakestEnemy(t *testing.T) {
	room := newRoom(
		player("p1", 50, 10, 1, 0),
		player("p2", 50, 10, 1, 0),
		monster("m1", 100, 5, 1, 0),
		monster("m2", 10, 5, 1, 0),
		monster("m3", 10, 5, 1, 0),
	)
	room.Participants[2].HP = 40 // 0.4
	room.Participants[3].HP = 4  // 0.4
	room.Participants[4].HP = 5  // 0.5
	room.Commands["p2"] = attack("p2", "m1")

	fills := battle.AutoFillMissing(room, t0)

	require.Equal(t, []battle.AutoFill{{PlayerID: "p1", TargetID: "m1"}}, fills)
	assert.True(t, room.Commands["p1"].Auto)
	assert.Equal(t, "c-p2", room.Commands["p2"].ID, "existing command untouched")
	assert.True(t, room.AllSubmitted())
}

func TestAutoFillMissing_NoLivingEnemy(t *testing.T) {
	room := newRoom(player("p1", 50, 10, 1, 0), monster("m1", 10, 5, 1, 0))
	room.Participants[1].Status = battle.StatusDead
	assert.Empty(t, battle.AutoFillMissing(room, t0))
	assert.Empty(t, room.Commands)
}

func TestSnapshot_ProjectsRoom(t *testing.T) {
	p := player("p1", 50, 10, 1, 0)
	p.Items = []battle.Consumable{{Ref: "x"}}
	room := newRoom(p, monster("m1", 10, 5, 1, 0))
	room.Commands["p1"] = attack("p1", "m1")

	s := room.Snapshot()
	assert.Equal(t, "room-1", s.RoomID)
	require.Len(t, s.Players, 1)
	require.Len(t, s.Monsters, 1)
	assert.Nil(t, s.Players[0].Items)
	assert.Equal(t, []battle.CommandView{{ParticipantID: "p1", Type: battle.CommandAttack, TargetID: "m1"}}, s.Commands)
	assert.Equal(t, []string{"p1"}, room.SubmittedPlayerIDs())
}

func genRoom(t *rapid.T) *battle.Room {
	var ps []battle.Combatant
	np := rapid.IntRange(1, 4).Draw(t, "players")
	nm := rapid.IntRange(1, 4).Draw(t, "monsters")
	stat := rapid.IntRange(1, 40)
	for i := 0; i < np; i++ {
		c := player(string(rune('a'+i)), rapid.IntRange(1, 80).Draw(t, "php"), stat.Draw(t, "pspd"), stat.Draw(t, "patk"), stat.Draw(t, "pdef"))
		c.HP = rapid.IntRange(1, c.MaxHP).Draw(t, "pcur")
		c.Items = []battle.Consumable{{Ref: "i", ItemID: "pill", Name: "Pill", Quantity: 1, Target: inventory.TargetAny, Effect: inventory.EffectHeal, Value: 1000}}
		ps = append(ps, c)
	}
	for i := 0; i < nm; i++ {
		ps = append(ps, monster(string(rune('m'+i)), rapid.IntRange(1, 80).Draw(t, "mhp"), stat.Draw(t, "mspd"), stat.Draw(t, "matk"), stat.Draw(t, "mdef")))
	}
	room := newRoom(ps...)
	types := []battle.CommandType{battle.CommandAttack, battle.CommandDefend, battle.CommandEscape, battle.CommandItem, battle.CommandWait}
	for i := 0; i < np; i++ {
		if !rapid.Bool().Draw(t, "submit") {
			continue
		}
		target := ps[rapid.IntRange(0, len(ps)-1).Draw(t, "target")].ID
		typ := rapid.SampledFrom(types).Draw(t, "type")
		room.Commands[ps[i].ID] = battle.Command{ActorID: ps[i].ID, Type: typ, TargetID: target, ItemID: "pill"}
	}
	return room
}

func TestProperty_ResolveKeepsResourceBounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		room := genRoom(rt)
		battle.AutoFillMissing(room, t0)
		res := battle.ResolveTurn(room, dice.NewSeededSource(rapid.Uint64().Draw(rt, "seed")), opts())
		for _, p := range res.Room.Participants {
			if p.HP < 0 || p.HP > p.MaxHP {
				rt.Fatalf("%s hp %d outside [0,%d]", p.ID, p.HP, p.MaxHP)
			}
			if p.MP < 0 || p.MP > p.MaxMP {
				rt.Fatalf("%s mp %d outside [0,%d]", p.ID, p.MP, p.MaxMP)
			}
			if (p.HP == 0) != (p.Status == battle.StatusDead) && p.Status != battle.StatusEscaped {
				rt.Fatalf("%s status %s with hp %d", p.ID, p.Status, p.HP)
			}
			if p.Status == battle.StatusDefending {
				rt.Fatalf("%s still defending after resolution", p.ID)
			}
		}
		ended, _ := res.Room.CheckEnd()
		if ended != res.Ended {
			rt.Fatalf("Ended=%v but CheckEnd=%v", res.Ended, ended)
		}
	})
}

func TestProperty_AutoFillTargetsLivingEnemy(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		room := genRoom(rt)
		if rapid.Bool().Draw(rt, "killOne") {
			room.Participants[len(room.Participants)-1].HP = 0
			room.Participants[len(room.Participants)-1].Status = battle.StatusDead
		}
		fills := battle.AutoFillMissing(room, t0)
		anyEnemy := len(room.Living(battle.SideMonster)) > 0
		for _, f := range fills {
			m, ok := room.Participant(f.TargetID)
			if !ok || !m.Active() || m.IsPlayer() {
				rt.Fatalf("fill %+v targets invalid participant", f)
			}
		}
		if anyEnemy && !room.AllSubmitted() {
			rt.Fatalf("living player left without a command")
		}
	})
}

func TestProperty_TurnOrderIsSortedPermutationOfLiving(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		room := genRoom(rt)
		order := battle.TurnOrder(room.Participants)
		living := 0
		for _, p := range room.Participants {
			if p.Active() {
				living++
			}
		}
		if len(order) != living {
			rt.Fatalf("order has %d entries, %d living", len(order), living)
		}
		seen := map[string]bool{}
		prev := int(^uint(0) >> 1)
		for _, id := range order {
			if seen[id] {
				rt.Fatalf("duplicate %s", id)
			}
			seen[id] = true
			c, _ := room.Participant(id)
			if c.Speed > prev {
				rt.Fatalf("speed order violated at %s", id)
			}
			prev = c.Speed
		}
	})
}

func TestProperty_DamageFloorAndDefend(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		atk := rapid.IntRange(0, 500).Draw(rt, "atk")
		def := rapid.IntRange(0, 500).Draw(rt, "def")
		base := battle.Damage(atk, def, false)
		if base < 1 {
			rt.Fatalf("damage %d < 1", base)
		}
		if got := battle.Damage(atk, def, true); got != base*6/10 {
			rt.Fatalf("defended damage %d != floor(%d*0.6)", got, base)
		}
	})
}
