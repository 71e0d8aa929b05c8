package gameserver

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/idlebattle/internal/game/battle"
	"github.com/cory-johannsen/idlebattle/internal/game/character"
	"github.com/cory-johannsen/idlebattle/internal/game/dice"
	"github.com/cory-johannsen/idlebattle/internal/game/inventory"
	"github.com/cory-johannsen/idlebattle/internal/game/monster"
	"github.com/cory-johannsen/idlebattle/internal/pkg/clock"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// memStore is an in-memory CharacterStore.
type memStore struct {
	mu    sync.Mutex
	chars map[string]*character.Character
	saves int
}

func newMemStore(chars ...*character.Character) *memStore {
	s := &memStore{chars: map[string]*character.Character{}}
	for _, c := range chars {
		s.chars[c.AccountID] = c.Clone()
	}
	return s
}

func (s *memStore) Load(_ context.Context, accountID string) (*character.Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chars[accountID]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", accountID, character.ErrNotFound)
	}
	return c.Clone(), nil
}

func (s *memStore) Save(_ context.Context, c *character.Character) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chars[c.AccountID] = c.Clone()
	s.saves++
	return nil
}

func (s *memStore) get(accountID string) *character.Character {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chars[accountID].Clone()
}

// recorder is a Broadcaster that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Broadcast(_ string, e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) types() []EventType {
	var out []EventType
	for _, e := range r.all() {
		out = append(out, e.Type())
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

func (r *recorder) last(t EventType) (Event, bool) {
	evs := r.all()
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i].Type() == t {
			return evs[i], true
		}
	}
	return nil, false
}

func (r *recorder) count(t EventType) int {
	n := 0
	for _, e := range r.all() {
		if e.Type() == t {
			n++
		}
	}
	return n
}

// fixedSpawner always spawns clones of its monsters.
type fixedSpawner struct {
	monsters []battle.Combatant
	err      error
}

func (f fixedSpawner) Spawn(mapID string, _ float64, _ int) ([]battle.Combatant, error) {
	if f.err != nil {
		return nil, f.err
	}
	if mapID != "meadow" {
		return nil, fmt.Errorf("spawning for %q: %w", mapID, monster.ErrUnknownMap)
	}
	out := make([]battle.Combatant, len(f.monsters))
	for i, m := range f.monsters {
		out[i] = m.Clone()
	}
	return out, nil
}

func slime(id string, hp, atk int) battle.Combatant {
	return battle.Combatant{
		ID:         id,
		Side:       battle.SideMonster,
		Name:       "Slime " + id,
		Level:      5,
		HP:         hp,
		MaxHP:      hp,
		Speed:      1,
		Attack:     atk,
		Defense:    0,
		Status:     battle.StatusAlive,
		TemplateID: "slime",
	}
}

func hero(accountID string, level int) *character.Character {
	c := character.New(accountID, "Hero "+accountID)
	c.Level = level
	return c
}

const slimeYAML = `
- id: slime
  name: Slime
  base_stats: {max_hp: 30, atk: 5, def: 0, spd: 1}
  growth:
    type: LINEAR
    per_level: {max_hp: 0, atk: 0, def: 0, spd: 0}
  drops:
    - item: "@material"
      chance: 1.0
      quantity: "2"
    - item: potion
      chance: 1.0
`

func testItems(t *testing.T) *inventory.Registry {
	t.Helper()
	reg := inventory.NewRegistry()
	require.NoError(t, reg.RegisterItem(&inventory.ItemDef{
		ID: "potion", Name: "Potion", Kind: inventory.KindConsumable, Level: 1,
		Stackable: true, MaxStack: 99, Target: inventory.TargetSelf,
		Effect: &inventory.Effect{Type: inventory.EffectHeal, Value: 30},
	}))
	require.NoError(t, reg.RegisterItem(&inventory.ItemDef{
		ID: "iron_ore", Name: "Iron Ore", Kind: inventory.KindMaterial, Level: 1,
		Stackable: true, MaxStack: 99, MinLevel: 1, MaxLevel: 10,
	}))
	require.NoError(t, reg.RegisterItem(&inventory.ItemDef{
		ID: "sword", Name: "Sword", Kind: inventory.KindEquipment, Level: 3, MaxStack: 1,
	}))
	return reg
}

func testTemplates(t *testing.T) *monster.Registry {
	t.Helper()
	tmpls, err := monster.LoadTemplatesFromBytes([]byte(slimeYAML))
	require.NoError(t, err)
	reg, err := monster.NewRegistry(tmpls...)
	require.NoError(t, err)
	return reg
}

type fixture struct {
	clock   *clock.Manual
	store   *memStore
	events  *recorder
	rooms   *RoomService
	rewards *RewardService
	persist *Persister
	handler *BattleHandler
}

type fixtureOpts struct {
	clock        clock.Clock
	turnDuration time.Duration
	escapeChance float64
	src          dice.Source
	logger       *zap.Logger
}

func newFixture(t *testing.T, chars []*character.Character, monsters []battle.Combatant) *fixture {
	return newFixtureWith(t, chars, monsters, fixtureOpts{})
}

func newFixtureWith(t *testing.T, chars []*character.Character, monsters []battle.Combatant, o fixtureOpts) *fixture {
	t.Helper()
	logger := o.logger
	if logger == nil {
		logger = zaptest.NewLogger(t)
	}
	manual := clock.NewManual(epoch)
	var clk clock.Clock = manual
	if o.clock != nil {
		clk = o.clock
	}
	if o.turnDuration == 0 {
		o.turnDuration = time.Hour
	}
	if o.src == nil {
		o.src = dice.NewSeededSource(7)
	}

	items := testItems(t)
	store := newMemStore(chars...)
	adapter := NewCombatantAdapter(items, 10)
	rewards := NewRewardService(items, testTemplates(t), dice.NewLoggedRoller(o.src, logger), inventory.DefaultCapacity, logger)
	persist := NewPersister(store, adapter, rewards, time.Second, logger)
	rooms := NewRoomService(store, adapter, fixedSpawner{monsters: monsters}, o.src, clk,
		RoomSettings{TurnDuration: o.turnDuration, EscapeChance: o.escapeChance}, logger)
	events := &recorder{}
	h := NewBattleHandler(rooms, rewards, persist, events, clk, time.Second, logger)
	t.Cleanup(h.Stop)
	return &fixture{
		clock:   manual,
		store:   store,
		events:  events,
		rooms:   rooms,
		rewards: rewards,
		persist: persist,
		handler: h,
	}
}

func (f *fixture) create(t *testing.T, caller string, others ...string) battle.Snapshot {
	t.Helper()
	snap, err := f.handler.CreateRoom(context.Background(), caller, "meadow", others)
	require.NoError(t, err)
	return snap
}

func (f *fixture) room(t *testing.T, id string) *battle.Room {
	t.Helper()
	var out *battle.Room
	require.NoError(t, f.rooms.Locks.With(id, func() error {
		r, ok := f.rooms.Store.Get(id)
		if !ok {
			return ErrRoomNotFound
		}
		out = r.Clone()
		return nil
	}))
	return out
}
