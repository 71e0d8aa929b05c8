package monster

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/cory-johannsen/idlebattle/internal/game/battle"
	"github.com/cory-johannsen/idlebattle/internal/game/dice"
	"github.com/cory-johannsen/idlebattle/internal/game/world"
)

// ErrUnknownMap is returned when spawning for a map that is not loaded.
var ErrUnknownMap = errors.New("unknown map")

// LevelJitter is the maximum distance of a monster's level from the party-derived base level.
const LevelJitter = 2

// Spawner builds monster combatants for a room.
type Spawner struct {
	maps      *world.Registry
	templates *Registry
	src       dice.Source
}

// NewSpawner creates a Spawner.
//
// Precondition: all arguments must be non-nil.
func NewSpawner(maps *world.Registry, templates *Registry, src dice.Source) *Spawner {
	return &Spawner{maps: maps, templates: templates, src: src}
}

// Count returns how many monsters to spawn for a party of playerCount.
//
// Postcondition: 1 <= result <= battle.MaxPerSide.
func Count(playerCount int, roll float64) int {
	n := int(math.Floor(float64(playerCount) * (1 + roll)))
	return max(1, min(battle.MaxPerSide, n))
}

// Spawn creates the monster side of a new room on mapID for a party with
// the given average level and size.
//
// Postcondition: every monster's level is within the map band and within
// LevelJitter of the clamped party level, so any two differ by less than 5.
func (s *Spawner) Spawn(mapID string, avgLevel float64, playerCount int) ([]battle.Combatant, error) {
	m, ok := s.maps.Map(mapID)
	if !ok {
		return nil, fmt.Errorf("spawning for %q: %w", mapID, ErrUnknownMap)
	}
	base := m.ClampLevel(int(math.Floor(avgLevel)))
	count := Count(playerCount, dice.Float(s.src))

	out := make([]battle.Combatant, 0, count)
	for i := 0; i < count; i++ {
		tmpl, err := s.pick(m)
		if err != nil {
			return nil, err
		}
		level := m.ClampLevel(base + dice.Between(s.src, -LevelJitter, LevelJitter))
		st := tmpl.StatsAt(level)
		out = append(out, battle.Combatant{
			ID:         "monster_" + uuid.NewString(),
			Side:       battle.SideMonster,
			Name:       tmpl.Name,
			Level:      level,
			HP:         st.MaxHP,
			MaxHP:      st.MaxHP,
			Speed:      st.Speed,
			Attack:     st.Attack,
			Defense:    st.Defense,
			Status:     battle.StatusAlive,
			TemplateID: tmpl.ID,
			Position:   battle.MonsterPosition(s.src.Intn(battle.MonsterColumns), s.src.Intn(battle.BoardSize)),
		})
	}
	return out, nil
}

// pick draws one template from the map's weighted pool, with replacement.
func (s *Spawner) pick(m *world.Map) (*Template, error) {
	roll := s.src.Intn(m.TotalWeight())
	for _, e := range m.Pool {
		if roll < e.Weight {
			t, ok := s.templates.Template(e.MonsterID)
			if !ok {
				return nil, fmt.Errorf("map %q references unknown monster %q", m.ID, e.MonsterID)
			}
			return t, nil
		}
		roll -= e.Weight
	}
	return nil, fmt.Errorf("map %q has an empty monster pool", m.ID)
}
