package gameserver

import (
	"errors"
	"math"

	"go.uber.org/zap"

	"github.com/cory-johannsen/idlebattle/internal/game/battle"
	"github.com/cory-johannsen/idlebattle/internal/game/character"
	"github.com/cory-johannsen/idlebattle/internal/game/dice"
	"github.com/cory-johannsen/idlebattle/internal/game/inventory"
	"github.com/cory-johannsen/idlebattle/internal/game/monster"
)

// ItemGrant is one stack of items awarded to a player.
type ItemGrant struct {
	ItemID   string `json:"itemId"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Level    int    `json:"level"`
}

// Reward is everything one surviving player earns from a won battle.
type Reward struct {
	AccountID     string      `json:"accountId"`
	ParticipantID string      `json:"participantId"`
	Experience    int64       `json:"experience"`
	Qi            int64       `json:"qi"`
	Items         []ItemGrant `json:"items"`
}

// LevelDecay scales rewards down as the player out-levels the monsters.
//
// Postcondition: result is 1 for diff <= 0, falls linearly to 0.5 at 5,
// to 0.1 at 10, and is 0 beyond 10.
func LevelDecay(diff float64) float64 {
	switch {
	case diff <= 0:
		return 1
	case diff <= 5:
		return 1 - (diff/5)*0.5
	case diff <= 10:
		return 0.5 - ((diff-5)/5)*0.4
	default:
		return 0
	}
}

// scaledGain is floor(base * decay * (1 + 0.1(n-1)) * n).
func scaledGain(base, decay float64, n int) int64 {
	return int64(math.Floor(base * decay * (1 + 0.1*float64(n-1)) * float64(n)))
}

// RewardService computes and applies battle rewards.
type RewardService struct {
	items     *inventory.Registry
	templates *monster.Registry
	roller    *dice.Roller
	capacity  int
	logger    *zap.Logger
}

// NewRewardService creates a RewardService.
//
// Precondition: all pointers must be non-nil; capacity > 0.
func NewRewardService(items *inventory.Registry, templates *monster.Registry, roller *dice.Roller, capacity int, logger *zap.Logger) *RewardService {
	return &RewardService{
		items:     items,
		templates: templates,
		roller:    roller,
		capacity:  capacity,
		logger:    logger,
	}
}

// Calculate returns one Reward per alive player of a room the players won.
//
// Postcondition: returns nil unless room.Winner is WinnerPlayers; dead and
// escaped players receive nothing; item drops are rolled per player.
func (s *RewardService) Calculate(room *battle.Room) []Reward {
	if room.Winner != battle.WinnerPlayers {
		return nil
	}
	var defeated []*battle.Combatant
	for i := range room.Participants {
		p := &room.Participants[i]
		if !p.IsPlayer() && p.Status == battle.StatusDead {
			defeated = append(defeated, p)
		}
	}
	if len(defeated) == 0 {
		return nil
	}
	total := 0
	for _, m := range defeated {
		total += m.Level
	}
	avg := float64(total) / float64(len(defeated))
	n := len(defeated)

	var out []Reward
	for i := range room.Participants {
		p := &room.Participants[i]
		if !p.IsPlayer() || p.Status != battle.StatusAlive {
			continue
		}
		decay := LevelDecay(float64(p.Level) - avg)
		out = append(out, Reward{
			AccountID:     p.AccountID,
			ParticipantID: p.ID,
			Experience:    scaledGain(avg*10, decay, n),
			Qi:            scaledGain(avg*2, decay, n),
			Items:         s.rollDrops(defeated),
		})
	}
	return out
}

func (s *RewardService) rollDrops(defeated []*battle.Combatant) []ItemGrant {
	items := []ItemGrant{}
	for _, m := range defeated {
		tmpl, ok := s.templates.Template(m.TemplateID)
		if !ok {
			continue
		}
		for _, d := range tmpl.Drops.Roll(s.roller) {
			def, level := s.resolveDrop(d.ItemID, m.Level)
			if def == nil {
				s.logger.Warn("dropped item not in registry",
					zap.String("item_id", d.ItemID),
					zap.String("monster", tmpl.ID),
				)
				continue
			}
			items = append(items, ItemGrant{
				ItemID:   def.ID,
				Name:     def.Name,
				Quantity: d.Quantity,
				Level:    level,
			})
		}
	}
	return items
}

func (s *RewardService) resolveDrop(itemID string, monsterLevel int) (*inventory.ItemDef, int) {
	if itemID == monster.MaterialDrop {
		pool := s.items.MaterialsFor(monsterLevel)
		if len(pool) == 0 {
			return nil, 0
		}
		return pool[s.roller.Source().Intn(len(pool))], monsterLevel
	}
	def, ok := s.items.Item(itemID)
	if !ok {
		return nil, 0
	}
	return def, def.Level
}

// Apply grants r to c. Items that no longer fit are skipped and returned.
//
// Postcondition: experience and qi are always granted; the inventory never
// exceeds the configured capacity.
func (s *RewardService) Apply(c *character.Character, r Reward) []ItemGrant {
	c.Grant(r.Experience, r.Qi)
	bp := inventory.NewBackpack(s.capacity, c.Inventory)
	var skipped []ItemGrant
	for _, g := range r.Items {
		def, ok := s.items.Item(g.ItemID)
		if !ok {
			skipped = append(skipped, g)
			continue
		}
		if err := bp.Add(def, g.Quantity, g.Level); err != nil {
			if errors.Is(err, inventory.ErrInventoryFull) {
				s.logger.Info("inventory full, reward item skipped",
					zap.String("account_id", c.AccountID),
					zap.String("item_id", g.ItemID),
					zap.Int("quantity", g.Quantity),
				)
			} else {
				s.logger.Warn("adding reward item", zap.String("account_id", c.AccountID), zap.Error(err))
			}
			skipped = append(skipped, g)
		}
	}
	c.Inventory = bp.Slots()
	return skipped
}
