package battle

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// TurnOrder returns the active participants sorted by descending speed.
// Ties keep encounter order.
//
// Postcondition: the result holds exactly the active participants, each once.
func TurnOrder(participants []Combatant) []string {
	var living []*Combatant
	for i := range participants {
		if participants[i].Active() {
			living = append(living, &participants[i])
		}
	}
	slices.SortStableFunc(living, func(a, b *Combatant) int {
		return b.Speed - a.Speed
	})
	order := make([]string, len(living))
	for i, c := range living {
		order[i] = c.ID
	}
	return order
}

// AutoFill records the default command chosen for one player.
type AutoFill struct {
	PlayerID string `json:"playerId"`
	TargetID string `json:"targetId"`
}

// AutoFillMissing synthesizes an attack for every living player without a
// pending command, targeting the living monster with the lowest HP fraction
// (ties go to the earliest in encounter order). With no living monster it
// fills nothing.
//
// Postcondition: every returned fill names a living monster as target and a
// matching command is stored in r.Commands.
func AutoFillMissing(r *Room, now time.Time) []AutoFill {
	target := weakest(r.Living(SideMonster))
	if target == nil {
		return nil
	}
	var fills []AutoFill
	for _, p := range r.Living(SidePlayer) {
		if _, ok := r.Commands[p.ID]; ok {
			continue
		}
		r.Commands[p.ID] = Command{
			ID:          uuid.NewString(),
			ActorID:     p.ID,
			Type:        CommandAttack,
			TargetID:    target.ID,
			SubmittedAt: now,
			Auto:        true,
		}
		fills = append(fills, AutoFill{PlayerID: p.ID, TargetID: target.ID})
	}
	return fills
}

func weakest(candidates []*Combatant) *Combatant {
	var best *Combatant
	for _, c := range candidates {
		if best == nil || c.HPFraction() < best.HPFraction() {
			best = c
		}
	}
	return best
}
