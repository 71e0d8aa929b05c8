package battle

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cory-johannsen/idlebattle/internal/game/dice"
	"github.com/cory-johannsen/idlebattle/internal/game/inventory"
)

// Damage taken while defending is scaled by defendNum/defendDen (0.6).
const (
	defendNum = 6
	defendDen = 10
)

// DefaultEscapeChance is the probability an escape succeeds.
const DefaultEscapeChance = 0.3

// DefaultTurnDuration is the input window for each turn.
const DefaultTurnDuration = 30 * time.Second

// Options tunes a single resolution call.
type Options struct {
	Now          time.Time
	EscapeChance float64
	TurnDuration time.Duration
}

// ItemUse records a consumable spent during resolution. The caller is
// responsible for writing it through to the owner's persistent inventory.
type ItemUse struct {
	AccountID string
	ActorID   string
	ItemRef   string
	ItemID    string
	TargetID  string
}

// Result is the outcome of one resolved turn.
type Result struct {
	Room     *Room
	Logs     []string
	Ended    bool
	Winner   Winner
	ItemUses []ItemUse
}

// Damage computes attack damage against a defender.
//
// Postcondition: result >= 1 unless defending, in which case it is
// floor(max(1, attack-defense) * 0.6).
func Damage(attack, defense int, defending bool) int {
	dmg := max(1, attack-defense)
	if defending {
		dmg = dmg * defendNum / defendDen
	}
	return dmg
}

// ResolveTurn runs one turn of room against the given randomness source.
// The input room is not modified.
//
// Precondition: room.Phase == PhaseTurnInput.
// Postcondition: every participant in Result.Room has HP in [0, MaxHP] and
// MP in [0, MaxMP]; when the battle continues Turn is incremented, commands
// are cleared and a new deadline is set; otherwise Phase is PhaseEnded.
func ResolveTurn(room *Room, src dice.Source, opts Options) Result {
	if opts.TurnDuration <= 0 {
		opts.TurnDuration = DefaultTurnDuration
	}
	next := room.Clone()
	next.Phase = PhaseTurnResolve
	res := Result{Room: next}

	commands := next.Commands
	for _, m := range next.Living(SideMonster) {
		if _, ok := commands[m.ID]; ok {
			continue
		}
		players := next.Living(SidePlayer)
		if len(players) == 0 {
			break
		}
		target := players[src.Intn(len(players))]
		commands[m.ID] = Command{
			ID:          uuid.NewString(),
			ActorID:     m.ID,
			Type:        CommandAttack,
			TargetID:    target.ID,
			SubmittedAt: opts.Now,
			Auto:        true,
		}
	}

	for _, id := range TurnOrder(next.Participants) {
		actor, _ := next.Participant(id)
		cmd, ok := commands[id]
		if !ok || !actor.Active() {
			continue
		}
		res.execute(next, actor, cmd, src, opts)
	}

	for i := range next.Participants {
		if next.Participants[i].Status == StatusDefending {
			next.Participants[i].Status = StatusAlive
		}
	}

	next.UpdatedAt = opts.Now
	res.Ended, res.Winner = next.CheckEnd()
	next.Commands = map[string]Command{}
	if res.Ended {
		next.Phase = PhaseEnded
		next.Status = RoomFinished
		next.Winner = res.Winner
		next.EndedAt = opts.Now
		res.Logs = append(res.Logs, endLine(res.Winner))
		return res
	}
	next.Turn++
	next.Phase = PhaseTurnInput
	next.DeadlineAt = opts.Now.Add(opts.TurnDuration)
	return res
}

func (res *Result) logf(format string, args ...any) {
	res.Logs = append(res.Logs, fmt.Sprintf(format, args...))
}

func (res *Result) execute(r *Room, actor *Combatant, cmd Command, src dice.Source, opts Options) {
	switch cmd.Type {
	case CommandDefend:
		actor.Status = StatusDefending
		res.logf("%s takes a defensive stance", actor.Name)

	case CommandEscape:
		if dice.Chance(src, opts.EscapeChance) {
			actor.Status = StatusEscaped
			res.logf("%s escapes from battle", actor.Name)
		} else {
			res.logf("%s tries to escape but fails", actor.Name)
		}

	case CommandAttack:
		target, ok := r.Participant(cmd.TargetID)
		if !ok {
			res.logf("%s's attack has no valid target", actor.Name)
			return
		}
		if !target.Active() {
			res.logf("%s's attack target %s is already down", actor.Name, target.Name)
			return
		}
		defending := target.Status == StatusDefending
		dmg := Damage(actor.Attack, target.Defense, defending)
		target.ApplyDamage(dmg)
		switch {
		case target.Status == StatusDead:
			res.logf("%s attacks %s for %d damage, %s is defeated", actor.Name, target.Name, dmg, target.Name)
		case defending:
			res.logf("%s attacks %s for %d damage (defended)", actor.Name, target.Name, dmg)
		default:
			res.logf("%s attacks %s for %d damage", actor.Name, target.Name, dmg)
		}

	case CommandItem:
		res.useItem(r, actor, cmd)

	case CommandWait:
		res.logf("%s waits", actor.Name)

	default:
		res.logf("%s uses %s, which has no effect yet", actor.Name, cmd.Type)
	}
}

func (res *Result) useItem(r *Room, actor *Combatant, cmd Command) {
	idx := -1
	for i, it := range actor.Items {
		if it.Quantity > 0 && (it.Ref == cmd.ItemID || it.ItemID == cmd.ItemID) {
			idx = i
			break
		}
	}
	if idx < 0 {
		res.logf("%s reaches for an item they do not have", actor.Name)
		return
	}
	item := &actor.Items[idx]

	target := actor
	if item.Target != inventory.TargetSelf {
		t, ok := r.Participant(cmd.TargetID)
		if !ok || !t.Active() {
			res.logf("%s's %s has no valid target", actor.Name, item.Name)
			return
		}
		target = t
	}
	switch item.Target {
	case inventory.TargetAlly:
		if Enemy(actor, target) {
			res.logf("%s cannot use %s on an enemy", actor.Name, item.Name)
			return
		}
	case inventory.TargetEnemy:
		if !Enemy(actor, target) {
			res.logf("%s cannot use %s on an ally", actor.Name, item.Name)
			return
		}
	}

	switch item.Effect {
	case inventory.EffectHeal:
		n := target.Heal(item.Value)
		res.logf("%s uses %s on %s, restoring %d HP", actor.Name, item.Name, target.Name, n)
	case inventory.EffectMana:
		n := target.RestoreMP(item.Value)
		res.logf("%s uses %s on %s, restoring %d MP", actor.Name, item.Name, target.Name, n)
	default:
		res.logf("%s uses %s on %s, but nothing seems to happen", actor.Name, item.Name, target.Name)
	}

	item.Quantity--
	res.ItemUses = append(res.ItemUses, ItemUse{
		AccountID: actor.AccountID,
		ActorID:   actor.ID,
		ItemRef:   item.Ref,
		ItemID:    item.ItemID,
		TargetID:  target.ID,
	})
	if item.Quantity == 0 {
		actor.Items = append(actor.Items[:idx], actor.Items[idx+1:]...)
	}
}

func endLine(w Winner) string {
	switch w {
	case WinnerPlayers:
		return "Victory! All monsters have been defeated"
	case WinnerMonsters:
		return "Defeat. The party has fallen"
	default:
		return "The battle ends in a draw"
	}
}
