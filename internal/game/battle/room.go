package battle

import (
	"maps"
	"time"
)

// RoomStatus is the coarse lifecycle of a room.
type RoomStatus string

const (
	RoomWaiting    RoomStatus = "waiting"
	RoomInProgress RoomStatus = "in_progress"
	RoomFinished   RoomStatus = "finished"
)

// Phase is the turn-loop phase. Only TURN_INPUT and ENDED are observable
// on a stored room.
type Phase string

const (
	PhasePrepare     Phase = "PREPARE"
	PhaseTurnInput   Phase = "TURN_INPUT"
	PhaseTurnResolve Phase = "TURN_RESOLVE"
	PhaseEnded       Phase = "ENDED"
)

// Winner names the side that won a finished battle.
type Winner string

const (
	WinnerNone     Winner = ""
	WinnerPlayers  Winner = "players"
	WinnerMonsters Winner = "monsters"
	WinnerDraw     Winner = "draw"
)

// MaxPerSide is the participant limit for each side of a room.
const MaxPerSide = 10

// Room is the battle aggregate.
type Room struct {
	ID           string
	MapID        string
	Status       RoomStatus
	Turn         int
	Phase        Phase
	DeadlineAt   time.Time
	Participants []Combatant
	// Commands holds the pending command per participant id for the current turn.
	Commands  map[string]Command
	Winner    Winner
	CreatedAt time.Time
	UpdatedAt time.Time
	EndedAt   time.Time
}

// Clone returns a deep copy of r.
func (r *Room) Clone() *Room {
	cp := *r
	cp.Participants = make([]Combatant, len(r.Participants))
	for i, p := range r.Participants {
		cp.Participants[i] = p.Clone()
	}
	cp.Commands = maps.Clone(r.Commands)
	if cp.Commands == nil {
		cp.Commands = map[string]Command{}
	}
	return &cp
}

// Participant returns the combatant with the given id.
func (r *Room) Participant(id string) (*Combatant, bool) {
	for i := range r.Participants {
		if r.Participants[i].ID == id {
			return &r.Participants[i], true
		}
	}
	return nil, false
}

// PlayerFor returns the player combatant owned by accountID.
func (r *Room) PlayerFor(accountID string) (*Combatant, bool) {
	for i := range r.Participants {
		p := &r.Participants[i]
		if p.IsPlayer() && p.AccountID == accountID {
			return p, true
		}
	}
	return nil, false
}

// Count returns the number of participants on side.
func (r *Room) Count(side Side) int {
	n := 0
	for i := range r.Participants {
		if r.Participants[i].Side == side {
			n++
		}
	}
	return n
}

// Living returns pointers to every active combatant on side, in encounter order.
func (r *Room) Living(side Side) []*Combatant {
	var out []*Combatant
	for i := range r.Participants {
		p := &r.Participants[i]
		if p.Side == side && p.Active() {
			out = append(out, p)
		}
	}
	return out
}

// AllSubmitted reports whether every living player has a pending command.
func (r *Room) AllSubmitted() bool {
	for _, p := range r.Living(SidePlayer) {
		if _, ok := r.Commands[p.ID]; !ok {
			return false
		}
	}
	return true
}

// SubmittedPlayerIDs returns the ids of players with a pending command, in encounter order.
func (r *Room) SubmittedPlayerIDs() []string {
	out := []string{}
	for i := range r.Participants {
		p := &r.Participants[i]
		if !p.IsPlayer() {
			continue
		}
		if _, ok := r.Commands[p.ID]; ok {
			out = append(out, p.ID)
		}
	}
	return out
}

// CheckEnd evaluates the terminal condition over the room's participants.
//
// Postcondition: ended is false iff both sides have at least one participant
// that is neither dead nor escaped.
func (r *Room) CheckEnd() (ended bool, winner Winner) {
	playersOut, monstersOut := true, true
	for i := range r.Participants {
		p := &r.Participants[i]
		if p.Out() {
			continue
		}
		if p.IsPlayer() {
			playersOut = false
		} else {
			monstersOut = false
		}
	}
	switch {
	case playersOut && monstersOut:
		return true, WinnerDraw
	case playersOut:
		return true, WinnerMonsters
	case monstersOut:
		return true, WinnerPlayers
	}
	return false, WinnerNone
}
