package battle

import "time"

// CommandView is the client-facing projection of a pending command.
type CommandView struct {
	ParticipantID string      `json:"participantId"`
	Type          CommandType `json:"type"`
	TargetID      string      `json:"targetId,omitempty"`
}

// Snapshot is the read-only projection a client renders from.
type Snapshot struct {
	RoomID     string        `json:"roomId"`
	MapID      string        `json:"mapId"`
	Status     RoomStatus    `json:"status"`
	Turn       int           `json:"turnNumber"`
	Phase      Phase         `json:"phase"`
	DeadlineAt time.Time     `json:"deadlineAt"`
	Players    []Combatant   `json:"players"`
	Monsters   []Combatant   `json:"monsters"`
	Commands   []CommandView `json:"commands"`
}

// Snapshot projects r into a Snapshot. Commands are listed in participant order.
func (r *Room) Snapshot() Snapshot {
	s := Snapshot{
		RoomID:     r.ID,
		MapID:      r.MapID,
		Status:     r.Status,
		Turn:       r.Turn,
		Phase:      r.Phase,
		DeadlineAt: r.DeadlineAt,
		Players:    []Combatant{},
		Monsters:   []Combatant{},
		Commands:   []CommandView{},
	}
	for _, p := range r.Participants {
		c := p.Clone()
		c.Items = nil
		if p.IsPlayer() {
			s.Players = append(s.Players, c)
		} else {
			s.Monsters = append(s.Monsters, c)
		}
		if cmd, ok := r.Commands[p.ID]; ok {
			s.Commands = append(s.Commands, CommandView{
				ParticipantID: cmd.ActorID,
				Type:          cmd.Type,
				TargetID:      cmd.TargetID,
			})
		}
	}
	return s
}
