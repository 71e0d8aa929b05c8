package battle

import "time"

// CommandType is the kind of action a combatant takes in a turn.
type CommandType string

const (
	CommandAttack CommandType = "attack"
	CommandDefend CommandType = "defend"
	CommandEscape CommandType = "escape"
	CommandItem   CommandType = "item"
	CommandSkill  CommandType = "skill"
	CommandMove   CommandType = "move"
	CommandWait   CommandType = "wait"
)

var knownCommands = map[CommandType]bool{
	CommandAttack: true,
	CommandDefend: true,
	CommandEscape: true,
	CommandItem:   true,
	CommandSkill:  true,
	CommandMove:   true,
	CommandWait:   true,
}

// Known reports whether t is a recognised command type.
func (t CommandType) Known() bool { return knownCommands[t] }

// Command is one participant's action for a turn.
type Command struct {
	ID          string      `json:"id"`
	ActorID     string      `json:"participantId"`
	Type        CommandType `json:"type"`
	TargetID    string      `json:"targetId,omitempty"`
	ItemID      string      `json:"itemId,omitempty"`
	SubmittedAt time.Time   `json:"submittedAt"`
	// Auto is true for commands synthesized by auto-fill or monster AI.
	Auto bool `json:"auto,omitempty"`
}
