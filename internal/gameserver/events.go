package gameserver

import (
	"time"

	"github.com/cory-johannsen/idlebattle/internal/game/battle"
)

// EventType tags a server-pushed battle event.
type EventType string

const (
	EventBattleStart  EventType = "BATTLE_START"
	EventTurnBegin    EventType = "TURN_BEGIN"
	EventTurnAutoFill EventType = "TURN_AUTO_FILL"
	EventTurnResolve  EventType = "TURN_RESOLVE"
	EventBattleEnd    EventType = "BATTLE_END"
)

// Event is one of the five battle events. The set is closed.
type Event interface {
	Type() EventType
	Room() string
	isEvent()
}

// BattleStart carries the full room snapshot when a battle opens.
type BattleStart struct {
	Snapshot battle.Snapshot `json:"snapshot"`
}

// TurnBegin opens a turn's input window.
type TurnBegin struct {
	RoomID             string    `json:"roomId"`
	TurnNumber         int       `json:"turnNumber"`
	DeadlineAt         time.Time `json:"deadlineAt"`
	SubmittedPlayerIDs []string  `json:"submittedPlayerIds"`
}

// TurnAutoFill lists the players whose commands were synthesized at the deadline.
type TurnAutoFill struct {
	RoomID              string            `json:"roomId"`
	TurnNumber          int               `json:"turnNumber"`
	AutoFilledPlayerIDs []string          `json:"autoFilledPlayerIds"`
	DefaultTargets      map[string]string `json:"defaultTargets"`
}

// TurnResolve carries the post-turn snapshot and the turn's log lines.
type TurnResolve struct {
	Snapshot battle.Snapshot `json:"snapshot"`
	Logs     []string        `json:"logs"`
}

// BattleEnd closes a room.
type BattleEnd struct {
	RoomID  string        `json:"roomId"`
	Winner  battle.Winner `json:"winner"`
	Logs    []string      `json:"logs"`
	Rewards []Reward      `json:"rewards"`
}

func (BattleStart) Type() EventType  { return EventBattleStart }
func (TurnBegin) Type() EventType    { return EventTurnBegin }
func (TurnAutoFill) Type() EventType { return EventTurnAutoFill }
func (TurnResolve) Type() EventType  { return EventTurnResolve }
func (BattleEnd) Type() EventType    { return EventBattleEnd }

func (e BattleStart) Room() string  { return e.Snapshot.RoomID }
func (e TurnBegin) Room() string    { return e.RoomID }
func (e TurnAutoFill) Room() string { return e.RoomID }
func (e TurnResolve) Room() string  { return e.Snapshot.RoomID }
func (e BattleEnd) Room() string    { return e.RoomID }

func (BattleStart) isEvent()  {}
func (TurnBegin) isEvent()    {}
func (TurnAutoFill) isEvent() {}
func (TurnResolve) isEvent()  {}
func (BattleEnd) isEvent()    {}

// Envelope is the wire form of an Event.
type Envelope struct {
	Type    EventType `json:"type"`
	Payload Event     `json:"payload"`
}

// Wrap returns the wire envelope for e.
func Wrap(e Event) Envelope {
	return Envelope{Type: e.Type(), Payload: e}
}

// Broadcaster fans events out to a room's subscribers.
//
// Broadcast is called while the room lock is held and must not block on
// slow subscribers.
type Broadcaster interface {
	Broadcast(roomID string, e Event)
}

// BroadcastFunc adapts a function to Broadcaster.
type BroadcastFunc func(roomID string, e Event)

// Broadcast calls f.
func (f BroadcastFunc) Broadcast(roomID string, e Event) { f(roomID, e) }

func turnBegin(r *battle.Room) TurnBegin {
	return TurnBegin{
		RoomID:             r.ID,
		TurnNumber:         r.Turn,
		DeadlineAt:         r.DeadlineAt,
		SubmittedPlayerIDs: r.SubmittedPlayerIDs(),
	}
}
