package gameserver

import "errors"

// Room lookup and lifecycle errors.
var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFinished = errors.New("room is finished")
	ErrRoomFull     = errors.New("room is full")
	ErrUnknownMap   = errors.New("unknown map")
)

// Membership errors.
var (
	ErrNotInRoom         = errors.New("account has no participant in room")
	ErrParticipantDown   = errors.New("participant can no longer act")
	ErrAlreadyJoined     = errors.New("account already joined room")
	ErrInvalidPlayers    = errors.New("invalid player list")
	ErrCharacterNotFound = errors.New("character not found")
)

// Command validation errors.
var (
	ErrStaleTurn        = errors.New("stale turn")
	ErrAlreadySubmitted = errors.New("command already submitted this turn")
	ErrTargetRequired   = errors.New("attack requires a target")
	ErrItemRequired     = errors.New("item command requires itemId and targetId")
	ErrUnknownCommand   = errors.New("unknown command type")
)
