package gameserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/idlebattle/internal/game/battle"
	"github.com/cory-johannsen/idlebattle/internal/game/character"
	"github.com/cory-johannsen/idlebattle/internal/game/dice"
	"github.com/cory-johannsen/idlebattle/internal/game/monster"
	"github.com/cory-johannsen/idlebattle/internal/observability"
	"github.com/cory-johannsen/idlebattle/internal/pkg/clock"
)

// Spawner builds the monster side of a new room.
type Spawner interface {
	Spawn(mapID string, avgLevel float64, playerCount int) ([]battle.Combatant, error)
}

// RoomSettings are the tunables for room lifecycles.
type RoomSettings struct {
	TurnDuration time.Duration
	EscapeChance float64
}

// RoomService owns room creation, membership, command intake, and turn
// resolution. Methods with the Locked suffix require the caller to hold
// the room's lock via Locks.
type RoomService struct {
	Store *RoomStore
	Locks *KeyedLocks

	characters CharacterStore
	adapter    *CombatantAdapter
	spawner    Spawner
	src        dice.Source
	clock      clock.Clock
	settings   RoomSettings
	logger     *zap.Logger
}

// NewRoomService creates a RoomService with an empty store.
//
// Precondition: all arguments must be non-nil.
func NewRoomService(characters CharacterStore, adapter *CombatantAdapter, spawner Spawner, src dice.Source, clk clock.Clock, settings RoomSettings, logger *zap.Logger) *RoomService {
	if settings.TurnDuration <= 0 {
		settings.TurnDuration = battle.DefaultTurnDuration
	}
	return &RoomService{
		Store:      NewRoomStore(),
		Locks:      NewKeyedLocks(),
		characters: characters,
		adapter:    adapter,
		spawner:    spawner,
		src:        src,
		clock:      clk,
		settings:   settings,
		logger:     logger,
	}
}

// Settings returns the service's room tunables.
func (s *RoomService) Settings() RoomSettings { return s.settings }

func (s *RoomService) loadCharacter(ctx context.Context, accountID string) (*character.Character, error) {
	c, err := s.characters.Load(ctx, accountID)
	if err != nil {
		if errors.Is(err, character.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCharacterNotFound, accountID)
		}
		return nil, fmt.Errorf("loading character %s: %w", accountID, err)
	}
	return c, nil
}

// normalizePlayers deduplicates ids in order and ensures caller is present.
func normalizePlayers(callerID string, playerIDs []string) []string {
	seen := make(map[string]bool, len(playerIDs)+1)
	out := make([]string, 0, len(playerIDs)+1)
	for _, id := range append([]string{callerID}, playerIDs...) {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Create opens a new in-progress room on mapID for callerID and playerIDs.
//
// Precondition: callerID is non-empty.
// Postcondition: on success the room is stored at turn 1 in TURN_INPUT with
// a deadline one turn duration away; the caller is always a participant.
func (s *RoomService) Create(ctx context.Context, callerID, mapID string, playerIDs []string) (*battle.Room, error) {
	ids := normalizePlayers(callerID, playerIDs)
	if len(ids) == 0 || len(ids) > battle.MaxPerSide {
		return nil, fmt.Errorf("%w: need 1 to %d players, got %d", ErrInvalidPlayers, battle.MaxPerSide, len(ids))
	}

	players := make([]battle.Combatant, 0, len(ids))
	levels := 0
	for i, id := range ids {
		c, err := s.loadCharacter(ctx, id)
		if err != nil {
			return nil, err
		}
		players = append(players, s.adapter.FromCharacter(c, i))
		levels += c.Level
	}

	monsters, err := s.spawner.Spawn(mapID, float64(levels)/float64(len(players)), len(players))
	if err != nil {
		if errors.Is(err, monster.ErrUnknownMap) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMap, mapID)
		}
		return nil, fmt.Errorf("spawning monsters: %w", err)
	}

	now := s.clock.Now()
	room := &battle.Room{
		ID:           uuid.NewString(),
		MapID:        mapID,
		Status:       battle.RoomInProgress,
		Turn:         1,
		Phase:        battle.PhaseTurnInput,
		DeadlineAt:   now.Add(s.settings.TurnDuration),
		Participants: append(players, monsters...),
		Commands:     map[string]battle.Command{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.Store.Put(room)
	s.logger.Info("room created",
		append(observability.RoomFields(room.ID, room.Turn),
			zap.String("map_id", mapID),
			zap.Int("players", len(players)),
			zap.Int("monsters", len(monsters)),
		)...,
	)
	return room, nil
}

// Join adds accountID's character to an in-progress room and returns the
// new participant id.
//
// Postcondition: the player side never exceeds battle.MaxPerSide.
func (s *RoomService) Join(ctx context.Context, roomID, accountID string) (string, error) {
	// Load before locking so storage latency never holds the room.
	c, err := s.loadCharacter(ctx, accountID)
	if err != nil {
		return "", err
	}
	var participantID string
	err = s.Locks.With(roomID, func() error {
		room, ok := s.Store.Get(roomID)
		if !ok {
			return ErrRoomNotFound
		}
		if room.Status == battle.RoomFinished {
			return ErrRoomFinished
		}
		if _, ok := room.PlayerFor(accountID); ok {
			return ErrAlreadyJoined
		}
		n := room.Count(battle.SidePlayer)
		if n >= battle.MaxPerSide {
			return ErrRoomFull
		}
		cb := s.adapter.FromCharacter(c, n)
		room.Participants = append(room.Participants, cb)
		room.UpdatedAt = s.clock.Now()
		s.Store.Put(room)
		participantID = cb.ID
		return nil
	})
	if err != nil {
		return "", err
	}
	s.logger.Info("player joined room",
		zap.String("room_id", roomID),
		zap.String("account_id", accountID),
	)
	return participantID, nil
}

// SubmitRequest is a client command for a specific turn.
type SubmitRequest struct {
	Turn     int
	Type     battle.CommandType
	TargetID string
	ItemID   string
}

// SubmitResult reports an accepted command.
type SubmitResult struct {
	CommandID     string `json:"commandId"`
	ParticipantID string `json:"participantId"`
	AllSubmitted  bool   `json:"allSubmitted"`
}

// SubmitLocked validates and records accountID's command for the room's
// current turn.
//
// Precondition: the caller holds the room lock.
// Postcondition: on error the room is unchanged; on success exactly one
// command is stored for the account's participant.
func (s *RoomService) SubmitLocked(roomID, accountID string, req SubmitRequest) (SubmitResult, error) {
	room, ok := s.Store.Get(roomID)
	if !ok {
		return SubmitResult{}, ErrRoomNotFound
	}
	if room.Status == battle.RoomFinished {
		return SubmitResult{}, ErrRoomFinished
	}
	if req.Turn != room.Turn || room.Phase != battle.PhaseTurnInput {
		return SubmitResult{}, fmt.Errorf("%w: room is on turn %d, got %d", ErrStaleTurn, room.Turn, req.Turn)
	}
	p, ok := room.PlayerFor(accountID)
	if !ok {
		return SubmitResult{}, ErrNotInRoom
	}
	if !p.Active() {
		return SubmitResult{}, ErrParticipantDown
	}
	if _, dup := room.Commands[p.ID]; dup {
		return SubmitResult{}, ErrAlreadySubmitted
	}
	if !req.Type.Known() {
		return SubmitResult{}, fmt.Errorf("%w: %q", ErrUnknownCommand, req.Type)
	}
	switch req.Type {
	case battle.CommandAttack:
		if req.TargetID == "" {
			return SubmitResult{}, ErrTargetRequired
		}
	case battle.CommandItem:
		if req.ItemID == "" || req.TargetID == "" {
			return SubmitResult{}, ErrItemRequired
		}
	}

	now := s.clock.Now()
	cmd := battle.Command{
		ID:          uuid.NewString(),
		ActorID:     p.ID,
		Type:        req.Type,
		TargetID:    req.TargetID,
		ItemID:      req.ItemID,
		SubmittedAt: now,
	}
	room.Commands[p.ID] = cmd
	room.UpdatedAt = now
	s.Store.Put(room)
	return SubmitResult{
		CommandID:     cmd.ID,
		ParticipantID: p.ID,
		AllSubmitted:  room.AllSubmitted(),
	}, nil
}

// TurnOutcome is the result of resolving one turn.
type TurnOutcome struct {
	Fills []battle.AutoFill
	battle.Result
}

// ResolveLocked auto-fills missing player commands and resolves the room's
// current turn.
//
// Precondition: the caller holds the room lock and the room is in TURN_INPUT.
// Postcondition: the stored room is replaced by the resolved room.
func (s *RoomService) ResolveLocked(room *battle.Room) TurnOutcome {
	now := s.clock.Now()
	fills := battle.AutoFillMissing(room, now)
	res := battle.ResolveTurn(room, s.src, battle.Options{
		Now:          now,
		EscapeChance: s.settings.EscapeChance,
		TurnDuration: s.settings.TurnDuration,
	})
	s.Store.Put(res.Room)
	s.logger.Debug("turn resolved",
		append(observability.RoomFields(room.ID, room.Turn),
			zap.Int("auto_filled", len(fills)),
			zap.Bool("ended", res.Ended),
		)...,
	)
	return TurnOutcome{Fills: fills, Result: res}
}

// ActiveRoomFor returns the id of the account's most recently updated
// in-progress room.
func (s *RoomService) ActiveRoomFor(accountID string) (string, bool) {
	return s.Store.ActiveFor(accountID)
}

// Snapshot returns the current snapshot of roomID.
func (s *RoomService) Snapshot(roomID string) (battle.Snapshot, error) {
	var snap battle.Snapshot
	err := s.Locks.With(roomID, func() error {
		room, ok := s.Store.Get(roomID)
		if !ok {
			return ErrRoomNotFound
		}
		snap = room.Snapshot()
		return nil
	})
	return snap, err
}
