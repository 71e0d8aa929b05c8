package gameserver

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/idlebattle/internal/game/battle"
	"github.com/cory-johannsen/idlebattle/internal/observability"
	"github.com/cory-johannsen/idlebattle/internal/pkg/clock"
)

// BattleHandler drives rooms through their turn loop: it broadcasts events,
// arms deadline timers, and hands side effects to the Persister.
//
// Every state transition for a room happens under that room's lock, whether
// triggered by a command submission or by a deadline timer.
type BattleHandler struct {
	rooms       *RoomService
	rewards     *RewardService
	persist     *Persister
	broadcaster Broadcaster
	timeouts    *TimeoutService
	clock       clock.Clock
	slack       time.Duration
	logger      *zap.Logger

	stopped atomic.Bool
}

// NewBattleHandler creates a BattleHandler.
//
// Precondition: all pointers must be non-nil; slack >= 0.
func NewBattleHandler(rooms *RoomService, rewards *RewardService, persist *Persister, broadcaster Broadcaster, clk clock.Clock, slack time.Duration, logger *zap.Logger) *BattleHandler {
	h := &BattleHandler{
		rooms:       rooms,
		rewards:     rewards,
		persist:     persist,
		broadcaster: broadcaster,
		clock:       clk,
		slack:       slack,
		logger:      logger,
	}
	h.timeouts = NewTimeoutService(clk, h.onDeadline, logger)
	return h
}

// Rooms returns the underlying RoomService.
func (h *BattleHandler) Rooms() *RoomService { return h.rooms }

// Timeouts returns the handler's TimeoutService.
func (h *BattleHandler) Timeouts() *TimeoutService { return h.timeouts }

// CreateRoom opens a room, announces it, and arms the first deadline.
func (h *BattleHandler) CreateRoom(ctx context.Context, callerID, mapID string, playerIDs []string) (battle.Snapshot, error) {
	room, err := h.rooms.Create(ctx, callerID, mapID, playerIDs)
	if err != nil {
		return battle.Snapshot{}, err
	}
	var snap battle.Snapshot
	err = h.rooms.Locks.With(room.ID, func() error {
		room, ok := h.rooms.Store.Get(room.ID)
		if !ok {
			return ErrRoomNotFound
		}
		snap = room.Snapshot()
		h.broadcaster.Broadcast(room.ID, BattleStart{Snapshot: snap})
		h.broadcaster.Broadcast(room.ID, turnBegin(room))
		if room.Status == battle.RoomInProgress {
			h.timeouts.Schedule(room.ID, room.Turn, room.DeadlineAt)
		}
		return nil
	})
	return snap, err
}

// JoinRoom adds accountID to a running room.
func (h *BattleHandler) JoinRoom(ctx context.Context, roomID, accountID string) (string, error) {
	return h.rooms.Join(ctx, roomID, accountID)
}

// SubmitCommand records a command and resolves the turn immediately when
// every living player has submitted.
func (h *BattleHandler) SubmitCommand(roomID, accountID string, req SubmitRequest) (SubmitResult, error) {
	var res SubmitResult
	err := h.rooms.Locks.With(roomID, func() error {
		var err error
		res, err = h.rooms.SubmitLocked(roomID, accountID, req)
		if err != nil {
			return err
		}
		room, _ := h.rooms.Store.Get(roomID)
		if !res.AllSubmitted {
			h.broadcaster.Broadcast(roomID, turnBegin(room))
			return nil
		}
		h.timeouts.Cancel(roomID)
		h.resolveAndAdvanceLocked(room)
		return nil
	})
	return res, err
}

// onDeadline is the TurnTimer callback.
func (h *BattleHandler) onDeadline(roomID string, turn int) {
	_ = h.rooms.Locks.With(roomID, func() error {
		if h.stopped.Load() {
			return nil
		}
		room, ok := h.rooms.Store.Get(roomID)
		if !ok || room.Status != battle.RoomInProgress || room.Phase != battle.PhaseTurnInput || room.Turn != turn {
			return nil
		}
		now := h.clock.Now()
		if now.Before(room.DeadlineAt.Add(-h.slack)) {
			h.logger.Debug("turn timer fired early, rescheduling",
				append(observability.RoomFields(roomID, turn), zap.Time("deadline", room.DeadlineAt))...,
			)
			h.timeouts.Schedule(roomID, turn, room.DeadlineAt)
			return nil
		}
		h.resolveAndAdvanceLocked(room)
		return nil
	})
}

// resolveAndAdvanceLocked resolves the current turn and either opens the
// next one or ends the battle.
//
// Precondition: the room lock is held and room is in TURN_INPUT.
func (h *BattleHandler) resolveAndAdvanceLocked(room *battle.Room) {
	turn := room.Turn
	out := h.rooms.ResolveLocked(room)
	if len(out.Fills) > 0 {
		ev := TurnAutoFill{
			RoomID:         room.ID,
			TurnNumber:     turn,
			DefaultTargets: make(map[string]string, len(out.Fills)),
		}
		for _, f := range out.Fills {
			ev.AutoFilledPlayerIDs = append(ev.AutoFilledPlayerIDs, f.PlayerID)
			ev.DefaultTargets[f.PlayerID] = f.TargetID
		}
		h.broadcaster.Broadcast(room.ID, ev)
	}
	if len(out.ItemUses) > 0 {
		h.persist.UseItems(room.ID, out.ItemUses)
	}

	next := out.Room
	if out.Ended {
		h.timeouts.Cancel(room.ID)
		rewards := h.rewards.Calculate(next)
		if rewards == nil {
			rewards = []Reward{}
		}
		h.persist.Settle(next, rewards)
		h.broadcaster.Broadcast(room.ID, BattleEnd{
			RoomID:  room.ID,
			Winner:  out.Winner,
			Logs:    out.Logs,
			Rewards: rewards,
		})
		h.logger.Info("battle ended",
			append(observability.RoomFields(room.ID, turn),
				zap.String("winner", string(out.Winner)),
				zap.Int("rewarded", len(rewards)),
			)...,
		)
		return
	}

	h.broadcaster.Broadcast(room.ID, TurnResolve{Snapshot: next.Snapshot(), Logs: out.Logs})
	h.broadcaster.Broadcast(room.ID, turnBegin(next))
	h.timeouts.Schedule(next.ID, next.Turn, next.DeadlineAt)
}

// ResolveNow forces resolution of roomID's current turn as if its deadline
// had passed. Stale turns and finished rooms are no-ops, as is every call
// after Stop.
func (h *BattleHandler) ResolveNow(roomID string, turn int) error {
	return h.rooms.Locks.With(roomID, func() error {
		if h.stopped.Load() {
			return nil
		}
		room, ok := h.rooms.Store.Get(roomID)
		if !ok {
			return ErrRoomNotFound
		}
		if room.Status == battle.RoomFinished {
			return nil
		}
		if room.Turn != turn || room.Phase != battle.PhaseTurnInput {
			return nil
		}
		h.timeouts.Cancel(roomID)
		h.resolveAndAdvanceLocked(room)
		return nil
	})
}

// Attach runs attach under roomID's lock with the events a newly subscribed
// client needs to render the room: BATTLE_START with the current snapshot,
// then TURN_BEGIN when the room is still accepting input. Subscribing inside
// attach guarantees the client sees no event out of order.
func (h *BattleHandler) Attach(roomID string, attach func(initial []Event)) error {
	return h.rooms.Locks.With(roomID, func() error {
		room, ok := h.rooms.Store.Get(roomID)
		if !ok {
			return ErrRoomNotFound
		}
		evs := []Event{BattleStart{Snapshot: room.Snapshot()}}
		if room.Status == battle.RoomInProgress {
			evs = append(evs, turnBegin(room))
		}
		attach(evs)
		return nil
	})
}

// ActiveRoomFor returns the snapshot of the account's current room.
func (h *BattleHandler) ActiveRoomFor(accountID string) (battle.Snapshot, bool) {
	id, ok := h.rooms.ActiveRoomFor(accountID)
	if !ok {
		return battle.Snapshot{}, false
	}
	snap, err := h.rooms.Snapshot(id)
	if err != nil {
		return battle.Snapshot{}, false
	}
	return snap, true
}

// Snapshot returns roomID's current snapshot.
func (h *BattleHandler) Snapshot(roomID string) (battle.Snapshot, error) {
	return h.rooms.Snapshot(roomID)
}

// Stop cancels every pending turn timer and waits for background writes.
//
// Postcondition: no deadline resolves a turn after Stop returns, and every
// write started by a resolution that held a room lock has completed.
func (h *BattleHandler) Stop() {
	h.stopped.Store(true)
	h.timeouts.Stop()
	// A deadline already past its stopped check holds its room lock; taking
	// each lock once waits it out before the persister is drained.
	for _, sum := range h.rooms.Store.Summaries() {
		_ = h.rooms.Locks.With(sum.ID, func() error { return nil })
	}
	h.persist.Wait()
}
