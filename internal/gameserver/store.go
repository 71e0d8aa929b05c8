package gameserver

import (
	"sync"
	"time"

	"github.com/cory-johannsen/idlebattle/internal/game/battle"
)

// RoomSummary is the lock-free view of a stored room used by lookups that
// scan many rooms.
type RoomSummary struct {
	ID         string
	Status     battle.RoomStatus
	Turn       int
	AccountIDs []string
	UpdatedAt  time.Time
	EndedAt    time.Time
}

// RoomStore is the in-memory room registry.
//
// Rooms returned by Get are live: callers must hold the room's lock to read
// or mutate them and must call Put after a mutation so summaries stay current.
type RoomStore struct {
	mu        sync.RWMutex
	rooms     map[string]*battle.Room
	summaries map[string]RoomSummary
}

// NewRoomStore returns an empty RoomStore.
func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms:     make(map[string]*battle.Room),
		summaries: make(map[string]RoomSummary),
	}
}

// Put inserts or replaces a room.
//
// Precondition: r is non-nil and r.ID is non-empty.
func (s *RoomStore) Put(r *battle.Room) {
	sum := RoomSummary{
		ID:        r.ID,
		Status:    r.Status,
		Turn:      r.Turn,
		UpdatedAt: r.UpdatedAt,
		EndedAt:   r.EndedAt,
	}
	for i := range r.Participants {
		if p := &r.Participants[i]; p.IsPlayer() {
			sum.AccountIDs = append(sum.AccountIDs, p.AccountID)
		}
	}
	s.mu.Lock()
	s.rooms[r.ID] = r
	s.summaries[r.ID] = sum
	s.mu.Unlock()
}

// Get returns the live room for id.
func (s *RoomStore) Get(id string) (*battle.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	return r, ok
}

// Delete removes a room. Deleting an absent room is a no-op.
func (s *RoomStore) Delete(id string) {
	s.mu.Lock()
	delete(s.rooms, id)
	delete(s.summaries, id)
	s.mu.Unlock()
}

// Summaries returns a copy of every room summary.
func (s *RoomStore) Summaries() []RoomSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RoomSummary, 0, len(s.summaries))
	for _, sum := range s.summaries {
		out = append(out, sum)
	}
	return out
}

// ActiveFor returns the id of the most recently updated in-progress room in
// which accountID has a player.
func (s *RoomStore) ActiveFor(accountID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best RoomSummary
	found := false
	for _, sum := range s.summaries {
		if sum.Status != battle.RoomInProgress {
			continue
		}
		for _, id := range sum.AccountIDs {
			if id != accountID {
				continue
			}
			if !found || sum.UpdatedAt.After(best.UpdatedAt) {
				best, found = sum, true
			}
			break
		}
	}
	return best.ID, found
}

// Len returns the number of stored rooms.
func (s *RoomStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
