package gameserver

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/idlebattle/internal/game/battle"
	"github.com/cory-johannsen/idlebattle/internal/pkg/clock"
)

// Janitor evicts finished rooms once they have been over for a TTL.
type Janitor struct {
	rooms    *RoomService
	clock    clock.Clock
	ttl      time.Duration
	interval time.Duration
	logger   *zap.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

// NewJanitor creates a Janitor. A zero ttl disables eviction.
//
// Precondition: interval > 0 when ttl > 0.
func NewJanitor(rooms *RoomService, clk clock.Clock, ttl, interval time.Duration, logger *zap.Logger) *Janitor {
	return &Janitor{
		rooms:    rooms,
		clock:    clk,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start sweeps on every interval until Stop is called.
func (j *Janitor) Start() error {
	if j.ttl <= 0 {
		<-j.stop
		return nil
	}
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-j.stop:
			return nil
		case <-ticker.C:
			if n := j.Sweep(); n > 0 {
				j.logger.Info("evicted finished rooms", zap.Int("count", n))
			}
		}
	}
}

// Stop ends the sweep loop.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })
}

// Sweep evicts every room that finished at least ttl ago and returns the
// number removed. In-progress rooms are never touched.
func (j *Janitor) Sweep() int {
	if j.ttl <= 0 {
		return 0
	}
	cutoff := j.clock.Now().Add(-j.ttl)
	evicted := 0
	for _, sum := range j.rooms.Store.Summaries() {
		if sum.Status != battle.RoomFinished || sum.EndedAt.After(cutoff) {
			continue
		}
		_ = j.rooms.Locks.With(sum.ID, func() error {
			room, ok := j.rooms.Store.Get(sum.ID)
			if !ok || room.Status != battle.RoomFinished {
				return nil
			}
			j.rooms.Store.Delete(sum.ID)
			evicted++
			return nil
		})
	}
	return evicted
}
