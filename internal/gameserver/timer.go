package gameserver

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/idlebattle/internal/pkg/clock"
)

// TurnTimer fires a callback once at a turn's deadline unless cancelled.
type TurnTimer struct {
	RoomID string
	Turn   int

	mu        sync.Mutex
	timer     *time.Timer
	cancelled bool
}

// Cancel stops the timer. Returns true if the callback had not yet fired.
func (t *TurnTimer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelled = true
	return t.timer.Stop()
}

func (t *TurnTimer) live() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.cancelled
}

// TimeoutService keeps at most one pending TurnTimer per room.
type TimeoutService struct {
	clock  clock.Clock
	fire   func(roomID string, turn int)
	logger *zap.Logger

	mu      sync.Mutex
	timers  map[string]*TurnTimer
	stopped bool
}

// NewTimeoutService creates a TimeoutService that calls fire when a turn's
// deadline passes.
//
// Precondition: fire must be non-nil and must revalidate the room under its
// lock; a fire can race with a cancel issued by another goroutine.
func NewTimeoutService(clk clock.Clock, fire func(roomID string, turn int), logger *zap.Logger) *TimeoutService {
	return &TimeoutService{
		clock:  clk,
		fire:   fire,
		logger: logger,
		timers: make(map[string]*TurnTimer),
	}
}

// Schedule arms a timer for (roomID, turn) at deadline, replacing any timer
// already pending for the room.
//
// Postcondition: exactly one timer is pending for roomID, or none and a nil
// result once Stop has been called.
func (s *TimeoutService) Schedule(roomID string, turn int, deadline time.Time) *TurnTimer {
	delay := deadline.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	t := &TurnTimer{RoomID: roomID, Turn: turn}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.logger.Debug("turn timer not scheduled after stop",
			zap.String("room_id", roomID),
			zap.Int("turn", turn),
		)
		return nil
	}
	if old, ok := s.timers[roomID]; ok {
		old.Cancel()
	}
	s.timers[roomID] = t
	// Arm under s.mu so the callback cannot observe a nil timer.
	t.mu.Lock()
	t.timer = time.AfterFunc(delay, func() { s.expire(t) })
	t.mu.Unlock()
	s.mu.Unlock()

	s.logger.Debug("turn timer scheduled",
		zap.String("room_id", roomID),
		zap.Int("turn", turn),
		zap.Duration("delay", delay),
	)
	return t
}

func (s *TimeoutService) expire(t *TurnTimer) {
	if !t.live() {
		return
	}
	s.mu.Lock()
	if s.timers[t.RoomID] == t {
		delete(s.timers, t.RoomID)
	}
	s.mu.Unlock()
	s.fire(t.RoomID, t.Turn)
}

// Cancel stops the pending timer for roomID, if any.
func (s *TimeoutService) Cancel(roomID string) {
	s.mu.Lock()
	t, ok := s.timers[roomID]
	delete(s.timers, roomID)
	s.mu.Unlock()
	if ok {
		t.Cancel()
	}
}

// Pending returns the turn of the timer pending for roomID.
func (s *TimeoutService) Pending(roomID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[roomID]
	if !ok {
		return 0, false
	}
	return t.Turn, true
}

// Stop cancels every pending timer. Later calls to Schedule arm nothing.
func (s *TimeoutService) Stop() {
	s.mu.Lock()
	s.stopped = true
	timers := s.timers
	s.timers = make(map[string]*TurnTimer)
	s.mu.Unlock()
	for _, t := range timers {
		t.Cancel()
	}
}
