// Package gameserver runs battle rooms: creation and joining, turn input
// with deadlines, resolution, rewards, and write-back of character state.
//
// Every room is guarded by its own lock in KeyedLocks. RoomService methods
// with a Locked suffix expect the caller to hold that lock; BattleHandler is
// the layer that takes it and owns the turn timers, broadcasts, and
// post-battle persistence.
package gameserver
