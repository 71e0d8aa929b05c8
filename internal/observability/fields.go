package observability

import "go.uber.org/zap"

// RoomFields returns the standard fields attached to room-scoped log lines.
func RoomFields(roomID string, turn int) []zap.Field {
	return []zap.Field{
		zap.String("room_id", roomID),
		zap.Int("turn", turn),
	}
}
