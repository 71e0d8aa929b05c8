package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/cory-johannsen/idlebattle/internal/game/battle"
	"github.com/cory-johannsen/idlebattle/internal/gameserver"
)

// BattleService is the room orchestration surface the API drives.
type BattleService interface {
	CreateRoom(ctx context.Context, callerID, mapID string, playerIDs []string) (battle.Snapshot, error)
	JoinRoom(ctx context.Context, roomID, accountID string) (string, error)
	SubmitCommand(roomID, accountID string, req gameserver.SubmitRequest) (gameserver.SubmitResult, error)
	ActiveRoomFor(accountID string) (battle.Snapshot, bool)
	Snapshot(roomID string) (battle.Snapshot, error)
}

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// API serves the battle room HTTP endpoints.
type API struct {
	battles BattleService
	auth    *Authenticator
	health  HealthCheck
	logger  *zap.Logger
}

// NewAPI creates an API.
//
// Precondition: battles, auth, and logger must be non-nil; health may be nil.
func NewAPI(battles BattleService, auth *Authenticator, health HealthCheck, logger *zap.Logger) *API {
	return &API{battles: battles, auth: auth, health: health, logger: logger}
}

// Register mounts every route on mux.
func (a *API) Register(mux *http.ServeMux) {
	authed := func(h http.HandlerFunc) http.Handler { return a.auth.Middleware(h) }
	mux.Handle("POST /api/battle/rooms", authed(a.createRoom))
	mux.Handle("GET /api/battle/rooms/active", authed(a.activeRoom))
	mux.Handle("GET /api/battle/rooms/{roomId}/state", authed(a.roomState))
	mux.Handle("POST /api/battle/rooms/{roomId}/join", authed(a.joinRoom))
	mux.Handle("POST /api/battle/rooms/{roomId}/command", authed(a.submitCommand))
	mux.HandleFunc("GET /healthz", a.healthz)
}

type errorBody struct {
	Error string `json:"error"`
}

type createRoomRequest struct {
	MapID     string   `json:"mapId"`
	PlayerIDs []string `json:"playerIds"`
}

type createRoomResponse struct {
	RoomID   string          `json:"roomId"`
	Snapshot battle.Snapshot `json:"snapshot"`
}

type activeRoom struct {
	RoomID     string            `json:"roomId"`
	Status     battle.RoomStatus `json:"status"`
	TurnNumber int               `json:"turnNumber"`
}

type activeRoomResponse struct {
	Room *activeRoom `json:"room"`
}

type snapshotResponse struct {
	Snapshot battle.Snapshot `json:"snapshot"`
}

type joinResponse struct {
	ParticipantID string `json:"participantId"`
}

type commandRequest struct {
	Turn     int                `json:"turn"`
	Type     battle.CommandType `json:"type"`
	TargetID string             `json:"targetId,omitempty"`
	ItemID   string             `json:"itemId,omitempty"`
}

type commandResponse struct {
	Accepted     bool   `json:"accepted"`
	AllSubmitted bool   `json:"allSubmitted"`
	CommandID    string `json:"commandId"`
}

func (a *API) createRoom(w http.ResponseWriter, r *http.Request) {
	accountID, _ := AccountFromContext(r.Context())
	var req createRoomRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if req.MapID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "mapId is required"})
		return
	}
	snap, err := a.battles.CreateRoom(r.Context(), accountID, req.MapID, req.PlayerIDs)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createRoomResponse{RoomID: snap.RoomID, Snapshot: snap})
}

func (a *API) activeRoom(w http.ResponseWriter, r *http.Request) {
	accountID, _ := AccountFromContext(r.Context())
	resp := activeRoomResponse{}
	if snap, ok := a.battles.ActiveRoomFor(accountID); ok {
		resp.Room = &activeRoom{RoomID: snap.RoomID, Status: snap.Status, TurnNumber: snap.Turn}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) roomState(w http.ResponseWriter, r *http.Request) {
	snap, err := a.battles.Snapshot(r.PathValue("roomId"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse{Snapshot: snap})
}

func (a *API) joinRoom(w http.ResponseWriter, r *http.Request) {
	accountID, _ := AccountFromContext(r.Context())
	pid, err := a.battles.JoinRoom(r.Context(), r.PathValue("roomId"), accountID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, joinResponse{ParticipantID: pid})
}

func (a *API) submitCommand(w http.ResponseWriter, r *http.Request) {
	accountID, _ := AccountFromContext(r.Context())
	var req commandRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	res, err := a.battles.SubmitCommand(r.PathValue("roomId"), accountID, gameserver.SubmitRequest{
		Turn:     req.Turn,
		Type:     req.Type,
		TargetID: req.TargetID,
		ItemID:   req.ItemID,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{
		Accepted:     true,
		AllSubmitted: res.AllSubmitted,
		CommandID:    res.CommandID,
	})
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	if a.health != nil {
		if err := a.health(r.Context()); err != nil {
			a.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

var (
	notFound = []error{
		gameserver.ErrRoomNotFound,
		gameserver.ErrUnknownMap,
		gameserver.ErrCharacterNotFound,
	}
	conflict = []error{
		gameserver.ErrRoomFinished,
		gameserver.ErrStaleTurn,
		gameserver.ErrNotInRoom,
		gameserver.ErrParticipantDown,
		gameserver.ErrAlreadySubmitted,
		gameserver.ErrRoomFull,
		gameserver.ErrAlreadyJoined,
	}
	badRequest = []error{
		gameserver.ErrTargetRequired,
		gameserver.ErrItemRequired,
		gameserver.ErrUnknownCommand,
		gameserver.ErrInvalidPlayers,
	}
)

// StatusFor maps a room service error to its HTTP status.
func StatusFor(err error) int {
	match := func(set []error) bool {
		for _, target := range set {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	}
	switch {
	case match(notFound):
		return http.StatusNotFound
	case match(conflict):
		return http.StatusConflict
	case match(badRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		a.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

const maxBodyBytes = 1 << 16

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("malformed request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
