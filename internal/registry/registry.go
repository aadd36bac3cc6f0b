package registry

import (
	"strings"
	"time"

	"sequence/internal/apperr"
)

// Registry holds every live Session, Room, Game and RematchState plus the
// secondary indices spec §4.1 calls for. All methods assume the caller
// already holds the engine's coarse lock.
type Registry struct {
	sessionsByID   map[string]*Session
	sessionByPlayer map[string]*Session
	namesLower     map[string]bool

	rooms map[string]*Room
	games map[string]*Game
	rematches map[string]*RematchState
}

func New() *Registry {
	return &Registry{
		sessionsByID:    make(map[string]*Session),
		sessionByPlayer: make(map[string]*Session),
		namesLower:      make(map[string]bool),
		rooms:           make(map[string]*Room),
		games:           make(map[string]*Game),
		rematches:       make(map[string]*RematchState),
	}
}

// --- sessions ----------------------------------------------------------------------

func (r *Registry) NameTaken(name string) bool {
	return r.namesLower[strings.ToLower(name)]
}

// CreateSession reserves the display name and records a new session
// atomically (spec §4.1 "name reservation and release are atomic with
// session creation/deletion").
func (r *Registry) CreateSession(sessionID, playerID, displayName string, now time.Time) *Session {
	s := &Session{
		SessionID:    sessionID,
		PlayerID:     playerID,
		DisplayName:  displayName,
		CreatedAt:    now,
		LastActivity: now,
	}
	r.sessionsByID[sessionID] = s
	r.sessionByPlayer[playerID] = s
	r.namesLower[strings.ToLower(displayName)] = true
	return s
}

func (r *Registry) Session(sessionID string) (*Session, error) {
	s, ok := r.sessionsByID[sessionID]
	if !ok {
		return nil, apperr.New(apperr.Unauthorized, "session not found")
	}
	return s, nil
}

func (r *Registry) SessionByPlayer(playerID string) (*Session, bool) {
	s, ok := r.sessionByPlayer[playerID]
	return s, ok
}

func (r *Registry) Touch(s *Session, now time.Time) {
	s.LastActivity = now
}

// DeleteSession releases the session's reserved name.
func (r *Registry) DeleteSession(sessionID string) {
	s, ok := r.sessionsByID[sessionID]
	if !ok {
		return
	}
	delete(r.sessionsByID, sessionID)
	delete(r.sessionByPlayer, s.PlayerID)
	delete(r.namesLower, strings.ToLower(s.DisplayName))
}

func (r *Registry) AllSessions() []*Session {
	out := make([]*Session, 0, len(r.sessionsByID))
	for _, s := range r.sessionsByID {
		out = append(out, s)
	}
	return out
}

// --- rooms ---------------------------------------------------------------------

func (r *Registry) PutRoom(room *Room) {
	r.rooms[room.ID] = room
}

func (r *Registry) Room(roomID string) (*Room, error) {
	room, ok := r.rooms[roomID]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "room %s not found", roomID)
	}
	return room, nil
}

func (r *Registry) DeleteRoom(roomID string) {
	delete(r.rooms, roomID)
}

func (r *Registry) AllRooms() []*Room {
	out := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	return out
}

// --- games -----------------------------------------------------------------------

func (r *Registry) PutGame(game *Game) {
	r.games[game.ID] = game
}

func (r *Registry) Game(gameID string) (*Game, error) {
	game, ok := r.games[gameID]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "game %s not found", gameID)
	}
	return game, nil
}

func (r *Registry) DeleteGame(gameID string) {
	delete(r.games, gameID)
	delete(r.rematches, gameID)
}

func (r *Registry) AllGames() []*Game {
	out := make([]*Game, 0, len(r.games))
	for _, g := range r.games {
		out = append(out, g)
	}
	return out
}

// --- rematch state -----------------------------------------------------------------

func (r *Registry) Rematch(gameID string) (*RematchState, bool) {
	rs, ok := r.rematches[gameID]
	return rs, ok
}

func (r *Registry) PutRematch(rs *RematchState) {
	r.rematches[rs.GameID] = rs
}

func (r *Registry) DeleteRematch(gameID string) {
	delete(r.rematches, gameID)
}

func (r *Registry) AllRematches() []*RematchState {
	out := make([]*RematchState, 0, len(r.rematches))
	for _, rs := range r.rematches {
		out = append(out, rs)
	}
	return out
}
