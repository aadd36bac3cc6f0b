// Package room implements the Room Manager (spec C8, §4.3): room
// lifecycle, team balancing, host transfer, and the lobby listing
// projection. Grounded on the teacher's room_manager.go/room.go (Join,
// Leave, HandleRoomAction, GetRoomList) -- the same operations, adapted
// from the teacher's channel-actor dispatch into plain functions the
// engine calls under its coarse lock instead of posting to a room
// goroutine's request channel.
package room

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"sequence/internal/apperr"
	"sequence/internal/boards"
	"sequence/internal/registry"
)

func maxPlayersFor(mode registry.Mode) int {
	if mode == registry.Mode2v2 {
		return 4
	}
	return 2
}

// Create implements create-room: refuses if the session is already in a
// room, then creates it with the caller as sole host.
func Create(reg *registry.Registry, s *registry.Session, name string, mode registry.Mode, boardType boards.Type, password string, now time.Time) (*registry.Room, error) {
	if s.CurrentRoomID != "" {
		return nil, apperr.New(apperr.Conflict, "already in a room")
	}
	trimmed := trimName(name)
	if len(trimmed) < 3 || len(trimmed) > 30 {
		return nil, apperr.New(apperr.InvalidArg, "room name must be between 3 and 30 characters")
	}
	if mode != registry.Mode1v1 && mode != registry.Mode2v2 {
		return nil, apperr.New(apperr.InvalidArg, "invalid mode")
	}

	r := &registry.Room{
		ID:         uuid.NewString(),
		Name:       trimmed,
		Mode:       mode,
		BoardType:  boardType,
		Password:   password,
		Status:     registry.RoomWaiting,
		HostID:     s.PlayerID,
		MaxPlayers: maxPlayersFor(mode),
		CreatedAt:  now,
		Players: []registry.RoomPlayer{{
			PlayerID:    s.PlayerID,
			DisplayName: s.DisplayName,
			IsHost:      true,
			IsReady:     true,
			Team:        1,
			JoinedAt:    now,
		}},
	}
	reg.PutRoom(r)
	s.CurrentRoomID = r.ID
	return r, nil
}

func trimName(name string) string {
	out := make([]byte, 0, len(name))
	start, end := 0, len(name)
	for start < end && (name[start] == ' ' || name[start] == '\t') {
		start++
	}
	for end > start && (name[end-1] == ' ' || name[end-1] == '\t') {
		end--
	}
	out = append(out, name[start:end]...)
	return string(out)
}

// Join implements join-room.
func Join(reg *registry.Registry, s *registry.Session, room *registry.Room, password string) error {
	if s.CurrentRoomID != "" {
		return apperr.New(apperr.Conflict, "already in a room")
	}
	if room.Status != registry.RoomWaiting {
		return apperr.New(apperr.Conflict, "room is not accepting players")
	}
	if len(room.Players) >= room.MaxPlayers {
		return apperr.New(apperr.Conflict, "room is full")
	}
	if room.HasPassword() && room.Password != password {
		return apperr.New(apperr.Conflict, "incorrect password")
	}

	team := balancedTeam(room)
	room.Players = append(room.Players, registry.RoomPlayer{
		PlayerID:    s.PlayerID,
		DisplayName: s.DisplayName,
		Team:        team,
		JoinedAt:    time.Now(),
	})
	s.CurrentRoomID = room.ID
	return nil
}

// balancedTeam assigns the joiner to whichever team has fewer members,
// team 1 on a tie.
func balancedTeam(room *registry.Room) int {
	if room.Mode != registry.Mode2v2 {
		if room.TeamCount(1) == 0 {
			return 1
		}
		return 2
	}
	if room.TeamCount(1) <= room.TeamCount(2) {
		return 1
	}
	return 2
}

// LeaveReason distinguishes why a player left for the player_left event.
type LeaveReason string

const (
	ReasonLeave      LeaveReason = "leave"
	ReasonDisconnect LeaveReason = "disconnect"
	ReasonKick       LeaveReason = "kick"
)

// LeaveResult reports what happened so the caller can shape the broadcast.
type LeaveResult struct {
	RoomDeleted bool
	NewHostID   string
}

// Leave implements leave-room: removes the player, promotes a new host if
// needed, and reports whether the room is now empty.
func Leave(reg *registry.Registry, room *registry.Room, playerID string) LeaveResult {
	idx := room.PlayerIndex(playerID)
	if idx < 0 {
		return LeaveResult{}
	}
	wasHost := room.Players[idx].IsHost
	room.Players = append(room.Players[:idx], room.Players[idx+1:]...)

	if len(room.Players) == 0 {
		reg.DeleteRoom(room.ID)
		return LeaveResult{RoomDeleted: true}
	}

	if wasHost {
		newHost := earliestNonAI(room.Players)
		if newHost >= 0 {
			room.Players[newHost].IsHost = true
			room.Players[newHost].IsReady = true
			room.HostID = room.Players[newHost].PlayerID
			return LeaveResult{NewHostID: room.HostID}
		}
	}
	return LeaveResult{}
}

func earliestNonAI(players []registry.RoomPlayer) int {
	best := -1
	for i, p := range players {
		if p.IsAI {
			continue
		}
		if best < 0 || p.JoinedAt.Before(players[best].JoinedAt) {
			best = i
		}
	}
	return best
}

// SetReady implements set-ready. The host is always ready (isHost ⇒
// isReady, spec §3); a host may not toggle themselves to not-ready.
func SetReady(room *registry.Room, playerID string, ready bool) error {
	idx := room.PlayerIndex(playerID)
	if idx < 0 {
		return apperr.New(apperr.NotFound, "player not in room")
	}
	if room.Players[idx].IsHost && !ready {
		return apperr.New(apperr.Conflict, "the host is always ready")
	}
	room.Players[idx].IsReady = ready
	return nil
}

// ChangeTeam implements change-team: only valid in 2v2, refuses a full
// target team.
func ChangeTeam(room *registry.Room, playerID string, team int) error {
	if room.Mode != registry.Mode2v2 {
		return apperr.New(apperr.Conflict, "team changes require 2v2 mode")
	}
	if team != 1 && team != 2 {
		return apperr.New(apperr.InvalidArg, "invalid team")
	}
	idx := room.PlayerIndex(playerID)
	if idx < 0 {
		return apperr.New(apperr.NotFound, "player not in room")
	}
	if room.Players[idx].Team == team {
		return nil
	}
	others := 0
	for i, p := range room.Players {
		if i != idx && p.Team == team {
			others++
		}
	}
	if others >= 2 {
		return apperr.New(apperr.Conflict, "target team is full")
	}
	room.Players[idx].Team = team
	return nil
}

// LobbyRoom is the list-rooms projection (spec §4.3).
type LobbyRoom struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Mode        registry.Mode `json:"mode"`
	BoardType   boards.Type `json:"boardType"`
	HasPassword bool        `json:"hasPassword"`
	Status      registry.RoomStatus `json:"status"`
	Players     int         `json:"players"`
	MaxPlayers  int         `json:"maxPlayers"`
	HostName    string      `json:"hostName"`
}

// List implements list-rooms: every non-finished room, sorted by creation
// time for deterministic output (the teacher sorts its room-id list the
// same way in GetRoomList).
func List(reg *registry.Registry) []LobbyRoom {
	rooms := reg.AllRooms()
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].CreatedAt.Before(rooms[j].CreatedAt) })

	out := make([]LobbyRoom, 0, len(rooms))
	for _, r := range rooms {
		if r.Status == registry.RoomFinished {
			continue
		}
		hostName := ""
		if idx := r.PlayerIndex(r.HostID); idx >= 0 {
			hostName = r.Players[idx].DisplayName
		}
		out = append(out, LobbyRoom{
			ID:          r.ID,
			Name:        r.Name,
			Mode:        r.Mode,
			BoardType:   r.BoardType,
			HasPassword: r.HasPassword(),
			Status:      r.Status,
			Players:     len(r.Players),
			MaxPlayers:  r.MaxPlayers,
			HostName:    hostName,
		})
	}
	return out
}

// SanitizedPlayer is the wire-safe view of a RoomPlayer.
type SanitizedPlayer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsHost  bool   `json:"isHost"`
	IsReady bool   `json:"isReady"`
	IsAI    bool   `json:"isAI"`
	Team    int    `json:"team"`
}

// Sanitized is the wire-safe room projection (spec §6.1): the raw password
// is never included.
type Sanitized struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Mode       registry.Mode     `json:"mode"`
	BoardType  boards.Type       `json:"boardType"`
	HasPassword bool             `json:"hasPassword"`
	Status     registry.RoomStatus `json:"status"`
	Players    []SanitizedPlayer `json:"players"`
	MaxPlayers int               `json:"maxPlayers"`
	HostID     string            `json:"hostId"`
}

func Sanitize(r *registry.Room) Sanitized {
	players := make([]SanitizedPlayer, len(r.Players))
	for i, p := range r.Players {
		players[i] = SanitizedPlayer{ID: p.PlayerID, Name: p.DisplayName, IsHost: p.IsHost, IsReady: p.IsReady, IsAI: p.IsAI, Team: p.Team}
	}
	return Sanitized{
		ID: r.ID, Name: r.Name, Mode: r.Mode, BoardType: r.BoardType,
		HasPassword: r.HasPassword(), Status: r.Status, Players: players,
		MaxPlayers: r.MaxPlayers, HostID: r.HostID,
	}
}
