// Package registry is the Storage Registry (spec C5, §4.1): it exclusively
// owns every Session, Room, Game and RematchState record and the secondary
// indices over them. Every mutator here assumes the caller already holds
// the engine's single coarse lock (spec §5) -- the registry itself stays
// lock-free, mirroring how the teacher's Room (internal/server/room.go)
// mutates its maps without its own mutex because only the single room
// goroutine ever touches them. Here the "single goroutine" is replaced by
// "single held lock", per the spec's simpler concurrency model, but the
// payoff is the same: no mutator needs to worry about concurrent writers.
package registry

import (
	"time"

	"sequence/internal/boardstate"
	"sequence/internal/boards"
	"sequence/internal/cards"
)

type RoomStatus string

const (
	RoomWaiting  RoomStatus = "waiting"
	RoomPlaying  RoomStatus = "playing"
	RoomFinished RoomStatus = "finished"
)

type Mode string

const (
	Mode1v1 Mode = "1v1"
	Mode2v2 Mode = "2v2"
)

type GameStatus string

const (
	GameActive   GameStatus = "active"
	GameFinished GameStatus = "finished"
)

// Session is the server-side record authenticating and naming one player
// for the lifetime of their connection (spec §3).
type Session struct {
	SessionID      string
	PlayerID       string
	DisplayName    string
	CreatedAt      time.Time
	LastActivity   time.Time
	CurrentRoomID  string
	CurrentGameID  string
}

// RoomPlayer is one seat in a Room's lobby.
type RoomPlayer struct {
	PlayerID    string
	DisplayName string
	IsHost      bool
	IsReady     bool
	IsAI        bool
	Team        int
	JoinedAt    time.Time
}

// Room is a lobby grouping of players prior to, during, and briefly after a
// Game (spec §3).
type Room struct {
	ID         string
	Name       string
	Mode       Mode
	BoardType  boards.Type
	Password   string
	Status     RoomStatus
	HostID     string
	Players    []RoomPlayer
	MaxPlayers int
	CreatedAt  time.Time
	GameID     string
}

func (r *Room) HasPassword() bool {
	return r.Password != ""
}

func (r *Room) PlayerIndex(playerID string) int {
	for i := range r.Players {
		if r.Players[i].PlayerID == playerID {
			return i
		}
	}
	return -1
}

func (r *Room) HumanCount() int {
	n := 0
	for _, p := range r.Players {
		if !p.IsAI {
			n++
		}
	}
	return n
}

func (r *Room) TeamCount(team int) int {
	n := 0
	for _, p := range r.Players {
		if p.Team == team {
			n++
		}
	}
	return n
}

// GamePlayer is one seat in an active or finished Game.
type GamePlayer struct {
	PlayerID    string
	DisplayName string
	TeamColor   boardstate.Color
	IsAI        bool
	Hand        []cards.Card
}

// Team groups player ids under a shared color for turn/score bookkeeping.
type Team struct {
	Number int
	Color  boardstate.Color
	Players []string
}

// Game is one in-progress or just-finished match (spec §3).
type Game struct {
	ID                  string
	RoomID              string
	DeckSeed            int32
	BoardType           boards.Type
	Status              GameStatus
	Players             []GamePlayer
	Teams               []Team
	Board               boardstate.Board
	Sequences           []boardstate.Sequence
	CurrentTurnPlayerID string
	DeckCursor          int
	ShuffledDeck        [104]cards.Card
	TurnHistory         []boardstate.Turn
	WinnerID            string
	CreatedAt           time.Time
	LastActivityAt      time.Time
	FinishedAt          time.Time
}

func (g *Game) PlayerIndex(playerID string) int {
	for i := range g.Players {
		if g.Players[i].PlayerID == playerID {
			return i
		}
	}
	return -1
}

func (g *Game) TeamOf(playerID string) *Team {
	for i := range g.Teams {
		for _, pid := range g.Teams[i].Players {
			if pid == playerID {
				return &g.Teams[i]
			}
		}
	}
	return nil
}

func (g *Game) OpponentColor(playerID string) boardstate.Color {
	mine := g.TeamOf(playerID)
	for i := range g.Teams {
		if mine == nil || g.Teams[i].Number != mine.Number {
			return g.Teams[i].Color
		}
	}
	return boardstate.None
}

func (g *Game) SequenceCount(team boardstate.Color) int {
	n := 0
	for _, s := range g.Sequences {
		if s.Team == team {
			n++
		}
	}
	return n
}

// RematchState tracks post-game rematch voting for one finished Game
// (spec §3).
type RematchState struct {
	GameID        string
	Active        bool
	Votes         map[string]bool
	Deadline      time.Time
	RequiredVotes int
}

func (rs *RematchState) YesVotes() int {
	n := 0
	for _, v := range rs.Votes {
		if v {
			n++
		}
	}
	return n
}
