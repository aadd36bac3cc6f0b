package game

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"sequence/internal/apperr"
	"sequence/internal/boards"
	"sequence/internal/boardstate"
	"sequence/internal/cards"
	"sequence/internal/deck"
	"sequence/internal/hub"
	"sequence/internal/registry"
)

// RematchDeadlineOffset is how far out a fresh RematchState's deadline is
// set (spec §4.4).
const RematchDeadlineOffset = 30 * time.Second

type rematchVotePayload struct {
	PlayerID string `json:"playerId"`
	Vote     bool   `json:"vote"`
	YesVotes int    `json:"yesVotes"`
	Required int    `json:"required"`
}

// RematchStateDTO is the wire projection of a registry.RematchState (spec
// §3 "RematchState"), returned to the caller of rematch-vote as
// {rematchState}.
type RematchStateDTO struct {
	GameID        string             `json:"gameId"`
	Active        bool               `json:"active"`
	Votes         []RematchVoteEntry `json:"votes"`
	Deadline      int64              `json:"deadline"`
	RequiredVotes int                `json:"requiredVotes"`
}

type RematchVoteEntry struct {
	PlayerID string `json:"playerId"`
	Vote     bool   `json:"vote"`
}

func toRematchDTO(rs *registry.RematchState) RematchStateDTO {
	votes := make([]RematchVoteEntry, 0, len(rs.Votes))
	for playerID, v := range rs.Votes {
		votes = append(votes, RematchVoteEntry{PlayerID: playerID, Vote: v})
	}
	sort.Slice(votes, func(i, j int) bool { return votes[i].PlayerID < votes[j].PlayerID })
	return RematchStateDTO{
		GameID: rs.GameID, Active: rs.Active, Votes: votes,
		Deadline: rs.Deadline.UnixMilli(), RequiredVotes: rs.RequiredVotes,
	}
}

// humanCount counts non-AI players in a finished game.
func humanCount(g *registry.Game) int {
	n := 0
	for _, p := range g.Players {
		if !p.IsAI {
			n++
		}
	}
	return n
}

// Vote implements rematch-vote: only valid on a finished game. Creates the
// RematchState on first vote, records/overwrites the caller's vote,
// broadcasts rematch_vote, and -- once enough yes votes are in -- starts a
// fresh game from the same room and broadcasts rematch_started followed by
// game_started, returning the new game so the caller can schedule its
// first AI turn if applicable. rematch is the {rematchState} snapshot the
// caller returns alongside the rematch-vote response (spec §6.1); once
// quorum is reached and the state is deleted, rematch reflects it as no
// longer active.
func Vote(reg *registry.Registry, h *hub.Hub, g *registry.Game, room *registry.Room, callerID string, vote bool, deadlineOffset time.Duration, now time.Time) (newGame *registry.Game, scheduleAI bool, rematch RematchStateDTO, err error) {
	if g.Status != registry.GameFinished {
		return nil, false, RematchStateDTO{}, apperr.New(apperr.Conflict, "game is not finished")
	}

	rs, ok := reg.Rematch(g.ID)
	if !ok {
		rs = &registry.RematchState{
			GameID: g.ID, Active: true, Votes: make(map[string]bool),
			Deadline: now.Add(deadlineOffset), RequiredVotes: humanCount(g),
		}
		reg.PutRematch(rs)
	}
	rs.Votes[callerID] = vote

	h.BroadcastGame(g, "rematch_vote", rematchVotePayload{
		PlayerID: callerID, Vote: vote, YesVotes: rs.YesVotes(), Required: rs.RequiredVotes,
	})

	if rs.YesVotes() < rs.RequiredVotes {
		return nil, false, toRematchDTO(rs), nil
	}

	dto := toRematchDTO(rs)
	dto.Active = false

	ng := restart(reg, room, g, now)
	h.BroadcastGame(ng, "rematch_started", map[string]string{"newGameId": ng.ID})
	broadcastGameStarted(h, ng)
	reg.DeleteRematch(g.ID)

	firstIdx := ng.PlayerIndex(ng.CurrentTurnPlayerID)
	return ng, firstIdx >= 0 && ng.Players[firstIdx].IsAI, dto, nil
}

// restart builds a brand-new game from the same room: same players and
// board type, a fresh seed, cursor reset, turn history cleared.
func restart(reg *registry.Registry, room *registry.Room, old *registry.Game, now time.Time) *registry.Game {
	seed := deck.GenerateSeed()
	shuffled := deck.Shuffle(seed)
	layout := boards.For(old.BoardType)

	ng := &registry.Game{
		ID: uuid.NewString(), RoomID: old.RoomID, DeckSeed: seed,
		BoardType: old.BoardType, Status: registry.GameActive,
		Board: boardstate.New(layout), ShuffledDeck: shuffled,
		Teams: old.Teams, CreatedAt: now, LastActivityAt: now,
	}

	hs := deck.HandSize(len(old.Players))
	cursor := 0
	for _, p := range old.Players {
		hand := make([]cards.Card, hs)
		copy(hand, shuffled[cursor:cursor+hs])
		cursor += hs
		ng.Players = append(ng.Players, registry.GamePlayer{
			PlayerID: p.PlayerID, DisplayName: p.DisplayName,
			TeamColor: p.TeamColor, IsAI: p.IsAI, Hand: hand,
		})
	}
	ng.DeckCursor = cursor
	ng.CurrentTurnPlayerID = ng.Players[0].PlayerID

	reg.PutGame(ng)
	room.GameID = ng.ID
	room.Status = registry.RoomPlaying

	for _, p := range ng.Players {
		if p.IsAI {
			continue
		}
		if s, ok := reg.SessionByPlayer(p.PlayerID); ok {
			s.CurrentGameID = ng.ID
		}
	}
	return ng
}

// Cancel implements cancel-rematch: broadcasts rematch_cancelled with
// reason=player_declined, deletes the rematch state, flips the room back
// to waiting (dropping its AI members), and clears the caller's
// currentGameId.
func Cancel(reg *registry.Registry, h *hub.Hub, g *registry.Game, room *registry.Room, callerID string) {
	h.BroadcastGame(g, "rematch_cancelled", map[string]string{"reason": "player_declined"})
	reg.DeleteRematch(g.ID)
	dropAIAndReopen(room)
	if s, ok := reg.SessionByPlayer(callerID); ok {
		s.CurrentGameID = ""
	}
}

// ExpireTimedOut is called by the GC's rematch sweep for each game id whose
// rematch deadline passed without enough yes votes: broadcasts
// rematch_cancelled reason=timeout and reopens the room.
func ExpireTimedOut(reg *registry.Registry, h *hub.Hub, g *registry.Game, room *registry.Room) {
	h.BroadcastGame(g, "rematch_cancelled", map[string]string{"reason": "timeout"})
	dropAIAndReopen(room)
}

func dropAIAndReopen(room *registry.Room) {
	if room == nil {
		return
	}
	kept := room.Players[:0]
	for _, p := range room.Players {
		if p.IsAI {
			continue
		}
		p.IsReady = p.PlayerID == room.HostID
		kept = append(kept, p)
	}
	room.Players = kept
	room.Status = registry.RoomWaiting
	room.GameID = ""
}
