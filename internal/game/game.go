// Package game implements the Game Controller (spec C9, §4.4): starting a
// match, the authoritative turn protocol, the AI turn driver, and rematch
// voting. Grounded on the teacher's room.go turn-taking (handleGameAction,
// nextTurn, checkGameEnd) -- the same "validate against current state,
// mutate, broadcast, advance turn" shape, adapted from Sequence's own rules
// in place of the teacher's movement/bomb rules. Every exported function
// here assumes the caller (internal/engine) holds the coarse lock for the
// duration of the call; channel delivery happens through the supplied hub,
// which does its own buffering outside that lock.
package game

import (
	"time"

	"github.com/google/uuid"

	"sequence/internal/ai"
	"sequence/internal/apperr"
	"sequence/internal/boards"
	"sequence/internal/boardstate"
	"sequence/internal/cards"
	"sequence/internal/deck"
	"sequence/internal/hub"
	"sequence/internal/registry"
	"sequence/internal/sequence"
)

// aiDifficulty is fixed at medium: the request surface exposes no selector
// for it (spec §4.4.3).
const aiDifficulty = ai.Medium

// StartResult is the data returned to the caller of start-game, separate
// from the game_started event payload broadcast to each player.
type StartResult struct {
	GameID                 string
	MissingPlayersFilledWithAI int
	AICount                int
}

// Start implements start-game: refuses unless the caller is host of a
// waiting room, fills empty slots with AI, deals hands, and emits
// game_started individually to each human. If the first seat is AI, the
// caller must schedule an AI turn after this returns.
func Start(reg *registry.Registry, h *hub.Hub, room *registry.Room, callerID string, now time.Time) (*registry.Game, StartResult, error) {
	if room.HostID != callerID {
		return nil, StartResult{}, apperr.New(apperr.Forbidden, "only the host can start the game")
	}
	if room.Status != registry.RoomWaiting {
		return nil, StartResult{}, apperr.New(apperr.Conflict, "room is not waiting")
	}
	if room.HumanCount() == 0 {
		return nil, StartResult{}, apperr.New(apperr.Conflict, "room has no human players")
	}

	aiCount := 0
	for len(room.Players) < room.MaxPlayers {
		team := 1
		if room.TeamCount(1) > room.TeamCount(2) {
			team = 2
		}
		room.Players = append(room.Players, registry.RoomPlayer{
			PlayerID:    "ai-" + uuid.NewString(),
			DisplayName: aiName(aiCount),
			IsAI:        true,
			IsReady:     true,
			Team:        team,
			JoinedAt:    now,
		})
		aiCount++
	}

	seed := deck.GenerateSeed()
	shuffled := deck.Shuffle(seed)
	layout := boards.For(room.BoardType)

	g := &registry.Game{
		ID:             uuid.NewString(),
		RoomID:         room.ID,
		DeckSeed:       seed,
		BoardType:      room.BoardType,
		Status:         registry.GameActive,
		Board:          boardstate.New(layout),
		ShuffledDeck:   shuffled,
		CreatedAt:      now,
		LastActivityAt: now,
	}

	hs := deck.HandSize(len(room.Players))
	cursor := 0
	for _, rp := range room.Players {
		hand := make([]cards.Card, hs)
		copy(hand, shuffled[cursor:cursor+hs])
		cursor += hs
		color := boardstate.Green
		if rp.Team == 2 {
			color = boardstate.Blue
		}
		g.Players = append(g.Players, registry.GamePlayer{
			PlayerID: rp.PlayerID, DisplayName: rp.DisplayName,
			TeamColor: color, IsAI: rp.IsAI, Hand: hand,
		})
	}
	g.DeckCursor = cursor
	g.Teams = buildTeams(room.Players)
	g.CurrentTurnPlayerID = room.Players[0].PlayerID

	reg.PutGame(g)
	room.Status = registry.RoomPlaying
	room.GameID = g.ID

	for _, rp := range room.Players {
		if rp.IsAI {
			continue
		}
		if s, ok := reg.SessionByPlayer(rp.PlayerID); ok {
			s.CurrentGameID = g.ID
		}
	}

	broadcastGameStarted(h, g)

	return g, StartResult{GameID: g.ID, MissingPlayersFilledWithAI: aiCount, AICount: aiCount}, nil
}

func aiName(n int) string {
	names := [...]string{"AI-Red", "AI-Gold", "AI-Silver"}
	if n < len(names) {
		return names[n]
	}
	return "AI-Player"
}

func buildTeams(players []registry.RoomPlayer) []registry.Team {
	byTeam := map[int][]string{}
	for _, p := range players {
		byTeam[p.Team] = append(byTeam[p.Team], p.PlayerID)
	}
	var teams []registry.Team
	for _, n := range []int{1, 2} {
		ids, ok := byTeam[n]
		if !ok {
			continue
		}
		color := boardstate.Green
		if n == 2 {
			color = boardstate.Blue
		}
		teams = append(teams, registry.Team{Number: n, Color: color, Players: ids})
	}
	return teams
}

// gameStartedPayload is per-recipient: every field is shared except hand.
type gameStartedPayload struct {
	GameID        string              `json:"gameId"`
	DeckSeed      int32               `json:"deckSeed"`
	BoardType     boards.Type         `json:"boardType"`
	Players       []rosterEntry       `json:"players"`
	Teams         []registry.Team     `json:"teams"`
	FirstPlayerID string              `json:"firstPlayerId"`
	Hand          []string            `json:"hand"`
}

type rosterEntry struct {
	PlayerID    string           `json:"playerId"`
	DisplayName string           `json:"displayName"`
	TeamColor   boardstate.Color `json:"teamColor"`
	IsAI        bool             `json:"isAI"`
}

func broadcastGameStarted(h *hub.Hub, g *registry.Game) {
	roster := make([]rosterEntry, len(g.Players))
	for i, p := range g.Players {
		roster[i] = rosterEntry{PlayerID: p.PlayerID, DisplayName: p.DisplayName, TeamColor: p.TeamColor, IsAI: p.IsAI}
	}
	for _, p := range g.Players {
		if p.IsAI {
			continue
		}
		h.Send(p.PlayerID, "game_started", gameStartedPayload{
			GameID: g.ID, DeckSeed: g.DeckSeed, BoardType: g.BoardType,
			Players: roster, Teams: g.Teams, FirstPlayerID: g.CurrentTurnPlayerID,
			Hand: formatHand(p.Hand),
		})
	}
}

func formatHand(hand []cards.Card) []string {
	out := make([]string, len(hand))
	for i, c := range hand {
		out[i] = c.Format()
	}
	return out
}

// turnMadeChip mirrors turn_made's chipPlaced field, which is null for a
// one-eyed Jack removal.
type turnMadeChip struct {
	Color          boardstate.Color `json:"color"`
	PartOfSequence bool             `json:"partOfSequence"`
}

type sequenceWire struct {
	TeamColor boardstate.Color       `json:"teamColor"`
	Cells     []boardstate.CellCoord `json:"cells"`
}

type turnMadePayload struct {
	PlayerID      string                 `json:"playerId"`
	CardPlayed    string                 `json:"cardPlayed"`
	Row           int                    `json:"row"`
	Col           int                    `json:"col"`
	ChipPlaced    *turnMadeChip          `json:"chipPlaced"`
	NewSequences  []sequenceWire         `json:"newSequences"`
	NextPlayerID  string                 `json:"nextPlayerId"`
}

type gameFinishedPayload struct {
	WinnerID          string           `json:"winnerId"`
	WinnerName        string           `json:"winnerName"`
	WinningTeamColor  boardstate.Color `json:"winningTeamColor"`
	FinalSequences    []sequenceWire   `json:"finalSequences"`
}

// Turn implements the turn protocol (spec §4.4 steps 1-12). On success it
// broadcasts turn_made (and game_finished, if the match ended) and, when
// the new current player is AI and the game is still active, returns true
// so the caller schedules the next AI turn.
func Turn(reg *registry.Registry, h *hub.Hub, g *registry.Game, callerID string, cardIndex, row, col int, now time.Time) (scheduleAI bool, err error) {
	if g.Status != registry.GameActive {
		return false, apperr.New(apperr.Conflict, "game is not active")
	}
	if g.CurrentTurnPlayerID != callerID {
		return false, apperr.New(apperr.Conflict, "not your turn")
	}

	pi := g.PlayerIndex(callerID)
	if pi < 0 {
		return false, apperr.New(apperr.Internal, "caller is not a player in this game")
	}
	player := &g.Players[pi]
	if cardIndex < 0 || cardIndex >= len(player.Hand) {
		return false, apperr.New(apperr.InvalidArg, "invalid card index")
	}
	if !inBounds(row, col) {
		return false, apperr.New(apperr.InvalidArg, "invalid cell")
	}

	card := player.Hand[cardIndex]
	cell := &g.Board[row][col]

	var removal bool
	switch {
	case card.IsTwoEyedJack():
		if cell.Card.IsCorner() || cell.Chip != boardstate.None {
			return false, apperr.New(apperr.IllegalMove, "two-eyed jack requires an empty non-corner cell")
		}
	case card.IsOneEyedJack():
		if cell.Chip == boardstate.None || cell.Chip == player.TeamColor || cell.PartOfSequence {
			return false, apperr.New(apperr.IllegalMove, "one-eyed jack requires a removable opponent chip")
		}
		removal = true
	default:
		if cell.Card.IsCorner() || cell.Chip != boardstate.None || cell.Card != card {
			return false, apperr.New(apperr.IllegalMove, "card does not match this cell")
		}
	}

	var chipPlaced *turnMadeChip
	if removal {
		cell.Chip = boardstate.None
		cell.PartOfSequence = false
	} else {
		cell.Chip = player.TeamColor
		cell.PartOfSequence = false
		chipPlaced = &turnMadeChip{Color: player.TeamColor, PartOfSequence: false}
	}

	alreadyRecorded := g.SequenceCount(player.TeamColor)
	newSeqs := sequence.DetectNew(&g.Board, player.TeamColor, alreadyRecorded)
	if len(newSeqs) > 0 {
		sequence.Mark(&g.Board, newSeqs)
		g.Sequences = append(g.Sequences, newSeqs...)
	}

	finished := g.SequenceCount(player.TeamColor) >= 2
	if finished {
		g.Status = registry.GameFinished
		g.WinnerID = callerID
		g.FinishedAt = now
	}

	player.Hand = append(player.Hand[:cardIndex], player.Hand[cardIndex+1:]...)
	if g.DeckCursor < deck.Size {
		player.Hand = append(player.Hand, g.ShuffledDeck[g.DeckCursor])
		g.DeckCursor++
	}

	g.TurnHistory = append(g.TurnHistory, boardstate.Turn{
		PlayerID: callerID, CardIndex: cardIndex, Row: row, Col: col,
		CardPlayed: card, TimestampU: now.UnixMilli(),
	})

	if !finished {
		g.CurrentTurnPlayerID = nextSeat(g, callerID)
	}
	g.LastActivityAt = now

	h.BroadcastGame(g, "turn_made", turnMadePayload{
		PlayerID: callerID, CardPlayed: card.Format(), Row: row, Col: col,
		ChipPlaced: chipPlaced, NewSequences: toWire(newSeqs), NextPlayerID: g.CurrentTurnPlayerID,
	})

	if finished {
		h.BroadcastGame(g, "game_finished", gameFinishedPayload{
			WinnerID: callerID, WinnerName: player.DisplayName,
			WinningTeamColor: player.TeamColor, FinalSequences: toWire(g.Sequences),
		})
		return false, nil
	}

	nextIdx := g.PlayerIndex(g.CurrentTurnPlayerID)
	return nextIdx >= 0 && g.Players[nextIdx].IsAI, nil
}

func toWire(seqs []boardstate.Sequence) []sequenceWire {
	out := make([]sequenceWire, len(seqs))
	for i, s := range seqs {
		out[i] = sequenceWire{TeamColor: s.Team, Cells: s.Cells}
	}
	return out
}

func inBounds(row, col int) bool {
	return row >= 0 && row < boards.Size && col >= 0 && col < boards.Size
}

func nextSeat(g *registry.Game, callerID string) string {
	i := g.PlayerIndex(callerID)
	n := len(g.Players)
	return g.Players[(i+1)%n].PlayerID
}

// PlayAITurn implements the AI turn driver (spec §4.4): consults the AI
// move selector for aiPlayerID's hand/board/colors/turn-count, then
// executes the result through the same Turn path. A selector miss is a
// fatal internal error per spec, never a silent pass.
func PlayAITurn(reg *registry.Registry, h *hub.Hub, g *registry.Game, aiPlayerID string, now time.Time) (scheduleAI bool, err error) {
	if g.Status != registry.GameActive || g.CurrentTurnPlayerID != aiPlayerID {
		return false, nil // stale timer: game moved on or ended
	}
	pi := g.PlayerIndex(aiPlayerID)
	if pi < 0 {
		return false, apperr.New(apperr.Internal, "AI player not found in game")
	}
	player := g.Players[pi]
	oppColor := g.OpponentColor(aiPlayerID)
	turnNumber := aiTurnCount(g, aiPlayerID)

	move, ok := ai.Select(aiDifficulty, player.Hand, &g.Board, player.TeamColor, oppColor, turnNumber)
	if !ok {
		return false, apperr.New(apperr.Internal, "AI move selector found no legal move")
	}
	return Turn(reg, h, g, aiPlayerID, move.CardIndex, move.Row, move.Col, now)
}

func aiTurnCount(g *registry.Game, playerID string) int {
	n := 0
	for _, t := range g.TurnHistory {
		if t.PlayerID == playerID {
			n++
		}
	}
	return n
}
