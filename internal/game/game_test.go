package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sequence/internal/apperr"
	"sequence/internal/boards"
	"sequence/internal/boardstate"
	"sequence/internal/cards"
	"sequence/internal/deck"
	"sequence/internal/hub"
	"sequence/internal/registry"
)

type fakeChannel struct{ events []hub.Event }

func (f *fakeChannel) Send(e hub.Event) error { f.events = append(f.events, e); return nil }
func (f *fakeChannel) Close()                 {}

func newRoom(mode registry.Mode, players ...registry.RoomPlayer) *registry.Room {
	max := 2
	if mode == registry.Mode2v2 {
		max = 4
	}
	return &registry.Room{
		ID: "room1", Name: "Table", Mode: mode, BoardType: boards.Classic,
		Status: registry.RoomWaiting, HostID: players[0].PlayerID,
		MaxPlayers: max, Players: players, CreatedAt: time.Now(),
	}
}

func newBaseGame() *registry.Game {
	board := boardstate.New(boards.For(boards.Classic))
	return &registry.Game{
		ID: "g1", RoomID: "room1", Status: registry.GameActive, Board: board,
		Players: []registry.GamePlayer{
			{PlayerID: "p1", DisplayName: "Alice", TeamColor: boardstate.Green},
			{PlayerID: "p2", DisplayName: "Bob", TeamColor: boardstate.Blue},
		},
		Teams: []registry.Team{
			{Number: 1, Color: boardstate.Green, Players: []string{"p1"}},
			{Number: 2, Color: boardstate.Blue, Players: []string{"p2"}},
		},
		CurrentTurnPlayerID: "p1",
		DeckCursor:          deck.Size, // no draw, to keep hands predictable
	}
}

func TestStartFillsEmptySeatsWithAIAndDealsHands(t *testing.T) {
	reg := registry.New()
	h := hub.New(hub.DefaultDisconnectGrace, hub.DefaultHeartbeatInterval)
	h.Attach("p1", &fakeChannel{})
	room := newRoom(registry.Mode1v1, registry.RoomPlayer{PlayerID: "p1", DisplayName: "Alice", IsHost: true, IsReady: true, Team: 1})

	g, res, err := Start(reg, h, room, "p1", time.Now())
	require.NoError(t, err)
	assert.Len(t, g.Players, 2)
	assert.Equal(t, 1, res.AICount)
	assert.Equal(t, g.ID, res.GameID)
	assert.Equal(t, registry.RoomPlaying, room.Status)
	assert.Equal(t, g.ID, room.GameID)
	assert.Len(t, g.Players[0].Hand, deck.HandSize(2))
}

func TestStartRejectsANonHostCaller(t *testing.T) {
	reg := registry.New()
	h := hub.New(hub.DefaultDisconnectGrace, hub.DefaultHeartbeatInterval)
	room := newRoom(registry.Mode1v1, registry.RoomPlayer{PlayerID: "p1", IsHost: true})

	_, _, err := Start(reg, h, room, "someone-else", time.Now())
	require.Error(t, err)
	assert.Equal(t, apperr.Forbidden, apperr.CodeOf(err))
}

func TestStartRejectsARoomThatIsAlreadyPlaying(t *testing.T) {
	reg := registry.New()
	h := hub.New(hub.DefaultDisconnectGrace, hub.DefaultHeartbeatInterval)
	room := newRoom(registry.Mode1v1, registry.RoomPlayer{PlayerID: "p1", IsHost: true})
	room.Status = registry.RoomPlaying

	_, _, err := Start(reg, h, room, "p1", time.Now())
	require.Error(t, err)
	assert.Equal(t, apperr.Conflict, apperr.CodeOf(err))
}

func TestStartRejectsARoomWithNoHumans(t *testing.T) {
	reg := registry.New()
	h := hub.New(hub.DefaultDisconnectGrace, hub.DefaultHeartbeatInterval)
	room := newRoom(registry.Mode1v1, registry.RoomPlayer{PlayerID: "ai-1", IsAI: true, IsHost: true})

	_, _, err := Start(reg, h, room, "ai-1", time.Now())
	require.Error(t, err)
	assert.Equal(t, apperr.Conflict, apperr.CodeOf(err))
}

func TestTurnRejectsWhenItIsNotTheCallersTurn(t *testing.T) {
	g := newBaseGame()
	_, err := Turn(registry.New(), hub.New(hub.DefaultDisconnectGrace, hub.DefaultHeartbeatInterval), g, "p2", 0, 3, 3, time.Now())
	require.Error(t, err)
	assert.Equal(t, apperr.Conflict, apperr.CodeOf(err))
}

func TestTurnRejectsAnOutOfRangeCardIndex(t *testing.T) {
	g := newBaseGame()
	_, err := Turn(registry.New(), hub.New(hub.DefaultDisconnectGrace, hub.DefaultHeartbeatInterval), g, "p1", 3, 3, 3, time.Now())
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidArg, apperr.CodeOf(err))
}

func TestTurnRejectsAnOutOfBoundsCell(t *testing.T) {
	g := newBaseGame()
	g.Players[0].Hand = []cards.Card{{Rank: cards.Five, Suit: cards.Hearts}}
	_, err := Turn(registry.New(), hub.New(hub.DefaultDisconnectGrace, hub.DefaultHeartbeatInterval), g, "p1", 0, 99, 0, time.Now())
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidArg, apperr.CodeOf(err))
}

func TestTurnRejectsAnOrdinaryCardThatDoesNotMatchTheCell(t *testing.T) {
	g := newBaseGame()
	g.Board[3][3].Card = cards.Card{Rank: cards.Five, Suit: cards.Hearts}
	g.Players[0].Hand = []cards.Card{{Rank: cards.Six, Suit: cards.Hearts}}

	_, err := Turn(registry.New(), hub.New(hub.DefaultDisconnectGrace, hub.DefaultHeartbeatInterval), g, "p1", 0, 3, 3, time.Now())
	require.Error(t, err)
	assert.Equal(t, apperr.IllegalMove, apperr.CodeOf(err))
}

func TestTurnPlacesAMatchingCardAndAdvancesTheTurn(t *testing.T) {
	g := newBaseGame()
	g.Board[3][3].Card = cards.Card{Rank: cards.Five, Suit: cards.Hearts}
	g.Players[0].Hand = []cards.Card{{Rank: cards.Five, Suit: cards.Hearts}}
	h := hub.New(hub.DefaultDisconnectGrace, hub.DefaultHeartbeatInterval)
	ch := &fakeChannel{}
	h.Attach("p1", ch)
	h.Attach("p2", &fakeChannel{})

	scheduleAI, err := Turn(registry.New(), h, g, "p1", 0, 3, 3, time.Now())
	require.NoError(t, err)
	assert.False(t, scheduleAI)
	assert.Equal(t, boardstate.Green, g.Board[3][3].Chip)
	assert.Empty(t, g.Players[0].Hand)
	assert.Equal(t, "p2", g.CurrentTurnPlayerID)
	require.Len(t, g.TurnHistory, 1)
	assert.Equal(t, "p1", g.TurnHistory[0].PlayerID)
}

func TestTurnRejectsATwoEyedJackOnAnOccupiedCell(t *testing.T) {
	g := newBaseGame()
	g.Board[3][3].Chip = boardstate.Blue
	g.Players[0].Hand = []cards.Card{{Rank: cards.Jack, Suit: cards.Diamonds}}

	_, err := Turn(registry.New(), hub.New(hub.DefaultDisconnectGrace, hub.DefaultHeartbeatInterval), g, "p1", 0, 3, 3, time.Now())
	require.Error(t, err)
	assert.Equal(t, apperr.IllegalMove, apperr.CodeOf(err))
}

func TestTurnPlacesATwoEyedJackOnAnyEmptyNonCornerCell(t *testing.T) {
	g := newBaseGame()
	g.Players[0].Hand = []cards.Card{{Rank: cards.Jack, Suit: cards.Clubs}}

	_, err := Turn(registry.New(), hub.New(hub.DefaultDisconnectGrace, hub.DefaultHeartbeatInterval), g, "p1", 0, 3, 3, time.Now())
	require.NoError(t, err)
	assert.Equal(t, boardstate.Green, g.Board[3][3].Chip)
}

func TestTurnRejectsAOneEyedJackOnAnEmptyCell(t *testing.T) {
	g := newBaseGame()
	g.Players[0].Hand = []cards.Card{{Rank: cards.Jack, Suit: cards.Hearts}}

	_, err := Turn(registry.New(), hub.New(hub.DefaultDisconnectGrace, hub.DefaultHeartbeatInterval), g, "p1", 0, 3, 3, time.Now())
	require.Error(t, err)
	assert.Equal(t, apperr.IllegalMove, apperr.CodeOf(err))
}

func TestTurnRejectsAOneEyedJackOnTheCallersOwnChip(t *testing.T) {
	g := newBaseGame()
	g.Board[3][3].Chip = boardstate.Green
	g.Players[0].Hand = []cards.Card{{Rank: cards.Jack, Suit: cards.Hearts}}

	_, err := Turn(registry.New(), hub.New(hub.DefaultDisconnectGrace, hub.DefaultHeartbeatInterval), g, "p1", 0, 3, 3, time.Now())
	require.Error(t, err)
	assert.Equal(t, apperr.IllegalMove, apperr.CodeOf(err))
}

func TestTurnRejectsAOneEyedJackOnAChipThatIsPartOfASequence(t *testing.T) {
	g := newBaseGame()
	g.Board[3][3].Chip = boardstate.Blue
	g.Board[3][3].PartOfSequence = true
	g.Players[0].Hand = []cards.Card{{Rank: cards.Jack, Suit: cards.Hearts}}

	_, err := Turn(registry.New(), hub.New(hub.DefaultDisconnectGrace, hub.DefaultHeartbeatInterval), g, "p1", 0, 3, 3, time.Now())
	require.Error(t, err)
	assert.Equal(t, apperr.IllegalMove, apperr.CodeOf(err))
}

func TestTurnRemovesAnOpponentChipWithAOneEyedJack(t *testing.T) {
	g := newBaseGame()
	g.Board[3][3].Chip = boardstate.Blue
	g.Players[0].Hand = []cards.Card{{Rank: cards.Jack, Suit: cards.Hearts}}

	_, err := Turn(registry.New(), hub.New(hub.DefaultDisconnectGrace, hub.DefaultHeartbeatInterval), g, "p1", 0, 3, 3, time.Now())
	require.NoError(t, err)
	assert.Equal(t, boardstate.None, g.Board[3][3].Chip)
}

func TestTurnDrawsAReplacementCardWhenTheDeckIsNotExhausted(t *testing.T) {
	g := newBaseGame()
	g.DeckCursor = 0
	g.ShuffledDeck[0] = cards.Card{Rank: cards.King, Suit: cards.Clubs}
	g.Board[3][3].Card = cards.Card{Rank: cards.Five, Suit: cards.Hearts}
	g.Players[0].Hand = []cards.Card{{Rank: cards.Five, Suit: cards.Hearts}}

	_, err := Turn(registry.New(), hub.New(hub.DefaultDisconnectGrace, hub.DefaultHeartbeatInterval), g, "p1", 0, 3, 3, time.Now())
	require.NoError(t, err)
	require.Len(t, g.Players[0].Hand, 1)
	assert.Equal(t, cards.Card{Rank: cards.King, Suit: cards.Clubs}, g.Players[0].Hand[0])
	assert.Equal(t, 1, g.DeckCursor)
}

func TestTurnCompletingASecondSequenceFinishesTheGame(t *testing.T) {
	g := newBaseGame()
	// An already-marked sequence elsewhere on the board, recorded as such,
	// so this move only needs to complete one more to reach the 2-sequence
	// win threshold.
	for col := 1; col <= 5; col++ {
		g.Board[5][col].Chip = boardstate.Green
		g.Board[5][col].PartOfSequence = true
	}
	g.Sequences = append(g.Sequences, boardstate.Sequence{Team: boardstate.Green, Cells: []boardstate.CellCoord{
		{Row: 5, Col: 1}, {Row: 5, Col: 2}, {Row: 5, Col: 3}, {Row: 5, Col: 4}, {Row: 5, Col: 5},
	}})
	for col := 1; col <= 4; col++ {
		g.Board[0][col].Chip = boardstate.Green
	}
	g.Players[0].Hand = []cards.Card{{Rank: cards.Jack, Suit: cards.Clubs}}
	h := hub.New(hub.DefaultDisconnectGrace, hub.DefaultHeartbeatInterval)
	h.Attach("p1", &fakeChannel{})
	h.Attach("p2", &fakeChannel{})

	scheduleAI, err := Turn(registry.New(), h, g, "p1", 0, 0, 5, time.Now())
	require.NoError(t, err)
	assert.False(t, scheduleAI)
	assert.Equal(t, registry.GameFinished, g.Status)
	assert.Equal(t, "p1", g.WinnerID)
	assert.Equal(t, "p1", g.CurrentTurnPlayerID, "turn should not advance once the game is finished")
}

func TestPlayAITurnIsANoOpWhenTheTurnMovedOnInTheMeantime(t *testing.T) {
	g := newBaseGame()
	g.CurrentTurnPlayerID = "p1" // AI call is for p2, which is stale
	scheduleAI, err := PlayAITurn(registry.New(), hub.New(hub.DefaultDisconnectGrace, hub.DefaultHeartbeatInterval), g, "p2", time.Now())
	require.NoError(t, err)
	assert.False(t, scheduleAI)
}

func TestPlayAITurnPlaysTheSelectedMove(t *testing.T) {
	g := newBaseGame()
	g.CurrentTurnPlayerID = "p2"
	g.Players[1].Hand = []cards.Card{{Rank: cards.Jack, Suit: cards.Diamonds}}

	scheduleAI, err := PlayAITurn(registry.New(), hub.New(hub.DefaultDisconnectGrace, hub.DefaultHeartbeatInterval), g, "p2", time.Now())
	require.NoError(t, err)
	assert.False(t, scheduleAI)
	require.Len(t, g.TurnHistory, 1)
	assert.Equal(t, "p2", g.TurnHistory[0].PlayerID)
}

func TestReconstructReplaysDealAndTurnHistoryFromScratch(t *testing.T) {
	reg := registry.New()
	h := hub.New(hub.DefaultDisconnectGrace, hub.DefaultHeartbeatInterval)
	h.Attach("p1", &fakeChannel{})
	room := newRoom(registry.Mode1v1, registry.RoomPlayer{PlayerID: "p1", DisplayName: "Alice", IsHost: true, IsReady: true, Team: 1})

	g, _, err := Start(reg, h, room, "p1", time.Now())
	require.NoError(t, err)

	// Layouts hold no Jacks, so play the first non-Jack card in the hand.
	cardIdx := 0
	for cardIdx < len(g.Players[0].Hand)-1 && g.Players[0].Hand[cardIdx].IsJack() {
		cardIdx++
	}
	firstCard := g.Players[0].Hand[cardIdx]
	// Find a cell this ordinary card can legally occupy.
	var row, col int
	found := false
	for r := 0; r < boards.Size && !found; r++ {
		for c := 0; c < boards.Size; c++ {
			if g.Board[r][c].Card == firstCard {
				row, col, found = r, c, true
				break
			}
		}
	}
	require.True(t, found, "a dealt non-Jack card must exist somewhere on the board")

	_, err = Turn(reg, h, g, g.CurrentTurnPlayerID, cardIdx, row, col, time.Now())
	require.NoError(t, err)

	rec, err := Reconstruct(g)
	require.NoError(t, err)
	assert.Equal(t, g.Board, rec.Board)
}
