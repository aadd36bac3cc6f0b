package engine

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sequence/internal/boards"
	"sequence/internal/config"
	"sequence/internal/hub"
	"sequence/internal/registry"
)

func silentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type fakeChannel struct{ events []hub.Event }

func (f *fakeChannel) Send(e hub.Event) error { f.events = append(f.events, e); return nil }
func (f *fakeChannel) Close()                 {}

func (f *fakeChannel) types() []string {
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Type
	}
	return out
}

func TestJoinServerThenAuthenticate(t *testing.T) {
	e := New(config.Defaults(), silentLogger())
	s, err := e.JoinServer("Alice")
	require.NoError(t, err)

	got, err := e.Authenticate(s.SessionID)
	require.NoError(t, err)
	assert.Same(t, s, got)
}

func TestCreateRoomThenJoinRoomBroadcastsToBoth(t *testing.T) {
	e := New(config.Defaults(), silentLogger())
	host, err := e.JoinServer("Alice")
	require.NoError(t, err)
	hostCh := &fakeChannel{}
	e.Attach(host.PlayerID, hostCh)

	r, err := e.CreateRoom(host, "Alice's Table", registry.Mode1v1, boards.Classic, "")
	require.NoError(t, err)
	assert.Len(t, r.Players, 1)

	guest, err := e.JoinServer("Bob")
	require.NoError(t, err)
	guestCh := &fakeChannel{}
	e.Attach(guest.PlayerID, guestCh)

	sanitized, err := e.JoinRoom(guest, r.ID, "")
	require.NoError(t, err)
	assert.Len(t, sanitized.Players, 2)
	assert.Contains(t, hostCh.types(), "player_joined")
	assert.Contains(t, hostCh.types(), "room_updated")
	assert.Contains(t, guestCh.types(), "room_updated")
}

func TestLeaveRoomDeletesAnEmptySoloRoomAndNotifiesOnlyTheLeaver(t *testing.T) {
	e := New(config.Defaults(), silentLogger())
	host, err := e.JoinServer("Alice")
	require.NoError(t, err)
	ch := &fakeChannel{}
	e.Attach(host.PlayerID, ch)

	r, err := e.CreateRoom(host, "Solo Table", registry.Mode1v1, boards.Classic, "")
	require.NoError(t, err)

	require.NoError(t, e.LeaveRoom(host, r.ID))
	assert.Contains(t, ch.types(), "player_left")

	e.mu.Lock()
	_, err = e.reg.Room(r.ID)
	e.mu.Unlock()
	assert.Error(t, err)
}

func TestStartGameWithOneHumanFillsTheSecondSeatWithAI(t *testing.T) {
	e := New(config.Defaults(), silentLogger())
	host, err := e.JoinServer("Alice")
	require.NoError(t, err)
	e.Attach(host.PlayerID, &fakeChannel{})

	r, err := e.CreateRoom(host, "Table", registry.Mode1v1, boards.Classic, "")
	require.NoError(t, err)

	res, err := e.StartGame(host, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.AICount)

	e.mu.Lock()
	room, err := e.reg.Room(r.ID)
	require.NoError(t, err)
	assert.Equal(t, registry.RoomPlaying, room.Status)
	g, err := e.reg.Game(room.GameID)
	require.NoError(t, err)
	assert.Len(t, g.Players, 2)
	e.mu.Unlock()
}

func TestTurnBetweenTwoHumansAdvancesToTheSecondPlayer(t *testing.T) {
	e := New(config.Defaults(), silentLogger())
	host, err := e.JoinServer("Alice")
	require.NoError(t, err)
	hostCh := &fakeChannel{}
	e.Attach(host.PlayerID, hostCh)

	r, err := e.CreateRoom(host, "Table", registry.Mode1v1, boards.Classic, "")
	require.NoError(t, err)

	guest, err := e.JoinServer("Bob")
	require.NoError(t, err)
	e.Attach(guest.PlayerID, &fakeChannel{})
	_, err = e.JoinRoom(guest, r.ID, "")
	require.NoError(t, err)

	_, err = e.StartGame(host, r.ID)
	require.NoError(t, err)

	e.mu.Lock()
	room, err := e.reg.Room(r.ID)
	require.NoError(t, err)
	g, err := e.reg.Game(room.GameID)
	require.NoError(t, err)
	firstPlayerID := g.CurrentTurnPlayerID
	pi := g.PlayerIndex(firstPlayerID)
	hand := g.Players[pi].Hand
	// Layouts hold no Jacks, so play the first non-Jack card in the hand.
	cardIdx := 0
	for cardIdx < len(hand)-1 && hand[cardIdx].IsJack() {
		cardIdx++
	}
	var row, col int
	found := false
	for r := 0; r < boards.Size && !found; r++ {
		for c := 0; c < boards.Size; c++ {
			if g.Board[r][c].Card == hand[cardIdx] {
				row, col, found = r, c, true
				break
			}
		}
	}
	gameID := g.ID
	e.mu.Unlock()
	require.True(t, found)

	firstSession := host
	if firstPlayerID == guest.PlayerID {
		firstSession = guest
	}
	require.NoError(t, e.Turn(firstSession, gameID, cardIdx, row, col))

	e.mu.Lock()
	g2, err := e.reg.Game(gameID)
	require.NoError(t, err)
	assert.NotEqual(t, firstPlayerID, g2.CurrentTurnPlayerID)
	assert.Len(t, g2.TurnHistory, 1)
	e.mu.Unlock()
	assert.Contains(t, hostCh.types(), "turn_made")
}

func TestStartGameSchedulesAndRunsTheFollowingAITurn(t *testing.T) {
	cfg := config.Defaults()
	cfg.AIDelayMin = 2 * time.Millisecond
	cfg.AIDelayMax = 5 * time.Millisecond
	e := New(cfg, silentLogger())

	host, err := e.JoinServer("Alice")
	require.NoError(t, err)
	e.Attach(host.PlayerID, &fakeChannel{})

	r, err := e.CreateRoom(host, "Table", registry.Mode1v1, boards.Classic, "")
	require.NoError(t, err)
	_, err = e.StartGame(host, r.ID)
	require.NoError(t, err)

	e.mu.Lock()
	room, err := e.reg.Room(r.ID)
	require.NoError(t, err)
	g, err := e.reg.Game(room.GameID)
	require.NoError(t, err)
	pi := g.PlayerIndex(host.PlayerID)
	hand := g.Players[pi].Hand
	// Layouts hold no Jacks, so play the first non-Jack card in the hand.
	cardIdx := 0
	for cardIdx < len(hand)-1 && hand[cardIdx].IsJack() {
		cardIdx++
	}
	var row, col int
	found := false
	for r := 0; r < boards.Size && !found; r++ {
		for c := 0; c < boards.Size; c++ {
			if g.Board[r][c].Card == hand[cardIdx] {
				row, col, found = r, c, true
				break
			}
		}
	}
	gameID := g.ID
	e.mu.Unlock()
	require.True(t, found)

	require.NoError(t, e.Turn(host, gameID, cardIdx, row, col))

	deadline := time.Now().Add(2 * time.Second)
	for {
		e.mu.Lock()
		g2, _ := e.reg.Game(gameID)
		n := len(g2.TurnHistory)
		e.mu.Unlock()
		if n >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("AI turn never ran within the deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRematchVoteRestartsOnceBothHumansAgree(t *testing.T) {
	e := New(config.Defaults(), silentLogger())
	host, err := e.JoinServer("Alice")
	require.NoError(t, err)
	e.Attach(host.PlayerID, &fakeChannel{})
	guest, err := e.JoinServer("Bob")
	require.NoError(t, err)
	e.Attach(guest.PlayerID, &fakeChannel{})

	r, err := e.CreateRoom(host, "Table", registry.Mode1v1, boards.Classic, "")
	require.NoError(t, err)
	_, err = e.JoinRoom(guest, r.ID, "")
	require.NoError(t, err)
	_, err = e.StartGame(host, r.ID)
	require.NoError(t, err)

	e.mu.Lock()
	room, _ := e.reg.Room(r.ID)
	g, _ := e.reg.Game(room.GameID)
	g.Status = registry.GameFinished
	gameID := g.ID
	e.mu.Unlock()

	_, err = e.RematchVote(host, gameID, true)
	require.NoError(t, err)
	rematch, err := e.RematchVote(guest, gameID, true)
	require.NoError(t, err)
	assert.False(t, rematch.Active, "quorum was reached so the snapshot should no longer be active")

	e.mu.Lock()
	room2, err := e.reg.Room(r.ID)
	require.NoError(t, err)
	assert.Equal(t, registry.RoomPlaying, room2.Status)
	assert.NotEqual(t, gameID, room2.GameID)
	e.mu.Unlock()
}

func TestCancelRematchReopensTheRoom(t *testing.T) {
	e := New(config.Defaults(), silentLogger())
	host, err := e.JoinServer("Alice")
	require.NoError(t, err)
	e.Attach(host.PlayerID, &fakeChannel{})

	r, err := e.CreateRoom(host, "Table", registry.Mode1v1, boards.Classic, "")
	require.NoError(t, err)
	_, err = e.StartGame(host, r.ID)
	require.NoError(t, err)

	e.mu.Lock()
	room, _ := e.reg.Room(r.ID)
	g, _ := e.reg.Game(room.GameID)
	g.Status = registry.GameFinished
	gameID := g.ID
	e.mu.Unlock()

	_, err = e.RematchVote(host, gameID, true)
	require.NoError(t, err)
	require.NoError(t, e.CancelRematch(host, gameID))

	e.mu.Lock()
	room2, err := e.reg.Room(r.ID)
	require.NoError(t, err)
	assert.Equal(t, registry.RoomWaiting, room2.Status)
	e.mu.Unlock()
}
