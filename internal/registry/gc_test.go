package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSweepSessionsReclaimsOnlyStaleOnes(t *testing.T) {
	r := New()
	now := time.Now()
	r.CreateSession("fresh", "p1", "Fresh", now)
	r.CreateSession("stale", "p2", "Stale", now.Add(-SessionInactivityLimit-time.Minute))

	n := r.SweepSessions(now, SessionInactivityLimit)
	assert.Equal(t, 1, n)
	_, err := r.Session("fresh")
	assert.NoError(t, err)
	_, err = r.Session("stale")
	assert.Error(t, err)
}

func TestSweepEmptyRoomsReclaimsOnlyEmptyOnes(t *testing.T) {
	r := New()
	r.PutRoom(&Room{ID: "empty"})
	r.PutRoom(&Room{ID: "full", Players: []RoomPlayer{{PlayerID: "p1"}}})

	n := r.SweepEmptyRooms()
	assert.Equal(t, 1, n)
	_, err := r.Room("empty")
	assert.Error(t, err)
	_, err = r.Room("full")
	assert.NoError(t, err)
}

func TestSweepInactiveGamesRequiresAllHumansDisconnected(t *testing.T) {
	r := New()
	now := time.Now()
	stale := now.Add(-GameInactivityLimit - time.Minute)

	r.PutRoom(&Room{ID: "room1", Players: []RoomPlayer{{PlayerID: "p1"}}})
	r.PutGame(&Game{ID: "g1", RoomID: "room1", Status: GameActive, LastActivityAt: stale,
		Players: []GamePlayer{{PlayerID: "p1"}}})
	r.CreateSession("tok1", "p1", "Alice", now)
	if s, ok := r.SessionByPlayer("p1"); ok {
		s.CurrentGameID = "g1"
	}

	connected := true
	isConnected := func(string) bool { return connected }

	n := r.SweepInactiveGames(now, GameInactivityLimit, isConnected)
	assert.Zero(t, n, "a connected human should block the sweep")

	connected = false
	n = r.SweepInactiveGames(now, GameInactivityLimit, isConnected)
	assert.Equal(t, 1, n)

	_, err := r.Game("g1")
	assert.Error(t, err)
	room, err := r.Room("room1")
	assert.NoError(t, err)
	assert.Equal(t, RoomWaiting, room.Status)

	s, _ := r.SessionByPlayer("p1")
	assert.Empty(t, s.CurrentGameID)
}

func TestSweepInactiveGamesDeletesARoomThatHasNoHumansLeft(t *testing.T) {
	r := New()
	now := time.Now()
	stale := now.Add(-GameInactivityLimit - time.Minute)

	r.PutRoom(&Room{ID: "room1", Players: []RoomPlayer{{PlayerID: "ai-1", IsAI: true}}})
	r.PutGame(&Game{ID: "g1", RoomID: "room1", Status: GameActive, LastActivityAt: stale,
		Players: []GamePlayer{{PlayerID: "ai-1", IsAI: true}}})

	r.SweepInactiveGames(now, GameInactivityLimit, func(string) bool { return false })
	_, err := r.Room("room1")
	assert.Error(t, err, "a room with only AI seats left should be deleted, not reopened")
}

func TestSweepExpiredRematches(t *testing.T) {
	r := New()
	now := time.Now()
	r.PutRematch(&RematchState{GameID: "g1", Active: true, Votes: map[string]bool{"a": true},
		RequiredVotes: 2, Deadline: now.Add(-time.Second)})
	r.PutRematch(&RematchState{GameID: "g2", Active: true, Votes: map[string]bool{"a": true, "b": true},
		RequiredVotes: 2, Deadline: now.Add(-time.Second)})

	expired := r.SweepExpiredRematches(now)
	assert.Equal(t, []string{"g1"}, expired)
	_, ok := r.Rematch("g1")
	assert.False(t, ok)
	_, ok = r.Rematch("g2")
	assert.True(t, ok, "a rematch that already reached quorum should not be swept even past its deadline")
}
