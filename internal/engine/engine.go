// Package engine wires the Storage Registry (C5), Event Fan-out (C6),
// Session Allocator (C7), Room Manager (C8) and Game Controller (C9)
// behind the single server-wide coarse lock the spec calls for (§5): one
// mutex guards every mutation to the registry and the hub's connection
// map, requests serialize state changes then release the lock before any
// channel I/O. Background work (GC sweeps, AI turn timers, rematch
// deadlines, heartbeat) all reacquire the lock before touching state, the
// same "acquire, mutate, release, then deliver" discipline the teacher's
// room actor goroutine gets for free from being single-threaded per room.
//
// Grounded on the teacher's GameServer (internal/server/game_server.go),
// which is also the one type holding every subsystem and exposing request
// methods to the transport layer -- generalized here from "one struct per
// concern, everything behind channels" to "one struct, one mutex,
// everything behind method calls", per the spec's simpler concurrency
// model (§5, §9 "coroutine control flow" note).
package engine

import (
	"context"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sequence/internal/apperr"
	"sequence/internal/boards"
	"sequence/internal/boardstate"
	"sequence/internal/config"
	"sequence/internal/game"
	"sequence/internal/hub"
	"sequence/internal/registry"
	"sequence/internal/room"
	"sequence/internal/session"
)

// Engine is the single long-lived value instantiated at process start and
// passed through the request-handling surface -- no implicit globals
// (spec §9 "global mutable state" design note).
type Engine struct {
	mu   sync.Mutex
	cfg  config.Config
	reg  *registry.Registry
	hub  *hub.Hub
	log  *log.Logger

	aiGeneration map[string]int64 // gameId -> generation, invalidates stale AI timers
}

func New(cfg config.Config, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		cfg:          cfg,
		reg:          registry.New(),
		hub:          hub.New(cfg.DisconnectGrace, cfg.HeartbeatInterval),
		log:          logger,
		aiGeneration: make(map[string]int64),
	}
}

// Run starts every background supervisor (session/room/game GC, rematch
// sweep, heartbeat) under an errgroup tied to ctx, mirroring the teacher's
// use of context cancellation + WaitGroup to tear down its background
// goroutines together. Run blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return e.tick(ctx, e.cfg.GCInterval, e.sweepGC) })
	g.Go(func() error { return e.tick(ctx, e.hub.HeartbeatInterval(), e.sweepHeartbeat) })

	return g.Wait()
}

func (e *Engine) tick(ctx context.Context, interval time.Duration, fn func()) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			fn()
		}
	}
}

func (e *Engine) sweepGC() {
	now := time.Now()
	e.mu.Lock()
	sessions := e.reg.SweepSessions(now, e.cfg.SessionTTL)
	rooms := e.reg.SweepEmptyRooms()
	games := e.reg.SweepInactiveGames(now, e.cfg.InactiveGameTimeout, e.hub.IsConnected)
	timedOut := e.reg.SweepExpiredRematches(now)

	type expiry struct {
		game *registry.Game
		room *registry.Room
	}
	var expiries []expiry
	for _, gameID := range timedOut {
		g, err := e.reg.Game(gameID)
		if err != nil {
			continue
		}
		r, _ := e.reg.Room(g.RoomID)
		expiries = append(expiries, expiry{game: g, room: r})
	}

	for _, x := range expiries {
		game.ExpireTimedOut(e.reg, e.hub, x.game, x.room)
	}
	e.mu.Unlock()

	if sessions+rooms+games+len(timedOut) > 0 {
		e.log.Printf("gc sweep: sessions=%d rooms=%d games=%d rematches=%d", sessions, rooms, games, len(timedOut))
	}
}

func (e *Engine) sweepHeartbeat() {
	e.hub.Heartbeat(func(playerID string) {
		e.mu.Lock()
		e.handleDisconnect(playerID)
		e.mu.Unlock()
	})
}

// --- session & room plumbing shared by the API layer -------------------------------

// Authenticate resolves a session token, refreshing lastActivity.
func (e *Engine) Authenticate(token string) (*registry.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return session.AuthCheck(e.reg, token, time.Now())
}

func (e *Engine) CheckName(name string) (bool, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return session.CheckName(e.reg, name)
}

func (e *Engine) JoinServer(name string) (*registry.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return session.JoinServer(e.reg, name, time.Now())
}

// LeaveServer implements leave-server: routes through the room leave path
// if the session is seated, then deletes the session.
func (e *Engine) LeaveServer(sessionID string) error {
	e.mu.Lock()
	s, err := e.reg.Session(sessionID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	var broadcast func()
	if s.CurrentRoomID != "" {
		broadcast = e.leaveRoomLocked(s, room.ReasonLeave)
	}
	e.reg.DeleteSession(sessionID)
	e.mu.Unlock()

	if broadcast != nil {
		broadcast()
	}
	return nil
}

// OnChannelClosed runs the disconnect grace-period timer (spec §4.5):
// dropping the channel happens immediately in the hub; if no reattach
// cancels the timer, the player is routed out of their room.
func (e *Engine) OnChannelClosed(playerID string) {
	e.hub.OnClose(playerID, func(playerID string) {
		e.mu.Lock()
		e.handleDisconnect(playerID)
		e.mu.Unlock()
	})
}

// handleDisconnect is called with the lock held, from either the
// disconnect-removal timer or a heartbeat-driven drop. It releases the lock
// while delivering the leave broadcasts and reacquires it before returning.
func (e *Engine) handleDisconnect(playerID string) {
	s, ok := e.reg.SessionByPlayer(playerID)
	if !ok || s.CurrentRoomID == "" {
		return
	}
	broadcast := e.leaveRoomLocked(s, room.ReasonDisconnect)
	if broadcast != nil {
		e.mu.Unlock()
		broadcast()
		e.mu.Lock()
	}
}

// Attach registers playerID's duplex channel.
func (e *Engine) Attach(playerID string, ch hub.Channel) {
	e.hub.Attach(playerID, ch)
}

func (e *Engine) RecordPing(playerID string) {
	e.hub.RecordPing(playerID)
}

// --- room manager ------------------------------------------------------------------

func (e *Engine) ListRooms() []room.LobbyRoom {
	e.mu.Lock()
	defer e.mu.Unlock()
	return room.List(e.reg)
}

func (e *Engine) CreateRoom(s *registry.Session, name string, mode registry.Mode, boardType boards.Type, password string) (room.Sanitized, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, err := room.Create(e.reg, s, name, mode, boardType, password, time.Now())
	if err != nil {
		return room.Sanitized{}, err
	}
	return room.Sanitize(r), nil
}

func (e *Engine) JoinRoom(s *registry.Session, roomID, password string) (room.Sanitized, error) {
	e.mu.Lock()
	r, err := e.reg.Room(roomID)
	if err != nil {
		e.mu.Unlock()
		return room.Sanitized{}, err
	}
	if err := room.Join(e.reg, s, r, password); err != nil {
		e.mu.Unlock()
		return room.Sanitized{}, err
	}
	sanitized := room.Sanitize(r)
	e.mu.Unlock()

	e.hub.BroadcastRoom(r, "player_joined", sanitized)
	e.hub.BroadcastRoom(r, "room_updated", sanitized)
	return sanitized, nil
}

// LeaveRoom implements leave-room for an explicit client request.
func (e *Engine) LeaveRoom(s *registry.Session, roomID string) error {
	e.mu.Lock()
	if s.CurrentRoomID != roomID {
		e.mu.Unlock()
		return apperr.New(apperr.Conflict, "not a member of this room")
	}
	broadcast := e.leaveRoomLocked(s, room.ReasonLeave)
	e.mu.Unlock()

	if broadcast != nil {
		broadcast()
	}
	return nil
}

// leaveRoomLocked must be called with the lock held. It performs the
// mutation and returns a closure the caller runs after releasing the lock
// to deliver the resulting broadcasts (spec §5 "suspension points").
func (e *Engine) leaveRoomLocked(s *registry.Session, reason room.LeaveReason) func() {
	r, err := e.reg.Room(s.CurrentRoomID)
	if err != nil {
		s.CurrentRoomID = ""
		return nil
	}
	playerID := s.PlayerID
	roomID := r.ID
	result := room.Leave(e.reg, r, playerID)
	s.CurrentRoomID = ""

	return func() {
		if result.RoomDeleted {
			e.hub.Send(playerID, "player_left", map[string]any{"roomId": roomID, "reason": reason})
			return
		}
		e.mu.Lock()
		r2, err := e.reg.Room(roomID)
		e.mu.Unlock()
		if err != nil {
			return
		}
		sanitized := room.Sanitize(r2)
		payload := map[string]any{"playerId": playerID, "reason": reason}
		if result.NewHostID != "" {
			payload["newHostId"] = result.NewHostID
		}
		e.hub.BroadcastRoom(r2, "player_left", payload)
		e.hub.BroadcastRoom(r2, "room_updated", sanitized)
	}
}

func (e *Engine) SetReady(s *registry.Session, roomID string, ready bool) error {
	e.mu.Lock()
	r, err := e.requireMember(s, roomID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if err := room.SetReady(r, s.PlayerID, ready); err != nil {
		e.mu.Unlock()
		return err
	}
	sanitized := room.Sanitize(r)
	e.mu.Unlock()

	e.hub.BroadcastRoom(r, "room_updated", sanitized)
	return nil
}

func (e *Engine) ChangeTeam(s *registry.Session, roomID string, team int) error {
	e.mu.Lock()
	r, err := e.requireMember(s, roomID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if err := room.ChangeTeam(r, s.PlayerID, team); err != nil {
		e.mu.Unlock()
		return err
	}
	sanitized := room.Sanitize(r)
	e.mu.Unlock()

	e.hub.BroadcastRoom(r, "room_updated", sanitized)
	return nil
}

func (e *Engine) requireMember(s *registry.Session, roomID string) (*registry.Room, error) {
	if s.CurrentRoomID != roomID {
		return nil, apperr.New(apperr.Conflict, "not a member of this room")
	}
	return e.reg.Room(roomID)
}

// --- game controller -----------------------------------------------------------------

func (e *Engine) aiDelay() time.Duration {
	span := e.cfg.AIDelayMax - e.cfg.AIDelayMin
	if span <= 0 {
		return e.cfg.AIDelayMin
	}
	return e.cfg.AIDelayMin + time.Duration(rand.Int64N(int64(span)))
}

// StartGame implements start-game, scheduling the first AI turn if needed.
func (e *Engine) StartGame(s *registry.Session, roomID string) (game.StartResult, error) {
	e.mu.Lock()
	r, err := e.reg.Room(roomID)
	if err != nil {
		e.mu.Unlock()
		return game.StartResult{}, err
	}
	g, result, err := game.Start(e.reg, e.hub, r, s.PlayerID, time.Now())
	if err != nil {
		e.mu.Unlock()
		return game.StartResult{}, err
	}
	gen := e.bumpGeneration(g.ID)
	needAI := isAITurn(g)
	gameID := g.ID
	e.mu.Unlock()

	if needAI {
		e.scheduleAITurn(gameID, gen)
	}
	return result, nil
}

func isAITurn(g *registry.Game) bool {
	idx := g.PlayerIndex(g.CurrentTurnPlayerID)
	return idx >= 0 && g.Players[idx].IsAI
}

func (e *Engine) bumpGeneration(gameID string) int64 {
	e.aiGeneration[gameID]++
	return e.aiGeneration[gameID]
}

// scheduleAITurn fires PlayAITurn after a randomized delay; a generation
// mismatch at fire time (the game moved on, ended, or was deleted) makes
// the timer a no-op per spec §5's cancellation semantics.
func (e *Engine) scheduleAITurn(gameID string, generation int64) {
	time.AfterFunc(e.aiDelay(), func() {
		e.mu.Lock()
		if e.aiGeneration[gameID] != generation {
			e.mu.Unlock()
			return
		}
		g, err := e.reg.Game(gameID)
		if err != nil {
			e.mu.Unlock()
			return
		}
		aiPlayerID := g.CurrentTurnPlayerID
		scheduleNext, err := game.PlayAITurn(e.reg, e.hub, g, aiPlayerID, time.Now())
		if err != nil {
			e.log.Printf("ai turn error: game=%s player=%s err=%v", gameID, aiPlayerID, err)
			e.mu.Unlock()
			return
		}
		nextGen := e.bumpGeneration(gameID)
		e.mu.Unlock()

		if scheduleNext {
			e.scheduleAITurn(gameID, nextGen)
		}
	})
}

// Turn implements the turn request.
func (e *Engine) Turn(s *registry.Session, gameID string, cardIndex, row, col int) error {
	e.mu.Lock()
	g, err := e.reg.Game(gameID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	scheduleAI, err := game.Turn(e.reg, e.hub, g, s.PlayerID, cardIndex, row, col, time.Now())
	if err != nil {
		e.mu.Unlock()
		return err
	}
	gen := e.bumpGeneration(gameID)
	e.mu.Unlock()

	if scheduleAI {
		e.scheduleAITurn(gameID, gen)
	}
	return nil
}

// RematchVote implements rematch-vote, returning the {rematchState}
// snapshot the response body requires (spec §6.1).
func (e *Engine) RematchVote(s *registry.Session, gameID string, vote bool) (game.RematchStateDTO, error) {
	e.mu.Lock()
	g, err := e.reg.Game(gameID)
	if err != nil {
		e.mu.Unlock()
		return game.RematchStateDTO{}, err
	}
	r, err := e.reg.Room(g.RoomID)
	if err != nil {
		e.mu.Unlock()
		return game.RematchStateDTO{}, err
	}
	newGame, scheduleAI, rematch, err := game.Vote(e.reg, e.hub, g, r, s.PlayerID, vote, e.cfg.RematchDeadline, time.Now())
	if err != nil {
		e.mu.Unlock()
		return game.RematchStateDTO{}, err
	}
	var gen int64
	var newGameID string
	if newGame != nil {
		gen = e.bumpGeneration(newGame.ID)
		newGameID = newGame.ID
	}
	e.mu.Unlock()

	if newGame != nil && scheduleAI {
		e.scheduleAITurn(newGameID, gen)
	}
	return rematch, nil
}

// GameSnapshot is the reconnection view of one in-progress or finished
// game, scoped to a single recipient's hand (spec §6.1 session-status).
type GameSnapshot struct {
	Board               [10][10]BoardCellDTO `json:"board"`
	Sequences           []SequenceDTO        `json:"sequences"`
	CurrentTurnPlayerID string               `json:"currentTurnPlayerId"`
	Hand                []string             `json:"hand"`
	Players             []RosterEntryDTO     `json:"players"`
	Status              registry.GameStatus  `json:"status"`
}

type BoardCellDTO struct {
	Card           string           `json:"card"`
	Chip           boardstate.Color `json:"chip,omitempty"`
	PartOfSequence bool             `json:"partOfSequence"`
}

type SequenceDTO struct {
	TeamColor boardstate.Color       `json:"teamColor"`
	Cells     []boardstate.CellCoord `json:"cells"`
}

type RosterEntryDTO struct {
	PlayerID    string           `json:"playerId"`
	DisplayName string           `json:"displayName"`
	TeamColor   boardstate.Color `json:"teamColor"`
	IsAI        bool             `json:"isAI"`
}

// GameState rebuilds the reconnection snapshot for gameID from its
// (deckSeed, turnHistory) record via game.Reconstruct rather than handing
// back the live mutable Board directly (see SPEC_FULL's session-status
// supplement).
func (e *Engine) GameState(gameID, playerID string) (*GameSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, err := e.reg.Game(gameID)
	if err != nil {
		return nil, err
	}
	recon, err := game.Reconstruct(g)
	if err != nil {
		return nil, err
	}

	var board [10][10]BoardCellDTO
	for r := 0; r < 10; r++ {
		for c := 0; c < 10; c++ {
			cell := recon.Board[r][c]
			board[r][c] = BoardCellDTO{Card: cell.Card.Format(), Chip: cell.Chip, PartOfSequence: cell.PartOfSequence}
		}
	}
	sequences := make([]SequenceDTO, len(recon.Sequences))
	for i, s := range recon.Sequences {
		sequences[i] = SequenceDTO{TeamColor: s.Team, Cells: s.Cells}
	}
	roster := make([]RosterEntryDTO, len(g.Players))
	for i, p := range g.Players {
		roster[i] = RosterEntryDTO{PlayerID: p.PlayerID, DisplayName: p.DisplayName, TeamColor: p.TeamColor, IsAI: p.IsAI}
	}
	hand := make([]string, 0)
	for _, c := range recon.Hands[playerID] {
		hand = append(hand, c.Format())
	}

	return &GameSnapshot{
		Board: board, Sequences: sequences, CurrentTurnPlayerID: g.CurrentTurnPlayerID,
		Hand: hand, Players: roster, Status: g.Status,
	}, nil
}

// CancelRematch implements cancel-rematch.
func (e *Engine) CancelRematch(s *registry.Session, gameID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, err := e.reg.Game(gameID)
	if err != nil {
		return err
	}
	r, _ := e.reg.Room(g.RoomID)
	game.Cancel(e.reg, e.hub, g, r, s.PlayerID)
	return nil
}
