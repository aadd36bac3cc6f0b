package api

import (
	"log"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"sequence/internal/apperr"
	"sequence/internal/engine"
	"sequence/internal/registry"
)

// Server owns the HTTP mux and websocket upgrade for the /v1 surface.
type Server struct {
	eng        *engine.Engine
	router     *httprouter.Router
	log        *log.Logger
	serverName string
	version    string
}

func New(eng *engine.Engine, serverName, version string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{eng: eng, router: httprouter.New(), log: logger, serverName: serverName, version: version}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	s.router.GET("/v1/ping", s.handlePing)
	s.router.POST("/v1/check-name", s.handleCheckName)
	s.router.POST("/v1/join-server", s.handleJoinServer)
	s.router.POST("/v1/leave-server", s.auth(s.handleLeaveServer))
	s.router.GET("/v1/session-status", s.auth(s.handleSessionStatus))
	s.router.GET("/v1/rooms", s.auth(s.handleListRooms))
	s.router.POST("/v1/rooms", s.auth(s.handleCreateRoom))
	s.router.POST("/v1/rooms/:roomId/join", s.auth(s.handleJoinRoom))
	s.router.POST("/v1/rooms/:roomId/leave", s.auth(s.handleLeaveRoom))
	s.router.POST("/v1/rooms/:roomId/ready", s.auth(s.handleSetReady))
	s.router.POST("/v1/rooms/:roomId/team", s.auth(s.handleChangeTeam))
	s.router.POST("/v1/rooms/:roomId/start", s.auth(s.handleStartGame))
	s.router.POST("/v1/games/:gameId/turn", s.auth(s.handleTurn))
	s.router.POST("/v1/games/:gameId/rematch-vote", s.auth(s.handleRematchVote))
	s.router.POST("/v1/games/:gameId/cancel-rematch", s.auth(s.handleCancelRematch))
	s.router.GET("/ws", s.handleWebSocket)
}

// authedHandler is a handler that has already resolved the caller's
// session, matching spec §6.1's "all mutating requests ... require an
// authorization token mapping to a live session".
type authedHandler func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, sess *registry.Session)

// auth extracts the bearer token, resolves the session, and refreses
// lastActivity before delegating.
func (s *Server) auth(h authedHandler) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		token := bearerToken(r)
		if token == "" {
			writeErr(w, apperr.New(apperr.Unauthorized, "missing authorization token"))
			return
		}
		sess, err := s.eng.Authenticate(token)
		if err != nil {
			writeErr(w, err)
			return
		}
		h(w, r, ps, sess)
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return r.URL.Query().Get("sessionId")
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeOK(w, map[string]any{
		"ok": true, "serverName": s.serverName, "version": s.version,
		"timestamp": time.Now().UnixMilli(),
	})
}
