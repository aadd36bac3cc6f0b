package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"sequence/internal/boards"
	"sequence/internal/engine"
	"sequence/internal/registry"
)

type checkNameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCheckName(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req checkNameRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	available, reason := s.eng.CheckName(req.Name)
	resp := map[string]any{"available": available}
	if reason != "" {
		resp["reason"] = reason
	}
	writeOK(w, resp)
}

type joinServerRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleJoinServer(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req joinServerRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	sess, err := s.eng.JoinServer(req.Name)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, map[string]string{"sessionId": sess.SessionID, "playerId": sess.PlayerID})
}

func (s *Server) handleLeaveServer(w http.ResponseWriter, r *http.Request, _ httprouter.Params, sess *registry.Session) {
	if err := s.eng.LeaveServer(sess.SessionID); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, nil)
}

// sessionStatusPayload is the reconnection snapshot (spec §6.1).
type sessionStatusPayload struct {
	CurrentRoomID string               `json:"currentRoomId,omitempty"`
	CurrentGameID string               `json:"currentGameId,omitempty"`
	GameState     *engine.GameSnapshot `json:"gameState,omitempty"`
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params, sess *registry.Session) {
	payload := sessionStatusPayload{CurrentRoomID: sess.CurrentRoomID, CurrentGameID: sess.CurrentGameID}
	if sess.CurrentGameID != "" {
		gs, err := s.eng.GameState(sess.CurrentGameID, sess.PlayerID)
		if err != nil {
			writeErr(w, err)
			return
		}
		payload.GameState = gs
	}
	writeOK(w, payload)
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request, _ httprouter.Params, _ *registry.Session) {
	writeOK(w, s.eng.ListRooms())
}

type createRoomRequest struct {
	Name      string      `json:"name"`
	Mode      registry.Mode `json:"mode"`
	BoardType boards.Type `json:"boardType"`
	Password  string      `json:"password,omitempty"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request, _ httprouter.Params, sess *registry.Session) {
	var req createRoomRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	room, err := s.eng.CreateRoom(sess, req.Name, req.Mode, req.BoardType, req.Password)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, room)
}

type joinRoomRequest struct {
	Password string `json:"password,omitempty"`
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params, sess *registry.Session) {
	var req joinRoomRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	room, err := s.eng.JoinRoom(sess, ps.ByName("roomId"), req.Password)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, room)
}

func (s *Server) handleLeaveRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params, sess *registry.Session) {
	if err := s.eng.LeaveRoom(sess, ps.ByName("roomId")); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, nil)
}

type setReadyRequest struct {
	Ready bool `json:"ready"`
}

func (s *Server) handleSetReady(w http.ResponseWriter, r *http.Request, ps httprouter.Params, sess *registry.Session) {
	var req setReadyRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if err := s.eng.SetReady(sess, ps.ByName("roomId"), req.Ready); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, nil)
}

type changeTeamRequest struct {
	Team int `json:"team"`
}

func (s *Server) handleChangeTeam(w http.ResponseWriter, r *http.Request, ps httprouter.Params, sess *registry.Session) {
	var req changeTeamRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if err := s.eng.ChangeTeam(sess, ps.ByName("roomId"), req.Team); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request, ps httprouter.Params, sess *registry.Session) {
	result, err := s.eng.StartGame(sess, ps.ByName("roomId"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, map[string]any{
		"gameId": result.GameID, "missingPlayersFilledWithAI": result.MissingPlayersFilledWithAI,
		"aiCount": result.AICount,
	})
}

type turnRequest struct {
	CardIndex int `json:"cardIndex"`
	Row       int `json:"row"`
	Col       int `json:"col"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request, ps httprouter.Params, sess *registry.Session) {
	var req turnRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if err := s.eng.Turn(sess, ps.ByName("gameId"), req.CardIndex, req.Row, req.Col); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, nil)
}

type rematchVoteRequest struct {
	Vote bool `json:"vote"`
}

func (s *Server) handleRematchVote(w http.ResponseWriter, r *http.Request, ps httprouter.Params, sess *registry.Session) {
	var req rematchVoteRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	rematch, err := s.eng.RematchVote(sess, ps.ByName("gameId"), req.Vote)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, map[string]any{"rematchState": rematch})
}

func (s *Server) handleCancelRematch(w http.ResponseWriter, r *http.Request, ps httprouter.Params, sess *registry.Session) {
	if err := s.eng.CancelRematch(sess, ps.ByName("gameId")); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, nil)
}
