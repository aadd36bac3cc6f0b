// Package api implements the Request Surface (C10, §6.1): the versioned
// HTTP /v1 endpoints and the /ws duplex channel upgrade. Grounded on
// Seednode-partybox's httprouter-based handler registration -- the pack's
// only repo with a real HTTP request surface -- generalized from its
// lobby/room endpoints to Sequence's request list, with the
// {success,data|error} envelope and error-code-to-status mapping the
// teacher's transport never needed (the teacher answers over its own
// binary protocol, not JSON-over-HTTP).
package api

import (
	"encoding/json"
	"net/http"

	"sequence/internal/apperr"
)

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   *wireErr `json:"error,omitempty"`
}

type wireErr struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func writeErr(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	writeJSON(w, statusFor(code), envelope{Success: false, Error: &wireErr{Code: code, Message: err.Error()}})
}

func statusFor(code apperr.Code) int {
	switch code {
	case apperr.InvalidArg:
		return http.StatusBadRequest
	case apperr.Unauthorized:
		return http.StatusUnauthorized
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.NameTaken, apperr.NameReserved, apperr.Conflict:
		return http.StatusConflict
	case apperr.IllegalMove:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && err.Error() != "EOF" {
		return apperr.New(apperr.InvalidArg, "malformed request body")
	}
	return nil
}
