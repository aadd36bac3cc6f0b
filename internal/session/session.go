// Package session implements the Session & Name Allocator (spec C7, §4.2):
// name validation, opaque session token issuance, and auth lookups. It
// operates on a *registry.Registry supplied by the caller (the engine),
// which holds the coarse lock for the duration of the call -- grounded on
// the teacher's jwt.go, which is a free-function module around session
// token lifecycle with no receiver type of its own; here the token is an
// opaque random string instead of a signed JWT (see DESIGN.md) but the
// "small package of pure functions operating on the caller's state" shape
// is the same.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"

	"sequence/internal/apperr"
	"sequence/internal/registry"
)

var reservedNames = map[string]bool{
	"admin": true, "test": true, "server": true, "system": true, "bot": true, "ai": true,
}

// ValidateName applies the length/reservation/uniqueness rules
// shared by join-server and check-name, without mutating anything.
func ValidateName(reg *registry.Registry, name string) (trimmed string, code apperr.Code, reason string) {
	trimmed = strings.TrimSpace(name)
	if len(trimmed) < 2 || len(trimmed) > 16 {
		return trimmed, apperr.InvalidArg, "name must be between 2 and 16 characters"
	}
	if reservedNames[strings.ToLower(trimmed)] {
		return trimmed, apperr.NameReserved, "name is reserved"
	}
	if reg.NameTaken(trimmed) {
		return trimmed, apperr.NameTaken, "name is taken"
	}
	return trimmed, "", ""
}

// CheckName implements check-name: validates without mutating.
func CheckName(reg *registry.Registry, name string) (available bool, reason string) {
	_, code, msg := ValidateName(reg, name)
	if code == "" {
		return true, ""
	}
	return false, msg
}

// newSessionToken returns a uniformly random, >=128-bit opaque token
// (32 random bytes, hex-encoded) per spec §3. A JWT is deliberately not
// used here -- see DESIGN.md for why.
func newSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// JoinServer implements join-server: validates the name, mints a session
// token and player id, and records the session.
func JoinServer(reg *registry.Registry, name string, now time.Time) (*registry.Session, error) {
	trimmed, code, msg := ValidateName(reg, name)
	if code != "" {
		return nil, apperr.New(code, "%s", msg)
	}

	token, err := newSessionToken()
	if err != nil {
		return nil, apperr.New(apperr.Internal, "failed to generate session token")
	}
	playerID := uuid.NewString()

	return reg.CreateSession(token, playerID, trimmed, now), nil
}

// AuthCheck implements auth-check: looks up the session by token and, on a
// hit, refreshes lastActivity.
func AuthCheck(reg *registry.Registry, token string, now time.Time) (*registry.Session, error) {
	s, err := reg.Session(token)
	if err != nil {
		return nil, err
	}
	reg.Touch(s, now)
	return s, nil
}
