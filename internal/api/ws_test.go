package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsURL(httpURL, query string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/ws?" + query
}

func TestWebSocketClosesWith4001WhenNoSessionTokenIsGiven(t *testing.T) {
	s := newTestServer()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL, ""), nil)
	require.NoError(t, err)
	defer conn.Close()

	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok, "expected a close error, got %v", err)
	assert.Equal(t, 4001, closeErr.Code)
}

func TestWebSocketClosesWith4002ForAnInvalidSessionToken(t *testing.T) {
	s := newTestServer()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL, "sessionId=not-a-real-token"), nil)
	require.NoError(t, err)
	defer conn.Close()

	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok, "expected a close error, got %v", err)
	assert.Equal(t, 4002, closeErr.Code)
}

func TestWebSocketAttachesAndDeliversAConnectedEvent(t *testing.T) {
	s := newTestServer()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	rec := doRequest(s, "POST", "/v1/join-server", "", joinServerRequest{Name: "Alice"})
	token := decodeEnvelope(t, rec.Body).Data.(map[string]any)["sessionId"].(string)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL, "sessionId="+token), nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event struct {
		Type string `json:"type"`
	}
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "connected", event.Type)
}

func TestWebSocketRecordPingRepliesPong(t *testing.T) {
	s := newTestServer()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	rec := doRequest(s, "POST", "/v1/join-server", "", joinServerRequest{Name: "Alice"})
	token := decodeEnvelope(t, rec.Body).Data.(map[string]any)["sessionId"].(string)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL, "sessionId="+token), nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var connected struct{ Type string `json:"type"` }
	require.NoError(t, conn.ReadJSON(&connected))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))

	var pong struct{ Type string `json:"type"` }
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong.Type)
}
