package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, opts RouterOptions) (*Hub, string) {
	t.Helper()
	hub := NewHub(nil)
	router := NewRouter(hub, nil, opts)
	srv := NewServer(ServerConfig{Path: "/ws"}, router, hub, nil)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hub.CloseAll(nil)
		ts.Close()
	})
	return hub, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForSessions(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Count() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcastReachesEverySubscriber(t *testing.T) {
	hub, url := startTestServer(t, RouterOptions{})

	first := dial(t, url, nil)
	second := dial(t, url, nil)
	waitForSessions(t, hub, 2)

	delivered, err := hub.Broadcast(EventNewReview, map[string]any{"name": "Ann", "rating": 5, "feedback": "Great!"})
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)

	for _, conn := range []*websocket.Conn{first, second} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg struct {
			Event string         `json:"event"`
			Data  map[string]any `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, "newReview", msg.Event)
		assert.Equal(t, "Ann", msg.Data["name"])
		assert.EqualValues(t, 5, msg.Data["rating"])
	}
}

func TestLateSubscriberGetsNoReplay(t *testing.T) {
	hub, url := startTestServer(t, RouterOptions{})

	delivered, err := hub.Broadcast(EventNewReview, map[string]any{"name": "Early"})
	require.NoError(t, err)
	assert.Zero(t, delivered)

	conn := dial(t, url, nil)
	waitForSessions(t, hub, 1)

	_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
}

func TestCloseAllDisconnectsSubscribers(t *testing.T) {
	hub, url := startTestServer(t, RouterOptions{})

	conn := dial(t, url, nil)
	waitForSessions(t, hub, 1)

	hub.CloseAll(ErrSessionsRevoked)
	assert.Zero(t, hub.Count())

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))
}

func TestClientDisconnectUnregistersSession(t *testing.T) {
	hub, url := startTestServer(t, RouterOptions{})

	conn := dial(t, url, nil)
	waitForSessions(t, hub, 1)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	_ = conn.Close()
	waitForSessions(t, hub, 0)
}

func TestOriginCheck(t *testing.T) {
	_, url := startTestServer(t, RouterOptions{AllowedOrigins: []string{"http://localhost:5173/"}})

	allowed := http.Header{"Origin": []string{"http://localhost:5173"}}
	_ = dial(t, url, allowed)

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
