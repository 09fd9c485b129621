package ember

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestServer starts the s on an ephemeral port and arranges for it to
// stop with the test.
func startTestServer(t *testing.T, s *Server) string {
	t.Helper()

	port, err := s.Start(0)
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Stop()
	})

	return fmt.Sprintf("ws://localhost:%d", port)
}

func dialPeer(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	return conn
}

func TestWebSocketUpgrade(t *testing.T) {
	s := New()
	s.Logger = newTestLogger()
	url := startTestServer(t, s)

	conn := dialPeer(t, url+"/anything")
	defer conn.Close()

	assert.Eventually(t, func() bool {
		return s.registry.size() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketUpgradeRejected(t *testing.T) {
	s := New()
	s.Logger = newTestLogger()
	s.Middleware(UpgradeInterceptor(func(req *Request) *Response {
		if req.Header("X-Token") == "" {
			return Forbidden("missing token")
		}

		return nil
	}))

	url := startTestServer(t, s)

	// Without the token, the upgrade is refused and the response of the
	// interceptor comes back as plain HTTP.
	_, res, err := websocket.DefaultDialer.Dial(url+"/ws", nil)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Equal(t, 0, s.registry.size())

	// With the token, the handshake completes.
	conn, _, err := websocket.DefaultDialer.Dial(
		url+"/ws",
		http.Header{"X-Token": []string{"secret"}},
	)
	require.NoError(t, err)
	defer conn.Close()
}

func TestWebSocketPingPong(t *testing.T) {
	s := New()
	s.Logger = newTestLogger()
	url := startTestServer(t, s)

	conn := dialPeer(t, url+"/ws")
	defer conn.Close()

	pong := make(chan string, 1)
	conn.SetPongHandler(func(appData string) error {
		pong <- appData
		return nil
	})

	// Control frames are only processed while a read is pending.
	go conn.ReadMessage()

	require.NoError(t, conn.WriteControl(
		websocket.PingMessage,
		[]byte("marco"),
		time.Now().Add(time.Second),
	))

	select {
	case appData := <-pong:
		// The pong carries a copy of the ping payload.
		assert.Equal(t, "marco", appData)
	case <-time.After(2 * time.Second):
		t.Fatal("no pong received")
	}
}

func TestWebSocketCloseEchoed(t *testing.T) {
	s := New()
	s.Logger = newTestLogger()
	url := startTestServer(t, s)

	conn := dialPeer(t, url+"/ws")
	defer conn.Close()

	require.NoError(t, conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(
			websocket.CloseNormalClosure,
			"bye",
		),
		time.Now().Add(time.Second),
	))

	// Our close is already sent; skip the client's own reply so the read
	// reports the close frame echoed by the server.
	conn.SetCloseHandler(func(code int, text string) error {
		return nil
	})

	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.CloseNormalClosure, ce.Code)

	assert.Eventually(t, func() bool {
		return s.registry.size() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketDataFramesIgnored(t *testing.T) {
	s := New()
	s.Logger = newTestLogger()
	url := startTestServer(t, s)

	conn := dialPeer(t, url+"/ws")
	defer conn.Close()

	// Text frames are not routed anywhere; the connection stays up.
	require.NoError(t, conn.WriteMessage(
		websocket.TextMessage,
		[]byte("ignored"),
	))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, s.registry.size())
}
