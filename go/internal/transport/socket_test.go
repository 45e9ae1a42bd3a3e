package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer accepts websocket upgrades and hands each connection to serve.
type echoServer struct {
	srv      *httptest.Server
	accepted atomic.Int64
}

func newEchoServer(t *testing.T, serve func(conn *websocket.Conn)) *echoServer {
	t.Helper()
	es := &echoServer{}
	upgrader := websocket.Upgrader{}
	es.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		es.accepted.Add(1)
		serve(conn)
	}))
	t.Cleanup(es.srv.Close)
	return es
}

func (es *echoServer) wsURL() string {
	return "ws" + strings.TrimPrefix(es.srv.URL, "http")
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ReconnectDelay = 50 * time.Millisecond
	return cfg
}

func TestSocketDeliversMessages(t *testing.T) {
	server := newEchoServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"round_update"}`))
	})

	received := make(chan []byte, 1)
	opened := make(chan struct{}, 1)
	socket := Open(server.wsURL(), Handlers{
		OnMessage: func(data []byte) { received <- data },
		OnOpen:    func() { opened <- struct{}{} },
	})
	defer socket.Close()

	select {
	case <-opened:
	case <-time.After(2 * time.Second):
		t.Fatal("socket never opened")
	}
	select {
	case data := <-received:
		assert.JSONEq(t, `{"type":"round_update"}`, string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("message never delivered")
	}
}

func TestSocketReconnectsAfterAbnormalClose(t *testing.T) {
	server := newEchoServer(t, func(conn *websocket.Conn) {
		// Drop the connection without a close frame.
		conn.Close()
	})

	closed := make(chan int, 4)
	socket := OpenWithConfig(server.wsURL(), Handlers{
		OnMessage: func([]byte) {},
		OnClose:   func(code int) { closed <- code },
	}, testConfig())
	defer socket.Close()

	select {
	case code := <-closed:
		assert.Equal(t, websocket.CloseAbnormalClosure, code)
	case <-time.After(2 * time.Second):
		t.Fatal("close never reported")
	}

	require.Eventually(t, func() bool {
		return server.accepted.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond, "socket did not reconnect")
}

func TestSocketStaysDownAfterNormalClose(t *testing.T) {
	server := newEchoServer(t, func(conn *websocket.Conn) {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		conn.Close()
	})

	closed := make(chan int, 4)
	socket := OpenWithConfig(server.wsURL(), Handlers{
		OnMessage: func([]byte) {},
		OnClose:   func(code int) { closed <- code },
	}, testConfig())
	defer socket.Close()

	select {
	case code := <-closed:
		assert.Equal(t, websocket.CloseNormalClosure, code)
	case <-time.After(2 * time.Second):
		t.Fatal("close never reported")
	}

	time.Sleep(200 * time.Millisecond)
	assert.EqualValues(t, 1, server.accepted.Load())
	assert.Equal(t, StateClosed, socket.State())
}

func TestCloseCancelsPendingReconnect(t *testing.T) {
	server := newEchoServer(t, func(conn *websocket.Conn) {
		conn.Close()
	})

	closed := make(chan int, 4)
	socket := OpenWithConfig(server.wsURL(), Handlers{
		OnMessage: func([]byte) {},
		OnClose:   func(code int) { closed <- code },
	}, testConfig())

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("close never reported")
	}

	// Close while the reconnect delay is still pending.
	socket.Close()
	time.Sleep(200 * time.Millisecond)
	assert.EqualValues(t, 1, server.accepted.Load())
}

func TestSendEncodesJSONPayloads(t *testing.T) {
	received := make(chan []byte, 1)
	server := newEchoServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.ReadMessage()
		if err == nil {
			received <- data
		}
	})

	opened := make(chan struct{}, 1)
	socket := Open(server.wsURL(), Handlers{
		OnMessage: func([]byte) {},
		OnOpen:    func() { opened <- struct{}{} },
	})
	defer socket.Close()

	select {
	case <-opened:
	case <-time.After(2 * time.Second):
		t.Fatal("socket never opened")
	}

	socket.Send(map[string]any{"type": "status_request"})
	select {
	case data := <-received:
		assert.JSONEq(t, `{"type":"status_request"}`, string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("payload never arrived")
	}
}

func TestSendDropsWhenNotOpen(t *testing.T) {
	socket := OpenWithConfig("ws://127.0.0.1:1/ws/", Handlers{
		OnMessage: func([]byte) {},
	}, testConfig())
	defer socket.Close()

	// Must not panic or block while the dial is failing.
	socket.Send("hello")
}
