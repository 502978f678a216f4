package wshub

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

	"macromon/internal/config"
	"macromon/internal/engine"
)

func testConfig() config.WebSocket {
	return config.WebSocket{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		PingPeriod:      10 * time.Second,
		PongWait:        20 * time.Second,
	}
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHubGreetsNewClients(t *testing.T) {
	hub := NewHub(testConfig(), nil)
	hub.Start()
	t.Cleanup(hub.Stop)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(server.Close)

	conn := dial(t, server)
	msg := readMessage(t, conn)
	assert.Equal(t, TypeConnection, msg.Type)
}

func TestHubBroadcastsRunEvents(t *testing.T) {
	hub := NewHub(testConfig(), nil)
	hub.Start()
	t.Cleanup(hub.Stop)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(server.Close)

	conn := dial(t, server)
	readMessage(t, conn) // greeting

	// Wait for registration before publishing.
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	hub.Publish(engine.RunEvent{RunID: "run-1", Stage: "started", Timestamp: time.Now()})

	msg := readMessage(t, conn)
	assert.Equal(t, TypeRunProgress, msg.Type)

	var ev engine.RunEvent
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, "run-1", ev.RunID)
	assert.Equal(t, "started", ev.Stage)
}

func TestHubPublishNeverBlocksWithoutClients(t *testing.T) {
	hub := NewHub(testConfig(), nil)
	// Not started: the broadcast channel buffers, then drops.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			hub.Publish(engine.RunEvent{RunID: "run-1", Stage: "computed"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked")
	}
}

func TestHubStopDisconnectsClients(t *testing.T) {
	hub := NewHub(testConfig(), nil)
	hub.Start()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(server.Close)

	conn := dial(t, server)
	readMessage(t, conn) // greeting
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	hub.Stop()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return // connection closed as expected
		}
	}
}
