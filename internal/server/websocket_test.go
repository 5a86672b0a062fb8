package server

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

	"github.com/pupring/engrave/internal/pipeline"
)

func dialWebSocket(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/process", s.processWebSocketHandler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/process"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WebSocketMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg WebSocketMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestWebSocketProcessStreamsProgress(t *testing.T) {
	proc := &fakeProcessor{result: successResult()}
	s := newTestServer(t, proc)
	conn := dialWebSocket(t, s)

	payload, err := json.Marshal(WebSocketRequest{
		Filename: "rex.png",
		Image:    []byte("image-bytes"),
		PetName:  "Rex",
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))

	var sawState, sawStep bool
	var result pipeline.Result
	for {
		msg := readMessage(t, conn)
		switch msg.Type {
		case "state":
			sawState = true
		case "step":
			sawStep = true
		case "result":
			raw, err := json.Marshal(msg.Payload)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(raw, &result))
		default:
			t.Fatalf("unexpected message type %q", msg.Type)
		}
		if msg.Type == "result" {
			break
		}
	}

	assert.True(t, sawState)
	assert.True(t, sawStep)
	assert.True(t, result.Success)
	assert.Equal(t, "memory://optimized/abc-final.png", result.FinalURL)
	assert.Equal(t, "Rex", proc.last.PetName)
}

func TestWebSocketRejectsEmptyImage(t *testing.T) {
	s := newTestServer(t, &fakeProcessor{result: successResult()})
	conn := dialWebSocket(t, s)

	payload, err := json.Marshal(WebSocketRequest{Filename: "rex.png"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))

	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Error, "no image data")
}

func TestWebSocketRejectsMalformedJSON(t *testing.T) {
	s := newTestServer(t, &fakeProcessor{result: successResult()})
	conn := dialWebSocket(t, s)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg.Type)
}

func TestWebSocketCustomCoordinatesForwarded(t *testing.T) {
	proc := &fakeProcessor{result: successResult()}
	s := newTestServer(t, proc)
	conn := dialWebSocket(t, s)

	payload := `{"filename":"rex.png","image":"aW1n","coordinates":{"x":320,"y":240,"width":150,"height":120}}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))

	for {
		msg := readMessage(t, conn)
		if msg.Type == "result" {
			break
		}
	}

	require.NotNil(t, proc.last.CustomBox)
	assert.InDelta(t, 320.0, proc.last.CustomBox.CenterX, 1e-9)
	assert.InDelta(t, 150.0, proc.last.CustomBox.Width, 1e-9)
}
