package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pupring/engrave/internal/facecrop"
	"github.com/pupring/engrave/internal/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browsers enforce CORS on the HTTP endpoints; the WebSocket
		// endpoint accepts any origin and relies on rate limiting.
		return true
	},
}

// WebSocketRequest is one processing job submitted over the socket. Image
// bytes travel base64-encoded inside the JSON payload.
type WebSocketRequest struct {
	Filename     string                `json:"filename"`
	Image        []byte                `json:"image"`
	PetName      string                `json:"petName,omitempty"`
	LastModified int64                 `json:"lastModified,omitempty"`
	Coordinates  *facecrop.BoundingBox `json:"coordinates,omitempty"`
}

// WebSocketMessage is the envelope for every server-to-client message.
// Type is one of "step", "state", "result", "error".
type WebSocketMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// wsConnWriter is the write surface the progress listener needs.
type wsConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// wsProgressListener streams pipeline progress to one connection. Process
// runs synchronously in the connection's read loop, so writes are not
// concurrent with each other.
type wsProgressListener struct {
	conn wsConnWriter
}

func (l *wsProgressListener) OnStep(record pipeline.StepRecord) {
	sendWebSocketMessage(l.conn, WebSocketMessage{Type: "step", Payload: record})
}

func (l *wsProgressListener) OnStateChange(state pipeline.State) {
	sendWebSocketMessage(l.conn, WebSocketMessage{Type: "state", Payload: state})
}

// processWebSocketHandler handles WebSocket connections on /ws/process.
// Each text message is one processing job; step and state events stream back
// while the run advances, followed by the full result.
func (s *Server) processWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(conn)
}

func (s *Server) handleWebSocketConnection(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Keep the connection alive across long runs.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			break
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketJob(conn, data)
			// The run may outlast the read deadline; push it out again.
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		}
	}
}

func (s *Server) handleWebSocketJob(conn *websocket.Conn, data []byte) {
	var req WebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		sendWebSocketError(conn, fmt.Sprintf("failed to parse request: %v", err))
		return
	}
	if len(req.Image) == 0 {
		sendWebSocketError(conn, "no image data provided")
		return
	}
	if int64(len(req.Image)) > s.maxUploadMB<<20 {
		sendWebSocketError(conn, fmt.Sprintf("image exceeds the %d MB upload limit", s.maxUploadMB))
		return
	}
	uploadSizeBytes.Observe(float64(len(req.Image)))

	var box *facecrop.BoundingBox
	if req.Coordinates != nil && req.Coordinates.Valid() {
		box = req.Coordinates
	}
	var lastModified time.Time
	if req.LastModified > 0 {
		lastModified = time.UnixMilli(req.LastModified)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.requestTimeout())
	defer cancel()

	res := s.proc.Process(ctx, pipeline.Request{
		Filename:     req.Filename,
		Data:         req.Image,
		Size:         int64(len(req.Image)),
		LastModified: lastModified,
		PetName:      req.PetName,
		CustomBox:    box,
		Listener:     &wsProgressListener{conn: conn},
	})
	recordRun("websocket", res)

	sendWebSocketMessage(conn, WebSocketMessage{Type: "result", Payload: res})
}

func sendWebSocketMessage(conn wsConnWriter, msg WebSocketMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal WebSocket message", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

func sendWebSocketError(conn wsConnWriter, message string) {
	sendWebSocketMessage(conn, WebSocketMessage{Type: "error", Error: message})
}
