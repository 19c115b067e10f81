package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/lanedetect/internal/lanes"
	"github.com/MeKo-Tech/lanedetect/internal/pipeline"
	"github.com/MeKo-Tech/lanedetect/internal/utils"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketLaneRequest asks for detection on an encoded image or a raw BGR frame.
type WebSocketLaneRequest struct {
	Type      string `json:"type"` // "image" or "frame"
	RequestID string `json:"request_id,omitempty"`
	Image     []byte `json:"image,omitempty"`
	Frame     []byte `json:"frame,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// WebSocketLaneResponse carries a result or an error for one request.
type WebSocketLaneResponse struct {
	Type      string                `json:"type"`
	Status    string                `json:"status"` // "completed" or "error"
	Result    *pipeline.FrameResult `json:"result,omitempty"`
	Error     string                `json:"error,omitempty"`
	ErrorType string                `json:"error_type,omitempty"`
	RequestID string                `json:"request_id,omitempty"`
}

// WebSocketConnWriter is the write side of a WebSocket connection.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

func (s *Server) laneWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r.Context(), conn)
}

func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, conn, data)
		}
	}
}

// handleWebSocketMessage answers one text message with exactly one response.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, data []byte) {
	var req WebSocketLaneRequest
	if err := json.Unmarshal(data, &req); err != nil {
		sendWebSocketError(conn, "", "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	var res *pipeline.FrameResult
	var err error
	switch req.Type {
	case "image":
		if len(req.Image) == 0 {
			sendWebSocketError(conn, req.RequestID, "invalid_request", "No image data provided")
			return
		}
		img, _, derr := utils.DecodeImage(req.Image)
		if derr != nil {
			sendWebSocketError(conn, req.RequestID, "invalid_request", fmt.Sprintf("Failed to decode image: %v", derr))
			return
		}
		res, err = s.detector.ProcessImageContext(ctx, img)
	case "frame":
		res, err = s.detector.ProcessFrameContext(ctx, lanes.NewFrame(req.Frame, req.Width, req.Height))
	default:
		sendWebSocketError(conn, req.RequestID, "invalid_request", "Unsupported request type: "+req.Type)
		return
	}

	if err != nil {
		errType := "processing_error"
		if lanes.IsDimensionError(err) {
			errType = "invalid_dimensions"
		}
		detectRequestsTotal.WithLabelValues("websocket", "error").Inc()
		sendWebSocketError(conn, req.RequestID, errType, err.Error())
		return
	}
	observeResult("websocket", time.Since(start).Seconds(), res.Fallback, len(res.Segments))

	sendWebSocketResponse(conn, WebSocketLaneResponse{
		Type:      "lanes",
		Status:    "completed",
		Result:    res,
		RequestID: req.RequestID,
	})
}

func sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketLaneResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

func sendWebSocketError(conn WebSocketConnWriter, requestID, errorType, message string) {
	sendWebSocketResponse(conn, WebSocketLaneResponse{
		Type:      "error",
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
		RequestID: requestID,
	})
}
