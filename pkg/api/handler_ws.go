package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/4sgupta828/oats/pkg/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The control plane sits behind cluster ingress; origin policy is
	// enforced there, not here.
	CheckOrigin: func(*http.Request) bool { return true },
}

const (
	wsWriteTimeout = 10 * time.Second
	wsPingPeriod   = 30 * time.Second
)

// clientMessage is the client→server frame on the streaming channel.
type clientMessage struct {
	Type            string `json:"type"` // "start_investigation" or "attach"
	Goal            string `json:"goal,omitempty"`
	TargetNamespace string `json:"target_namespace,omitempty"`
	TurnBudget      int    `json:"turn_budget,omitempty"`
	InvestigationID string `json:"investigation_id,omitempty"`
}

// handleWebSocket serves one logical streaming session per investigation.
// The first client frame either starts a new investigation or attaches to
// an existing one; after that the connection carries agent_message and
// lifecycle frames until the client disconnects or the investigation
// terminates. Client disconnection detaches silently — the worker
// continues to completion.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var msg clientMessage
	if err := conn.ReadJSON(&msg); err != nil {
		writeWSError(conn, "malformed client message", err.Error())
		return
	}

	var investigationID string
	switch msg.Type {
	case "start_investigation":
		inv, err := s.svc.Create(c.Request.Context(), msg.Goal, msg.TargetNamespace, msg.TurnBudget)
		if err != nil {
			writeWSError(conn, "failed to start investigation", err.Error())
			return
		}
		investigationID = inv.ID
		s.writeWSJSON(conn, gin.H{
			"type":             "investigation_started",
			"investigation_id": inv.ID,
			"job_name":         inv.JobName,
		})
	case "attach":
		inv, err := s.svc.Get(msg.InvestigationID)
		if err != nil {
			writeWSError(conn, "unknown investigation", msg.InvestigationID)
			return
		}
		investigationID = inv.ID
	default:
		writeWSError(conn, "unknown message type", msg.Type)
		return
	}

	frames, cancel := s.svc.Hub().Subscribe(investigationID)
	defer cancel()
	s.metrics.StreamAttached()
	defer s.metrics.StreamDetached()

	// Reader goroutine: its only job is detecting client disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return // client went away; detach silently
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case frame := <-frames:
			if !s.writeWSJSON(conn, frame) {
				return
			}
			// A terminal lifecycle frame ends the session.
			if frame.Type == "lifecycle" && models.InvestigationState(frame.State).IsTerminal() {
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, frame.State))
				return
			}
		}
	}
}

func (s *Server) writeWSJSON(conn *websocket.Conn, v any) bool {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(v); err != nil {
		slog.Debug("websocket write failed", "error", err)
		return false
	}
	return true
}

func writeWSError(conn *websocket.Conn, msg, detail string) {
	payload, _ := json.Marshal(gin.H{"type": "error", "error": msg, "detail": detail})
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	conn.WriteMessage(websocket.TextMessage, payload)
}
