package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"jarvis/internal/assistant"
)

const (
	EventMessage             = "message"
	EventClearConversation   = "clear_conversation"
	EventConnected           = "connected"
	EventResponse            = "response"
	EventConversationCleared = "conversation_cleared"
	EventError               = "error"
)

// Frame is one websocket message in either direction.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type messageData struct {
	Message string `json:"message"`
}

type responseData struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Intent    string `json:"intent"`
}

// MaxFrameBytes bounds one client frame; larger frames close the connection.
const MaxFrameBytes = 64 << 10

type errorData struct {
	Error string `json:"error"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(MaxFrameBytes)
	stop := context.AfterFunc(r.Context(), func() { _ = conn.Close() })
	defer stop()

	key := uuid.NewString()
	sess := s.sessions.Open(key)
	defer s.sessions.Close(key)
	logger := s.logger.With(zap.String("session", sess.ID()))
	logger.Info("client connected")
	defer logger.Info("client disconnected")

	send := func(event string, data any) bool {
		if err := conn.WriteJSON(outFrame{Event: event, Data: data}); err != nil {
			logger.Warn("websocket write failed", zap.Error(err))
			return false
		}
		return true
	}

	if !send(EventConnected, messageData{Message: "Connected to JARVIS"}) {
		return
	}

	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		event, data := s.dispatch(r.Context(), sess, f)
		if !send(event, data) {
			return
		}
	}
}

// dispatch handles one client frame and returns the reply frame.
func (s *Server) dispatch(ctx context.Context, sess *assistant.Session, f Frame) (event string, data any) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("websocket handler panicked", zap.Any("panic", rec))
			event, data = EventError, errorData{Error: fmt.Sprint(rec)}
		}
	}()

	switch f.Event {
	case EventMessage:
		var in messageData
		if len(f.Data) > 0 {
			if err := json.Unmarshal(f.Data, &in); err != nil {
				return EventError, errorData{Error: "Invalid message payload"}
			}
		}
		if strings.TrimSpace(in.Message) == "" {
			return EventError, errorData{Error: "Empty message"}
		}
		reply := sess.Process(ctx, in.Message)
		return EventResponse, responseData{
			Message:   reply.Text,
			Timestamp: reply.Timestamp.Format(time.RFC3339),
			Intent:    reply.Intent.Primary,
		}
	case EventClearConversation:
		sess.Clear()
		return EventConversationCleared, messageData{Message: "Conversation cleared"}
	default:
		return EventError, errorData{Error: "Unknown event: " + f.Event}
	}
}
