package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"jarvis/internal/assistant"
	"jarvis/internal/config"
	"jarvis/internal/logging"
)

// Server exposes the status endpoints and the realtime websocket.
type Server struct {
	assistant *assistant.Assistant
	sessions  *assistant.Sessions
	addr      string
	now       func() time.Time
	logger    *zap.Logger
	upgrader  websocket.Upgrader
}

func New(a *assistant.Assistant, addr string, logger *zap.Logger) *Server {
	return &Server{
		assistant: a,
		sessions:  assistant.NewSessions(a, assistant.ChannelWeb),
		addr:      addr,
		now:       time.Now,
		logger:    logging.OrNop(logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Sessions is the registry of connected websocket clients.
func (s *Server) Sessions() *assistant.Sessions { return s.sessions }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully. Open
// websockets are closed with the base context.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("web server listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web server shutdown: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": s.now().Format(time.RFC3339),
		"version":   config.Version,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	mem, err := s.assistant.MemoryStats(r.Context())
	if err != nil {
		s.logger.Error("stats error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	data := map[string]any{
		"memory":          mem,
		"active_sessions": s.sessions.Count(),
	}
	if today, err := s.assistant.DailyStats(s.now()); err != nil {
		s.logger.Warn("daily stats unavailable", zap.Error(err))
	} else {
		data["today"] = today
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}
