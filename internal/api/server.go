// Package api serves a read-only observer endpoint for visualization
// front-ends: current wheel state over HTTP and a live WebSocket feed.
// The pipeline runs identically with or without it; observers read the
// published snapshot and can never mutate physics state.
package api

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"penwheel/internal/pipeline"
)

// observerRate is how often the WebSocket feed publishes a frame.
// Visualization does not need the physics tick rate.
const observerRate = 30 // Hz

// Server exposes the observer endpoints.
type Server struct {
	pipe *pipeline.Pipeline
	log  zerolog.Logger
	hub  *hub

	httpServer *http.Server
}

// NewServer creates an observer server over the given pipeline.
func NewServer(pipe *pipeline.Pipeline, log zerolog.Logger) *Server {
	s := &Server{pipe: pipe, log: log}
	s.hub = newHub(log)
	return s
}

// Start listens on the given port and serves until Stop. It runs its
// own goroutines and returns once the listener is up.
func (s *Server) Start(port int) error {
	go s.hub.run()
	go s.publishLoop()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/ws", s.hub.handleWebSocket)

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api: listen %s: %w", addr, err)
	}

	s.log.Info().Str("addr", addr).Msg("api: observer server listening")

	s.httpServer = &http.Server{Handler: s.recoverMiddleware(mux)}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("api: server stopped")
		}
	}()

	return nil
}

// Stop shuts the server and the feed down.
func (s *Server) Stop() {
	s.hub.stop()
	if s.httpServer != nil {
		s.httpServer.Close()
	}
}

// publishLoop pushes wheel snapshots to the hub at the observer rate.
func (s *Server) publishLoop() {
	ticker := time.NewTicker(time.Second / observerRate)
	defer ticker.Stop()

	for {
		select {
		case <-s.hub.shutdown:
			return
		case <-ticker.C:
			frame, ok := s.pipe.Snapshot()
			if !ok {
				continue
			}
			s.hub.broadcastFrame(frame)
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	frame, ok := s.pipe.Snapshot()
	resp := map[string]any{
		"running": ok,
		"wheel":   frame,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// recoverMiddleware prevents a handler panic from taking the process
// down with it.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.log.Error().Any("panic", err).Msg("api: handler panic")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
