package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hochfrequenz/claude-task-master/internal/domain"
)

// RunSource loads the current run state
type RunSource interface {
	Load() (*domain.Run, error)
}

// SessionSource lists recorded agent sessions
type SessionSource interface {
	ListRecent(limit int) ([]*domain.SessionRecord, error)
}

// Server is the read-only status API
type Server struct {
	runs     RunSource
	sessions SessionSource
	addr     string
	mux      *http.ServeMux
	hub      *Hub
}

// NewServer creates the status server. The sessions source may be nil
// when no session log is available.
func NewServer(runs RunSource, sessions SessionSource, addr string) *Server {
	s := &Server{
		runs:     runs,
		sessions: sessions,
		addr:     addr,
		mux:      http.NewServeMux(),
		hub:      NewHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/run", s.runHandler())
	s.mux.HandleFunc("/api/tasks", s.tasksHandler())
	s.mux.HandleFunc("/api/sessions", s.sessionsHandler())
	s.mux.HandleFunc("/api/events", s.eventsHandler())
}

// Sink returns an event sink that broadcasts lifecycle events to all
// connected stream clients.
func (s *Server) Sink() *Hub {
	return s.hub
}

// Start runs the server until the context ends, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.mux}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
