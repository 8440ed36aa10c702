package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/hochfrequenz/claude-task-master/internal/domain"
	"github.com/hochfrequenz/claude-task-master/internal/state"
)

// RunResponse is the API shape of the current run
type RunResponse struct {
	ID           string      `json:"run_id"`
	Goal         string      `json:"goal"`
	Status       string      `json:"status"`
	Model        string      `json:"model"`
	SessionCount int         `json:"session_count"`
	MaxSessions  int         `json:"max_sessions,omitempty"`
	TasksTotal   int         `json:"tasks_total"`
	TasksDone    int         `json:"tasks_done"`
	PR           *PRResponse `json:"pr,omitempty"`
	CreatedAt    string      `json:"created_at"`
	UpdatedAt    string      `json:"updated_at"`
}

// PRResponse is the API shape of an in-flight submission
type PRResponse struct {
	Number int    `json:"number"`
	Stage  string `json:"stage"`
	Branch string `json:"branch,omitempty"`
}

// TaskResponse is the API shape of one checklist task
type TaskResponse struct {
	Index       int    `json:"index"`
	Description string `json:"description"`
	Done        bool   `json:"done"`
	Current     bool   `json:"current"`
}

// SessionResponse is the API shape of one session record
type SessionResponse struct {
	Session        int    `json:"session"`
	Phase          string `json:"phase"`
	Outcome        string `json:"outcome"`
	Classification string `json:"classification,omitempty"`
	Attempts       int    `json:"attempts"`
	Duration       string `json:"duration"`
	Error          string `json:"error,omitempty"`
	StartedAt      string `json:"started_at"`
}

func runToResponse(run *domain.Run) RunResponse {
	resp := RunResponse{
		ID:           run.ID,
		Goal:         run.Goal,
		Status:       string(run.Status),
		Model:        run.Model,
		SessionCount: run.SessionCount,
		MaxSessions:  run.Options.MaxSessions,
		TasksTotal:   len(run.Tasks),
		CreatedAt:    run.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    run.UpdatedAt.Format(time.RFC3339),
	}
	for _, t := range run.Tasks {
		if t.Done {
			resp.TasksDone++
		}
	}
	if run.PR != nil {
		resp.PR = &PRResponse{
			Number: run.PR.Number,
			Stage:  string(run.PR.Stage),
			Branch: run.PR.Branch,
		}
	}
	return resp
}

func sessionToResponse(rec *domain.SessionRecord) SessionResponse {
	return SessionResponse{
		Session:        rec.Session,
		Phase:          string(rec.Phase),
		Outcome:        string(rec.Outcome),
		Classification: string(rec.Classification),
		Attempts:       rec.Attempts,
		Duration:       rec.Duration.Round(time.Millisecond).String(),
		Error:          rec.Error,
		StartedAt:      rec.StartedAt.Format(time.RFC3339),
	}
}

func (s *Server) runHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		run, err := s.runs.Load()
		if errors.Is(err, state.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no active run")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, runToResponse(run))
	}
}

func (s *Server) tasksHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		run, err := s.runs.Load()
		if errors.Is(err, state.ErrNotFound) {
			writeJSON(w, []TaskResponse{})
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		next := run.NextTask()
		responses := make([]TaskResponse, len(run.Tasks))
		for i, t := range run.Tasks {
			responses[i] = TaskResponse{
				Index:       t.Index,
				Description: t.Description,
				Done:        t.Done,
				Current:     next != nil && t.Index == next.Index,
			}
		}
		writeJSON(w, responses)
	}
}

func (s *Server) sessionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		if s.sessions == nil {
			writeJSON(w, []SessionResponse{})
			return
		}

		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
				limit = n
			}
		}

		recs, err := s.sessions.ListRecent(limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		responses := make([]SessionResponse, len(recs))
		for i, rec := range recs {
			responses[i] = sessionToResponse(rec)
		}
		writeJSON(w, responses)
	}
}
