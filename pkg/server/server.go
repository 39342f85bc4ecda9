// Package server exposes the search pipeline over HTTP. Searches run
// asynchronously: submission returns a job ID immediately and clients poll
// for the finished report.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rastreia-dev/rastreia/pkg/jobs"
	"github.com/rastreia-dev/rastreia/pkg/query"
	"github.com/rastreia-dev/rastreia/pkg/rastreia"
)

// Server handles search submissions and job polling.
type Server struct {
	searcher *rastreia.Searcher
	store    *jobs.Store
	logger   *slog.Logger
}

// New creates a Server.
func New(searcher *rastreia.Searcher, store *jobs.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{searcher: searcher, store: store, logger: logger}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("GET /jobs/{id}", s.handleJob)
	mux.HandleFunc("GET /jobs", s.handleJobs)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

type searchRequest struct {
	Name     string `json:"name"`
	City     string `json:"city"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

type searchResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	q, err := query.New(req.Name, req.City, req.Username, req.Email, req.Phone)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := s.store.Create(r.Context(), q)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "job creation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not create job")
		return
	}

	go s.run(job.ID, q)

	s.logger.InfoContext(r.Context(), "job accepted", "job", job.ID, "query", q.Label())
	writeJSON(w, http.StatusAccepted, searchResponse{JobID: job.ID, Status: string(job.Status)})
}

// run executes one search job on its own context: the submitting request
// is long gone by the time the search finishes.
func (s *Server) run(id string, q query.Query) {
	ctx := context.Background()

	if err := s.store.Start(ctx, id); err != nil {
		s.logger.Error("job start failed", "job", id, "error", err)
		return
	}

	rep, err := s.searcher.Search(ctx, q)
	if err != nil {
		msg := "search failed"
		if errors.Is(err, rastreia.ErrSearchTimeout) {
			msg = "search deadline exceeded"
		}
		s.logger.Warn("job failed", "job", id, "error", err)
		if ferr := s.store.Fail(ctx, id, msg); ferr != nil {
			s.logger.Error("job fail-transition failed", "job", id, "error", ferr)
		}
		return
	}

	if err := s.store.Complete(ctx, id, rep); err != nil {
		s.logger.Error("job complete-transition failed", "job", id, "error", err)
		return
	}
	s.logger.Info("job completed", "job", id, "persons", len(rep.Persons))
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.List())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
