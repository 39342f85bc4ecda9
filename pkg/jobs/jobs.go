// Package jobs tracks asynchronous search jobs. A job moves through
// pending → processing → completed or failed, written by exactly one
// worker; readers only ever see a consistent snapshot.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/google/uuid"

	"github.com/rastreia-dev/rastreia/pkg/query"
	"github.com/rastreia-dev/rastreia/pkg/report"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ErrNotFound indicates an unknown job ID.
var ErrNotFound = errors.New("job not found")

// ErrBadTransition indicates a state change the lifecycle does not allow.
var ErrBadTransition = errors.New("invalid job transition")

// Job is one search request and its eventual result.
type Job struct {
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Report    *report.Report `json:"report,omitempty"`
	ID        string         `json:"id"`
	Status    Status         `json:"status"`
	Error     string         `json:"error,omitempty"`
	Query     query.Query    `json:"query"`
}

// Store keeps jobs in memory and mirrors each update to disk when a
// persistence directory is configured, so finished reports survive a
// restart's loss of memory.
type Store struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	dir    string
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithDir enables file persistence under dir.
func WithDir(dir string) Option {
	return func(s *Store) { s.dir = dir }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates a Store. If a persistence directory is set, previously
// saved jobs are loaded back.
func NewStore(opts ...Option) (*Store, error) {
	s := &Store{jobs: make(map[string]*Job), logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0o750); err != nil {
			return nil, fmt.Errorf("create jobs directory: %w", err)
		}
		if err := s.load(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Create registers a new pending job for a query.
func (s *Store) Create(ctx context.Context, q query.Query) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		Query:     q,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	if err := s.persist(ctx, job); err != nil {
		// The caller saw creation fail; keeping the job in memory would let
		// it be fetched as a pending job no worker will ever run.
		s.mu.Lock()
		delete(s.jobs, job.ID)
		s.mu.Unlock()
		return nil, err
	}
	return snapshot(job), nil
}

// Get returns a copy of a job.
func (s *Store) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return snapshot(job), nil
}

// List returns copies of all jobs, unordered.
func (s *Store) List() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, snapshot(job))
	}
	return out
}

// Start moves a pending job to processing.
func (s *Store) Start(ctx context.Context, id string) error {
	return s.transition(ctx, id, StatusPending, StatusProcessing, nil, "")
}

// Complete moves a processing job to completed with its report.
func (s *Store) Complete(ctx context.Context, id string, rep *report.Report) error {
	return s.transition(ctx, id, StatusProcessing, StatusCompleted, rep, "")
}

// Fail moves a processing job to failed with an error message.
func (s *Store) Fail(ctx context.Context, id, msg string) error {
	return s.transition(ctx, id, StatusProcessing, StatusFailed, nil, msg)
}

func (s *Store) transition(ctx context.Context, id string, from, to Status, rep *report.Report, msg string) error {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if job.Status != from {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s (job is %s)", ErrBadTransition, from, to, job.Status)
	}
	job.Status = to
	job.Report = rep
	job.Error = msg
	job.UpdatedAt = time.Now().UTC()
	snap := snapshot(job)
	s.mu.Unlock()

	return s.persist(ctx, snap)
}

func snapshot(job *Job) *Job {
	c := *job
	return &c
}

// persist writes the job file. Disk writes are the one place retries make
// sense here: a transient filesystem hiccup should not lose a finished
// report.
func (s *Store) persist(ctx context.Context, job *Job) error {
	if s.dir == "" {
		return nil
	}

	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	path := filepath.Join(s.dir, job.ID+".json")

	err = retry.Do(
		func() error { return os.WriteFile(path, data, 0o600) },
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(50*time.Millisecond),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn("job write retry", "job", job.ID, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("persist job %s: %w", job.ID, err)
	}
	return nil
}

// load reads saved jobs back into memory. Jobs interrupted mid-processing
// are marked failed: the worker that owned them is gone.
func (s *Store) load() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read jobs directory: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable job file", "file", e.Name(), "error", err)
			continue
		}
		var job Job
		if err := json.Unmarshal(data, &job); err != nil || job.ID == "" {
			s.logger.Warn("skipping corrupt job file", "file", e.Name())
			continue
		}
		if job.Status == StatusPending || job.Status == StatusProcessing {
			job.Status = StatusFailed
			job.Error = "interrupted by restart"
			job.UpdatedAt = time.Now().UTC()
		}
		s.jobs[job.ID] = &job
	}
	return nil
}
