package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rastreia-dev/rastreia/pkg/query"
	"github.com/rastreia-dev/rastreia/pkg/report"
)

func mustQuery(t *testing.T) query.Query {
	t.Helper()
	q, err := query.New("Maria Silva", "", "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	return q
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore()
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	job, err := s.Create(ctx, mustQuery(t))
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if job.ID == "" || job.Status != StatusPending {
		t.Fatalf("Create() = %+v, want pending job with ID", job)
	}

	if err := s.Start(ctx, job.ID); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	rep := &report.Report{Summary: "done"}
	if err := s.Complete(ctx, job.ID, rep); err != nil {
		t.Fatalf("Complete() error: %v", err)
	}

	got, err := s.Get(job.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("Status = %s, want completed", got.Status)
	}
	if got.Report == nil || got.Report.Summary != "done" {
		t.Errorf("Report = %+v, want the completed report", got.Report)
	}
	if !got.UpdatedAt.After(got.CreatedAt) && !got.UpdatedAt.Equal(got.CreatedAt) {
		t.Errorf("UpdatedAt %v before CreatedAt %v", got.UpdatedAt, got.CreatedAt)
	}
}

func TestFail(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	job, err := s.Create(ctx, mustQuery(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(ctx, job.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.Fail(ctx, job.ID, "search deadline exceeded"); err != nil {
		t.Fatalf("Fail() error: %v", err)
	}

	got, err := s.Get(job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusFailed || got.Error != "search deadline exceeded" {
		t.Errorf("job = %+v, want failed with message", got)
	}
}

func TestInvalidTransitions(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	job, err := s.Create(ctx, mustQuery(t))
	if err != nil {
		t.Fatal(err)
	}

	// Completing a pending job skips processing.
	if err := s.Complete(ctx, job.ID, nil); !errors.Is(err, ErrBadTransition) {
		t.Errorf("Complete(pending) error = %v, want ErrBadTransition", err)
	}

	if err := s.Start(ctx, job.ID); err != nil {
		t.Fatal(err)
	}
	// Starting twice.
	if err := s.Start(ctx, job.ID); !errors.Is(err, ErrBadTransition) {
		t.Errorf("Start(processing) error = %v, want ErrBadTransition", err)
	}

	if err := s.Complete(ctx, job.ID, nil); err != nil {
		t.Fatal(err)
	}
	// Terminal states are final.
	if err := s.Fail(ctx, job.ID, "too late"); !errors.Is(err, ErrBadTransition) {
		t.Errorf("Fail(completed) error = %v, want ErrBadTransition", err)
	}
}

func TestGetUnknown(t *testing.T) {
	s := newStore(t)
	if _, err := s.Get("no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	job, err := s.Create(ctx, mustQuery(t))
	if err != nil {
		t.Fatal(err)
	}

	job.Status = StatusCompleted // mutate the returned copy

	got, err := s.Get(job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusPending {
		t.Errorf("Status = %s, want store unaffected by caller mutation", got.Status)
	}
}

func TestPersistenceAcrossRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s1, err := NewStore(WithDir(dir))
	if err != nil {
		t.Fatal(err)
	}

	done, err := s1.Create(ctx, mustQuery(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.Start(ctx, done.ID); err != nil {
		t.Fatal(err)
	}
	if err := s1.Complete(ctx, done.ID, &report.Report{Summary: "persisted"}); err != nil {
		t.Fatal(err)
	}

	stuck, err := s1.Create(ctx, mustQuery(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.Start(ctx, stuck.ID); err != nil {
		t.Fatal(err)
	}

	// A new store over the same directory sees both jobs; the one caught
	// mid-flight is failed, not resurrected.
	s2, err := NewStore(WithDir(dir))
	if err != nil {
		t.Fatal(err)
	}

	gotDone, err := s2.Get(done.ID)
	if err != nil {
		t.Fatalf("completed job lost across restart: %v", err)
	}
	if gotDone.Status != StatusCompleted || gotDone.Report == nil || gotDone.Report.Summary != "persisted" {
		t.Errorf("restored job = %+v, want completed with report", gotDone)
	}

	gotStuck, err := s2.Get(stuck.ID)
	if err != nil {
		t.Fatalf("interrupted job lost across restart: %v", err)
	}
	if gotStuck.Status != StatusFailed {
		t.Errorf("interrupted job status = %s, want failed", gotStuck.Status)
	}
}

func TestCreatePersistFailureLeavesNoJob(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "jobs")

	s, err := NewStore(WithDir(dir))
	if err != nil {
		t.Fatal(err)
	}

	// Replace the jobs directory with a plain file so the write fails.
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dir, []byte("not a directory"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Create(ctx, mustQuery(t)); err == nil {
		t.Fatal("Create() succeeded, want persist error")
	}
	if got := s.List(); len(got) != 0 {
		t.Errorf("List() = %v, want no job after failed creation", got)
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for range 3 {
		if _, err := s.Create(ctx, mustQuery(t)); err != nil {
			t.Fatal(err)
		}
	}
	if got := len(s.List()); got != 3 {
		t.Errorf("List() returned %d jobs, want 3", got)
	}
}
