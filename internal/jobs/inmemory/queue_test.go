package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/expense-classifier/internal/jobs"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestQueue_PublishAndProcess(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, store)
	defer q.Close()

	var processed atomic.Int32
	handler := func(ctx context.Context, job jobs.Job) error {
		processed.Add(1)
		return nil
	}
	if err := q.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	job := &jobs.ImportStatementJob{
		GCSURI:         "gs://statements/imports/extracto.csv",
		SourceFilename: "extracto.csv",
	}
	if err := q.PublishImportStatement(context.Background(), job); err != nil {
		t.Fatalf("PublishImportStatement() error = %v", err)
	}
	if job.JobID == "" {
		t.Fatal("job ID not assigned")
	}

	waitFor(t, 2*time.Second, func() bool { return processed.Load() == 1 })

	waitFor(t, 2*time.Second, func() bool {
		saved, err := store.GetJob(context.Background(), job.JobID)
		return err == nil && saved.Status == jobs.JobStatusCompleted
	})
}

func TestQueue_RetriesThenFails(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, store)
	defer q.Close()

	var attempts atomic.Int32
	handler := func(ctx context.Context, job jobs.Job) error {
		attempts.Add(1)
		return errors.New("import failed")
	}
	if err := q.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	job := &jobs.ImportStatementJob{
		GCSURI:     "gs://statements/imports/roto.csv",
		MaxRetries: 1,
	}
	if err := q.PublishImportStatement(context.Background(), job); err != nil {
		t.Fatalf("PublishImportStatement() error = %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		saved, err := store.GetJob(context.Background(), job.JobID)
		return err == nil && saved.Status == jobs.JobStatusFailed
	})
	if got := attempts.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2 (initial + 1 retry)", got)
	}
}

func TestQueue_PublishAfterClose(t *testing.T) {
	q := NewQueue(1, nil)
	if err := q.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	err := q.PublishImportStatement(context.Background(), &jobs.ImportStatementJob{GCSURI: "gs://b/o.csv"})
	if err == nil {
		t.Fatal("PublishImportStatement() on closed queue error = nil, want error")
	}
}

func TestStore_ListJobsFilters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	for i, status := range []jobs.JobStatus{jobs.JobStatusPending, jobs.JobStatusCompleted, jobs.JobStatusCompleted} {
		job := &jobs.ImportStatementJob{
			JobID:     string(rune('a' + i)),
			Status:    status,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Minute),
		}
		if err := store.SaveJob(ctx, job); err != nil {
			t.Fatalf("SaveJob() error = %v", err)
		}
	}

	completed, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusCompleted})
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	if len(completed) != 2 {
		t.Fatalf("completed = %d, want 2", len(completed))
	}
	// Newest first.
	if completed[0].JobID != "c" {
		t.Errorf("completed[0] = %s, want c", completed[0].JobID)
	}

	limited, err := store.ListJobs(ctx, jobs.JobFilter{Limit: 1})
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limited = %d, want 1", len(limited))
	}
}
