package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/asset-tracker/internal/jobs"
)

func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.ImportStatementJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := store.GetJob(context.Background(), jobID)
	t.Fatalf("job %s never reached %s, last state %+v", jobID, want, job)
	return nil
}

func TestQueueCompletesJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := q.Start(ctx, func(_ context.Context, job jobs.Job) error {
		j := job.(*jobs.ImportStatementJob)
		j.Imported = 7
		return nil
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	job := &jobs.ImportStatementJob{AccountID: "acc-1", GCSURI: "gs://bucket/statement.pdf"}
	if err := q.PublishImportStatement(ctx, job); err != nil {
		t.Fatalf("PublishImportStatement() error = %v", err)
	}
	if job.JobID == "" || job.MaxRetries != defaultMaxRetries {
		t.Errorf("defaults not applied: %+v", job)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.Imported != 7 {
		t.Errorf("Imported = %d, want 7", done.Imported)
	}

	if err := q.Stop(context.Background()); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := q.PublishImportStatement(ctx, &jobs.ImportStatementJob{}); !errors.Is(err, jobs.ErrQueueClosed) {
		t.Errorf("publish after Stop() error = %v, want ErrQueueClosed", err)
	}
}

func TestQueueRetriesThenFails(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, store, WithWorkers(1), WithBackoff(func(int) time.Duration { return time.Millisecond }))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer q.Close()

	var attempts atomic.Int32
	_ = q.Start(ctx, func(context.Context, jobs.Job) error {
		attempts.Add(1)
		return errors.New("model unavailable")
	})

	job := &jobs.ImportStatementJob{AccountID: "acc-1", MaxRetries: 2}
	if err := q.PublishImportStatement(ctx, job); err != nil {
		t.Fatalf("PublishImportStatement() error = %v", err)
	}

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if failed.RetryCount != 2 || failed.Error != "model unavailable" {
		t.Errorf("failed job = %+v", failed)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestStoreListJobs(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2023, 1, 17, 0, 0, 0, 0, time.UTC)

	for i, accountID := range []string{"a", "b", "a"} {
		_ = store.SaveJob(ctx, &jobs.ImportStatementJob{
			JobID:     string(rune('1' + i)),
			AccountID: accountID,
			Status:    jobs.JobStatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	list, _ := store.ListJobs(ctx, jobs.JobFilter{AccountID: "a"})
	if len(list) != 2 || list[0].JobID != "3" {
		t.Errorf("ListJobs(a) = %+v", list)
	}

	list, _ = store.ListJobs(ctx, jobs.JobFilter{Limit: 1, Offset: 1})
	if len(list) != 1 || list[0].JobID != "2" {
		t.Errorf("ListJobs(limit 1, offset 1) = %+v", list)
	}

	if _, err := store.GetJob(ctx, "missing"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("GetJob(missing) error = %v, want ErrJobNotFound", err)
	}
	if err := store.UpdateJobStatus(ctx, "1", jobs.JobStatusFailed, "boom"); err != nil {
		t.Fatalf("UpdateJobStatus() error = %v", err)
	}
	job, _ := store.GetJob(ctx, "1")
	if job.Status != jobs.JobStatusFailed || job.Error != "boom" {
		t.Errorf("after UpdateJobStatus() = %+v", job)
	}
}
