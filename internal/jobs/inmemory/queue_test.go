package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dompet-app/dompet/internal/jobs"
	"github.com/rs/zerolog"
)

// waitForStatus polls the store until the job reaches want or time runs out.
func waitForStatus(t *testing.T, s *Store, id string, want jobs.JobStatus) *jobs.ExportReportJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if job, err := s.GetJob(context.Background(), id); err == nil && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := s.GetJob(context.Background(), id)
	t.Fatalf("job %s did not reach %s, last state: %+v", id, want, job)
	return nil
}

func TestQueue_ProcessesJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, 2, store, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		job.(*jobs.ExportReportJob).ObjectURI = "gs://bucket/exports/u1/file.csv"
		return nil
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	job := &jobs.ExportReportJob{Owner: "u1"}
	if err := q.PublishExportReport(ctx, job); err != nil {
		t.Fatalf("PublishExportReport() error = %v", err)
	}
	if job.JobID == "" || job.Status != jobs.JobStatusPending || job.MaxRetries != defaultMaxRetries {
		t.Errorf("defaults not filled in: %+v", job)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.ObjectURI != "gs://bucket/exports/u1/file.csv" {
		t.Errorf("ObjectURI = %q", done.ObjectURI)
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Error("timestamps not recorded")
	}

	if err := q.Stop(context.Background()); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestQueue_RetriesThenFails(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, 1, store, zerolog.Nop())
	q.backoff = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	_ = q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("upload failed")
	})

	job := &jobs.ExportReportJob{Owner: "u1", MaxRetries: 2}
	if err := q.PublishExportReport(ctx, job); err != nil {
		t.Fatal(err)
	}

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if failed.RetryCount != 2 || failed.Error != "upload failed" {
		t.Errorf("unexpected job: %+v", failed)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("handler called %d times, want 3", got)
	}
	_ = q.Close()
}

func TestQueue_RecoversFromPanic(t *testing.T) {
	store := NewStore()
	q := NewQueue(1, 1, store, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		panic("bad template")
	})

	job := &jobs.ExportReportJob{Owner: "u1", MaxRetries: -1}
	_ = q.PublishExportReport(ctx, job)

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if failed.Error == "" {
		t.Error("panic should be recorded as the job error")
	}
	_ = q.Close()
}

func TestQueue_ClosedRejectsWork(t *testing.T) {
	q := NewQueue(1, 1, nil, zerolog.Nop())
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}
	if err := q.PublishExportReport(context.Background(), &jobs.ExportReportJob{}); err == nil {
		t.Error("expected error publishing to a closed queue")
	}
	if err := q.Start(context.Background(), nil); err == nil {
		t.Error("expected error starting a closed queue")
	}
}
