package core

import (
	"sync"
	"testing"
)

func TestImportJob_RecordErrorCap(t *testing.T) {
	job := &ImportJob{}
	for i := 0; i < ErrorCap+25; i++ {
		job.RecordError(RowError{Row: i + 1, Kind: KindValidation, Message: "bad"})
	}

	if len(job.Errors) != ErrorCap {
		t.Errorf("len(Errors) = %d, want %d", len(job.Errors), ErrorCap)
	}
	if job.ErrorCount != ErrorCap+25 {
		t.Errorf("ErrorCount = %d, want %d", job.ErrorCount, ErrorCap+25)
	}
}

func TestImportJob_SnapshotIsACopy(t *testing.T) {
	job := &ImportJob{ID: "j", Status: StatusExecuting, Processed: 5}
	job.RecordError(RowError{Row: 1, Kind: KindValidation, Message: "bad"})

	snap := job.Snapshot()
	snap.Errors[0].Message = "mutated"
	snap.Processed = 99

	if job.Errors[0].Message != "bad" {
		t.Error("mutating the snapshot leaked into the job")
	}
	if job.Processed != 5 {
		t.Error("mutating the snapshot leaked into the job counters")
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	terminal := []JobStatus{StatusCompleted, StatusFailed, StatusCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s.Terminal() = false, want true", s)
		}
	}

	running := []JobStatus{StatusPending, StatusParsing, StatusMapping, StatusPreview, StatusExecuting}
	for _, s := range running {
		if s.Terminal() {
			t.Errorf("%s.Terminal() = true, want false", s)
		}
	}
}

func TestExecContext_CancelIsSticky(t *testing.T) {
	exec := &ExecContext{JobID: "j"}
	if exec.Cancelled() {
		t.Fatal("fresh context already cancelled")
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			exec.Cancel()
		}()
	}
	wg.Wait()

	if !exec.Cancelled() {
		t.Error("Cancelled() = false after Cancel()")
	}
}
