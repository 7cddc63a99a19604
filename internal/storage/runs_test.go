package storage

import (
	"testing"
	"time"
)

func createTestRun(t *testing.T, s *Store, id, tenderID string) {
	t.Helper()
	err := s.CreateRun(Run{
		ID:        id,
		TenderID:  tenderID,
		Pipeline:  "standard",
		Status:    RunPending,
		StartedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateRun(%s): %v", id, err)
	}
}

func TestCreateRunRejectsConcurrent(t *testing.T) {
	s := openTestStore(t)
	saveTestTender(t, s, "t-1")
	createTestRun(t, s, "r-1", "t-1")

	err := s.CreateRun(Run{
		ID: "r-2", TenderID: "t-1", Pipeline: "standard",
		Status: RunPending, StartedAt: time.Now().UTC(),
	})
	if err != ErrRunActive {
		t.Errorf("second CreateRun = %v, want ErrRunActive", err)
	}

	// Finishing the first run frees the tender for another.
	if err := s.UpdateRunStatus("r-1", RunFailed, "boom"); err != nil {
		t.Fatalf("UpdateRunStatus: %v", err)
	}
	createTestRun(t, s, "r-2", "t-1")
}

func TestUpdateRunStatusTerminalIsFinal(t *testing.T) {
	s := openTestStore(t)
	saveTestTender(t, s, "t-1")
	createTestRun(t, s, "r-1", "t-1")

	if err := s.UpdateRunStatus("r-1", RunRunning, ""); err != nil {
		t.Fatalf("to running: %v", err)
	}
	if err := s.UpdateRunStatus("r-1", RunCompleted, ""); err != nil {
		t.Fatalf("to completed: %v", err)
	}

	run, err := s.GetRun("r-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.FinishedAt == nil {
		t.Error("FinishedAt not set on terminal status")
	}

	// A terminal run never transitions again.
	if err := s.UpdateRunStatus("r-1", RunFailed, "late failure"); err != ErrNotFound {
		t.Errorf("update after terminal = %v, want ErrNotFound", err)
	}
	run, err = s.GetRun("r-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != RunCompleted {
		t.Errorf("status = %q, want completed", run.Status)
	}
}

func TestRunLogsOrdered(t *testing.T) {
	s := openTestStore(t)
	saveTestTender(t, s, "t-1")
	createTestRun(t, s, "r-1", "t-1")

	now := time.Now().UTC()
	for _, msg := range []string{"first", "second", "third"} {
		err := s.AppendRunLog("r-1", RunLog{At: now, Level: "info", StepID: "prepare", Message: msg})
		if err != nil {
			t.Fatalf("AppendRunLog(%s): %v", msg, err)
		}
	}

	run, err := s.GetRun("r-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if len(run.Logs) != 3 {
		t.Fatalf("len(logs) = %d, want 3", len(run.Logs))
	}
	for i, want := range []string{"first", "second", "third"} {
		if run.Logs[i].Message != want {
			t.Errorf("log[%d] = %q, want %q", i, run.Logs[i].Message, want)
		}
		if run.Logs[i].Seq != i+1 {
			t.Errorf("log[%d] seq = %d, want %d", i, run.Logs[i].Seq, i+1)
		}
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	saveTestTender(t, s, "t-1")

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"r-1", "r-2"} {
		err := s.CreateRun(Run{
			ID: id, TenderID: "t-1", Pipeline: "standard",
			Status: RunPending, StartedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("CreateRun(%s): %v", id, err)
		}
		if err := s.UpdateRunStatus(id, RunCompleted, ""); err != nil {
			t.Fatalf("UpdateRunStatus(%s): %v", id, err)
		}
	}

	runs, err := s.ListRuns("t-1", 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len = %d, want 2", len(runs))
	}
	if runs[0].ID != "r-2" || runs[1].ID != "r-1" {
		t.Errorf("runs out of order: %s, %s", runs[0].ID, runs[1].ID)
	}
	if len(runs[0].Logs) != 0 {
		t.Errorf("list loaded logs: %+v", runs[0].Logs)
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.GetRun("missing"); err != ErrNotFound {
		t.Errorf("GetRun(missing) = %v, want ErrNotFound", err)
	}
}
