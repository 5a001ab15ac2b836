package taskstore

import (
	"testing"
	"time"

	"github.com/warpdl/warpbroker/internal/model"
)

func newQueuedTask(id string, priority int, size, downloaded int64, createdAt time.Time) *model.Task {
	return &model.Task{
		ID:         id,
		State:      model.Queued,
		Priority:   priority,
		Size:       size,
		Downloaded: downloaded,
		CreatedAt:  createdAt,
	}
}

func TestClaim_PriorityWins(t *testing.T) {
	s := New()
	base := time.Now()
	s.Add(newQueuedTask("low", 1, 100, 0, base))
	s.Add(newQueuedTask("high", 5, 100, 0, base))

	claimed := s.Claim()
	if claimed == nil || claimed.ID != "high" {
		t.Fatalf("expected high-priority task claimed, got %+v", claimed)
	}
	if claimed.State != model.Starting {
		t.Errorf("claimed task state = %v, want Starting", claimed.State)
	}
}

func TestClaim_TieBreaksOnRemainingBytesThenProgressThenAge(t *testing.T) {
	s := New()
	base := time.Now()
	s.Add(newQueuedTask("big-remaining", 1, 1000, 0, base))
	s.Add(newQueuedTask("small-remaining", 1, 100, 0, base.Add(time.Second)))

	claimed := s.Claim()
	if claimed.ID != "small-remaining" {
		t.Fatalf("expected smaller remaining bytes to win, got %s", claimed.ID)
	}

	// Equal remaining bytes: the higher progress wins.
	s = New()
	lowProgress := newQueuedTask("low-progress", 1, 100, 0, base)
	highProgress := newQueuedTask("high-progress", 1, 100, 0, base.Add(time.Second))
	highProgress.Progress = 50
	s.Add(lowProgress)
	s.Add(highProgress)
	claimed = s.Claim()
	if claimed == nil || claimed.ID != "high-progress" {
		t.Fatalf("expected higher progress to win, got %+v", claimed)
	}

	// Equal remaining bytes and progress: the older task wins.
	s = New()
	s.Add(newQueuedTask("newer", 1, 100, 0, base.Add(time.Second)))
	s.Add(newQueuedTask("older", 1, 100, 0, base))
	claimed = s.Claim()
	if claimed == nil || claimed.ID != "older" {
		t.Fatalf("expected the older task to win, got %+v", claimed)
	}
}

func TestClaim_WaitingTaskReadyTakesPriorityOverQueued(t *testing.T) {
	s := New()
	past := time.Now().Add(-time.Minute)
	waiting := &model.Task{ID: "w", State: model.Waiting, WaitUntil: &past}
	s.Add(waiting)
	s.Add(newQueuedTask("q", 10, 100, 0, time.Now()))

	claimed := s.Claim()
	if claimed.ID != "w" {
		t.Fatalf("expected ready waiting task to win, got %s", claimed.ID)
	}
	if claimed.WaitUntil != nil {
		t.Error("WaitUntil should be cleared on claim")
	}
}

func TestClaim_WaitingTaskNotYetReadyIsSkipped(t *testing.T) {
	s := New()
	future := time.Now().Add(time.Minute)
	s.Add(&model.Task{ID: "w", State: model.Waiting, WaitUntil: &future})
	s.Add(newQueuedTask("q", 0, 100, 0, time.Now()))

	claimed := s.Claim()
	if claimed == nil || claimed.ID != "q" {
		t.Fatalf("expected queued task to win since waiting task not ready, got %+v", claimed)
	}
}

func TestClaim_AlreadyProcessingIsExcluded(t *testing.T) {
	s := New()
	s.Add(newQueuedTask("q", 0, 100, 0, time.Now()))

	first := s.Claim()
	if first == nil {
		t.Fatal("expected first claim to succeed")
	}
	second := s.Claim()
	if second != nil {
		t.Fatalf("expected no second claim, got %+v", second)
	}
}

func TestClaim_NothingClaimableReturnsNil(t *testing.T) {
	s := New()
	if got := s.Claim(); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestPauseAll_NoNonTerminalStatesRemain(t *testing.T) {
	s := New()
	s.Add(newQueuedTask("a", 0, 100, 0, time.Now()))
	s.Add(&model.Task{ID: "b", State: model.Downloading})
	s.Add(&model.Task{ID: "c", State: model.Completed})

	count := s.PauseAll()
	if count != 2 {
		t.Errorf("PauseAll() = %d, want 2", count)
	}
	for _, st := range []model.State{model.Queued, model.Downloading, model.Starting, model.Waiting} {
		if len(s.ByState(st)) != 0 {
			t.Errorf("state %v still has tasks after PauseAll", st)
		}
	}
}

func TestResumeAll_EveryPausedBecomesQueued(t *testing.T) {
	s := New()
	s.Add(&model.Task{ID: "a", State: model.Paused})
	s.Add(&model.Task{ID: "b", State: model.Paused})
	s.Add(&model.Task{ID: "c", State: model.Completed})

	count := s.ResumeAll()
	if count != 2 {
		t.Errorf("ResumeAll() = %d, want 2", count)
	}
	if len(s.ByState(model.Paused)) != 0 {
		t.Error("expected no tasks remaining Paused")
	}
	if len(s.ByState(model.Queued)) != 2 {
		t.Error("expected both resumed tasks to be Queued")
	}
}

func TestRetry_IncrementsRetryCountAndClearsError(t *testing.T) {
	s := New()
	s.Add(&model.Task{ID: "a", State: model.Failed, RetryCount: 2, ErrorMessage: "boom"})

	got, err := s.Retry("a")
	if err != nil {
		t.Fatalf("expected retry to succeed from Failed, got error %v", err)
	}
	if got.RetryCount != 3 {
		t.Errorf("RetryCount = %d, want 3", got.RetryCount)
	}
	if got.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q, want empty", got.ErrorMessage)
	}
	if got.State != model.Queued {
		t.Errorf("State = %v, want Queued", got.State)
	}
}

func TestPause_NotFoundAndInvalidTransition(t *testing.T) {
	s := New()
	if _, err := s.Pause("missing"); err != ErrNotFound {
		t.Errorf("Pause(missing) err = %v, want ErrNotFound", err)
	}

	s.Add(&model.Task{ID: "done", State: model.Completed})
	if _, err := s.Pause("done"); err != ErrInvalidTransition {
		t.Errorf("Pause(done) err = %v, want ErrInvalidTransition", err)
	}
}

func TestDelete_RejectsActiveTask(t *testing.T) {
	s := New()
	s.Add(&model.Task{ID: "active", State: model.Downloading})

	if _, err := s.Delete("active"); err != ErrInvalidTransition {
		t.Errorf("Delete(active) err = %v, want ErrInvalidTransition", err)
	}

	s.Add(&model.Task{ID: "done", State: model.Completed})
	got, err := s.Delete("done")
	if err != nil || got.ID != "done" {
		t.Fatalf("Delete(done) = %+v, %v; want success", got, err)
	}
	if s.Get("done") != nil {
		t.Error("task should be gone after Delete")
	}
}

func TestUpdateProgress_AtomicSingleMutate(t *testing.T) {
	s := New()
	s.Add(&model.Task{ID: "a", State: model.Downloading})

	s.UpdateProgress("a", 50, 100, 1024, 30, 50.0)

	got := s.Get("a")
	if got.Downloaded != 50 || got.Size != 100 || got.Speed != 1024 || got.ETA != 30 || got.Progress != 50.0 {
		t.Errorf("progress fields not all updated: %+v", got)
	}
}
