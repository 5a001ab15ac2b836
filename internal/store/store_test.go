package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/warpdl/warpbroker/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "broker.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTask(id string) *model.Task {
	return &model.Task{
		ID:          id,
		OriginalURL: "https://host.example/file/AAA111",
		Filename:    "movie.mkv",
		Destination: "/downloads/movie.mkv",
		State:       model.Queued,
		Host:        "fshare",
		Category:    "movie",
		CreatedAt:   time.Now().Truncate(time.Second),
	}
}

func TestUpsertAndGetTask(t *testing.T) {
	s := newTestStore(t)
	task := sampleTask("task-1")

	if err := s.UpsertTask(task); err != nil {
		t.Fatalf("UpsertTask() error = %v", err)
	}

	got, err := s.GetTask("task-1")
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if got.OriginalURL != task.OriginalURL || got.Filename != task.Filename {
		t.Errorf("got %+v, want matching fields from %+v", got, task)
	}
}

func TestGetTask_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetTask("missing"); err != ErrNotFound {
		t.Errorf("GetTask(missing) err = %v, want ErrNotFound", err)
	}
}

func TestDeleteTask_ThenGetReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	task := sampleTask("task-1")
	if err := s.UpsertTask(task); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteTask("task-1"); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if _, err := s.GetTask("task-1"); err != ErrNotFound {
		t.Errorf("GetTask after delete err = %v, want ErrNotFound", err)
	}
}

func TestBatchUpdateStates(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"a", "b", "c"} {
		if err := s.UpsertTask(sampleTask(id)); err != nil {
			t.Fatal(err)
		}
	}

	affected, err := s.BatchUpdateStates([]string{"a", "b"}, model.Paused)
	if err != nil {
		t.Fatalf("BatchUpdateStates() error = %v", err)
	}
	if affected != 2 {
		t.Errorf("affected = %d, want 2", affected)
	}

	got, _ := s.GetTask("c")
	if got.State != model.Queued {
		t.Errorf("untouched task state = %v, want Queued", got.State)
	}
}

func TestListTasksPaginated_NeverSplitsABatch(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		task := sampleTask(string(rune('a' + i)))
		task.BatchID = "batch-1"
		if err := s.UpsertTask(task); err != nil {
			t.Fatal(err)
		}
	}
	solo := sampleTask("solo")
	if err := s.UpsertTask(solo); err != nil {
		t.Fatal(err)
	}

	page, err := s.ListTasksPaginated(1, 1)
	if err != nil {
		t.Fatalf("ListTasksPaginated() error = %v", err)
	}

	batchCount := 0
	for _, task := range page.Tasks {
		if task.BatchID == "batch-1" {
			batchCount++
		}
	}
	if batchCount != 0 && batchCount != 3 {
		t.Errorf("page contains %d of 3 batch-1 rows, want 0 or 3", batchCount)
	}
	if page.Total != 4 {
		t.Errorf("Total = %d, want 4 (pre-expansion count)", page.Total)
	}
}

func TestBatchSummaries_AggregateState(t *testing.T) {
	s := newTestStore(t)
	completed := sampleTask("done")
	completed.BatchID = "b1"
	completed.State = model.Completed
	inProgress := sampleTask("active")
	inProgress.BatchID = "b1"
	inProgress.State = model.Downloading

	if err := s.UpsertTask(completed); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertTask(inProgress); err != nil {
		t.Fatal(err)
	}

	summaries, err := s.BatchSummaries()
	if err != nil {
		t.Fatalf("BatchSummaries() error = %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("got %d summaries, want 1", len(summaries))
	}
	if summaries[0].AggregateState != model.Downloading {
		t.Errorf("AggregateState = %v, want Downloading (any in-flight task dominates)", summaries[0].AggregateState)
	}
}

func TestUpsertMediaItem_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	item := &model.MediaItem{
		ExternalID: 603,
		Kind:       model.KindMovie,
		Title:      "The Matrix",
		Year:       1999,
	}
	if err := s.UpsertMediaItem(item); err != nil {
		t.Fatalf("UpsertMediaItem() error = %v", err)
	}

	got, err := s.GetMediaItem(603)
	if err != nil {
		t.Fatalf("GetMediaItem() error = %v", err)
	}
	if got.Title != "The Matrix" || got.Year != 1999 {
		t.Errorf("got %+v, want Title=The Matrix Year=1999", got)
	}
}

func TestSaveAndGetSetting(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveSetting("onboarding_complete", "true"); err != nil {
		t.Fatalf("SaveSetting() error = %v", err)
	}
	got, err := s.GetSetting("onboarding_complete")
	if err != nil || got != "true" {
		t.Errorf("GetSetting() = %q, %v, want true, nil", got, err)
	}
}
