package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/warpdl/warpbroker/internal/events"
	"github.com/warpdl/warpbroker/internal/model"
)

func TestAddDownload_AssignsDestinationAndPublishesCreated(t *testing.T) {
	rig := newTestRig(t.TempDir(), false)
	ch, unsub := rig.drainEvents()
	defer unsub()

	task, err := rig.orch.AddDownload(context.Background(), SubmitRequest{
		URL:      "https://host.example/share/abc",
		Filename: "movie.1080p.mkv",
		Host:     "host-a",
		Category: "movie",
	})
	if err != nil {
		t.Fatalf("AddDownload: %v", err)
	}
	if task.Destination == "" {
		t.Fatal("expected a non-empty destination path")
	}
	if task.State != model.Queued {
		t.Fatalf("State = %v, want Queued", task.State)
	}

	select {
	case ev := <-ch:
		if ev.Kind != events.Created {
			t.Fatalf("event Kind = %v, want Created", ev.Kind)
		}
	default:
		t.Fatal("expected a Created event to be published synchronously")
	}
}

func TestAddDownload_DuplicateHostFileCodeReturnsExisting(t *testing.T) {
	rig := newTestRig(t.TempDir(), false)
	req := SubmitRequest{
		URL:          "https://host.example/share/abc",
		Filename:     "movie.mkv",
		Host:         "host-a",
		HostFileCode: "code-1",
		Category:     "movie",
	}

	first, err := rig.orch.AddDownload(context.Background(), req)
	if err != nil {
		t.Fatalf("first AddDownload: %v", err)
	}

	second, err := rig.orch.AddDownload(context.Background(), req)
	if err != nil {
		t.Fatalf("second AddDownload: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected duplicate submission to return the existing task, got a new ID")
	}
	if rig.tasks.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", rig.tasks.Count())
	}
}

func TestAddDownload_ResubmitAfterFailureReplacesTask(t *testing.T) {
	rig := newTestRig(t.TempDir(), false)
	req := SubmitRequest{
		URL:          "https://host.example/share/abc",
		Filename:     "movie.mkv",
		Host:         "host-a",
		HostFileCode: "code-1",
		Category:     "movie",
	}

	first, err := rig.orch.AddDownload(context.Background(), req)
	if err != nil {
		t.Fatalf("first AddDownload: %v", err)
	}
	rig.tasks.MarkFailed(first.ID, "boom")

	second, err := rig.orch.AddDownload(context.Background(), req)
	if err != nil {
		t.Fatalf("second AddDownload: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("expected a resubmission of a failed task to produce a fresh ID")
	}
	if got := rig.tasks.Get(first.ID); got != nil {
		t.Fatal("expected the stale failed task to be removed")
	}
}

func TestAddDownload_DuplicateKnownOnlyToDatabaseReturnsExisting(t *testing.T) {
	rig := newTestRig(t.TempDir(), false)
	existing := model.New("https://host.example/share/abc", "movie.mkv", "host-a", "movie")
	existing.HostFileCode = "code-1"
	if err := rig.db.UpsertTask(existing); err != nil {
		t.Fatalf("seed db task: %v", err)
	}

	got, err := rig.orch.AddDownload(context.Background(), SubmitRequest{
		URL:          "https://host.example/share/abc",
		Filename:     "movie.mkv",
		Host:         "host-a",
		HostFileCode: "code-1",
		Category:     "movie",
	})
	if err != nil {
		t.Fatalf("AddDownload: %v", err)
	}
	if got.ID != existing.ID {
		t.Fatalf("expected the database-only duplicate to be returned, got a new ID")
	}
	if rig.tasks.Count() != 0 {
		t.Fatalf("Count() = %d, want 0: a kept duplicate should not be added to the in-memory store", rig.tasks.Count())
	}
}

func TestAddDownload_TriggersArrReconciliationOncePerBatch(t *testing.T) {
	rig := newTestRig(t.TempDir(), true)
	rig.arr.ensureStatus.Kind = "created"
	rig.arr.ensureStatus.ArrID = 42

	mediaRef := &model.MediaRef{ExternalID: 7, Season: 1, Episode: 1}

	_, err := rig.orch.AddDownload(context.Background(), SubmitRequest{
		URL: "https://host.example/e1", Filename: "s01e01.mkv", Host: "host-a",
		Category: "tv", MediaRef: mediaRef, BatchID: "batch-1",
	})
	if err != nil {
		t.Fatalf("AddDownload ep1: %v", err)
	}
	_, err = rig.orch.AddDownload(context.Background(), SubmitRequest{
		URL: "https://host.example/e2", Filename: "s01e02.mkv", Host: "host-a",
		Category: "tv", MediaRef: &model.MediaRef{ExternalID: 7, Season: 1, Episode: 2}, BatchID: "batch-1",
	})
	if err != nil {
		t.Fatalf("AddDownload ep2: %v", err)
	}

	ok := waitFor(t, 500*time.Millisecond, func() bool {
		task := rig.tasks.All()
		for _, tk := range task {
			if tk.ArrSeriesID != nil && *tk.ArrSeriesID == 42 {
				return true
			}
		}
		return false
	})
	if !ok {
		t.Fatal("expected at least one task in the batch to be stamped with the arr series id")
	}
	rig.arr.mu.Lock()
	ensureCalls := rig.arr.ensureCalls
	rig.arr.mu.Unlock()
	if ensureCalls != 1 {
		t.Fatalf("Ensure called %d times for one batch, want 1", ensureCalls)
	}
}
