package app

import (
	"context"
	"testing"
	"time"

	"github.com/warpdl/warpbroker/internal/config"
	"github.com/warpdl/warpbroker/internal/orchestrator"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Downloads.Directory = t.TempDir()
	a, err := New(Options{Config: cfg, DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown() })
	return a
}

func TestNew_WiresEveryComponent(t *testing.T) {
	a := newTestApp(t)
	if a.Store == nil || a.Hosts == nil || a.Tasks == nil || a.Bus == nil || a.Orchestrator == nil || a.Push == nil {
		t.Fatal("expected every component to be wired")
	}
}

func TestStart_RunsWorkersAgainstSubmittedTask(t *testing.T) {
	a := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	task, err := a.Orchestrator.AddDownload(ctx, orchestrator.SubmitRequest{
		URL:      "https://example.invalid/file",
		Host:     "host-a",
		Category: "movie",
	})
	if err != nil {
		t.Fatalf("AddDownload: %v", err)
	}
	if task.State == "" {
		t.Fatal("expected a task with a state assigned")
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if got := a.Tasks.Get(task.ID); got != nil && got.State != task.State {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected worker to advance task %s out of %s within 5s", task.ID, task.State)
}
