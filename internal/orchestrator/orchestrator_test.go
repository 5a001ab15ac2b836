package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/warpdl/warpbroker/internal/arr"
	"github.com/warpdl/warpbroker/internal/config"
	"github.com/warpdl/warpbroker/internal/events"
	"github.com/warpdl/warpbroker/internal/host"
	"github.com/warpdl/warpbroker/internal/model"
	"github.com/warpdl/warpbroker/internal/taskstore"
	"github.com/warpdl/warpbroker/internal/transfer"
)

var errFakeTaskNotFound = errors.New("fake task db: not found")

// fakeTaskDB is an in-memory stand-in for the persistence store, enough to
// exercise restore, batch pause/resume and delete without a real database.
type fakeTaskDB struct {
	mu    sync.Mutex
	tasks map[string]*model.Task
}

func newFakeTaskDB() *fakeTaskDB {
	return &fakeTaskDB{tasks: make(map[string]*model.Task)}
}

func (f *fakeTaskDB) UpsertTask(t *model.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.tasks[t.ID] = &cp
	return nil
}

func (f *fakeTaskDB) DeleteTask(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tasks, id)
	return nil
}

func (f *fakeTaskDB) TasksByStates(states []model.State) ([]*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := make(map[model.State]bool, len(states))
	for _, s := range states {
		want[s] = true
	}
	var out []*model.Task
	for _, t := range f.tasks {
		if want[t.State] {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeTaskDB) BatchUpdateStates(ids []string, state model.State) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, id := range ids {
		if t, ok := f.tasks[id]; ok {
			t.State = state
			n++
		}
	}
	return n, nil
}

func (f *fakeTaskDB) TaskByHostFileCode(host, hostFileCode string) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.Host == host && t.HostFileCode == hostFileCode {
			cp := *t
			return &cp, nil
		}
	}
	return nil, errFakeTaskNotFound
}

// fakeArrManager is a fully scripted ArrManager double: every method's
// return value is set directly by the test, and calls are counted so tests
// can assert a reconciliation path was (or wasn't) taken.
type fakeArrManager struct {
	mu sync.Mutex

	ensureStatus  arr.Status
	seriesID      int64
	seriesOK      bool
	seriesErr     error
	movieID       int64
	movieOK       bool
	movieErr      error
	seriesPath    string
	seriesPathErr error
	moviePath     string
	moviePathErr  error
	notifyErr     error

	notifyCalls int
	ensureCalls int
}

func (f *fakeArrManager) Ensure(ctx context.Context, task *model.Task) arr.Status {
	f.mu.Lock()
	f.ensureCalls++
	f.mu.Unlock()
	return f.ensureStatus
}

func (f *fakeArrManager) LookupSeriesID(ctx context.Context, externalID int64) (int64, bool, error) {
	return f.seriesID, f.seriesOK, f.seriesErr
}

func (f *fakeArrManager) LookupMovieID(ctx context.Context, externalID int64) (int64, bool, error) {
	return f.movieID, f.movieOK, f.movieErr
}

func (f *fakeArrManager) SeriesPath(ctx context.Context, arrSeriesID int64) (string, error) {
	return f.seriesPath, f.seriesPathErr
}

func (f *fakeArrManager) MoviePath(ctx context.Context, arrMovieID int64) (string, error) {
	return f.moviePath, f.moviePathErr
}

func (f *fakeArrManager) NotifyCompletion(ctx context.Context, task *model.Task, folderPath string) error {
	f.mu.Lock()
	f.notifyCalls++
	f.mu.Unlock()
	return f.notifyErr
}

// fakeHostClient is a scripted host.Client double. resolveErr/resolveURL let
// a test drive processTask down the resolve-failure or the happy path
// without a real host API.
type fakeHostClient struct {
	handles      func(string) bool
	fileInfo     host.FileInfo
	fileInfoErr  error
	resolved     host.ResolvedURL
	resolveErr   error
	resolveCalls int
	mu           sync.Mutex
}

func (f *fakeHostClient) CanHandle(shareURL string) bool {
	if f.handles != nil {
		return f.handles(shareURL)
	}
	return true
}

func (f *fakeHostClient) GetFileInfo(ctx context.Context, shareURL string) (host.FileInfo, error) {
	return f.fileInfo, f.fileInfoErr
}

func (f *fakeHostClient) ResolveDownloadURL(ctx context.Context, shareURL string) (host.ResolvedURL, error) {
	f.mu.Lock()
	f.resolveCalls++
	f.mu.Unlock()
	return f.resolved, f.resolveErr
}

func (f *fakeHostClient) ValidateDownloadURL(ctx context.Context, directURL string) bool { return true }

func (f *fakeHostClient) RefreshDownloadURL(ctx context.Context, originalURL string) (host.ResolvedURL, error) {
	return f.resolved, f.resolveErr
}

func (f *fakeHostClient) CheckAccountStatus(ctx context.Context) (host.AccountStatus, error) {
	return host.AccountStatus{}, nil
}

func (f *fakeHostClient) Logout(ctx context.Context) error { return nil }

func (f *fakeHostClient) SupportsResume() bool { return true }

func (f *fakeHostClient) MaxSegments() int { return 1 }

// testRig bundles a freshly built Orchestrator with handles on its fakes,
// wired the way app.New wires the real thing but without starting workers
// (tests call processTask/AddDownload directly to stay deterministic).
type testRig struct {
	orch  *Orchestrator
	db    *fakeTaskDB
	arr   *fakeArrManager
	host  *fakeHostClient
	bus   *events.Bus
	tasks *taskstore.Store
}

func newTestRig(dir string, withArr bool) *testRig {
	db := newFakeTaskDB()
	fh := &fakeHostClient{}
	hosts := host.NewRegistry(fh)
	tasks := taskstore.New()
	bus := events.NewBus(32)

	var arrDep ArrManager
	var fam *fakeArrManager
	if withArr {
		fam = &fakeArrManager{}
		arrDep = fam
	}

	cfg := config.Config{
		Downloads: config.DownloadsConfig{Directory: dir, MaxConcurrent: 1},
		Retry:     config.DefaultRetryConfig(),
	}
	orch := New(cfg, Dependencies{
		Tasks:    tasks,
		DB:       db,
		Hosts:    hosts,
		Transfer: transfer.New(),
		Arr:      arrDep,
		Bus:      bus,
	})

	return &testRig{orch: orch, db: db, arr: fam, host: fh, bus: bus, tasks: tasks}
}

// drainEvents subscribes and returns a channel plus unsubscribe func, used
// by tests that assert on a specific published event.
func (r *testRig) drainEvents() (<-chan events.Event, func()) {
	return r.bus.Subscribe()
}

func waitFor(t interface{ Errorf(string, ...any) }, deadline time.Duration, cond func() bool) bool {
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}
