// Package orchestrator owns the download lifecycle: a pool of workers claims
// queued tasks from the in-memory task store, resolves each one's share URL
// against the host registry, drives the transfer, reacts to success or
// failure, and reconciles completed media against the configured arr pair.
// It is the one component that touches every other package in the broker.
package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warpdl/warpbroker/internal/arr"
	"github.com/warpdl/warpbroker/internal/config"
	"github.com/warpdl/warpbroker/internal/events"
	"github.com/warpdl/warpbroker/internal/host"
	"github.com/warpdl/warpbroker/internal/model"
	"github.com/warpdl/warpbroker/internal/scheduler"
	"github.com/warpdl/warpbroker/internal/taskstore"
	"github.com/warpdl/warpbroker/internal/transfer"
	"github.com/warpdl/warpbroker/pkg/logger"
	"github.com/warpdl/warpbroker/pkg/warplib"
)

// TaskDB is the subset of internal/store the orchestrator needs for
// durability. A narrow interface, not the concrete *store.Store, so tests
// can swap in a fake without a real database.
type TaskDB interface {
	UpsertTask(t *model.Task) error
	DeleteTask(id string) error
	TasksByStates(states []model.State) ([]*model.Task, error)
	BatchUpdateStates(ids []string, state model.State) (int64, error)
	TaskByHostFileCode(host, hostFileCode string) (*model.Task, error)
}

// ArrManager is the subset of internal/arr.Manager the orchestrator depends
// on. Nilable: a broker with no arr pair configured still downloads files,
// it just never relocates or registers them.
type ArrManager interface {
	Ensure(ctx context.Context, task *model.Task) arr.Status
	LookupSeriesID(ctx context.Context, externalID int64) (int64, bool, error)
	LookupMovieID(ctx context.Context, externalID int64) (int64, bool, error)
	SeriesPath(ctx context.Context, arrSeriesID int64) (string, error)
	MoviePath(ctx context.Context, arrMovieID int64) (string, error)
	NotifyCompletion(ctx context.Context, task *model.Task, folderPath string) error
}

// Dependencies are the collaborators an Orchestrator is wired with. The
// scheduler is not among them: it is attached later with SetScheduler, since
// constructing a real Scheduler needs a trigger callback that closes over the
// Orchestrator itself.
type Dependencies struct {
	Tasks    *taskstore.Store
	DB       TaskDB
	Hosts    *host.Registry
	Transfer *transfer.Engine
	Arr      ArrManager
	Bus      *events.Bus
	Log      logger.Logger
}

// Orchestrator runs the worker pool that turns queued tasks into completed
// downloads.
type Orchestrator struct {
	tasks    *taskstore.Store
	db       TaskDB
	hosts    *host.Registry
	transfer *transfer.Engine
	arr      ArrManager
	bus      *events.Bus
	sched    *scheduler.Scheduler
	log      logger.Logger

	cfgMu sync.RWMutex
	cfg   config.Config

	running atomic.Bool
	wg      sync.WaitGroup
	notify  *notifier

	workersMu      sync.Mutex
	startedWorkers int

	announcedBatches warplib.VMap[string, bool]
}

// New builds an Orchestrator. Call Start to restore persisted state and
// spin up its worker pool.
func New(cfg config.Config, deps Dependencies) *Orchestrator {
	log := deps.Log
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Orchestrator{
		tasks:            deps.Tasks,
		db:               deps.DB,
		hosts:            deps.Hosts,
		transfer:         deps.Transfer,
		arr:              deps.Arr,
		bus:              deps.Bus,
		log:              log,
		cfg:              cfg,
		notify:           newNotifier(),
		announcedBatches: warplib.NewVMap[string, bool](),
	}
}

// SetScheduler attaches the retry-wake scheduler. Separate from
// Dependencies because the scheduler's trigger callback is naturally
// `func(string) { orch.WakeWorkers() }`, which needs orch to already exist.
func (o *Orchestrator) SetScheduler(s *scheduler.Scheduler) {
	o.sched = s
}

// WakeWorkers broadcasts to every idle worker, prompting an immediate
// re-claim attempt instead of waiting out its poll interval. Exported for
// the scheduler's trigger callback and for control operations (resume,
// retry) that just made a task claimable again.
func (o *Orchestrator) WakeWorkers() {
	o.notify.notifyAll()
}

// Start restores tasks from the database and launches the configured number
// of worker goroutines. Safe to call once; a second call is a no-op.
func (o *Orchestrator) Start(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return nil
	}
	if err := o.restoreFromDB(ctx); err != nil {
		o.log.Error("restore tasks from database: %v", err)
	}

	o.workersMu.Lock()
	max := o.currentMaxConcurrent()
	for o.startedWorkers < max {
		o.spawnWorkerLocked(ctx)
	}
	o.workersMu.Unlock()
	return nil
}

// Stop signals every worker to exit its claim loop and waits for them to
// drain. In-flight transfers are left to finish naturally; Stop does not
// cancel them.
func (o *Orchestrator) Stop() {
	if !o.running.CompareAndSwap(true, false) {
		return
	}
	o.notify.notifyAll()
	o.wg.Wait()
}

// spawnWorkerLocked starts one more worker goroutine, assigning it the next
// sequential ID. Callers must hold workersMu.
func (o *Orchestrator) spawnWorkerLocked(ctx context.Context) {
	id := o.startedWorkers
	o.startedWorkers++
	o.wg.Add(1)
	go o.runWorker(ctx, id)
}

// currentMaxConcurrent reads the live worker pool ceiling, defaulting to one
// so a misconfigured zero never wedges the pool entirely.
func (o *Orchestrator) currentMaxConcurrent() int {
	o.cfgMu.RLock()
	defer o.cfgMu.RUnlock()
	if o.cfg.Downloads.MaxConcurrent < 1 {
		return 1
	}
	return o.cfg.Downloads.MaxConcurrent
}

// runWorker is the claim loop: each worker self-throttles against the live
// concurrency ceiling by comparing its own fixed ID against it, rather than
// the pool killing or parking goroutines directly. Shrinking the pool is
// achieved purely by idling the workers whose ID now exceeds the ceiling;
// growing it spawns new goroutines for the newly available IDs.
func (o *Orchestrator) runWorker(ctx context.Context, workerID int) {
	defer o.wg.Done()
	for o.running.Load() {
		if workerID >= o.currentMaxConcurrent() {
			select {
			case <-time.After(500 * time.Millisecond):
			case <-ctx.Done():
				return
			}
			continue
		}

		task := o.tasks.Claim()
		if task == nil {
			select {
			case <-o.notify.wait():
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		o.processTask(ctx, task)
	}
}

// Config returns the orchestrator's current configuration snapshot.
func (o *Orchestrator) Config() config.Config {
	o.cfgMu.RLock()
	defer o.cfgMu.RUnlock()
	return o.cfg
}

// UpdateConfig swaps in a new configuration. If the worker pool ceiling
// grew, it spawns the additional workers immediately; if it shrank, the
// excess workers simply idle themselves on their next loop iteration.
func (o *Orchestrator) UpdateConfig(ctx context.Context, cfg config.Config) {
	o.cfgMu.Lock()
	previous := o.cfg.Downloads.MaxConcurrent
	o.cfg = cfg
	o.cfgMu.Unlock()

	next := cfg.Downloads.MaxConcurrent
	if next < 1 {
		next = 1
	}
	if previous < 1 {
		previous = 1
	}
	if next <= previous || !o.running.Load() {
		return
	}

	o.workersMu.Lock()
	for o.startedWorkers < next {
		o.spawnWorkerLocked(ctx)
	}
	o.workersMu.Unlock()
	o.notify.notifyAll()
}

// Stats reports a point-in-time snapshot of task counts by bucket.
func (o *Orchestrator) Stats() taskstore.Stats {
	return o.tasks.Stats()
}

// persist writes task's current state to the database, logging rather than
// propagating a failure: a transient write error here must not abort an
// otherwise-successful transfer.
func (o *Orchestrator) persist(task *model.Task) {
	if o.db == nil {
		return
	}
	if err := o.db.UpsertTask(task); err != nil {
		o.log.Error("persist task %s: %v", task.ID, err)
	}
}

func (o *Orchestrator) publishState(task *model.Task, next model.State, reason string) {
	o.bus.Publish(events.Event{Kind: events.StateChanged, Task: *task, NewState: next, Reason: reason})
}

func (o *Orchestrator) publishFailed(task *model.Task, reason string) {
	o.bus.Publish(events.Event{Kind: events.Failed, Task: *task, NewState: model.Failed, Reason: reason})
}
