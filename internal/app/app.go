// Package app wires every broker component into a single running process:
// the persistent store, the host client registry, the in-memory task
// store, the orchestrator's worker pool, the event bus, and the push
// endpoint. Nothing outside this package touches package-level globals;
// every collaborator is constructed once here and threaded through by
// value or pointer.
package app

import (
	"context"
	"fmt"

	"github.com/warpdl/warpbroker/internal/arr"
	"github.com/warpdl/warpbroker/internal/config"
	"github.com/warpdl/warpbroker/internal/events"
	"github.com/warpdl/warpbroker/internal/host"
	"github.com/warpdl/warpbroker/internal/orchestrator"
	"github.com/warpdl/warpbroker/internal/push"
	"github.com/warpdl/warpbroker/internal/scheduler"
	"github.com/warpdl/warpbroker/internal/store"
	"github.com/warpdl/warpbroker/internal/taskstore"
	"github.com/warpdl/warpbroker/internal/transfer"
	"github.com/warpdl/warpbroker/pkg/logger"
)

// App owns every long-lived broker component for one process lifetime.
type App struct {
	Config *config.Config
	Log    logger.Logger

	Store        *store.Store
	Hosts        *host.Registry
	Tasks        *taskstore.Store
	Bus          *events.Bus
	Orchestrator *orchestrator.Orchestrator
	Push         *push.Hub

	sched *scheduler.Scheduler
}

// Options configures New beyond the plain Config: the sqlite file path and
// any extra host clients to register alongside the one built from
// cfg.Host. Extra clients exist for tests that want a fake host without a
// real HTTP round trip.
type Options struct {
	Config     *config.Config
	Log        logger.Logger
	DBPath     string
	ExtraHosts []host.Client
}

// New opens the store, builds every component, and wires the orchestrator
// against them, but does not start the worker pool or serve any
// connections. Call Start for that.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	log := opts.Log
	if log == nil {
		log = logger.NewNopLogger()
	}

	db, err := store.Open(opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var clients []host.Client
	if cfg.Host.Email != "" {
		clients = append(clients, host.NewHTTPClient(host.Config{
			Email:              cfg.Host.Email,
			Password:           cfg.Host.Password,
			PreferSecondaryAPI: cfg.Host.PreferSecondaryAPI,
		}, db))
	}
	clients = append(clients, opts.ExtraHosts...)
	hosts := host.NewRegistry(clients...)
	tasks := taskstore.New()
	bus := events.NewBus(64)
	xfer := transfer.New()

	var arrManager *arr.Manager
	if cfg.Series.Enabled || cfg.Movies.Enabled {
		seriesClient := arr.NewClient(cfg.Series)
		movieClient := arr.NewClient(cfg.Movies)
		arrManager = arr.NewManager(seriesClient, movieClient, db)
	}

	orch := orchestrator.New(*cfg, orchestrator.Dependencies{
		Tasks:    tasks,
		DB:       db,
		Hosts:    hosts,
		Transfer: xfer,
		Arr:      arrManagerOrNil(arrManager),
		Bus:      bus,
		Log:      log,
	})

	pushHub := push.New(bus, tasks, log, cfg.Server.Host == "0.0.0.0")

	return &App{
		Config:       cfg,
		Log:          log,
		Store:        db,
		Hosts:        hosts,
		Tasks:        tasks,
		Bus:          bus,
		Orchestrator: orch,
		Push:         pushHub,
	}, nil
}

// arrManagerOrNil returns a nil orchestrator.ArrManager interface value
// (not a non-nil interface wrapping a nil *arr.Manager) when no arr pair is
// configured, so the orchestrator's own `o.arr == nil` checks work.
func arrManagerOrNil(m *arr.Manager) orchestrator.ArrManager {
	if m == nil {
		return nil
	}
	return m
}

// Start wires the scheduler's trigger callback to the already-constructed
// Orchestrator (resolving the circular dependency between the two),
// attaches it, and starts the worker pool.
func (a *App) Start(ctx context.Context) error {
	a.sched = scheduler.New(ctx, func(string) { a.Orchestrator.WakeWorkers() })
	a.Orchestrator.SetScheduler(a.sched)
	return a.Orchestrator.Start(ctx)
}

// Shutdown stops the worker pool and closes the database, matching the
// daemon runner's ShutdownFunc contract.
func (a *App) Shutdown() error {
	a.Orchestrator.Stop()
	return a.Store.Close()
}
