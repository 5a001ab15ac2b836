package push

import (
	"context"
	"net/http"
	"time"

	cws "github.com/coder/websocket"
	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/dustin/go-humanize"

	"github.com/warpdl/warpbroker/internal/events"
	"github.com/warpdl/warpbroker/internal/model"
	"github.com/warpdl/warpbroker/internal/taskstore"
	"github.com/warpdl/warpbroker/pkg/logger"
)

// Notification method names, matching the wire discriminant the distilled
// protocol names SYNC_ALL/TASK_ADDED/TASK_UPDATED/TASK_REMOVED/ENGINE_STATS.
// jrpc2.Server.Notify's method argument carries the discriminant; its
// params argument carries the payload.
const (
	methodSyncAll     = "SYNC_ALL"
	methodTaskAdded   = "TASK_ADDED"
	methodTaskUpdated = "TASK_UPDATED"
	methodTaskRemoved = "TASK_REMOVED"
	methodEngineStats = "ENGINE_STATS"
	statsTickInterval = 2 * time.Second
)

type syncAllParams struct {
	Tasks []model.Task `json:"tasks"`
}

type taskParams struct {
	Task model.Task `json:"task"`
}

type taskRemovedParams struct {
	TaskID string `json:"task_id"`
}

type engineStatsParams struct {
	Stats taskstore.Stats `json:"stats"`
}

// Hub accepts WebSocket connections and streams each one the broker's live
// task state: an initial snapshot of active tasks, then incremental
// additions/updates/removals as they occur on the event bus, plus a
// periodic stats tick.
type Hub struct {
	bus    *events.Bus
	tasks  *taskstore.Store
	log    logger.Logger
	accept cws.AcceptOptions
}

// New builds a Hub. insecureSkipOriginCheck controls whether cross-origin
// WebSocket connections are rejected; the embedding application decides
// this based on whether it serves a browser-facing UI from another origin.
func New(bus *events.Bus, tasks *taskstore.Store, log logger.Logger, insecureSkipOriginCheck bool) *Hub {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Hub{
		bus:   bus,
		tasks: tasks,
		log:   log,
		accept: cws.AcceptOptions{
			InsecureSkipVerify: insecureSkipOriginCheck,
		},
	}
}

// Handler returns the http.Handler that upgrades incoming requests to
// WebSocket connections and serves them until the client disconnects.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(h.serveWS)
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := cws.Accept(w, r, &h.accept)
	if err != nil {
		h.log.Warning("push: websocket upgrade failed: %v", err)
		return
	}
	h.serveConn(r.Context(), conn)
}

func (h *Hub) serveConn(ctx context.Context, conn *cws.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.CloseNow()

	ch := &wsChannel{conn: conn, ctx: ctx}
	srv := jrpc2.NewServer(handler.Map{}, nil).Start(ch)
	defer srv.Stop()

	evCh, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()

	h.sendSyncAll(ctx, srv)

	go h.pumpEvents(ctx, srv, evCh)
	go h.pumpStats(ctx, srv)

	// Wait blocks until the client disconnects or the connection errors;
	// that is this connection's entire lifetime.
	if err := srv.Wait(); err != nil {
		h.log.Warning("push: connection closed: %v", err)
	}
}

func (h *Hub) sendSyncAll(ctx context.Context, srv *jrpc2.Server) {
	active := h.tasks.Active()
	snapshot := make([]model.Task, 0, len(active))
	for _, t := range active {
		snapshot = append(snapshot, *t)
	}
	if err := srv.Notify(ctx, methodSyncAll, syncAllParams{Tasks: snapshot}); err != nil {
		h.log.Warning("push: send SYNC_ALL: %v", err)
	}
}

// pumpEvents forwards task lifecycle events to this connection for as long
// as it stays open. On disconnect, unsubscribe closes this connection's bus
// channel, which ends this loop the same way ctx.Done would; a connection
// that falls behind has events dropped for it by the bus instead.
func (h *Hub) pumpEvents(ctx context.Context, srv *jrpc2.Server, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			h.forward(ctx, srv, ev)
		}
	}
}

func (h *Hub) forward(ctx context.Context, srv *jrpc2.Server, ev events.Event) {
	var (
		method string
		params any
	)
	switch ev.Kind {
	case events.Created:
		method, params = methodTaskAdded, taskParams{Task: ev.Task}
	case events.StateChanged, events.ProgressUpdated, events.Failed, events.Completed:
		method, params = methodTaskUpdated, taskParams{Task: ev.Task}
	case events.Removed:
		method, params = methodTaskRemoved, taskRemovedParams{TaskID: ev.Task.ID}
	default:
		return
	}
	if err := srv.Notify(ctx, method, params); err != nil {
		h.log.Warning("push: send %s: %v", method, err)
	}
}

// pumpStats emits ENGINE_STATS on a fixed tick, but only when the snapshot
// has actually changed since the last tick, so an idle broker doesn't spam
// every connection every two seconds.
func (h *Hub) pumpStats(ctx context.Context, srv *jrpc2.Server) {
	ticker := time.NewTicker(statsTickInterval)
	defer ticker.Stop()

	var last taskstore.Stats
	first := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := h.tasks.Stats()
			if !first && current == last {
				continue
			}
			first = false
			last = current
			h.log.Info("push: stats changed: %d active, %d queued, %s/s", current.ActiveDownloads, current.Queued, humanize.Bytes(uint64(current.TotalSpeed)))
			if err := srv.Notify(ctx, methodEngineStats, engineStatsParams{Stats: current}); err != nil {
				h.log.Warning("push: send ENGINE_STATS: %v", err)
			}
		}
	}
}
