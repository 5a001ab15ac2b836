package orchestrator

import (
	"context"
	"time"

	"github.com/warpdl/warpbroker/internal/model"
	"github.com/warpdl/warpbroker/internal/scheduler"
)

// allStates enumerates every task state, used to load the full table at
// startup rather than just the resumable subset.
var allStates = []model.State{
	model.Queued, model.Starting, model.Downloading, model.Paused,
	model.Waiting, model.Completed, model.Failed, model.Cancelled,
	model.Extracting, model.Skipped,
}

var pausableStates = []model.State{model.Queued, model.Starting, model.Downloading, model.Waiting}
var resumableStates = []model.State{model.Paused, model.Waiting, model.Skipped}

// restoreFromDB repopulates the in-memory task store from every row in the
// database. A task caught mid-transfer by a previous crash (still
// Starting or Downloading with no worker left to finish it) is reset to
// Queued so a worker picks it up fresh; everything else loads as-is. This
// is deliberately the only restore path: loading just the resumable subset
// would leave a crashed mid-transfer task stuck forever.
func (o *Orchestrator) restoreFromDB(ctx context.Context) error {
	if o.db == nil {
		return nil
	}
	tasks, err := o.db.TasksByStates(allStates)
	if err != nil {
		return err
	}

	var candidates []scheduler.RetryCandidate
	for _, t := range tasks {
		if t.State == model.Downloading || t.State == model.Starting {
			t.State = model.Queued
			t.WaitUntil = nil
		}
		if t.State == model.Waiting && t.WaitUntil != nil {
			candidates = append(candidates, scheduler.RetryCandidate{TaskID: t.ID, RetryAt: *t.WaitUntil})
		}
	}
	o.tasks.Restore(tasks)

	if o.sched == nil || len(candidates) == 0 {
		return nil
	}
	missed, future := scheduler.LoadSchedules(candidates, time.Now())
	if len(missed) > 0 {
		o.notify.notifyAll()
	}
	for _, ev := range future {
		o.sched.Add(ev)
	}
	return nil
}
