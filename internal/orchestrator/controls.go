package orchestrator

import (
	"fmt"
	"os"

	"github.com/warpdl/warpbroker/internal/events"
	"github.com/warpdl/warpbroker/internal/model"
)

// Pause transitions a single task to Paused.
func (o *Orchestrator) Pause(id string) (*model.Task, error) {
	task, err := o.tasks.Pause(id)
	if err != nil {
		return nil, err
	}
	o.persist(task)
	o.publishState(task, model.Paused, "")
	return task, nil
}

// Resume transitions a single paused/waiting/skipped task back to Queued
// and wakes the worker pool so it doesn't wait out its idle poll interval.
func (o *Orchestrator) Resume(id string) (*model.Task, error) {
	task, err := o.tasks.Resume(id)
	if err != nil {
		return nil, err
	}
	o.persist(task)
	o.publishState(task, model.Queued, "")
	o.notify.notifyAll()
	return task, nil
}

// Retry re-queues a task outside its normal backoff schedule.
func (o *Orchestrator) Retry(id string) (*model.Task, error) {
	task, err := o.tasks.Retry(id)
	if err != nil {
		return nil, err
	}
	o.persist(task)
	o.publishState(task, model.Queued, "")
	o.notify.notifyAll()
	return task, nil
}

// Cancel ends a task outright, whatever state it's currently in.
func (o *Orchestrator) Cancel(id string) (*model.Task, error) {
	task, err := o.tasks.Cancel(id)
	if err != nil {
		return nil, err
	}
	o.persist(task)
	o.publishState(task, model.Cancelled, "cancelled")
	return task, nil
}

// Delete removes an at-rest task from both the in-memory store and the
// database, and deletes its downloaded file if one exists.
func (o *Orchestrator) Delete(id string) error {
	task, err := o.tasks.Delete(id)
	if err != nil {
		return err
	}
	if o.db != nil {
		if dbErr := o.db.DeleteTask(id); dbErr != nil {
			o.log.Error("delete task %s from database: %v", id, dbErr)
		}
	}
	if task.Destination != "" {
		if rmErr := os.Remove(task.Destination); rmErr != nil && !os.IsNotExist(rmErr) {
			o.log.Error("delete file for task %s: %v", id, rmErr)
		}
	}
	o.bus.Publish(events.Event{Kind: events.Removed, Task: *task})
	return nil
}

// PauseAll pauses every pausable task. When a database is configured, the
// database is updated first in one batch statement, then each in-memory
// task is synced and its pause broadcast individually; the database is
// the authority here, not the in-memory store, since a task the worker
// pool isn't currently tracking (loaded only on demand) must still end up
// paused on disk.
func (o *Orchestrator) PauseAll() (int, error) {
	if o.db == nil {
		return o.tasks.PauseAll(), nil
	}

	rows, err := o.db.TasksByStates(pausableStates)
	if err != nil {
		return 0, fmt.Errorf("load pausable tasks: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, t := range rows {
		ids = append(ids, t.ID)
	}
	if _, err := o.db.BatchUpdateStates(ids, model.Paused); err != nil {
		return 0, fmt.Errorf("batch pause tasks: %w", err)
	}

	for _, t := range rows {
		if inMemory, pauseErr := o.tasks.Pause(t.ID); pauseErr == nil {
			o.publishState(inMemory, model.Paused, "")
			continue
		}
		t.State = model.Paused
		o.tasks.Add(t)
		o.publishState(t, model.Paused, "")
	}
	return len(rows), nil
}

// ResumeAll resumes every resumable task, following the same database-first
// ordering as PauseAll, then wakes the worker pool once at the end rather
// than once per task.
func (o *Orchestrator) ResumeAll() (int, error) {
	if o.db == nil {
		count := o.tasks.ResumeAll()
		o.notify.notifyAll()
		return count, nil
	}

	rows, err := o.db.TasksByStates(resumableStates)
	if err != nil {
		return 0, fmt.Errorf("load resumable tasks: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, t := range rows {
		ids = append(ids, t.ID)
	}
	if _, err := o.db.BatchUpdateStates(ids, model.Queued); err != nil {
		return 0, fmt.Errorf("batch resume tasks: %w", err)
	}

	for _, t := range rows {
		if inMemory, resumeErr := o.tasks.Resume(t.ID); resumeErr == nil {
			o.publishState(inMemory, model.Queued, "")
			continue
		}
		t.State = model.Queued
		t.WaitUntil = nil
		o.tasks.Add(t)
		o.publishState(t, model.Queued, "")
	}
	o.notify.notifyAll()
	return len(rows), nil
}
