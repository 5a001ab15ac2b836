package orchestrator

import (
	"github.com/warpdl/warpbroker/internal/model"
)

// findByHostFileCode looks for a task already tracking the same host file
// code, independent of the share URL it was originally submitted under (two
// URLs can point at the same file). It checks the in-memory task set first,
// then falls back to the database: the in-memory set only holds tasks the
// worker pool is actively tracking, so a task evicted from memory but still
// at rest on disk would otherwise look like no duplicate at all.
func (o *Orchestrator) findByHostFileCode(host, code string) *model.Task {
	if code == "" {
		return nil
	}
	for _, t := range o.tasks.All() {
		if t.Host == host && t.HostFileCode == code {
			return t
		}
	}
	if o.db == nil {
		return nil
	}
	t, err := o.db.TaskByHostFileCode(host, code)
	if err != nil {
		return nil
	}
	return t
}

// duplicateOutcome tells AddDownload what to do about a resubmission of a
// file already represented by an existing task, in memory or in the
// database.
type duplicateOutcome int

const (
	// duplicateNone means no existing task was found; proceed normally.
	duplicateNone duplicateOutcome = iota
	// duplicateKeepExisting means an active or at-rest task already covers
	// this file; return it unchanged rather than creating a second one.
	duplicateKeepExisting
	// duplicateReplace means the existing task ended in Failed or
	// Cancelled; it has been removed and a fresh submission should proceed.
	duplicateReplace
)

// resolveDuplicate inspects any existing task sharing host+code and decides
// whether the caller should short-circuit with it, or proceed after the
// stale record has been cleared out. Mirrors the reference implementation's
// state-based duplicate handling, generalized away from one specific host.
func (o *Orchestrator) resolveDuplicate(host, code string) (existing *model.Task, outcome duplicateOutcome) {
	t := o.findByHostFileCode(host, code)
	if t == nil {
		return nil, duplicateNone
	}

	switch t.State {
	case model.Failed, model.Cancelled:
		o.tasks.Remove(t.ID)
		if o.db != nil {
			_ = o.db.DeleteTask(t.ID)
		}
		return t, duplicateReplace
	default:
		// Queued, Starting, Downloading, Paused, Waiting, Completed,
		// Skipped, Extracting: all kept as-is.
		return t, duplicateKeepExisting
	}
}
