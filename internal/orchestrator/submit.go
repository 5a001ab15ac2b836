package orchestrator

import (
	"context"

	"github.com/warpdl/warpbroker/internal/arr"
	"github.com/warpdl/warpbroker/internal/events"
	"github.com/warpdl/warpbroker/internal/model"
)

// SubmitRequest is everything a caller supplies when adding a download.
// Filename is optional: if empty, AddDownload asks the host for it.
type SubmitRequest struct {
	URL          string
	Filename     string
	Host         string
	HostFileCode string
	Category     string
	Priority     int
	MediaRef     *model.MediaRef
	BatchID      string
	BatchName    string
}

// AddDownload registers a new task, or returns an existing one if this
// submission duplicates a file already tracked under the same host file
// code. A resubmission of a task that previously ended in Failed or
// Cancelled replaces the stale record instead of being treated as a
// duplicate.
func (o *Orchestrator) AddDownload(ctx context.Context, req SubmitRequest) (*model.Task, error) {
	if existing, outcome := o.resolveDuplicate(req.Host, req.HostFileCode); outcome == duplicateKeepExisting {
		return existing, nil
	}

	filename := req.Filename
	if filename == "" {
		if client, err := o.hosts.For(req.URL); err == nil {
			if info, infoErr := client.GetFileInfo(ctx, req.URL); infoErr == nil && info.Filename != "" {
				filename = info.Filename
			}
		}
	}
	if filename == "" {
		filename = "download"
	}

	source := detectSource(filename)
	resolution := detectResolution(filename)

	probe := &model.Task{MediaRef: req.MediaRef, BatchID: req.BatchID, Category: req.Category}
	mediaType := probe.DetectMediaType()
	filename = cleanFilename(filename, mediaType, req.MediaRef)

	task := model.New(req.URL, filename, req.Host, req.Category)
	task.HostFileCode = req.HostFileCode
	task.Priority = req.Priority
	task.MediaRef = req.MediaRef
	task.BatchID = req.BatchID
	task.BatchName = req.BatchName
	task.Quality = qualityName(source, resolution)
	task.Resolution = resolution
	task.Destination = buildDestinationPath(filename, mediaType, req.MediaRef, o.Config().Downloads.Directory)

	o.persist(task)
	o.tasks.Add(task)
	o.bus.Publish(events.Event{Kind: events.Created, Task: *task, NewState: task.State})

	if task.MediaRef != nil && o.arr != nil && o.shouldManageArtifact(task.BatchID) {
		go o.ensureArrArtifact(context.Background(), task)
	}

	return task, nil
}

// shouldManageArtifact decides whether this submission is the one that
// should trigger arr reconciliation for its batch. Standalone tasks
// (no batch ID, i.e. movies) always manage themselves; a batch of episodes
// only needs one of its members to announce the series once. A rare race
// between two episodes of the same batch landing here simultaneously can
// let both through; arr.Manager.Ensure is idempotent (a second call just
// reports StatusAlreadyMonitored), so the worst case is one redundant
// lookup, never a duplicate series.
func (o *Orchestrator) shouldManageArtifact(batchID string) bool {
	if batchID == "" {
		return true
	}
	if o.announcedBatches.Get(batchID) {
		return false
	}
	o.announcedBatches.Set(batchID, true)
	return true
}

// ensureArrArtifact reconciles task's media reference against the arr pair
// in the background. The Arr Artifact Manager already persists the
// resolved arr-internal ID to every database row sharing this external ID;
// what's left is stamping it onto the live in-memory task pointers a
// database write can't reach.
func (o *Orchestrator) ensureArrArtifact(ctx context.Context, task *model.Task) {
	status := o.arr.Ensure(ctx, task)
	switch status.Kind {
	case arr.StatusCreated, arr.StatusAlreadyMonitored:
		o.tasks.StampArr(task.MediaRef.ExternalID, task.DetectMediaType(), status.ArrID)
	default:
		o.log.Warning("arr reconciliation for task %s: %s", task.ID, status.Reason)
	}
}
