package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/warpdl/warpbroker/internal/classify"
	"github.com/warpdl/warpbroker/internal/events"
	"github.com/warpdl/warpbroker/internal/host"
	"github.com/warpdl/warpbroker/internal/model"
	"github.com/warpdl/warpbroker/internal/scheduler"
	"github.com/warpdl/warpbroker/internal/transfer"
	"github.com/warpdl/warpbroker/pkg/warplib"
)

// processTask drives one claimed task from Starting through to a terminal
// or Waiting outcome. It owns the task for the duration of the call: no
// other worker can claim it again until processTask returns (Claim already
// added it to the processing set).
func (o *Orchestrator) processTask(ctx context.Context, task *model.Task) {
	attemptCtx, cancel := context.WithCancel(ctx)
	o.tasks.SetCancel(task.ID, cancel)
	defer cancel()

	o.publishState(task, model.Starting, "")
	o.persist(task)

	downloadURL := task.OriginalURL
	var headers map[string]string

	client, err := o.hosts.For(task.OriginalURL)
	if err != nil {
		// No handler at all is not a failure: fall back to the original
		// URL as-is and let the transfer attempt itself prove whether
		// that works.
		o.log.Warning("no host handler for task %s, using original url: %v", task.ID, err)
	} else {
		resolved, resolveErr := o.resolveURL(attemptCtx, client, task)
		if resolveErr != nil {
			o.failResolve(task, resolveErr)
			return
		}
		downloadURL = resolved.DirectURL
		headers = resolved.Headers
	}

	downloading := o.tasks.BeginTransfer(task.ID, downloadURL, task.URLMetadata)
	if downloading == nil {
		return
	}
	task = downloading
	o.publishState(task, model.Downloading, "")
	o.persist(task)

	onProgress := func(p transfer.Progress) {
		o.tasks.UpdateProgress(task.ID, p.Downloaded, p.Total, p.Speed, p.ETA, p.Percentage)
		o.bus.PublishProgress(events.Progress{
			TaskID:     task.ID,
			Downloaded: p.Downloaded,
			Total:      p.Total,
			Speed:      p.Speed,
			ETA:        p.ETA,
			Percentage: p.Percentage,
		})
	}

	_, transferErr := o.transfer.Download(attemptCtx, downloadURL, task.Destination, headers, onProgress)
	if transferErr != nil {
		o.handleTransferFailure(task, transferErr)
		return
	}
	o.finishTransfer(task)
}

// resolveURL returns a direct download URL, reusing the cached one on
// task.URLMetadata when it is still fresh, the task hasn't been flagged for
// a forced refresh, and the cached URL still validates: the expiry estimate
// the host reported is a guess, and a host can revoke a link before its
// advertised expiry.
func (o *Orchestrator) resolveURL(ctx context.Context, client host.Client, task *model.Task) (host.ResolvedURL, error) {
	if !task.NeedsURLRefresh && task.ResolvedURL != "" && !task.URLMetadata.Expired(time.Now()) {
		if client.ValidateDownloadURL(ctx, task.ResolvedURL) {
			return host.ResolvedURL{DirectURL: task.ResolvedURL, ExpiresAt: task.URLMetadata.ExpiresAt}, nil
		}
	}
	resolved, err := client.ResolveDownloadURL(ctx, task.OriginalURL)
	if err != nil {
		return host.ResolvedURL{}, err
	}
	task.URLMetadata = &model.UrlMetadata{ResolvedAt: time.Now(), ExpiresAt: resolved.ExpiresAt}
	return resolved, nil
}

func (o *Orchestrator) failResolve(task *model.Task, resolveErr error) {
	cat := classify.Classify(resolveErr)
	task.RecordError(resolveErr.Error(), string(cat.Kind))
	o.tasks.MarkFailed(task.ID, resolveErr.Error())
	o.publishFailed(task, resolveErr.Error())
	o.persist(task)
}

func (o *Orchestrator) finishTransfer(task *model.Task) {
	o.tasks.MarkCompleted(task.ID)
	current := o.tasks.Get(task.ID)
	if current == nil {
		current = task
	}
	o.log.Info("completed %s (%s)", current.Filename, warplib.ContentLength(current.Size))

	if movedPath, err := o.moveToArrPath(context.Background(), current); err != nil {
		o.log.Warning("move completed task %s into arr library: %v", current.ID, err)
	} else if movedPath != "" {
		o.tasks.SetDestination(current.ID, movedPath)
		current.Destination = movedPath
	}

	o.persist(current)
	o.bus.Publish(events.Event{Kind: events.Completed, Task: *current, NewState: model.Completed})
	o.bus.PublishProgress(events.Progress{
		TaskID:     current.ID,
		Downloaded: current.Size,
		Total:      current.Size,
		Percentage: 100,
	})
}

// handleTransferFailure disambiguates why the transfer ended in error: a
// pause must never be misclassified as a failure, a cancellation has
// already moved the task to Cancelled by the time the transfer unwinds and
// needs no further mutation, and everything else either schedules a
// backoff retry or gives up once the retry budget is spent. The order of
// these checks matters: pause first, then cancellation, then genuine
// failure, since a pause and a cancel both abort the same in-flight
// request the same way.
func (o *Orchestrator) handleTransferFailure(task *model.Task, transferErr error) {
	current := o.tasks.Get(task.ID)
	if current == nil {
		return
	}

	paused := false
	select {
	case <-current.PauseNotify:
		paused = true
	default:
	}
	if paused || current.State == model.Paused {
		o.persist(current)
		return
	}

	if errors.Is(transferErr, context.Canceled) {
		o.persist(current)
		return
	}

	cat := classify.Classify(transferErr)
	current.RecordError(transferErr.Error(), string(cat.Kind))
	maxRetries := o.Config().Retry.MaxRetries

	if !cat.SkipsRetry() && current.RetryCount < maxRetries {
		nextAttempt := current.RetryCount + 1
		delay := o.Config().Retry.RetryDelay(nextAttempt)
		waitUntil := time.Now().Add(delay)
		message := fmt.Sprintf("Retry %d/%d: %v", nextAttempt, maxRetries, transferErr)

		updated := o.tasks.ScheduleRetry(current.ID, waitUntil, message, cat.Kind == classify.UrlRefreshNeeded)
		if updated != nil {
			o.publishState(updated, model.Waiting, message)
			o.persist(updated)
		}
		if o.sched != nil {
			o.sched.Add(scheduler.ScheduleEvent{ItemHash: current.ID, TriggerAt: waitUntil})
		}
		return
	}

	message := fmt.Sprintf("Max retries exceeded: %v", transferErr)
	o.tasks.MarkFailed(current.ID, message)
	o.publishFailed(current, message)
	o.persist(current)
}
