// Package taskstore holds the in-memory hot set of tasks: the working set
// the worker pool claims from and mutates directly, backed separately by
// the persistence store for durability. It owns no disk state of its own.
package taskstore

import (
	"sort"
	"sync"
	"time"

	"github.com/warpdl/warpbroker/internal/model"
)

// Store is a thread-safe, in-memory map of tasks plus the set of task IDs
// currently claimed by a worker. The claim set exists separately from state
// so a task can be Queued/Starting in the map while briefly excluded from
// re-claiming during the handoff between the read-locked gather phase and
// the write-locked claim phase of Claim.
type Store struct {
	mu         sync.RWMutex
	tasks      map[string]*model.Task
	processing map[string]bool
}

// New creates an empty task store.
func New() *Store {
	return &Store{
		tasks:      make(map[string]*model.Task),
		processing: make(map[string]bool),
	}
}

// Add inserts or overwrites a task.
func (s *Store) Add(t *model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t
}

// Restore bulk-loads tasks read back from the persistence store at startup.
func (s *Store) Restore(tasks []*model.Task) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
	return len(tasks)
}

// Get returns the task with the given ID, or nil if absent.
func (s *Store) Get(id string) *model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tasks[id]
}

// All returns every tracked task.
func (s *Store) All() []*model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	return out
}

// Active returns tasks currently downloading or starting, the primary set
// merged with persistence-store data for progress broadcasts.
func (s *Store) Active() []*model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Task
	for _, t := range s.tasks {
		if t.State == model.Downloading || t.State == model.Starting {
			out = append(out, t)
		}
	}
	return out
}

// ByState returns every task in the given state.
func (s *Store) ByState(state model.State) []*model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Task
	for _, t := range s.tasks {
		if t.State == state {
			out = append(out, t)
		}
	}
	return out
}

// Remove unconditionally deletes a task from the store and returns it, or
// nil if absent. Used internally once a caller has already validated the
// delete is permitted; see Delete for the validated entry point.
func (s *Store) Remove(id string) *model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tasks[id]
	delete(s.tasks, id)
	delete(s.processing, id)
	return t
}

// Delete removes a task if its current state permits deletion, returning
// the removed task so the caller (the orchestrator) can clean up its file.
func (s *Store) Delete(id string) (*model.Task, error) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if !t.State.CanDelete() {
		s.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	delete(s.tasks, id)
	delete(s.processing, id)
	s.mu.Unlock()
	return t, nil
}

// Count returns the number of tracked tasks.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// Pause transitions a task to Paused if its current state allows it,
// cancelling any in-flight transfer and clearing it from the processing set.
func (s *Store) Pause(id string) (*model.Task, error) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if !t.State.CanPause() {
		s.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	t.State = model.Paused
	signalPause(t)
	if t.Cancel != nil {
		t.Cancel()
	}
	delete(s.processing, id)
	s.mu.Unlock()
	return t, nil
}

// signalPause marks t.PauseNotify without blocking, so a worker mid-transfer
// can tell a pause-triggered cancellation apart from a genuine failure.
func signalPause(t *model.Task) {
	if t.PauseNotify == nil {
		return
	}
	select {
	case t.PauseNotify <- struct{}{}:
	default:
	}
}

// SetCancel registers the cancellation handle for a task's current transfer
// attempt under the store's lock, so a concurrent Pause/Cancel call never
// races the worker that just claimed the task.
func (s *Store) SetCancel(id string, cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		t.Cancel = cancel
	}
}

// StampArr records arrID on every in-memory task sharing externalID, setting
// ArrSeriesID for TV and ArrMovieID for everything else. It is StampArrSeriesID
// /StampArrMovieID's in-memory counterpart: those update every matching row
// in the database in one statement, but a SQL UPDATE can't reach live task
// pointers already held by the claim loop or a subscriber.
func (s *Store) StampArr(externalID int64, kind model.MediaKind, arrID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, t := range s.tasks {
		if t.MediaRef == nil || t.MediaRef.ExternalID != externalID {
			continue
		}
		id := arrID
		if kind == model.KindTV {
			t.ArrSeriesID = &id
		} else {
			t.ArrMovieID = &id
		}
		count++
	}
	return count
}

// Resume transitions a paused/waiting/skipped task back to Queued.
func (s *Store) Resume(id string) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !t.State.CanResume() {
		return nil, ErrInvalidTransition
	}
	t.State = model.Queued
	t.WaitUntil = nil
	return t, nil
}

// Retry re-queues a task and increments its retry count, clearing its last
// error message.
func (s *Store) Retry(id string) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !t.State.CanRetry() {
		return nil, ErrInvalidTransition
	}
	t.State = model.Queued
	t.RetryCount++
	t.ErrorMessage = ""
	return t, nil
}

// PauseAll pauses every pausable task and returns the count affected.
func (s *Store) PauseAll() int {
	s.mu.Lock()
	var paused []string
	count := 0
	for id, t := range s.tasks {
		if t.State.CanPause() {
			t.State = model.Paused
			signalPause(t)
			if t.Cancel != nil {
				t.Cancel()
			}
			paused = append(paused, id)
			count++
		}
	}
	for _, id := range paused {
		delete(s.processing, id)
	}
	s.mu.Unlock()
	return count
}

// ResumeAll resumes every resumable task and returns the count affected.
func (s *Store) ResumeAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, t := range s.tasks {
		if t.State.CanResume() {
			t.State = model.Queued
			t.WaitUntil = nil
			count++
		}
	}
	return count
}

// MarkFailed transitions a task to Failed with the given message.
func (s *Store) MarkFailed(id, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		t.State = model.Failed
		t.ErrorMessage = message
		now := time.Now()
		t.CompletedAt = &now
	}
	delete(s.processing, id)
}

// MarkCompleted transitions a task to Completed.
func (s *Store) MarkCompleted(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		t.State = model.Completed
		now := time.Now()
		t.CompletedAt = &now
		t.Progress = 100
		t.ErrorMessage = ""
	}
	delete(s.processing, id)
}

// UpdateProgress atomically mutates every progress-related field on a task
// in a single critical section, per the claim loop's requirement that a
// progress tick be "one mutate, not five".
func (s *Store) UpdateProgress(id string, downloaded, size int64, speed, eta, progress float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		t.Downloaded = downloaded
		t.Size = size
		t.Speed = speed
		t.ETA = eta
		t.Progress = progress
	}
}

// queuedCandidate is the sortable projection of a queued task gathered
// under the read lock in Claim.
type queuedCandidate struct {
	id             string
	priority       int
	remainingBytes int64
	progress       float64
	createdAt      time.Time
}

// Claim atomically picks the next task to work on: a Waiting task whose
// backoff has elapsed takes priority; failing that, the best Queued
// candidate by priority desc, remaining bytes asc, progress desc, and
// created_at asc. It mutates the winner to Starting and adds it to the
// processing set before returning it. Returns nil if nothing is claimable.
func (s *Store) Claim() *model.Task {
	now := time.Now()

	// Step 1: gather candidates under a read lock only.
	var waitingID string
	var queued []queuedCandidate
	s.mu.RLock()
	for _, t := range s.tasks {
		if s.processing[t.ID] {
			continue
		}
		if t.State == model.Waiting {
			ready := t.WaitUntil == nil || !t.WaitUntil.After(now)
			if ready && waitingID == "" {
				waitingID = t.ID
			}
			continue
		}
		if t.State == model.Queued {
			queued = append(queued, queuedCandidate{
				id:             t.ID,
				priority:       t.Priority,
				remainingBytes: t.RemainingBytes(),
				progress:       t.Progress,
				createdAt:      t.CreatedAt,
			})
		}
	}
	s.mu.RUnlock()

	// Step 2: a ready waiting task wins outright.
	if waitingID != "" {
		s.mu.Lock()
		defer s.mu.Unlock()
		if t, ok := s.tasks[waitingID]; ok && t.State == model.Waiting && !s.processing[waitingID] {
			t.State = model.Starting
			t.WaitUntil = nil
			if t.StartedAt == nil {
				startedAt := now
				t.StartedAt = &startedAt
			}
			s.processing[waitingID] = true
			return t
		}
		return nil
	}

	if len(queued) == 0 {
		return nil
	}

	// Step 3: sort without holding any lock.
	sort.SliceStable(queued, func(i, j int) bool {
		a, b := queued[i], queued[j]
		if a.priority != b.priority {
			return a.priority > b.priority
		}
		if a.remainingBytes != b.remainingBytes {
			return a.remainingBytes < b.remainingBytes
		}
		if a.progress != b.progress {
			return a.progress > b.progress
		}
		return a.createdAt.Before(b.createdAt)
	})

	// Step 4: re-verify and claim under a write lock.
	winnerID := queued[0].id
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[winnerID]
	if !ok || t.State != model.Queued || s.processing[winnerID] {
		return nil
	}
	t.State = model.Starting
	if t.StartedAt == nil {
		startedAt := time.Now()
		t.StartedAt = &startedAt
	}
	s.processing[winnerID] = true
	return t
}

// BeginTransfer records a freshly resolved download URL on a claimed task
// and moves it from Starting to Downloading. Returns nil if the task is no
// longer tracked.
func (s *Store) BeginTransfer(id, resolvedURL string, meta *model.UrlMetadata) *model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil
	}
	t.ResolvedURL = resolvedURL
	t.URLMetadata = meta
	t.NeedsURLRefresh = false
	t.State = model.Downloading
	return t
}

// SetDestination overwrites a task's destination path, used once a
// completed file has been relocated into the arr pair's library layout.
func (s *Store) SetDestination(id, destination string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		t.Destination = destination
	}
}

// ScheduleRetry moves a task to Waiting with an incremented retry count and
// a resume deadline, clearing it from the processing set so the claim loop
// can pick it back up once wait_until elapses. needsURLRefresh forces the
// next claim to re-resolve the download URL rather than reuse the cached one.
func (s *Store) ScheduleRetry(id string, waitUntil time.Time, message string, needsURLRefresh bool) *model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil
	}
	t.RetryCount++
	t.State = model.Waiting
	t.WaitUntil = &waitUntil
	t.ErrorMessage = message
	t.NeedsURLRefresh = needsURLRefresh
	delete(s.processing, id)
	return t
}

// Cancel transitions an active or pending task straight to Cancelled,
// invoking its cancellation handle if a transfer is in flight. Unlike
// Delete, which only accepts tasks already at rest, Cancel accepts any
// state State.CanCancel reports true for.
func (s *Store) Cancel(id string) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !t.State.CanCancel() {
		return nil, ErrInvalidTransition
	}
	if t.Cancel != nil {
		t.Cancel()
	}
	t.State = model.Cancelled
	now := time.Now()
	t.CompletedAt = &now
	delete(s.processing, id)
	return t, nil
}

// Release clears a task's processing-set membership without changing its
// state, used when a worker bails out before reaching a terminal outcome.
func (s *Store) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.processing, id)
}

// Stats is a point-in-time snapshot of task counts by bucket, mirroring the
// push endpoint's ENGINE_STATS payload.
type Stats struct {
	ActiveDownloads int     `json:"active_downloads"`
	Queued          int     `json:"queued"`
	Completed       int     `json:"completed"`
	Failed          int     `json:"failed"`
	Paused          int     `json:"paused"`
	Cancelled       int     `json:"cancelled"`
	TotalSpeed      float64 `json:"total_speed"`
}

// Stats computes the current engine statistics in one pass.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st Stats
	for _, t := range s.tasks {
		switch t.State {
		case model.Downloading, model.Starting, model.Extracting:
			st.ActiveDownloads++
			st.TotalSpeed += t.Speed
		case model.Queued, model.Waiting:
			st.Queued++
		case model.Completed:
			st.Completed++
		case model.Failed:
			st.Failed++
		case model.Paused:
			st.Paused++
		case model.Cancelled:
			st.Cancelled++
		}
	}
	return st
}
