package scheduler

import "time"

// ScheduleEvent represents a pending scheduled download in the scheduler heap.
// It is an in-memory only type; on daemon restart the heap is rebuilt from
// RetryCandidate values via LoadSchedules.
type ScheduleEvent struct {
	// ItemHash identifies what to trigger when TriggerAt is reached; the
	// orchestrator stores a task ID here.
	ItemHash string
	// TriggerAt is the wall-clock time when this download should be enqueued.
	TriggerAt time.Time
	// CronExpr is the cron expression for recurring downloads.
	// Empty string means one-shot, no re-scheduling after firing.
	CronExpr string
}
