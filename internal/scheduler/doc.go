// Package scheduler implements a single-goroutine timer scheduler using a
// min-heap of ScheduleEvents sorted by trigger time, with a 60-second
// max-sleep-cap to handle NTP steps, DST transitions, and system sleep
// (macOS monotonic clock pause).
//
// The orchestrator uses it to re-enqueue tasks whose retry backoff has
// elapsed: it fires events and calls a registered onTrigger callback with
// the task ID. It does not persist state itself; on restart the heap is
// rebuilt from retry candidates read back from the task store via
// LoadSchedules.
package scheduler
