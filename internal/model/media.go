package model

import "time"

// ArrKind distinguishes which arr pair a media row is linked to.
type ArrKind string

const (
	ArrSeriesManager ArrKind = "series-mgr"
	ArrMovieManager  ArrKind = "movie-mgr"
)

// Session is the process-wide, per-host login state. Only one row exists per
// host at a time; it is treated as valid without re-check until the
// configured validation interval elapses.
type Session struct {
	Host          string
	SessionID     string
	Token         string
	CreatedAt     time.Time
	LastValidated time.Time
}

// Valid reports whether the session can be used without re-validation at t,
// given a validation interval.
func (s *Session) Valid(t time.Time, validationInterval time.Duration) bool {
	if s == nil || s.Token == "" {
		return false
	}
	return t.Sub(s.LastValidated) < validationInterval
}

// MediaItem is a library entity (movie or series) keyed by the catalog's
// external ID, carrying the arr linkage used for reconciliation.
type MediaItem struct {
	ExternalID int64
	Kind       MediaKind
	Title      string
	Year       int

	ArrKind ArrKind
	ArrID   int64
	ArrPath string

	Monitored bool
	HasFile   bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MediaEpisode is a single episode of a MediaItem, keyed by
// (ExternalID, Season, Episode).
type MediaEpisode struct {
	ExternalID int64
	Season     int
	Episode    int
	Title      string

	ArrEpisodeID int64
	HasFile      bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BatchSummary is the derived, aggregated view of a set of tasks sharing a
// batch_id. It is never stored as a row; the persistence store computes it
// on demand by SQL aggregation.
type BatchSummary struct {
	BatchID   string
	BatchName string

	TaskCount int
	ByState   map[State]int

	TotalSize       int64
	TotalDownloaded int64

	// AggregateState is the batch-level state reduced from ByState, in
	// order: any Failed task makes the batch Failed; else any
	// Downloading/Starting makes it Downloading; else any Paused with
	// not all tasks Completed makes it Paused; else all Completed makes
	// it Completed; otherwise Queued.
	AggregateState State
}
