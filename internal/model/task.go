package model

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MediaKind distinguishes movies from TV content for arr routing.
type MediaKind string

const (
	KindMovie MediaKind = "movie"
	KindTV    MediaKind = "tv"
)

// MediaRef links a task to the external catalog entry (e.g. TMDB) it was
// submitted against, carrying enough detail for arr reconciliation and
// destination path assembly.
type MediaRef struct {
	ExternalID int64     `json:"external_id"`
	Kind       MediaKind `json:"kind"`
	Title      string    `json:"title"`
	Year       int       `json:"year,omitempty"`
	Season     int       `json:"season,omitempty"`
	Episode    int       `json:"episode,omitempty"`

	// CollectionName, when set, nests a movie's destination folder one
	// level deeper under the collection it belongs to (e.g. a franchise).
	// Unused for TV.
	CollectionName string `json:"collection_name,omitempty"`
}

// UrlMetadata tracks when a cached resolved URL was obtained and when it
// stops being valid.
type UrlMetadata struct {
	ResolvedAt time.Time `json:"resolved_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the cached resolved URL is no longer usable at t.
func (m *UrlMetadata) Expired(t time.Time) bool {
	if m == nil || m.ExpiresAt.IsZero() {
		return true
	}
	return !t.Before(m.ExpiresAt)
}

// ErrorRecord captures one classified failure for a task's error history.
type ErrorRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	ErrorMessage  string    `json:"error_message"`
	ErrorCategory string    `json:"error_category"`
	RetryAttempt  int       `json:"retry_attempt"`
}

// Task is the primary download entity tracked by the broker. Field tags
// match the push endpoint's wire format; nothing else in the broker
// marshals a Task to JSON.
type Task struct {
	ID string `json:"id"`

	OriginalURL string `json:"original_url"`
	ResolvedURL string `json:"resolved_url,omitempty"`
	Filename    string `json:"filename"`
	Destination string `json:"destination"`

	State State `json:"state"`

	Size       int64   `json:"size"`
	Downloaded int64   `json:"downloaded"`
	Progress   float64 `json:"progress"`
	Speed      float64 `json:"speed"`
	ETA        float64 `json:"eta"`

	Host     string `json:"host"`
	Category string `json:"category,omitempty"`
	Priority int    `json:"priority"`

	RetryCount   int        `json:"retry_count"`
	WaitUntil    *time.Time `json:"wait_until,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	URLMetadata *UrlMetadata `json:"url_metadata,omitempty"`
	// NeedsURLRefresh is set by the Error Classifier's UrlRefreshNeeded
	// category so the next claim forces re-resolution instead of reusing
	// ResolvedURL even if URLMetadata has not yet expired.
	NeedsURLRefresh bool `json:"needs_url_refresh"`

	BatchID   string `json:"batch_id,omitempty"`
	BatchName string `json:"batch_name,omitempty"`

	HostFileCode string `json:"host_file_code,omitempty"`

	MediaRef *MediaRef `json:"media_ref,omitempty"`

	ArrSeriesID *int64 `json:"arr_series_id,omitempty"`
	ArrMovieID  *int64 `json:"arr_movie_id,omitempty"`

	Quality    string `json:"quality,omitempty"`
	Resolution string `json:"resolution,omitempty"`

	ErrorHistory []ErrorRecord `json:"error_history,omitempty"`

	// Cancel aborts an in-flight transfer for this task. Created fresh on
	// every resume/claim so a stale cancellation from a prior attempt can
	// never leak into the next one.
	Cancel context.CancelFunc `json:"-"`
	// PauseNotify is signalled whenever a pause control operation lands,
	// letting the orchestrator worker running an in-flight transfer
	// distinguish "paused" from "failed" on the same cancellation.
	PauseNotify chan struct{} `json:"-"`

	mu sync.Mutex
}

// New creates a task in its initial Queued state.
func New(originalURL, filename, host, category string) *Task {
	return &Task{
		ID:          uuid.NewString(),
		OriginalURL: originalURL,
		Filename:    filename,
		Host:        host,
		Category:    category,
		State:       Queued,
		CreatedAt:   time.Now(),
		PauseNotify: make(chan struct{}, 1),
	}
}

// DetectMediaType classifies the task for arr routing, mirroring the
// reference implementation's cascade: explicit season+episode wins, then
// batch membership, then category hints, defaulting to movie.
func (t *Task) DetectMediaType() MediaKind {
	if t.MediaRef != nil && t.MediaRef.Season > 0 && t.MediaRef.Episode > 0 {
		return KindTV
	}
	if t.BatchID != "" {
		return KindTV
	}
	cat := strings.ToLower(t.Category)
	if strings.Contains(cat, "movie") || strings.Contains(cat, "radarr") {
		return KindMovie
	}
	if strings.Contains(cat, "tv") || strings.Contains(cat, "sonarr") || strings.Contains(cat, "series") {
		return KindTV
	}
	return KindMovie
}

// RecordError appends a classified failure to the task's error history.
func (t *Task) RecordError(message, category string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ErrorHistory = append(t.ErrorHistory, ErrorRecord{
		Timestamp:     time.Now(),
		ErrorMessage:  message,
		ErrorCategory: category,
		RetryAttempt:  t.RetryCount,
	})
}

// RemainingBytes returns the bytes left to transfer, used as a claim sort key.
func (t *Task) RemainingBytes() int64 {
	remaining := t.Size - t.Downloaded
	if remaining < 0 {
		return 0
	}
	return remaining
}
