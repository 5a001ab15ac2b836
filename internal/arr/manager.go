package arr

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/warpdl/warpbroker/internal/model"
)

// Status is the outcome of one artifact reconciliation attempt.
type Status struct {
	Kind   StatusKind
	ArrID  int64
	Reason string
}

type StatusKind string

const (
	StatusCreated          StatusKind = "created"
	StatusAlreadyMonitored StatusKind = "already_monitored"
	StatusSkipped          StatusKind = "skipped"
	StatusFailed           StatusKind = "failed"
)

// Store is the subset of internal/store the artifact manager needs to
// persist arr linkage and read the configured quality profile.
type Store interface {
	GetSetting(key string) (string, error)
	UpsertMediaItem(item *model.MediaItem) error
	GetMediaItem(externalID int64) (*model.MediaItem, error)
	StampArrSeriesID(externalID, arrSeriesID int64) (int64, error)
	StampArrMovieID(externalID, arrMovieID int64) (int64, error)
}

const (
	defaultQualityProfileID = 1
	defaultSeriesRoot       = "/tv"
	defaultMovieRoot        = "/movies"
)

// Manager idempotently ensures the arr pair has a library record for a
// task's media item, stamping the result back onto local state.
type Manager struct {
	series *Client
	movies *Client
	store  Store
}

func NewManager(seriesClient, movieClient *Client, store Store) *Manager {
	return &Manager{series: seriesClient, movies: movieClient, store: store}
}

// Ensure reconciles the arr library against task, skipping tasks without a
// media reference and de-duplicating nothing itself; callers (the
// Orchestrator) are responsible for only calling this once per batch.
func (m *Manager) Ensure(ctx context.Context, task *model.Task) Status {
	if task.MediaRef == nil {
		return Status{Kind: StatusSkipped, Reason: "no external id available"}
	}
	externalID := task.MediaRef.ExternalID

	switch task.DetectMediaType() {
	case model.KindTV:
		return m.ensureSeries(ctx, externalID)
	default:
		return m.ensureMovie(ctx, externalID)
	}
}

func (m *Manager) ensureSeries(ctx context.Context, externalID int64) Status {
	if m.series == nil {
		return Status{Kind: StatusSkipped, Reason: "series manager not configured"}
	}

	if arrID, ok, err := m.series.SeriesExistsByExternalID(ctx, externalID); err != nil {
		return Status{Kind: StatusFailed, Reason: fmt.Sprintf("check series existence: %v", err)}
	} else if ok {
		m.stampSeries(externalID, arrID)
		return Status{Kind: StatusAlreadyMonitored, ArrID: arrID}
	}

	root := m.rootFolder(ctx, m.series, defaultSeriesRoot)
	arrID, err := m.series.AddSeries(ctx, externalID, m.qualityProfileID("sonarr_quality_profile_id"), root)
	if err != nil {
		if isAlreadyExists(err) {
			if existingID, ok, reErr := m.series.SeriesExistsByExternalID(ctx, externalID); reErr == nil && ok {
				m.stampSeries(externalID, existingID)
				return Status{Kind: StatusAlreadyMonitored, ArrID: existingID}
			}
		}
		return Status{Kind: StatusFailed, Reason: fmt.Sprintf("create series: %v", err)}
	}
	m.stampSeries(externalID, arrID)
	return Status{Kind: StatusCreated, ArrID: arrID}
}

func (m *Manager) ensureMovie(ctx context.Context, externalID int64) Status {
	if m.movies == nil {
		return Status{Kind: StatusSkipped, Reason: "movie manager not configured"}
	}

	if arrID, ok, err := m.movies.MovieExistsByExternalID(ctx, externalID); err != nil {
		return Status{Kind: StatusFailed, Reason: fmt.Sprintf("check movie existence: %v", err)}
	} else if ok {
		m.stampMovie(externalID, arrID)
		return Status{Kind: StatusAlreadyMonitored, ArrID: arrID}
	}

	root := m.rootFolder(ctx, m.movies, defaultMovieRoot)
	arrID, err := m.movies.AddMovie(ctx, externalID, m.qualityProfileID("radarr_quality_profile_id"), root)
	if err != nil {
		// The movie may have been added concurrently by another task in
		// the same batch; a 400 from the add endpoint is the signal to
		// re-query rather than treat this as a hard failure.
		if isAlreadyExists(err) {
			if existingID, ok, reErr := m.movies.MovieExistsByExternalID(ctx, externalID); reErr == nil && ok {
				m.stampMovie(externalID, existingID)
				return Status{Kind: StatusAlreadyMonitored, ArrID: existingID}
			}
		}
		return Status{Kind: StatusFailed, Reason: fmt.Sprintf("create movie: %v", err)}
	}
	m.stampMovie(externalID, arrID)
	return Status{Kind: StatusCreated, ArrID: arrID}
}

// LookupSeriesID resolves a series' arr-internal ID from its catalog
// external ID, for callers (the Orchestrator's post-completion move) that
// only have a cached tmdb_id and no arr_series_id yet.
func (m *Manager) LookupSeriesID(ctx context.Context, externalID int64) (int64, bool, error) {
	if m.series == nil {
		return 0, false, fmt.Errorf("series manager not configured")
	}
	return m.series.SeriesExistsByExternalID(ctx, externalID)
}

// LookupMovieID is LookupSeriesID's movie-manager twin.
func (m *Manager) LookupMovieID(ctx context.Context, externalID int64) (int64, bool, error) {
	if m.movies == nil {
		return 0, false, fmt.Errorf("movie manager not configured")
	}
	return m.movies.MovieExistsByExternalID(ctx, externalID)
}

// SeriesPath returns the library folder path arr has assigned to arrSeriesID.
func (m *Manager) SeriesPath(ctx context.Context, arrSeriesID int64) (string, error) {
	if m.series == nil {
		return "", fmt.Errorf("series manager not configured")
	}
	return m.series.SeriesPath(ctx, arrSeriesID)
}

// MoviePath is SeriesPath's movie-manager twin.
func (m *Manager) MoviePath(ctx context.Context, arrMovieID int64) (string, error) {
	if m.movies == nil {
		return "", fmt.Errorf("movie manager not configured")
	}
	return m.movies.MoviePath(ctx, arrMovieID)
}

func isAlreadyExists(err error) bool {
	return strings.Contains(err.Error(), "400")
}

func (m *Manager) rootFolder(ctx context.Context, c *Client, fallback string) string {
	folders, err := c.RootFolders(ctx)
	if err != nil || len(folders) == 0 {
		return fallback
	}
	return folders[0].Path
}

func (m *Manager) qualityProfileID(settingKey string) int {
	if m.store == nil {
		return defaultQualityProfileID
	}
	v, err := m.store.GetSetting(settingKey)
	if err != nil || v == "" {
		return defaultQualityProfileID
	}
	id, err := strconv.Atoi(v)
	if err != nil {
		return defaultQualityProfileID
	}
	return id
}

func (m *Manager) stampSeries(externalID, arrID int64) {
	if m.store == nil {
		return
	}
	_, _ = m.store.StampArrSeriesID(externalID, arrID)
}

func (m *Manager) stampMovie(externalID, arrID int64) {
	if m.store == nil {
		return
	}
	_, _ = m.store.StampArrMovieID(externalID, arrID)
}

// NotifyCompletion fires the appropriate rescan command after a file has
// been moved into the arr pair's library layout.
func (m *Manager) NotifyCompletion(ctx context.Context, task *model.Task, folderPath string) error {
	switch task.DetectMediaType() {
	case model.KindTV:
		if m.series == nil {
			return nil
		}
		return m.series.TriggerEpisodesScan(ctx, folderPath)
	default:
		if m.movies == nil {
			return nil
		}
		return m.movies.TriggerMoviesScan(ctx, folderPath)
	}
}
