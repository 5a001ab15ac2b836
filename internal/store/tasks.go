package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/warpdl/warpbroker/internal/model"
)

const taskColumns = `id, original_url, resolved_url, filename, destination, state, size,
	downloaded, progress, speed, eta, host, category, priority, retry_count,
	wait_until, error_message, created_at, started_at, completed_at,
	url_resolved_at, url_expires_at, needs_url_refresh, batch_id, batch_name,
	host_file_code, external_id, media_kind, media_title, media_year,
	media_season, media_episode, arr_series_id, arr_movie_id, quality, resolution,
	media_collection`

// UpsertTask writes the full row for t, inserting or replacing by ID.
func (s *Store) UpsertTask(t *model.Task) error {
	_, err := s.db.Exec(`INSERT INTO tasks (`+taskColumns+`) VALUES (
		?,?,?,?,?,?,?, ?,?,?,?,?,?,?,?, ?,?,?,?,?, ?,?,?,?,?, ?,?,?,?,?, ?,?,?,?,?,?, ?
	) ON CONFLICT(id) DO UPDATE SET
		original_url=excluded.original_url, resolved_url=excluded.resolved_url,
		filename=excluded.filename, destination=excluded.destination,
		state=excluded.state, size=excluded.size, downloaded=excluded.downloaded,
		progress=excluded.progress, speed=excluded.speed, eta=excluded.eta,
		host=excluded.host, category=excluded.category, priority=excluded.priority,
		retry_count=excluded.retry_count, wait_until=excluded.wait_until,
		error_message=excluded.error_message, started_at=excluded.started_at,
		completed_at=excluded.completed_at, url_resolved_at=excluded.url_resolved_at,
		url_expires_at=excluded.url_expires_at, needs_url_refresh=excluded.needs_url_refresh,
		batch_id=excluded.batch_id, batch_name=excluded.batch_name,
		host_file_code=excluded.host_file_code, external_id=excluded.external_id,
		media_kind=excluded.media_kind, media_title=excluded.media_title,
		media_year=excluded.media_year, media_season=excluded.media_season,
		media_episode=excluded.media_episode, arr_series_id=excluded.arr_series_id,
		arr_movie_id=excluded.arr_movie_id, quality=excluded.quality,
		resolution=excluded.resolution, media_collection=excluded.media_collection`,
		taskValues(t)...,
	)
	if err != nil {
		return fmt.Errorf("upsert task %s: %w", t.ID, err)
	}
	return nil
}

// UpdateTaskState narrowly updates only a task's state column.
func (s *Store) UpdateTaskState(id string, state model.State) error {
	res, err := s.db.Exec(`UPDATE tasks SET state = ? WHERE id = ?`, string(state), id)
	if err != nil {
		return fmt.Errorf("update task %s state: %w", id, err)
	}
	return checkAffected(res, id)
}

// UpdateTaskProgress narrowly updates only a task's progress-related
// columns, avoiding a full-row rewrite on every tick.
func (s *Store) UpdateTaskProgress(id string, downloaded, size int64, speed, eta, progress float64) error {
	res, err := s.db.Exec(
		`UPDATE tasks SET downloaded=?, size=?, speed=?, eta=?, progress=? WHERE id=?`,
		downloaded, size, speed, eta, progress, id,
	)
	if err != nil {
		return fmt.Errorf("update task %s progress: %w", id, err)
	}
	return checkAffected(res, id)
}

// StampArrSeriesID records arr_series_id on every task sharing externalID,
// used after the Arr Artifact Manager resolves a series to an arr-internal
// ID (whether newly created or already monitored).
func (s *Store) StampArrSeriesID(externalID, arrSeriesID int64) (int64, error) {
	res, err := s.db.Exec(`UPDATE tasks SET arr_series_id = ? WHERE external_id = ?`, arrSeriesID, externalID)
	if err != nil {
		return 0, fmt.Errorf("stamp arr_series_id for external id %d: %w", externalID, err)
	}
	return res.RowsAffected()
}

// StampArrMovieID is StampArrSeriesID's movie counterpart.
func (s *Store) StampArrMovieID(externalID, arrMovieID int64) (int64, error) {
	res, err := s.db.Exec(`UPDATE tasks SET arr_movie_id = ? WHERE external_id = ?`, arrMovieID, externalID)
	if err != nil {
		return 0, fmt.Errorf("stamp arr_movie_id for external id %d: %w", externalID, err)
	}
	return res.RowsAffected()
}

// BatchUpdateStates atomically transitions every task in ids to state in a
// single statement, returning the number of rows affected.
func (s *Store) BatchUpdateStates(ids []string, state model.State) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, string(state))
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.db.Exec(`UPDATE tasks SET state = ? WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("batch update states: %w", err)
	}
	return res.RowsAffected()
}

// GetTask returns the task with the given ID.
func (s *Store) GetTask(id string) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

// DeleteTask removes a task row. Returns ErrNotFound if no row matched.
func (s *Store) DeleteTask(id string) error {
	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return checkAffected(res, id)
}

// TasksByStates returns every task whose state is one of states.
func (s *Store) TasksByStates(states []model.State) ([]*model.Task, error) {
	if len(states) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(states))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(states))
	for i, st := range states {
		args[i] = string(st)
	}
	rows, err := s.db.Query(`SELECT `+taskColumns+` FROM tasks WHERE state IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("tasks by states: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// TasksByBatch returns every task sharing batchID.
func (s *Store) TasksByBatch(batchID string) ([]*model.Task, error) {
	rows, err := s.db.Query(`SELECT `+taskColumns+` FROM tasks WHERE batch_id = ?`, batchID)
	if err != nil {
		return nil, fmt.Errorf("tasks by batch %s: %w", batchID, err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// TasksByExternalID returns every task referencing externalID.
func (s *Store) TasksByExternalID(externalID int64) ([]*model.Task, error) {
	rows, err := s.db.Query(`SELECT `+taskColumns+` FROM tasks WHERE external_id = ?`, externalID)
	if err != nil {
		return nil, fmt.Errorf("tasks by external id %d: %w", externalID, err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// TaskByHostFileCode returns the task matching host and hostFileCode, if any.
func (s *Store) TaskByHostFileCode(host, hostFileCode string) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE host = ? AND host_file_code = ?`, host, hostFileCode)
	t, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("task by host file code: %w", err)
	}
	return t, nil
}

// ListPage is one page of a paginated task listing. Total reflects the
// pre-expansion row count; Tasks may exceed Limit because every batch
// observed in the page window is fetched whole.
type ListPage struct {
	Tasks []*model.Task
	Total int64
}

// ListTasksPaginated returns page (1-indexed) of size limit, ordered active
// states first then by created_at DESC, expanded so no batch is split
// across pages: for every batch_id seen in the page window, every row of
// that batch is appended to the result.
func (s *Store) ListTasksPaginated(page, limit int) (*ListPage, error) {
	if page < 1 {
		page = 1
	}
	var total int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM tasks`).Scan(&total); err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}

	offset := (page - 1) * limit
	rows, err := s.db.Query(`SELECT `+taskColumns+` FROM tasks
		ORDER BY
			CASE state
				WHEN 'DOWNLOADING' THEN 0
				WHEN 'STARTING' THEN 1
				WHEN 'QUEUED' THEN 2
				WHEN 'PAUSED' THEN 3
				WHEN 'WAITING' THEN 4
				ELSE 5
			END,
			created_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list tasks page: %w", err)
	}
	windowTasks, err := scanTasks(rows)
	if err != nil {
		return nil, err
	}

	seenBatches := make(map[string]bool)
	var batchIDs []string
	byID := make(map[string]*model.Task, len(windowTasks))
	var order []string
	for _, t := range windowTasks {
		byID[t.ID] = t
		order = append(order, t.ID)
		if t.BatchID != "" && !seenBatches[t.BatchID] {
			seenBatches[t.BatchID] = true
			batchIDs = append(batchIDs, t.BatchID)
		}
	}

	for _, batchID := range batchIDs {
		extra, err := s.TasksByBatch(batchID)
		if err != nil {
			return nil, err
		}
		for _, t := range extra {
			if _, exists := byID[t.ID]; !exists {
				byID[t.ID] = t
				order = append(order, t.ID)
			}
		}
	}

	out := make([]*model.Task, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return &ListPage{Tasks: out, Total: total}, nil
}

// StatusCounts returns the number of tasks in each state.
func (s *Store) StatusCounts() (map[model.State]int, error) {
	rows, err := s.db.Query(`SELECT state, COUNT(*) FROM tasks GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	defer rows.Close()
	counts := make(map[model.State]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[model.State(state)] = count
	}
	return counts, rows.Err()
}

// BatchSummaries aggregates every batch in the database: counts per state
// bucket, summed size/downloaded, and a reduced aggregate state.
func (s *Store) BatchSummaries() ([]*model.BatchSummary, error) {
	rows, err := s.db.Query(`SELECT
			batch_id, batch_name,
			COUNT(*) AS total,
			SUM(CASE WHEN state='COMPLETED' THEN 1 ELSE 0 END) AS completed,
			SUM(CASE WHEN state='FAILED' THEN 1 ELSE 0 END) AS failed,
			SUM(CASE WHEN state IN ('DOWNLOADING','STARTING') THEN 1 ELSE 0 END) AS downloading,
			SUM(CASE WHEN state='PAUSED' THEN 1 ELSE 0 END) AS paused,
			SUM(CASE WHEN state IN ('QUEUED','WAITING') THEN 1 ELSE 0 END) AS queued,
			COALESCE(SUM(size),0), COALESCE(SUM(downloaded),0)
		FROM tasks
		WHERE batch_id IS NOT NULL
		GROUP BY batch_id, batch_name`)
	if err != nil {
		return nil, fmt.Errorf("batch summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*model.BatchSummary
	for rows.Next() {
		var (
			batchID                                               string
			batchName                                             sql.NullString
			total, completed, failed, downloading, paused, queued int64
			totalSize, downloadedSize                              int64
		)
		if err := rows.Scan(&batchID, &batchName, &total, &completed, &failed,
			&downloading, &paused, &queued, &totalSize, &downloadedSize); err != nil {
			return nil, fmt.Errorf("scan batch summary: %w", err)
		}

		var aggregate model.State
		switch {
		case failed > 0:
			aggregate = model.Failed
		case downloading > 0:
			aggregate = model.Downloading
		case paused > 0 && completed < total:
			aggregate = model.Paused
		case total > 0 && completed == total:
			aggregate = model.Completed
		default:
			aggregate = model.Queued
		}

		summaries = append(summaries, &model.BatchSummary{
			BatchID:   batchID,
			BatchName: batchName.String,
			TaskCount: int(total),
			ByState: map[model.State]int{
				model.Completed:   int(completed),
				model.Failed:      int(failed),
				model.Downloading: int(downloading),
				model.Paused:      int(paused),
				model.Queued:      int(queued),
			},
			TotalSize:       totalSize,
			TotalDownloaded: downloadedSize,
			AggregateState:  aggregate,
		})
	}
	return summaries, rows.Err()
}

func checkAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func taskValues(t *model.Task) []interface{} {
	var resolvedAt, expiresAt interface{}
	if t.URLMetadata != nil {
		resolvedAt = timeToNull(&t.URLMetadata.ResolvedAt)
		expiresAt = timeToNull(&t.URLMetadata.ExpiresAt)
	}
	var externalID, year, season, episode interface{}
	var kind, title, collection string
	if t.MediaRef != nil {
		externalID = t.MediaRef.ExternalID
		kind = string(t.MediaRef.Kind)
		title = t.MediaRef.Title
		year = t.MediaRef.Year
		season = t.MediaRef.Season
		episode = t.MediaRef.Episode
		collection = t.MediaRef.CollectionName
	}
	return []interface{}{
		t.ID, t.OriginalURL, nullString(t.ResolvedURL), t.Filename, t.Destination,
		string(t.State), t.Size, t.Downloaded, t.Progress, t.Speed, t.ETA,
		t.Host, t.Category, t.Priority, t.RetryCount,
		timeToNull(t.WaitUntil), nullString(t.ErrorMessage),
		t.CreatedAt.Format(time.RFC3339), timeToNull(t.StartedAt), timeToNull(t.CompletedAt),
		resolvedAt, expiresAt, t.NeedsURLRefresh,
		nullString(t.BatchID), nullString(t.BatchName), nullString(t.HostFileCode),
		externalID, nullString(kind), nullString(title), year, season, episode,
		nullInt64Ptr(t.ArrSeriesID), nullInt64Ptr(t.ArrMovieID),
		nullString(t.Quality), nullString(t.Resolution), nullString(collection),
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*model.Task, error) {
	var (
		t                                   model.Task
		resolvedURL, errorMessage           sql.NullString
		waitUntil, startedAt, completedAt   sql.NullString
		urlResolvedAt, urlExpiresAt         sql.NullString
		batchID, batchName, hostFileCode    sql.NullString
		externalID, year, season, episode   sql.NullInt64
		mediaKind, mediaTitle               sql.NullString
		arrSeriesID, arrMovieID             sql.NullInt64
		quality, resolution                 sql.NullString
		mediaCollection                     sql.NullString
		needsRefresh                        bool
		createdAt                           string
	)
	if err := row.Scan(
		&t.ID, &t.OriginalURL, &resolvedURL, &t.Filename, &t.Destination,
		&t.State, &t.Size, &t.Downloaded, &t.Progress, &t.Speed, &t.ETA,
		&t.Host, &t.Category, &t.Priority, &t.RetryCount,
		&waitUntil, &errorMessage, &createdAt, &startedAt, &completedAt,
		&urlResolvedAt, &urlExpiresAt, &needsRefresh,
		&batchID, &batchName, &hostFileCode,
		&externalID, &mediaKind, &mediaTitle, &year, &season, &episode,
		&arrSeriesID, &arrMovieID, &quality, &resolution, &mediaCollection,
	); err != nil {
		return nil, err
	}

	t.ResolvedURL = resolvedURL.String
	t.ErrorMessage = errorMessage.String
	t.BatchID = batchID.String
	t.BatchName = batchName.String
	t.HostFileCode = hostFileCode.String
	t.Quality = quality.String
	t.Resolution = resolution.String
	t.NeedsURLRefresh = needsRefresh
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	t.WaitUntil = parseNullTime(waitUntil)
	t.StartedAt = parseNullTime(startedAt)
	t.CompletedAt = parseNullTime(completedAt)
	t.ArrSeriesID = nullInt64ToPtr(arrSeriesID)
	t.ArrMovieID = nullInt64ToPtr(arrMovieID)

	if urlResolvedAt.Valid || urlExpiresAt.Valid {
		t.URLMetadata = &model.UrlMetadata{}
		if ts := parseNullTime(urlResolvedAt); ts != nil {
			t.URLMetadata.ResolvedAt = *ts
		}
		if ts := parseNullTime(urlExpiresAt); ts != nil {
			t.URLMetadata.ExpiresAt = *ts
		}
	}

	if externalID.Valid {
		t.MediaRef = &model.MediaRef{
			ExternalID:     externalID.Int64,
			Kind:           model.MediaKind(mediaKind.String),
			Title:          mediaTitle.String,
			Year:           int(year.Int64),
			Season:         int(season.Int64),
			Episode:        int(episode.Int64),
			CollectionName: mediaCollection.String,
		}
	}

	return &t, nil
}

func scanTasks(rows *sql.Rows) ([]*model.Task, error) {
	var out []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func timeToNull(t *time.Time) interface{} {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339)
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &ts
}

func nullInt64Ptr(p *int64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func nullInt64ToPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
