package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/warpdl/warpbroker/internal/model"
)

// UpsertMediaItem inserts or replaces the library row for item.ExternalID.
func (s *Store) UpsertMediaItem(item *model.MediaItem) error {
	now := time.Now().Format(time.RFC3339)
	createdAt := now
	if existing, err := s.GetMediaItem(item.ExternalID); err == nil {
		createdAt = existing.CreatedAt.Format(time.RFC3339)
	}
	_, err := s.db.Exec(`INSERT INTO media_items
		(external_id, kind, title, year, arr_kind, arr_id, arr_path, monitored, has_file, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(external_id) DO UPDATE SET
			kind=excluded.kind, title=excluded.title, year=excluded.year,
			arr_kind=excluded.arr_kind, arr_id=excluded.arr_id, arr_path=excluded.arr_path,
			monitored=excluded.monitored, has_file=excluded.has_file, updated_at=excluded.updated_at`,
		item.ExternalID, string(item.Kind), item.Title, item.Year,
		nullString(string(item.ArrKind)), item.ArrID, nullString(item.ArrPath),
		item.Monitored, item.HasFile, createdAt, now,
	)
	if err != nil {
		return fmt.Errorf("upsert media item %d: %w", item.ExternalID, err)
	}
	return nil
}

// GetMediaItem returns the library row for externalID.
func (s *Store) GetMediaItem(externalID int64) (*model.MediaItem, error) {
	row := s.db.QueryRow(`SELECT external_id, kind, title, year, arr_kind, arr_id, arr_path,
		monitored, has_file, created_at, updated_at FROM media_items WHERE external_id = ?`, externalID)

	var item model.MediaItem
	var arrKind sql.NullString
	var arrPath sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&item.ExternalID, &item.Kind, &item.Title, &item.Year,
		&arrKind, &item.ArrID, &arrPath, &item.Monitored, &item.HasFile,
		&createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get media item %d: %w", externalID, err)
	}
	item.ArrKind = model.ArrKind(arrKind.String)
	item.ArrPath = arrPath.String
	item.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	item.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &item, nil
}

// UpsertMediaEpisode inserts or replaces one episode row.
func (s *Store) UpsertMediaEpisode(ep *model.MediaEpisode) error {
	now := time.Now().Format(time.RFC3339)
	_, err := s.db.Exec(`INSERT INTO media_episodes
		(external_id, season, episode, title, arr_episode_id, has_file, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(external_id, season, episode) DO UPDATE SET
			title=excluded.title, arr_episode_id=excluded.arr_episode_id,
			has_file=excluded.has_file, updated_at=excluded.updated_at`,
		ep.ExternalID, ep.Season, ep.Episode, ep.Title, ep.ArrEpisodeID, ep.HasFile, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert media episode %d S%02dE%02d: %w", ep.ExternalID, ep.Season, ep.Episode, err)
	}
	return nil
}

// EpisodesForSeries returns every tracked episode for externalID.
func (s *Store) EpisodesForSeries(externalID int64) ([]*model.MediaEpisode, error) {
	rows, err := s.db.Query(`SELECT external_id, season, episode, title, arr_episode_id, has_file,
		created_at, updated_at FROM media_episodes WHERE external_id = ? ORDER BY season, episode`, externalID)
	if err != nil {
		return nil, fmt.Errorf("episodes for series %d: %w", externalID, err)
	}
	defer rows.Close()

	var out []*model.MediaEpisode
	for rows.Next() {
		var ep model.MediaEpisode
		var createdAt, updatedAt string
		if err := rows.Scan(&ep.ExternalID, &ep.Season, &ep.Episode, &ep.Title,
			&ep.ArrEpisodeID, &ep.HasFile, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan media episode: %w", err)
		}
		ep.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		ep.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		out = append(out, &ep)
	}
	return out, rows.Err()
}
