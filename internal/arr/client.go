// Package arr talks to the downstream arr pair (a TV-series manager and a
// movie manager, both exposing Sonarr/Radarr-shaped HTTP APIs) to keep
// their libraries in sync with what the broker downloads and to trigger
// the rescans that make a completed download show up immediately.
package arr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/warpdl/warpbroker/internal/config"
)

// RootFolder is one arr-reported library root.
type RootFolder struct {
	Path string `json:"path"`
}

// Client is a thin REST client over one arr instance's v3 API.
type Client struct {
	cfg  config.ArrConfig
	http *http.Client
}

func NewClient(cfg config.ArrConfig) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.cfg.URL, "/") + path
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("arr request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("arr api error: http error: %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode arr response: %w", err)
	}
	return nil
}

// SeriesExistsByExternalID looks up a series by its catalog external ID,
// returning the arr-internal ID on a hit and false on a clean miss.
func (c *Client) SeriesExistsByExternalID(ctx context.Context, externalID int64) (int64, bool, error) {
	var series []struct {
		ID     int64 `json:"id"`
		TmdbID int64 `json:"tmdbId"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v3/series?tmdbId=%d", externalID), nil, &series); err != nil {
		return 0, false, err
	}
	if len(series) == 0 {
		return 0, false, nil
	}
	return series[0].ID, true, nil
}

// MovieExistsByExternalID is SeriesExistsByExternalID's movie-manager twin.
func (c *Client) MovieExistsByExternalID(ctx context.Context, externalID int64) (int64, bool, error) {
	var movies []struct {
		ID     int64 `json:"id"`
		TmdbID int64 `json:"tmdbId"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v3/movie?tmdbId=%d", externalID), nil, &movies); err != nil {
		return 0, false, err
	}
	if len(movies) == 0 {
		return 0, false, nil
	}
	return movies[0].ID, true, nil
}

// RootFolders returns the arr instance's configured library roots.
func (c *Client) RootFolders(ctx context.Context) ([]RootFolder, error) {
	var folders []RootFolder
	if err := c.do(ctx, http.MethodGet, "/api/v3/rootfolder", nil, &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

// AddSeries registers a new series by its catalog external ID. Returns the
// new arr-internal ID.
func (c *Client) AddSeries(ctx context.Context, externalID int64, qualityProfileID int, rootFolder string) (int64, error) {
	body := map[string]any{
		"tmdbId":           externalID,
		"qualityProfileId": qualityProfileID,
		"rootFolderPath":   rootFolder,
		"monitored":        true,
		"addOptions":       map[string]any{"searchForMissingEpisodes": false},
	}
	var out struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v3/series", body, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// AddMovie is AddSeries's movie-manager twin.
func (c *Client) AddMovie(ctx context.Context, externalID int64, qualityProfileID int, rootFolder string) (int64, error) {
	body := map[string]any{
		"tmdbId":           externalID,
		"qualityProfileId": qualityProfileID,
		"rootFolderPath":   rootFolder,
		"monitored":        true,
		"addOptions":       map[string]any{"searchForMovie": false},
	}
	var out struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v3/movie", body, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// SeriesPath returns the library folder path arr has assigned to a series
// by its arr-internal ID.
func (c *Client) SeriesPath(ctx context.Context, arrSeriesID int64) (string, error) {
	var out struct {
		Path string `json:"path"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v3/series/%d", arrSeriesID), nil, &out); err != nil {
		return "", err
	}
	return out.Path, nil
}

// MoviePath is SeriesPath's movie-manager twin.
func (c *Client) MoviePath(ctx context.Context, arrMovieID int64) (string, error) {
	var out struct {
		Path string `json:"path"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v3/movie/%d", arrMovieID), nil, &out); err != nil {
		return "", err
	}
	return out.Path, nil
}

// TriggerEpisodesScan asks the series manager to rescan a path for
// downloaded episodes so it picks up a freshly moved file without waiting
// for its own scheduled scan.
func (c *Client) TriggerEpisodesScan(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodPost, "/api/v3/command", map[string]string{
		"name": "DownloadedEpisodesScan",
		"path": path,
	}, nil)
}

// TriggerMoviesScan is TriggerEpisodesScan's movie-manager twin.
func (c *Client) TriggerMoviesScan(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodPost, "/api/v3/command", map[string]string{
		"name": "DownloadedMoviesScan",
		"path": path,
	}, nil)
}
