package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/warpdl/warpbroker/internal/model"
)

// moveToArrPath relocates a completed download into the arr pair's library
// layout, returning the new destination path (empty if nothing moved). A
// no-op when no Arr Artifact Manager is configured or the task carries no
// media reference; an error when one is configured but the series/movie
// can't be resolved to a library folder, leaving the file at its original
// destination for the caller to log and move on from.
func (o *Orchestrator) moveToArrPath(ctx context.Context, task *model.Task) (string, error) {
	if o.arr == nil || task.MediaRef == nil {
		return "", nil
	}

	mediaType := task.DetectMediaType()
	externalID := task.MediaRef.ExternalID

	var folder string
	switch mediaType {
	case model.KindTV:
		arrID, err := o.resolveSeriesID(ctx, task, externalID)
		if err != nil {
			return "", err
		}
		seriesFolder, err := o.arr.SeriesPath(ctx, arrID)
		if err != nil {
			return "", fmt.Errorf("look up series path: %w", err)
		}
		season := task.MediaRef.Season
		if season < 1 {
			season = 1
		}
		folder = filepath.Join(seriesFolder, fmt.Sprintf("Season %02d", season))
	default:
		arrID, err := o.resolveMovieID(ctx, task, externalID)
		if err != nil {
			return "", err
		}
		movieFolder, err := o.arr.MoviePath(ctx, arrID)
		if err != nil {
			return "", fmt.Errorf("look up movie path: %w", err)
		}
		folder = movieFolder
	}

	targetPath := filepath.Join(folder, filepath.Base(task.Destination))
	if targetPath == task.Destination {
		return "", nil
	}

	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("create arr library folder: %w", err)
	}
	if err := os.Rename(task.Destination, targetPath); err != nil {
		if copyErr := copyThenRemove(task.Destination, targetPath); copyErr != nil {
			return "", fmt.Errorf("move completed file into library: %w", copyErr)
		}
	}

	// The rescan is best-effort: the file has already landed in the
	// library layout either way, and arr will pick it up on its own next
	// scheduled scan if this fails.
	if err := o.arr.NotifyCompletion(ctx, task, folder); err != nil {
		o.log.Warning("arr rescan for task %s: %v", task.ID, err)
	}
	return targetPath, nil
}

func (o *Orchestrator) resolveSeriesID(ctx context.Context, task *model.Task, externalID int64) (int64, error) {
	if task.ArrSeriesID != nil {
		return *task.ArrSeriesID, nil
	}
	id, ok, err := o.arr.LookupSeriesID(ctx, externalID)
	if err != nil {
		return 0, fmt.Errorf("look up series id: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("series for external id %d not found in library", externalID)
	}
	return id, nil
}

func (o *Orchestrator) resolveMovieID(ctx context.Context, task *model.Task, externalID int64) (int64, error) {
	if task.ArrMovieID != nil {
		return *task.ArrMovieID, nil
	}
	id, ok, err := o.arr.LookupMovieID(ctx, externalID)
	if err != nil {
		return 0, fmt.Errorf("look up movie id: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("movie for external id %d not found in library", externalID)
	}
	return id, nil
}

// copyThenRemove is os.Rename's cross-device fallback: copy the bytes to
// the new location, then remove the original once the copy is confirmed.
func copyThenRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
