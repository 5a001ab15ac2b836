package orchestrator

import (
	"fmt"
	"path/filepath"

	"github.com/warpdl/warpbroker/internal/model"
	"github.com/warpdl/warpbroker/pkg/warplib"
)

// sanitizeFilename replaces characters that are illegal or awkward in a
// path component with an underscore and trims surrounding whitespace.
func sanitizeFilename(name string) string {
	return warplib.SanitizeFilename(name)
}

// buildDestinationPath assembles a task's on-disk destination under
// rootDir, laying movies out as "[Collection/]Title (Year)/filename" and TV
// as "Series/Season XX/filename". A task with no media reference, or one
// whose detected media type isn't movie or tv, just lands at the root.
func buildDestinationPath(filename string, mediaType model.MediaKind, ref *model.MediaRef, rootDir string) string {
	if ref == nil {
		return filepath.Join(rootDir, filename)
	}

	switch mediaType {
	case model.KindMovie:
		var movieFolder string
		if ref.Title != "" {
			if ref.Year > 0 {
				movieFolder = fmt.Sprintf("%s (%d)", sanitizeFilename(ref.Title), ref.Year)
			} else {
				movieFolder = sanitizeFilename(ref.Title)
			}
		} else {
			movieFolder = "Unknown Movie"
		}
		if ref.CollectionName != "" {
			return filepath.Join(rootDir, sanitizeFilename(ref.CollectionName), movieFolder, filename)
		}
		return filepath.Join(rootDir, movieFolder, filename)

	case model.KindTV:
		seriesFolder := "Unknown Series"
		if ref.Title != "" {
			seriesFolder = sanitizeFilename(ref.Title)
		}
		seasonFolder := "Season 01"
		if ref.Season > 0 {
			seasonFolder = fmt.Sprintf("Season %02d", ref.Season)
		}
		return filepath.Join(rootDir, seriesFolder, seasonFolder, filename)

	default:
		return filepath.Join(rootDir, filename)
	}
}

// cleanFilename renames a submitted filename to the arr pair's expected
// layout when enough metadata is available: "Title - S01E02.ext" for an
// episode, "Title (Year).ext" for a movie. A reference with no title, or a
// TV reference missing its season or its episode, leaves the original
// filename alone.
// This does not attempt to backfill a missing title from an indexer, so a
// task submitted without one keeps whatever name the host reported.
func cleanFilename(original string, mediaType model.MediaKind, ref *model.MediaRef) string {
	if ref == nil || ref.Title == "" {
		return original
	}
	ext := filepath.Ext(original)
	switch mediaType {
	case model.KindTV:
		if ref.Season > 0 && ref.Episode > 0 {
			return fmt.Sprintf("%s - S%02dE%02d%s", sanitizeFilename(ref.Title), ref.Season, ref.Episode, ext)
		}
	case model.KindMovie:
		if ref.Year > 0 {
			return fmt.Sprintf("%s (%d)%s", sanitizeFilename(ref.Title), ref.Year, ext)
		}
		return fmt.Sprintf("%s%s", sanitizeFilename(ref.Title), ext)
	}
	return original
}
