package warplib

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Size unit constants for byte conversions.
const (
	// B represents one byte.
	B int64 = 1
	// KB represents one kilobyte (1024 bytes).
	KB = 1024 * B
	// MB represents one megabyte (1024 kilobytes).
	MB = 1024 * KB
	// GB represents one gigabyte (1024 megabytes).
	GB = 1024 * MB
	// TB represents one terabyte (1024 gigabytes).
	TB = 1024 * GB
)

const (
	// DEF_USER_AGENT is the User-Agent header the transfer engine sends on
	// download requests that carry none of their own.
	DEF_USER_AGENT = "Warp/1.0"

	// DefaultFileMode is the permission mode for created files.
	DefaultFileMode = 0644

	// DefaultDirMode is the permission mode for created directories.
	DefaultDirMode = 0755
)

// GetPath joins a directory and file name using the OS-specific path separator.
func GetPath(directory, file string) string {
	return filepath.Join(directory, file)
}

// invalidPathChars are characters disallowed in destination filenames/paths,
// replaced with an underscore.
var invalidPathChars = []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}

// SanitizeFilename replaces characters invalid on common filesystems with
// an underscore and trims surrounding whitespace. Used when assembling
// canonical filenames and destination path segments.
func SanitizeFilename(name string) string {
	if name == "" {
		return name
	}

	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}

	for _, char := range invalidPathChars {
		name = strings.ReplaceAll(name, char, "_")
	}

	var b strings.Builder
	for _, r := range name {
		if r >= 32 {
			b.WriteRune(r)
		}
	}
	name = strings.TrimSpace(b.String())

	if name == "" {
		name = "download"
	}
	return name
}
