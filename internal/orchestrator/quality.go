package orchestrator

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	tsSourceRe  = regexp.MustCompile(`(?i)\b(ts|telesync|telecine)\b`)
	tcSourceRe  = regexp.MustCompile(`(?i)\b(tc|telecine)\b`)
	dvdSourceRe = regexp.MustCompile(`(?i)\b(dvd|dvdrip|dvd5|dvd9)\b`)
)

// detectResolution reports the resolution tag embedded in a filename, if any.
func detectResolution(filename string) string {
	fl := strings.ToLower(filename)
	switch {
	case strings.Contains(fl, "2160p") || strings.Contains(fl, "4k") || strings.Contains(fl, "uhd"):
		return "2160p"
	case strings.Contains(fl, "1080p") || strings.Contains(fl, "1080i"):
		return "1080p"
	case strings.Contains(fl, "720p"):
		return "720p"
	default:
		return ""
	}
}

// detectSource reports the capture/encode source tag embedded in a
// filename, if any, using word-boundary matching for the short tokens
// (ts, tc, dvd) that would otherwise false-positive inside ordinary words.
func detectSource(filename string) string {
	fl := strings.ToLower(filename)
	switch {
	case strings.Contains(fl, "remux"):
		return "Remux"
	case strings.Contains(fl, "bluray") || strings.Contains(fl, "blu-ray"):
		return "BluRay"
	case strings.Contains(fl, "bdrip") || strings.Contains(fl, "brrip"):
		return "BDRip"
	case strings.Contains(fl, "web-dl") || strings.Contains(fl, "webdl"):
		return "WebDL"
	case strings.Contains(fl, "webrip") || strings.Contains(fl, "web-rip"):
		return "WEBRip"
	case strings.Contains(fl, "hdtv") || strings.Contains(fl, "pdtv"):
		return "HDTV"
	case dvdSourceRe.MatchString(fl):
		return "DVDRip"
	case tsSourceRe.MatchString(fl) || tcSourceRe.MatchString(fl):
		return "TS"
	case strings.Contains(fl, "cam"):
		return "CAM"
	default:
		return ""
	}
}

// qualityName combines a detected source and resolution into the single
// label stored on Task.Quality, e.g. "WebDL-1080p" or "Remux-2160p".
// Codec, audio, HDR and other finer-grained attributes the reference
// parser also extracts are not tracked here: Task carries only Quality
// and Resolution, so there is nowhere to put them.
func qualityName(source, resolution string) string {
	src := source
	if src == "" {
		src = "Unknown"
	}
	if resolution == "" {
		if src == "Unknown" {
			return "Unknown"
		}
		return fmt.Sprintf("%s-Unknown", src)
	}
	return fmt.Sprintf("%s-%s", src, resolution)
}
