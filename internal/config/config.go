// Package config holds the broker's typed configuration surface. It does
// not read files or environment variables; the caller assembles a Config
// (or takes DefaultConfig and overrides fields) and hands it to internal/app.
package config

import "time"

// ServerConfig controls the push endpoint's listen address.
type ServerConfig struct {
	Host string
	Port int
}

// DownloadsConfig controls where files land and how many transfer
// concurrently.
type DownloadsConfig struct {
	Directory string
	MaxConcurrent int

	// SegmentsPerDownload is informational only: the transfer engine is
	// single-stream. Retained so the config shape matches what operators
	// of the reference deployment already expect.
	SegmentsPerDownload int
}

// HostConfig holds the file-locker host credentials and session hints.
type HostConfig struct {
	Email             string
	Password          string
	PreferSecondaryAPI bool
	SessionID         string
}

// ArrConfig describes one downstream arr pair member (series or movie
// manager).
type ArrConfig struct {
	Enabled    bool
	URL        string
	APIKey     string
	AutoImport bool
}

// IndexerConfig controls the optional search/metadata indexer integration.
// The indexer itself is out of scope; this is its connection contract.
type IndexerConfig struct {
	Enabled bool
	APIKey  string
}

// RetryConfig controls the exponential backoff schedule used when a task is
// moved to Waiting after a retryable failure.
type RetryConfig struct {
	MaxRetries   int
	BaseDelayMs  int64
	MaxDelayMs   int64
	MaxDelaySecs int64
}

// Config is the full configuration surface the broker core depends on.
type Config struct {
	Server    ServerConfig
	Downloads DownloadsConfig
	Host      HostConfig
	Series    ArrConfig
	Movies    ArrConfig
	Indexer   IndexerConfig
	Retry     RetryConfig
}

// DefaultRetryConfig mirrors the reference deployment's defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		BaseDelayMs:  1000,
		MaxDelayMs:   60000,
		MaxDelaySecs: 300,
	}
}

// DefaultConfig returns a Config with every section at its documented
// default. Host, Series, Movies and Indexer credentials are left empty;
// the caller must populate them before use.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Downloads: DownloadsConfig{
			Directory:           "./downloads",
			MaxConcurrent:       3,
			SegmentsPerDownload: 1,
		},
		Retry: DefaultRetryConfig(),
	}
}

// RetryDelay computes the exponential backoff delay for a given retry
// count, capped at MaxDelayMs.
func (r RetryConfig) RetryDelay(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	delay := r.BaseDelayMs
	for i := 1; i < retryCount; i++ {
		delay *= 2
		if delay >= r.MaxDelayMs {
			delay = r.MaxDelayMs
			break
		}
	}
	return time.Duration(delay) * time.Millisecond
}
