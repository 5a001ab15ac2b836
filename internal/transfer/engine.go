// Package transfer implements the single-stream, resumable HTTP download
// engine: the component that actually moves bytes from a resolved direct
// URL onto disk, with resume-by-Range-header support and throttled
// progress reporting.
package transfer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/warpdl/warpbroker/pkg/warplib"
)

// progressInterval is how often the engine calls the caller's progress
// callback while a transfer is running.
const progressInterval = 250 * time.Millisecond

// idleConnsPerHost mirrors reqwest's pool_max_idle_per_host(10) default the
// reference engine configures explicitly.
const idleConnsPerHost = 10

// requestTimeout bounds one Download call's HTTP request, including reading
// the response body: the request context carries the timeout, so a transfer
// still running when it expires is cut off. It is applied per call via
// context.WithTimeout so that a resumed retry after a dropped connection
// gets its own fresh budget instead of inheriting whatever time the first
// attempt used up.
const requestTimeout = 300 * time.Second

// Progress is one throttled snapshot of an in-flight transfer.
type Progress struct {
	Downloaded int64
	Total      int64
	Speed      float64 // bytes/sec, computed over the current session only
	ETA        float64 // seconds
	Percentage float64
}

// ProgressFunc receives throttled progress snapshots during a transfer.
type ProgressFunc func(Progress)

// Engine downloads a single URL to a single destination file, resuming
// from whatever bytes already exist at that path.
type Engine struct {
	client *http.Client
}

// New builds an Engine with a connection pool and per-request timeout
// tuned for large sequential transfers.
func New() *Engine {
	return &Engine{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: idleConnsPerHost,
			},
		},
	}
}

// Result is what a completed (or already-complete) transfer reports back.
type Result struct {
	TotalDownloaded int64
}

// Download fetches url into destination, resuming from any bytes already
// present there. onProgress may be nil. The transfer stops as soon as ctx
// is cancelled, leaving the partial file in place for a future resume.
func (e *Engine) Download(ctx context.Context, rawURL, destination string, headers map[string]string, onProgress ProgressFunc) (Result, error) {
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return Result{}, fmt.Errorf("create destination directory: %w", err)
	}

	initialBytes := int64(0)
	if info, err := os.Stat(destination); err == nil {
		initialBytes = info.Size()
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	var hdrs warplib.Headers
	for k, v := range headers {
		hdrs.Update(k, v)
	}
	hdrs.InitOrUpdate(warplib.USER_AGENT_KEY, warplib.DEF_USER_AGENT)
	hdrs.Set(req.Header)
	if initialBytes > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", initialBytes))
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
		// The file is already fully present; nothing left to do.
		return Result{TotalDownloaded: initialBytes}, nil
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return Result{}, fmt.Errorf("http error: %d", resp.StatusCode)
	}

	contentLength := resp.ContentLength
	if contentLength < 0 {
		contentLength = 0
	}

	totalSize := contentLength
	if initialBytes > 0 && resp.StatusCode == http.StatusPartialContent {
		totalSize = initialBytes + contentLength
	}

	// The server may ignore the Range header and return the full body with
	// a 200. In that case there is no way to splice the new stream onto
	// the partial file already on disk, so restart from byte zero.
	resumePosition := initialBytes
	if initialBytes > 0 && resp.StatusCode == http.StatusOK {
		resumePosition = 0
	}

	flags := os.O_WRONLY | os.O_CREATE
	if resumePosition == 0 {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}
	file, err := os.OpenFile(destination, flags, 0o644)
	if err != nil {
		return Result{}, fmt.Errorf("open destination: %w", err)
	}
	defer file.Close()

	downloaded, err := e.copyWithProgress(ctx, file, resp.Body, resumePosition, totalSize, onProgress)
	if err != nil {
		return Result{}, err
	}
	if err := file.Sync(); err != nil {
		return Result{}, fmt.Errorf("flush destination: %w", err)
	}

	if onProgress != nil {
		onProgress(Progress{
			Downloaded: downloaded,
			Total:      totalSize,
			ETA:        0,
			Percentage: 100,
		})
	}
	return Result{TotalDownloaded: downloaded}, nil
}

func (e *Engine) copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, resumePosition, totalSize int64, onProgress ProgressFunc) (int64, error) {
	buf := make([]byte, 32*1024)
	downloaded := resumePosition
	start := time.Now()
	lastUpdate := start

	for {
		if err := ctx.Err(); err != nil {
			return downloaded, err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return downloaded, fmt.Errorf("write chunk: %w", writeErr)
			}
			downloaded += int64(n)

			if onProgress != nil && time.Since(lastUpdate) >= progressInterval {
				onProgress(snapshot(downloaded, totalSize, resumePosition, start))
				lastUpdate = time.Now()
			}
		}
		if readErr == io.EOF {
			return downloaded, nil
		}
		if readErr != nil {
			return downloaded, fmt.Errorf("read chunk: %w", readErr)
		}
	}
}

func snapshot(downloaded, totalSize, resumePosition int64, start time.Time) Progress {
	elapsed := time.Since(start).Seconds()
	speed := 0.0
	if elapsed > 0 {
		speed = float64(downloaded-resumePosition) / elapsed
	}
	eta := 0.0
	if speed > 0 && totalSize > downloaded {
		eta = float64(totalSize-downloaded) / speed
	}
	percentage := 0.0
	if totalSize > 0 {
		percentage = float64(downloaded) / float64(totalSize) * 100
	}
	return Progress{
		Downloaded: downloaded,
		Total:      totalSize,
		Speed:      speed,
		ETA:        eta,
		Percentage: percentage,
	}
}
