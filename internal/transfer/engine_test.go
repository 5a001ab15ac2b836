package transfer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func newRangeServer(t *testing.T, content []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		if r.Header.Get("Range") == "" {
			w.Header().Set("Content-Length", strconv.Itoa(len(content)))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(content)
			return
		}
		rangeHeader := strings.TrimPrefix(r.Header.Get("Range"), "bytes=")
		start, _ := strconv.Atoi(strings.TrimSuffix(rangeHeader, "-"))
		if start >= len(content) {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		chunk := content[start:]
		w.Header().Set("Content-Length", strconv.Itoa(len(chunk)))
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(chunk)
	}))
}

func TestDownload_FreshFile(t *testing.T) {
	content := []byte("hello from the file locker")
	srv := newRangeServer(t, content)
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "out.bin")
	e := New()

	res, err := e.Download(context.Background(), srv.URL, dest, nil, nil)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if res.TotalDownloaded != int64(len(content)) {
		t.Errorf("TotalDownloaded = %d, want %d", res.TotalDownloaded, len(content))
	}

	got, _ := os.ReadFile(dest)
	if string(got) != string(content) {
		t.Errorf("destination content = %q, want %q", got, content)
	}
}

func TestDownload_ResumesFromPartialFile(t *testing.T) {
	content := []byte("0123456789abcdefghij")
	srv := newRangeServer(t, content)
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "out.bin")
	if err := os.WriteFile(dest, content[:10], 0o644); err != nil {
		t.Fatal(err)
	}

	e := New()
	res, err := e.Download(context.Background(), srv.URL, dest, nil, nil)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if res.TotalDownloaded != int64(len(content)) {
		t.Errorf("TotalDownloaded = %d, want %d", res.TotalDownloaded, len(content))
	}
	got, _ := os.ReadFile(dest)
	if string(got) != string(content) {
		t.Errorf("destination content = %q, want %q", got, content)
	}
}

func TestDownload_AlreadyCompleteReturns416AsSuccess(t *testing.T) {
	content := []byte("complete file")
	srv := newRangeServer(t, content)
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "out.bin")
	if err := os.WriteFile(dest, content, 0o644); err != nil {
		t.Fatal(err)
	}

	e := New()
	res, err := e.Download(context.Background(), srv.URL, dest, nil, nil)
	if err != nil {
		t.Fatalf("Download() error = %v, want nil (416 treated as already complete)", err)
	}
	if res.TotalDownloaded != int64(len(content)) {
		t.Errorf("TotalDownloaded = %d, want %d", res.TotalDownloaded, len(content))
	}
}

func TestDownload_ServerIgnoresRangeRestartsFromZero(t *testing.T) {
	content := []byte("full body regardless of range")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Ignore any Range header entirely and always return 200 + full body.
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(content)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "out.bin")
	if err := os.WriteFile(dest, []byte("stale partial data"), 0o644); err != nil {
		t.Fatal(err)
	}

	e := New()
	res, err := e.Download(context.Background(), srv.URL, dest, nil, nil)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if res.TotalDownloaded != int64(len(content)) {
		t.Errorf("TotalDownloaded = %d, want %d", res.TotalDownloaded, len(content))
	}
	got, _ := os.ReadFile(dest)
	if string(got) != string(content) {
		t.Errorf("destination content = %q, want full fresh body %q (stale partial not spliced)", got, content)
	}
}

func TestDownload_HTTPErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "out.bin")
	e := New()
	if _, err := e.Download(context.Background(), srv.URL, dest, nil, nil); err == nil {
		t.Error("Download() error = nil, want error for 500 response")
	}
}

func TestDownload_CancelledContextStopsTransfer(t *testing.T) {
	content := make([]byte, 1<<20)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		w.WriteHeader(http.StatusOK)
		for i := 0; i < len(content); i += 4096 {
			end := i + 4096
			if end > len(content) {
				end = len(content)
			}
			if _, err := w.Write(content[i:end]); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "out.bin")
	e := New()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Download(ctx, srv.URL, dest, nil, nil); err == nil {
		t.Error("Download() with pre-cancelled context error = nil, want context.Canceled")
	}
}

func TestDownload_ProgressCallbackReceivesFinalSnapshot(t *testing.T) {
	content := []byte("progress reporting payload")
	srv := newRangeServer(t, content)
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "out.bin")
	e := New()

	var last Progress
	_, err := e.Download(context.Background(), srv.URL, dest, nil, func(p Progress) {
		last = p
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if last.Percentage != 100 {
		t.Errorf("final progress Percentage = %v, want 100", last.Percentage)
	}
	if last.Downloaded != int64(len(content)) {
		t.Errorf("final progress Downloaded = %d, want %d", last.Downloaded, len(content))
	}
}
