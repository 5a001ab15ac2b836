package arr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/warpdl/warpbroker/internal/config"
)

func newArrServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c := NewClient(config.ArrConfig{URL: srv.URL, APIKey: "secret", Enabled: true})
	return srv, c
}

func TestSeriesExistsByExternalID_Hit(t *testing.T) {
	srv, c := newArrServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "secret" {
			t.Errorf("missing X-Api-Key header")
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{{"id": 42, "tmdbId": 603}})
	})
	defer srv.Close()

	id, ok, err := c.SeriesExistsByExternalID(context.Background(), 603)
	if err != nil {
		t.Fatalf("SeriesExistsByExternalID() error = %v", err)
	}
	if !ok || id != 42 {
		t.Errorf("SeriesExistsByExternalID() = (%d, %v), want (42, true)", id, ok)
	}
}

func TestSeriesExistsByExternalID_Miss(t *testing.T) {
	srv, c := newArrServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{})
	})
	defer srv.Close()

	_, ok, err := c.SeriesExistsByExternalID(context.Background(), 603)
	if err != nil {
		t.Fatalf("SeriesExistsByExternalID() error = %v", err)
	}
	if ok {
		t.Error("SeriesExistsByExternalID() ok = true, want false on empty result")
	}
}

func TestAddMovie_400PropagatesAsError(t *testing.T) {
	srv, c := newArrServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	defer srv.Close()

	_, err := c.AddMovie(context.Background(), 603, 1, "/movies")
	if err == nil {
		t.Fatal("AddMovie() error = nil, want error for 400 response")
	}
	if !isAlreadyExists(err) {
		t.Errorf("isAlreadyExists(%v) = false, want true", err)
	}
}

func TestTriggerMoviesScan_SendsCommand(t *testing.T) {
	var gotBody map[string]string
	srv, c := newArrServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/command" {
			t.Errorf("path = %s, want /api/v3/command", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()

	if err := c.TriggerMoviesScan(context.Background(), "/movies/The Matrix (1999)"); err != nil {
		t.Fatalf("TriggerMoviesScan() error = %v", err)
	}
	if gotBody["name"] != "DownloadedMoviesScan" {
		t.Errorf("command name = %q, want DownloadedMoviesScan", gotBody["name"])
	}
}

func TestRootFolders_EmptyOnNoFolders(t *testing.T) {
	srv, c := newArrServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]RootFolder{})
	})
	defer srv.Close()

	folders, err := c.RootFolders(context.Background())
	if err != nil {
		t.Fatalf("RootFolders() error = %v", err)
	}
	if len(folders) != 0 {
		t.Errorf("len(folders) = %d, want 0", len(folders))
	}
}
