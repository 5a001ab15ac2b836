package classify

import (
	"errors"
	"strings"
	"testing"
)

func TestClassify_Timeout(t *testing.T) {
	cat := Classify(errors.New("connection timeout"))
	if cat.Kind != Retryable || cat.MaxRetries != 10 {
		t.Errorf("got %+v, want Retryable with MaxRetries=10", cat)
	}
}

func TestClassify_404FileDeleted(t *testing.T) {
	cat := Classify(errors.New("HTTP error: 404 file not found"))
	if cat.Kind != Permanent {
		t.Fatalf("got kind %v, want Permanent", cat.Kind)
	}
	if !strings.Contains(cat.Reason, "deleted") {
		t.Errorf("reason %q does not mention deletion", cat.Reason)
	}
}

func TestClassify_403Expired(t *testing.T) {
	cat := Classify(errors.New("HTTP 403: token expired"))
	if cat.Kind != UrlRefreshNeeded || cat.MaxRetries != 3 {
		t.Errorf("got %+v, want UrlRefreshNeeded with MaxRetries=3", cat)
	}
}

func TestClassify_429RateLimit(t *testing.T) {
	cat := Classify(errors.New("HTTP status code 429"))
	if cat.Kind != Retryable || cat.DelaySeconds != 30 {
		t.Errorf("got %+v, want Retryable with DelaySeconds=30", cat)
	}
}

func TestClassify_DiskFull(t *testing.T) {
	cat := Classify(errors.New("no space left on device"))
	if cat.Kind != Permanent {
		t.Errorf("got kind %v, want Permanent", cat.Kind)
	}
}

func TestClassify_Default(t *testing.T) {
	cat := Classify(errors.New("something completely unrecognized happened"))
	if cat.Kind != Retryable || cat.MaxRetries != 3 || cat.DelaySeconds != 5 {
		t.Errorf("got %+v, want conservative Retryable default", cat)
	}
}

func TestClassify_401WithoutTokenShape(t *testing.T) {
	cat := Classify(errors.New("HTTP 401: unauthorized"))
	if cat.Kind != AccountIssue {
		t.Errorf("got kind %v, want AccountIssue", cat.Kind)
	}
}

func TestExtractHTTPStatus(t *testing.T) {
	tests := []struct {
		text   string
		status int
		ok     bool
	}{
		{"http error: 404", 404, true},
		{"status code 503", 503, true},
		{"http 429 too many", 429, true},
		{"no status here", 0, false},
	}
	for _, tt := range tests {
		status, ok := extractHTTPStatus(tt.text)
		if ok != tt.ok || status != tt.status {
			t.Errorf("extractHTTPStatus(%q) = (%d, %v), want (%d, %v)", tt.text, status, ok, tt.status, tt.ok)
		}
	}
}
