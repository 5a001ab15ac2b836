package host

import "testing"

func TestLoginRateLimiter_BackoffTable(t *testing.T) {
	tests := []struct {
		failures int
		want     int64 // seconds
	}{
		{0, 0},
		{1, 5},
		{2, 10},
		{3, 30},
		{4, 60},
		{10, 60},
	}
	for _, tt := range tests {
		l := &loginRateLimiter{consecutiveFailures: tt.failures}
		if got := l.backoff().Seconds(); got != float64(tt.want) {
			t.Errorf("backoff() with %d failures = %vs, want %vs", tt.failures, got, tt.want)
		}
	}
}

func TestLoginRateLimiter_FirstAttemptNeverBlocked(t *testing.T) {
	l := newLoginRateLimiter()
	if err := l.canLogin(); err != nil {
		t.Errorf("canLogin() on fresh limiter = %v, want nil", err)
	}
}

func TestLoginRateLimiter_SuccessResetsFailureStreak(t *testing.T) {
	l := newLoginRateLimiter()
	l.recordFailure()
	l.recordFailure()
	l.recordFailure()
	l.recordSuccess()
	if l.consecutiveFailures != 0 {
		t.Errorf("consecutiveFailures after success = %d, want 0", l.consecutiveFailures)
	}
}

func TestLoginRateLimiter_RecentAttemptBlockedDuringBackoff(t *testing.T) {
	l := newLoginRateLimiter()
	l.recordAttempt()
	l.recordFailure()
	if err := l.canLogin(); err == nil {
		t.Error("canLogin() immediately after a failed attempt = nil, want ErrRateLimited")
	}
}
