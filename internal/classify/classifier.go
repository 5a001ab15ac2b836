package classify

import (
	"fmt"
	"strconv"
	"strings"
)

// statusPatterns are tried in order; the first one found in the lowercased
// error text wins, and the run of digits immediately following it is parsed
// as the HTTP status.
var statusPatterns = []string{
	"http error: ",
	"http ",
	"status code ",
	"status: ",
	"code ",
}

// Classify inspects err's message for an HTTP status code or a known
// transport-failure substring and returns the matching recovery Category.
// Nothing matching falls back to a conservative Retryable default.
func Classify(err error) Category {
	if err == nil {
		return Category{Kind: Retryable, Reason: "no error", MaxRetries: 3, DelaySeconds: 5}
	}
	text := strings.ToLower(err.Error())

	if status, ok := extractHTTPStatus(text); ok {
		return classifyHTTPStatus(status, text)
	}

	switch {
	case strings.Contains(text, "timeout") || strings.Contains(text, "timed out"):
		return Category{Kind: Retryable, MaxRetries: 10, DelaySeconds: 5, Reason: "network timeout - connection too slow"}
	case strings.Contains(text, "connection reset") || strings.Contains(text, "broken pipe"):
		return Category{Kind: Retryable, MaxRetries: 10, DelaySeconds: 3, Reason: "connection reset by server"}
	case strings.Contains(text, "connection refused"):
		return Category{Kind: Retryable, MaxRetries: 5, DelaySeconds: 10, Reason: "server refused connection - may be down"}
	case strings.Contains(text, "dns") || strings.Contains(text, "resolve") || strings.Contains(text, "name resolution"):
		return Category{Kind: SystemIssue, MaxRetries: 5, Reason: "DNS resolution failed", FixSuggestion: "check your internet connection and DNS settings"}
	case strings.Contains(text, "no route") || strings.Contains(text, "network unreachable") || strings.Contains(text, "network is unreachable"):
		return Category{Kind: SystemIssue, MaxRetries: 10, Reason: "no internet connection", FixSuggestion: "check your network connection"}
	case strings.Contains(text, "no space") || strings.Contains(text, "disk full"):
		return Category{Kind: Permanent, Reason: "disk full - no space left on device"}
	case strings.Contains(text, "permission denied"):
		return Category{Kind: Permanent, Reason: "permission denied - cannot write to destination"}
	case strings.Contains(text, "ssl") || strings.Contains(text, "tls") || strings.Contains(text, "certificate"):
		return Category{Kind: SystemIssue, MaxRetries: 3, Reason: "SSL/TLS error", FixSuggestion: "check system time and SSL certificates"}
	}

	return Category{Kind: Retryable, MaxRetries: 3, DelaySeconds: 5, Reason: fmt.Sprintf("unknown error: %s", err.Error())}
}

func classifyHTTPStatus(status int, text string) Category {
	switch {
	case status >= 200 && status <= 299:
		return Category{Kind: Retryable, MaxRetries: 1, DelaySeconds: 1, Reason: fmt.Sprintf("unexpected success code %d", status)}
	case status >= 300 && status <= 399:
		return Category{Kind: Retryable, MaxRetries: 3, DelaySeconds: 2, Reason: fmt.Sprintf("redirect error %d", status)}
	case status == 400:
		return Category{Kind: Permanent, Reason: "bad request - invalid URL or parameters"}
	case status == 401:
		if strings.Contains(text, "token") || strings.Contains(text, "session") {
			return Category{Kind: UrlRefreshNeeded, MaxRetries: 3, Reason: "authentication token expired"}
		}
		return Category{Kind: AccountIssue, Reason: "authentication failed", ActionRequired: "check your account credentials"}
	case status == 402:
		return Category{Kind: AccountIssue, Reason: "insufficient credits or payment required", ActionRequired: "add credits to your account"}
	case status == 403:
		switch {
		case strings.Contains(text, "expired") || strings.Contains(text, "token"):
			return Category{Kind: UrlRefreshNeeded, MaxRetries: 3, Reason: "premium link expired (6h limit exceeded)"}
		case strings.Contains(text, "suspended") || strings.Contains(text, "banned"):
			return Category{Kind: AccountIssue, Reason: "account suspended or banned", ActionRequired: "contact support"}
		default:
			return Category{Kind: Permanent, Reason: "access forbidden"}
		}
	case status == 404:
		if strings.Contains(text, "file") {
			return Category{Kind: Permanent, Reason: "file deleted from server"}
		}
		return Category{Kind: UrlRefreshNeeded, MaxRetries: 3, Reason: "premium URL no longer valid"}
	case status == 408:
		return Category{Kind: Retryable, MaxRetries: 10, DelaySeconds: 5, Reason: "request timeout"}
	case status == 410:
		return Category{Kind: UrlRefreshNeeded, MaxRetries: 3, Reason: "URL expired or no longer available"}
	case status == 429:
		return Category{Kind: Retryable, MaxRetries: 10, DelaySeconds: 30, Reason: "rate limited - too many requests"}
	case status == 451:
		return Category{Kind: Permanent, Reason: "file removed due to copyright claim (DMCA)"}
	case status == 500:
		return Category{Kind: Retryable, MaxRetries: 5, DelaySeconds: 10, Reason: "server internal error"}
	case status == 502:
		return Category{Kind: Retryable, MaxRetries: 10, DelaySeconds: 5, Reason: "bad gateway - upstream server issue"}
	case status == 503:
		return Category{Kind: Retryable, MaxRetries: 10, DelaySeconds: 10, Reason: "server temporarily unavailable or overloaded"}
	case status == 504:
		return Category{Kind: Retryable, MaxRetries: 10, DelaySeconds: 15, Reason: "gateway timeout - upstream server too slow"}
	case status >= 400 && status <= 499:
		return Category{Kind: Permanent, Reason: fmt.Sprintf("client error: HTTP %d", status)}
	case status >= 500 && status <= 599:
		return Category{Kind: Retryable, MaxRetries: 5, DelaySeconds: 10, Reason: fmt.Sprintf("server error: HTTP %d", status)}
	default:
		return Category{Kind: Retryable, MaxRetries: 3, DelaySeconds: 5, Reason: fmt.Sprintf("unknown HTTP status: %d", status)}
	}
}

// extractHTTPStatus looks for the first matching pattern in text and parses
// the run of digits immediately following it as an HTTP status code.
func extractHTTPStatus(text string) (int, bool) {
	for _, pattern := range statusPatterns {
		idx := strings.Index(text, pattern)
		if idx < 0 {
			continue
		}
		rest := text[idx+len(pattern):]
		end := 0
		for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
			end++
		}
		if end == 0 {
			continue
		}
		status, err := strconv.Atoi(rest[:end])
		if err != nil {
			continue
		}
		return status, true
	}
	return 0, false
}
