// Package classify maps transfer and host-API failures into a recovery
// taxonomy the orchestrator acts on: whether to retry, force a URL refresh,
// surface an account problem, give up, or flag a local system issue.
package classify

// Kind identifies which recovery variant a Category carries.
type Kind string

const (
	// Retryable is a transient network or server issue; retry the same
	// resolved URL after delay_seconds.
	Retryable Kind = "retryable"

	// UrlRefreshNeeded means the cached resolved URL is no longer usable;
	// the next claim must re-resolve from the original URL.
	UrlRefreshNeeded Kind = "url_refresh_needed"

	// AccountIssue requires user intervention on the host account; no
	// further retries are scheduled.
	AccountIssue Kind = "account_issue"

	// Permanent will never succeed; no further retries are scheduled.
	Permanent Kind = "permanent"

	// SystemIssue points at a local configuration or connectivity
	// problem (DNS, routing, TLS).
	SystemIssue Kind = "system_issue"
)

// Category is the classified outcome of a failed operation.
type Category struct {
	Kind Kind

	Reason string

	// MaxRetries is meaningful for Retryable, UrlRefreshNeeded, and
	// SystemIssue; zero for AccountIssue and Permanent.
	MaxRetries int

	// DelaySeconds is meaningful for Retryable only.
	DelaySeconds int

	// ActionRequired is set for AccountIssue.
	ActionRequired string

	// FixSuggestion is set for SystemIssue.
	FixSuggestion string
}

// SkipsRetry reports whether the category should halt the task instead of
// scheduling a Waiting transition.
func (c Category) SkipsRetry() bool {
	return c.Kind == AccountIssue || c.Kind == Permanent
}
