package document

import (
	"fmt"
)

// Kind classifies a fetch failure.
type Kind string

const (
	// Transient failures are retried: rate limiting, server errors, network
	// failures and implausibly short content.
	Transient Kind = "transient"
	// Permanent failures are escalated without further retries.
	Permanent Kind = "permanent"
)

// FetchError reports a failed document retrieval.
type FetchError struct {
	Locator    string
	Kind       Kind
	StatusCode int
	// Attempts is the number of requests made before giving up. It is set
	// on the error Fetch returns.
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s: %s", e.Locator, e.Kind)
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempt(s)", e.Attempts)
	}
	return msg + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure is worth retrying.
func (e *FetchError) Transient() bool {
	return e.Kind == Transient
}
