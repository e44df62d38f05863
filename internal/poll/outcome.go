// ABOUTME: Terminal outcome and error taxonomy for a single feed poll.
// ABOUTME: Success arms are Skipped, NotModified, and Updated; errors are typed.

package poll

import (
	"fmt"
	"time"

	"github.com/feedspool/feedspool/internal/fetch"
	"github.com/feedspool/feedspool/internal/parse"
)

// Kind tags the success arms of a poll outcome.
type Kind int

const (
	// Skipped means the recency gate refused the fetch. No history row.
	Skipped Kind = iota
	// NotModified means the server answered 304 to our validators.
	NotModified
	// Updated means a parsed feed was upserted into the store.
	Updated
)

func (k Kind) String() string {
	switch k {
	case Skipped:
		return "Skipped"
	case NotModified:
		return "NotModified"
	case Updated:
		return "Updated"
	default:
		return "Unknown"
	}
}

// Outcome is the terminal classification of one successful poll.
// Fetch is nil for Skipped; Feed is set only for Updated.
type Outcome struct {
	Kind  Kind
	Fetch *fetch.Result
	Feed  *parse.Feed
}

// DurationError means the recency-gate configuration is invalid. The
// poll aborts before any I/O and writes no history.
type DurationError struct {
	Period time.Duration
}

func (e *DurationError) Error() string {
	return fmt.Sprintf("DurationError: invalid min fetch period %v", e.Period)
}

// FetchFailedError means the server answered a status outside {200, 304}.
type FetchFailedError struct {
	Fetch *fetch.Result
}

func (e *FetchFailedError) Error() string {
	return fmt.Sprintf("FetchFailed: unexpected status %d", e.Fetch.Status)
}

// UpdateError means the store failed during upsert or history writing.
type UpdateError struct {
	Err error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("UpdateError: %v", e.Err)
}

func (e *UpdateError) Unwrap() error { return e.Err }
