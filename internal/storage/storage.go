// ABOUTME: Store interface over the feeds/entries/feed_history schema.
// ABOUTME: Defines the pagination contract and the DBError wrapper.

package storage

import (
	"fmt"

	"github.com/feedspool/feedspool/internal/fetch"
	"github.com/feedspool/feedspool/internal/models"
)

const (
	defaultSkip = 0
	defaultTake = 10
)

// Page is the pagination contract shared by every list operation.
// Nil fields fall back to skip=0, take=10; negative values clamp to 0.
type Page struct {
	Skip *int
	Take *int
}

// Normalize resolves the page to concrete skip/take values.
func (p *Page) Normalize() (skip, take int) {
	skip, take = defaultSkip, defaultTake
	if p == nil {
		return skip, take
	}
	if p.Skip != nil {
		skip = *p.Skip
	}
	if p.Take != nil {
		take = *p.Take
	}
	if skip < 0 {
		skip = 0
	}
	if take < 0 {
		take = 0
	}
	return skip, take
}

// HistorySuccess carries the fields recorded for a successful fetch.
// The store derives the row id and created_at from its own clock.
type HistorySuccess struct {
	FeedID       string
	Status       string
	ETag         string
	LastModified string
	Src          string
}

// DBError wraps any underlying store failure.
type DBError struct {
	Op  string
	Err error
}

func (e *DBError) Error() string {
	return fmt.Sprintf("DbError: %s: %v", e.Op, e.Err)
}

func (e *DBError) Unwrap() error { return e.Err }

// Store owns all persistent state; every other component goes through it.
type Store interface {
	UpsertFeed(upsert models.FeedUpsert) error
	UpsertEntry(upsert models.EntryUpsert) error
	MarkOldEntriesDefunct(feedID string, seenIDs []string) error

	InsertHistorySuccess(h HistorySuccess, retainSrc bool) error
	InsertHistoryError(url string, pollErr error) error
	FindLastConditionalGet(url string) (*fetch.Conditions, error)
	FindLastFetchTime(url string) (string, error)

	GetFeed(id string) (*models.Feed, error)
	ListFeeds(since string, page *Page) ([]models.Feed, error)
	ListEntries(since string, page *Page) ([]models.Entry, error)
	ListEntriesByFeed(feedID, since string, page *Page) ([]models.Entry, error)
	ListHistoryByFeed(feedID, since string, page *Page) ([]models.FeedHistory, error)
	ListEntriesWithFeeds(since string, limit int) ([]models.EntryWithFeed, error)

	Close() error
}
