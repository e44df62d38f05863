// ABOUTME: Row types for the feeds, entries, and feed_history tables.
// ABOUTME: All timestamps are RFC-3339 UTC strings; missing dates are "".

package models

// Feed is a row in the feeds table. The id is a pure function of the
// canonical feed URL.
type Feed struct {
	ID                 string
	URL                string
	Title              string
	Subtitle           string
	Link               string
	Published          string
	Updated            string
	LastEntryPublished string
	JSON               string
	CreatedAt          string
	ModifiedAt         string
}

// Entry is a row in the entries table. The id is a pure function of
// (feed id, source entry id).
type Entry struct {
	ID         string
	FeedID     string
	Title      string
	Link       string
	Summary    string
	Content    string
	Published  string
	Updated    string
	Defunct    bool
	JSON       string
	CreatedAt  string
	ModifiedAt string
}

// FeedHistory is an append-only record of one fetch attempt, success or
// error. The most recent status-200 row doubles as the conditional-GET
// cache for its feed.
type FeedHistory struct {
	ID           string
	FeedID       string
	CreatedAt    string
	Status       string
	Src          string
	ETag         string
	LastModified string
	IsError      bool
	ErrorText    string
}

// FeedUpsert carries the values for an insert-or-update of a feed row.
// Now is the poll timestamp; created_at is set from it only on insert.
type FeedUpsert struct {
	Now                string
	ID                 string
	URL                string
	Title              string
	Subtitle           string
	Link               string
	Published          string
	Updated            string
	LastEntryPublished string
	JSON               string
}

// EntryUpsert carries the values for an insert-or-update of an entry row.
// When SkipUpdateIfExists is set and the row already exists, the upsert
// leaves it untouched but still counts as success.
type EntryUpsert struct {
	Now                string
	ID                 string
	FeedID             string
	Title              string
	Link               string
	Summary            string
	Content            string
	Published          string
	Updated            string
	JSON               string
	SkipUpdateIfExists bool
}

// EntryWithFeed pairs an entry with its parent feed for report-style
// readers (render, toplinks). Feed is nil when the feed row is missing.
type EntryWithFeed struct {
	Entry Entry
	Feed  *Feed
}
