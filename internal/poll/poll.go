// ABOUTME: Per-URL poll state machine: recency gate, conditional fetch, parse,
// ABOUTME: upsert, history row. One pass, no retries; terminal Outcome or error.

package poll

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/feedspool/feedspool/internal/fetch"
	"github.com/feedspool/feedspool/internal/ident"
	"github.com/feedspool/feedspool/internal/models"
	"github.com/feedspool/feedspool/internal/parse"
	"github.com/feedspool/feedspool/internal/storage"
)

// Input holds the per-poll parameters.
type Input struct {
	URL             string
	RequestTimeout  time.Duration
	MinFetchPeriod  time.Duration
	RetainSrc       bool
	SkipEntryUpdate bool
	MarkDefunct     bool
}

// Poller runs single-feed polls against a shared store.
type Poller struct {
	store storage.Store
	log   *zap.Logger
	now   func() time.Time
}

// New returns a Poller using the wall clock.
func New(store storage.Store, log *zap.Logger) *Poller {
	return &Poller{store: store, log: log, now: time.Now}
}

// Poll drives one feed through the state machine. Every terminal except
// Skipped and DurationError leaves exactly one history row behind.
func (p *Poller) Poll(ctx context.Context, in Input) (*Outcome, error) {
	outcome, err := p.poll(ctx, in)
	if err != nil {
		var durErr *DurationError
		if errors.As(err, &durErr) {
			return nil, err
		}
		// Best effort: an error history write failure must not mask the
		// original poll error.
		if histErr := p.store.InsertHistoryError(in.URL, err); histErr != nil {
			p.log.Warn("failed to record error history",
				zap.String("url", in.URL), zap.Error(histErr))
		}
		return nil, err
	}
	return outcome, nil
}

func (p *Poller) poll(ctx context.Context, in Input) (*Outcome, error) {
	if in.MinFetchPeriod < 0 {
		return nil, &DurationError{Period: in.MinFetchPeriod}
	}

	if p.recentlyFetched(in.URL, in.MinFetchPeriod) {
		p.log.Debug("skipped fetch inside min fetch period", zap.String("url", in.URL))
		return &Outcome{Kind: Skipped}, nil
	}

	cond, err := p.store.FindLastConditionalGet(in.URL)
	if err != nil {
		// The poll survives on an unconditional fetch, but the lookup
		// failure is a store problem worth surfacing.
		p.log.Warn("conditional get lookup failed", zap.String("url", in.URL), zap.Error(err))
		cond = nil
	}

	result, err := fetch.Fetch(ctx, in.URL, in.RequestTimeout, cond)
	if err != nil {
		return nil, err
	}

	switch {
	case result.NotModified():
		if err := p.recordSuccess(in, result); err != nil {
			return nil, err
		}
		return &Outcome{Kind: NotModified, Fetch: result}, nil

	case result.OK():
		feed, err := parse.Parse([]byte(result.Body))
		if err != nil {
			return nil, err
		}
		if err := p.updateFeed(in, result, feed); err != nil {
			return nil, err
		}
		if err := p.recordSuccess(in, result); err != nil {
			return nil, err
		}
		return &Outcome{Kind: Updated, Fetch: result, Feed: feed}, nil

	default:
		return nil, &FetchFailedError{Fetch: result}
	}
}

// recentlyFetched applies the recency gate against the most recent
// history row of any kind.
func (p *Poller) recentlyFetched(url string, period time.Duration) bool {
	last, err := p.store.FindLastFetchTime(url)
	if err != nil || last == "" {
		return false
	}
	lastTime, err := time.Parse(time.RFC3339, last)
	if err != nil {
		return false
	}
	return p.now().Before(lastTime.Add(period))
}

// updateFeed upserts the entries in source order, then the feed row with
// the running maximum of clamped entry published dates.
func (p *Poller) updateFeed(in Input, result *fetch.Result, feed *parse.Feed) error {
	now := p.now()
	nowStr := now.UTC().Format(time.RFC3339)
	feedID := ident.FeedID(in.URL)

	lastEntryPublished := ""
	seenIDs := make([]string, 0, len(feed.Entries))
	for i := range feed.Entries {
		entry := &feed.Entries[i]
		entryID := ident.EntryID(feedID, entry.SourceID)
		published := clampDate(entry.Published, now)

		upsert := models.EntryUpsert{
			Now:                nowStr,
			ID:                 entryID,
			FeedID:             feedID,
			Title:              entry.Title,
			Link:               entry.FirstLink(),
			Summary:            entry.Summary,
			Content:            entry.Content,
			Published:          published,
			Updated:            clampDate(entry.Updated, now),
			JSON:               marshalJSON(entry),
			SkipUpdateIfExists: in.SkipEntryUpdate,
		}
		if err := p.store.UpsertEntry(upsert); err != nil {
			return &UpdateError{Err: err}
		}

		seenIDs = append(seenIDs, entryID)
		if published > lastEntryPublished {
			lastEntryPublished = published
		}
	}

	upsert := models.FeedUpsert{
		Now:                nowStr,
		ID:                 feedID,
		URL:                in.URL,
		Title:              feed.Title,
		Subtitle:           feed.Subtitle,
		Link:               feed.FirstLink(),
		Published:          clampDate(feed.Published, now),
		Updated:            clampDate(feed.Updated, now),
		LastEntryPublished: lastEntryPublished,
		JSON:               marshalJSON(feed),
	}
	if err := p.store.UpsertFeed(upsert); err != nil {
		return &UpdateError{Err: err}
	}

	if in.MarkDefunct {
		if err := p.store.MarkOldEntriesDefunct(feedID, seenIDs); err != nil {
			return &UpdateError{Err: err}
		}
	}
	return nil
}

// recordSuccess appends the history row that doubles as the
// conditional-GET cache. A write failure is a persistence problem, so it
// surfaces as UpdateError.
func (p *Poller) recordSuccess(in Input, result *fetch.Result) error {
	h := storage.HistorySuccess{
		FeedID:       ident.FeedID(in.URL),
		Status:       strconv.Itoa(result.Status),
		ETag:         fetch.HeaderOrBlank(result.Header, "ETag"),
		LastModified: fetch.HeaderOrBlank(result.Header, "Last-Modified"),
		Src:          result.Body,
	}
	if err := p.store.InsertHistorySuccess(h, in.RetainSrc); err != nil {
		return &UpdateError{Err: err}
	}
	return nil
}

// clampDate converts a source date to its stored form: future dates clamp
// to now, missing dates become "".
func clampDate(d *time.Time, now time.Time) string {
	if d == nil {
		return ""
	}
	if d.Before(now) {
		return d.UTC().Format(time.RFC3339)
	}
	return now.UTC().Format(time.RFC3339)
}

func marshalJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
