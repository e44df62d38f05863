// ABOUTME: Tests for the poll state machine against a real SQLite store.
// ABOUTME: Covers 200-then-304, clamping, 404, parse failure, and the gates.

package poll

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/feedspool/feedspool/internal/fetch"
	"github.com/feedspool/feedspool/internal/ident"
	"github.com/feedspool/feedspool/internal/storage"
)

const twoEntryFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com/</link>
    <item>
      <guid>a</guid>
      <title>Entry A</title>
      <link>https://example.com/a</link>
      <pubDate>Mon, 01 Jan 2024 00:00:00 GMT</pubDate>
    </item>
    <item>
      <guid>b</guid>
      <title>Entry B</title>
      <link>https://example.com/b</link>
      <pubDate>Tue, 02 Jan 2024 00:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func newTestPoller(t *testing.T) (*Poller, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "poll.sqlite"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store, zap.NewNop()), store
}

func testInput(url string) Input {
	return Input{
		URL:            url,
		RequestTimeout: 5 * time.Second,
		MinFetchPeriod: 0,
	}
}

func TestPollFetchesThenRevalidates(t *testing.T) {
	// Conditional-GET replay: a 200 with an ETag, then a 304 to the
	// replayed validator.
	var sawValidator bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			sawValidator = true
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(twoEntryFeed))
	}))
	defer server.Close()

	poller, store := newTestPoller(t)
	feedID := ident.FeedID(server.URL)

	outcome, err := poller.Poll(context.Background(), testInput(server.URL))
	if err != nil {
		t.Fatalf("first poll: %v", err)
	}
	if outcome.Kind != Updated {
		t.Fatalf("first poll kind = %v, want Updated", outcome.Kind)
	}

	feed, err := store.GetFeed(feedID)
	if err != nil || feed == nil {
		t.Fatalf("GetFeed: %v, %v", feed, err)
	}
	if feed.Title != "Test Feed" {
		t.Errorf("Title = %q", feed.Title)
	}
	if feed.LastEntryPublished != "2024-01-02T00:00:00Z" {
		t.Errorf("LastEntryPublished = %q", feed.LastEntryPublished)
	}

	entries, err := store.ListEntriesByFeed(feedID, "", nil)
	if err != nil {
		t.Fatalf("ListEntriesByFeed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}

	history, err := store.ListHistoryByFeed(feedID, "", nil)
	if err != nil {
		t.Fatalf("ListHistoryByFeed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history rows = %d, want 1", len(history))
	}
	if history[0].Status != "200" || history[0].ETag != `"v1"` {
		t.Errorf("history = %+v", history[0])
	}

	// Second poll replays the validator and lands NotModified
	outcome, err = poller.Poll(context.Background(), testInput(server.URL))
	if err != nil {
		t.Fatalf("second poll: %v", err)
	}
	if !sawValidator {
		t.Error("second request did not carry If-None-Match")
	}
	if outcome.Kind != NotModified {
		t.Fatalf("second poll kind = %v, want NotModified", outcome.Kind)
	}

	entries, _ = store.ListEntriesByFeed(feedID, "", nil)
	if len(entries) != 2 {
		t.Errorf("entries changed on 304: %d", len(entries))
	}
	history, _ = store.ListHistoryByFeed(feedID, "", nil)
	if len(history) != 2 {
		t.Fatalf("history rows = %d, want 2", len(history))
	}
	if history[0].Status != "304" {
		t.Errorf("newest history status = %q, want 304", history[0].Status)
	}
}

func TestPollClampsFutureDates(t *testing.T) {
	future := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Future Feed</title>
    <item>
      <guid>x</guid>
      <title>From The Future</title>
      <pubDate>Thu, 01 Jan 2099 00:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(future))
	}))
	defer server.Close()

	poller, store := newTestPoller(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	poller.now = func() time.Time { return now }

	if _, err := poller.Poll(context.Background(), testInput(server.URL)); err != nil {
		t.Fatalf("poll: %v", err)
	}

	feedID := ident.FeedID(server.URL)
	entries, err := store.ListEntriesByFeed(feedID, "", nil)
	if err != nil || len(entries) != 1 {
		t.Fatalf("entries = %v, %v", entries, err)
	}
	if entries[0].Published != "2024-06-01T12:00:00Z" {
		t.Errorf("Published = %q, want clamped to now", entries[0].Published)
	}
	feed, _ := store.GetFeed(feedID)
	if feed.LastEntryPublished != "2024-06-01T12:00:00Z" {
		t.Errorf("LastEntryPublished = %q, want clamped to now", feed.LastEntryPublished)
	}
}

func TestPollMissingDatesStayEmpty(t *testing.T) {
	dateless := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Dateless</title>
    <item><guid>x</guid><title>No Date</title></item>
  </channel>
</rss>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(dateless))
	}))
	defer server.Close()

	poller, store := newTestPoller(t)
	if _, err := poller.Poll(context.Background(), testInput(server.URL)); err != nil {
		t.Fatalf("poll: %v", err)
	}

	feedID := ident.FeedID(server.URL)
	entries, _ := store.ListEntriesByFeed(feedID, "", nil)
	if len(entries) != 1 || entries[0].Published != "" {
		t.Errorf("entries = %+v, want empty published", entries)
	}
	feed, _ := store.GetFeed(feedID)
	if feed.LastEntryPublished != "" {
		t.Errorf("LastEntryPublished = %q, want empty", feed.LastEntryPublished)
	}
}

func TestPollNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer server.Close()

	poller, store := newTestPoller(t)
	_, err := poller.Poll(context.Background(), testInput(server.URL))
	var notFound *fetch.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	feedID := ident.FeedID(server.URL)
	if feed, _ := store.GetFeed(feedID); feed != nil {
		t.Error("no feed row should exist after 404")
	}
	history, _ := store.ListHistoryByFeed(feedID, "", nil)
	if len(history) != 1 {
		t.Fatalf("history rows = %d, want 1", len(history))
	}
	if !history[0].IsError {
		t.Error("expected is_error=true")
	}
	if want := "NotFound"; !strings.Contains(history[0].ErrorText, want) {
		t.Errorf("error_text = %q, want mention of %q", history[0].ErrorText, want)
	}
}

func TestPollParseFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not xml"))
	}))
	defer server.Close()

	poller, store := newTestPoller(t)
	_, err := poller.Poll(context.Background(), testInput(server.URL))
	if err == nil {
		t.Fatal("expected parse error")
	}

	feedID := ident.FeedID(server.URL)
	if feed, _ := store.GetFeed(feedID); feed != nil {
		t.Error("no feed row should exist after parse failure")
	}
	history, _ := store.ListHistoryByFeed(feedID, "", nil)
	if len(history) != 1 || !history[0].IsError {
		t.Fatalf("history = %+v, want single error row", history)
	}
	if !strings.Contains(history[0].ErrorText, "parse") {
		t.Errorf("error_text = %q, want mention of parse", history[0].ErrorText)
	}
}

func TestPollFetchFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	poller, store := newTestPoller(t)
	_, err := poller.Poll(context.Background(), testInput(server.URL))
	var failed *FetchFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected FetchFailedError, got %v", err)
	}
	if failed.Fetch.Status != http.StatusInternalServerError {
		t.Errorf("status = %d", failed.Fetch.Status)
	}
	history, _ := store.ListHistoryByFeed(ident.FeedID(server.URL), "", nil)
	if len(history) != 1 || !history[0].IsError {
		t.Fatalf("history = %+v, want single error row", history)
	}
}

func TestPollRecencyGate(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(twoEntryFeed))
	}))
	defer server.Close()

	poller, store := newTestPoller(t)
	in := testInput(server.URL)
	in.MinFetchPeriod = time.Hour

	if _, err := poller.Poll(context.Background(), in); err != nil {
		t.Fatalf("first poll: %v", err)
	}
	outcome, err := poller.Poll(context.Background(), in)
	if err != nil {
		t.Fatalf("second poll: %v", err)
	}
	if outcome.Kind != Skipped {
		t.Fatalf("second poll kind = %v, want Skipped", outcome.Kind)
	}
	if hits != 1 {
		t.Errorf("server hits = %d, want 1", hits)
	}
	history, _ := store.ListHistoryByFeed(ident.FeedID(server.URL), "", nil)
	if len(history) != 1 {
		t.Errorf("history rows = %d, Skipped must not append", len(history))
	}
}

// condLookupFailStore breaks the conditional-GET lookup while leaving
// the rest of the store intact.
type condLookupFailStore struct {
	storage.Store
}

func (s *condLookupFailStore) FindLastConditionalGet(url string) (*fetch.Conditions, error) {
	return nil, errors.New("history table unreadable")
}

func TestPollWarnsOnConditionalGetLookupFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(twoEntryFeed))
	}))
	defer server.Close()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "poll.sqlite"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	core, logs := observer.New(zap.WarnLevel)
	poller := New(&condLookupFailStore{Store: store}, zap.New(core))

	outcome, err := poller.Poll(context.Background(), testInput(server.URL))
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if outcome.Kind != Updated {
		t.Fatalf("kind = %v, want Updated", outcome.Kind)
	}
	if n := logs.FilterMessage("conditional get lookup failed").Len(); n != 1 {
		t.Errorf("warn entries = %d, want 1", n)
	}
}

func TestPollDurationError(t *testing.T) {
	poller, store := newTestPoller(t)
	in := testInput("https://example.com/feed.xml")
	in.MinFetchPeriod = -time.Second

	_, err := poller.Poll(context.Background(), in)
	var durErr *DurationError
	if !errors.As(err, &durErr) {
		t.Fatalf("expected DurationError, got %v", err)
	}
	history, _ := store.ListHistoryByFeed(ident.FeedID(in.URL), "", nil)
	if len(history) != 0 {
		t.Errorf("history rows = %d, DurationError must not write history", len(history))
	}
}

func TestPollSkipEntryUpdate(t *testing.T) {
	title := "Original"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := fmt.Sprintf(`<?xml version="1.0"?><rss version="2.0"><channel>
			<title>Feed</title>
			<item><guid>a</guid><title>%s</title></item>
		</channel></rss>`, title)
		w.Write([]byte(body))
	}))
	defer server.Close()

	poller, store := newTestPoller(t)
	in := testInput(server.URL)
	in.SkipEntryUpdate = true

	if _, err := poller.Poll(context.Background(), in); err != nil {
		t.Fatalf("first poll: %v", err)
	}

	title = "Changed"
	if _, err := poller.Poll(context.Background(), in); err != nil {
		t.Fatalf("second poll: %v", err)
	}
	entries, _ := store.ListEntriesByFeed(ident.FeedID(server.URL), "", nil)
	if len(entries) != 1 || entries[0].Title != "Original" {
		t.Errorf("entries = %+v, want original title preserved", entries)
	}

	in.SkipEntryUpdate = false
	if _, err := poller.Poll(context.Background(), in); err != nil {
		t.Fatalf("third poll: %v", err)
	}
	entries, _ = store.ListEntriesByFeed(ident.FeedID(server.URL), "", nil)
	if entries[0].Title != "Changed" {
		t.Errorf("Title = %q, want rewrite without the flag", entries[0].Title)
	}
}

func TestPollMarkDefunct(t *testing.T) {
	full := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := `<?xml version="1.0"?><rss version="2.0"><channel><title>Feed</title>
			<item><guid>a</guid><title>A</title></item>`
		if full {
			body += `<item><guid>b</guid><title>B</title></item>`
		}
		body += `</channel></rss>`
		w.Write([]byte(body))
	}))
	defer server.Close()

	poller, store := newTestPoller(t)
	in := testInput(server.URL)
	in.MarkDefunct = true

	if _, err := poller.Poll(context.Background(), in); err != nil {
		t.Fatalf("first poll: %v", err)
	}

	full = false
	if _, err := poller.Poll(context.Background(), in); err != nil {
		t.Fatalf("second poll: %v", err)
	}

	entries, _ := store.ListEntriesByFeed(ident.FeedID(server.URL), "", nil)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2 (defunct entries are retained)", len(entries))
	}
	for _, entry := range entries {
		wantDefunct := entry.Title == "B"
		if entry.Defunct != wantDefunct {
			t.Errorf("entry %q defunct = %v, want %v", entry.Title, entry.Defunct, wantDefunct)
		}
	}
}

func TestPollIdempotentUpsert(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(twoEntryFeed))
	}))
	defer server.Close()

	poller, store := newTestPoller(t)
	in := testInput(server.URL)

	if _, err := poller.Poll(context.Background(), in); err != nil {
		t.Fatalf("first poll: %v", err)
	}
	feedID := ident.FeedID(server.URL)
	before, _ := store.ListEntriesByFeed(feedID, "", nil)

	if _, err := poller.Poll(context.Background(), in); err != nil {
		t.Fatalf("second poll: %v", err)
	}
	after, _ := store.ListEntriesByFeed(feedID, "", nil)

	if len(before) != len(after) {
		t.Fatalf("entry count changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i].ID != after[i].ID {
			t.Errorf("entry id changed: %q -> %q", before[i].ID, after[i].ID)
		}
		if before[i].CreatedAt != after[i].CreatedAt {
			t.Errorf("created_at changed on refetch")
		}
	}
	history, _ := store.ListHistoryByFeed(feedID, "", nil)
	if len(history) != 2 {
		t.Errorf("history rows = %d, want one per poll", len(history))
	}
}
