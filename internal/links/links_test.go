// ABOUTME: Tests for link extraction and the cross-feed top-link report.
// ABOUTME: Covers normalization, self-reference filtering, and thresholds.

package links

import (
	"fmt"
	"testing"

	"github.com/feedspool/feedspool/internal/models"
)

func TestExtractLinks(t *testing.T) {
	body := `<p>Read <a href="https://example.com/post#section">this</a>,
		<a href="https://example.com/post">again</a>,
		<a href="/relative">relative</a>,
		<a href="mailto:x@example.com">mail</a>,
		and <a href="http://other.net/a">that</a>.</p>`

	got := ExtractLinks(body)
	want := []string{"https://example.com/post", "http://other.net/a"}
	if len(got) != len(want) {
		t.Fatalf("links = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("links[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExtractLinksEmptyBody(t *testing.T) {
	if got := ExtractLinks(""); len(got) != 0 {
		t.Errorf("links = %v, want none", got)
	}
}

func rowFor(feedNum int, body string) models.EntryWithFeed {
	return models.EntryWithFeed{
		Entry: models.Entry{
			FeedID:  fmt.Sprintf("feed-%d", feedNum),
			Link:    fmt.Sprintf("https://blog%d.example/post", feedNum),
			Content: body,
		},
		Feed: &models.Feed{
			ID:    fmt.Sprintf("feed-%d", feedNum),
			Title: fmt.Sprintf("Blog %d", feedNum),
			URL:   fmt.Sprintf("https://blog%d.example/feed.xml", feedNum),
			Link:  fmt.Sprintf("https://blog%d.example/", feedNum),
		},
	}
}

func TestTopLinksThreshold(t *testing.T) {
	popular := `<a href="https://popular.example/story">story</a>`
	niche := `<a href="https://niche.example/post">post</a>`

	rows := []models.EntryWithFeed{
		rowFor(1, popular+niche),
		rowFor(2, popular),
		rowFor(3, popular),
	}

	top := TopLinks(rows, 3)
	if len(top) != 1 {
		t.Fatalf("top = %+v, want exactly the popular link", top)
	}
	if top[0].URL != "https://popular.example/story" {
		t.Errorf("URL = %q", top[0].URL)
	}
	if top[0].FeedCount != 3 {
		t.Errorf("FeedCount = %d, want 3", top[0].FeedCount)
	}
	if len(top[0].FeedTitles) != 3 || top[0].FeedTitles[0] != "Blog 1" {
		t.Errorf("FeedTitles = %v", top[0].FeedTitles)
	}
}

func TestTopLinksCountsFeedsNotEntries(t *testing.T) {
	link := `<a href="https://popular.example/story">story</a>`
	// Three entries from the same feed only count once
	rows := []models.EntryWithFeed{rowFor(1, link), rowFor(1, link), rowFor(1, link)}

	if top := TopLinks(rows, 2); len(top) != 0 {
		t.Errorf("top = %+v, want none for a single feed", top)
	}
}

func TestTopLinksDropsSelfReferences(t *testing.T) {
	rows := []models.EntryWithFeed{
		rowFor(1, `<a href="https://blog1.example/other-post">mine</a>`),
		rowFor(2, `<a href="https://blog1.example/other-post">theirs</a>`),
	}

	top := TopLinks(rows, 1)
	if len(top) != 1 {
		t.Fatalf("top = %+v, want one", top)
	}
	// Only feed 2 counts; feed 1 linked to itself.
	if top[0].FeedCount != 1 {
		t.Errorf("FeedCount = %d, want 1", top[0].FeedCount)
	}
}

func TestTopLinksFallsBackToSummary(t *testing.T) {
	row := rowFor(1, "")
	row.Entry.Summary = `<a href="https://popular.example/story">story</a>`
	rows := []models.EntryWithFeed{row, rowFor(2, `<a href="https://popular.example/story">s</a>`)}

	top := TopLinks(rows, 2)
	if len(top) != 1 || top[0].FeedCount != 2 {
		t.Errorf("top = %+v, want the summary link counted", top)
	}
}

func TestTopLinksOrdering(t *testing.T) {
	a := `<a href="https://a.example/x">a</a>`
	b := `<a href="https://b.example/x">b</a>`

	rows := []models.EntryWithFeed{
		rowFor(1, a+b),
		rowFor(2, a+b),
		rowFor(3, a),
	}

	top := TopLinks(rows, 2)
	if len(top) != 2 {
		t.Fatalf("top = %+v, want 2", top)
	}
	if top[0].URL != "https://a.example/x" || top[1].URL != "https://b.example/x" {
		t.Errorf("order = %q, %q", top[0].URL, top[1].URL)
	}
}
