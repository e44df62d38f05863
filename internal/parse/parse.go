// ABOUTME: Thin adapter over gofeed producing a normalized Feed value.
// ABOUTME: Handles RSS, Atom, and JSON Feed; dates stay optional, never guessed.

package parse

import (
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"
)

// Link is a single feed or entry link.
type Link struct {
	Href string `json:"href"`
}

// Entry is one normalized feed entry. SourceID is the identifier the
// source reports (guid/atom id), falling back to the first link when the
// source omits one.
type Entry struct {
	SourceID  string     `json:"source_id"`
	Title     string     `json:"title"`
	Links     []Link     `json:"links"`
	Summary   string     `json:"summary"`
	Content   string     `json:"content"`
	Published *time.Time `json:"published"`
	Updated   *time.Time `json:"updated"`
}

// Feed is the normalized shape the polling pipeline consumes.
type Feed struct {
	Title     string     `json:"title"`
	Subtitle  string     `json:"subtitle"`
	Links     []Link     `json:"links"`
	Published *time.Time `json:"published"`
	Updated   *time.Time `json:"updated"`
	Entries   []Entry    `json:"entries"`
}

// FirstLink returns the href of the feed's first link, or "".
func (f *Feed) FirstLink() string {
	if len(f.Links) == 0 {
		return ""
	}
	return f.Links[0].Href
}

// FirstLink returns the href of the entry's first link, or "".
func (e *Entry) FirstLink() string {
	if len(e.Links) == 0 {
		return ""
	}
	return e.Links[0].Href
}

// ParseError wraps a syndication parsing failure.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ParseError: failed to parse feed: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse parses feed bytes into the normalized Feed value.
func Parse(data []byte) (*Feed, error) {
	parsed, err := gofeed.NewParser().ParseString(string(data))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	feed := &Feed{
		Title:     parsed.Title,
		Subtitle:  parsed.Description,
		Links:     links(parsed.Link, parsed.Links),
		Published: parsed.PublishedParsed,
		Updated:   parsed.UpdatedParsed,
		Entries:   make([]Entry, 0, len(parsed.Items)),
	}

	for _, item := range parsed.Items {
		entry := Entry{
			SourceID:  item.GUID,
			Title:     item.Title,
			Links:     links(item.Link, item.Links),
			Summary:   item.Description,
			Content:   item.Content,
			Published: item.PublishedParsed,
			Updated:   item.UpdatedParsed,
		}
		// A source without a guid still needs a stable identity
		if entry.SourceID == "" {
			entry.SourceID = item.Link
		}
		feed.Entries = append(feed.Entries, entry)
	}

	return feed, nil
}

// links preserves source order, with the primary link first when the
// source reports it separately from the link list.
func links(primary string, rest []string) []Link {
	var out []Link
	seen := map[string]bool{}
	add := func(href string) {
		if href == "" || seen[href] {
			return
		}
		seen[href] = true
		out = append(out, Link{Href: href})
	}
	add(primary)
	for _, href := range rest {
		add(href)
	}
	return out
}
