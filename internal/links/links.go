// ABOUTME: Outbound link extraction and cross-feed aggregation.
// ABOUTME: Backs the toplinks report: links cited by several distinct feeds.

package links

import (
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/feedspool/feedspool/internal/models"
)

// DefaultThreshold is the minimum number of distinct feeds that must
// reference a link before it counts as a top link.
const DefaultThreshold = 3

// TopLink is one aggregated outbound link.
type TopLink struct {
	URL        string
	FeedCount  int
	FeedTitles []string
}

// ExtractLinks pulls the href of every anchor out of an HTML body,
// keeping only absolute http(s) URLs with their fragments stripped.
func ExtractLinks(body string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}

	var out []string
	seen := map[string]bool{}
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		normalized := normalize(href)
		if normalized == "" || seen[normalized] {
			return
		}
		seen[normalized] = true
		out = append(out, normalized)
	})
	return out
}

// TopLinks aggregates the links found in entry bodies by the number of
// distinct feeds referencing them. Links on the same host as their own
// entry or feed are treated as self-references and dropped. Results are
// ordered by feed count descending, then URL for determinism.
func TopLinks(rows []models.EntryWithFeed, threshold int) []TopLink {
	if threshold < 1 {
		threshold = DefaultThreshold
	}

	feedsByLink := map[string]map[string]string{}
	for _, row := range rows {
		body := row.Entry.Content
		if body == "" {
			body = row.Entry.Summary
		}
		if body == "" {
			continue
		}

		feedID := row.Entry.FeedID
		feedTitle := ""
		if row.Feed != nil {
			feedTitle = row.Feed.Title
		}

		for _, link := range ExtractLinks(body) {
			if selfReference(link, &row) {
				continue
			}
			if feedsByLink[link] == nil {
				feedsByLink[link] = map[string]string{}
			}
			feedsByLink[link][feedID] = feedTitle
		}
	}

	var out []TopLink
	for link, feeds := range feedsByLink {
		if len(feeds) < threshold {
			continue
		}
		titles := make([]string, 0, len(feeds))
		for _, title := range feeds {
			titles = append(titles, title)
		}
		sort.Strings(titles)
		out = append(out, TopLink{URL: link, FeedCount: len(feeds), FeedTitles: titles})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].FeedCount != out[j].FeedCount {
			return out[i].FeedCount > out[j].FeedCount
		}
		return out[i].URL < out[j].URL
	})
	return out
}

// selfReference reports whether the link points back at the host the
// entry or its feed lives on.
func selfReference(link string, row *models.EntryWithFeed) bool {
	host := hostOf(link)
	if host == "" {
		return false
	}
	if host == hostOf(row.Entry.Link) {
		return true
	}
	if row.Feed != nil && (host == hostOf(row.Feed.Link) || host == hostOf(row.Feed.URL)) {
		return true
	}
	return false
}

func normalize(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
