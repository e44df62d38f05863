// ABOUTME: Feed discovery: resolves a page URL to its syndication feed.
// ABOUTME: Tries direct parse, HTML alternate links, then common paths.

package discover

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/feedspool/feedspool/internal/fetch"
	"github.com/feedspool/feedspool/internal/parse"
)

// Probed when the page itself is not a feed and carries no alternate
// link elements.
var commonFeedPaths = []string{
	"/feed.xml",
	"/feed",
	"/rss.xml",
	"/rss",
	"/atom.xml",
	"/atom",
	"/index.xml",
	"/feed/rss",
	"/feed/atom",
	"/feeds/posts/default",
}

var (
	ErrNoFeedFound = errors.New("no feed found at URL")
	ErrInvalidURL  = errors.New("invalid URL")
)

// DiscoveredFeed is a feed located during discovery.
type DiscoveredFeed struct {
	URL   string
	Title string
}

// Discoverer runs discovery fetches with a fixed per-request timeout.
type Discoverer struct {
	timeout time.Duration
}

func New(timeout time.Duration) *Discoverer {
	return &Discoverer{timeout: timeout}
}

// Discover resolves inputURL to a feed. It tries the URL as a feed
// directly, then <link rel="alternate"> elements in its HTML, then the
// common feed paths on the same host.
func (d *Discoverer) Discover(ctx context.Context, inputURL string) (*DiscoveredFeed, error) {
	parsedURL, err := url.Parse(inputURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("%w: missing scheme or host", ErrInvalidURL)
	}

	feed, body, err := d.tryDirectFeed(ctx, inputURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	if feed != nil {
		return feed, nil
	}

	for _, candidate := range alternateLinks(body, parsedURL) {
		verified, _, verifyErr := d.tryDirectFeed(ctx, candidate.URL)
		if verifyErr != nil || verified == nil {
			continue
		}
		if verified.Title == "" {
			verified.Title = candidate.Title
		}
		return verified, nil
	}

	probeBase := &url.URL{Scheme: parsedURL.Scheme, Host: parsedURL.Host}
	for _, path := range commonFeedPaths {
		probed, _, probeErr := d.tryDirectFeed(ctx, probeBase.String()+path)
		if probeErr == nil && probed != nil {
			return probed, nil
		}
	}

	return nil, ErrNoFeedFound
}

// tryDirectFeed fetches the URL and attempts to parse it as a feed. A
// parse failure is not an error; the body comes back for HTML scanning.
func (d *Discoverer) tryDirectFeed(ctx context.Context, feedURL string) (*DiscoveredFeed, string, error) {
	result, err := fetch.Fetch(ctx, feedURL, d.timeout, nil)
	if err != nil {
		return nil, "", err
	}
	if !result.OK() {
		return nil, "", fmt.Errorf("unexpected status %d", result.Status)
	}

	parsed, parseErr := parse.Parse([]byte(result.Body))
	if parseErr != nil {
		return nil, result.Body, nil
	}
	return &DiscoveredFeed{URL: feedURL, Title: parsed.Title}, result.Body, nil
}

// alternateLinks extracts feed candidates from the page's
// <link rel="alternate"> elements, resolved against the page URL.
func alternateLinks(htmlBody string, baseURL *url.URL) []DiscoveredFeed {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return nil
	}

	var feeds []DiscoveredFeed
	doc.Find(`link[rel="alternate"]`).Each(func(_ int, sel *goquery.Selection) {
		linkType, _ := sel.Attr("type")
		href, _ := sel.Attr("href")
		if href == "" || !isFeedContentType(linkType) {
			return
		}
		refURL, err := url.Parse(href)
		if err != nil {
			return
		}
		title, _ := sel.Attr("title")
		feeds = append(feeds, DiscoveredFeed{
			URL:   baseURL.ResolveReference(refURL).String(),
			Title: title,
		})
	})
	return feeds
}

func isFeedContentType(contentType string) bool {
	contentType = strings.ToLower(contentType)
	return strings.Contains(contentType, "rss") ||
		strings.Contains(contentType, "atom") ||
		strings.Contains(contentType, "xml")
}
