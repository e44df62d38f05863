// ABOUTME: Tests for feed discovery against httptest servers.
// ABOUTME: Covers direct feeds, alternate links, path probing, and failures.

package discover

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Discovered Feed</title>
    <item><guid>a</guid><title>Entry A</title></item>
  </channel>
</rss>`

func newDiscoverer() *Discoverer {
	return New(5 * time.Second)
}

func TestDiscoverDirectFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	feed, err := newDiscoverer().Discover(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if feed.URL != server.URL {
		t.Errorf("URL = %q", feed.URL)
	}
	if feed.Title != "Discovered Feed" {
		t.Errorf("Title = %q", feed.Title)
	}
}

func TestDiscoverAlternateLink(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/the-feed.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleFeed))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head>
			<link rel="alternate" type="application/rss+xml" href="/the-feed.xml" title="Site Feed">
		</head><body>hi</body></html>`))
	})

	feed, err := newDiscoverer().Discover(context.Background(), server.URL+"/")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if feed.URL != server.URL+"/the-feed.xml" {
		t.Errorf("URL = %q", feed.URL)
	}
	if feed.Title != "Discovered Feed" {
		t.Errorf("Title = %q, want the parsed feed title", feed.Title)
	}
}

func TestDiscoverProbesCommonPaths(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rss.xml":
			w.Write([]byte(sampleFeed))
		case "/":
			w.Write([]byte(`<html><head></head><body>no links here</body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	feed, err := newDiscoverer().Discover(context.Background(), server.URL+"/")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if feed.URL != server.URL+"/rss.xml" {
		t.Errorf("URL = %q", feed.URL)
	}
}

func TestDiscoverNothingFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.Write([]byte(`<html><body>just a page</body></html>`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := newDiscoverer().Discover(context.Background(), server.URL+"/")
	if !errors.Is(err, ErrNoFeedFound) {
		t.Errorf("err = %v, want ErrNoFeedFound", err)
	}
}

func TestDiscoverInvalidURL(t *testing.T) {
	for _, bad := range []string{"not-a-url", "/relative/path"} {
		if _, err := newDiscoverer().Discover(context.Background(), bad); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("Discover(%q) err = %v, want ErrInvalidURL", bad, err)
		}
	}
}

func TestAlternateLinksFiltersByType(t *testing.T) {
	page := `<html><head>
		<link rel="alternate" type="text/html" href="/page">
		<link rel="alternate" type="application/atom+xml" href="/atom.xml">
		<link rel="alternate" type="application/rss+xml" href="">
	</head></html>`

	base, err := url.Parse("https://example.com/blog/")
	if err != nil {
		t.Fatal(err)
	}
	feeds := alternateLinks(page, base)
	if len(feeds) != 1 {
		t.Fatalf("feeds = %v, want 1", feeds)
	}
	if feeds[0].URL != "https://example.com/atom.xml" {
		t.Errorf("URL = %q, want resolved atom link", feeds[0].URL)
	}
}
