// ABOUTME: Tests for CLI wiring and display helpers
// ABOUTME: Verifies subcommand registration and feed title fallbacks

package main

import (
	"testing"

	"github.com/feedspool/feedspool/internal/models"
)

func TestSubcommandsRegistered(t *testing.T) {
	want := []string{"fetch", "serve", "check", "render", "toplinks"}
	for _, name := range want {
		found := false
		for _, cmd := range rootCmd.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestDebugFlagRegistered(t *testing.T) {
	f := rootCmd.PersistentFlags().Lookup("debug")
	if f == nil {
		t.Fatal("debug flag missing")
	}
	if f.Shorthand != "d" {
		t.Errorf("debug shorthand = %q, want d", f.Shorthand)
	}
}

func TestFeedTitle(t *testing.T) {
	if got := feedTitle(nil); got != "(unknown feed)" {
		t.Errorf("nil feed = %q", got)
	}
	if got := feedTitle(&models.Feed{Title: "My Feed"}); got != "My Feed" {
		t.Errorf("titled feed = %q", got)
	}
	if got := feedTitle(&models.Feed{URL: "https://example.com/feed.xml"}); got != "https://example.com/feed.xml" {
		t.Errorf("untitled feed = %q", got)
	}
}
