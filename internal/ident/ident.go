// ABOUTME: Deterministic identifiers for feeds, entries, and history rows.
// ABOUTME: Everything is a lowercase hex SHA-256 over concatenated parts.

package ident

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashHex concatenates parts and returns the lowercase hex SHA-256 digest.
func HashHex(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// FeedID derives a feed's id from its canonical URL. A URL change
// produces a new feed row.
func FeedID(url string) string {
	return HashHex(url)
}

// EntryID derives an entry's id from its parent feed id and the entry id
// reported by the source. Stable across refetches of the same entry.
func EntryID(feedID, sourceID string) string {
	return HashHex(feedID, sourceID)
}

// HistoryID derives a history row id from the feed id and the RFC-3339
// timestamp of the fetch.
func HistoryID(feedID, ts string) string {
	return HashHex(feedID, ts)
}
