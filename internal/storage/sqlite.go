// ABOUTME: SQLite implementation of the Store using modernc.org/sqlite (pure Go).
// ABOUTME: Upserts are probe-then-write keyed by deterministic hash ids.

package storage

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/feedspool/feedspool/internal/fetch"
	"github.com/feedspool/feedspool/internal/ident"
	"github.com/feedspool/feedspool/internal/models"
	_ "modernc.org/sqlite"
)

const maxConnections = 8

// historyTimeFormat is RFC-3339 UTC with fixed-width microseconds: history
// ids hash the timestamp, so two fetches of one feed need distinct values,
// and the fixed width keeps lexicographic order chronological.
const historyTimeFormat = "2006-01-02T15:04:05.000000Z07:00"

// SQLiteStore implements Store over a local SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (and if necessary creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &DBError{Op: "create data directory", Err: err}
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &DBError{Op: "open database", Err: err}
	}
	db.SetMaxOpenConns(maxConnections)

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, &DBError{Op: "initialize schema", Err: err}
	}
	return store, nil
}

// initSchema creates the tables if they don't exist. All columns are
// nullable text (plus booleans) to tolerate partial data.
func (s *SQLiteStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS feeds (
			id TEXT PRIMARY KEY,
			url TEXT,
			title TEXT,
			subtitle TEXT,
			link TEXT,
			published TEXT,
			updated TEXT,
			last_entry_published TEXT,
			json TEXT,
			created_at TEXT,
			modified_at TEXT
		);

		CREATE TABLE IF NOT EXISTS entries (
			id TEXT PRIMARY KEY,
			feed_id TEXT,
			title TEXT,
			link TEXT,
			summary TEXT,
			content TEXT,
			published TEXT,
			updated TEXT,
			defunct BOOLEAN DEFAULT 0,
			json TEXT,
			created_at TEXT,
			modified_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_entries_feed_id ON entries(feed_id);
		CREATE INDEX IF NOT EXISTS idx_entries_published ON entries(published);

		CREATE TABLE IF NOT EXISTS feed_history (
			id TEXT PRIMARY KEY,
			feed_id TEXT,
			created_at TEXT,
			status TEXT,
			src TEXT,
			etag TEXT,
			last_modified TEXT,
			is_error BOOLEAN DEFAULT 0,
			error_text TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_feed_history_feed_id ON feed_history(feed_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertFeed inserts or updates a feed row. created_at is set only on
// insert; modified_at is always set to upsert.Now.
func (s *SQLiteStore) UpsertFeed(upsert models.FeedUpsert) error {
	exists, err := s.rowExists("feeds", upsert.ID)
	if err != nil {
		return &DBError{Op: "probe feed", Err: err}
	}

	if exists {
		_, err = s.db.Exec(`
			UPDATE feeds SET
				url = ?, title = ?, subtitle = ?, link = ?, published = ?,
				updated = ?, last_entry_published = ?, json = ?, modified_at = ?
			WHERE id = ?`,
			upsert.URL, upsert.Title, upsert.Subtitle, upsert.Link, upsert.Published,
			upsert.Updated, upsert.LastEntryPublished, upsert.JSON, upsert.Now,
			upsert.ID,
		)
		if err != nil {
			return &DBError{Op: "update feed", Err: err}
		}
		return nil
	}

	_, err = s.db.Exec(`
		INSERT INTO feeds (id, url, title, subtitle, link, published, updated,
			last_entry_published, json, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		upsert.ID, upsert.URL, upsert.Title, upsert.Subtitle, upsert.Link,
		upsert.Published, upsert.Updated, upsert.LastEntryPublished, upsert.JSON,
		upsert.Now, upsert.Now,
	)
	if err != nil {
		return &DBError{Op: "insert feed", Err: err}
	}
	return nil
}

// UpsertEntry inserts or updates an entry row. With SkipUpdateIfExists
// set, an existing row is left untouched but the call still succeeds.
func (s *SQLiteStore) UpsertEntry(upsert models.EntryUpsert) error {
	exists, err := s.rowExists("entries", upsert.ID)
	if err != nil {
		return &DBError{Op: "probe entry", Err: err}
	}

	if exists {
		if upsert.SkipUpdateIfExists {
			return nil
		}
		_, err = s.db.Exec(`
			UPDATE entries SET
				title = ?, link = ?, summary = ?, content = ?, published = ?,
				updated = ?, defunct = 0, json = ?, modified_at = ?
			WHERE id = ?`,
			upsert.Title, upsert.Link, upsert.Summary, upsert.Content, upsert.Published,
			upsert.Updated, upsert.JSON, upsert.Now,
			upsert.ID,
		)
		if err != nil {
			return &DBError{Op: "update entry", Err: err}
		}
		return nil
	}

	_, err = s.db.Exec(`
		INSERT INTO entries (id, feed_id, title, link, summary, content,
			published, updated, defunct, json, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		upsert.ID, upsert.FeedID, upsert.Title, upsert.Link, upsert.Summary,
		upsert.Content, upsert.Published, upsert.Updated, upsert.JSON,
		upsert.Now, upsert.Now,
	)
	if err != nil {
		return &DBError{Op: "insert entry", Err: err}
	}
	return nil
}

// MarkOldEntriesDefunct flags entries of feedID absent from seenIDs.
func (s *SQLiteStore) MarkOldEntriesDefunct(feedID string, seenIDs []string) error {
	query := "UPDATE entries SET defunct = 1 WHERE feed_id = ?"
	args := []any{feedID}
	if len(seenIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(seenIDs)), ",")
		query += " AND id NOT IN (" + placeholders + ")"
		for _, id := range seenIDs {
			args = append(args, id)
		}
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		return &DBError{Op: "mark old entries defunct", Err: err}
	}
	return nil
}

// InsertHistorySuccess appends a success row. The raw body is retained
// only when retainSrc is set.
func (s *SQLiteStore) InsertHistorySuccess(h HistorySuccess, retainSrc bool) error {
	now := s.now().UTC().Format(historyTimeFormat)
	src := ""
	if retainSrc {
		src = h.Src
	}
	_, err := s.db.Exec(`
		INSERT INTO feed_history (id, feed_id, created_at, status, src, etag,
			last_modified, is_error, error_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, '')`,
		ident.HistoryID(h.FeedID, now), h.FeedID, now, h.Status, src, h.ETag,
		h.LastModified,
	)
	if err != nil {
		return &DBError{Op: "insert feed history", Err: err}
	}
	return nil
}

// InsertHistoryError appends an error row keyed by the URL's feed id,
// whether or not a feed row exists yet.
func (s *SQLiteStore) InsertHistoryError(url string, pollErr error) error {
	now := s.now().UTC().Format(historyTimeFormat)
	feedID := ident.FeedID(url)
	_, err := s.db.Exec(`
		INSERT INTO feed_history (id, feed_id, created_at, status, src, etag,
			last_modified, is_error, error_text)
		VALUES (?, ?, ?, '', '', '', '', 1, ?)`,
		ident.HistoryID(feedID, now), feedID, now, pollErr.Error(),
	)
	if err != nil {
		return &DBError{Op: "insert feed history error", Err: err}
	}
	return nil
}

// FindLastConditionalGet returns the validators from the most recent
// status-200 history row for the URL's feed, or nil when none exists.
func (s *SQLiteStore) FindLastConditionalGet(url string) (*fetch.Conditions, error) {
	row := s.db.QueryRow(`
		SELECT etag, last_modified FROM feed_history
		WHERE feed_id = ? AND status = '200'
		ORDER BY created_at DESC, id ASC LIMIT 1`,
		ident.FeedID(url),
	)
	var cond fetch.Conditions
	if err := row.Scan(&cond.ETag, &cond.LastModified); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, &DBError{Op: "find last conditional get", Err: err}
	}
	return &cond, nil
}

// FindLastFetchTime returns the created_at of the most recent history
// row of any kind for the URL's feed, or "" when none exists.
func (s *SQLiteStore) FindLastFetchTime(url string) (string, error) {
	row := s.db.QueryRow(`
		SELECT created_at FROM feed_history
		WHERE feed_id = ?
		ORDER BY created_at DESC, id ASC LIMIT 1`,
		ident.FeedID(url),
	)
	var ts string
	if err := row.Scan(&ts); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", &DBError{Op: "find last fetch time", Err: err}
	}
	return ts, nil
}

const feedColumns = `id, url, title, subtitle, link, published, updated,
	last_entry_published, json, created_at, modified_at`

// GetFeed returns the feed row for id, or nil when absent.
func (s *SQLiteStore) GetFeed(id string) (*models.Feed, error) {
	row := s.db.QueryRow(`SELECT `+feedColumns+` FROM feeds WHERE id = ?`, id)
	feed, err := scanFeed(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, &DBError{Op: "get feed", Err: err}
	}
	return feed, nil
}

// ListFeeds returns feeds ordered by last_entry_published DESC. The
// since filter compares against last_entry_published.
func (s *SQLiteStore) ListFeeds(since string, page *Page) ([]models.Feed, error) {
	query := `SELECT ` + feedColumns + ` FROM feeds`
	var args []any
	if since != "" {
		query += " WHERE last_entry_published > ?"
		args = append(args, since)
	}
	query += " ORDER BY last_entry_published DESC, updated DESC, id ASC"
	skip, take := page.Normalize()
	query += " LIMIT ? OFFSET ?"
	args = append(args, take, skip)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &DBError{Op: "list feeds", Err: err}
	}
	defer rows.Close()

	var feeds []models.Feed
	for rows.Next() {
		feed, err := scanFeed(rows.Scan)
		if err != nil {
			return nil, &DBError{Op: "scan feed", Err: err}
		}
		feeds = append(feeds, *feed)
	}
	if err := rows.Err(); err != nil {
		return nil, &DBError{Op: "list feeds", Err: err}
	}
	return feeds, nil
}

const entryColumns = `id, feed_id, title, link, summary, content, published,
	updated, defunct, json, created_at, modified_at`

// ListEntries returns entries ordered by published DESC. The since
// filter compares against published.
func (s *SQLiteStore) ListEntries(since string, page *Page) ([]models.Entry, error) {
	return s.listEntries("", since, page)
}

// ListEntriesByFeed is ListEntries scoped to one feed.
func (s *SQLiteStore) ListEntriesByFeed(feedID, since string, page *Page) ([]models.Entry, error) {
	return s.listEntries(feedID, since, page)
}

func (s *SQLiteStore) listEntries(feedID, since string, page *Page) ([]models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries`
	var conditions []string
	var args []any
	if feedID != "" {
		conditions = append(conditions, "feed_id = ?")
		args = append(args, feedID)
	}
	if since != "" {
		conditions = append(conditions, "published > ?")
		args = append(args, since)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY published DESC, updated DESC, id ASC"
	skip, take := page.Normalize()
	query += " LIMIT ? OFFSET ?"
	args = append(args, take, skip)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &DBError{Op: "list entries", Err: err}
	}
	defer rows.Close()

	var entries []models.Entry
	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, &DBError{Op: "scan entry", Err: err}
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, &DBError{Op: "list entries", Err: err}
	}
	return entries, nil
}

// ListHistoryByFeed returns history rows for one feed ordered by
// created_at DESC. The since filter compares against created_at.
func (s *SQLiteStore) ListHistoryByFeed(feedID, since string, page *Page) ([]models.FeedHistory, error) {
	query := `
		SELECT id, feed_id, created_at, status, src, etag, last_modified,
			is_error, error_text
		FROM feed_history WHERE feed_id = ?`
	args := []any{feedID}
	if since != "" {
		query += " AND created_at > ?"
		args = append(args, since)
	}
	query += " ORDER BY created_at DESC, id ASC"
	skip, take := page.Normalize()
	query += " LIMIT ? OFFSET ?"
	args = append(args, take, skip)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &DBError{Op: "list feed history", Err: err}
	}
	defer rows.Close()

	var history []models.FeedHistory
	for rows.Next() {
		var h models.FeedHistory
		if err := rows.Scan(
			&h.ID, &h.FeedID, &h.CreatedAt, &h.Status, &h.Src, &h.ETag,
			&h.LastModified, &h.IsError, &h.ErrorText,
		); err != nil {
			return nil, &DBError{Op: "scan feed history", Err: err}
		}
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, &DBError{Op: "list feed history", Err: err}
	}
	return history, nil
}

// ListEntriesWithFeeds left-joins entries to their feeds for the report
// subcommands. A zero limit means no limit.
func (s *SQLiteStore) ListEntriesWithFeeds(since string, limit int) ([]models.EntryWithFeed, error) {
	query := `
		SELECT e.id, e.feed_id, e.title, e.link, e.summary, e.content,
			e.published, e.updated, e.defunct, e.json, e.created_at, e.modified_at,
			f.id, f.url, f.title, f.subtitle, f.link, f.published, f.updated,
			f.last_entry_published, f.json, f.created_at, f.modified_at
		FROM entries e LEFT JOIN feeds f ON e.feed_id = f.id`
	var args []any
	if since != "" {
		query += " WHERE e.published > ?"
		args = append(args, since)
	}
	query += " ORDER BY e.published DESC, e.updated DESC, e.id ASC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &DBError{Op: "list entries with feeds", Err: err}
	}
	defer rows.Close()

	var result []models.EntryWithFeed
	for rows.Next() {
		var e models.Entry
		var f struct {
			id, url, title, subtitle, link, published, updated sql.NullString
			lastEntryPublished, json, createdAt, modifiedAt    sql.NullString
		}
		if err := rows.Scan(
			&e.ID, &e.FeedID, &e.Title, &e.Link, &e.Summary, &e.Content,
			&e.Published, &e.Updated, &e.Defunct, &e.JSON, &e.CreatedAt, &e.ModifiedAt,
			&f.id, &f.url, &f.title, &f.subtitle, &f.link, &f.published, &f.updated,
			&f.lastEntryPublished, &f.json, &f.createdAt, &f.modifiedAt,
		); err != nil {
			return nil, &DBError{Op: "scan entry with feed", Err: err}
		}
		row := models.EntryWithFeed{Entry: e}
		if f.id.Valid {
			row.Feed = &models.Feed{
				ID: f.id.String, URL: f.url.String, Title: f.title.String,
				Subtitle: f.subtitle.String, Link: f.link.String,
				Published: f.published.String, Updated: f.updated.String,
				LastEntryPublished: f.lastEntryPublished.String, JSON: f.json.String,
				CreatedAt: f.createdAt.String, ModifiedAt: f.modifiedAt.String,
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &DBError{Op: "list entries with feeds", Err: err}
	}
	return result, nil
}

func (s *SQLiteStore) rowExists(table, id string) (bool, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM "+table+" WHERE id = ?", id).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanFeed(scan func(...any) error) (*models.Feed, error) {
	var feed models.Feed
	if err := scan(
		&feed.ID, &feed.URL, &feed.Title, &feed.Subtitle, &feed.Link,
		&feed.Published, &feed.Updated, &feed.LastEntryPublished, &feed.JSON,
		&feed.CreatedAt, &feed.ModifiedAt,
	); err != nil {
		return nil, err
	}
	return &feed, nil
}

func scanEntry(scan func(...any) error) (*models.Entry, error) {
	var entry models.Entry
	if err := scan(
		&entry.ID, &entry.FeedID, &entry.Title, &entry.Link, &entry.Summary,
		&entry.Content, &entry.Published, &entry.Updated, &entry.Defunct,
		&entry.JSON, &entry.CreatedAt, &entry.ModifiedAt,
	); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Ensure SQLiteStore satisfies the Store interface.
var _ Store = (*SQLiteStore)(nil)
