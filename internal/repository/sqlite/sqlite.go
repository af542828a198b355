// Package sqlite implements the repository interfaces using SQLite as the
// storage backend (modernc.org/sqlite, pure Go, no CGo).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/authors-haven/internal/repository"
)

// DB wraps a sql.DB and implements every repository interface.
//
// The pool is limited to a single connection: SQLite allows one writer at a
// time anyway, and ":memory:" databases exist per connection. Methods must
// therefore never issue a query on db.conn while a transaction or an open
// *sql.Rows holds that connection.
type DB struct {
	conn *sql.DB
}

// seedTags are the categories available on a fresh database.
var seedTags = []string{"Food", "Technology", "Art", "Finance", "Health"}

// New opens the database at dbPath (":memory:" for tests) and runs
// migrations.
func New(dbPath string) (*DB, error) {
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress. In-memory
	// databases answer "memory" and keep going.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Cascading deletes depend on this; the DSN sets it too.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. Every statement is idempotent so it runs on
// every start.
func (db *DB) migrate() error {
	// Phase 1: accounts and the social graph.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			email               TEXT NOT NULL UNIQUE COLLATE NOCASE,
			username            TEXT NOT NULL UNIQUE,
			firstname           TEXT NOT NULL DEFAULT '',
			lastname            TEXT NOT NULL DEFAULT '',
			bio                 TEXT NOT NULL DEFAULT '',
			image               TEXT NOT NULL DEFAULT '',
			password            TEXT NOT NULL DEFAULT '',
			role                TEXT NOT NULL DEFAULT 'user',
			active              INTEGER NOT NULL DEFAULT 0,
			email_notification  INTEGER NOT NULL DEFAULT 1,
			in_app_notification INTEGER NOT NULL DEFAULT 1,
			created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS follows (
			follower_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			followed_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (follower_id, followed_id),
			CHECK (follower_id <> followed_id)
		);
		CREATE INDEX IF NOT EXISTS idx_follows_followed ON follows(followed_id);
	`)
	if err != nil {
		return fmt.Errorf("creating user tables: %w", err)
	}

	// Phase 2: social login identity on users (idempotent on existing DBs).
	if err := db.addColumnIfNotExists("users", "provider", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding provider to users: %w", err)
	}
	if err := db.addColumnIfNotExists("users", "provider_id", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding provider_id to users: %w", err)
	}

	// Phase 3: tags and articles with their per-user facts.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS tags (
			id   INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS articles (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id      INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			tag_id       INTEGER REFERENCES tags(id) ON DELETE CASCADE,
			title        TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			body         TEXT NOT NULL DEFAULT '',
			cover_url    TEXT NOT NULL DEFAULT '',
			slug         TEXT NOT NULL UNIQUE,
			rating       REAL NOT NULL DEFAULT 0,
			rating_count INTEGER NOT NULL DEFAULT 0,
			total_claps  INTEGER NOT NULL DEFAULT 0,
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_articles_user ON articles(user_id);
		CREATE INDEX IF NOT EXISTS idx_articles_tag ON articles(tag_id);
		CREATE INDEX IF NOT EXISTS idx_articles_created_at ON articles(created_at);

		CREATE TABLE IF NOT EXISTS ratings (
			article_id INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
			user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			value      INTEGER NOT NULL CHECK (value BETWEEN 1 AND 5),
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (article_id, user_id)
		);

		CREATE TABLE IF NOT EXISTS claps (
			article_id INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
			user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (article_id, user_id)
		);

		CREATE TABLE IF NOT EXISTS bookmarks (
			user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			article_id INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, article_id)
		);
		CREATE INDEX IF NOT EXISTS idx_bookmarks_article ON bookmarks(article_id);

		CREATE TABLE IF NOT EXISTS reports (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			article_id INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
			user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			reason     TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating article tables: %w", err)
	}

	// Phase 4: comments with likes and edit history.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS comments (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			article_id  INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
			user_id     INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			comment     TEXT NOT NULL,
			total_likes INTEGER NOT NULL DEFAULT 0,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_comments_article ON comments(article_id);

		CREATE TABLE IF NOT EXISTS comment_edits (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			comment_id INTEGER NOT NULL REFERENCES comments(id) ON DELETE CASCADE,
			comment    TEXT NOT NULL,
			edited_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS comment_likes (
			comment_id INTEGER NOT NULL REFERENCES comments(id) ON DELETE CASCADE,
			user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			PRIMARY KEY (comment_id, user_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating comment tables: %w", err)
	}

	// Phase 5: notifications.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS notifications (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			type       TEXT NOT NULL,
			message    TEXT NOT NULL,
			article_id INTEGER REFERENCES articles(id) ON DELETE CASCADE,
			is_read    INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating notifications table: %w", err)
	}

	for _, name := range seedTags {
		if _, err := db.conn.Exec(`INSERT OR IGNORE INTO tags (name) VALUES (?)`, name); err != nil {
			return fmt.Errorf("seeding tag %q: %w", name, err)
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// Makes ALTER TABLE migrations idempotent.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isForeignKeyViolation reports whether err is a FOREIGN KEY failure, e.g.
// a tag id that does not exist.
func isForeignKeyViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// uniqueColumn extracts "users.email" from a UNIQUE constraint message.
func uniqueColumn(err error) string {
	msg := err.Error()
	const marker = "UNIQUE constraint failed: "
	i := strings.Index(msg, marker)
	if i < 0 {
		return ""
	}
	col := msg[i+len(marker):]
	if j := strings.IndexAny(col, " ,)"); j >= 0 {
		col = col[:j]
	}
	return col
}

// prefixed qualifies a comma-separated column list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// clampPage applies the default and maximum page size.
func clampPage(opts repository.ListOptions) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset = opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
