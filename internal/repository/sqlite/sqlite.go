// Package sqlite implements the repository interfaces on top of SQLite.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary builds
// without CGo and tests can run against ":memory:" databases.
//
// CONNECTION POOL:
// The pool is capped at a single connection. SQLite allows one writer at a
// time anyway, and an in-memory database exists per connection, so a larger
// pool would hand different requests different (empty) databases. A side
// effect is that a *sql.Rows must be fully read and closed before the next
// query runs; every method below collects rows first and hydrates afterwards.
//
// SETS:
// Follow, like and tag sets are edge tables with a composite primary key.
// INSERT OR IGNORE / DELETE on those tables is the set union / difference,
// computed here rather than trusted from a client-supplied array.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a sql.DB connection pool and implements every repository
// interface in internal/repository.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/snapgram.db" → file-based database (persistent)
//   - ":memory:"         → in-memory database, used by tests
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	// Ping forces the first real connection so a bad path fails here, not on
	// the first request.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite. The edge tables rely on
	// ON DELETE CASCADE to drop follow and like rows with their owner.
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

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database still answers. Used by the health route.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates every table and index. CREATE ... IF NOT EXISTS makes it
// safe to run on each start.
//
// posts.creator_id deliberately has no foreign key: removing a user's posts
// is an explicit second step of the user.deleted reconciliation.
func (db *DB) migrate() error {
	stmts := []struct {
		name string
		sql  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id                   TEXT PRIMARY KEY,
				external_identity_id TEXT NOT NULL,
				email                TEXT NOT NULL,
				username             TEXT NOT NULL,
				first_name           TEXT NOT NULL,
				last_name            TEXT NOT NULL,
				photo_url            TEXT NOT NULL DEFAULT '',
				created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_users_external_identity_id ON users(external_identity_id);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email);
		`},
		{"follows", `
			CREATE TABLE IF NOT EXISTS follows (
				follower_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				followee_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				PRIMARY KEY (follower_id, followee_id)
			);
			CREATE INDEX IF NOT EXISTS idx_follows_followee ON follows(followee_id);
		`},
		{"posts", `
			CREATE TABLE IF NOT EXISTS posts (
				id         TEXT PRIMARY KEY,
				creator_id TEXT NOT NULL,
				caption    TEXT NOT NULL,
				image_url  TEXT NOT NULL,
				location   TEXT NOT NULL,
				tags       TEXT NOT NULL DEFAULT '[]',
				created_at INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);
			CREATE INDEX IF NOT EXISTS idx_posts_creator_id ON posts(creator_id);
		`},
		{"post_likes", `
			CREATE TABLE IF NOT EXISTS post_likes (
				post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
				user_id TEXT NOT NULL,
				PRIMARY KEY (post_id, user_id)
			);
		`},
		{"comments", `
			CREATE TABLE IF NOT EXISTS comments (
				id         TEXT PRIMARY KEY,
				user_id    TEXT NOT NULL,
				post_id    TEXT NOT NULL,
				comment    TEXT NOT NULL,
				created_at INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);
		`},
		{"comment_likes", `
			CREATE TABLE IF NOT EXISTS comment_likes (
				comment_id TEXT NOT NULL REFERENCES comments(id) ON DELETE CASCADE,
				user_id    TEXT NOT NULL,
				PRIMARY KEY (comment_id, user_id)
			);
		`},
		{"saves", `
			CREATE TABLE IF NOT EXISTS saves (
				id         TEXT PRIMARY KEY,
				user_id    TEXT NOT NULL,
				post_id    TEXT NOT NULL,
				created_at INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_saves_user_id ON saves(user_id);
			CREATE INDEX IF NOT EXISTS idx_saves_post_id ON saves(post_id);
		`},
	}

	for _, st := range stmts {
		if _, err := db.conn.Exec(st.sql); err != nil {
			return fmt.Errorf("creating %s table: %w", st.name, err)
		}
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx so helpers can run inside
// or outside a transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// queryStrings runs a single-column query and returns every value.
func queryStrings(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// exists reports whether a row with the given id is present in table.
// table is always a constant from this package, never user input.
func exists(ctx context.Context, q querier, table, id string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE id = ?`, table), id,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// isUniqueViolation reports whether err came from a UNIQUE or PRIMARY KEY
// constraint.
func isUniqueViolation(err error) bool {
	var se *sqlitedriver.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// withTx runs fn inside a transaction, committing on success.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
