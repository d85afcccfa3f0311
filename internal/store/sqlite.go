package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/stockpulse/social-ingest/internal/models"
)

const platformName = "reddit"

// SQLiteStore implements PostStore and TickerStore on a local SQLite
// database.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ PostStore   = (*SQLiteStore)(nil)
	_ TickerStore = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens (and initializes, if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS posts (
		platform TEXT NOT NULL,
		id TEXT NOT NULL,
		title TEXT,
		body TEXT,
		author TEXT,
		community TEXT NOT NULL,
		score INTEGER NOT NULL,
		upvote_ratio REAL NOT NULL,
		comment_count INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL,
		url TEXT,
		symbols TEXT,
		quality_score REAL NOT NULL,
		is_finance_related BOOLEAN NOT NULL,
		saved_at TIMESTAMP NOT NULL,
		PRIMARY KEY (platform, id)
	);
	CREATE INDEX IF NOT EXISTS idx_posts_saved_at ON posts(saved_at);
	CREATE INDEX IF NOT EXISTS idx_posts_community ON posts(community);

	CREATE TABLE IF NOT EXISTS comments (
		platform TEXT NOT NULL,
		id TEXT NOT NULL,
		post_id TEXT NOT NULL,
		body TEXT,
		author TEXT,
		score INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL,
		permalink TEXT,
		symbols TEXT,
		quality_score REAL NOT NULL,
		saved_at TIMESTAMP NOT NULL,
		PRIMARY KEY (platform, id)
	);
	CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);

	CREATE TABLE IF NOT EXISTS symbols (
		symbol TEXT PRIMARY KEY,
		active BOOLEAN NOT NULL DEFAULT 1,
		updated_at TIMESTAMP NOT NULL
	);
	`

	_, err := s.db.Exec(query)
	return err
}

// SaveBatch upserts posts and comments in one transaction. Any failure
// rolls the whole batch back and is returned to the caller.
func (s *SQLiteStore) SaveBatch(ctx context.Context, posts []models.Post, comments []models.Comment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	postStmt, err := tx.PrepareContext(ctx, `
	INSERT OR REPLACE INTO posts (
		platform, id, title, body, author, community, score, upvote_ratio,
		comment_count, created_at, url, symbols, quality_score,
		is_finance_related, saved_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare post statement: %w", err)
	}
	defer postStmt.Close()

	for _, p := range posts {
		if _, err := postStmt.ExecContext(ctx,
			platformName, p.ID, p.Title, p.Body, p.Author, p.Community,
			p.Score, p.UpvoteRatio, p.CommentCount, p.CreatedAt, p.URL,
			strings.Join(p.ExtractedSymbols, ","), p.QualityScore,
			p.IsFinanceRelated, now,
		); err != nil {
			return fmt.Errorf("failed to save post %s: %w", p.ID, err)
		}
	}

	commentStmt, err := tx.PrepareContext(ctx, `
	INSERT OR REPLACE INTO comments (
		platform, id, post_id, body, author, score, created_at, permalink,
		symbols, quality_score, saved_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare comment statement: %w", err)
	}
	defer commentStmt.Close()

	for _, c := range comments {
		if _, err := commentStmt.ExecContext(ctx,
			platformName, c.ID, c.PostID, c.Body, c.Author, c.Score,
			c.CreatedAt, c.Permalink, strings.Join(c.ExtractedSymbols, ","),
			c.QualityScore, now,
		); err != nil {
			return fmt.Errorf("failed to save comment %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"posts":    len(posts),
		"comments": len(comments),
	}).Debug("Saved batch")

	return nil
}

// CountPostsSince returns how many posts were saved at or after the
// given time.
func (s *SQLiteStore) CountPostsSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE saved_at >= ?`, since.UTC(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return count, nil
}

// ActiveSymbols returns the locally known active ticker universe.
func (s *SQLiteStore) ActiveSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol FROM symbols WHERE active = 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}

	return symbols, rows.Err()
}

// ReplaceSymbols replaces the active ticker universe in one transaction:
// everything not in the new set is deactivated, everything in it is
// upserted active.
func (s *SQLiteStore) ReplaceSymbols(ctx context.Context, symbols []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	if _, err := tx.ExecContext(ctx, `UPDATE symbols SET active = 0, updated_at = ?`, now); err != nil {
		return fmt.Errorf("failed to deactivate symbols: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO symbols (symbol, active, updated_at) VALUES (?, 1, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare symbol statement: %w", err)
	}
	defer stmt.Close()

	for _, symbol := range symbols {
		if _, err := stmt.ExecContext(ctx, symbol, now); err != nil {
			return fmt.Errorf("failed to upsert symbol %s: %w", symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit symbols: %w", err)
	}

	return nil
}
