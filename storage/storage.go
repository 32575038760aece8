package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"post-judge/model"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when a conditional post update lost a race.
	ErrVersionConflict = errors.New("version conflict")
)

// DB wraps the SQLite database connection and provides storage operations.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows a single writer.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		nickname TEXT NOT NULL,
		body TEXT NOT NULL,
		status TEXT NOT NULL,
		average_score REAL,
		judges_count INTEGER NOT NULL DEFAULT 0,
		score_key TEXT,
		created_at INTEGER NOT NULL,
		version INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_posts_status_created ON posts(status, created_at);
	CREATE INDEX IF NOT EXISTS idx_posts_score_key ON posts(status, score_key) WHERE score_key IS NOT NULL;

	CREATE TABLE IF NOT EXISTS judgments (
		post_id TEXT NOT NULL REFERENCES posts(id),
		persona TEXT NOT NULL,
		succeeded INTEGER NOT NULL,
		error_code TEXT,
		empathy INTEGER,
		humor INTEGER,
		brevity INTEGER,
		originality INTEGER,
		expression INTEGER,
		total_score INTEGER,
		comment TEXT,
		judged_at INTEGER NOT NULL,
		PRIMARY KEY (post_id, persona)
	);
	`

	_, err := db.conn.Exec(schema)
	return err
}

const postColumns = `id, nickname, body, status, average_score, judges_count, score_key, created_at, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*model.Post, error) {
	p := &model.Post{}
	var status string
	var avg sql.NullFloat64
	var key sql.NullString

	if err := row.Scan(&p.ID, &p.Nickname, &p.Body, &status, &avg, &p.JudgesCount, &key, &p.CreatedAt, &p.Version); err != nil {
		return nil, err
	}
	p.Status = model.Status(status)
	if avg.Valid {
		p.AverageScore = &avg.Float64
	}
	if key.Valid {
		p.ScoreKey = &key.String
	}
	return p, nil
}

// PutPost inserts or overwrites a post unconditionally, version included.
func (db *DB) PutPost(ctx context.Context, p *model.Post) error {
	query := `
	INSERT INTO posts (` + postColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		nickname = excluded.nickname,
		body = excluded.body,
		status = excluded.status,
		average_score = excluded.average_score,
		judges_count = excluded.judges_count,
		score_key = excluded.score_key,
		created_at = excluded.created_at,
		version = excluded.version
	`
	_, err := db.conn.ExecContext(ctx, query,
		p.ID, p.Nickname, p.Body, string(p.Status), p.AverageScore, p.JudgesCount, p.ScoreKey, p.CreatedAt, p.Version,
	)
	return err
}

// UpdatePostResult writes the aggregate fields of p only if the stored
// version still equals p.Version. On success p.Version is incremented.
func (db *DB) UpdatePostResult(ctx context.Context, p *model.Post) error {
	query := `
	UPDATE posts SET
		status = ?, average_score = ?, judges_count = ?, score_key = ?, version = version + 1
	WHERE id = ? AND version = ?
	`
	res, err := db.conn.ExecContext(ctx, query,
		string(p.Status), p.AverageScore, p.JudgesCount, p.ScoreKey, p.ID, p.Version,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, getErr := db.GetPost(ctx, p.ID); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	p.Version++
	return nil
}

// GetPost retrieves a post by id.
func (db *DB) GetPost(ctx context.Context, id string) (*model.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = ?`
	p, err := scanPost(db.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return p, err
}

// ListStaleJudging returns posts still judging that were created before cutoff, oldest first.
func (db *DB) ListStaleJudging(ctx context.Context, cutoff time.Time, limit int) ([]*model.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE status = ? AND created_at < ? ORDER BY created_at ASC LIMIT ?`
	return db.queryPosts(ctx, query, string(model.StatusJudging), cutoff.Unix(), limit)
}

// QueryScored returns scored posts ordered by score_key ascending.
func (db *DB) QueryScored(ctx context.Context, limit int) ([]*model.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
	WHERE status = ? AND score_key IS NOT NULL
	ORDER BY score_key ASC LIMIT ?`
	return db.queryPosts(ctx, query, string(model.StatusScored), limit)
}

// CountScoredBefore counts scored posts whose score_key sorts before scoreKey.
func (db *DB) CountScoredBefore(ctx context.Context, scoreKey string) (int, error) {
	query := `SELECT COUNT(*) FROM posts WHERE status = ? AND score_key IS NOT NULL AND score_key < ?`
	var n int
	err := db.conn.QueryRowContext(ctx, query, string(model.StatusScored), scoreKey).Scan(&n)
	return n, err
}

// CountScored counts scored posts.
func (db *DB) CountScored(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM posts WHERE status = ? AND score_key IS NOT NULL`
	var n int
	err := db.conn.QueryRowContext(ctx, query, string(model.StatusScored)).Scan(&n)
	return n, err
}

func (db *DB) queryPosts(ctx context.Context, query string, args ...any) ([]*model.Post, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []*model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
