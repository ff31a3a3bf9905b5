// Package archive persists generated avatar images with descriptive
// metadata. Persistence is best-effort housekeeping: every caller treats
// failures as warnings, never as generation errors.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one archived generation.
type Record struct {
	ImageURL       string
	Prompt         string
	NegativePrompt string
	Style          string
	Model          string
	Provider       string
	RequestHash    string
	Tags           []string
	CreatedAt      time.Time
}

// Storage is the sqlite-backed image archive.
type Storage struct {
	db *sql.DB
}

// NewStorage opens (and if needed creates) the archive database in dataDir.
func NewStorage(dataDir string) (*Storage, error) {
	dbPath := filepath.Join(dataDir, "avatar_archive.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}

	s := &Storage{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize archive schema: %w", err)
	}
	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS avatar_images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		image_url TEXT NOT NULL,
		prompt TEXT NOT NULL,
		negative_prompt TEXT NOT NULL DEFAULT '',
		style TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		provider TEXT NOT NULL DEFAULT '',
		request_hash TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := s.db.Exec(query); err != nil {
		return err
	}

	indexQueries := []string{
		`CREATE INDEX IF NOT EXISTS idx_avatar_images_created ON avatar_images (created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_avatar_images_hash ON avatar_images (request_hash);`,
	}
	for _, q := range indexQueries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// SaveImage stores one generation record.
func (s *Storage) SaveImage(ctx context.Context, rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	query := `
	INSERT INTO avatar_images (image_url, prompt, negative_prompt, style, model, provider, request_hash, tags, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		rec.ImageURL, rec.Prompt, rec.NegativePrompt, rec.Style, rec.Model,
		rec.Provider, rec.RequestHash, strings.Join(rec.Tags, ","), rec.CreatedAt)
	return err
}

// CleanupOldImages deletes the oldest records beyond keepCount and returns
// the image URLs of the deleted rows so the caller can release any local
// files behind them.
func (s *Storage) CleanupOldImages(ctx context.Context, keepCount int) ([]string, error) {
	if keepCount < 0 {
		keepCount = 0
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT id, image_url FROM avatar_images
	ORDER BY created_at DESC, id DESC
	LIMIT -1 OFFSET ?`, keepCount)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []any
	var urls []string
	for rows.Next() {
		var id int64
		var url string
		if err := rows.Scan(&id, &url); err != nil {
			return nil, err
		}
		ids = append(ids, id)
		urls = append(urls, url)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	_, err = s.db.ExecContext(ctx, `DELETE FROM avatar_images WHERE id IN (`+placeholders+`)`, ids...)
	if err != nil {
		return nil, err
	}
	return urls, nil
}

// Recent returns up to n records, newest first.
func (s *Storage) Recent(ctx context.Context, n int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT image_url, prompt, negative_prompt, style, model, provider, request_hash, tags, created_at
	FROM avatar_images
	ORDER BY created_at DESC, id DESC
	LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var rec Record
		var tags string
		if err := rows.Scan(&rec.ImageURL, &rec.Prompt, &rec.NegativePrompt, &rec.Style,
			&rec.Model, &rec.Provider, &rec.RequestHash, &tags, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if tags != "" {
			rec.Tags = strings.Split(tags, ",")
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
