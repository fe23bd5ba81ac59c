// Copyright (C) 2025 chatdocu.net <dev@chatdocu.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// BlobStore keeps uploaded media in a Postgres table, addressed by
// path. Public URLs are baseURL/{path}; whatever serves them (a CDN,
// the /media handler) resolves back into this table.
type BlobStore struct {
	db      *sql.DB
	baseURL string
	logger  *zap.SugaredLogger
}

func NewBlobStore(logger *zap.SugaredLogger, db *sql.DB, baseURL string) *BlobStore {
	return &BlobStore{
		db:      db,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

func (s *BlobStore) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS blobs (
			path VARCHAR(512) PRIMARY KEY,
			data BYTEA NOT NULL,
			content_type VARCHAR(255) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Put stores data at path, replacing any previous blob, and returns
// the blob's public URL.
func (s *BlobStore) Put(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blobs (path, data, content_type, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (path) DO UPDATE
		SET data = $2, content_type = $3, created_at = $4`,
		path, data, contentType, time.Now())
	if err != nil {
		return "", fmt.Errorf("failed to store blob: %w", err)
	}

	s.logger.Debugf("stored blob %s (%d bytes)", path, len(data))
	return s.URL(path), nil
}

// Delete removes the blob at path. Deleting an absent blob is not an
// error: the sweeper retries paths whose record mutation failed after
// the blob was already gone.
func (s *BlobStore) Delete(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE path = $1`, path); err != nil {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// Get returns the blob bytes and content type for the media handler.
func (s *BlobStore) Get(ctx context.Context, path string) ([]byte, string, error) {
	var data []byte
	var contentType string
	err := s.db.QueryRowContext(ctx,
		`SELECT data, content_type FROM blobs WHERE path = $1`, path).
		Scan(&data, &contentType)
	if err == sql.ErrNoRows {
		return nil, "", fmt.Errorf("blob %q not found", path)
	} else if err != nil {
		return nil, "", fmt.Errorf("failed to read blob: %w", err)
	}
	return data, contentType, nil
}

// URL returns the public URL a stored path is served from.
func (s *BlobStore) URL(path string) string {
	escaped := make([]string, 0, 4)
	for _, seg := range strings.Split(path, "/") {
		escaped = append(escaped, url.PathEscape(seg))
	}
	return s.baseURL + "/" + strings.Join(escaped, "/")
}
