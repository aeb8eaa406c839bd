/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package localdb

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// FileIntegrityRecord is one tracked baseline in the file_integrity
// table: the hash and size last observed for a path, and when it was
// last checked. No checker in this core populates this table yet; it is
// exposed so a future file-integrity monitor can persist baselines
// without a local-database schema change.
type FileIntegrityRecord struct {
	Path       string
	Hash       string
	Size       int64
	ModifiedAt time.Time
	CheckedAt  time.Time
}

// ErrFileIntegrityRecordNotFound is returned by FileIntegrityGet when path
// has no recorded baseline.
var ErrFileIntegrityRecordNotFound = errors.New("localdb: file integrity record not found")

// FileIntegrityGet reads the recorded baseline for path.
func (db *DB) FileIntegrityGet(ctx context.Context, path string) (FileIntegrityRecord, error) {
	row := db.sql.QueryRowContext(ctx, `
		SELECT path, hash, size, modified_at, checked_at FROM file_integrity WHERE path = ?
	`, path)

	var (
		rec             FileIntegrityRecord
		modified, checked int64
	)

	if err := row.Scan(&rec.Path, &rec.Hash, &rec.Size, &modified, &checked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FileIntegrityRecord{}, ErrFileIntegrityRecordNotFound
		}

		return FileIntegrityRecord{}, err
	}

	rec.ModifiedAt = time.Unix(modified, 0).UTC()
	rec.CheckedAt = time.Unix(checked, 0).UTC()

	return rec, nil
}

// FileIntegrityUpsert records or replaces the baseline for a path.
func (db *DB) FileIntegrityUpsert(ctx context.Context, rec FileIntegrityRecord) error {
	_, err := db.sql.ExecContext(ctx, `
		INSERT INTO file_integrity (path, hash, size, modified_at, checked_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			hash = excluded.hash,
			size = excluded.size,
			modified_at = excluded.modified_at,
			checked_at = excluded.checked_at
	`, rec.Path, rec.Hash, rec.Size, rec.ModifiedAt.Unix(), rec.CheckedAt.Unix())

	return err
}

// FileIntegrityDelete removes a path's baseline, e.g. once a watched file
// is unregistered.
func (db *DB) FileIntegrityDelete(ctx context.Context, path string) error {
	_, err := db.sql.ExecContext(ctx, `DELETE FROM file_integrity WHERE path = ?`, path)
	return err
}
