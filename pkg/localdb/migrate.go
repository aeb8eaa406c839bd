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
	"embed"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// metadataSchemaVersionKey is the metadata row tracking which migrations
// have already been applied (§4.6 "metadata table create-or-read
// SchemaVersion").
const metadataSchemaVersionKey = "SchemaVersion"

// migrate ensures the metadata table exists, reads the current schema
// version (0 if the table was just created), and applies every migration
// file numbered above it in order.
func (db *DB) migrate(ctx context.Context) error {
	if err := db.ensureMetadataTable(ctx); err != nil {
		return fmt.Errorf("creating metadata table: %w", err)
	}

	version, err := db.readSchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	available, err := availableMigrations()
	if err != nil {
		return fmt.Errorf("listing migrations: %w", err)
	}

	for _, file := range available {
		fileVersion, err := extractVersion(file)
		if err != nil {
			return fmt.Errorf("parsing migration filename %s: %w", file, err)
		}

		if fileVersion <= version {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + file)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", file, err)
		}

		if err := db.execMultiStatement(ctx, string(content)); err != nil {
			return fmt.Errorf("applying migration %s: %w", file, err)
		}

		if err := db.writeSchemaVersion(ctx, fileVersion); err != nil {
			return fmt.Errorf("recording schema version after %s: %w", file, err)
		}

		version = fileVersion
	}

	return nil
}

func (db *DB) ensureMetadataTable(ctx context.Context) error {
	_, err := db.sql.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)

	return err
}

func (db *DB) readSchemaVersion(ctx context.Context) (int, error) {
	row := db.sql.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, metadataSchemaVersionKey)

	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}

		return 0, err
	}

	version, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("malformed SchemaVersion value %q: %w", raw, err)
	}

	return version, nil
}

func (db *DB) writeSchemaVersion(ctx context.Context, version int) error {
	_, err := db.sql.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, metadataSchemaVersionKey, strconv.Itoa(version))

	return err
}

// execMultiStatement runs every statement in a migration file against a
// single connection in order, stopping at the first failure.
func (db *DB) execMultiStatement(ctx context.Context, content string) error {
	for i, stmt := range splitSQLStatements(content) {
		if _, err := db.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement %d: %w\nstatement: %s", i+1, err, stmt)
		}
	}

	return nil
}

// splitSQLStatements splits migration content into individual statements
// on semicolon-terminated lines, skipping comment-only and blank lines.
func splitSQLStatements(content string) []string {
	var statements []string

	var current strings.Builder

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "--") || trimmed == "" {
			continue
		}

		if current.Len() > 0 {
			current.WriteString("\n")
		}

		current.WriteString(line)

		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSuffix(strings.TrimSpace(current.String()), ";")
			if stmt != "" {
				statements = append(statements, stmt)
			}

			current.Reset()
		}
	}

	if current.Len() > 0 {
		if stmt := strings.TrimSuffix(strings.TrimSpace(current.String()), ";"); stmt != "" {
			statements = append(statements, stmt)
		}
	}

	return statements
}

func availableMigrations() ([]string, error) {
	files, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, err
	}

	var available []string

	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".up.sql") {
			available = append(available, file.Name())
		}
	}

	sort.Strings(available)

	return available, nil
}

// extractVersion parses the leading "NNNN" of a "NNNN_description.up.sql"
// migration filename.
func extractVersion(filename string) (int, error) {
	prefix := strings.Split(filename, "_")[0]

	version, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, fmt.Errorf("filename %q does not start with a numeric version: %w", filename, err)
	}

	return version, nil
}
