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
)

// ErrRegistryKeyNotFound is returned by RegistryGet when key has no value.
var ErrRegistryKeyNotFound = errors.New("localdb: registry key not found")

// RegistryGet reads a single key/value pair from the registry table, the
// agent's small persistent key-value store (§4.6).
func (db *DB) RegistryGet(ctx context.Context, key string) (string, error) {
	row := db.sql.QueryRowContext(ctx, `SELECT value FROM registry WHERE key = ?`, key)

	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrRegistryKeyNotFound
		}

		return "", err
	}

	return value, nil
}

// RegistrySet writes or overwrites a registry key/value pair.
func (db *DB) RegistrySet(ctx context.Context, key, value string) error {
	_, err := db.sql.ExecContext(ctx, `
		INSERT INTO registry (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)

	return err
}

// RegistryDelete removes a registry key. Deleting an absent key is a no-op.
func (db *DB) RegistryDelete(ctx context.Context, key string) error {
	_, err := db.sql.ExecContext(ctx, `DELETE FROM registry WHERE key = ?`, key)
	return err
}
