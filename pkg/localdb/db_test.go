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
	"path/filepath"
	"testing"

	"github.com/carverauto/serviceradar/pkg/logger"
	"github.com/carverauto/serviceradar/pkg/problems"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) (*DB, *problems.Registry) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "agent.db")
	probs := problems.NewRegistry()

	db, err := Open(context.Background(), path, probs, logger.NewTestLogger())
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return db, probs
}

func TestOpenBootstrapsSchemaAndClearsProblems(t *testing.T) {
	_, probs := newTestDB(t)

	assert.False(t, probs.IsActive(problemOpen))
	assert.False(t, probs.IsActive(problemUpgrade))
}

func TestOpenIsIdempotentAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.db")
	probs := problems.NewRegistry()

	db1, err := Open(context.Background(), path, probs, logger.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, db1.Close())

	db2, err := Open(context.Background(), path, probs, logger.NewTestLogger())
	require.NoError(t, err)
	defer db2.Close()

	version, err := db2.readSchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestOpenRegistersProblemOnUnwritablePath(t *testing.T) {
	probs := problems.NewRegistry()

	// A directory path can never be opened as a sqlite file.
	_, err := Open(context.Background(), t.TempDir(), probs, logger.NewTestLogger())
	require.Error(t, err)
	assert.True(t, probs.IsActive(problemOpen) || probs.IsActive(problemUpgrade))
}

func TestVerifySchemaFindsEveryExpectedTable(t *testing.T) {
	db, _ := newTestDB(t)

	for _, table := range expectedTables {
		row := db.sql.QueryRowContext(context.Background(),
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table)

		var name string
		require.NoError(t, row.Scan(&name), "table %s should exist", table)
	}
}
