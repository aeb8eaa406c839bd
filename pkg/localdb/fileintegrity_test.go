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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileIntegrityUpsertAndGet(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	rec := FileIntegrityRecord{
		Path:       "/etc/passwd",
		Hash:       "deadbeef",
		Size:       1024,
		ModifiedAt: time.Unix(1700000000, 0).UTC(),
		CheckedAt:  time.Unix(1700000100, 0).UTC(),
	}

	require.NoError(t, db.FileIntegrityUpsert(ctx, rec))

	got, err := db.FileIntegrityGet(ctx, "/etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, rec.Path, got.Path)
	assert.Equal(t, rec.Hash, got.Hash)
	assert.Equal(t, rec.Size, got.Size)
	assert.True(t, rec.ModifiedAt.Equal(got.ModifiedAt))
	assert.True(t, rec.CheckedAt.Equal(got.CheckedAt))
}

func TestFileIntegrityUpsertReplacesExisting(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	first := FileIntegrityRecord{Path: "/bin/sh", Hash: "aaa", Size: 10, ModifiedAt: time.Unix(1, 0), CheckedAt: time.Unix(2, 0)}
	second := FileIntegrityRecord{Path: "/bin/sh", Hash: "bbb", Size: 20, ModifiedAt: time.Unix(3, 0), CheckedAt: time.Unix(4, 0)}

	require.NoError(t, db.FileIntegrityUpsert(ctx, first))
	require.NoError(t, db.FileIntegrityUpsert(ctx, second))

	got, err := db.FileIntegrityGet(ctx, "/bin/sh")
	require.NoError(t, err)
	assert.Equal(t, "bbb", got.Hash)
	assert.Equal(t, int64(20), got.Size)
}

func TestFileIntegrityGetMissingPath(t *testing.T) {
	db, _ := newTestDB(t)

	_, err := db.FileIntegrityGet(context.Background(), "/never/tracked")
	assert.ErrorIs(t, err, ErrFileIntegrityRecordNotFound)
}

func TestFileIntegrityDelete(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	rec := FileIntegrityRecord{Path: "/tmp/x", Hash: "h", Size: 1, ModifiedAt: time.Unix(1, 0), CheckedAt: time.Unix(1, 0)}
	require.NoError(t, db.FileIntegrityUpsert(ctx, rec))
	require.NoError(t, db.FileIntegrityDelete(ctx, "/tmp/x"))

	_, err := db.FileIntegrityGet(ctx, "/tmp/x")
	assert.ErrorIs(t, err, ErrFileIntegrityRecordNotFound)
}
