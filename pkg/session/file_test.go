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

package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/carverauto/serviceradar/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionForFile(t *testing.T) *Session {
	t.Helper()

	return &Session{
		cfg: Config{FileStoreRoot: t.TempDir()},
	}
}

func TestSanitizeFileNameStripsTraversal(t *testing.T) {
	name, err := sanitizeFileName("../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, "passwd", name)
}

func TestSanitizeFileNameRejectsDotAndEmpty(t *testing.T) {
	for _, bad := range []string{"", ".", ".."} {
		_, err := sanitizeFileName(bad)
		assert.Error(t, err, "expected %q to be rejected", bad)
	}
}

func TestBeginAndWriteFileReceiveHappyPath(t *testing.T) {
	s := newTestSessionForFile(t)

	rcc := s.beginFileReceive(7, "update.pkg")
	require.Equal(t, wire.Success, rcc)
	assert.Equal(t, StateReceivingFile, s.State())

	rcc, shouldReply := s.writeFileData(7, []byte("hello "), false)
	assert.False(t, shouldReply)
	_ = rcc

	rcc, shouldReply = s.writeFileData(7, []byte("world"), true)
	assert.True(t, shouldReply)
	assert.Equal(t, wire.Success, rcc)
	assert.Equal(t, StateAuthenticated, s.State())

	data, err := os.ReadFile(filepath.Join(s.cfg.FileStoreRoot, "update.pkg"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestBeginFileReceiveRejectsSecondConcurrent(t *testing.T) {
	s := newTestSessionForFile(t)

	rcc := s.beginFileReceive(1, "a.bin")
	require.Equal(t, wire.Success, rcc)

	rcc = s.beginFileReceive(2, "b.bin")
	assert.Equal(t, wire.ErrResourceBusy, rcc)
}

func TestWriteFileDataIgnoresIDMismatch(t *testing.T) {
	s := newTestSessionForFile(t)

	rcc := s.beginFileReceive(5, "c.bin")
	require.Equal(t, wire.Success, rcc)

	rcc, shouldReply := s.writeFileData(999, []byte("ignored"), true)
	assert.False(t, shouldReply)
	assert.Equal(t, wire.ResultCode(0), rcc)
	assert.Equal(t, StateReceivingFile, s.State())
}

func TestWriteFileDataNoActiveReceive(t *testing.T) {
	s := newTestSessionForFile(t)

	rcc, shouldReply := s.writeFileData(1, []byte("x"), true)
	assert.True(t, shouldReply)
	assert.Equal(t, wire.ErrInternal, rcc)
}

func TestAbortFileReceiveRemovesPartialFile(t *testing.T) {
	s := newTestSessionForFile(t)

	rcc := s.beginFileReceive(3, "partial.bin")
	require.Equal(t, wire.Success, rcc)

	_, _ = s.writeFileData(3, []byte("half"), false)

	s.abortFileReceive(true)

	_, err := os.Stat(filepath.Join(s.cfg.FileStoreRoot, "partial.bin"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, StateAuthenticated, s.State())
}
