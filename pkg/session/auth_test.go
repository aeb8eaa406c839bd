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
	"crypto/md5"  //nolint:gosec
	"crypto/sha1" //nolint:gosec
	"testing"
	"time"

	"github.com/carverauto/serviceradar/pkg/metriccatalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionForAuth() *Session {
	return &Session{
		cfg:    Config{SharedSecret: "hunter2"},
		stopCh: make(chan struct{}),
	}
}

func TestCheckCredentialPlaintext(t *testing.T) {
	s := newTestSessionForAuth()

	assert.True(t, s.checkCredential(authPlaintext, []byte("hunter2")))
	assert.False(t, s.checkCredential(authPlaintext, []byte("wrong")))
}

func TestCheckCredentialMD5(t *testing.T) {
	s := newTestSessionForAuth()
	sum := md5.Sum([]byte("hunter2"))

	assert.True(t, s.checkCredential(authMD5, sum[:]))
	assert.False(t, s.checkCredential(authMD5, []byte("not-a-digest-not-a-digest------")))
}

func TestCheckCredentialSHA1(t *testing.T) {
	s := newTestSessionForAuth()
	sum := sha1.Sum([]byte("hunter2"))

	assert.True(t, s.checkCredential(authSHA1, sum[:]))
}

func TestAuthenticateGrantsReadControl(t *testing.T) {
	s := newTestSessionForAuth()

	ok := s.authenticate("alice", authPlaintext, []byte("hunter2"))
	require.True(t, ok)

	assert.Equal(t, "alice", s.UserIdentity())
	assert.True(t, s.AccessLevel().Has(metriccatalog.AccessRead))
	assert.True(t, s.AccessLevel().Has(metriccatalog.AccessControl))
	assert.False(t, s.AccessLevel().Has(metriccatalog.AccessMaster))
}

func TestAuthenticateMasterServerGrantsMasterAccess(t *testing.T) {
	s := newTestSessionForAuth()
	s.cfg.MasterServer = true

	ok := s.authenticate("server", authPlaintext, []byte("hunter2"))
	require.True(t, ok)

	assert.True(t, s.AccessLevel().Has(metriccatalog.AccessMaster))
}

func TestAuthenticateWrongCredentialFails(t *testing.T) {
	s := newTestSessionForAuth()

	ok := s.authenticate("alice", authPlaintext, []byte("wrong"))
	assert.False(t, ok)
	assert.Empty(t, s.UserIdentity())
}

func TestRecordAuthFailureLocksAfterThree(t *testing.T) {
	s := newTestSessionForAuth()

	now := time.Now()
	assert.False(t, s.recordAuthFailure(now))
	assert.False(t, s.recordAuthFailure(now.Add(time.Second)))
	assert.True(t, s.recordAuthFailure(now.Add(2*time.Second)))
}

func TestRecordAuthFailureWindowExpires(t *testing.T) {
	s := newTestSessionForAuth()

	now := time.Now()
	s.recordAuthFailure(now)
	s.recordAuthFailure(now.Add(time.Second))

	// Third failure arrives well outside the 60s window of the first two;
	// both are pruned and only this one counts, so this is not a lockout.
	locked := s.recordAuthFailure(now.Add(2 * time.Minute))
	assert.False(t, locked)
}
