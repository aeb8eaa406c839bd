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
	"crypto/md5"  //nolint:gosec // wire-mandated legacy credential form, §4.4
	"crypto/sha1" //nolint:gosec // wire-mandated legacy credential form, §4.4
	"crypto/subtle"
	"time"

	"github.com/carverauto/serviceradar/pkg/metriccatalog"
)

// authType mirrors the wire's FieldAuthType values (§4.4 Authentication).
type authType uint16

const (
	authPlaintext authType = 0
	authMD5       authType = 1
	authSHA1      authType = 2
)

const (
	maxAuthFailures  = 3
	authFailureWindow = 60 * time.Second
)

// checkCredential implements the three accepted credential forms. A
// plaintext compare uses constant time to avoid timing side-channels even
// though the original implementation used a plain strcmp.
func (s *Session) checkCredential(kind authType, credential []byte) bool {
	secret := []byte(s.cfg.SharedSecret)

	switch kind {
	case authPlaintext:
		return subtle.ConstantTimeCompare(credential, secret) == 1
	case authMD5:
		sum := md5.Sum(secret)
		return subtle.ConstantTimeCompare(credential, sum[:]) == 1
	case authSHA1:
		sum := sha1.Sum(secret)
		return subtle.ConstantTimeCompare(credential, sum[:]) == 1
	default:
		return false
	}
}

// recordAuthFailure appends a failure timestamp and reports whether the
// session has now reached three failures within the trailing 60 s window
// (§4.4: "three failed attempts ... within 60 s -> close").
func (s *Session) recordAuthFailure(now time.Time) (locked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-authFailureWindow)

	kept := s.authFailures[:0]

	for _, t := range s.authFailures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	kept = append(kept, now)
	s.authFailures = kept

	return len(s.authFailures) >= maxAuthFailures
}

// authenticate validates a LOGIN request's identity/credential pair and,
// on success, installs the session's post-auth identity and access level.
// The access level here is a simplification of the original agent's
// per-peer ACL table: any successful login grants read+control, and
// master-server gating of proxy setup is driven by Config.MasterServer
// rather than a second credential tier (policy deploy and component-token
// commands have no handler and are answered NOT_IMPLEMENTED),
// since this core has no user database of its own (§4.4, §9 "reify
// pervasive global mutable state").
func (s *Session) authenticate(loginName string, kind authType, credential []byte) bool {
	if !s.checkCredential(kind, credential) {
		return false
	}

	level := metriccatalog.AccessRead | metriccatalog.AccessControl
	if s.cfg.MasterServer {
		level |= metriccatalog.AccessMaster
	}

	s.mu.Lock()
	s.userIdentity = loginName
	s.accessLevel = level
	s.mu.Unlock()

	return true
}
