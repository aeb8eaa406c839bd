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
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/carverauto/serviceradar/pkg/wire"
)

// fileReceive tracks the single concurrent file-receive cursor a session
// may hold (§3 invariant: mutually exclusive with ordinary traffic).
type fileReceive struct {
	requestID uint32
	name      string
	f         *os.File
}

// sanitizeFileName strips directory components and rejects traversal so
// TRANSFER_FILE cannot write outside FileStoreRoot.
func sanitizeFileName(name string) (string, error) {
	base := filepath.Base(name)
	if base == "." || base == ".." || base == "" || strings.ContainsRune(base, os.PathSeparator) {
		return "", errors.New("session: invalid file name")
	}

	return base, nil
}

// beginFileReceive handles TRANSFER_FILE: opens a fresh file under
// FileStoreRoot and installs it as the session's active receive. Only one
// may be active at a time.
func (s *Session) beginFileReceive(requestID uint32, rawName string) wire.ResultCode {
	s.mu.Lock()
	active := s.file
	s.mu.Unlock()

	if active != nil {
		return wire.ErrResourceBusy
	}

	name, err := sanitizeFileName(rawName)
	if err != nil {
		return wire.ErrBadArguments
	}

	path := filepath.Join(s.cfg.FileStoreRoot, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return wire.ErrFileAlreadyExists
		}

		return wire.ErrIOFailure
	}

	s.mu.Lock()
	s.file = &fileReceive{requestID: requestID, name: name, f: f}
	s.mu.Unlock()

	s.setState(StateReceivingFile)

	return wire.Success
}

// writeFileData handles one FILE_DATA frame. An id mismatch is ignored
// per §8 "A session receiving FILE_DATA with an id that does not match
// the active receive is ignored" — it is not a fatal error for the
// active transfer.
func (s *Session) writeFileData(requestID uint32, data []byte, endOfFile bool) (wire.ResultCode, bool) {
	s.mu.Lock()
	fr := s.file
	s.mu.Unlock()

	if fr == nil {
		return wire.ErrInternal, true
	}

	if fr.requestID != requestID {
		return 0, false // silently ignored, no reply
	}

	if len(data) > 0 {
		if _, err := fr.f.Write(data); err != nil {
			s.abortFileReceive(true)

			return wire.ErrIOFailure, true
		}
	}

	if !endOfFile {
		return 0, false
	}

	if err := fr.f.Close(); err != nil {
		s.clearFileReceive()
		s.setState(StateAuthenticated)

		return wire.ErrIOFailure, true
	}

	s.clearFileReceive()
	s.setState(StateAuthenticated)

	return wire.Success, true
}

// abortFileReceive closes and, if removeFile is set, deletes the
// partially-written file (§4.4 "on any I/O error a fatal reply is sent
// and the partial file removed").
func (s *Session) abortFileReceive(removeFile bool) {
	s.mu.Lock()
	fr := s.file
	s.file = nil
	s.mu.Unlock()

	if fr == nil {
		return
	}

	_ = fr.f.Close()

	if removeFile {
		_ = os.Remove(filepath.Join(s.cfg.FileStoreRoot, fr.name))
	}

	s.setState(StateAuthenticated)
}

func (s *Session) clearFileReceive() {
	s.mu.Lock()
	s.file = nil
	s.mu.Unlock()
}
