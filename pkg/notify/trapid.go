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

package notify

import (
	"encoding/binary"
	"hash/fnv"
	"sync/atomic"

	"github.com/google/uuid"
)

// TrapIDGenerator produces the globally unique, monotonically distinct
// FieldTrapID value every outgoing frame carries for at-most-once
// delivery dedup (§4.5). The source built this id as
// (epoch_seconds << 32) | counter, which can re-issue an id across a
// clock reset (§9 Open Question). This generator instead folds a
// per-process counter together with a per-process UUID salt through
// fnv64a, so no wall-clock value ever enters the id.
type TrapIDGenerator struct {
	salt    uint64
	counter uint64
}

// NewTrapIDGenerator draws a fresh 16-bit salt from a process-scoped
// UUID. One generator is meant to be shared process-wide.
func NewTrapIDGenerator() *TrapIDGenerator {
	id := uuid.New()
	salt := uint64(binary.BigEndian.Uint16(id[:2]))

	return &TrapIDGenerator{salt: salt}
}

// Next returns the next trap id. Safe for concurrent use.
func (g *TrapIDGenerator) Next() uint64 {
	tick := atomic.AddUint64(&g.counter, 1)
	mixed := tick ^ (g.salt << 48)

	h := fnv.New64a()

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], mixed)
	_, _ = h.Write(buf[:])

	return h.Sum64()
}
