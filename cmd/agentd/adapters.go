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

package main

import (
	"bytes"
	"context"
	"time"

	"github.com/carverauto/serviceradar/pkg/logger"
	"github.com/carverauto/serviceradar/pkg/notify"
	"github.com/carverauto/serviceradar/pkg/session"
	"github.com/carverauto/serviceradar/pkg/wire"
)

// sessionLocator adapts *session.Listener to notify.SessionLocator. It
// lives here, not in either package, so neither acquires a compile-time
// dependency on the other (§5's session-list/notify-queue separation).
type sessionLocator struct {
	listener *session.Listener
}

func (a *sessionLocator) FindOnline(serverID uint64) (notify.SessionTarget, bool) {
	s, ok := a.listener.FindByServerID(serverID)
	if !ok {
		return nil, false
	}

	return s, true
}

// trapSink adapts *notify.Processor to subagent.TrapSink: decodes the raw
// frame bytes a subagent bridge forwards and stamps a fresh trap id
// before enqueuing (§4.3 step 2, §9 trap-id Open Question).
type trapSink struct {
	processor *notify.Processor
	log       logger.Logger
}

func (t trapSink) Notify(serverTrap []byte) {
	frame, err := wire.ReadFrame(bytes.NewReader(serverTrap))
	if err != nil {
		t.log.Warn().Err(err).Msg("discarding malformed trap frame from subagent")
		return
	}

	frame.SetUint64(wire.FieldTrapID, t.processor.NextTrapID())

	t.processor.Enqueue(frame)
}

// nopStore is the notify.Store used when the local database failed to
// open (§4.6's "agent continues without local-DB-dependent features").
// Every write is silently dropped rather than spooled; reads report no
// rows. This keeps Processor's interface non-nil so deliverOrSpool never
// calls a method on a nil interface value.
type nopStore struct{}

func (nopStore) KnownServerIDs(context.Context) ([]uint64, error) { return nil, nil }
func (nopStore) InsertNotification(context.Context, uint64, uint64, []byte) error { return nil }
func (nopStore) FetchNotifications(context.Context, uint64, int) ([]notify.StoredNotification, error) {
	return nil, nil
}
func (nopStore) DeleteNotificationsUpTo(context.Context, uint64, uint64) error { return nil }
func (nopStore) UpsertServerLastConnection(context.Context, uint64, time.Time) error { return nil }
func (nopStore) ExpiredServers(context.Context, time.Time) ([]uint64, error) { return nil, nil }
func (nopStore) DeleteServer(context.Context, uint64) error { return nil }
func (nopStore) Vacuum(context.Context) error { return nil }
