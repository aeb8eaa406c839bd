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

// Package notify implements the notification processor (§4.5): a single
// process-wide FIFO of outgoing frames, fanned out to every known server
// either by a direct session send or by spooling to the local database
// for later resynchronization, plus the 24h housekeeping sweep that
// expires long-disconnected servers.
package notify

import (
	"context"
	"time"

	"github.com/carverauto/serviceradar/pkg/wire"
)

// resyncBatchSize is the per-iteration row limit a resync task reads and
// replays; a batch smaller than this ends the resync.
const resyncBatchSize = 1000

// defaultOfflineExpiration is used when Config.OfflineExpiration is zero.
const defaultOfflineExpiration = 30 * 24 * time.Hour

// StoredNotification is one spooled row as read back for resync replay.
type StoredNotification struct {
	ID   uint64
	Data []byte
}

// Store is the subset of the local database surface (§4.6) this package
// needs. Declared locally, mirrored against pkg/localdb's concrete
// implementation, to keep pkg/notify free of an import-cycle-prone
// dependency on that package.
type Store interface {
	KnownServerIDs(ctx context.Context) ([]uint64, error)
	InsertNotification(ctx context.Context, serverID, id uint64, data []byte) error
	FetchNotifications(ctx context.Context, serverID uint64, limit int) ([]StoredNotification, error)
	DeleteNotificationsUpTo(ctx context.Context, serverID, id uint64) error
	UpsertServerLastConnection(ctx context.Context, serverID uint64, at time.Time) error
	ExpiredServers(ctx context.Context, olderThan time.Time) ([]uint64, error)
	DeleteServer(ctx context.Context, serverID uint64) error
	Vacuum(ctx context.Context) error
}

// SessionTarget is the single connected session (if any) presently able
// to receive frames on behalf of a server (§4.4/§4.5 "subscribed to
// traps"). Declared locally for the same reason as Store: pkg/session
// implements this without pkg/notify importing pkg/session.
type SessionTarget interface {
	Subscribed() bool
	Send(frame *wire.Frame) bool
}

// SessionLocator resolves the live session (if any) for a server id.
type SessionLocator interface {
	FindOnline(serverID uint64) (SessionTarget, bool)
}

// Config configures a Processor.
type Config struct {
	// OfflineExpiration is how long a server may stay disconnected before
	// its registration and spooled rows are purged by housekeeping.
	OfflineExpiration time.Duration
}

func (c Config) expiration() time.Duration {
	if c.OfflineExpiration <= 0 {
		return defaultOfflineExpiration
	}

	return c.OfflineExpiration
}

type statusKind int

const (
	statusSynchronizing statusKind = iota
	statusOnline
)

// serverState is the per-server bookkeeping the sender and resync tasks
// share, guarded by Processor.statusMu.
type serverState struct {
	status statusKind
	nextID uint64
}
