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
	"context"
	"sync"
	"testing"
	"time"

	"github.com/carverauto/serviceradar/pkg/logger"
	"github.com/carverauto/serviceradar/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu sync.Mutex

	knownServers []uint64
	inserted     []StoredNotification
	insertedFor  map[uint64][]StoredNotification
	deletedUpTo  map[uint64]uint64
	lastConn     map[uint64]time.Time
	expired      []uint64
	deletedSrv   []uint64
	vacuumCount  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		insertedFor: make(map[uint64][]StoredNotification),
		deletedUpTo: make(map[uint64]uint64),
		lastConn:    make(map[uint64]time.Time),
	}
}

func (f *fakeStore) KnownServerIDs(context.Context) ([]uint64, error) {
	return f.knownServers, nil
}

func (f *fakeStore) InsertNotification(_ context.Context, serverID, id uint64, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	row := StoredNotification{ID: id, Data: data}
	f.inserted = append(f.inserted, row)
	f.insertedFor[serverID] = append(f.insertedFor[serverID], row)

	return nil
}

func (f *fakeStore) FetchNotifications(_ context.Context, serverID uint64, limit int) ([]StoredNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rows := f.insertedFor[serverID]
	if len(rows) > limit {
		rows = rows[:limit]
	}

	out := make([]StoredNotification, len(rows))
	copy(out, rows)

	return out, nil
}

func (f *fakeStore) DeleteNotificationsUpTo(_ context.Context, serverID, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deletedUpTo[serverID] = id

	kept := f.insertedFor[serverID][:0]

	for _, row := range f.insertedFor[serverID] {
		if row.ID > id {
			kept = append(kept, row)
		}
	}

	f.insertedFor[serverID] = kept

	return nil
}

func (f *fakeStore) UpsertServerLastConnection(_ context.Context, serverID uint64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastConn[serverID] = at

	return nil
}

func (f *fakeStore) ExpiredServers(context.Context, time.Time) ([]uint64, error) {
	return f.expired, nil
}

func (f *fakeStore) DeleteServer(_ context.Context, serverID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deletedSrv = append(f.deletedSrv, serverID)

	return nil
}

func (f *fakeStore) Vacuum(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.vacuumCount++

	return nil
}

type fakeTarget struct {
	subscribed bool
	sendOK     bool
	sent       []*wire.Frame
}

func (t *fakeTarget) Subscribed() bool { return t.subscribed }

func (t *fakeTarget) Send(frame *wire.Frame) bool {
	if !t.sendOK {
		return false
	}

	t.sent = append(t.sent, frame)

	return true
}

type fakeLocator struct {
	targets map[uint64]*fakeTarget
}

func (l *fakeLocator) FindOnline(serverID uint64) (SessionTarget, bool) {
	target, ok := l.targets[serverID]
	if !ok {
		return nil, false
	}

	return target, true
}

func newTestProcessor(store Store, locator SessionLocator) *Processor {
	return NewProcessor(Config{}, store, locator, logger.NewTestLogger())
}

func TestDeliverOrSpoolSendsToOnlineSubscribedSession(t *testing.T) {
	store := newFakeStore()
	target := &fakeTarget{subscribed: true, sendOK: true}
	locator := &fakeLocator{targets: map[uint64]*fakeTarget{1: target}}

	p := newTestProcessor(store, locator)
	p.servers[1] = &serverState{status: statusOnline, nextID: 1}

	frame := wire.NewFrame(wire.CodeTrap, 1, 0)
	p.deliverOrSpool(context.Background(), frame)

	assert.Len(t, target.sent, 1)
	assert.Empty(t, store.inserted)
	assert.Equal(t, statusOnline, p.servers[1].status)
}

func TestDeliverOrSpoolSpoolsWhenOffline(t *testing.T) {
	store := newFakeStore()
	locator := &fakeLocator{targets: map[uint64]*fakeTarget{}}

	p := newTestProcessor(store, locator)
	p.servers[2] = &serverState{status: statusSynchronizing, nextID: 1}

	frame := wire.NewFrame(wire.CodeTrap, 1, 0)
	p.deliverOrSpool(context.Background(), frame)

	require.Len(t, store.insertedFor[2], 1)
	assert.Equal(t, uint64(1), store.insertedFor[2][0].ID)
	assert.Equal(t, statusSynchronizing, p.servers[2].status)
	assert.Equal(t, uint64(2), p.servers[2].nextID)
}

func TestDeliverOrSpoolSpoolsWhenSendFails(t *testing.T) {
	store := newFakeStore()
	target := &fakeTarget{subscribed: true, sendOK: false}
	locator := &fakeLocator{targets: map[uint64]*fakeTarget{3: target}}

	p := newTestProcessor(store, locator)
	p.servers[3] = &serverState{status: statusOnline, nextID: 1}

	frame := wire.NewFrame(wire.CodeTrap, 1, 0)
	p.deliverOrSpool(context.Background(), frame)

	require.Len(t, store.insertedFor[3], 1)
	assert.Equal(t, statusSynchronizing, p.servers[3].status)
}

func TestLoadKnownServersSeedsServerMap(t *testing.T) {
	store := newFakeStore()
	store.knownServers = []uint64{10, 20}

	p := newTestProcessor(store, &fakeLocator{targets: map[uint64]*fakeTarget{}})

	require.NoError(t, p.LoadKnownServers(context.Background()))

	assert.Len(t, p.servers, 2)
	assert.Equal(t, statusSynchronizing, p.servers[10].status)
	assert.Equal(t, uint64(1), p.servers[20].nextID)
}

func TestRunHousekeepingDeletesExpiredServers(t *testing.T) {
	store := newFakeStore()
	store.expired = []uint64{5}

	p := newTestProcessor(store, &fakeLocator{targets: map[uint64]*fakeTarget{}})
	p.servers[5] = &serverState{status: statusOnline, nextID: 1}

	p.runHousekeeping(context.Background())

	_, stillPresent := p.servers[5]
	assert.False(t, stillPresent)
	assert.Equal(t, []uint64{5}, store.deletedSrv)
}

func TestRunHousekeepingUpdatesLastConnectionForSubscribed(t *testing.T) {
	store := newFakeStore()
	target := &fakeTarget{subscribed: true, sendOK: true}
	locator := &fakeLocator{targets: map[uint64]*fakeTarget{7: target}}

	p := newTestProcessor(store, locator)
	p.servers[7] = &serverState{status: statusOnline, nextID: 1}

	p.runHousekeeping(context.Background())

	_, ok := store.lastConn[7]
	assert.True(t, ok)
}

func TestQueueDepthReflectsBacklog(t *testing.T) {
	store := newFakeStore()
	p := newTestProcessor(store, &fakeLocator{targets: map[uint64]*fakeTarget{}})

	p.Enqueue(wire.NewFrame(wire.CodeTrap, 1, 0))
	p.Enqueue(wire.NewFrame(wire.CodeTrap, 2, 0))

	assert.Equal(t, 2, p.QueueDepth())
}
