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
	"time"

	"github.com/carverauto/serviceradar/pkg/logger"
	"github.com/carverauto/serviceradar/pkg/wire"
)

const queueDepth = 256

// Processor is the notification sender, resync, and housekeeping trio
// described in §4.5. Producers (local event generation, subagent-bridge
// trap forwarding, policy updates) call Enqueue; everything else runs on
// Processor's own goroutines.
type Processor struct {
	cfg     Config
	store   Store
	locator SessionLocator
	log     logger.Logger
	trapIDs *TrapIDGenerator

	queue chan *wire.Frame

	statusMu sync.Mutex
	servers  map[uint64]*serverState
	syncMu   sync.Map // serverID -> *sync.Mutex, serializes NSync-<serverId> tasks

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewProcessor builds a Processor. Call LoadKnownServers once at startup
// to seed the server set from the local database before calling Run.
func NewProcessor(cfg Config, store Store, locator SessionLocator, log logger.Logger) *Processor {
	return &Processor{
		cfg:     cfg,
		store:   store,
		locator: locator,
		log:     log,
		trapIDs: NewTrapIDGenerator(),
		queue:   make(chan *wire.Frame, queueDepth),
		servers: make(map[uint64]*serverState),
		stopCh:  make(chan struct{}),
	}
}

// NextTrapID returns the next at-most-once delivery dedup id for a
// producer to stamp into FieldTrapID before calling Enqueue.
func (p *Processor) NextTrapID() uint64 {
	return p.trapIDs.Next()
}

// LoadKnownServers seeds the in-memory server set from notification_servers
// (mirrors the source's StartNotificationSync startup scan).
func (p *Processor) LoadKnownServers(ctx context.Context) error {
	ids, err := p.store.KnownServerIDs(ctx)
	if err != nil {
		return err
	}

	p.statusMu.Lock()
	for _, id := range ids {
		p.servers[id] = &serverState{status: statusSynchronizing, nextID: 1}
	}
	p.statusMu.Unlock()

	return nil
}

// Enqueue submits a fully-built frame for fan-out delivery. It blocks
// only if the queue is momentarily full; a Stop in progress unblocks it.
func (p *Processor) Enqueue(frame *wire.Frame) {
	select {
	case p.queue <- frame:
	case <-p.stopCh:
	}
}

// QueueDepth reports the sender queue's current backlog (the Go
// equivalent of the source's Agent.NotificationProcessor.Queue.Size
// parameter handler).
func (p *Processor) QueueDepth() int {
	return len(p.queue)
}

// Run starts the sender and housekeeping goroutines. Call once.
func (p *Processor) Run(ctx context.Context) {
	p.wg.Add(2)

	go p.senderLoop(ctx)
	go p.housekeeperLoop(ctx)
}

// Stop requests shutdown and waits for every goroutine this Processor
// owns, including any in-flight resync tasks, to exit.
func (p *Processor) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	p.wg.Wait()
}

func (p *Processor) senderLoop(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case frame, ok := <-p.queue:
			if !ok {
				return
			}

			p.deliverOrSpool(ctx, frame)
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// deliverOrSpool implements the §4.5 sender step. The whole per-frame
// fan-out runs under statusMu, matching the source's coarse locking
// around this loop; this is safe here because SessionTarget.Send is
// required to be non-blocking (pkg/session's Send only enqueues to a
// buffered outbox, never writes the socket directly).
func (p *Processor) deliverOrSpool(ctx context.Context, frame *wire.Frame) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()

	for serverID, st := range p.servers {
		if st.status == statusOnline {
			if target, ok := p.locator.FindOnline(serverID); ok && target.Subscribed() && target.Send(frame) {
				continue
			}
		}

		encoded, err := frame.Encode()
		if err != nil {
			p.log.Warn().Err(err).Msg("notify: dropping frame that failed to encode")
			continue
		}

		id := st.nextID
		st.nextID++

		if err := p.store.InsertNotification(ctx, serverID, id, encoded); err != nil {
			p.log.Error().Err(err).Uint64("server_id", serverID).Msg("notify: failed to spool notification")
			continue
		}

		st.status = statusSynchronizing
	}
}

func (p *Processor) housekeeperLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.runHousekeeping(ctx)
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (p *Processor) runHousekeeping(ctx context.Context) {
	cutoff := time.Now().Add(-p.cfg.expiration())

	expired, err := p.store.ExpiredServers(ctx, cutoff)
	if err != nil {
		p.log.Warn().Err(err).Msg("notify: housekeeping failed to list expired servers")
		return
	}

	for _, serverID := range expired {
		p.statusMu.Lock()
		delete(p.servers, serverID)
		p.statusMu.Unlock()

		if err := p.store.DeleteServer(ctx, serverID); err != nil {
			p.log.Warn().Err(err).Uint64("server_id", serverID).Msg("notify: failed to delete expired server")
		}
	}

	now := time.Now()

	p.statusMu.Lock()
	ids := make([]uint64, 0, len(p.servers))
	for id := range p.servers {
		ids = append(ids, id)
	}
	p.statusMu.Unlock()

	for _, serverID := range ids {
		if target, ok := p.locator.FindOnline(serverID); ok && target.Subscribed() {
			if err := p.store.UpsertServerLastConnection(ctx, serverID, now); err != nil {
				p.log.Warn().Err(err).Uint64("server_id", serverID).Msg("notify: failed to update last connection time")
			}
		}
	}
}
