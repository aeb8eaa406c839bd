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
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/carverauto/serviceradar/pkg/wire"
)

// OnSessionConnect registers serverID if it is new, marks it
// SYNCHRONIZING, records the connection time, and spawns its serialized
// resync task (§4.5 "On session connect/subscribe").
func (p *Processor) OnSessionConnect(ctx context.Context, serverID uint64, target SessionTarget) {
	p.statusMu.Lock()
	st, ok := p.servers[serverID]
	if !ok {
		st = &serverState{status: statusSynchronizing, nextID: 1}
		p.servers[serverID] = st
	} else {
		st.status = statusSynchronizing
	}
	p.statusMu.Unlock()

	if err := p.store.UpsertServerLastConnection(ctx, serverID, time.Now()); err != nil {
		p.log.Warn().Err(err).Uint64("server_id", serverID).Msg("notify: failed to record connection time")
	}

	p.runSerialized(serverID, func() {
		p.resync(ctx, serverID, target)
	})
}

// runSerialized ensures at most one resync task per server runs at a
// time (the source's ThreadPoolExecuteSerialized keyed "NSync-<serverId>"
// task). Later calls for the same server block behind the one in flight
// rather than running concurrently.
func (p *Processor) runSerialized(serverID uint64, fn func()) {
	muAny, _ := p.syncMu.LoadOrStore(serverID, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)

	p.wg.Add(1)

	go func() {
		defer p.wg.Done()

		mu.Lock()
		defer mu.Unlock()

		fn()
	}()
}

// resync replays spooled rows to target in 1000-row batches until a
// batch comes back short (fewer rows than the batch size) or a send
// fails. On the final short batch it re-reads once more under statusMu
// to flush anything the sender spooled in the interim before flipping
// the server back ONLINE, exactly mirroring the source's re-lock-and-
// recheck shape.
func (p *Processor) resync(ctx context.Context, serverID uint64, target SessionTarget) {
	locked := false
	success := true
	count := 0

	for {
		select {
		case <-p.stopCh:
			if locked {
				p.statusMu.Unlock()
			}

			return
		default:
		}

		rows, err := p.store.FetchNotifications(ctx, serverID, resyncBatchSize)
		if err != nil {
			success = false
			break
		}

		count = len(rows)

		var lastID uint64

		var lastIDSet bool

		for _, row := range rows {
			frame, ferr := wire.ReadFrame(bytes.NewReader(row.Data))
			if ferr != nil {
				continue // malformed spooled row, skip per source behavior
			}

			if !target.Send(frame) {
				success = false
				break
			}

			lastID = row.ID
			lastIDSet = true
		}

		if lastIDSet {
			if err := p.store.DeleteNotificationsUpTo(ctx, serverID, lastID); err != nil {
				p.log.Warn().Err(err).Uint64("server_id", serverID).Msg("notify: failed to trim spooled rows")
			}
		}

		if count < resyncBatchSize && !locked {
			locked = true
			p.statusMu.Lock()

			continue
		}

		if !success || count < resyncBatchSize {
			break
		}
	}

	if success && count < resyncBatchSize {
		if st, ok := p.servers[serverID]; ok {
			st.status = statusOnline
			st.nextID = 1
		}
	}

	if locked {
		p.statusMu.Unlock()
	}

	if err := p.store.Vacuum(ctx); err != nil {
		p.log.Debug().Err(err).Msg("notify: vacuum failed")
	}
}
