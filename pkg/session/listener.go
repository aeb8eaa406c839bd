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
	"context"
	"net"
	"sync"

	"github.com/carverauto/serviceradar/pkg/logger"
	"github.com/carverauto/serviceradar/pkg/wire"
)

// Listener accepts TCP connections and spawns a Session per connection,
// tracking the live set so PUSH_DCI_DATA/TRAP frames from subagents
// (§4.3 step 2) can be fanned out to every subscribed session. This is
// the process-wide "Session list" the spec's §5 locking discipline
// describes: a process-wide mutex, held only across short lookups, never
// across a session's own blocking I/O.
type Listener struct {
	ln       net.Listener
	cfg      Config
	registry Registry
	actions  ActionExecutor
	log      logger.Logger

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

// NewListener wraps an already-bound net.Listener (TCP per §6).
func NewListener(ln net.Listener, cfg Config, registry Registry, actions ActionExecutor, log logger.Logger) *Listener {
	return &Listener{
		ln:       ln,
		cfg:      cfg,
		registry: registry,
		actions:  actions,
		log:      log,
		sessions: make(map[*Session]struct{}),
	}
}

// Serve accepts connections until ctx is canceled or the listener is
// closed, running each accepted Session in its own goroutine.
func (l *Listener) Serve(ctx context.Context) {
	go func() {
		<-ctx.Done()
		_ = l.ln.Close()
	}()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				l.log.Warn().Err(err).Msg("session listener accept failed")
				return
			}
		}

		s := New(conn, l.cfg, l.registry, l.actions, l.log)

		l.mu.Lock()
		l.sessions[s] = struct{}{}
		l.mu.Unlock()

		go func() {
			s.Serve(ctx)

			l.mu.Lock()
			delete(l.sessions, s)
			l.mu.Unlock()
		}()
	}
}

// FanOutPush implements subagent.PushSink: forwards a PUSH_DCI_DATA frame
// to every live, subscribed session. Individual sends are queue-backed
// (Session.send), so this never blocks on socket I/O while holding the
// session-list lock (§5 "individual sendMessage calls must not block on
// I/O while holding it").
func (l *Listener) FanOutPush(frame *wire.Frame) {
	l.mu.Lock()
	targets := make([]*Session, 0, len(l.sessions))

	for s := range l.sessions {
		s.mu.Lock()
		subscribed := s.subscribed
		s.mu.Unlock()

		if subscribed {
			targets = append(targets, s)
		}
	}
	l.mu.Unlock()

	for _, s := range targets {
		s.send(frame)
	}
}

// RouteProxyMessage implements subagent.ProxyRouter: nothing in this core
// currently originates a subagent-proxied PROXY_MESSAGE from a client
// session (that flow belongs to pkg/notify's server-originated commands,
// not yet wired), so this is a deliberate no-op placeholder rather than
// a silent drop of unrelated traffic.
func (l *Listener) RouteProxyMessage(requestID uint32, frame *wire.Frame) {
	l.log.Debug().Uint32("request_id", requestID).Msg("proxy message with no registered route, dropping")
}

// SessionCount reports the number of live sessions the listener holds.
// The Agent.SessionCount built-in does not read it; it reads
// metriccatalog.SelfObservability.SessionCount.
func (l *Listener) SessionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.sessions)
}

// FindByServerID returns the live session presenting the given
// notification-processor server id at LOGIN, if any is currently
// connected. Used by cmd/agentd's notify.SessionLocator adapter so
// pkg/notify never needs to import pkg/session directly.
func (l *Listener) FindByServerID(serverID uint64) (*Session, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for s := range l.sessions {
		if s.ServerID() == serverID {
			return s, true
		}
	}

	return nil, false
}
