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

// Package session implements the client session state machine (§4.4): a
// reader/writer/processor trio per accepted connection, speaking the
// pkg/wire framing over a stream transport, with pre-authentication
// filtering, login, the encryption upgrade handshake, file reception,
// and proxy mode.
package session

import (
	"context"
	"crypto/rsa"
	"net"
	"sync"
	"time"

	"github.com/carverauto/serviceradar/pkg/logger"
	"github.com/carverauto/serviceradar/pkg/metriccatalog"
	"github.com/carverauto/serviceradar/pkg/wire"
)

// State is one of the §4.4 session states.
type State int

const (
	StateInit State = iota
	StateAuthenticated
	StateProcessing
	StateKeyExchange
	StateProxyMode
	StateReceivingFile
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateProcessing:
		return "PROCESSING"
	case StateKeyExchange:
		return "KEY_EXCHANGE"
	case StateProxyMode:
		return "PROXY_MODE"
	case StateReceivingFile:
		return "RECEIVING_FILE"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// readWriteCloser is the minimal transport a Session needs; net.Conn
// satisfies it directly, a fake pipe end satisfies it for tests.
type readWriteCloser interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetReadDeadline(t time.Time) error
	RemoteAddr() net.Addr
}

// Registry is the subset of *metriccatalog.Registry the dispatcher calls
// into. Declared locally so this package only depends on the types it
// actually uses.
type Registry interface {
	LookupMetric(ctx context.Context, session metriccatalog.Session, raw string) (string, wire.ResultCode)
	LookupList(ctx context.Context, session metriccatalog.Session, raw string) ([]string, wire.ResultCode)
	LookupTable(ctx context.Context, session metriccatalog.Session, raw string) (*metriccatalog.Table, wire.ResultCode)
	PushValue(name, value string) bool
}

// ActionExecutor runs a registered action and reports its exit status;
// implemented by pkg/action's *Registry. A nil ActionExecutor makes every
// ACTION request fail with wire.ErrNotImplemented.
type ActionExecutor interface {
	Run(ctx context.Context, name string, args []string) (exitCode int, stdout string, err error)
}

// Config configures a Session's behavior.
type Config struct {
	// SharedSecret is the plaintext credential LOGIN is checked against
	// in all three accepted forms (§4.4 Authentication).
	SharedSecret string
	// ServerPublicKey is advertised in reply to REQUEST_SESSION_KEY.
	ServerPublicKey []byte
	// ServerPrivateKey unwraps the RSA-wrapped symmetric key carried by
	// SESSION_KEY.
	ServerPrivateKey *rsa.PrivateKey
	// FileStoreRoot bounds TRANSFER_FILE's sanitized destination path.
	FileStoreRoot string
	// MasterServer grants AccessMaster, which gates SETUP_PROXY_CONNECTION,
	// regardless of login identity, mirroring the original agent's
	// per-connection "is this the master server" configuration flag.
	// SET_COMPONENT_TOKEN and DEPLOY_AGENT_POLICY have no handler and are
	// answered NOT_IMPLEMENTED whatever this flag says.
	MasterServer bool
}

// Session owns one accepted connection's reader/writer/processor tasks
// and the per-connection state the spec's data model describes under
// "Session state" (§3).
type Session struct {
	cfg      Config
	conn     readWriteCloser
	registry Registry
	actions  ActionExecutor
	log      logger.Logger

	id uint32 // monotonically increasing outgoing message id (§3 invariant)

	mu           sync.Mutex
	state        State
	userIdentity string
	accessLevel  metriccatalog.AccessLevel
	cipher       *cipherContext
	subscribed   bool   // to push notifications/traps
	serverID     uint64 // the notification-processor server id this session speaks for, if any

	authFailures []time.Time // timestamps of recent failed LOGIN attempts

	file *fileReceive // non-nil while StateReceivingFile

	proxyConn net.Conn // non-nil while StateProxyMode

	outbox chan *wire.Frame

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// UserIdentity implements metriccatalog.Session.
func (s *Session) UserIdentity() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.userIdentity
}

// AccessLevel implements metriccatalog.Session.
func (s *Session) AccessLevel() metriccatalog.AccessLevel {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.accessLevel
}

// RemoteAddr implements metriccatalog.Session.
func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}

// Subscribed reports whether this session has opted in to receive
// fanned-out push/trap traffic (pkg/notify's SessionTarget interface).
func (s *Session) Subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.subscribed
}

// ServerID returns the notification-processor server id this session
// was authenticated as, or 0 if none was presented at LOGIN.
func (s *Session) ServerID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.serverID
}

// State returns the session's current state (test/diagnostic use).
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) nextMessageID() uint32 {
	s.mu.Lock()
	s.id++
	id := s.id
	s.mu.Unlock()

	return id
}
