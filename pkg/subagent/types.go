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

// Package subagent implements the external subagent bridge (§4.3): a
// Unix-domain listener that accepts a single long-lived duplex
// connection from a sibling process, proxies metric/list/table/action
// requests to it, and re-injects the traps and pushes it emits. It
// satisfies metriccatalog.SubagentTier.
package subagent

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carverauto/serviceradar/pkg/wire"
)

const (
	// backoffSeed/backoffFactor/backoffCap implement §4.3's listener
	// restart schedule: "initial 10 s, factor 1.5, capped at 300 s".
	backoffSeed   = 10 * time.Second
	backoffFactor = 1.5
	backoffCap    = 300 * time.Second

	// waitTimeout is the bound on a bridge-initiated request awaiting its
	// matching response (§4.3, §5).
	waitTimeout = 5 * time.Second
)

// PeerAuthorizer decides whether a connecting peer is the configured
// principal for a bridge ("*" in configuration permits any peer; see
// §6 ExternalSubagent).
type PeerAuthorizer func(peerCred PeerCredential) bool

// PeerCredential is whatever identity information the platform IPC
// transport exposes about a connecting peer. On Unix-domain sockets this
// is the SO_PEERCRED-derived uid/pid; Name is populated for the "*"
// any-peer fast path where the credential is never inspected.
type PeerCredential struct {
	UID  uint32
	PID  int32
	Name string
}

// TrapSink receives a TRAP frame forwarded from the subagent, stamped
// with a freshly allocated trap id (§4.3 step 2).
type TrapSink interface {
	Notify(serverTrap []byte)
}

// PushSink fans a PUSH_DCI_DATA frame out to every subscribed client
// session (§4.3 step 2).
type PushSink interface {
	FanOutPush(frame *wire.Frame)
}

// ProxyRouter re-injects a PROXY_MESSAGE frame into the client session
// that originated the request it answers (§4.3 step 2).
type ProxyRouter interface {
	RouteProxyMessage(requestID uint32, frame *wire.Frame)
}

// waitKey is the (response_code, request_id) correlation key described
// in §3 "pending-request correlation table".
type waitKey struct {
	code wire.Code
	id   uint32
}

// pendingWait is a oneshot notifier a bridge-initiated call blocks on;
// see §9 "replace condition variables keyed by (code, id) with a
// concurrent map to a oneshot notifier".
type pendingWait struct {
	reply chan *wire.Frame
}

// Bridge is one configured subagent connection.
type Bridge struct {
	name     string
	listener net.Listener
	authz    PeerAuthorizer

	traps  TrapSink
	pushes PushSink
	proxy  ProxyRouter

	// connHandle and connected are read by writeFrame/Request/LookupMetric from
	// arbitrary goroutines and written only by the accept/read loop; an
	// atomic.Value + atomic.Bool pair avoids the documented connect()
	// vs sendMessage() race (§9 second Open Question) without sharing a
	// mutex with the blocking read loop.
	connHandle atomic.Value // holds net.Conn
	connected  atomic.Bool

	waitMu  sync.Mutex
	waiting map[waitKey]*pendingWait

	nextRequestID atomic.Uint32

	stopCh   chan struct{}
	stopOnce sync.Once
}
