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

package subagent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/carverauto/serviceradar/pkg/logger"
	"github.com/carverauto/serviceradar/pkg/wire"
)

var errBridgeNotConnected = errors.New("subagent: bridge has no live connection")

// NewBridge wraps an already-bound listener (a Unix-domain socket per
// §6 "Local IPC"; the platform-specific bind call is the caller's
// responsibility, matching spec.md's explicit non-goal on IPC transport
// details beyond the framing contract).
func NewBridge(name string, listener net.Listener, authz PeerAuthorizer) *Bridge {
	if authz == nil {
		authz = func(PeerCredential) bool { return true }
	}

	return &Bridge{
		name:     name,
		listener: listener,
		authz:    authz,
		waiting:  make(map[waitKey]*pendingWait),
		stopCh:   make(chan struct{}),
	}
}

// Name implements metriccatalog.SubagentTier.
func (b *Bridge) Name() string { return b.name }

// Serve accepts connections until the bridge is stopped, running the
// §4.3 restart-with-backoff schedule whenever the single active
// connection is lost. Only one duplex connection is active at a time;
// Serve blocks until Stop is called.
func (b *Bridge) Serve(ctx context.Context, log logger.Logger) {
	delay := backoffSeed

	for {
		select {
		case <-b.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		conn, err := b.acceptOne(ctx)
		if err != nil {
			log.Warn().Str("subagent", b.name).Err(err).Dur("retry_in", delay).Msg("subagent listener accept failed, backing off")

			if !sleepOrStop(b.stopCh, delay) {
				return
			}

			delay = nextBackoff(delay)

			continue
		}

		delay = backoffSeed

		b.connected.Store(true)
		b.connHandle.Store(conn)

		b.sendPolicySync(log)
		b.readLoop(ctx, conn, log)

		b.connected.Store(false)
		b.failAllWaiters()
	}
}

func (b *Bridge) acceptOne(ctx context.Context) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}

	ch := make(chan result, 1)

	go func() {
		conn, err := b.listener.Accept()
		ch <- result{conn, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}

		return r.conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.stopCh:
		return nil, errBridgeNotConnected
	}
}

// Stop closes the listener and unblocks Serve.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
		_ = b.listener.Close()
	})
}

// sendPolicySync writes the §4.3 step-1 policy-sync frame. The frame is
// always empty: it carries no policy content or hashes, only the signal
// that lets the subagent proceed.
func (b *Bridge) sendPolicySync(log logger.Logger) {
	frame := wire.NewFrame(wire.CodeSyncAgentPolicies, 0, 0)

	if err := b.writeFrame(frame); err != nil {
		log.Warn().Str("subagent", b.name).Err(err).Msg("failed to send policy-sync frame on subagent connect")
	}
}

// readLoop implements §4.3 step 2-3: dispatch known frame kinds, wake
// waiters on everything else, and return (triggering reconnect) on any
// read error other than a timeout.
func (b *Bridge) readLoop(ctx context.Context, conn net.Conn, log logger.Logger) {
	for {
		select {
		case <-b.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(waitTimeout))

		frame, err := wire.ReadFrame(conn)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue // keepalive: peer sent nothing for 5s, stay connected
			}

			log.Info().Str("subagent", b.name).Err(err).Msg("subagent connection lost, scheduling reconnect")

			return
		}

		switch frame.Header.Code {
		case wire.CodePushDCIData:
			if b.pushes != nil {
				b.pushes.FanOutPush(frame)
			}
		case wire.CodeTrap:
			if b.traps != nil {
				b.traps.Notify(mustEncode(frame))
			}
		default:
			// Treat anything tagged as a proxy relay or otherwise
			// unrecognized the same way: first try to wake a waiter
			// keyed on (code, id); a PROXY_MESSAGE with no waiter falls
			// to the proxy router.
			if !b.deliverToWaiter(frame) && b.proxy != nil {
				b.proxy.RouteProxyMessage(frame.Header.ID, frame)
			}
		}
	}
}

func mustEncode(f *wire.Frame) []byte {
	b, err := f.Encode()
	if err != nil {
		return nil
	}

	return b
}

// SetSinks wires the trap/push/proxy destinations. Must be called before
// Serve.
func (b *Bridge) SetSinks(traps TrapSink, pushes PushSink, proxy ProxyRouter) {
	b.traps = traps
	b.pushes = pushes
	b.proxy = proxy
}

// Request sends a frame and blocks for its matching reply, keyed by
// (response_code, request_id), with the §4.3/§5 5-second bound. A
// timeout removes the waiter so a late-arriving reply is dropped rather
// than delivered to the wrong caller.
func (b *Bridge) Request(responseCode wire.Code, frame *wire.Frame) (*wire.Frame, error) {
	if !b.connected.Load() {
		return nil, errBridgeNotConnected
	}

	key := waitKey{code: responseCode, id: frame.Header.ID}
	pw := &pendingWait{reply: make(chan *wire.Frame, 1)}

	b.waitMu.Lock()
	b.waiting[key] = pw
	b.waitMu.Unlock()

	defer func() {
		b.waitMu.Lock()
		delete(b.waiting, key)
		b.waitMu.Unlock()
	}()

	if err := b.writeFrame(frame); err != nil {
		return nil, err
	}

	select {
	case reply := <-pw.reply:
		return reply, nil
	case <-time.After(waitTimeout):
		return nil, fmt.Errorf("subagent %s: %w", b.name, context.DeadlineExceeded)
	}
}

// NextRequestID returns a fresh, bridge-scoped request id for Request.
func (b *Bridge) NextRequestID() uint32 {
	return b.nextRequestID.Add(1)
}

func (b *Bridge) deliverToWaiter(frame *wire.Frame) bool {
	key := waitKey{code: frame.Header.Code, id: frame.Header.ID}

	b.waitMu.Lock()
	pw, ok := b.waiting[key]
	if ok {
		delete(b.waiting, key)
	}
	b.waitMu.Unlock()

	if !ok {
		return false
	}

	pw.reply <- frame

	return true
}

func (b *Bridge) failAllWaiters() {
	b.waitMu.Lock()
	defer b.waitMu.Unlock()

	for k, pw := range b.waiting {
		close(pw.reply)
		delete(b.waiting, k)
	}
}

func (b *Bridge) writeFrame(frame *wire.Frame) error {
	v := b.connHandle.Load()
	if v == nil {
		return errBridgeNotConnected
	}

	conn, ok := v.(net.Conn)
	if !ok || conn == nil {
		return errBridgeNotConnected
	}

	encoded, err := frame.Encode()
	if err != nil {
		return err
	}

	_, err = conn.Write(encoded)

	return err
}

func sleepOrStop(stopCh chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-stopCh:
		return false
	}
}

func nextBackoff(cur time.Duration) time.Duration {
	next := time.Duration(float64(cur) * backoffFactor)
	if next > backoffCap {
		return backoffCap
	}

	return next
}
