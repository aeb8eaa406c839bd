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
	"bytes"
	"context"
	"errors"
	"net"
	"time"

	"github.com/carverauto/serviceradar/pkg/logger"
	"github.com/carverauto/serviceradar/pkg/wire"
)

// agentVersion is reported in GET_SERVER_INFO replies. Left as a package
// constant rather than a build-stamped value since this core has no
// release-tagging process of its own yet.
const agentVersion = "1.0.0"

// readTimeout is the §4.4 "Keepalive" bound: a reader sitting idle this
// long ticks and re-checks shutdown rather than blocking forever.
const readTimeout = 5000 * time.Millisecond

const outboxDepth = 64

// New wraps an accepted connection in a Session. The session starts in
// StateInit and does nothing until Serve is called.
func New(conn net.Conn, cfg Config, registry Registry, actions ActionExecutor, log logger.Logger) *Session {
	return &Session{
		cfg:      cfg,
		conn:     conn,
		registry: registry,
		actions:  actions,
		log:      log,
		state:    StateInit,
		outbox:   make(chan *wire.Frame, outboxDepth),
		stopCh:   make(chan struct{}),
	}
}

// Serve runs the reader, writer, and processor tasks until the connection
// closes or ctx is canceled, then blocks until all three have exited.
// Unlike the subagent bridge (one bridge, one long-lived reconnect loop),
// a client session owns exactly one connection for its whole lifetime —
// on disconnect the session is destroyed, not reconnected (§3
// Lifecycles).
func (s *Session) Serve(ctx context.Context) {
	frames := make(chan *wire.Frame, outboxDepth)

	s.wg.Add(3)

	go s.readerLoop(ctx, frames)
	go s.processorLoop(ctx, frames)
	go s.writerLoop()

	select {
	case <-ctx.Done():
	case <-s.stopCh:
	}
	s.Close()

	s.wg.Wait()
}

// readerLoop implements §4.4 framing + keepalive: read-with-timeout,
// ignoring timeouts unless shutdown has been requested.
func (s *Session) readerLoop(ctx context.Context, out chan<- *wire.Frame) {
	defer s.wg.Done()
	defer close(out)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		_ = s.conn.SetReadDeadline(time.Now().Add(readTimeout))

		frame, err := wire.ReadFrame(s.conn)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}

			s.log.Debug().Err(err).Str("remote", s.RemoteAddr()).Msg("session reader exiting")
			s.Close()

			return
		}

		if cc := s.activeCipher(); cc != nil && frame.Header.Flags&wire.FlagEncrypted != 0 {
			frame = s.decryptFrame(cc, frame)
			if frame == nil {
				continue // single frame dropped, §7
			}
		}

		select {
		case out <- frame:
		case <-s.stopCh:
			return
		}
	}
}

// decryptFrame unwraps an encrypted frame's payload and re-parses it as
// a plaintext frame. A malformed ciphertext drops the single frame and
// keeps the session open (§7 Recovered locally).
func (s *Session) decryptFrame(cc *cipherContext, frame *wire.Frame) *wire.Frame {
	raw, ok := frame.GetBinary(wire.FieldValue)
	if !ok {
		return nil
	}

	plain, err := cc.decrypt(raw)
	if err != nil {
		s.log.Debug().Err(err).Msg("dropping undecryptable frame")
		return nil
	}

	inner, err := wire.ReadFrame(bytes.NewReader(plain))
	if err != nil {
		return nil
	}

	return inner
}

func (s *Session) activeCipher() *cipherContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cipher
}

// processorLoop consumes frames strictly in FIFO order (§5 ordering
// guarantee: "request->reply ordering is preserved").
func (s *Session) processorLoop(ctx context.Context, in <-chan *wire.Frame) {
	defer s.wg.Done()

	for {
		select {
		case frame, ok := <-in:
			if !ok {
				close(s.outbox)
				return
			}

			s.setState(StateProcessing)

			reply := s.handle(ctx, frame)
			if st := s.State(); st == StateProcessing {
				s.setState(StateAuthenticated)
			}

			if reply != nil {
				s.send(reply)
			}
		case <-s.stopCh:
			return
		}
	}
}

// writerLoop is the single writer task a session owns; §5 forbids the
// processor from blocking on socket I/O directly, so all replies funnel
// through this queue-backed loop.
func (s *Session) writerLoop() {
	defer s.wg.Done()

	for {
		var frame *wire.Frame

		select {
		case f, ok := <-s.outbox:
			if !ok {
				return
			}

			frame = f
		case <-s.stopCh:
			return
		}

		out := frame

		if cc := s.activeCipher(); cc != nil && frame.Header.Code != wire.CodeSessionKey {
			out = s.encryptFrame(cc, frame)
		}

		encoded, err := out.Encode()
		if err != nil {
			continue
		}

		if _, err := s.conn.Write(encoded); err != nil {
			s.log.Debug().Err(err).Msg("session writer exiting")
			s.Close()

			return
		}
	}
}

func (s *Session) encryptFrame(cc *cipherContext, frame *wire.Frame) *wire.Frame {
	plain, err := frame.Encode()
	if err != nil {
		return frame
	}

	ciphertext, err := cc.encrypt(plain)
	if err != nil {
		return frame
	}

	wrapper := wire.NewFrame(frame.Header.Code, frame.Header.ID, frame.Header.Flags|wire.FlagEncrypted)
	wrapper.SetBinary(wire.FieldValue, ciphertext)

	return wrapper
}

// send enqueues a frame for the writer as it is; it does not assign or
// change the frame's message id, which is whatever its builder set.
func (s *Session) send(frame *wire.Frame) {
	select {
	case s.outbox <- frame:
	case <-s.stopCh:
	}
}

// Send implements pkg/notify's SessionTarget: enqueue a frame for
// delivery, reporting whether the session was still open to accept it.
// Like send, it never blocks on socket I/O.
func (s *Session) Send(frame *wire.Frame) bool {
	select {
	case s.outbox <- frame:
		return true
	case <-s.stopCh:
		return false
	}
}

// closeAsync requests shutdown without blocking the caller (used from
// the processor, which must never block on its own teardown).
func (s *Session) closeAsync() {
	go s.Close()
}

// Close idempotently tears the session down: stops all three tasks,
// closes the connection and any proxy target connection (which also
// unblocks any blocked Read), and removes a partially-received file if
// one was active.
func (s *Session) Close() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		_ = s.conn.Close()

		s.mu.Lock()
		if s.proxyConn != nil {
			_ = s.proxyConn.Close()
		}
		s.mu.Unlock()

		s.abortFileReceive(true)
		s.setState(StateClosed)
	})
}
