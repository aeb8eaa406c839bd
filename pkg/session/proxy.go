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
	"errors"
	"net"

	"github.com/carverauto/serviceradar/pkg/metriccatalog"
	"github.com/carverauto/serviceradar/pkg/wire"
)

var errNoActiveProxy = errors.New("session: no active proxy connection")

// ProxyDialer opens the outbound leg of a proxy connection. Swappable in
// tests; the session dispatcher uses netProxyDialer, a plain net.Dial.
type ProxyDialer interface {
	Dial(network, address string) (net.Conn, error)
}

type netProxyDialer struct{}

func (netProxyDialer) Dial(network, address string) (net.Conn, error) {
	return net.Dial(network, address)
}

// setupProxy implements SETUP_PROXY_CONNECTION: dial the requested target,
// clear the encryption context so later frames go out unencrypted, and
// switch the session into PROXY_MODE. The ordinary writer is not drained
// or retired; it keeps running and carries the proxied frames.
// Only a master server may request this (§4.4, §9 access-control note).
func (s *Session) setupProxy(dialer ProxyDialer, network, address string) wire.ResultCode {
	s.mu.Lock()
	master := s.accessLevel.Has(metriccatalog.AccessMaster)
	s.mu.Unlock()

	if !master {
		return wire.ErrAccessDenied
	}

	conn, err := dialer.Dial(network, address)
	if err != nil {
		return wire.ErrConnectionBroken
	}

	s.mu.Lock()
	s.proxyConn = conn
	s.cipher = nil // proxy traffic is forwarded unmodified, never encrypted
	s.mu.Unlock()

	s.setState(StateProxyMode)

	s.wg.Add(1)
	go s.proxyReadLoop(conn)

	return wire.Success
}

// proxyReadLoop is the §9-redesigned replacement for the original 500 ms
// polling select: Read blocks until the target sends bytes, a read error
// occurs, or the session is stopped (which closes conn via Close,
// unblocking Read immediately rather than waiting out a poll interval).
func (s *Session) proxyReadLoop(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	buf := make([]byte, 32*1024)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			frame := wire.NewFrame(wire.CodeSNMPRequest, s.nextMessageID(), wire.FlagBinary)
			frame.SetBinary(wire.FieldValue, append([]byte(nil), buf[:n]...))
			s.send(frame)
		}

		if err != nil {
			return
		}

		select {
		case <-s.stopCh:
			return
		default:
		}
	}
}

// proxyForward writes a frame's raw payload to the active proxy target
// verbatim, used by the processor when a proxied frame arrives from the
// peer while in PROXY_MODE.
func (s *Session) proxyForward(data []byte) error {
	s.mu.Lock()
	conn := s.proxyConn
	s.mu.Unlock()

	if conn == nil {
		return errNoActiveProxy
	}

	_, err := conn.Write(data)

	return err
}
