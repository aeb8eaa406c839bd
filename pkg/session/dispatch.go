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
	"strconv"
	"time"

	"github.com/carverauto/serviceradar/pkg/metriccatalog"
	"github.com/carverauto/serviceradar/pkg/wire"
)

// preAuthAllowed is the §4.4 pre-authentication filter: in INIT, only
// these codes are processed; everything else is silently dropped.
func preAuthAllowed(code wire.Code) bool {
	switch code {
	case wire.CodeGetServerInfo, wire.CodeRequestEncryption, wire.CodeLogin, wire.CodeGetMyConfig:
		return true
	default:
		return false
	}
}

// handle is the processor's entry point for one inbound frame. It
// returns the reply frame to send, or nil when no reply is warranted
// (dropped pre-auth frame, ignored FILE_DATA id mismatch, proxy-mode
// passthrough).
func (s *Session) handle(ctx context.Context, frame *wire.Frame) *wire.Frame {
	if s.State() == StateInit && !preAuthAllowed(frame.Header.Code) {
		return nil
	}

	if s.State() == StateProxyMode {
		s.handleProxyFrame(frame)
		return nil
	}

	switch frame.Header.Code {
	case wire.CodeKeepAlive:
		return nil
	case wire.CodeGetServerInfo:
		return s.replyServerInfo(frame)
	case wire.CodeGetMyConfig:
		return s.replyMyConfig(frame)
	case wire.CodeRequestEncryption, wire.CodeRequestSessionKey:
		return s.replyKeyRequest(frame)
	case wire.CodeSessionKey:
		return s.handleSessionKey(frame)
	case wire.CodeLogin:
		return s.handleLogin(frame)
	case wire.CodeGetParameter:
		return s.handleGetParameter(ctx, frame)
	case wire.CodeGetList:
		return s.handleGetList(ctx, frame)
	case wire.CodeGetTable:
		return s.handleGetTable(ctx, frame)
	case wire.CodePushDCIData:
		return s.handlePush(frame)
	case wire.CodeTransferFile:
		return s.handleTransferFile(frame)
	case wire.CodeFileData:
		return s.handleFileData(frame)
	case wire.CodeAbortFileTransfer:
		s.abortFileReceive(true)
		return nil
	case wire.CodeSetupProxyConnection:
		return s.handleSetupProxy(frame)
	case wire.CodeAction:
		return s.handleAction(ctx, frame)
	case wire.CodeShutdown, wire.CodeRestart:
		return s.replyCompleted(frame, wire.Success)
	default:
		return s.replyCompleted(frame, wire.ErrNotImplemented)
	}
}

func (s *Session) replyCompleted(req *wire.Frame, rcc wire.ResultCode) *wire.Frame {
	reply := wire.NewFrame(wire.CodeRequestCompleted, req.Header.ID, 0)
	reply.SetUint32(wire.FieldRCC, uint32(rcc))

	return reply
}

func (s *Session) replyServerInfo(req *wire.Frame) *wire.Frame {
	reply := wire.NewFrame(wire.CodeGetServerInfo, req.Header.ID, 0)
	reply.SetUint32(wire.FieldRCC, uint32(wire.Success))
	reply.SetString(wire.FieldValue, agentVersion)

	return reply
}

func (s *Session) replyMyConfig(req *wire.Frame) *wire.Frame {
	return s.replyCompleted(req, wire.Success)
}

func (s *Session) replyKeyRequest(req *wire.Frame) *wire.Frame {
	s.setState(StateKeyExchange)

	reply := wire.NewFrame(wire.CodeRequestSessionKey, req.Header.ID, 0)
	reply.SetUint32(wire.FieldRCC, uint32(wire.Success))
	reply.SetBinary(wire.FieldServerKey, s.cfg.ServerPublicKey)
	reply.SetUint32(wire.FieldSupportedCph, uint32(wire.SupportedCiphers))

	return reply
}

func (s *Session) handleSessionKey(req *wire.Frame) *wire.Frame {
	wrapped, ok := req.GetBinary(wire.FieldServerKey)
	if !ok {
		return s.replyCompleted(req, wire.ErrBadArguments)
	}

	cipherID, ok := req.GetUint32(wire.FieldCipher)
	if !ok {
		return s.replyCompleted(req, wire.ErrBadArguments)
	}

	if s.cfg.ServerPrivateKey == nil {
		return s.replyCompleted(req, wire.ErrNotImplemented)
	}

	key, err := unwrapSessionKey(s.cfg.ServerPrivateKey, wrapped)
	if err != nil {
		return s.replyCompleted(req, wire.ErrBadArguments)
	}

	cc, err := newCipherContext(wire.Cipher(cipherID), key)
	if err != nil {
		return s.replyCompleted(req, wire.ErrBadArguments)
	}

	s.mu.Lock()
	s.cipher = cc
	s.mu.Unlock()

	if s.State() == StateKeyExchange {
		s.setState(StateAuthenticated)
	}

	return s.replyCompleted(req, wire.Success)
}

func (s *Session) handleLogin(req *wire.Frame) *wire.Frame {
	loginName, _ := req.GetString(wire.FieldLoginName)
	passwordField, _ := req.GetBinary(wire.FieldPassword)
	kindVal, _ := req.GetUint32(wire.FieldAuthType)

	if s.authenticate(loginName, authType(kindVal), passwordField) {
		if serverID, ok := req.GetUint64(wire.FieldServerID); ok {
			s.mu.Lock()
			s.serverID = serverID
			s.subscribed = true
			s.mu.Unlock()
		}

		s.setState(StateAuthenticated)

		return s.replyCompleted(req, wire.Success)
	}

	if s.recordAuthFailure(time.Now()) {
		s.closeAsync()
	}

	return s.replyCompleted(req, wire.ErrAuthFailed)
}

func (s *Session) handleGetParameter(ctx context.Context, req *wire.Frame) *wire.Frame {
	if !s.AccessLevel().Has(metriccatalog.AccessRead) {
		return s.replyCompleted(req, wire.ErrAccessDenied)
	}

	param, _ := req.GetString(wire.FieldParameter)

	val, rcc := s.registry.LookupMetric(ctx, s, param)

	reply := s.replyCompleted(req, rcc)
	if rcc == wire.Success {
		reply.SetString(wire.FieldValue, val)
	}

	return reply
}

func (s *Session) handleGetList(ctx context.Context, req *wire.Frame) *wire.Frame {
	if !s.AccessLevel().Has(metriccatalog.AccessRead) {
		return s.replyCompleted(req, wire.ErrAccessDenied)
	}

	param, _ := req.GetString(wire.FieldParameter)

	vals, rcc := s.registry.LookupList(ctx, s, param)

	reply := s.replyCompleted(req, rcc)
	if rcc == wire.Success {
		for i, v := range vals {
			reply.SetString(wire.FieldArgBase+uint32(i), v)
		}
	}

	return reply
}

func (s *Session) handleGetTable(ctx context.Context, req *wire.Frame) *wire.Frame {
	if !s.AccessLevel().Has(metriccatalog.AccessRead) {
		return s.replyCompleted(req, wire.ErrAccessDenied)
	}

	param, _ := req.GetString(wire.FieldParameter)

	tbl, rcc := s.registry.LookupTable(ctx, s, param)

	reply := s.replyCompleted(req, rcc)

	if rcc == wire.Success && tbl != nil {
		reply.SetUint32(wire.FieldNumArgs, uint32(len(tbl.Rows)))
	}

	return reply
}

func (s *Session) handlePush(req *wire.Frame) *wire.Frame {
	name, _ := req.GetString(wire.FieldParameter)
	val, _ := req.GetString(wire.FieldValue)

	if !s.registry.PushValue(name, val) {
		return s.replyCompleted(req, wire.ErrUnknownMetric)
	}

	return s.replyCompleted(req, wire.Success)
}

func (s *Session) handleTransferFile(req *wire.Frame) *wire.Frame {
	if !s.AccessLevel().Has(metriccatalog.AccessControl) {
		return s.replyCompleted(req, wire.ErrAccessDenied)
	}

	name, _ := req.GetString(wire.FieldFileName)

	rcc := s.beginFileReceive(req.Header.ID, name)

	return s.replyCompleted(req, rcc)
}

func (s *Session) handleFileData(req *wire.Frame) *wire.Frame {
	data, _ := req.GetBinary(wire.FieldValue)
	eof := req.Header.Flags&wire.FlagEndOfFile != 0

	rcc, shouldReply := s.writeFileData(req.Header.ID, data, eof)
	if !shouldReply {
		return nil
	}

	return s.replyCompleted(req, rcc)
}

func (s *Session) handleSetupProxy(req *wire.Frame) *wire.Frame {
	host, _ := req.GetString(wire.FieldValue)

	rcc := s.setupProxy(netProxyDialer{}, "tcp", host)

	return s.replyCompleted(req, rcc)
}

func (s *Session) handleProxyFrame(frame *wire.Frame) {
	raw, err := frame.Encode()
	if err != nil {
		return
	}

	_ = s.proxyForward(raw)
}

func (s *Session) handleAction(ctx context.Context, req *wire.Frame) *wire.Frame {
	if !s.AccessLevel().Has(metriccatalog.AccessControl) {
		return s.replyCompleted(req, wire.ErrAccessDenied)
	}

	if s.actions == nil {
		return s.replyCompleted(req, wire.ErrNotImplemented)
	}

	name, _ := req.GetString(wire.FieldActionName)

	numArgs, _ := req.GetUint32(wire.FieldNumArgs)

	args := make([]string, 0, numArgs)

	for i := uint32(0); i < numArgs; i++ {
		v, _ := req.GetString(wire.FieldArgBase + i)
		args = append(args, v)
	}

	exitCode, _, err := s.actions.Run(ctx, name, args)
	if err != nil {
		return s.replyCompleted(req, wire.ErrInternal)
	}

	s.registry.PushValue(name+".ExitCode", strconv.Itoa(exitCode))

	return s.replyCompleted(req, wire.Success)
}
