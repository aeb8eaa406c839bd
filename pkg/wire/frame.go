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

// Package wire implements the framed, TLV-bodied message protocol that
// client sessions (pkg/session) and the subagent bridge (pkg/subagent)
// speak on the wire: a 16-byte header followed by a variable number of
// typed fields.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Flags carried in the frame header.
type Flags uint16

const (
	FlagBinary Flags = 1 << iota
	FlagControl
	FlagEndOfFile
	FlagEndOfSequence
	FlagReverseOrder
	FlagEncrypted
)

// Code identifies the request/response/control message type. The numeric
// space is owned by this package; cmd packages should refer to the named
// constants rather than literals.
type Code uint16

const (
	CodeKeepAlive Code = iota + 1
	CodeLogin
	CodeGetServerInfo
	CodeGetMyConfig
	CodeRequestEncryption
	CodeRequestSessionKey
	CodeSessionKey
	CodeGetNXCPCaps
	CodeNXCPCaps
	CodeGetParameter
	CodeGetList
	CodeGetTable
	CodeGetParameterList
	CodeGetEnumList
	CodeGetTableList
	CodeGetActionList
	CodeAction
	CodeTransferFile
	CodeFileData
	CodeAbortFileTransfer
	CodeUpgradeAgent
	CodeGetAgentConfig
	CodeUpdateAgentConfig
	CodeSetupProxyConnection
	CodeSNMPRequest
	CodePushDCIData
	CodeTrap
	CodeSyncAgentPolicies
	CodeDeployAgentPolicy
	CodeSetComponentToken
	CodeShutdown
	CodeRestart
	CodeRequestCompleted // generic reply envelope; ERR_* travels in field FieldRCC
)

// Field ids used by the handlers in this repo. Specific subsystems may
// define additional ids locally; these are the ones the framing layer and
// session dispatcher share across packages.
const (
	FieldRCC          uint32 = 1 // result code (uint32, one of the ERR_* constants)
	FieldValue        uint32 = 2 // string: metric value
	FieldParameter    uint32 = 3 // string: metric/list/table/action name with optional (args)
	FieldLoginName    uint32 = 4
	FieldPassword     uint32 = 5
	FieldAuthType     uint32 = 6 // uint16: 0=plaintext 1=md5 2=sha1
	FieldCipher       uint32 = 7 // uint32: selected cipher id
	FieldServerKey    uint32 = 8 // binary: RSA-wrapped symmetric key
	FieldFileName     uint32 = 9
	FieldActionName   uint32 = 10
	FieldNumArgs      uint32 = 11
	FieldArgBase      uint32 = 1000 // FieldArgBase+n => ARG_n
	FieldAccessLevel  uint32 = 12
	FieldProtoVersion uint32 = 13
	FieldSupportedCph uint32 = 14
	FieldServerID     uint32 = 15 // uint64: target notification/session server id
	FieldTrapID       uint32 = 16 // uint64: at-most-once delivery dedup key
)

const headerSize = 16 // size(4) flags(2) code(2) id(4) numFields(4)

var (
	// ErrFrameTooLarge guards against a hostile or corrupt size field from
	// allocating unbounded memory while reading a frame.
	ErrFrameTooLarge   = errors.New("wire: frame exceeds maximum size")
	ErrShortField      = errors.New("wire: truncated field")
	ErrUnknownFieldTyp = errors.New("wire: unknown field type")
)

// MaxFrameSize bounds a single frame (header + body). Binary file chunks
// are capped at 32 KiB per §4.7; this ceiling leaves headroom for TLV
// overhead and control frames while still rejecting corrupt length
// prefixes before they cause a large allocation.
const MaxFrameSize = 1 << 20

// FieldType tags the wire representation of a field's value.
type FieldType uint8

const (
	FieldTypeInt16 FieldType = iota
	FieldTypeUint16
	FieldTypeInt32
	FieldTypeUint32
	FieldTypeInt64
	FieldTypeUint64
	FieldTypeFloat64
	FieldTypeString
	FieldTypeBinary
)

// Field is one TLV entry in a frame's body: { field-id: u32, type: u8,
// padding: u24, value: variable }.
type Field struct {
	ID   uint32
	Type FieldType
	raw  []byte // encoded value, excluding id/type/padding
}

// Header is the fixed 16-byte frame header.
type Header struct {
	Size      uint32
	Flags     Flags
	Code      Code
	ID        uint32
	NumFields uint32
}

// Frame is a fully decoded message: header plus its field set.
type Frame struct {
	Header Header
	Fields []Field
}

// NewFrame starts a frame builder for the given code and message id.
func NewFrame(code Code, id uint32, flags Flags) *Frame {
	return &Frame{Header: Header{Code: code, ID: id, Flags: flags}}
}

func (f *Frame) SetString(id uint32, v string) {
	f.Fields = append(f.Fields, Field{ID: id, Type: FieldTypeString, raw: []byte(v)})
}

func (f *Frame) SetUint32(id uint32, v uint32) {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	f.Fields = append(f.Fields, Field{ID: id, Type: FieldTypeUint32, raw: b})
}

func (f *Frame) SetInt32(id uint32, v int32) {
	f.SetUint32(id, uint32(v))
}

func (f *Frame) SetUint64(id uint32, v uint64) {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	f.Fields = append(f.Fields, Field{ID: id, Type: FieldTypeUint64, raw: b})
}

func (f *Frame) SetFloat64(id uint32, v float64) {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(v))
	f.Fields = append(f.Fields, Field{ID: id, Type: FieldTypeFloat64, raw: b})
}

// GetFloat64 returns the decoded value of a float64 field.
func (f *Frame) GetFloat64(id uint32) (float64, bool) {
	fl, ok := f.Get(id)
	if !ok || len(fl.raw) < 8 {
		return 0, false
	}

	return math.Float64frombits(binary.BigEndian.Uint64(fl.raw)), true
}

// GetUint64 returns the decoded value of a uint64/int64/counter64 field.
func (f *Frame) GetUint64(id uint32) (uint64, bool) {
	fl, ok := f.Get(id)
	if !ok || len(fl.raw) < 8 {
		return 0, false
	}

	return binary.BigEndian.Uint64(fl.raw), true
}

func (f *Frame) SetBinary(id uint32, v []byte) {
	f.Fields = append(f.Fields, Field{ID: id, Type: FieldTypeBinary, raw: v})
}

// Get returns the first field with the given id.
func (f *Frame) Get(id uint32) (Field, bool) {
	for _, fl := range f.Fields {
		if fl.ID == id {
			return fl, true
		}
	}

	return Field{}, false
}

func (f *Frame) GetString(id uint32) (string, bool) {
	fl, ok := f.Get(id)
	if !ok || fl.Type != FieldTypeString {
		return "", false
	}

	return string(fl.raw), true
}

func (f *Frame) GetUint32(id uint32) (uint32, bool) {
	fl, ok := f.Get(id)
	if !ok || len(fl.raw) < 4 {
		return 0, false
	}

	return binary.BigEndian.Uint32(fl.raw), true
}

func (f *Frame) GetBinary(id uint32) ([]byte, bool) {
	fl, ok := f.Get(id)
	if !ok {
		return nil, false
	}

	return fl.raw, true
}

// Encode serializes the frame, filling in Size and NumFields.
func (f *Frame) Encode() ([]byte, error) {
	var body []byte

	for _, fl := range f.Fields {
		needsLenPrefix := fl.Type == FieldTypeString || fl.Type == FieldTypeBinary

		valueLen := len(fl.raw)
		if needsLenPrefix {
			valueLen += 4
		}

		fb := make([]byte, 8+valueLen)
		binary.BigEndian.PutUint32(fb[0:4], fl.ID)
		fb[4] = byte(fl.Type)
		fb[5], fb[6], fb[7] = 0, 0, 0 // padding

		if needsLenPrefix {
			binary.BigEndian.PutUint32(fb[8:12], uint32(len(fl.raw)))
			copy(fb[12:], fl.raw)
		} else {
			copy(fb[8:], fl.raw)
		}

		body = append(body, fb...)
	}

	total := headerSize + len(body)
	if total > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, total)
	}

	out := make([]byte, total)
	binary.BigEndian.PutUint32(out[0:4], uint32(total))
	binary.BigEndian.PutUint16(out[4:6], uint16(f.Header.Flags))
	binary.BigEndian.PutUint16(out[6:8], uint16(f.Header.Code))
	binary.BigEndian.PutUint32(out[8:12], f.Header.ID)
	binary.BigEndian.PutUint32(out[12:16], uint32(len(f.Fields)))
	copy(out[headerSize:], body)

	return out, nil
}

// ReadFrame reads exactly one frame from r. It is safe to call repeatedly
// on a long-lived connection; each call blocks until a full frame (or an
// error) is available, so callers wanting a read timeout should wrap r in
// a net.Conn with SetReadDeadline and treat the returned error's
// net.Error.Timeout() as the keepalive-tick case described in §4.4.
func ReadFrame(r io.Reader) (*Frame, error) {
	hdr := make([]byte, headerSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint32(hdr[0:4])
	if size < headerSize || size > MaxFrameSize {
		return nil, fmt.Errorf("%w: header declares %d bytes", ErrFrameTooLarge, size)
	}

	body := make([]byte, size-headerSize)
	if len(body) > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, err
		}
	}

	f := &Frame{
		Header: Header{
			Size:      size,
			Flags:     Flags(binary.BigEndian.Uint16(hdr[4:6])),
			Code:      Code(binary.BigEndian.Uint16(hdr[6:8])),
			ID:        binary.BigEndian.Uint32(hdr[8:12]),
			NumFields: binary.BigEndian.Uint32(hdr[12:16]),
		},
	}

	off := 0
	for i := uint32(0); i < f.Header.NumFields; i++ {
		if off+8 > len(body) {
			return nil, ErrShortField
		}

		id := binary.BigEndian.Uint32(body[off : off+4])
		typ := FieldType(body[off+4])
		off += 8

		n, err := fieldValueLen(typ, body[off:])
		if err != nil {
			return nil, err
		}

		if off+n > len(body) {
			return nil, ErrShortField
		}

		val := make([]byte, n)
		copy(val, body[off:off+n])
		off += n

		f.Fields = append(f.Fields, Field{ID: id, Type: typ, raw: val})
	}

	return f, nil
}

// fieldValueLen returns how many bytes of rest belong to a field of type
// typ. Fixed-width types carry no explicit length; string and binary
// fields are length-prefixed by a leading uint32.
func fieldValueLen(typ FieldType, rest []byte) (int, error) {
	switch typ {
	case FieldTypeInt16, FieldTypeUint16:
		return 2, nil
	case FieldTypeInt32, FieldTypeUint32:
		return 4, nil
	case FieldTypeInt64, FieldTypeUint64, FieldTypeFloat64:
		return 8, nil
	case FieldTypeString, FieldTypeBinary:
		if len(rest) < 4 {
			return 0, ErrShortField
		}

		l := binary.BigEndian.Uint32(rest[0:4])

		return 4 + int(l), nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownFieldTyp, typ)
	}
}
