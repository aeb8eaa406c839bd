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

package wire

// ResultCode is the wire-level outcome of a request, carried in FieldRCC.
// Internal subsystems work in Go errors (see pkg/metriccatalog.Outcome);
// pkg/metriccatalog's Registry translates lookup outcomes into result
// codes, and pkg/subagent translates a subagent's result codes back into
// outcomes, per §7.
type ResultCode uint32

const (
	Success ResultCode = iota
	ErrUnknownMetric
	ErrUnsupportedMetric
	ErrNoSuchInstance
	ErrAccessDenied
	ErrInternal
	ErrConnectionBroken
	ErrNotImplemented
	ErrBadArguments
	ErrAuthRequired
	ErrAuthFailed
	ErrEncryptionRequired
	ErrMalformedResponse
	ErrFileAlreadyExists
	ErrIOFailure
	ErrResourceBusy
)

func (r ResultCode) String() string {
	switch r {
	case Success:
		return "SUCCESS"
	case ErrUnknownMetric:
		return "UNKNOWN_METRIC"
	case ErrUnsupportedMetric:
		return "UNSUPPORTED_METRIC"
	case ErrNoSuchInstance:
		return "NO_SUCH_INSTANCE"
	case ErrAccessDenied:
		return "ACCESS_DENIED"
	case ErrInternal:
		return "INTERNAL_ERROR"
	case ErrConnectionBroken:
		return "CONNECTION_BROKEN"
	case ErrNotImplemented:
		return "NOT_IMPLEMENTED"
	case ErrBadArguments:
		return "BAD_ARGUMENTS"
	case ErrAuthRequired:
		return "AUTH_REQUIRED"
	case ErrAuthFailed:
		return "AUTH_FAILED"
	case ErrEncryptionRequired:
		return "ENCRYPTION_REQUIRED"
	case ErrMalformedResponse:
		return "MALFORMED_RESPONSE"
	case ErrFileAlreadyExists:
		return "FILE_ALREADY_EXISTS"
	case ErrIOFailure:
		return "IO_FAILURE"
	case ErrResourceBusy:
		return "RESOURCE_BUSY"
	default:
		return "UNKNOWN"
	}
}

// Ciphers supported for the session-key encryption upgrade (§4.4),
// advertised as a bitmask in the reply to a session-key request.
type Cipher uint32

const (
	CipherAES256 Cipher = 1 << iota
	CipherAES128
	CipherBlowfish256
	CipherBlowfish128
	CipherIDEA // reserved: never advertised, see SPEC_FULL.md DOMAIN STACK
	Cipher3DES
)

// SupportedCiphers is the bitmask this implementation actually offers.
// IDEA is excluded: no dependency in this module's stack implements it.
const SupportedCiphers = CipherAES256 | CipherAES128 | CipherBlowfish256 | CipherBlowfish128 | Cipher3DES
