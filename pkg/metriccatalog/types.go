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

// Package metriccatalog implements the pluggable metric/list/table/push
// registry and dispatch pipeline described in §4.1: fall-through lookup
// across built-in, external-provider, and subagent tiers, with
// per-metric access control and glob/parameterized name matching.
//
// It is deliberately independent of pkg/checker (the teacher's health
// checker registry): that package answers "is this service up", while
// this one answers "what is the value of this named, possibly
// parameterized, metric" and has its own fall-through and counter
// semantics (§4.1, §8).
package metriccatalog

import (
	"context"
)

// DataType is the wire data type of a metric value.
type DataType int

const (
	TypeInt32 DataType = iota
	TypeUint32
	TypeInt64
	TypeUint64
	TypeFloat
	TypeString
	TypeCounter32
	TypeCounter64
)

// HandlerKind tags which tier produces a metric's value.
type HandlerKind int

const (
	HandlerBuiltin HandlerKind = iota
	HandlerExternalCommand
	HandlerExternalList
	HandlerExternalTable
	HandlerStructured
	HandlerSubagent
	HandlerPush
)

// Session is the minimal view of a caller's identity the access-filter
// predicates need. Concrete session state lives in pkg/session; this
// interface keeps metriccatalog from importing it (and thus from forming
// an import cycle, since pkg/session needs to call into the registry).
type Session interface {
	UserIdentity() string
	AccessLevel() AccessLevel
	RemoteAddr() string
}

// AccessLevel is a bitmask of the §3 session access-level flags.
type AccessLevel uint8

const (
	AccessRead AccessLevel = 1 << iota
	AccessControl
	AccessMaster
)

// Has reports whether all bits in want are set in a.
func (a AccessLevel) Has(want AccessLevel) bool { return a&want == want }

// AccessFilter decides whether a session may read a given metric.
// A nil AccessFilter permits everyone with AccessRead.
type AccessFilter func(s Session) bool

// BuiltinHandler computes a built-in metric's value synchronously.
// args are the parsed, comma-split arguments from a NAME(arg1,arg2)
// invocation (empty for non-parameterized metrics).
type BuiltinHandler func(ctx context.Context, args []string) (string, Outcome)

// Outcome is the internal, pre-wire-translation result of a handler
// invocation (§4.1 step 2). The dispatcher is the only place that knows
// how to turn this into a wire.ResultCode.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeUnsupported
	OutcomeError
	OutcomeNoSuchInstance
	// OutcomeUnknown means "not mine" — the dispatcher must fall through
	// to the next tier rather than finalizing a reply.
	OutcomeUnknown
)

// MetricDescriptor is a single named, possibly parameterized observable.
type MetricDescriptor struct {
	Name        string // up to 63 chars; may contain a literal "(*)" wildcard marker
	Kind        HandlerKind
	Arg         string // opaque handler argument (command template, query expr, ...)
	DataType    DataType
	Description string
	Access      AccessFilter
	Builtin     BuiltinHandler // set only when Kind == HandlerBuiltin
}

// ListDescriptor yields an ordered sequence of strings.
type ListDescriptor struct {
	Name        string
	Kind        HandlerKind
	Arg         string
	Description string
	Access      AccessFilter
}

// TableColumn describes one column of a TableDescriptor's shape.
type TableColumn struct {
	Name       string
	DataType   DataType
	IsInstance bool // marks this column as part of row-identity
}

// TableDescriptor yields a typed grid with named, optionally
// instance-identifying columns.
type TableDescriptor struct {
	Name        string
	Kind        HandlerKind
	Arg         string
	Description string
	Columns     []TableColumn
	Access      AccessFilter
}

// PushDescriptor is a metric whose value arrives asynchronously via
// PushValue and is held until the next read (last-writer-wins).
type PushDescriptor struct {
	Name        string
	DataType    DataType
	Description string
}

// Table is the materialized result of a table read: rows are plain
// string cells in column order: Columns[i] describes cell[i] for every
// row.
type Table struct {
	Columns []TableColumn
	Rows    [][]string
}
