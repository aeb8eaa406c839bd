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

// Package provider implements the external data provider supervisor:
// periodic execution of configured shell commands whose stdout is parsed
// into one of four shapes and cached for subsequent metric/list/table
// reads. It satisfies metriccatalog.ProviderTier.
package provider

import (
	"sync"
	"time"
)

// Shape tags the four output forms a provider's stdout may be parsed as.
type Shape int

const (
	ShapeMetric Shape = iota
	ShapeList
	ShapeTable
	ShapeStructured
)

// StructuredFormat selects how a ShapeStructured provider's cached
// document is queried.
type StructuredFormat int

const (
	FormatXML StructuredFormat = iota
	FormatJSON
	FormatRegex
)

// TableSpec carries the §4.2 external-table parsing configuration.
type TableSpec struct {
	Separator        byte
	DecodeEscapes    bool
	MergeSeparators  bool
	InstanceColumns  []string
	ColumnTypes      map[string]string
	DefaultType      string
}

// StructuredSpec carries the §4.2 structured-provider configuration: a
// query expression whose syntax depends on Format, evaluated against the
// cached document.
type StructuredSpec struct {
	Format        StructuredFormat
	Query         string
	Parameterized bool
}

// Config is the §3 "external data provider" 4-tuple plus the shape tag
// and shape-specific options.
type Config struct {
	Name        string
	Command     string
	Interval    time.Duration
	Timeout     time.Duration
	Description string
	Shape       Shape

	Table      TableSpec
	Structured StructuredSpec
}

// cache holds the parsed result of the most recent successful poll. Only
// one of its fields is populated, selected by the owning provider's
// Shape. Snapshot-on-completion: replaced wholesale under the provider's
// mutex, never mutated in place (§3 invariant: readers never see a
// partially written result).
type cache struct {
	metrics map[string]string // key/value shape
	lines   []string          // list shape (insertion order)
	table   *parsedTable
	doc     []byte // structured shape: raw bytes of the last good document
}

type parsedTable struct {
	columns []string
	rows    [][]string
}

// provider is one scheduled external command plus its snapshot cache.
type provider struct {
	cfg Config

	mu           sync.Mutex
	cache        cache
	lastPollUnix int64

	// consecutiveFails is only ever touched by this provider's own
	// scheduling goroutine (run), so it needs no lock of its own.
	consecutiveFails int
}
