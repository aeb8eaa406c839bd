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

package metriccatalog

import (
	"context"
	"sync"
)

// ProviderTier is the external-data-provider fall-through consulted when
// no built-in metric claims a query (§4.1 step 3, implemented by
// pkg/provider.Supervisor).
type ProviderTier interface {
	LookupMetric(ctx context.Context, q Query) (string, Outcome)
	LookupList(ctx context.Context, q Query) ([]string, Outcome)
	LookupTable(ctx context.Context, q Query) (*Table, Outcome)
}

// SubagentTier is one connected subagent bridge consulted, in
// registration order, as the final fall-through tier (implemented by
// pkg/subagent.Bridge).
type SubagentTier interface {
	Name() string
	LookupMetric(ctx context.Context, q Query) (string, Outcome)
	LookupList(ctx context.Context, q Query) ([]string, Outcome)
	LookupTable(ctx context.Context, q Query) (*Table, Outcome)
}

// Counters tracks the dispatcher's self-observability numbers (surfaced
// by the Agent.* built-ins in builtin.go). Increments happen only at the
// decisive tier, never twice for one query (§4.1, §8 invariant 2).
type Counters struct {
	mu          sync.Mutex
	Processed   uint64
	Failed      uint64
	Unsupported uint64
}

func (c *Counters) addProcessed() {
	c.mu.Lock()
	c.Processed++
	c.mu.Unlock()
}

func (c *Counters) addFailed() {
	c.mu.Lock()
	c.Failed++
	c.mu.Unlock()
}

func (c *Counters) addUnsupported() {
	c.mu.Lock()
	c.Unsupported++
	c.mu.Unlock()
}

// Snapshot returns the current counter values.
func (c *Counters) Snapshot() (processed, failed, unsupported uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.Processed, c.Failed, c.Unsupported
}

// Registry holds the three parallel ordered metric/list/table
// collections plus the push collection, and the provider/subagent
// fall-through tiers consulted when a query isn't claimed by any
// registered descriptor.
//
// Mutation (Add*) is rare — CLI/config-driven at startup or on subagent
// connect — so a single RWMutex covers all four collections, matching
// §5's guidance that registration paths may take a short mutex rather
// than a full readers-writer scheme per collection.
type Registry struct {
	mu sync.RWMutex

	metrics []*MetricDescriptor
	lists   []*ListDescriptor
	tables  []*TableDescriptor
	pushes  map[string]*PushDescriptor
	pushVal map[string]string

	provider  ProviderTier
	subagents []SubagentTier

	Counters Counters
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		pushes:  make(map[string]*PushDescriptor),
		pushVal: make(map[string]string),
	}
}

// SetProviderTier installs the external-provider fall-through consulted
// in Lookup step 3. Passing nil disables that tier.
func (r *Registry) SetProviderTier(p ProviderTier) {
	r.mu.Lock()
	r.provider = p
	r.mu.Unlock()
}

// AddSubagentTier appends a subagent bridge to the fall-through order.
func (r *Registry) AddSubagentTier(s SubagentTier) {
	r.mu.Lock()
	r.subagents = append(r.subagents, s)
	r.mu.Unlock()
}

// RemoveSubagentTier drops a subagent bridge by name, e.g. on
// subagent-disconnect teardown.
func (r *Registry) RemoveSubagentTier(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.subagents[:0]

	for _, s := range r.subagents {
		if s.Name() != name {
			out = append(out, s)
		}
	}

	r.subagents = out
}

// AddMetric registers or, on a case-insensitive name collision, replaces
// a metric descriptor in place so later CLI/config overrides win while
// preserving lookup order (§4.1, §8 invariant 1).
func (r *Registry) AddMetric(d *MetricDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := baseName(d.Name)

	for i, existing := range r.metrics {
		if baseName(existing.Name) == key {
			r.metrics[i] = d

			return
		}
	}

	r.metrics = append(r.metrics, d)
}

// AddList registers or replaces a list descriptor; see AddMetric.
func (r *Registry) AddList(d *ListDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := baseName(d.Name)

	for i, existing := range r.lists {
		if baseName(existing.Name) == key {
			r.lists[i] = d

			return
		}
	}

	r.lists = append(r.lists, d)
}

// AddTable registers or replaces a table descriptor; see AddMetric.
func (r *Registry) AddTable(d *TableDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := baseName(d.Name)

	for i, existing := range r.tables {
		if baseName(existing.Name) == key {
			r.tables[i] = d

			return
		}
	}

	r.tables = append(r.tables, d)
}

// AddPushMetric declares a push metric's shape. Its value starts unset
// until the first PushValue call.
func (r *Registry) AddPushMetric(d *PushDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pushes[baseName(d.Name)] = d
}

// PushValue stores a pushed value, last-writer-wins under concurrent
// pushes (§3 Push descriptor).
func (r *Registry) PushValue(name, value string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := baseName(name)
	if _, ok := r.pushes[key]; !ok {
		return false
	}

	r.pushVal[key] = value

	return true
}

// AddExternalMetric registers a metric descriptor backed by an external
// key/value provider command (§4.2 ExternalMetricProvider).
func (r *Registry) AddExternalMetric(name, description string) {
	r.AddMetric(&MetricDescriptor{
		Name:        name,
		Kind:        HandlerExternalCommand,
		DataType:    TypeString,
		Description: description,
	})
}

// AddExternalList registers a list descriptor backed by an external
// provider's cached keys/lines.
func (r *Registry) AddExternalList(name, description string) {
	r.AddList(&ListDescriptor{
		Name:        name,
		Kind:        HandlerExternalList,
		Description: description,
	})
}

// AddExternalTable registers a table descriptor backed by an external
// table provider (§4.2 ExternalTable, §6 configuration surface).
func (r *Registry) AddExternalTable(name, description string, cols []TableColumn) {
	r.AddTable(&TableDescriptor{
		Name:        name,
		Kind:        HandlerExternalTable,
		Description: description,
		Columns:     cols,
	})
}

// AddStructuredProvider registers a parameterized structured-query metric
// (XPath/JSONPath/regex, §4.2) plus the generic "NAME(*)" form every
// structured provider exposes.
func (r *Registry) AddStructuredProvider(name, query, description string, dt DataType, parameterized bool) {
	n := name
	if parameterized && !hasWildcardSuffix(n) {
		n += "(*)"
	}

	r.AddMetric(&MetricDescriptor{
		Name:        n,
		Kind:        HandlerStructured,
		Arg:         query,
		DataType:    dt,
		Description: description,
	})
}

func hasWildcardSuffix(s string) bool {
	const w = "(*)"

	return len(s) >= len(w) && s[len(s)-len(w):] == w
}
