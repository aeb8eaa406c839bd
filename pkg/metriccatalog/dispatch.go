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

	"github.com/carverauto/serviceradar/pkg/wire"
)

// LookupMetric implements the §4.1 dispatch algorithm for a single
// metric query: registration-order glob match, access-filter check,
// handler invocation, and fall-through on OutcomeUnknown to the
// external-provider tier and then to each connected subagent in order.
// Counters are incremented exactly once, at whichever tier is decisive.
func (r *Registry) LookupMetric(ctx context.Context, session Session, raw string) (string, wire.ResultCode) {
	q := ParseQuery(raw)

	r.mu.RLock()
	descriptor, builtin := r.findMetric(q)
	provider := r.provider
	subagents := append([]SubagentTier(nil), r.subagents...)
	pushDesc, pushVal, isPush := r.findPush(q)
	r.mu.RUnlock()

	if descriptor != nil {
		if !r.checkAccess(descriptor.Access, session) {
			return "", wire.ErrAccessDenied
		}

		val, outcome := builtin(ctx, q.Args)

		if code, final := r.finalize(outcome); final {
			return val, code
		}
		// OutcomeUnknown: fall through below.
	} else if isPush {
		_ = pushDesc

		if !pushVal.set {
			r.Counters.addFailed()

			return "", wire.ErrNoSuchInstance
		}

		r.Counters.addProcessed()

		return pushVal.value, wire.Success
	}

	if provider != nil {
		val, outcome := provider.LookupMetric(ctx, q)
		if code, final := r.finalize(outcome); final {
			return val, code
		}
	}

	for _, sa := range subagents {
		val, outcome := sa.LookupMetric(ctx, q)
		if outcome != OutcomeUnknown {
			if code, final := r.finalize(outcome); final {
				return val, code
			}
		}
	}

	r.Counters.addUnsupported()

	return "", wire.ErrUnknownMetric
}

// LookupList implements the same fall-through for list-shaped metrics.
func (r *Registry) LookupList(ctx context.Context, session Session, raw string) ([]string, wire.ResultCode) {
	q := ParseQuery(raw)

	r.mu.RLock()
	descriptor := r.findList(q)
	provider := r.provider
	subagents := append([]SubagentTier(nil), r.subagents...)
	r.mu.RUnlock()

	if descriptor != nil && !r.checkAccess(descriptor.Access, session) {
		return nil, wire.ErrAccessDenied
	}

	// Built-in/registered lists with no live handler beyond the external
	// tiers fall straight through — only external-command/subagent lists
	// carry actual data in this core (§4.1 built-in catalog is scalar
	// metrics; lists are always externally or subagent sourced).
	if provider != nil {
		vals, outcome := provider.LookupList(ctx, q)
		if code, final := r.finalize(outcome); final {
			return vals, code
		}
	}

	for _, sa := range subagents {
		vals, outcome := sa.LookupList(ctx, q)
		if outcome != OutcomeUnknown {
			if code, final := r.finalize(outcome); final {
				return vals, code
			}
		}
	}

	r.Counters.addUnsupported()

	return nil, wire.ErrUnknownMetric
}

// LookupTable implements the same fall-through for table-shaped metrics.
func (r *Registry) LookupTable(ctx context.Context, session Session, raw string) (*Table, wire.ResultCode) {
	q := ParseQuery(raw)

	r.mu.RLock()
	descriptor := r.findTable(q)
	provider := r.provider
	subagents := append([]SubagentTier(nil), r.subagents...)
	r.mu.RUnlock()

	if descriptor != nil && !r.checkAccess(descriptor.Access, session) {
		return nil, wire.ErrAccessDenied
	}

	if provider != nil {
		tbl, outcome := provider.LookupTable(ctx, q)
		if code, final := r.finalize(outcome); final {
			return tbl, code
		}
	}

	for _, sa := range subagents {
		tbl, outcome := sa.LookupTable(ctx, q)
		if outcome != OutcomeUnknown {
			if code, final := r.finalize(outcome); final {
				return tbl, code
			}
		}
	}

	r.Counters.addUnsupported()

	return nil, wire.ErrUnknownMetric
}

// finalize increments the decisive-tier counter and translates an
// Outcome to a wire.ResultCode. It returns final=false only for
// OutcomeUnknown, signaling the caller to consult the next tier without
// touching any counter.
func (r *Registry) finalize(o Outcome) (wire.ResultCode, bool) {
	switch o {
	case OutcomeSuccess:
		r.Counters.addProcessed()

		return wire.Success, true
	case OutcomeUnsupported:
		r.Counters.addUnsupported()

		return wire.ErrUnsupportedMetric, true
	case OutcomeError:
		r.Counters.addFailed()

		return wire.ErrInternal, true
	case OutcomeNoSuchInstance:
		r.Counters.addFailed()

		return wire.ErrNoSuchInstance, true
	default: // OutcomeUnknown
		return 0, false
	}
}

func (r *Registry) checkAccess(filter AccessFilter, s Session) bool {
	if filter == nil {
		return s == nil || s.AccessLevel().Has(AccessRead)
	}

	return filter(s)
}

func (r *Registry) findMetric(q Query) (*MetricDescriptor, BuiltinHandler) {
	for _, d := range r.metrics {
		if matchName(d.Name, q) {
			if d.Builtin != nil {
				return d, d.Builtin
			}
			// Non-builtin descriptors (external-command, structured,
			// external-list/table headers registered as metrics) have no
			// synchronous handler of their own; the provider/subagent
			// tiers own their data. Treat as an immediate fall-through
			// rather than a decisive UNKNOWN_METRIC.
			return d, func(context.Context, []string) (string, Outcome) { return "", OutcomeUnknown }
		}
	}

	return nil, nil
}

func (r *Registry) findList(q Query) *ListDescriptor {
	for _, d := range r.lists {
		if matchName(d.Name, q) {
			return d
		}
	}

	return nil
}

func (r *Registry) findTable(q Query) *TableDescriptor {
	for _, d := range r.tables {
		if matchName(d.Name, q) {
			return d
		}
	}

	return nil
}

type pushValue struct {
	value string
	set   bool
}

func (r *Registry) findPush(q Query) (*PushDescriptor, pushValue, bool) {
	key := baseName(q.Name)

	d, ok := r.pushes[key]
	if !ok {
		return nil, pushValue{}, false
	}

	v, set := r.pushVal[key]

	return d, pushValue{value: v, set: set}, true
}
