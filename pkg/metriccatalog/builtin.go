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
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/carverauto/serviceradar/pkg/problems"
)

// SelfObservability exposes the agent-wide atomics and small facts that
// back the §4.1 standard built-in catalog (Agent.AcceptedConnections,
// Agent.FailedRequests, heap usage, uptime, ...). Callers (cmd/agentd)
// own one instance and wire it into RegisterBuiltins. No code in this
// module updates the five counter atomics, so the built-ins backed by
// them (Agent.AcceptedConnections, Agent.FailedRequests,
// Agent.SessionCount, Agent.AuthenticationFailures,
// Agent.NotificationQueueSize) report 0.
type SelfObservability struct {
	AcceptedConnections atomic.Int64
	FailedRequests      atomic.Int64
	SessionCount        atomic.Int64
	NotificationQueue   atomic.Int64
	AuthFailures        atomic.Int64

	Version         string
	HardwareID      string
	SupportedCiphers uint32
	startTime       time.Time

	// Problems is the registered-problem surface (§7) this agent's
	// subsystems report into. Left nil, Agent.RegisteredProblems always
	// reports an empty list rather than panicking.
	Problems *problems.Registry
}

// NewSelfObservability returns a tracker with its clock started now.
func NewSelfObservability(version, hardwareID string, ciphers uint32) *SelfObservability {
	return &SelfObservability{
		Version:          version,
		HardwareID:       hardwareID,
		SupportedCiphers: ciphers,
		startTime:        time.Now(),
	}
}

// RegisterBuiltins installs the fixed standard catalog described in
// §4.1 into r. It is idempotent: calling it twice just replaces each
// descriptor in place (AddMetric semantics).
func RegisterBuiltins(r *Registry, obs *SelfObservability) {
	str := func(name, desc string, fn func(context.Context, []string) (string, Outcome)) {
		r.AddMetric(&MetricDescriptor{
			Name: name, Kind: HandlerBuiltin, DataType: TypeString,
			Description: desc, Builtin: fn,
		})
	}

	counter := func(name string, v *atomic.Int64, desc string) {
		str(name, desc, func(context.Context, []string) (string, Outcome) {
			return strconv.FormatInt(v.Load(), 10), OutcomeSuccess
		})
	}

	counter("Agent.AcceptedConnections", &obs.AcceptedConnections, "Number of connections accepted by the agent since start")
	counter("Agent.FailedRequests", &obs.FailedRequests, "Number of requests that ended in INTERNAL_ERROR")
	counter("Agent.SessionCount", &obs.SessionCount, "Number of currently open client sessions")
	counter("Agent.AuthenticationFailures", &obs.AuthFailures, "Number of failed authentication attempts")
	counter("Agent.NotificationQueueSize", &obs.NotificationQueue, "Number of notifications currently spooled or in flight")

	str("Agent.Version", "Agent build version", func(context.Context, []string) (string, Outcome) {
		return obs.Version, OutcomeSuccess
	})

	str("Agent.HardwareId", "Stable hardware identifier for this host", func(context.Context, []string) (string, Outcome) {
		return obs.HardwareID, OutcomeSuccess
	})

	str("Agent.SupportedCiphers", "Bitmask of supported session-encryption ciphers", func(context.Context, []string) (string, Outcome) {
		return strconv.FormatUint(uint64(obs.SupportedCiphers), 10), OutcomeSuccess
	})

	str("Agent.Uptime", "Seconds since the agent process started", func(context.Context, []string) (string, Outcome) {
		return strconv.FormatInt(int64(time.Since(obs.startTime).Seconds()), 10), OutcomeSuccess
	})

	str("Agent.ThreadPoolInfo", "Runtime goroutine count, as a proxy for thread-pool occupancy", func(context.Context, []string) (string, Outcome) {
		return strconv.Itoa(runtime.NumGoroutine()), OutcomeSuccess
	})

	str("Agent.HeapUsage", "Heap bytes currently in use", func(context.Context, []string) (string, Outcome) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		return strconv.FormatUint(m.HeapAlloc, 10), OutcomeSuccess
	})

	str("System.CurrentTime", "Current time as a Unix epoch timestamp", func(context.Context, []string) (string, Outcome) {
		return strconv.FormatInt(time.Now().Unix(), 10), OutcomeSuccess
	})

	str("System.CurrentTime.ISO8601", "Current time in RFC 3339 form", func(context.Context, []string) (string, Outcome) {
		return time.Now().UTC().Format(time.RFC3339), OutcomeSuccess
	})

	str("Agent.RegisteredProblems", "Comma-separated keys of currently active registered problems (§7)", func(context.Context, []string) (string, Outcome) {
		if obs.Problems == nil {
			return "", OutcomeSuccess
		}

		active := obs.Problems.Active()
		keys := make([]string, len(active))

		for i, p := range active {
			keys[i] = p.Key
		}

		return strings.Join(keys, ","), OutcomeSuccess
	})

	// Agent.Dispatch.* exposes the registry's own fall-through counters
	// (§8 invariant 2), which is useful for self-observability and for
	// the test harness verifying counter semantics end to end.
	str("Agent.Dispatch.Processed", "Number of dispatcher lookups resolved with SUCCESS", func(context.Context, []string) (string, Outcome) {
		p, _, _ := r.Counters.Snapshot()

		return strconv.FormatUint(p, 10), OutcomeSuccess
	})

	str("Agent.Dispatch.Failed", "Number of dispatcher lookups resolved with INTERNAL_ERROR or NO_SUCH_INSTANCE", func(context.Context, []string) (string, Outcome) {
		_, f, _ := r.Counters.Snapshot()

		return strconv.FormatUint(f, 10), OutcomeSuccess
	})

	str("Agent.Dispatch.Unsupported", "Number of dispatcher lookups resolved with UNSUPPORTED_METRIC or UNKNOWN_METRIC", func(context.Context, []string) (string, Outcome) {
		_, _, u := r.Counters.Snapshot()

		return strconv.FormatUint(u, 10), OutcomeSuccess
	})

	// FileSize(*) / FileTime(*) are parameterized probes in the §4.1
	// catalog ("file-info probes"); arg 1 is the path.
	r.AddMetric(&MetricDescriptor{
		Name: "Agent.FileSize(*)", Kind: HandlerBuiltin, DataType: TypeInt64,
		Description: "Size in bytes of the file named by the first argument",
		Builtin: func(_ context.Context, args []string) (string, Outcome) {
			if len(args) < 1 || args[0] == "" {
				return "", OutcomeNoSuchInstance
			}

			info, err := statFile(args[0])
			if err != nil {
				return "", OutcomeNoSuchInstance
			}

			return strconv.FormatInt(info.size, 10), OutcomeSuccess
		},
	})

	r.AddMetric(&MetricDescriptor{
		Name: "Agent.FileTime(*)", Kind: HandlerBuiltin, DataType: TypeInt64,
		Description: "Modification time (unix seconds) of the file named by the first argument",
		Builtin: func(_ context.Context, args []string) (string, Outcome) {
			if len(args) < 1 || args[0] == "" {
				return "", OutcomeNoSuchInstance
			}

			info, err := statFile(args[0])
			if err != nil {
				return "", OutcomeNoSuchInstance
			}

			return strconv.FormatInt(info.modUnix, 10), OutcomeSuccess
		},
	})
}
