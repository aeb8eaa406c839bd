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

package provider

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/carverauto/serviceradar/pkg/logger"
	"github.com/carverauto/serviceradar/pkg/metriccatalog"
	"github.com/carverauto/serviceradar/pkg/problems"
)

// failingThreshold is the consecutive-poll-failure count at which a
// provider is considered stuck and gets a registered problem (§7,
// SPEC_FULL.md's "Registered-problem surface").
const failingThreshold = 3

// Supervisor owns every configured external data provider and
// implements metriccatalog.ProviderTier, the fall-through consulted by
// the registry after builtins and push metrics miss (§4.1 step 3).
type Supervisor struct {
	log   logger.Logger
	probs *problems.Registry

	mu        sync.RWMutex
	providers []*provider

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSupervisor returns an unstarted supervisor. Call Add for each
// configured provider, then Start.
func NewSupervisor(log logger.Logger) *Supervisor {
	return &Supervisor{
		log:    log,
		stopCh: make(chan struct{}),
	}
}

// SetProblems wires the registered-problem surface a stuck provider
// reports into. A nil registry (the default) makes failing polls log
// only, matching this package's pre-existing behavior.
func (s *Supervisor) SetProblems(probs *problems.Registry) {
	s.probs = probs
}

// Add registers a provider configuration. Safe to call before or after
// Start; a provider added after Start is scheduled immediately.
func (s *Supervisor) Add(cfg Config) {
	p := &provider{cfg: cfg}

	s.mu.Lock()
	s.providers = append(s.providers, p)
	s.mu.Unlock()

	s.wg.Add(1)

	go s.run(p)
}

// Start is a no-op placeholder retained for symmetry with the other
// subsystems' lifecycle methods — providers begin polling as soon as
// they're Added, matching §4.2 step 1 ("on startup, each provider is
// initialized and scheduled").
func (s *Supervisor) Start(context.Context) {}

// Stop signals every provider's scheduling goroutine to exit after its
// current poll and waits for them to finish.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// run implements §4.2 step 7: relative (not fixed-rate) rescheduling —
// the next poll is interval-seconds after this one *completes*, so a
// slow command never causes overlapping invocations of itself.
func (s *Supervisor) run(p *provider) {
	defer s.wg.Done()

	ctx := context.Background()

	// Poll once immediately on registration, matching §4.2 step 1.
	s.pollAndTrack(ctx, p)

	timer := time.NewTimer(p.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-timer.C:
			select {
			case <-s.stopCh:
				return
			default:
			}

			s.pollAndTrack(ctx, p)
			timer.Reset(p.cfg.Interval)
		}
	}
}

// pollAndTrack runs one poll and updates the provider's registered
// problem, if any registry was wired via SetProblems.
func (s *Supervisor) pollAndTrack(ctx context.Context, p *provider) {
	ok := p.poll(ctx, s.log)

	if s.probs == nil {
		return
	}

	key := "provider-" + p.cfg.Name + "-failing"

	if !ok {
		p.consecutiveFails++

		if p.consecutiveFails >= failingThreshold {
			s.probs.Register(key, problems.SeverityMinor, "provider command has failed "+
				strconv.Itoa(p.consecutiveFails)+" consecutive polls")
		}

		return
	}

	p.consecutiveFails = 0
	s.probs.Clear(key)
}

// LookupMetric implements metriccatalog.ProviderTier. Key/value
// providers contribute a flat namespace of keys (no provider name
// prefix — §6 ExternalMetricProvider is anonymous); structured providers
// are matched by their configured name, including the `(*)` glob form.
func (s *Supervisor) LookupMetric(_ context.Context, q metriccatalog.Query) (string, metriccatalog.Outcome) {
	s.mu.RLock()
	providers := append([]*provider(nil), s.providers...)
	s.mu.RUnlock()

	for _, p := range providers {
		switch p.cfg.Shape {
		case ShapeMetric:
			if v, ok := p.snapshotMetric(q.Name); ok {
				return v, metriccatalog.OutcomeSuccess
			}

		case ShapeStructured:
			if !providerNameMatches(p.cfg.Name, q.Name) {
				continue
			}

			doc := p.snapshotDoc()
			if doc == nil {
				return "", metriccatalog.OutcomeNoSuchInstance
			}

			val, err := evalStructured(doc, p.cfg.Structured, q.Args)
			if err != nil {
				return "", metriccatalog.OutcomeNoSuchInstance
			}

			return val, metriccatalog.OutcomeSuccess
		}
	}

	return "", metriccatalog.OutcomeUnknown
}

// LookupList implements metriccatalog.ProviderTier for list-shaped
// providers, matched by configured name.
func (s *Supervisor) LookupList(_ context.Context, q metriccatalog.Query) ([]string, metriccatalog.Outcome) {
	s.mu.RLock()
	providers := append([]*provider(nil), s.providers...)
	s.mu.RUnlock()

	for _, p := range providers {
		if p.cfg.Shape != ShapeList || !providerNameMatches(p.cfg.Name, q.Name) {
			continue
		}

		return p.snapshotLines(), metriccatalog.OutcomeSuccess
	}

	return nil, metriccatalog.OutcomeUnknown
}

// LookupTable implements metriccatalog.ProviderTier for table-shaped
// providers, matched by configured name, cloning the cached table into
// the shared Table shape (§4.2 "clone-merge into the caller-supplied
// table").
func (s *Supervisor) LookupTable(_ context.Context, q metriccatalog.Query) (*metriccatalog.Table, metriccatalog.Outcome) {
	s.mu.RLock()
	providers := append([]*provider(nil), s.providers...)
	s.mu.RUnlock()

	for _, p := range providers {
		if p.cfg.Shape != ShapeTable || !providerNameMatches(p.cfg.Name, q.Name) {
			continue
		}

		pt := p.snapshotTable()
		if pt == nil {
			return nil, metriccatalog.OutcomeNoSuchInstance
		}

		cols := make([]metriccatalog.TableColumn, 0, len(pt.columns))
		for _, c := range pt.columns {
			cols = append(cols, metriccatalog.TableColumn{
				Name:       c,
				DataType:   dataTypeFromName(columnDataType(p.cfg.Table, c)),
				IsInstance: isInstanceColumn(p.cfg.Table, c),
			})
		}

		return &metriccatalog.Table{Columns: cols, Rows: pt.rows}, metriccatalog.OutcomeSuccess
	}

	return nil, metriccatalog.OutcomeUnknown
}

func dataTypeFromName(name string) metriccatalog.DataType {
	switch name {
	case "int32":
		return metriccatalog.TypeInt32
	case "uint32":
		return metriccatalog.TypeUint32
	case "int64":
		return metriccatalog.TypeInt64
	case "uint64":
		return metriccatalog.TypeUint64
	case "float":
		return metriccatalog.TypeFloat
	case "counter32":
		return metriccatalog.TypeCounter32
	case "counter64":
		return metriccatalog.TypeCounter64
	default:
		return metriccatalog.TypeString
	}
}

// providerNameMatches implements the same `(*)` glob convention as
// metriccatalog's registry, duplicated locally rather than imported
// (metriccatalog.matchName is unexported — it belongs to the registry's
// own query-to-descriptor matching, not to provider naming).
func providerNameMatches(configured, queried string) bool {
	const wildcard = "(*)"

	base := configured
	isParameterized := strings.HasSuffix(configured, wildcard)

	if isParameterized {
		base = configured[:len(configured)-len(wildcard)]
	}

	qBase := queried
	if idx := strings.IndexByte(qBase, '('); idx >= 0 {
		qBase = qBase[:idx]
	}

	return strings.EqualFold(base, qBase)
}
