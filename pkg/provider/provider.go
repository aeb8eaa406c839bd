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
	"time"

	"github.com/carverauto/serviceradar/pkg/logger"
)

// poll runs one invocation of the provider's command (§4.2 steps 1-6). It
// never disturbs the cache on timeout, non-zero exit, or parse failure —
// only a fully parsed result replaces it, and the replacement happens
// under the provider's own mutex so readers never observe a partial
// write (§3 invariant).
func (p *provider) poll(ctx context.Context, log logger.Logger) bool {
	out, err := runCommand(ctx, p.cfg.Command, p.cfg.Timeout)
	if err != nil {
		log.Debug().Str("provider", p.cfg.Name).Err(err).Msg("provider command did not complete successfully")
		return false
	}

	switch p.cfg.Shape {
	case ShapeMetric:
		parsed := parseKeyValue(out)
		p.mu.Lock()
		p.cache.metrics = parsed
		p.lastPollUnix = time.Now().Unix()
		p.mu.Unlock()

	case ShapeList:
		parsed := parseLines(out)
		p.mu.Lock()
		p.cache.lines = parsed
		p.lastPollUnix = time.Now().Unix()
		p.mu.Unlock()

	case ShapeTable:
		parsed, perr := parseExternalTable(out, p.cfg.Table)
		if perr != nil {
			log.Warn().Str("provider", p.cfg.Name).Err(perr).Msg("failed to parse external table output, retaining previous cache")
			return false
		}

		p.mu.Lock()
		p.cache.table = parsed
		p.lastPollUnix = time.Now().Unix()
		p.mu.Unlock()

	case ShapeStructured:
		p.mu.Lock()
		p.cache.doc = out
		p.lastPollUnix = time.Now().Unix()
		p.mu.Unlock()
	}

	return true
}

func (p *provider) snapshotMetric(key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	v, ok := p.cache.metrics[key]

	return v, ok
}

func (p *provider) snapshotLines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]string(nil), p.cache.lines...)
}

func (p *provider) snapshotTable() *parsedTable {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cache.table == nil {
		return nil
	}

	cp := *p.cache.table

	return &cp
}

func (p *provider) snapshotDoc() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.cache.doc
}
