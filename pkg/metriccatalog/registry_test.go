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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/serviceradar/pkg/wire"
)

type fakeSession struct {
	level AccessLevel
}

func (f fakeSession) UserIdentity() string    { return "tester" }
func (f fakeSession) AccessLevel() AccessLevel { return f.level }
func (f fakeSession) RemoteAddr() string      { return "127.0.0.1" }

func TestAddMetricReplacesInPlace(t *testing.T) {
	r := NewRegistry()

	r.AddMetric(&MetricDescriptor{Name: "Foo", DataType: TypeString, Kind: HandlerBuiltin,
		Builtin: func(context.Context, []string) (string, Outcome) { return "first", OutcomeSuccess }})
	r.AddMetric(&MetricDescriptor{Name: "Bar", DataType: TypeString, Kind: HandlerBuiltin,
		Builtin: func(context.Context, []string) (string, Outcome) { return "bar", OutcomeSuccess }})
	r.AddMetric(&MetricDescriptor{Name: "foo", DataType: TypeString, Kind: HandlerBuiltin,
		Builtin: func(context.Context, []string) (string, Outcome) { return "second", OutcomeSuccess }})

	require.Len(t, r.metrics, 2, "case-insensitive re-registration must replace, not append")
	assert.Equal(t, "Foo", r.metrics[0].Name, "replacement preserves original registration order")

	sess := fakeSession{level: AccessRead}
	val, code := r.LookupMetric(context.Background(), sess, "Foo")
	require.Equal(t, wire.Success, code)
	assert.Equal(t, "second", val, "the most recently added descriptor wins")
}

func TestLookupMetricCountersIncrementOncePerQuery(t *testing.T) {
	r := NewRegistry()
	r.AddMetric(&MetricDescriptor{Name: "Stable", Kind: HandlerBuiltin,
		Builtin: func(context.Context, []string) (string, Outcome) { return "ok", OutcomeSuccess }})

	sess := fakeSession{level: AccessRead}

	_, code1 := r.LookupMetric(context.Background(), sess, "Stable")
	_, code2 := r.LookupMetric(context.Background(), sess, "Stable")

	require.Equal(t, wire.Success, code1)
	require.Equal(t, wire.Success, code2)

	processed, failed, unsupported := r.Counters.Snapshot()
	assert.Equal(t, uint64(2), processed)
	assert.Equal(t, uint64(0), failed)
	assert.Equal(t, uint64(0), unsupported)
}

func TestLookupMetricAccessDenied(t *testing.T) {
	r := NewRegistry()
	r.AddMetric(&MetricDescriptor{
		Name: "Secret", Kind: HandlerBuiltin,
		Access: func(s Session) bool { return s.AccessLevel().Has(AccessMaster) },
		Builtin: func(context.Context, []string) (string, Outcome) { return "top-secret", OutcomeSuccess },
	})

	_, code := r.LookupMetric(context.Background(), fakeSession{level: AccessRead}, "Secret")
	assert.Equal(t, wire.ErrAccessDenied, code)

	val, code := r.LookupMetric(context.Background(), fakeSession{level: AccessMaster}, "Secret")
	assert.Equal(t, wire.Success, code)
	assert.Equal(t, "top-secret", val)
}

func TestLookupMetricUnknownAfterAllTiersExhaust(t *testing.T) {
	r := NewRegistry()

	_, code := r.LookupMetric(context.Background(), fakeSession{level: AccessRead}, "NoSuchThing")
	assert.Equal(t, wire.ErrUnknownMetric, code)
}

type fakeProvider struct {
	value  string
	result Outcome
}

func (p fakeProvider) LookupMetric(context.Context, Query) (string, Outcome) {
	return p.value, p.result
}
func (p fakeProvider) LookupList(context.Context, Query) ([]string, Outcome) { return nil, OutcomeUnknown }
func (p fakeProvider) LookupTable(context.Context, Query) (*Table, Outcome)  { return nil, OutcomeUnknown }

func TestLookupMetricFallsThroughToProvider(t *testing.T) {
	r := NewRegistry()
	r.SetProviderTier(fakeProvider{value: "v", result: OutcomeSuccess})

	val, code := r.LookupMetric(context.Background(), fakeSession{level: AccessRead}, "k")
	require.Equal(t, wire.Success, code)
	assert.Equal(t, "v", val)
}

func TestPushMetricLastWriterWins(t *testing.T) {
	r := NewRegistry()
	r.AddPushMetric(&PushDescriptor{Name: "Custom.Push", DataType: TypeString})

	_, code := r.LookupMetric(context.Background(), fakeSession{level: AccessRead}, "Custom.Push")
	assert.Equal(t, wire.ErrNoSuchInstance, code, "no value pushed yet")

	require.True(t, r.PushValue("Custom.Push", "1"))
	require.True(t, r.PushValue("Custom.Push", "2"))

	val, code := r.LookupMetric(context.Background(), fakeSession{level: AccessRead}, "Custom.Push")
	require.Equal(t, wire.Success, code)
	assert.Equal(t, "2", val)
}
