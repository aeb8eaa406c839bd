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

package problems

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterThenActive(t *testing.T) {
	r := NewRegistry()
	r.Register("localdb-open", SeverityMajor, "disk full")

	active := r.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "localdb-open", active[0].Key)
	assert.Equal(t, SeverityMajor, active[0].Severity)
	assert.True(t, r.IsActive("localdb-open"))
}

func TestClearRemovesProblem(t *testing.T) {
	r := NewRegistry()
	r.Register("localdb-open", SeverityMajor, "disk full")
	r.Clear("localdb-open")

	assert.False(t, r.IsActive("localdb-open"))
	assert.Empty(t, r.Active())
}

func TestClearUnknownKeyIsNoop(t *testing.T) {
	r := NewRegistry()
	assert.NotPanics(t, func() { r.Clear("never-registered") })
}

func TestRegisterAgainPreservesSince(t *testing.T) {
	r := NewRegistry()
	r.Register("provider-disk-failing", SeverityMinor, "first failure")

	first := r.Active()[0].Since

	r.Register("provider-disk-failing", SeverityMajor, "still failing")

	second := r.Active()
	require.Len(t, second, 1)
	assert.Equal(t, first, second[0].Since)
	assert.Equal(t, SeverityMajor, second[0].Severity)
	assert.Equal(t, "still failing", second[0].Detail)
}

func TestActiveIsSortedByKey(t *testing.T) {
	r := NewRegistry()
	r.Register("zeta", SeverityMinor, "")
	r.Register("alpha", SeverityMinor, "")
	r.Register("mid", SeverityMinor, "")

	active := r.Active()
	require.Len(t, active, 3)
	assert.Equal(t, "alpha", active[0].Key)
	assert.Equal(t, "mid", active[1].Key)
	assert.Equal(t, "zeta", active[2].Key)
}
