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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQueryArguments(t *testing.T) {
	q := ParseQuery(`NAME(a1,a2,a3)`)

	require.Equal(t, "NAME", q.Name)
	assert.Equal(t, "a1", q.Arg(1))
	assert.Equal(t, "a2", q.Arg(2))
	assert.Equal(t, "a3", q.Arg(3))
	assert.Equal(t, "", q.Arg(4))
	assert.Equal(t, "", q.Arg(0))
}

func TestParseQueryQuotedCommas(t *testing.T) {
	q := ParseQuery(`NAME("a,b",c)`)

	assert.Equal(t, "a,b", q.Arg(1))
	assert.Equal(t, "c", q.Arg(2))
}

func TestParseQueryBareName(t *testing.T) {
	q := ParseQuery("Agent.Uptime")

	assert.Equal(t, "Agent.Uptime", q.Name)
	assert.Empty(t, q.Args)
}

func TestMatchNameWildcard(t *testing.T) {
	assert.True(t, matchName("Foo(*)", ParseQuery("Foo(1)")))
	assert.False(t, matchName("Foo(*)", ParseQuery("Foo")))
	assert.False(t, matchName("Foo(*)", ParseQuery("Bar(1)")))
}

func TestMatchNameExactCaseInsensitive(t *testing.T) {
	assert.True(t, matchName("Agent.Uptime", ParseQuery("agent.uptime")))
	assert.False(t, matchName("Agent.Uptime", ParseQuery("Agent.Uptime2")))
}
