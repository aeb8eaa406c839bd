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

package subagent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextBackoffGrowsByFactor(t *testing.T) {
	d := backoffSeed
	d = nextBackoff(d)
	assert.Equal(t, 15*time.Second, d)

	d = nextBackoff(d)
	assert.Equal(t, 22500*time.Millisecond, d)
}

func TestNextBackoffCapsAt300s(t *testing.T) {
	d := 250 * time.Second

	for i := 0; i < 10; i++ {
		d = nextBackoff(d)
	}

	assert.Equal(t, backoffCap, d)
}

func TestRawQuery(t *testing.T) {
	assert.Equal(t, "Foo", rawQuery("Foo", nil))
	assert.Equal(t, "Foo(a,b)", rawQuery("Foo", []string{"a", "b"}))
}
