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

package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstitutePositionalReplacesDigits(t *testing.T) {
	got := substitutePositional("echo $1 and $2", []string{"foo", "bar"})
	assert.Equal(t, "echo foo and bar", got)
}

func TestSubstitutePositionalMissingArgIsEmpty(t *testing.T) {
	got := substitutePositional("echo $1 $3", []string{"foo"})
	assert.Equal(t, "echo foo ", got)
}

func TestSubstitutePositionalTrailingDollarDropped(t *testing.T) {
	got := substitutePositional("echo foo$", nil)
	assert.Equal(t, "echo foo", got)
}

func TestSubstitutePositionalDoubleDollarNotSpecial(t *testing.T) {
	got := substitutePositional("cost: $$5", nil)
	assert.Equal(t, "cost: $5", got)
}

func TestSubstitutePositionalOnlyDigitsOneThroughNine(t *testing.T) {
	got := substitutePositional("$0 stays literal-ish", []string{"x"})
	// '0' is not in '1'..'9' so the '$' is consumed and '0' emitted as-is.
	assert.Equal(t, "0 stays literal-ish", got)
}
