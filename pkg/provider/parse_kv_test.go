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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseKeyValue(t *testing.T) {
	out := []byte("k=v\nfoo = bar \nmalformed-line\nempty=\n")

	result := parseKeyValue(out)

	assert.Equal(t, "v", result["k"])
	assert.Equal(t, "bar", result["foo"])
	assert.Equal(t, "", result["empty"])
	_, hasMalformed := result["malformed-line"]
	assert.False(t, hasMalformed)
}

func TestParseLinesSkipsEmpty(t *testing.T) {
	out := []byte("a\n\nb\nc\n")

	assert.Equal(t, []string{"a", "b", "c"}, parseLines(out))
}
