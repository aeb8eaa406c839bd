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
	"github.com/stretchr/testify/require"
)

func TestEvalXPath(t *testing.T) {
	doc := []byte(`<root><status>ok</status></root>`)

	val, err := evalStructured(doc, StructuredSpec{Format: FormatXML, Query: "/root/status"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
}

func TestEvalJSONPath(t *testing.T) {
	doc := []byte(`{"status":{"code":"ok"}}`)

	val, err := evalStructured(doc, StructuredSpec{Format: FormatJSON, Query: "status.code"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
}

func TestEvalRegex(t *testing.T) {
	doc := []byte("temperature: 42C")

	val, err := evalStructured(doc, StructuredSpec{Format: FormatRegex, Query: `temperature: (\d+)C`}, nil)
	require.NoError(t, err)
	assert.Equal(t, "42", val)
}

func TestEvalStructuredParameterized(t *testing.T) {
	doc := []byte(`{"disks":{"sda":{"free":"100"},"sdb":{"free":"200"}}}`)

	val, err := evalStructured(doc, StructuredSpec{
		Format: FormatJSON, Query: "disks.$1.free", Parameterized: true,
	}, []string{"sdb"})
	require.NoError(t, err)
	assert.Equal(t, "200", val)
}

func TestSubstitutePositional(t *testing.T) {
	assert.Equal(t, "a-1-b", substitutePositional("a-$1-b", []string{"1"}))
	assert.Equal(t, "trailing", substitutePositional("trailing$", nil))
	assert.Equal(t, "", substitutePositional("$1", nil))
}

func TestEvalRegexNoMatch(t *testing.T) {
	_, err := evalStructured([]byte("nothing here"), StructuredSpec{Format: FormatRegex, Query: `x(\d+)`}, nil)
	assert.ErrorIs(t, err, errStructuredNoMatch)
}
