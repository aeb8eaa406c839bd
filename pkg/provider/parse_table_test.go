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

func TestParseExternalTableRowCount(t *testing.T) {
	out := []byte("name,value\nfoo,1\nbar,2\nbaz,3\n")

	tbl, err := parseExternalTable(out, TableSpec{Separator: ','})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "value"}, tbl.columns)
	assert.Len(t, tbl.rows, 3)
	assert.Equal(t, []string{"bar", "2"}, tbl.rows[1])
}

func TestParseExternalTableEmptyIsError(t *testing.T) {
	_, err := parseExternalTable([]byte(""), TableSpec{Separator: ','})
	assert.ErrorIs(t, err, errEmptyTableOutput)
}

func TestParseExternalTableMergeSeparators(t *testing.T) {
	out := []byte("a,b,c\n1,,2\n")

	tbl, err := parseExternalTable(out, TableSpec{Separator: ',', MergeSeparators: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, tbl.rows[0])
}

func TestDecodeTableEscapes(t *testing.T) {
	assert.Equal(t, "a\nb", decodeTableEscapes(`a\nb`))
	assert.Equal(t, "a\tb", decodeTableEscapes(`a\tb`))
	assert.Equal(t, "a b", decodeTableEscapes(`a\sb`))
	assert.Equal(t, "aéb", decodeTableEscapes(`aéb`))
}

func TestColumnDataTypeFallback(t *testing.T) {
	spec := TableSpec{ColumnTypes: map[string]string{"count": "int64"}, DefaultType: "string"}

	assert.Equal(t, "int64", columnDataType(spec, "count"))
	assert.Equal(t, "string", columnDataType(spec, "name"))
}

func TestIsInstanceColumn(t *testing.T) {
	spec := TableSpec{InstanceColumns: []string{"Name"}}

	assert.True(t, isInstanceColumn(spec, "name"))
	assert.False(t, isInstanceColumn(spec, "value"))
}
