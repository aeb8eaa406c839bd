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
	"bufio"
	"bytes"
	"errors"
	"strconv"
	"strings"
)

var errEmptyTableOutput = errors.New("provider produced no table output")

// parseExternalTable implements §4.2's "external-table parsing": the
// first non-empty line is a header row of column names, every following
// non-empty line is a data row split the same way. Row count equals the
// number of non-empty body lines (§8 round-trip law).
func parseExternalTable(out []byte, spec TableSpec) (*parsedTable, error) {
	sep := spec.Separator
	if sep == 0 {
		sep = ','
	}

	var lines []string

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		lines = append(lines, line)
	}

	if len(lines) == 0 {
		return nil, errEmptyTableOutput
	}

	header := splitLine(lines[0], sep, spec.MergeSeparators, spec.DecodeEscapes)

	rows := make([][]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		rows = append(rows, splitLine(line, sep, spec.MergeSeparators, spec.DecodeEscapes))
	}

	return &parsedTable{columns: header, rows: rows}, nil
}

func splitLine(line string, sep byte, merge, decode bool) []string {
	raw := strings.Split(line, string(sep))

	fields := make([]string, 0, len(raw))

	for _, f := range raw {
		if merge && f == "" {
			continue
		}

		if decode {
			f = decodeTableEscapes(f)
		}

		fields = append(fields, f)
	}

	return fields
}

// decodeTableEscapes expands the two-character escapes the §3 external
// table definition recognizes: \n \r \s \t and the four-hex-digit
// \uNNNN form.
func decodeTableEscapes(s string) string {
	var b strings.Builder

	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i == len(s)-1 {
			b.WriteByte(s[i])
			continue
		}

		switch s[i+1] {
		case 'n':
			b.WriteByte('\n')
			i++
		case 'r':
			b.WriteByte('\r')
			i++
		case 's':
			b.WriteByte(' ')
			i++
		case 't':
			b.WriteByte('\t')
			i++
		case 'u':
			if i+5 < len(s) {
				if r, err := strconv.ParseUint(s[i+2:i+6], 16, 32); err == nil {
					b.WriteRune(rune(r))
					i += 5
					continue
				}
			}
			b.WriteByte(s[i])
		default:
			b.WriteByte(s[i])
		}
	}

	return b.String()
}

// columnDataType resolves a column's declared type from the per-column
// override map, falling back to the table's default type.
func columnDataType(spec TableSpec, column string) string {
	if spec.ColumnTypes != nil {
		if t, ok := spec.ColumnTypes[column]; ok {
			return t
		}
	}

	if spec.DefaultType != "" {
		return spec.DefaultType
	}

	return "string"
}

func isInstanceColumn(spec TableSpec, column string) bool {
	for _, c := range spec.InstanceColumns {
		if strings.EqualFold(c, column) {
			return true
		}
	}

	return false
}
