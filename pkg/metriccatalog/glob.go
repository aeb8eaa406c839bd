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

import "strings"

// Query is a parsed metric/list/table invocation: a bare name, or a name
// with a parenthesized, comma-separated argument list (quotes allowed to
// embed commas).
type Query struct {
	Name string
	Args []string
	raw  string
}

// ParseQuery splits "NAME(arg1,arg2,...)" into name and argument list. A
// bare "NAME" yields zero arguments.
func ParseQuery(q string) Query {
	open := strings.IndexByte(q, '(')
	if open < 0 || !strings.HasSuffix(q, ")") {
		return Query{Name: q, raw: q}
	}

	name := q[:open]
	argStr := q[open+1 : len(q)-1]

	return Query{Name: name, Args: splitArgs(argStr), raw: q}
}

// splitArgs splits a comma-separated argument string, honoring double
// quotes so a quoted argument may embed a literal comma. Whitespace
// outside quotes is not significant.
func splitArgs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	var (
		args    []string
		cur     strings.Builder
		inQuote bool
	)

	flush := func() {
		args = append(args, strings.TrimSpace(cur.String()))
		cur.Reset()
	}

	for i := 0; i < len(s); i++ {
		c := s[i]

		switch {
		case c == '"':
			inQuote = !inQuote
		case c == ',' && !inQuote:
			flush()
		default:
			cur.WriteByte(c)
		}
	}

	flush()

	return args
}

// Arg returns the 1-based argument at index i, or "" if out of range —
// matching the spec's rule that missing arguments expand to empty.
func (q Query) Arg(i int) string {
	if i < 1 || i > len(q.Args) {
		return ""
	}

	return q.Args[i-1]
}

// matchName reports whether a registered descriptor name matches a
// query name, honoring the literal "(*)" wildcard marker: a descriptor
// named "Foo(*)" matches any query named "Foo" that carries a non-empty
// argument list; a descriptor with no wildcard marker matches only the
// exact (case-insensitive) query name with no arguments expected beyond
// what the handler itself interprets.
func matchName(descriptorName string, q Query) bool {
	const wildcard = "(*)"

	if strings.HasSuffix(descriptorName, wildcard) {
		base := descriptorName[:len(descriptorName)-len(wildcard)]
		if !strings.EqualFold(base, q.Name) {
			return false
		}

		return len(q.Args) > 0
	}

	return strings.EqualFold(descriptorName, q.Name)
}

// baseName strips a trailing "(*)" wildcard marker, used for the
// case-insensitive uniqueness key during registration.
func baseName(name string) string {
	const wildcard = "(*)"
	if strings.HasSuffix(name, wildcard) {
		return strings.ToLower(name[:len(name)-len(wildcard)])
	}

	return strings.ToLower(name)
}
