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
	"strconv"
	"strings"
)

// substitutePositional implements §4.7's substitution rule: "$<digit>"
// becomes the 1-based invocation argument, a trailing "$" is dropped,
// "$$" is not special (the leading "$" is consumed and the following
// character emitted as-is), and a missing argument expands to "".
//
// This is the same rule pkg/provider applies to structured-query
// placeholders; duplicated here rather than imported since the source
// there is unexported and the two packages have no other reason to
// depend on each other.
func substitutePositional(template string, args []string) string {
	var b strings.Builder

	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '$' {
			b.WriteByte(c)
			continue
		}

		if i == len(template)-1 {
			break
		}

		next := template[i+1]
		if next < '1' || next > '9' {
			b.WriteByte(next)
			i++
			continue
		}

		idx, _ := strconv.Atoi(string(next))
		if idx-1 < len(args) {
			b.WriteString(args[idx-1])
		}

		i++
	}

	return b.String()
}
