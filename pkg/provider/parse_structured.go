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
	"bytes"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"github.com/tidwall/gjson"
)

var (
	errStructuredNoMatch   = errors.New("structured query produced no match")
	errStructuredBadRegex  = errors.New("structured query is not a valid regular expression")
	errStructuredMalformed = errors.New("cached document could not be parsed for this format")
)

// evalStructured evaluates spec.Query against doc according to
// spec.Format, substituting $1, $2, ... in the query from args when the
// metric is parameterized (§4.2: "substitute the query's argument
// placeholders from the original request").
func evalStructured(doc []byte, spec StructuredSpec, args []string) (string, error) {
	query := spec.Query
	if spec.Parameterized {
		query = substitutePositional(query, args)
	}

	switch spec.Format {
	case FormatXML:
		return evalXPath(doc, query)
	case FormatJSON:
		return evalJSONPath(doc, query)
	case FormatRegex:
		return evalRegex(doc, query)
	default:
		return "", errStructuredMalformed
	}
}

func evalXPath(doc []byte, query string) (string, error) {
	root, err := xmlquery.Parse(bytes.NewReader(doc))
	if err != nil {
		return "", errStructuredMalformed
	}

	expr, err := xpath.Compile(query)
	if err != nil {
		return "", err
	}

	node := xmlquery.QuerySelector(root, expr)
	if node == nil {
		return "", errStructuredNoMatch
	}

	return strings.TrimSpace(node.InnerText()), nil
}

func evalJSONPath(doc []byte, query string) (string, error) {
	if !gjson.ValidBytes(doc) {
		return "", errStructuredMalformed
	}

	result := gjson.GetBytes(doc, query)
	if !result.Exists() {
		return "", errStructuredNoMatch
	}

	return result.String(), nil
}

// evalRegex treats query as a regex with at least one capturing group;
// the first submatch is the value (a bare "$1" convention, matching the
// argument-substitution placeholders used elsewhere in this component).
func evalRegex(doc []byte, query string) (string, error) {
	re, err := regexp.Compile(query)
	if err != nil {
		return "", errStructuredBadRegex
	}

	m := re.FindSubmatch(doc)
	if m == nil {
		return "", errStructuredNoMatch
	}

	if len(m) > 1 {
		return string(m[1]), nil
	}

	return string(m[0]), nil
}

// substitutePositional implements the §4.7 substitution rule reused here
// for structured-query argument placeholders: "$<digit>" becomes the
// 1-based argument, a trailing "$" is dropped, "$$" is not special.
func substitutePositional(template string, args []string) string {
	var b strings.Builder

	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '$' {
			b.WriteByte(c)
			continue
		}

		if i == len(template)-1 {
			// trailing '$' dropped
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
