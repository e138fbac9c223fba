// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import "strings"

// stripFences removes markdown code fences some models wrap around their
// JSON output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// repairJSON attempts to fix the JSON defects receipt models actually
// produce: trailing commas before a closing brace or bracket, and keys
// missing their opening quote (e.g. `, category":` for `, "category":`).
func repairJSON(s string) string {
	s = dropTrailingCommas(s)
	return requoteKeys(s)
}

func dropTrailingCommas(s string) string {
	in := []rune(s)
	out := make([]rune, 0, len(in))
	for i := 0; i < len(in); i++ {
		if in[i] == ',' {
			j := i + 1
			for j < len(in) && (in[j] == ' ' || in[j] == '\n' || in[j] == '\t') {
				j++
			}
			if j < len(in) && (in[j] == '}' || in[j] == ']') {
				continue // swallow the comma, keep the whitespace
			}
		}
		out = append(out, in[i])
	}
	return string(out)
}

func requoteKeys(s string) string {
	in := []rune(s)
	out := make([]rune, 0, len(in)+16)

	i := 0
	for i < len(in) {
		ch := in[i]
		out = append(out, ch)
		i++
		if ch != '{' && ch != ',' {
			continue
		}

		for i < len(in) && (in[i] == ' ' || in[i] == '\n' || in[i] == '\t') {
			out = append(out, in[i])
			i++
		}

		// A key starting with a letter instead of a quote lost its
		// opening quote if it runs into `":`.
		if i < len(in) && in[i] != '"' && isKeyRune(in[i]) {
			start := i
			for i < len(in) && isKeyRune(in[i]) {
				i++
			}
			if i+1 < len(in) && in[i] == '"' && in[i+1] == ':' {
				out = append(out, '"')
			}
			out = append(out, in[start:i]...)
		}
	}
	return string(out)
}

func isKeyRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
