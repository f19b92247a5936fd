// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package traceparse

import (
	"regexp"
	"strings"
)

// sqlPatterns are tried in order; the first match wins. Fenced blocks are
// the most reliable signal, the agent's "Action Input:" tool-call line the
// next, and a bare SELECT line the last resort.
var sqlPatterns = []*regexp.Regexp{
	regexp.MustCompile("(?is)```sql\\n(.*?)\\n```"),
	regexp.MustCompile("(?is)```\\n(SELECT.*?)\\n```"),
	regexp.MustCompile(`(?is)Action Input:\s*(SELECT.*?)(?:\n|$)`),
	regexp.MustCompile(`(?is)(SELECT.*?)(?:\n|$)`),
}

// ExtractSQL pulls the SQL statement out of a raw agent trace.
//
// Returns the trimmed statement and true on a match, or ("", false) when the
// trace carries no recognizable SQL.
func ExtractSQL(trace string) (string, bool) {
	for _, pat := range sqlPatterns {
		if m := pat.FindStringSubmatch(trace); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}
