// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package traceparse recovers structured results from the free-form text an
// SQL-generation agent emits.
//
// Agent traces interleave reasoning, tool-call syntax and a final answer,
// with highly variable phrasing. The parser is an ordered cascade of
// extraction strategies, from most specific (an explicit SQL tuple literal)
// to most generic (raw text passthrough). The first strategy that matches
// wins, so a structured numeric or tabular answer is never discarded in
// favor of a vaguer prose summary that happens to be present as well.
//
// Each strategy is a pure function returning an optional match; Parse
// composes them. Parse never fails: an unparseable trace degrades to a
// single passthrough row with row count zero.
package traceparse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/AleutianAI/susquery/services/susquery/datatypes"
)

// Response-type markers carried on the synthetic summary row. The
// conversational synthesizer keys off these to decide how much structure
// the answer has.
const (
	ResponseTypeComplex     = "complex_query"
	ResponseTypeSimple      = "simple_query"
	ResponseTypeObservation = "observation_query"
	ResponseTypeFallback    = "fallback_query"
)

const finalAnswerMarker = "Final Answer:"

var (
	// [(42,)] - a single-value SQL result literal.
	tupleLiteralRe = regexp.MustCompile(`\[\((\d+),\)\]`)

	// "3. Porto Alegre - 120" - one line of an enumerated ranking. \p{L}
	// rather than \w so accented Portuguese city names match in full.
	enumeratedRe = regexp.MustCompile(`\d+\. ([\p{L}\d_\s]+) - (\d+)`)

	// "are Uruguaiana, Ijuí, and Bagé." - entity clause in a prose ranking.
	entityClauseRe = regexp.MustCompile(`are ([^.]+)\.`)

	// Separators inside the entity clause: commas, optionally followed by "and".
	entitySplitRe = regexp.MustCompile(`,\s*(?:and\s+)?`)

	// [('Uruguaiana', 20), ('Ijuí', 18)] - a bracketed tuple list.
	tupleListRe = regexp.MustCompile(`\[(\([^)]+\)(?:,\s*\([^)]+\))*)\]`)

	// ('Uruguaiana', 20) - one (name, count) pair inside a tuple list.
	nameCountRe = regexp.MustCompile(`\('([^']+)',\s*(\d+)\)`)

	integerRe = regexp.MustCompile(`\d+`)

	finalAnswerPhraseRe = regexp.MustCompile(`(?i)final answer[^0-9]*(\d+)`)
	resultWasRe         = regexp.MustCompile(`(?i)result was (\d+)`)
)

// parsed is the optional result of one extraction strategy.
type parsed struct {
	rows  []datatypes.Row
	count int
}

// strategy inspects the full trace and reports whether it matched.
type strategy func(trace string) (parsed, bool)

// Parse extracts structured rows and a row count from a raw agent trace.
//
// Description:
//
//	Runs the strategy cascade in precedence order and returns the first
//	match. The terminal fallback always matches, so Parse is total: for any
//	input it returns at least one row.
//
//	For scalar answers the returned count is the scalar value itself, not
//	the number of rows - downstream consumers treat it as "the answer",
//	mirroring how single-value aggregates read.
//
// Inputs:
//
//	trace - Raw agent output. May be empty.
//
// Outputs:
//
//	[]datatypes.Row - Extracted rows, possibly ending in a summary row.
//	int             - Row count (or scalar value, see above).
func Parse(trace string) ([]datatypes.Row, int) {
	strategies := []strategy{
		matchTupleLiteral,
		matchFinalAnswerBlock,
		matchEnumeratedLines,
		matchBareScalar,
		matchObservation,
	}
	for _, s := range strategies {
		if p, ok := s(trace); ok {
			return p.rows, p.count
		}
	}
	return []datatypes.Row{{
		"final_answer_text": strings.TrimSpace(trace),
		"response_type":     ResponseTypeFallback,
	}}, 0
}

// matchTupleLiteral handles the "[(N,)]" result literal embedded anywhere in
// the trace. Most specific strategy; always wins when present.
func matchTupleLiteral(trace string) (parsed, bool) {
	m := tupleLiteralRe.FindStringSubmatch(trace)
	if m == nil {
		return parsed{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return parsed{}, false
	}
	return parsed{rows: []datatypes.Row{{"result": n}}, count: n}, true
}

// matchFinalAnswerBlock handles an explicit "Final Answer:" marker. Within
// the block, three sub-strategies apply in order: prose ranking paired with
// a tuple list from the full trace, an enumerated "N. Name - Count" list,
// and finally the last integer as a scalar.
func matchFinalAnswerBlock(trace string) (parsed, bool) {
	idx := strings.Index(trace, finalAnswerMarker)
	if idx < 0 {
		return parsed{}, false
	}
	answer := strings.TrimSpace(trace[idx+len(finalAnswerMarker):])

	if p, ok := matchProseRanking(answer, trace); ok {
		return p, true
	}
	if pairs := enumeratedRe.FindAllStringSubmatch(answer, -1); len(pairs) > 0 {
		return rankedFromPairs(pairs, answer), true
	}
	if nums := integerRe.FindAllString(answer, -1); len(nums) > 0 {
		n, err := strconv.Atoi(nums[len(nums)-1])
		if err == nil {
			return scalarResult(n, answer), true
		}
	}
	return parsed{}, false
}

// matchProseRanking handles answers of the shape "The top N cities ... are
// X, Y, and Z." The prose names only gate the match; the authoritative
// (name, count) pairs come from the bracketed tuple list elsewhere in the
// trace, paired positionally by tuple order.
func matchProseRanking(answer, trace string) (parsed, bool) {
	lower := strings.ToLower(answer)
	if !strings.Contains(lower, "top") || !strings.Contains(lower, "cities") {
		return parsed{}, false
	}
	clause := entityClauseRe.FindStringSubmatch(answer)
	if clause == nil {
		return parsed{}, false
	}
	names := splitEntities(clause[1])
	if len(names) == 0 {
		return parsed{}, false
	}
	list := tupleListRe.FindStringSubmatch(trace)
	if list == nil {
		return parsed{}, false
	}
	pairs := nameCountRe.FindAllStringSubmatch(list[1], -1)
	if len(pairs) == 0 {
		return parsed{}, false
	}
	return rankedFromNameCounts(pairs, answer), true
}

// matchEnumeratedLines handles traces without a "Final Answer:" marker that
// still carry an enumerated ranking across multiple lines.
func matchEnumeratedLines(trace string) (parsed, bool) {
	trimmed := strings.TrimSpace(trace)
	lines := strings.Split(trimmed, "\n")
	if len(lines) <= 1 {
		return parsed{}, false
	}
	var all [][]string
	for _, line := range lines {
		all = append(all, enumeratedRe.FindAllStringSubmatch(line, -1)...)
	}
	if len(all) == 0 {
		return parsed{}, false
	}
	return rankedFromPairs(all, trimmed), true
}

// matchBareScalar is the generic numeric fallback: last integer anywhere in
// the trace, then "final answer <N>" and "result was <N>" phrasings, then a
// lone numeric first line.
func matchBareScalar(trace string) (parsed, bool) {
	trimmed := strings.TrimSpace(trace)

	if nums := integerRe.FindAllString(trace, -1); len(nums) > 0 {
		if n, err := strconv.Atoi(nums[len(nums)-1]); err == nil {
			return scalarResult(n, trimmed), true
		}
	}
	if m := finalAnswerPhraseRe.FindStringSubmatch(trace); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return scalarResult(n, trimmed), true
		}
	}
	if m := resultWasRe.FindStringSubmatch(trace); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return scalarResult(n, trimmed), true
		}
	}
	firstLine := strings.TrimSpace(strings.SplitN(trimmed, "\n", 2)[0])
	if firstLine != "" {
		if n, err := strconv.Atoi(firstLine); err == nil {
			return scalarResult(n, trimmed), true
		}
	}
	return parsed{}, false
}

// matchObservation falls back to the first integer after an "Observation:"
// marker. Unlike the other numeric strategies this takes the first integer,
// not the last: observations lead with the query result and trail off into
// commentary.
func matchObservation(trace string) (parsed, bool) {
	idx := strings.Index(trace, "Observation:")
	if idx < 0 {
		return parsed{}, false
	}
	section := trace[idx:]
	m := integerRe.FindString(section)
	if m == "" {
		return parsed{}, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return parsed{}, false
	}
	return parsed{
		rows: []datatypes.Row{
			{"result": n},
			{"final_answer_text": strings.TrimSpace(trace), "response_type": ResponseTypeObservation},
		},
		count: n,
	}, true
}

// =============================================================================
// Row Construction Helpers
// =============================================================================

// splitEntities breaks "Uruguaiana, Ijuí, and Bagé" into trimmed names.
func splitEntities(clause string) []string {
	parts := entitySplitRe.Split(clause, -1)
	var names []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names
}

// rankedFromPairs builds ranked rows from enumeratedRe submatches
// (groups: name, count) plus the trailing summary row.
func rankedFromPairs(pairs [][]string, answerText string) parsed {
	rows := make([]datatypes.Row, 0, len(pairs)+1)
	for i, m := range pairs {
		name := strings.TrimSpace(m[1])
		count, _ := strconv.Atoi(m[2])
		rows = append(rows, rankedRow(i+1, name, count))
	}
	rows = append(rows, summaryRow(answerText, len(pairs)))
	return parsed{rows: rows, count: len(pairs)}
}

// rankedFromNameCounts builds ranked rows from nameCountRe submatches
// (groups: name, count) plus the trailing summary row.
func rankedFromNameCounts(pairs [][]string, answerText string) parsed {
	rows := make([]datatypes.Row, 0, len(pairs)+1)
	for i, m := range pairs {
		name := strings.TrimSpace(m[1])
		count, _ := strconv.Atoi(m[2])
		rows = append(rows, rankedRow(i+1, name, count))
	}
	rows = append(rows, summaryRow(answerText, len(pairs)))
	return parsed{rows: rows, count: len(pairs)}
}

func rankedRow(rank int, name string, count int) datatypes.Row {
	return datatypes.Row{
		"rank":      rank,
		"city":      name,
		"count":     count,
		"full_text": strconv.Itoa(rank) + ". " + name + " - " + strconv.Itoa(count),
	}
}

func summaryRow(answerText string, total int) datatypes.Row {
	return datatypes.Row{
		"final_answer_text": answerText,
		"response_type":     ResponseTypeComplex,
		"total_results":     total,
	}
}

func scalarResult(n int, answerText string) parsed {
	return parsed{
		rows: []datatypes.Row{
			{"result": n},
			{"final_answer_text": answerText, "response_type": ResponseTypeSimple},
		},
		count: n,
	}
}
