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
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// cityColumn is the one column in the dataset that stores title-cased city
// names. Models routinely wrap the literal in UPPER()/LOWER() or write it
// all-lowercase, none of which match the stored values.
const cityColumn = "CIDADE_RESIDENCIA_PACIENTE"

var (
	cityUpperRe  = regexp.MustCompile(`(?i)` + cityColumn + `\s*=\s*UPPER\s*\(\s*'([^']+)'\s*\)`)
	cityLowerRe  = regexp.MustCompile(`(?i)` + cityColumn + `\s*=\s*LOWER\s*\(\s*'([^']+)'\s*\)`)
	cityDirectRe = regexp.MustCompile(cityColumn + `\s*=\s*'([a-z][^']*?)'`)
)

// NormalizeCityFilters rewrites city-name equality filters to title case.
//
// Description:
//
//	Three rewrites, applied in order:
//	  col = UPPER('porto alegre')  -> col = 'Porto Alegre'
//	  col = LOWER('porto alegre')  -> col = 'Porto Alegre'
//	  col = 'porto alegre'         -> col = 'Porto Alegre'
//	The direct rewrite only fires when the literal is entirely lowercase;
//	already-correct and mixed-case literals are left untouched. Pure string
//	transform and idempotent: normalizing normalized output is a no-op.
//
// Inputs:
//
//	sql - A SQL statement, typically freshly extracted from an agent trace.
//
// Outputs:
//
//	string - The statement with city filters rewritten.
func NormalizeCityFilters(sql string) string {
	out := cityUpperRe.ReplaceAllStringFunc(sql, rewriteCityMatch(cityUpperRe))
	out = cityLowerRe.ReplaceAllStringFunc(out, rewriteCityMatch(cityLowerRe))
	out = cityDirectRe.ReplaceAllStringFunc(out, func(m string) string {
		literal := cityDirectRe.FindStringSubmatch(m)[1]
		if !isAllLower(literal) {
			return m
		}
		return fmt.Sprintf("%s = '%s'", cityColumn, titleCase(literal))
	})
	return out
}

// rewriteCityMatch builds the replacement for the UPPER/LOWER variants.
func rewriteCityMatch(re *regexp.Regexp) func(string) string {
	return func(m string) string {
		literal := re.FindStringSubmatch(m)[1]
		return fmt.Sprintf("%s = '%s'", cityColumn, titleCase(literal))
	}
}

// isAllLower reports whether every cased rune in s is lowercase.
func isAllLower(s string) bool {
	hasCased := false
	for _, r := range s {
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			return false
		}
		if unicode.IsLower(r) {
			hasCased = true
		}
	}
	return hasCased
}

// titleCase uppercases the first letter of every run of letters. Matches
// how the stored city names are cased ("Porto Alegre", "Ijuí").
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
		} else {
			b.WriteRune(r)
			prevLetter = false
		}
	}
	return b.String()
}
