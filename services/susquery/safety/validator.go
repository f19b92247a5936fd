// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package safety screens LLM-generated SQL before it can reach the database.
//
// The validator is deliberately conservative: the SQL arrives from a language
// model, not from a trusted developer, so anything that smells like mutation
// or administrative access is blocked outright. Suspicious-but-not-dangerous
// constructs (comments, chained statements, non-SELECT entry) only produce
// warnings.
package safety

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AleutianAI/susquery/services/susquery/datatypes"
)

// dangerousKeywords block execution when found anywhere in the uppercased
// statement. Substring matching is intentional: a model that smuggles
// "DROP" inside an identifier has already left the safe path.
var dangerousKeywords = []string{
	"DROP", "DELETE", "UPDATE", "INSERT", "ALTER", "CREATE", "TRUNCATE",
	"EXEC", "EXECUTE", "XP_", "SP_", "BULK", "OPENROWSET",
}

// suspiciousPatterns raise warnings without blocking.
var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)--`),
	regexp.MustCompile(`(?i)/\*.*\*/`),
	regexp.MustCompile(`(?i);.*DROP`),
	regexp.MustCompile(`(?i);.*DELETE`),
}

// maxWarnings is the warning count at which a statement stops being valid
// even though it is still safe to execute.
const maxWarnings = 3

// Validate inspects a SQL string for dangerous keywords and suspicious
// patterns.
//
// Description:
//
//	Pure function of the input string; no side effects. IsSafe is false iff
//	at least one blocking keyword matched. IsValid additionally requires
//	fewer than three warnings, so a statement that is technically safe but
//	riddled with oddities is still flagged for the caller.
//
// Inputs:
//
//	sql - The SQL text to inspect. May be empty.
//
// Outputs:
//
//	datatypes.ValidationResult - Warnings and blocking reasons in match order.
func Validate(sql string) datatypes.ValidationResult {
	var warnings, blocked []string

	upper := strings.ToUpper(sql)
	for _, kw := range dangerousKeywords {
		if strings.Contains(upper, kw) {
			blocked = append(blocked, fmt.Sprintf("Palavra-chave perigosa detectada: %s", kw))
		}
	}

	for _, pat := range suspiciousPatterns {
		if pat.MatchString(sql) {
			warnings = append(warnings, fmt.Sprintf("Padrão suspeito detectado: %s", pat.String()))
		}
	}

	if !strings.HasPrefix(strings.TrimSpace(upper), "SELECT") {
		warnings = append(warnings, "Consulta não é uma operação SELECT")
	}

	isSafe := len(blocked) == 0
	return datatypes.ValidationResult{
		IsValid:        isSafe && len(warnings) < maxWarnings,
		IsSafe:         isSafe,
		Warnings:       warnings,
		BlockedReasons: blocked,
	}
}
