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

import "testing"

func TestExtractSQL_FencedSQLBlock(t *testing.T) {
	trace := "Here is the query:\n```sql\nSELECT COUNT(*) FROM sus_data\n```\nDone."
	sql, ok := ExtractSQL(trace)
	if !ok {
		t.Fatal("expected a match")
	}
	if sql != "SELECT COUNT(*) FROM sus_data" {
		t.Errorf("sql = %q", sql)
	}
}

func TestExtractSQL_PlainFencedBlock(t *testing.T) {
	trace := "```\nSELECT IDADE FROM sus_data WHERE MORTE = 1\n```"
	sql, ok := ExtractSQL(trace)
	if !ok {
		t.Fatal("expected a match")
	}
	if sql != "SELECT IDADE FROM sus_data WHERE MORTE = 1" {
		t.Errorf("sql = %q", sql)
	}
}

func TestExtractSQL_ActionInputLine(t *testing.T) {
	trace := "Thought: run the query\nAction: sql_db_query\nAction Input: SELECT COUNT(*) FROM sus_data WHERE SEXO = 3\nObservation: [(138,)]"
	sql, ok := ExtractSQL(trace)
	if !ok {
		t.Fatal("expected a match")
	}
	if sql != "SELECT COUNT(*) FROM sus_data WHERE SEXO = 3" {
		t.Errorf("sql = %q", sql)
	}
}

func TestExtractSQL_BareSelectLine(t *testing.T) {
	trace := "The statement SELECT VAL_TOT FROM sus_data LIMIT 5\nwas executed."
	sql, ok := ExtractSQL(trace)
	if !ok {
		t.Fatal("expected a match")
	}
	if sql != "SELECT VAL_TOT FROM sus_data LIMIT 5" {
		t.Errorf("sql = %q", sql)
	}
}

func TestExtractSQL_NoSQL(t *testing.T) {
	if sql, ok := ExtractSQL("I do not know how to answer this."); ok {
		t.Fatalf("expected no match, got %q", sql)
	}
}

func TestExtractSQL_FencedWinsOverActionInput(t *testing.T) {
	trace := "Action Input: SELECT 1\n```sql\nSELECT 2\n```"
	sql, _ := ExtractSQL(trace)
	if sql != "SELECT 2" {
		t.Errorf("fenced block must take precedence, got %q", sql)
	}
}
