// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package safety

import (
	"strings"
	"testing"
)

func TestValidate_BlockedKeywords(t *testing.T) {
	cases := []struct {
		name    string
		sql     string
		keyword string
	}{
		{"drop table", "DROP TABLE sus_data", "DROP"},
		{"lowercase delete", "delete from sus_data where MORTE = 1", "DELETE"},
		{"keyword mid-statement", "SELECT 1; UPDATE sus_data SET MORTE = 0", "UPDATE"},
		{"insert", "INSERT INTO sus_data VALUES (1)", "INSERT"},
		{"exec proc", "exec sp_who", "EXEC"},
		{"truncate", "TRUNCATE TABLE sus_data", "TRUNCATE"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Validate(tc.sql)
			if res.IsSafe {
				t.Fatalf("expected unsafe for %q", tc.sql)
			}
			if res.IsValid {
				t.Errorf("unsafe query must not be valid")
			}
			found := false
			for _, reason := range res.BlockedReasons {
				if strings.Contains(reason, tc.keyword) {
					found = true
				}
			}
			if !found {
				t.Errorf("keyword %s not named in blocked reasons %v", tc.keyword, res.BlockedReasons)
			}
		})
	}
}

func TestValidate_CleanSelect(t *testing.T) {
	res := Validate("SELECT COUNT(*) FROM sus_data WHERE CIDADE_RESIDENCIA_PACIENTE = 'Porto Alegre' AND MORTE = 1")
	if !res.IsSafe {
		t.Fatalf("clean SELECT reported unsafe: %v", res.BlockedReasons)
	}
	if !res.IsValid {
		t.Fatalf("clean SELECT reported invalid: %v", res.Warnings)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}
}

func TestValidate_Warnings(t *testing.T) {
	// Comment + non-SELECT start: two warnings, still safe and valid.
	res := Validate("WITH x AS (SELECT 1) SELECT * FROM x -- comment")
	if !res.IsSafe {
		t.Fatalf("expected safe, got blocked: %v", res.BlockedReasons)
	}
	if len(res.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", res.Warnings)
	}
	if !res.IsValid {
		t.Errorf("2 warnings should still be valid")
	}
}

func TestValidate_TooManyWarningsInvalidates(t *testing.T) {
	// Inline comment, block comment and non-SELECT start: three warnings.
	res := Validate("/* hi */ PRAGMA table_info(sus_data) --x")
	if !res.IsSafe {
		t.Fatalf("expected safe: %v", res.BlockedReasons)
	}
	if len(res.Warnings) < 3 {
		t.Fatalf("expected >=3 warnings, got %v", res.Warnings)
	}
	if res.IsValid {
		t.Errorf("3 warnings must invalidate the statement")
	}
}

func TestValidate_EmptyString(t *testing.T) {
	res := Validate("")
	if !res.IsSafe {
		t.Fatalf("empty string should be safe")
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected only the non-SELECT warning, got %v", res.Warnings)
	}
	if !res.IsValid {
		t.Errorf("a single warning should not invalidate")
	}
}
