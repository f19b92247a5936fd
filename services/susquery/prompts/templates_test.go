// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package prompts

import (
	"strings"
	"testing"

	"github.com/AleutianAI/susquery/services/susquery/datatypes"
)

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder()
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	return b
}

func TestBuilder_SystemIncludesKnowledge(t *testing.T) {
	b := newTestBuilder(t)

	system := b.System(datatypes.PromptBasicResponse)
	if !strings.Contains(system, "Sistema Único de Saúde") {
		t.Error("base persona missing from system prompt")
	}
	if !strings.Contains(system, "TERMINOLOGIA SUS") {
		t.Error("terminologia_sus knowledge area missing")
	}
	if !strings.Contains(system, "ESTRUTURA DOS DADOS SUS") {
		t.Error("estrutura_dados knowledge area missing")
	}
}

func TestBuilder_GeographicKnowledge(t *testing.T) {
	b := newTestBuilder(t)

	system := b.System(datatypes.PromptGeographicAnalysis)
	if !strings.Contains(system, "ORGANIZAÇÃO GEOGRÁFICA SUS") {
		t.Error("regioes_brasil knowledge area missing")
	}
	if !strings.Contains(system, "ANÁLISE GEOGRÁFICA") {
		t.Error("geographic specialization missing")
	}
}

func TestBuilder_UserTemplateRendering(t *testing.T) {
	b := newTestBuilder(t)

	user, err := b.User(datatypes.PromptBasicResponse, BuildInput{
		UserQuery: "Quantas internações em 2019?",
		SQLQuery:  "SELECT COUNT(*) FROM sus_data",
		Results:   "1. map[result:42]",
	})
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	for _, want := range []string{"Quantas internações em 2019?", "SELECT COUNT(*) FROM sus_data", "map[result:42]"} {
		if !strings.Contains(user, want) {
			t.Errorf("rendered prompt missing %q", want)
		}
	}
}

func TestBuilder_ErrorTemplateCarriesErrorMessage(t *testing.T) {
	b := newTestBuilder(t)

	user, err := b.User(datatypes.PromptErrorExplanation, BuildInput{
		UserQuery:    "Qual a média?",
		SQLQuery:     "SELECT AVG(x) FROM nope",
		ErrorMessage: "no such table: nope",
	})
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	if !strings.Contains(user, "no such table: nope") {
		t.Error("error message missing from rendered prompt")
	}
}

func TestBuilder_UnknownTypeFallsBackToBasic(t *testing.T) {
	b := newTestBuilder(t)

	system := b.System(datatypes.PromptType("made_up"))
	if !strings.Contains(system, "Sistema Único de Saúde") {
		t.Error("unknown type should fall back to the basic template")
	}
}

func TestBuilder_Available(t *testing.T) {
	b := newTestBuilder(t)

	available := b.Available()
	if len(available) != 7 {
		t.Fatalf("expected 7 templates, got %d", len(available))
	}
	info, ok := available["statistical_analysis"]
	if !ok {
		t.Fatal("statistical_analysis missing")
	}
	if info.ResponseFormat != "analytical" {
		t.Errorf("response format = %q", info.ResponseFormat)
	}
}

func TestFormatResults(t *testing.T) {
	if got := FormatResults(nil, 15); got != "Nenhum resultado encontrado." {
		t.Errorf("nil rows: %q", got)
	}
	if got := FormatResults([]datatypes.Row{}, 15); got != "Consulta executada com sucesso, mas não retornou dados." {
		t.Errorf("empty rows: %q", got)
	}

	rows := make([]datatypes.Row, 20)
	for i := range rows {
		rows[i] = datatypes.Row{"n": i}
	}
	out := FormatResults(rows, 15)
	if !strings.Contains(out, "... (mostrando 15 de 20 resultados)") {
		t.Errorf("truncation note missing:\n%s", out)
	}
	if strings.Count(out, "\n") != 15 {
		t.Errorf("expected 15 rows plus note, got:\n%s", out)
	}

	short := FormatResults(rows[:2], 15)
	if strings.Contains(short, "mostrando") {
		t.Errorf("no truncation note expected for short lists:\n%s", short)
	}
	if !strings.HasPrefix(short, "1. ") {
		t.Errorf("rows must be numbered from 1:\n%s", short)
	}
}
