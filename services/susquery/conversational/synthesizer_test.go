// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package conversational

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/susquery/services/susquery/datatypes"
	"github.com/AleutianAI/susquery/services/susquery/prompts"
	"github.com/AleutianAI/susquery/services/susquery/session"
)

// mockChat scripts one error per call; a nil entry (or running out of
// entries) means success.
type mockChat struct {
	reply      string
	errs       []error
	calls      int
	lastSystem string
	lastUser   string
}

func (m *mockChat) Chat(_ context.Context, system, user string, _ float64, _ int) (string, error) {
	m.lastSystem = system
	m.lastUser = user
	idx := m.calls
	m.calls++
	if idx < len(m.errs) && m.errs[idx] != nil {
		return "", m.errs[idx]
	}
	return m.reply, nil
}

func (m *mockChat) Available(context.Context) bool { return true }

func (m *mockChat) Model() string { return "llama3.2:latest" }

func newTestSynthesizer(t *testing.T, chat ChatClient) (*Synthesizer, *session.Store) {
	t.Helper()
	builder, err := prompts.NewBuilder()
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	store := session.NewStore()
	cfg := DefaultConfig()
	cfg.BaseDelay = time.Millisecond
	s := NewSynthesizer(chat, builder, store, cfg)
	s.sleep = func(time.Duration) {}
	return s, store
}

func TestSynthesize_Success(t *testing.T) {
	chat := &mockChat{reply: "Foram registradas 138 mortes de mulheres."}
	s, store := newTestSynthesizer(t, chat)

	rows := make([]datatypes.Row, 6)
	for i := range rows {
		rows[i] = datatypes.Row{"n": int64(i)}
	}
	resp := s.Synthesize(context.Background(), Input{
		UserQuery: "Quantas mulheres morreram?",
		SQLQuery:  "SELECT COUNT(*) FROM sus_data",
		Results:   rows,
		SessionID: "s1",
	})

	if resp.Message != chat.reply {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.Confidence != 0.9 {
		t.Errorf("confidence = %v", resp.Confidence)
	}
	if !resp.ContextUsed {
		t.Error("memory is enabled, context_used must be true")
	}
	if resp.Metadata["llm_model"] != "llama3.2:latest" {
		t.Errorf("metadata = %v", resp.Metadata)
	}
	if resp.Metadata["results_count"] != 6 {
		t.Errorf("results_count = %v", resp.Metadata["results_count"])
	}
	if len(resp.Suggestions) != 3 {
		t.Errorf("suggestions = %v", resp.Suggestions)
	}

	// The interaction must be remembered for the next turn.
	snap := store.Snapshot("s1")
	if len(snap.History) != 1 || snap.History[0].Query != "Quantas mulheres morreram?" {
		t.Errorf("history = %+v", snap.History)
	}
	if snap.History[0].ResultsSummary != "6 resultados encontrados" {
		t.Errorf("summary = %q", snap.History[0].ResultsSummary)
	}
}

func TestSynthesize_RetriesRetryableErrors(t *testing.T) {
	chat := &mockChat{
		reply: "resposta",
		errs: []error{
			datatypes.NewLLMError(datatypes.LLMTimeout, "sem resposta", nil),
			nil,
		},
	}
	s, _ := newTestSynthesizer(t, chat)

	resp := s.Synthesize(context.Background(), Input{UserQuery: "q", SessionID: "s1"})
	if chat.calls != 2 {
		t.Fatalf("calls = %d", chat.calls)
	}
	if resp.Message != "resposta" {
		t.Errorf("message = %q", resp.Message)
	}
	if _, ok := resp.Metadata["fallback_used"]; ok {
		t.Error("successful retry must not be a fallback")
	}
}

func TestSynthesize_UnavailableGoesStraightToFallback(t *testing.T) {
	chat := &mockChat{
		errs: []error{
			datatypes.NewLLMError(datatypes.LLMUnavailable, "serviço fora do ar", nil),
			datatypes.NewLLMError(datatypes.LLMUnavailable, "serviço fora do ar", nil),
			datatypes.NewLLMError(datatypes.LLMUnavailable, "serviço fora do ar", nil),
		},
	}
	s, _ := newTestSynthesizer(t, chat)

	rows := []datatypes.Row{
		{"cidade": "Porto Alegre", "n": int64(10)},
		{"cidade": "Canoas", "n": int64(7)},
		{"cidade": "Pelotas", "n": int64(5)},
		{"cidade": "Ijuí", "n": int64(2)},
	}
	resp := s.Synthesize(context.Background(), Input{
		UserQuery: "Quais cidades?",
		Results:   rows,
		SessionID: "s1",
	})

	if chat.calls != 1 {
		t.Fatalf("unavailable errors must not be retried, calls = %d", chat.calls)
	}
	if resp.Confidence != 0.4 {
		t.Errorf("confidence = %v", resp.Confidence)
	}
	if resp.ContextUsed {
		t.Error("fallback responses carry no context")
	}
	if len(resp.Suggestions) != 1 || resp.Suggestions[0] != "Tente novamente em alguns instantes" {
		t.Errorf("suggestions = %v", resp.Suggestions)
	}
	if resp.Metadata["fallback_used"] != true || resp.Metadata["results_available"] != true {
		t.Errorf("metadata = %v", resp.Metadata)
	}
	if !strings.Contains(resp.Message, "**Sua pergunta:** Quais cidades?") {
		t.Errorf("message = %q", resp.Message)
	}
	if !strings.Contains(resp.Message, "... e mais 1 resultados") {
		t.Errorf("fallback must truncate the result list, message = %q", resp.Message)
	}
}

func TestSynthesize_RetryExhaustionFallsBack(t *testing.T) {
	comm := datatypes.NewLLMError(datatypes.LLMCommunication, "conexão recusada", nil)
	chat := &mockChat{errs: []error{comm, comm, comm}}
	s, _ := newTestSynthesizer(t, chat)

	resp := s.Synthesize(context.Background(), Input{UserQuery: "q", SessionID: "s1"})
	if chat.calls != 3 {
		t.Fatalf("calls = %d", chat.calls)
	}
	if resp.Metadata["fallback_used"] != true {
		t.Errorf("metadata = %v", resp.Metadata)
	}
}

func TestSynthesize_ErrorPathUsesStaticTemplateWhenChatFails(t *testing.T) {
	comm := datatypes.NewLLMError(datatypes.LLMCommunication, "conexão recusada", nil)
	chat := &mockChat{errs: []error{comm, comm, comm}}
	s, _ := newTestSynthesizer(t, chat)

	resp := s.Synthesize(context.Background(), Input{
		UserQuery:    "Quantas internações?",
		SessionID:    "s1",
		ErrorMessage: "no such column: INTERNACOES",
	})

	if resp.ResponseType != datatypes.PromptErrorExplanation {
		t.Errorf("response type = %q", resp.ResponseType)
	}
	if resp.Confidence != 0.3 {
		t.Errorf("confidence = %v", resp.Confidence)
	}
	if !strings.Contains(resp.Message, "Desculpe, encontrei um problema ao processar sua consulta.") {
		t.Errorf("message = %q", resp.Message)
	}
	if !strings.Contains(resp.Message, "**Erro encontrado:** no such column: INTERNACOES") {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestSynthesize_SessionContextReachesPrompt(t *testing.T) {
	chat := &mockChat{reply: "ok"}
	s, store := newTestSynthesizer(t, chat)

	store.Update("s1", "Mortes em Porto Alegre?", "Foram 10.", "1 resultado: ...")

	s.Synthesize(context.Background(), Input{UserQuery: "E em Canoas?", SessionID: "s1"})

	if !strings.Contains(chat.lastUser, "CONTEXTO DA CONVERSA") {
		t.Error("prompt must carry the conversation context section")
	}
	if !strings.Contains(chat.lastUser, "Mortes em Porto Alegre?") {
		t.Errorf("prompt missing previous query, got %q", chat.lastUser)
	}
}

func TestSynthesize_MemoryDisabledSkipsSessions(t *testing.T) {
	chat := &mockChat{reply: "ok"}
	builder, err := prompts.NewBuilder()
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	store := session.NewStore()
	cfg := DefaultConfig()
	cfg.EnableMemory = false
	s := NewSynthesizer(chat, builder, store, cfg)

	resp := s.Synthesize(context.Background(), Input{UserQuery: "q", SessionID: "s1"})
	if resp.ContextUsed {
		t.Error("context_used must be false with memory disabled")
	}
	if store.Len() != 0 {
		t.Error("no session must be created with memory disabled")
	}
}

func TestConfidence(t *testing.T) {
	cases := []struct {
		name     string
		results  []datatypes.Row
		hasError bool
		want     float64
	}{
		{"error", []datatypes.Row{{"n": 1}}, true, 0.3},
		{"nil results", nil, false, 0.5},
		{"empty results", []datatypes.Row{}, false, 0.6},
		{"few results", make([]datatypes.Row, 4), false, 0.8},
		{"many results", make([]datatypes.Row, 5), false, 0.9},
	}
	for _, tc := range cases {
		if got := confidence(tc.results, tc.hasError); got != tc.want {
			t.Errorf("%s: confidence = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSuggest_IndicatorsAugmentShortLists(t *testing.T) {
	rows := []datatypes.Row{{"ano": int64(2019), "cidade": "Ijuí"}}

	// Trend analysis has no canned suggestions, so the indicator scans fill in.
	got := suggest(datatypes.PromptTrendAnalysis, rows)
	want := []string{
		"Posso criar análise de tendências temporais",
		"Posso gerar análise de distribuição geográfica",
	}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("suggestions = %v", got)
	}

	// Typed lists already hold three entries and stay capped.
	if got := suggest(datatypes.PromptBasicResponse, rows); len(got) != maxSuggestions {
		t.Errorf("suggestions = %v", got)
	}
}

func TestSummarizeResults(t *testing.T) {
	if got := summarizeResults(nil); got != "Nenhum resultado" {
		t.Errorf("nil = %q", got)
	}
	if got := summarizeResults([]datatypes.Row{}); got != "Consulta sem resultados" {
		t.Errorf("empty = %q", got)
	}
	if got := summarizeResults(make([]datatypes.Row, 7)); got != "7 resultados encontrados" {
		t.Errorf("many = %q", got)
	}
	one := summarizeResults([]datatypes.Row{{"n": int64(3)}})
	if !strings.HasPrefix(one, "1 resultado: ") || !strings.HasSuffix(one, "...") {
		t.Errorf("single = %q", one)
	}
}
