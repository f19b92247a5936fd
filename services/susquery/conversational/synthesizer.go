// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package conversational turns structured query results into friendly
// Portuguese answers.
//
// The synthesizer is the pipeline's last line of defense: it never returns
// an error. Retryable LLM failures are retried with exponential backoff;
// anything that still fails degrades to a deterministic fallback message
// that carries the raw results, so the caller always has something to show.
package conversational

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/susquery/services/susquery/datatypes"
	"github.com/AleutianAI/susquery/services/susquery/prompts"
	"github.com/AleutianAI/susquery/services/susquery/session"
)

// promptResultLimit caps how many rows are rendered into the chat prompt.
const promptResultLimit = 15

// fallbackResultLimit caps rows shown in the no-LLM fallback message.
const fallbackResultLimit = 3

// ChatClient is the conversational LLM capability.
type ChatClient interface {
	Chat(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error)
	Available(ctx context.Context) bool
	Model() string
}

// Config tunes the synthesizer.
type Config struct {
	// Temperature for conversational generation. Higher than the SQL
	// path; phrasing benefits from some variety.
	Temperature float64

	// MaxTokens bounds each generated answer.
	MaxTokens int

	// MaxRetries is the total number of chat attempts for retryable
	// failures.
	MaxRetries int

	// BaseDelay is the first backoff step; attempt n sleeps
	// BaseDelay * 2^n.
	BaseDelay time.Duration

	// EnableMemory turns per-session context enrichment on.
	EnableMemory bool
}

// DefaultConfig mirrors a local single-user deployment.
func DefaultConfig() Config {
	return Config{
		Temperature:  0.7,
		MaxTokens:    1000,
		MaxRetries:   3,
		BaseDelay:    time.Second,
		EnableMemory: true,
	}
}

// Input is everything the synthesizer needs about one processed query.
type Input struct {
	UserQuery    string
	SQLQuery     string
	Results      []datatypes.Row
	SessionID    string
	ErrorMessage string
}

// Synthesizer generates conversational responses.
//
// Thread Safety: Safe for concurrent use.
type Synthesizer struct {
	chat     ChatClient
	builder  *prompts.Builder
	sessions *session.Store
	cfg      Config
	sleep    func(time.Duration)
}

// NewSynthesizer wires the synthesizer from its collaborators.
func NewSynthesizer(chat ChatClient, builder *prompts.Builder, sessions *session.Store, cfg Config) *Synthesizer {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultConfig().BaseDelay
	}
	return &Synthesizer{
		chat:     chat,
		builder:  builder,
		sessions: sessions,
		cfg:      cfg,
		sleep:    time.Sleep,
	}
}

// Synthesize produces the user-facing answer for one processed query.
//
// Description:
//
//	Classifies the question, renders the specialized prompt enriched with
//	recent session context, and asks the chat model. Retryable LLM errors
//	back off exponentially; exhausted or non-retryable failures produce
//	the deterministic fallback response. Never returns an error.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) datatypes.ConversationalResponse {
	start := time.Now()

	hasError := in.ErrorMessage != ""
	pt := prompts.Classify(in.UserQuery, hasError)

	var snapshot session.Context
	if s.cfg.EnableMemory && in.SessionID != "" {
		snapshot = s.sessions.Snapshot(in.SessionID)
	}

	message, err := s.generate(ctx, pt, in, snapshot)
	if err != nil {
		if hasError {
			// The LLM could not phrase the error either; fall back to the
			// static explanation rather than the generic outage message.
			message = basicErrorMessage(in.ErrorMessage)
		} else {
			slog.Warn("conversational generation failed, using fallback",
				"error", err, "session_id", in.SessionID)
			return s.fallback(in, err, start)
		}
	}

	suggestions := suggest(pt, in.Results)

	if s.cfg.EnableMemory && in.SessionID != "" {
		s.sessions.Update(in.SessionID, in.UserQuery, message, summarizeResults(in.Results))
	}

	return datatypes.ConversationalResponse{
		Message:        message,
		ResponseType:   pt,
		Confidence:     confidence(in.Results, hasError),
		ProcessingTime: time.Since(start),
		ContextUsed:    s.cfg.EnableMemory,
		Suggestions:    suggestions,
		Metadata: map[string]any{
			"session_id":       in.SessionID,
			"prompt_type":      string(pt),
			"sql_query_length": len(in.SQLQuery),
			"results_count":    len(in.Results),
			"has_error":        hasError,
			"llm_model":        s.chat.Model(),
		},
	}
}

// generate renders the prompt and calls the chat model with retry.
func (s *Synthesizer) generate(ctx context.Context, pt datatypes.PromptType, in Input, snapshot session.Context) (string, error) {
	user, err := s.builder.User(pt, prompts.BuildInput{
		UserQuery:    in.UserQuery,
		SQLQuery:     in.SQLQuery,
		Results:      prompts.FormatResults(in.Results, promptResultLimit),
		ErrorMessage: in.ErrorMessage,
	})
	if err != nil {
		return "", err
	}

	if enrichment := renderSessionContext(snapshot); enrichment != "" {
		user += "\n\nCONTEXTO DA CONVERSA:\n" + enrichment
	}

	system := s.builder.System(pt)

	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		message, err := s.chat.Chat(ctx, system, user, s.cfg.Temperature, s.cfg.MaxTokens)
		if err == nil {
			return message, nil
		}
		lastErr = err

		le, ok := datatypes.AsLLMError(err)
		if !ok || !le.Retryable() || attempt == s.cfg.MaxRetries-1 {
			break
		}
		delay := s.cfg.BaseDelay * (1 << attempt)
		slog.Warn("chat attempt failed, retrying",
			"attempt", attempt+1, "delay", delay, "error", err)
		s.sleep(delay)
	}
	return "", lastErr
}

// renderSessionContext flattens the last interactions for prompt inclusion.
func renderSessionContext(snapshot session.Context) string {
	if len(snapshot.History) == 0 {
		return ""
	}

	history := snapshot.History
	if len(history) > 3 {
		history = history[len(history)-3:]
	}

	var b strings.Builder
	for _, h := range history {
		fmt.Fprintf(&b, "- Pergunta anterior: %s (%s)\n", h.Query, h.ResultsSummary)
	}
	return strings.TrimRight(b.String(), "\n")
}

// fallback builds the deterministic response used when the LLM is out.
func (s *Synthesizer) fallback(in Input, cause error, start time.Time) datatypes.ConversationalResponse {
	message := fmt.Sprintf(`Consegui processar sua consulta, mas o sistema de resposta conversacional está temporariamente indisponível.

**Sua pergunta:** %s

**Resultados obtidos:**
%s

**Status:** %v

Os dados foram processados com sucesso. Você pode tentar novamente em alguns instantes para obter uma resposta mais detalhada e contextualizada.`,
		in.UserQuery, formatResultsSimple(in.Results), cause)

	return datatypes.ConversationalResponse{
		Message:        message,
		ResponseType:   datatypes.PromptBasicResponse,
		Confidence:     0.4,
		ProcessingTime: time.Since(start),
		ContextUsed:    false,
		Suggestions:    []string{"Tente novamente em alguns instantes"},
		Metadata: map[string]any{
			"fallback_used":     true,
			"error":             cause.Error(),
			"results_available": in.Results != nil,
		},
	}
}

// basicErrorMessage is the static error explanation used when the LLM
// cannot phrase one.
func basicErrorMessage(errorMessage string) string {
	return fmt.Sprintf(`Desculpe, encontrei um problema ao processar sua consulta.

**Erro encontrado:** %s

**Sugestões:**
- Verifique se os nomes das tabelas e colunas estão corretos
- Confirme se os dados solicitados existem na base SUS
- Tente reformular sua pergunta de forma mais específica

Posso ajudá-lo a refinar sua consulta se necessário.`, errorMessage)
}

// confidence scores how much trust the answer deserves, from result shape
// alone.
func confidence(results []datatypes.Row, hasError bool) float64 {
	switch {
	case hasError:
		return 0.3
	case results == nil:
		return 0.5
	case len(results) == 0:
		return 0.6
	case len(results) < 5:
		return 0.8
	default:
		return 0.9
	}
}

// summarizeResults builds the short result description stored in session
// history.
func summarizeResults(results []datatypes.Row) string {
	switch {
	case results == nil:
		return "Nenhum resultado"
	case len(results) == 0:
		return "Consulta sem resultados"
	case len(results) == 1:
		text := fmt.Sprintf("%v", results[0])
		if len(text) > 50 {
			text = text[:50]
		}
		return fmt.Sprintf("1 resultado: %s...", text)
	default:
		return fmt.Sprintf("%d resultados encontrados", len(results))
	}
}

// formatResultsSimple renders a short bulleted result list for the
// fallback message.
func formatResultsSimple(results []datatypes.Row) string {
	if results == nil {
		return "Nenhum resultado encontrado"
	}
	if len(results) == 0 {
		return "Consulta executada, mas não retornou dados"
	}

	shown := results
	if len(results) > fallbackResultLimit {
		shown = results[:fallbackResultLimit]
	}
	lines := make([]string, 0, len(shown)+1)
	for _, row := range shown {
		lines = append(lines, fmt.Sprintf("• %v", row))
	}
	if len(results) > fallbackResultLimit {
		lines = append(lines, fmt.Sprintf("... e mais %d resultados", len(results)-fallbackResultLimit))
	}
	return strings.Join(lines, "\n")
}
