// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package queryproc runs the natural-language-to-SQL pipeline: schema
// context, agent generation, SQL extraction and normalization, trace
// parsing, and validated execution.
package queryproc

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/susquery/services/susquery/datatypes"
	"github.com/AleutianAI/susquery/services/susquery/safety"
	"github.com/AleutianAI/susquery/services/susquery/schema"
	"github.com/AleutianAI/susquery/services/susquery/traceparse"
)

// maxHistory bounds the in-memory query log backing Statistics.
const maxHistory = 100

// sqlNotFoundMarker is stored as the SQLQuery when no statement could be
// extracted from the agent trace.
const sqlNotFoundMarker = "SQL query not found in response"

// Agent generates an execution trace for an enhanced prompt. The trace is
// free-form text; the processor recovers structure from it.
type Agent interface {
	Run(ctx context.Context, prompt string) (string, error)
}

// Executor runs SQL against the dataset.
type Executor interface {
	Execute(ctx context.Context, query string) ([]datatypes.Row, error)
}

// SchemaProvider supplies the formatted schema context for prompts.
type SchemaProvider interface {
	Context(ctx context.Context) (*schema.Context, error)
}

// Statistics summarizes processed queries for status endpoints.
type Statistics struct {
	TotalQueries         int           `json:"total_queries"`
	SuccessfulQueries    int           `json:"successful_queries"`
	SuccessRate          float64       `json:"success_rate"`
	AverageExecutionTime time.Duration `json:"average_execution_time"`
	MostRecentQuery      string        `json:"most_recent_query,omitempty"`
}

// Processor orchestrates one question through the full pipeline.
//
// Thread Safety: Safe for concurrent use; the history log is locked
// independently of query execution.
type Processor struct {
	agent  Agent
	db     Executor
	schema SchemaProvider

	mu      sync.Mutex
	history []datatypes.QueryResult
}

// NewProcessor wires the pipeline from its three collaborators.
func NewProcessor(agent Agent, db Executor, sp SchemaProvider) *Processor {
	return &Processor{agent: agent, db: db, schema: sp}
}

// Process answers one natural-language question.
//
// Description:
//
//	Builds the schema-enhanced prompt, runs the agent, extracts and
//	normalizes the SQL, and parses structured rows out of the trace. When
//	normalization changed the statement, the corrected SQL is validated
//	and re-executed; its rows replace the parsed ones only on success.
//
//	Process never returns an error: failures come back as a QueryResult
//	with Success=false and the reason in ErrorMessage, so the
//	conversational layer can still phrase an answer.
func (p *Processor) Process(ctx context.Context, req datatypes.QueryRequest) datatypes.QueryResult {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "queryproc.Process")
	defer span.End()
	span.SetAttributes(attribute.Int("question_length", len(req.Question)))

	start := time.Now()

	schemaCtx, err := p.schema.Context(ctx)
	if err != nil {
		return p.finish(span, start, failure("", fmt.Sprintf("erro ao obter contexto do esquema: %v", err), nil))
	}

	prompt := enhancedPrompt(req.Question, schemaCtx.Formatted)

	trace, err := p.agent.Run(ctx, prompt)
	if err != nil {
		return p.finish(span, start, failure("", fmt.Sprintf("erro na geração da consulta: %v", err), nil))
	}

	extracted, found := traceparse.ExtractSQL(trace)
	sqlQuery := sqlNotFoundMarker
	normalized := ""
	if found {
		normalized = traceparse.NormalizeCityFilters(extracted)
		sqlQuery = normalized
	}

	rows, rowCount := traceparse.Parse(trace)

	metadata := map[string]any{
		"agent_response":      trace,
		"schema_context_used": true,
		"sql_found":           found,
	}

	// The agent executed the original statement itself. If normalization
	// changed it, the corrected statement is the one that matches the
	// stored data, so run it and prefer its rows.
	if found && normalized != extracted {
		corrected := p.ExecuteSQL(ctx, normalized)
		if corrected.Success {
			rows = corrected.Results
			rowCount = corrected.RowCount
			metadata["case_corrected"] = true
			caseCorrectionsTotal.Inc()
		} else {
			metadata["case_correction_failed"] = corrected.ErrorMessage
		}
	}

	result := datatypes.QueryResult{
		SQLQuery:      sqlQuery,
		Results:       rows,
		Success:       true,
		ExecutionTime: time.Since(start),
		RowCount:      rowCount,
		Metadata:      metadata,
	}
	return p.finish(span, start, result)
}

// ExecuteSQL validates and runs one SQL statement directly.
//
// Unsafe statements never reach the database; they come back as a failed
// result naming the blocking reasons.
func (p *Processor) ExecuteSQL(ctx context.Context, sql string) datatypes.QueryResult {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "queryproc.ExecuteSQL")
	defer span.End()

	start := time.Now()

	validation := safety.Validate(sql)
	if !validation.IsSafe {
		sqlBlockedTotal.Inc()
		span.SetStatus(codes.Error, "blocked")
		slog.Warn("sql statement blocked",
			"reasons", validation.BlockedReasons)
		return datatypes.QueryResult{
			SQLQuery:      sql,
			Success:       false,
			ExecutionTime: time.Since(start),
			ErrorMessage: fmt.Sprintf("%s: %s", datatypes.ErrUnsafeQuery,
				strings.Join(validation.BlockedReasons, ", ")),
			Metadata: map[string]any{"blocked_reasons": validation.BlockedReasons},
		}
	}

	rows, err := p.db.Execute(ctx, sql)
	if err != nil {
		span.SetStatus(codes.Error, "query failed")
		return datatypes.QueryResult{
			SQLQuery:      sql,
			Success:       false,
			ExecutionTime: time.Since(start),
			ErrorMessage:  fmt.Sprintf("erro na execução da consulta: %v", err),
		}
	}

	return datatypes.QueryResult{
		SQLQuery:      sql,
		Results:       rows,
		Success:       true,
		ExecutionTime: time.Since(start),
		RowCount:      len(rows),
		Metadata: map[string]any{
			"validation_warnings": validation.Warnings,
			"direct_execution":    true,
		},
	}
}

// Statistics summarizes the processed-query history.
func (p *Processor) Statistics() Statistics {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.history) == 0 {
		return Statistics{}
	}

	var successful int
	var total time.Duration
	for _, q := range p.history {
		if q.Success {
			successful++
		}
		total += q.ExecutionTime
	}

	return Statistics{
		TotalQueries:         len(p.history),
		SuccessfulQueries:    successful,
		SuccessRate:          float64(successful) / float64(len(p.history)) * 100,
		AverageExecutionTime: total / time.Duration(len(p.history)),
		MostRecentQuery:      p.history[len(p.history)-1].SQLQuery,
	}
}

// finish records the result in history and metrics, then returns it.
func (p *Processor) finish(span oteltrace.Span, start time.Time, result datatypes.QueryResult) datatypes.QueryResult {
	status := statusLabel(result.Success)
	queriesTotal.WithLabelValues(status).Inc()
	queryDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	if !result.Success {
		span.SetStatus(codes.Error, result.ErrorMessage)
	}

	p.mu.Lock()
	p.history = append(p.history, result)
	if len(p.history) > maxHistory {
		p.history = p.history[len(p.history)-maxHistory:]
	}
	p.mu.Unlock()

	return result
}

func failure(sql, msg string, metadata map[string]any) datatypes.QueryResult {
	return datatypes.QueryResult{
		SQLQuery:     sql,
		Success:      false,
		ErrorMessage: msg,
		Metadata:     metadata,
	}
}

// enhancedPrompt wraps the question with the schema context and the
// phrasing rules the dataset needs (city capitalization, SUS demographic
// codes).
func enhancedPrompt(question, schemaContext string) string {
	return fmt.Sprintf(`%s

Pergunta do usuário: %s

Por favor, gere e execute uma consulta SQL apropriada para responder esta pergunta.
Seja cuidadoso com nomes de colunas e tipos de dados.
Use as informações do contexto para gerar consultas precisas.

IMPORTANTE - Regras para nomes de cidades:
- Para nomes de cidades (CIDADE_RESIDENCIA_PACIENTE), use sempre a capitalização correta
- Exemplo: CIDADE_RESIDENCIA_PACIENTE = 'Porto Alegre' (não 'porto alegre')
- Se o usuário digitar uma cidade em minúscula, converta para a capitalização correta
- NUNCA use funções UPPER() ou LOWER() em nomes de cidades

IMPORTANTE - Regras para filtros demográficos:
- SEXO = 1 significa masculino/homem
- SEXO = 3 significa feminino/mulher
- MORTE = 1 significa que o paciente morreu
- MORTE = 0 significa que o paciente não morreu
- Quando perguntarem sobre "homens" use SEXO = 1
- Quando perguntarem sobre "mulheres" use SEXO = 3`, schemaContext, question)
}
