// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package susquery assembles the natural-language SUS query service: the
// SQL pipeline, the conversational synthesizer, and the HTTP surface that
// exposes them.
package susquery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/susquery/services/susquery/conversational"
	"github.com/AleutianAI/susquery/services/susquery/datatypes"
	"github.com/AleutianAI/susquery/services/susquery/llm"
	"github.com/AleutianAI/susquery/services/susquery/prompts"
	"github.com/AleutianAI/susquery/services/susquery/queryproc"
	"github.com/AleutianAI/susquery/services/susquery/schema"
	"github.com/AleutianAI/susquery/services/susquery/session"
	badgerstore "github.com/AleutianAI/susquery/services/susquery/storage/badger"
	"github.com/AleutianAI/susquery/services/susquery/storage/sqlite"
)

// Database is the storage capability the service needs beyond query
// execution.
type Database interface {
	Execute(ctx context.Context, query string) ([]datatypes.Row, error)
	Ping(ctx context.Context) error
	Close() error
}

// SchemaSource supplies and invalidates the formatted schema context.
type SchemaSource interface {
	Context(ctx context.Context) (*schema.Context, error)
	Invalidate()
}

// ServiceConfig holds the assembly-time configuration.
type ServiceConfig struct {
	// DatabasePath is the SQLite file holding the SUS dataset.
	DatabasePath string

	// Table is the dataset table introspected for schema context.
	Table string

	// CachePath is the Badger directory for the persisted schema context.
	// Empty disables persistence; the context is then rebuilt per process.
	CachePath string

	// OllamaBaseURL is the Ollama endpoint shared by both models.
	OllamaBaseURL string

	// AgentModel generates SQL; it runs at temperature zero.
	AgentModel string

	// ChatModel phrases the conversational answers.
	ChatModel string

	// LLMTimeout bounds individual model calls.
	LLMTimeout time.Duration

	// MaxQuestionLength rejects oversized questions at the HTTP edge.
	MaxQuestionLength int

	// Conversational tunes the response synthesizer.
	Conversational conversational.Config
}

// DefaultServiceConfig returns the local single-node defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		DatabasePath:      "sus_database.db",
		Table:             schema.DefaultTable,
		OllamaBaseURL:     "http://localhost:11434",
		AgentModel:        "llama3",
		ChatModel:         "llama3.2:latest",
		LLMTimeout:        120 * time.Second,
		MaxQuestionLength: 1000,
		Conversational:    conversational.DefaultConfig(),
	}
}

// Service is the assembled query service.
//
// Thread Safety: Safe for concurrent use; every collaborator manages its
// own locking.
type Service struct {
	cfg          ServiceConfig
	db           Database
	cache        *badgerstore.Store
	schemaSource SchemaSource
	processor    *queryproc.Processor
	synthesizer  *conversational.Synthesizer
	sessions     *session.Store
	builder      *prompts.Builder
	chat         conversational.ChatClient
	started      time.Time
}

// agentClient adapts the completion client to the processor's Agent
// interface. SQL generation runs at temperature zero.
type agentClient struct {
	client *llm.Client
}

func (a agentClient) Run(ctx context.Context, prompt string) (string, error) {
	return a.client.Generate(ctx, prompt, 0)
}

// NewService opens the storage layers, connects both models, and wires the
// pipeline.
//
// Description:
//
//	The SQLite dataset is mandatory. The Badger cache is best-effort: an
//	unopenable cache directory logs a warning and the service runs without
//	schema persistence. Model endpoints are not probed here; availability
//	is checked per request and surfaced through Status.
func NewService(cfg ServiceConfig) (*Service, error) {
	db, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("abrir banco de dados: %w", err)
	}

	var cache *badgerstore.Store
	if cfg.CachePath != "" {
		cache, err = badgerstore.Open(cfg.CachePath)
		if err != nil {
			slog.Warn("schema cache unavailable, running without persistence",
				"path", cfg.CachePath, "error", err)
			cache = nil
		}
	}

	introspector, err := schema.NewIntrospector(db, cache, cfg.Table)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("criar introspector de esquema: %w", err)
	}

	agentLLM, err := llm.NewClient(llm.Config{
		BaseURL: cfg.OllamaBaseURL,
		Model:   cfg.AgentModel,
		Timeout: cfg.LLMTimeout,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("criar cliente do agente: %w", err)
	}

	chatLLM, err := llm.NewClient(llm.Config{
		BaseURL: cfg.OllamaBaseURL,
		Model:   cfg.ChatModel,
		Timeout: cfg.LLMTimeout,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("criar cliente conversacional: %w", err)
	}

	builder, err := prompts.NewBuilder()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("carregar templates de prompt: %w", err)
	}

	sessions := session.NewStore()
	processor := queryproc.NewProcessor(agentClient{client: agentLLM}, db, introspector)
	synthesizer := conversational.NewSynthesizer(chatLLM, builder, sessions, cfg.Conversational)

	return newService(cfg, db, cache, introspector, processor, synthesizer, sessions, builder, chatLLM), nil
}

// newService wires a Service from pre-built collaborators.
func newService(
	cfg ServiceConfig,
	db Database,
	cache *badgerstore.Store,
	schemaSource SchemaSource,
	processor *queryproc.Processor,
	synthesizer *conversational.Synthesizer,
	sessions *session.Store,
	builder *prompts.Builder,
	chat conversational.ChatClient,
) *Service {
	return &Service{
		cfg:          cfg,
		db:           db,
		cache:        cache,
		schemaSource: schemaSource,
		processor:    processor,
		synthesizer:  synthesizer,
		sessions:     sessions,
		builder:      builder,
		chat:         chat,
		started:      time.Now(),
	}
}

// ProcessQuery answers one natural-language question with structured
// results only.
func (s *Service) ProcessQuery(ctx context.Context, req datatypes.QueryRequest) datatypes.QueryResult {
	return s.processor.Process(ctx, req)
}

// ProcessConversational answers one question and phrases the result as a
// conversational message.
//
// The structured result is always returned alongside the message so
// clients can render tables next to the prose.
func (s *Service) ProcessConversational(ctx context.Context, req datatypes.QueryRequest) (datatypes.QueryResult, datatypes.ConversationalResponse) {
	result := s.processor.Process(ctx, req)

	in := conversational.Input{
		UserQuery: req.Question,
		SQLQuery:  result.SQLQuery,
		SessionID: req.SessionID,
	}
	if result.Success {
		in.Results = result.Results
	} else {
		in.ErrorMessage = result.ErrorMessage
	}

	return result, s.synthesizer.Synthesize(ctx, in)
}

// ExecuteSQL validates and runs one SQL statement directly.
func (s *Service) ExecuteSQL(ctx context.Context, sql string) datatypes.QueryResult {
	return s.processor.ExecuteSQL(ctx, sql)
}

// SchemaContext returns the formatted schema description.
func (s *Service) SchemaContext(ctx context.Context) (*schema.Context, error) {
	return s.schemaSource.Context(ctx)
}

// InvalidateSchema drops the cached schema context; the next request
// rebuilds it from the database.
func (s *Service) InvalidateSchema() {
	s.schemaSource.Invalidate()
}

// Statistics summarizes the processed-query history.
func (s *Service) Statistics() queryproc.Statistics {
	return s.processor.Statistics()
}

// SessionSummary returns the stored summary for one conversation session.
func (s *Service) SessionSummary(sessionID string) (session.Summary, bool) {
	return s.sessions.Summary(sessionID)
}

// ClearSession drops one conversation session. Returns false for unknown
// ids.
func (s *Service) ClearSession(sessionID string) bool {
	return s.sessions.Clear(sessionID)
}

// MaxQuestionLength exposes the configured input bound to the HTTP layer.
func (s *Service) MaxQuestionLength() int {
	return s.cfg.MaxQuestionLength
}

// ServiceStatus reports component health for the health endpoint.
type ServiceStatus struct {
	Status    string         `json:"status"`
	Services  map[string]any `json:"services"`
	Uptime    string         `json:"uptime"`
	Timestamp time.Time      `json:"timestamp"`
}

// Status probes the collaborators and aggregates their health.
//
// "healthy" requires the database to answer a ping; an unreachable chat
// model degrades the status but does not fail it, since the pipeline
// still returns structured results.
func (s *Service) Status(ctx context.Context) ServiceStatus {
	services := map[string]any{
		"llm_model":        s.chat.Model(),
		"active_sessions":  s.sessions.Len(),
		"prompt_templates": len(s.builder.Available()),
		"statistics":       s.processor.Statistics(),
	}

	status := "healthy"
	if err := s.db.Ping(ctx); err != nil {
		services["database"] = fmt.Sprintf("error: %v", err)
		status = "unhealthy"
	} else {
		services["database"] = "connected"
	}

	if s.chat.Available(ctx) {
		services["llm_chat"] = "available"
	} else {
		services["llm_chat"] = "unavailable"
		if status == "healthy" {
			status = "degraded"
		}
	}

	return ServiceStatus{
		Status:    status,
		Services:  services,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Timestamp: time.Now(),
	}
}

// Ready reports whether the service can serve queries right now.
func (s *Service) Ready(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close releases the storage layers.
func (s *Service) Close() error {
	var firstErr error
	if err := s.db.Close(); err != nil {
		firstErr = err
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
