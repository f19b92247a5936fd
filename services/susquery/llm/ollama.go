// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm adapts a local Ollama endpoint to the interfaces the pipeline
// consumes. All failures surface as the tagged LLMError taxonomy so call
// sites can decide retry behavior without string matching.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/AleutianAI/susquery/services/susquery/datatypes"
)

// availabilityTimeout bounds the /api/tags probe.
const availabilityTimeout = 5 * time.Second

// Config holds the Ollama connection settings.
type Config struct {
	// BaseURL is the Ollama server address, e.g. "http://localhost:11434".
	BaseURL string

	// Model is the model name passed on every request.
	Model string

	// Timeout bounds each generation call.
	Timeout time.Duration

	// RequestsPerMinute caps the request rate to the model. Zero disables
	// limiting.
	RequestsPerMinute int
}

// DefaultConfig returns the settings for a local Ollama install.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:11434",
		Model:   "llama3.2:latest",
		Timeout: 60 * time.Second,
	}
}

// Client talks to one Ollama model.
//
// Thread Safety: Client is safe for concurrent use.
type Client struct {
	llm        *ollama.LLM
	cfg        Config
	httpClient *http.Client
	limiter    *Limiter
}

// NewClient builds a client for the configured model.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model must be specified")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	client, err := ollama.New(
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(cfg.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ollama client for %s: %w", cfg.Model, err)
	}

	slog.Info("ollama client created", "model", cfg.Model, "base_url", cfg.BaseURL)
	return &Client{
		llm:        client,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: availabilityTimeout},
		limiter:    NewLimiter(cfg.RequestsPerMinute),
	}, nil
}

// allow consults the rate limiter. Rate-limit rejections come back as
// retryable communication errors so callers back off and retry.
func (c *Client) allow() error {
	ok, wait := c.limiter.Allow()
	if ok {
		return nil
	}
	return datatypes.NewLLMError(datatypes.LLMCommunication,
		fmt.Sprintf("limite de requisições excedido, aguarde %s", wait.Round(time.Millisecond)), nil)
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

// Available probes the Ollama tags endpoint.
//
// A failed probe means the endpoint is down or unreachable; callers treat
// that as LLMUnavailable rather than retrying blindly.
func (c *Client) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, availabilityTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("ollama availability probe failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Generate runs a single-prompt completion. Used by the SQL-generation path.
func (c *Client) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	if err := c.allow(); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	out, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt,
		llms.WithTemperature(temperature),
	)
	if err != nil {
		return "", classifyErr(err, "generation failed")
	}
	return out, nil
}

// Chat runs a system+user exchange. Used by the conversational path.
//
// The availability probe runs first so a down endpoint is reported as
// LLMUnavailable instead of burning the full generation timeout.
func (c *Client) Chat(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	if err := c.allow(); err != nil {
		return "", err
	}
	if !c.Available(ctx) {
		return "", datatypes.NewLLMError(datatypes.LLMUnavailable,
			"serviço LLM conversacional indisponível", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	resp, err := c.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(temperature),
		llms.WithMaxTokens(maxTokens),
	)
	if err != nil {
		return "", classifyErr(err, "chat failed")
	}
	if len(resp.Choices) == 0 {
		return "", datatypes.NewLLMError(datatypes.LLMCommunication,
			"resposta do LLM em formato inesperado", nil)
	}
	return resp.Choices[0].Content, nil
}

// classifyErr maps a transport error onto the LLM error taxonomy.
func classifyErr(err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return datatypes.NewLLMError(datatypes.LLMTimeout, msg, err)
	}
	return datatypes.NewLLMError(datatypes.LLMCommunication, msg, err)
}
