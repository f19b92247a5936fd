// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AleutianAI/susquery/services/susquery/datatypes"
)

func TestClassifyErr(t *testing.T) {
	timeoutErr := fmt.Errorf("request: %w", context.DeadlineExceeded)
	le, ok := datatypes.AsLLMError(classifyErr(timeoutErr, "chat failed"))
	if !ok {
		t.Fatal("expected an LLMError")
	}
	if le.Kind != datatypes.LLMTimeout {
		t.Errorf("deadline errors must map to timeout, got %s", le.Kind)
	}
	if !le.Retryable() {
		t.Error("timeouts are retryable")
	}

	le, ok = datatypes.AsLLMError(classifyErr(errors.New("connection refused"), "chat failed"))
	if !ok {
		t.Fatal("expected an LLMError")
	}
	if le.Kind != datatypes.LLMCommunication {
		t.Errorf("generic errors must map to communication, got %s", le.Kind)
	}
}

func TestClient_Available(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("probe hit %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, Model: "llama3.2:latest"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if !c.Available(context.Background()) {
		t.Error("expected available against a healthy endpoint")
	}

	srv.Close()
	if c.Available(context.Background()) {
		t.Error("expected unavailable after server shutdown")
	}
}

func TestClient_ChatUnavailableEndpoint(t *testing.T) {
	// Nothing listens on this address; Chat must fail fast with the
	// unavailable kind rather than attempting generation.
	c, err := NewClient(Config{BaseURL: "http://127.0.0.1:1", Model: "llama3.2:latest"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = c.Chat(context.Background(), "system", "user", 0.7, 100)
	le, ok := datatypes.AsLLMError(err)
	if !ok {
		t.Fatalf("expected an LLMError, got %v", err)
	}
	if le.Kind != datatypes.LLMUnavailable {
		t.Errorf("kind = %s, want unavailable", le.Kind)
	}
	if le.Retryable() {
		t.Error("unavailable must not be retryable")
	}
}

func TestNewClient_RequiresModel(t *testing.T) {
	if _, err := NewClient(Config{BaseURL: "http://localhost:11434"}); err == nil {
		t.Fatal("expected an error for a missing model name")
	}
}
