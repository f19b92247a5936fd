// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"errors"
	"fmt"
)

// =============================================================================
// LLM Error Taxonomy
// =============================================================================

// LLMErrorKind is the closed set of LLM-layer failure modes.
//
// Call sites match the kind exhaustively instead of inspecting error strings:
// communication failures and timeouts are retried with backoff, unavailability
// is not retried until an availability probe passes again.
type LLMErrorKind int

const (
	// LLMCommunication is a transient transport or protocol failure.
	LLMCommunication LLMErrorKind = iota

	// LLMTimeout means the model did not answer within the configured window.
	LLMTimeout

	// LLMUnavailable means the model endpoint failed its availability probe.
	LLMUnavailable
)

// String returns the wire/metric label for the kind.
func (k LLMErrorKind) String() string {
	switch k {
	case LLMCommunication:
		return "communication"
	case LLMTimeout:
		return "timeout"
	case LLMUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// LLMError is a tagged LLM-layer failure.
//
// It wraps the underlying transport error (if any) so errors.Is/As keep
// working through the pipeline.
type LLMError struct {
	Kind    LLMErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *LLMError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("llm %s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped transport error.
func (e *LLMError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt may succeed without operator
// intervention. Unavailability is terminal until the availability check
// passes again.
func (e *LLMError) Retryable() bool {
	return e.Kind == LLMCommunication || e.Kind == LLMTimeout
}

// NewLLMError builds a tagged LLM error wrapping err (err may be nil).
func NewLLMError(kind LLMErrorKind, msg string, err error) *LLMError {
	return &LLMError{Kind: kind, Message: msg, Err: err}
}

// AsLLMError unwraps err into an *LLMError if one is in the chain.
func AsLLMError(err error) (*LLMError, bool) {
	var le *LLMError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// =============================================================================
// Pipeline Sentinels
// =============================================================================

// ErrUnsafeQuery is returned when the safety validator blocks a SQL
// statement. Blocked statements never reach execution.
var ErrUnsafeQuery = errors.New("query blocked for safety")

// ErrSessionNotFound is returned by session lookups for unknown ids.
var ErrSessionNotFound = errors.New("session not found")
