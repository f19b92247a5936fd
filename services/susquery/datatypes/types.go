// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the shared request/response types of the susquery
// pipeline. It has no dependencies on the other susquery packages so that
// every layer (parser, processor, synthesizer, HTTP handlers) can exchange
// values without import cycles.
package datatypes

import "time"

// Row is a single result row: column name (or synthetic marker key) to value.
//
// Besides plain database columns, the trace parser emits synthetic keys:
//
//	"result"            - scalar answer extracted from the agent trace
//	"rank"/"city"/"count" - ranked rows from multi-entity answers
//	"final_answer_text" - full natural-language answer (summary row)
//	"response_type"     - marker consumed by the conversational synthesizer
type Row map[string]any

// QueryRequest is one incoming natural-language question.
//
// Created per request by the orchestrating handler; immutable; discarded
// after processing.
type QueryRequest struct {
	Question  string
	SessionID string
	Timestamp time.Time
	Context   map[string]any
}

// QueryResult is the structured outcome of processing one QueryRequest.
//
// Invariant: Success == false implies ErrorMessage is non-empty and Results
// is empty; Success == true implies ErrorMessage is empty.
type QueryResult struct {
	SQLQuery      string
	Results       []Row
	Success       bool
	ExecutionTime time.Duration
	RowCount      int
	ErrorMessage  string
	Metadata      map[string]any
}

// ValidationResult reports the safety analysis of one SQL string.
//
// IsSafe is false iff BlockedReasons is non-empty. IsValid additionally
// requires fewer than three warnings.
type ValidationResult struct {
	IsValid        bool
	IsSafe         bool
	Warnings       []string
	BlockedReasons []string
}

// PromptType selects the specialized analysis template used to phrase the
// conversational answer. The set is closed; Classify in the prompts package
// is the only producer.
type PromptType string

const (
	PromptBasicResponse       PromptType = "basic_response"
	PromptStatisticalAnalysis PromptType = "statistical_analysis"
	PromptComparativeAnalysis PromptType = "comparative_analysis"
	PromptTrendAnalysis       PromptType = "trend_analysis"
	PromptGeographicAnalysis  PromptType = "geographic_analysis"
	PromptErrorExplanation    PromptType = "error_explanation"
	PromptSuggestionResponse  PromptType = "suggestion_response"
)

// ConversationalResponse is the user-facing synthesized answer.
//
// Produced once per synthesis call and never mutated. Confidence is in
// [0,1]; Suggestions carries at most three follow-up prompts.
type ConversationalResponse struct {
	Message        string
	ResponseType   PromptType
	Confidence     float64
	ProcessingTime time.Duration
	ContextUsed    bool
	Suggestions    []string
	Metadata       map[string]any
}
