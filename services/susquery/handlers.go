// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package susquery

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/susquery/services/susquery/datatypes"
)

// ErrorResponse is the uniform error body for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// QueryRequestBody is the JSON body for the query endpoints.
type QueryRequestBody struct {
	Question  string `json:"question" binding:"required"`
	SessionID string `json:"session_id"`
}

// QueryResponseBody is the structured query answer.
type QueryResponseBody struct {
	Success       bool            `json:"success"`
	Question      string          `json:"question"`
	SQLQuery      string          `json:"sql_query,omitempty"`
	Results       []datatypes.Row `json:"results,omitempty"`
	RowCount      int             `json:"row_count"`
	ExecutionTime float64         `json:"execution_time"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// ConversationalResponseBody adds the phrased answer to the structured one.
type ConversationalResponseBody struct {
	QueryResponseBody
	Message        string         `json:"message"`
	ResponseType   string         `json:"response_type"`
	Confidence     float64        `json:"confidence"`
	ContextUsed    bool           `json:"context_used"`
	Suggestions    []string       `json:"suggestions,omitempty"`
	SessionID      string         `json:"session_id"`
	ProcessingTime float64        `json:"processing_time"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Handlers holds the HTTP handlers for the query service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates the handler set for a service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// getOrCreateRequestID returns the inbound X-Request-ID or mints one.
func getOrCreateRequestID(c *gin.Context) string {
	id := c.GetHeader("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	c.Header("X-Request-ID", id)
	return id
}

// bindQuestion binds and validates the shared query body. A nil return
// means the error response has already been written.
func (h *Handlers) bindQuestion(c *gin.Context) *QueryRequestBody {
	var body QueryRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "question is required",
			Code:  "MISSING_QUESTION",
		})
		return nil
	}

	body.Question = strings.TrimSpace(body.Question)
	if body.Question == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "question cannot be empty",
			Code:  "EMPTY_QUESTION",
		})
		return nil
	}
	if max := h.svc.MaxQuestionLength(); max > 0 && len(body.Question) > max {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "question exceeds the maximum length",
			Code:  "QUESTION_TOO_LONG",
		})
		return nil
	}
	return &body
}

// HandleQuery handles POST /v1/query.
//
// Description:
//
//	Runs the full natural-language pipeline and returns the structured
//	result. Pipeline failures still answer 200; the body carries
//	success=false and the error message, matching the pipeline's
//	never-throw contract.
//
// Response:
//
//	200 OK: QueryResponseBody
//	400 Bad Request: Missing, empty, or oversized question
func (h *Handlers) HandleQuery(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleQuery")

	body := h.bindQuestion(c)
	if body == nil {
		return
	}

	result := h.svc.ProcessQuery(c.Request.Context(), datatypes.QueryRequest{
		Question:  body.Question,
		SessionID: body.SessionID,
		Timestamp: time.Now(),
	})

	logger.Info("query processed",
		slog.Bool("success", result.Success),
		slog.Int("row_count", result.RowCount),
		slog.Duration("execution_time", result.ExecutionTime),
	)

	c.JSON(http.StatusOK, queryResponseBody(body.Question, result))
}

// HandleConversational handles POST /v1/query/conversational.
//
// Description:
//
//	Runs the pipeline and phrases the outcome as a conversational message
//	with per-session context. A missing session_id starts a new session;
//	the generated id comes back in the response so the client can continue
//	the conversation.
//
// Response:
//
//	200 OK: ConversationalResponseBody
//	400 Bad Request: Missing, empty, or oversized question
func (h *Handlers) HandleConversational(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleConversational")

	body := h.bindQuestion(c)
	if body == nil {
		return
	}
	if body.SessionID == "" {
		body.SessionID = uuid.NewString()
	}

	result, conv := h.svc.ProcessConversational(c.Request.Context(), datatypes.QueryRequest{
		Question:  body.Question,
		SessionID: body.SessionID,
		Timestamp: time.Now(),
	})

	logger.Info("conversational query processed",
		slog.String("session_id", body.SessionID),
		slog.Bool("success", result.Success),
		slog.String("response_type", string(conv.ResponseType)),
		slog.Float64("confidence", conv.Confidence),
	)

	c.JSON(http.StatusOK, ConversationalResponseBody{
		QueryResponseBody: queryResponseBody(body.Question, result),
		Message:           conv.Message,
		ResponseType:      string(conv.ResponseType),
		Confidence:        conv.Confidence,
		ContextUsed:       conv.ContextUsed,
		Suggestions:       conv.Suggestions,
		SessionID:         body.SessionID,
		ProcessingTime:    conv.ProcessingTime.Seconds(),
		Metadata:          conv.Metadata,
	})
}

// HandleSchema handles GET /v1/query/schema.
func (h *Handlers) HandleSchema(c *gin.Context) {
	sc, err := h.svc.SchemaContext(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "SCHEMA_ERROR",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"schema":    sc.Formatted,
		"table":     sc.Table.Name,
		"row_count": sc.Table.RowCount,
		"columns":   len(sc.Table.Columns),
		"timestamp": time.Now(),
	})
}

// HandleStats handles GET /v1/query/stats.
func (h *Handlers) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"statistics": h.svc.Statistics(),
		"timestamp":  time.Now(),
	})
}

// HandleHealth handles GET /v1/query/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	status := h.svc.Status(c.Request.Context())
	code := http.StatusOK
	if status.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

// HandleReady handles GET /v1/query/ready.
func (h *Handlers) HandleReady(c *gin.Context) {
	if err := h.svc.Ready(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: err.Error(),
			Code:  "NOT_READY",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true})
}

// HandleSessionSummary handles GET /v1/query/sessions/:id.
func (h *Handlers) HandleSessionSummary(c *gin.Context) {
	summary, ok := h.svc.SessionSummary(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: datatypes.ErrSessionNotFound.Error(),
			Code:  "SESSION_NOT_FOUND",
		})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// HandleClearSession handles DELETE /v1/query/sessions/:id.
func (h *Handlers) HandleClearSession(c *gin.Context) {
	if !h.svc.ClearSession(c.Param("id")) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: datatypes.ErrSessionNotFound.Error(),
			Code:  "SESSION_NOT_FOUND",
		})
		return
	}
	c.Status(http.StatusNoContent)
}

func queryResponseBody(question string, result datatypes.QueryResult) QueryResponseBody {
	body := QueryResponseBody{
		Success:       result.Success,
		Question:      question,
		RowCount:      result.RowCount,
		ExecutionTime: result.ExecutionTime.Seconds(),
		Timestamp:     time.Now(),
	}
	if result.Success {
		body.SQLQuery = result.SQLQuery
		body.Results = result.Results
	} else {
		body.ErrorMessage = result.ErrorMessage
	}
	return body
}
