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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all query routes with the router.
//
// Description:
//
//	Registers all /v1/query/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/query - Process a natural-language question
//	POST /v1/query/conversational - Process with a phrased answer
//	GET  /v1/query/schema - Formatted dataset schema context
//	GET  /v1/query/stats - Query-processing statistics
//	GET  /v1/query/health - Component health
//	GET  /v1/query/ready - Readiness check
//	GET  /v1/query/sessions/:id - Conversation session summary
//	DELETE /v1/query/sessions/:id - Clear a conversation session
//
// Example:
//
//	svc, _ := susquery.NewService(susquery.DefaultServiceConfig())
//	handlers := susquery.NewHandlers(svc)
//
//	v1 := router.Group("/v1")
//	susquery.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	query := rg.Group("/query")
	{
		query.POST("", handlers.HandleQuery)
		query.POST("/conversational", handlers.HandleConversational)

		query.GET("/schema", handlers.HandleSchema)
		query.GET("/stats", handlers.HandleStats)

		// Health checks
		query.GET("/health", handlers.HandleHealth)
		query.GET("/ready", handlers.HandleReady)

		// Conversation sessions
		query.GET("/sessions/:id", handlers.HandleSessionSummary)
		query.DELETE("/sessions/:id", handlers.HandleClearSession)
	}
}
