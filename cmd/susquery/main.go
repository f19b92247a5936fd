// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command susquery starts the SUS natural-language query API server.
//
// The server answers Portuguese questions over the SUS hospital dataset:
//   - Text-to-SQL via a local Ollama model with schema-aware prompts
//   - Safety-validated SQLite execution with city-name case correction
//   - Conversational answers with per-session context
//
// Usage:
//
//	go run ./cmd/susquery -db sus_database.db
//	go run ./cmd/susquery -port 9090 -db /data/sus.db
//
// With Ollama:
//
//	OLLAMA_BASE_URL=http://localhost:11434 go run ./cmd/susquery -db sus_database.db
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/query/health
//
//	# Ask a question
//	curl -X POST http://localhost:8080/v1/query \
//	  -H "Content-Type: application/json" \
//	  -d '{"question": "Quantas pessoas morreram em Porto Alegre?"}'
//
//	# Conversational answer with session memory
//	curl -X POST http://localhost:8080/v1/query/conversational \
//	  -H "Content-Type: application/json" \
//	  -d '{"question": "E em Canoas?", "session_id": "abc"}'
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AleutianAI/susquery/services/susquery"
)

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	dbPath := flag.String("db", "sus_database.db", "Path to the SUS SQLite database")
	cacheDir := flag.String("cache-dir", "", "Badger directory for the schema context cache (empty disables persistence)")
	agentModel := flag.String("agent-model", "", "SQL generation model (overrides default)")
	chatModel := flag.String("chat-model", "", "Conversational model (overrides default)")
	withTracing := flag.Bool("with-tracing", false, "Export OTel spans to stdout")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -log-level %q\n", *logLevel)
		os.Exit(2)
	}
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation so inbound traceparent headers flow
	// through the pipeline spans.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if *withTracing {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			slog.Error("Failed to create trace exporter", slog.String("error", err.Error()))
			os.Exit(1)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		otel.SetTracerProvider(tp)
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				slog.Warn("Failed to shut down tracer provider", slog.String("error", err.Error()))
			}
		}()
	}

	cfg := susquery.DefaultServiceConfig()
	cfg.DatabasePath = *dbPath
	cfg.CachePath = *cacheDir
	if url := os.Getenv("OLLAMA_BASE_URL"); url != "" {
		cfg.OllamaBaseURL = url
	}
	if *agentModel != "" {
		cfg.AgentModel = *agentModel
	} else if m := os.Getenv("OLLAMA_MODEL"); m != "" {
		cfg.AgentModel = m
	}
	if *chatModel != "" {
		cfg.ChatModel = *chatModel
	} else if m := os.Getenv("CHAT_MODEL"); m != "" {
		cfg.ChatModel = m
	}

	svc, err := susquery.NewService(cfg)
	if err != nil {
		slog.Error("Failed to initialize service", slog.String("error", err.Error()))
		os.Exit(1)
	}

	handlers := susquery.NewHandlers(svc)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("susquery"))
	router.Use(susquery.MetricsMiddleware())
	if *debug {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	susquery.RegisterRoutes(v1, handlers)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	printBanner(*port, cfg)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("Shutting down susquery server")
		if err := svc.Close(); err != nil {
			slog.Warn("Failed to close service", slog.String("error", err.Error()))
		}
		os.Exit(0)
	}()

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Starting susquery server",
		slog.String("address", addr),
		slog.String("database", cfg.DatabasePath),
		slog.String("agent_model", cfg.AgentModel),
		slog.String("chat_model", cfg.ChatModel),
	)
	if err := router.Run(addr); err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func printBanner(port int, cfg susquery.ServiceConfig) {
	fmt.Printf(`
SUS Query Server
  Database:    %s
  Agent model: %s
  Chat model:  %s

  Quick start:
    curl http://localhost:%d/v1/query/health
    curl -X POST http://localhost:%d/v1/query \
      -H "Content-Type: application/json" \
      -d '{"question": "Quantas pessoas morreram em Porto Alegre?"}'

  Press Ctrl+C to stop
`, cfg.DatabasePath, cfg.AgentModel, cfg.ChatModel, port, port)
}
