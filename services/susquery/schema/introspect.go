// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package schema builds the database context handed to the SQL-generation
// agent: live column layout and row counts from the SQLite file, merged
// with embedded domain annotations (column meanings, coding rules, example
// queries).
//
// Introspection costs a table scan for the row count, so the rendered
// context is cached: in memory for the process lifetime and optionally in
// BadgerDB across restarts. Concurrent cold-start requests are deduplicated
// through singleflight.
package schema

import (
	"bytes"
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/susquery/services/susquery/datatypes"
	badgerstore "github.com/AleutianAI/susquery/services/susquery/storage/badger"
)

// DefaultTable is the admissions table every deployment ships.
const DefaultTable = "sus_data"

// cacheTTL bounds how long a persisted context survives. The dataset is
// static between deployments, so a day is conservative.
const cacheTTL = 24 * time.Hour

// cacheKeyPrefix versions the persisted encoding.
const cacheKeyPrefix = "schema/ctx/v1/"

const sampleLimit = 3

//go:embed susdata.yaml
var annotationsYAML []byte

// annotations is the parsed form of susdata.yaml.
type annotations struct {
	DatabaseInfo       string            `yaml:"database_info"`
	ColumnDescriptions map[string]string `yaml:"column_descriptions"`
	ImportantNotes     []string          `yaml:"important_notes"`
	QueryExamples      []string          `yaml:"query_examples"`
}

// Column describes one table column.
type Column struct {
	Name       string
	Type       string
	Nullable   bool
	PrimaryKey bool
}

// Table describes one introspected table.
type Table struct {
	Name     string
	Columns  []Column
	Sample   []datatypes.Row
	RowCount int64
}

// Context is the complete schema context for the agent.
type Context struct {
	DatabaseInfo   string
	Table          Table
	ImportantNotes []string
	QueryExamples  []string
	Formatted      string
}

// Executor is the query capability the introspector needs.
type Executor interface {
	Execute(ctx context.Context, query string) ([]datatypes.Row, error)
}

func init() {
	// Sample rows travel through gob as interface values.
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register("")
	gob.Register(true)
}

// Introspector builds and caches the schema context for one table.
//
// Thread Safety: Safe for concurrent use.
type Introspector struct {
	db    Executor
	cache *badgerstore.Store
	table string
	notes annotations

	mu     sync.RWMutex
	cached *Context
	group  singleflight.Group
}

// NewIntrospector creates an introspector for table. cache may be nil, in
// which case the context is only held in memory.
func NewIntrospector(db Executor, cache *badgerstore.Store, table string) (*Introspector, error) {
	if table == "" {
		table = DefaultTable
	}
	var notes annotations
	if err := yaml.Unmarshal(annotationsYAML, &notes); err != nil {
		return nil, fmt.Errorf("parsing embedded schema annotations: %w", err)
	}
	return &Introspector{db: db, cache: cache, table: table, notes: notes}, nil
}

// Context returns the schema context, building it on first use.
func (in *Introspector) Context(ctx context.Context) (*Context, error) {
	in.mu.RLock()
	cached := in.cached
	in.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	v, err, _ := in.group.Do(in.table, func() (any, error) {
		return in.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Context), nil
}

// Invalidate drops the cached context so the next Context call rebuilds it.
func (in *Introspector) Invalidate() {
	in.mu.Lock()
	in.cached = nil
	in.mu.Unlock()

	if in.cache != nil {
		if err := in.cache.Delete(in.cacheKey()); err != nil {
			slog.Warn("schema cache invalidation failed", "error", err)
		}
	}
}

func (in *Introspector) load(ctx context.Context) (*Context, error) {
	if sc := in.loadPersisted(); sc != nil {
		in.mu.Lock()
		in.cached = sc
		in.mu.Unlock()
		return sc, nil
	}

	table, err := in.TableInfo(ctx, in.table)
	if err != nil {
		return nil, err
	}

	sc := &Context{
		DatabaseInfo:   in.notes.DatabaseInfo,
		Table:          table,
		ImportantNotes: in.notes.ImportantNotes,
		QueryExamples:  in.notes.QueryExamples,
	}
	sc.Formatted = in.format(sc)

	in.mu.Lock()
	in.cached = sc
	in.mu.Unlock()
	in.persist(sc)

	return sc, nil
}

// TableInfo introspects one table: column layout, row count and a few
// sample rows.
func (in *Introspector) TableInfo(ctx context.Context, name string) (Table, error) {
	cols, err := in.db.Execute(ctx, fmt.Sprintf("PRAGMA table_info(%s)", name))
	if err != nil {
		return Table{}, fmt.Errorf("introspecting %s: %w", name, err)
	}
	if len(cols) == 0 {
		return Table{}, fmt.Errorf("table %s does not exist", name)
	}

	columns := make([]Column, 0, len(cols))
	for _, row := range cols {
		columns = append(columns, Column{
			Name:       asString(row["name"]),
			Type:       asString(row["type"]),
			Nullable:   asInt(row["notnull"]) == 0,
			PrimaryKey: asInt(row["pk"]) != 0,
		})
	}

	countRows, err := in.db.Execute(ctx, fmt.Sprintf("SELECT COUNT(*) AS n FROM %s", name))
	if err != nil {
		return Table{}, fmt.Errorf("counting %s: %w", name, err)
	}
	var count int64
	if len(countRows) > 0 {
		count = asInt(countRows[0]["n"])
	}

	sample, err := in.db.Execute(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", name, sampleLimit))
	if err != nil {
		return Table{}, fmt.Errorf("sampling %s: %w", name, err)
	}

	return Table{Name: name, Columns: columns, Sample: sample, RowCount: count}, nil
}

// format renders the context text the agent prompt embeds.
func (in *Introspector) format(sc *Context) string {
	var b strings.Builder

	b.WriteString("CONTEXTO DO BANCO DE DADOS - SISTEMA ÚNICO DE SAÚDE (SUS)\n")
	b.WriteString("========================================================\n\n")
	fmt.Fprintf(&b, "INFORMAÇÕES DA TABELA: %s\n", sc.Table.Name)
	fmt.Fprintf(&b, "Total de registros: %s\n\n", groupDigits(sc.Table.RowCount))

	b.WriteString("COLUNAS DISPONÍVEIS:\n")
	for _, col := range sc.Table.Columns {
		fmt.Fprintf(&b, "- %s (%s): %s\n", col.Name, col.Type, in.notes.ColumnDescriptions[col.Name])
	}

	b.WriteString("\nNOTAS IMPORTANTES:\n")
	for _, note := range sc.ImportantNotes {
		fmt.Fprintf(&b, "- %s\n", note)
	}

	b.WriteString("\nEXEMPLOS DE CONSULTAS:\n")
	b.WriteString(strings.Join(sc.QueryExamples, "\n"))

	return b.String()
}

// =============================================================================
// Persistence
// =============================================================================

func (in *Introspector) cacheKey() []byte {
	sum := sha256.Sum256([]byte(in.table))
	return []byte(cacheKeyPrefix + hex.EncodeToString(sum[:]))
}

// loadPersisted returns the persisted context, or nil on miss or any decode
// problem. Persistence failures are never fatal; the context rebuilds from
// the database.
func (in *Introspector) loadPersisted() *Context {
	if in.cache == nil {
		return nil
	}
	raw, err := in.cache.Get(in.cacheKey())
	if err != nil {
		slog.Warn("schema cache read failed", "error", err)
		return nil
	}
	if raw == nil {
		return nil
	}

	var sc Context
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&sc); err != nil {
		slog.Warn("schema cache decode failed", "error", err)
		return nil
	}
	slog.Debug("schema context loaded from cache", "table", sc.Table.Name)
	return &sc
}

func (in *Introspector) persist(sc *Context) {
	if in.cache == nil {
		return
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(sc); err != nil {
		slog.Warn("schema cache encode failed", "error", err)
		return
	}
	if err := in.cache.SetWithTTL(in.cacheKey(), buf.Bytes(), cacheTTL); err != nil {
		slog.Warn("schema cache write failed", "error", err)
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// groupDigits renders n with thousands separators ("1,234,567").
func groupDigits(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
