// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sqlite executes read queries against the SUS admissions database.
//
// The dataset is a single read-mostly SQLite file, so one connection
// serialized by a mutex is sufficient and sidesteps SQLITE_BUSY contention
// between concurrent requests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AleutianAI/susquery/services/susquery/datatypes"
)

// Executor runs SQL against the dataset and shapes rows for the pipeline.
//
// Thread Safety: Safe for concurrent use; queries are serialized.
type Executor struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open opens the SQLite database at path.
func Open(path string) (*Executor, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return &Executor{db: db, path: path}, nil
}

// Path returns the database file path.
func (e *Executor) Path() string { return e.path }

// Ping verifies the database is reachable.
func (e *Executor) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

// Execute runs one query and returns every row as a column-keyed map.
//
// Byte-slice values (SQLite TEXT read through the generic scanner) are
// converted to strings so rows serialize cleanly to JSON.
func (e *Executor) Execute(ctx context.Context, query string) ([]datatypes.Row, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	out := make([]datatypes.Row, 0, 16)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		row := make(datatypes.Row, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

// ExecuteTimed runs Execute and reports how long it took.
func (e *Executor) ExecuteTimed(ctx context.Context, query string) ([]datatypes.Row, time.Duration, error) {
	start := time.Now()
	rows, err := e.Execute(ctx, query)
	return rows, time.Since(start), err
}

// Close releases the underlying connection.
func (e *Executor) Close() error {
	return e.db.Close()
}

func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
