// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger wraps an embedded BadgerDB instance for derived-artifact
// caching. The wrapper exposes only the byte-level operations the caches
// need; TTL expiry is enforced by BadgerDB's own GC, and an expired or
// absent key reads back as a plain miss, never an error.
package badger

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// Store is a thin handle over one BadgerDB directory.
//
// Thread Safety: Safe for concurrent use; BadgerDB transactions are
// per-goroutine.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the BadgerDB directory at path.
//
// BadgerDB's own logger is silenced; the caller's slog setup covers
// operational logging.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %s: %w", path, err)
	}
	slog.Info("badger cache opened", "path", path)
	return &Store{db: db}, nil
}

// OpenInMemory opens a non-persistent instance. Test use only.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening in-memory badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the value for key, or (nil, nil) when the key is absent or
// its TTL has expired.
func (s *Store) Get(key []byte) ([]byte, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return val, nil
}

// SetWithTTL writes key with the given lifetime. A ttl of zero stores the
// entry without expiry.
func (s *Store) SetWithTTL(key, val []byte, ttl time.Duration) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, val)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("badger set: %w", err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("badger delete: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying DB.
func (s *Store) Close() error {
	return s.db.Close()
}
