// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"bytes"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	key := []byte("schema/ctx/v1/abc")
	if err := s.SetWithTTL(key, []byte("payload"), time.Hour); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}

	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, []byte("payload")) {
		t.Errorf("value = %q", got)
	}
}

func TestStore_MissIsNotAnError(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Get([]byte("absent"))
	if err != nil {
		t.Fatalf("miss must not error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil value on miss, got %q", got)
	}
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)

	key := []byte("k")
	if err := s.SetWithTTL(key, []byte("v"), 0); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}
	if err := s.Delete(key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err := s.Get(key)
	if err != nil || got != nil {
		t.Errorf("expected miss after delete, got %q / %v", got, err)
	}
	if err := s.Delete([]byte("absent")); err != nil {
		t.Errorf("deleting an absent key must not error: %v", err)
	}
}
