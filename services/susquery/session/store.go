// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session keeps bounded per-session conversation memory.
//
// Memory exists only to enrich prompts with recent context; it is not a
// persistence layer and is lost on restart. All state lives behind a single
// store-wide lock and readers receive snapshot copies, so callers can never
// observe or cause a torn update under concurrent same-session access.
package session

import (
	"sync"
	"time"
)

const (
	// maxPreviousQueries bounds the per-session query log.
	maxPreviousQueries = 10

	// maxHistory bounds the per-session interaction history.
	maxHistory = 5

	// maxResponseChars is where stored responses are cut. History feeds
	// prompt context, so a short summary is enough.
	maxResponseChars = 200
)

// Interaction is one completed question/answer pair.
type Interaction struct {
	Query          string
	Response       string
	Timestamp      time.Time
	ResultsSummary string
}

// Context is a read-only snapshot of one session's memory.
type Context struct {
	SessionID         string
	PreviousQueries   []string
	History           []Interaction
	DomainPreferences map[string]any
}

// Summary is the external view of a session for inspection endpoints.
type Summary struct {
	SessionID    string         `json:"session_id"`
	QueryCount   int            `json:"queries_count"`
	Interactions int            `json:"interactions_count"`
	LastQueries  []string       `json:"last_queries"`
	Preferences  map[string]any `json:"domain_preferences"`
}

// sessionState is the mutable per-session record. Only the Store touches it.
type sessionState struct {
	previousQueries []string
	history         []Interaction
	preferences     map[string]any
}

// Store is a concurrency-safe keyed conversation-memory store.
//
// Thread Safety: All methods are safe for concurrent use. Returned Context
// values are deep copies and never alias internal state.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*sessionState
	now      func() time.Time
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*sessionState),
		now:      time.Now,
	}
}

// Snapshot returns a copy of the session's memory, creating the session if
// it does not exist yet.
func (s *Store) Snapshot(sessionID string) Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.getOrCreateLocked(sessionID)
	return snapshotLocked(sessionID, state)
}

// Update records one completed interaction, trimming the query log and
// history to their bounds and cutting the stored response short.
func (s *Store) Update(sessionID, query, response, resultsSummary string) {
	if len(response) > maxResponseChars {
		response = response[:maxResponseChars] + "..."
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.getOrCreateLocked(sessionID)

	state.previousQueries = append(state.previousQueries, query)
	if len(state.previousQueries) > maxPreviousQueries {
		state.previousQueries = state.previousQueries[len(state.previousQueries)-maxPreviousQueries:]
	}

	state.history = append(state.history, Interaction{
		Query:          query,
		Response:       response,
		Timestamp:      s.now(),
		ResultsSummary: resultsSummary,
	})
	if len(state.history) > maxHistory {
		state.history = state.history[len(state.history)-maxHistory:]
	}
}

// SetPreference stores one domain preference for the session.
func (s *Store) SetPreference(sessionID, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.getOrCreateLocked(sessionID)
	state.preferences[key] = value
}

// Clear removes a session entirely. Reports whether it existed.
func (s *Store) Clear(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return false
	}
	delete(s.sessions, sessionID)
	return true
}

// Summary returns the inspection view of a session without creating it.
func (s *Store) Summary(sessionID string) (Summary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return Summary{}, false
	}

	last := state.previousQueries
	if len(last) > 3 {
		last = last[len(last)-3:]
	}
	lastCopy := make([]string, len(last))
	copy(lastCopy, last)

	prefs := make(map[string]any, len(state.preferences))
	for k, v := range state.preferences {
		prefs[k] = v
	}

	return Summary{
		SessionID:    sessionID,
		QueryCount:   len(state.previousQueries),
		Interactions: len(state.history),
		LastQueries:  lastCopy,
		Preferences:  prefs,
	}, true
}

// Len reports the number of active sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) getOrCreateLocked(sessionID string) *sessionState {
	state, ok := s.sessions[sessionID]
	if !ok {
		state = &sessionState{preferences: make(map[string]any)}
		s.sessions[sessionID] = state
	}
	return state
}

func snapshotLocked(sessionID string, state *sessionState) Context {
	queries := make([]string, len(state.previousQueries))
	copy(queries, state.previousQueries)

	history := make([]Interaction, len(state.history))
	copy(history, state.history)

	prefs := make(map[string]any, len(state.preferences))
	for k, v := range state.preferences {
		prefs[k] = v
	}

	return Context{
		SessionID:         sessionID,
		PreviousQueries:   queries,
		History:           history,
		DomainPreferences: prefs,
	}
}
