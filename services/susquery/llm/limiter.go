// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"sync"
	"time"
)

// Limiter implements a sliding window rate limiter per model.
//
// Description:
//
//	Limits the number of requests per minute to each model using a
//	sliding window of timestamps. A single local Ollama instance serves
//	every model; unbounded concurrent generations thrash VRAM and stall
//	all of them, so each client caps its own request rate. When the limit
//	is exceeded, Allow returns the duration until the next request can be
//	made.
//
// Thread Safety: Safe for concurrent use via sync.Mutex.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	window  []int64 // timestamps in Unix milliseconds
	nowFunc func() time.Time
}

// NewLimiter creates a limiter allowing limitPerMin requests per minute.
// A limit of zero disables limiting.
func NewLimiter(limitPerMin int) *Limiter {
	return &Limiter{
		limit:   limitPerMin,
		nowFunc: time.Now,
	}
}

// Allow checks whether a request is within the rate limit.
//
// Outputs:
//   - bool: True if the request is allowed; the timestamp is recorded.
//   - time.Duration: If rate-limited, how long to wait before retrying.
//     Zero if allowed.
func (l *Limiter) Allow() (bool, time.Duration) {
	if l.limit <= 0 {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc().UnixMilli()
	windowStart := now - 60_000

	pruned := make([]int64, 0, len(l.window))
	for _, ts := range l.window {
		if ts > windowStart {
			pruned = append(pruned, ts)
		}
	}

	if len(pruned) >= l.limit {
		oldestInWindow := pruned[0]
		retryAfter := time.Duration(oldestInWindow+60_000-now) * time.Millisecond
		l.window = pruned
		return false, retryAfter
	}

	pruned = append(pruned, now)
	l.window = pruned
	return true, 0
}
