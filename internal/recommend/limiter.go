// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package recommend

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SubjectLimiter enforces the minimum interval between recommendation
// requests per subject, separately for each request mode. Lightning
// mode allows a tighter interval because its prompts are cheaper.
//
// Limiters are created lazily and never evicted; the population is
// bounded by active subjects, which for this service is small.
type SubjectLimiter struct {
	mu        sync.Mutex
	intervals map[string]time.Duration
	limiters  map[string]*rate.Limiter
}

// NewSubjectLimiter creates a limiter with per-mode minimum intervals.
func NewSubjectLimiter(standard, lightning time.Duration) *SubjectLimiter {
	return &SubjectLimiter{
		intervals: map[string]time.Duration{
			"standard":  standard,
			"lightning": lightning,
		},
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether the subject may make a request in the given
// mode right now. A denial returns a *TooSoonError carrying the wait.
func (l *SubjectLimiter) Allow(subjectID, mode string) error {
	interval, ok := l.intervals[mode]
	if !ok || interval <= 0 {
		return nil
	}

	l.mu.Lock()
	key := subjectID + "\x00" + mode
	lim, exists := l.limiters[key]
	if !exists {
		lim = rate.NewLimiter(rate.Every(interval), 1)
		l.limiters[key] = lim
	}
	l.mu.Unlock()

	res := lim.Reserve()
	if delay := res.Delay(); delay > 0 {
		res.Cancel()
		return &TooSoonError{RetryIn: delay}
	}
	return nil
}
