/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package ratelimit throttles UPDATE events per category and entity.
package ratelimit

import (
	"sync"
	"time"

	"github.com/carverauto/farmradar/pkg/models"
)

type key struct {
	category models.Category
	id       string
}

// Limiter remembers when each (category, id) was last sent.
type Limiter struct {
	mu        sync.Mutex
	intervals map[models.Category]time.Duration
	lastSent  map[key]time.Time
	now       func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a limiter. Categories without an interval are never throttled.
func New(intervals map[models.Category]models.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		intervals: make(map[models.Category]time.Duration, len(intervals)),
		lastSent:  make(map[key]time.Time),
		now:       time.Now,
	}

	for c, d := range intervals {
		if d > 0 {
			l.intervals[c] = d.Std()
		}
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Allow reports whether ev may be sent now and records the send if so.
// ADD and DELETE are always allowed. Every allowed event, ADD and DELETE
// included, restarts the UPDATE interval of its key.
func (l *Limiter) Allow(ev models.ChangeEvent) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	k := key{category: ev.Category(), id: ev.EntityID()}

	if ev.Action == models.ActionUpdate {
		interval, limited := l.intervals[k.category]
		if last, seen := l.lastSent[k]; limited && seen && now.Sub(last) < interval {
			return false
		}
	}

	l.lastSent[k] = now

	return true
}

// Filter returns the events of evs that Allow accepts, in order.
func (l *Limiter) Filter(evs []models.ChangeEvent) []models.ChangeEvent {
	out := evs[:0:0]

	for _, ev := range evs {
		if l.Allow(ev) {
			out = append(out, ev)
		}
	}

	return out
}
