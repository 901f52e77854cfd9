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

package state

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/carverauto/farmradar/pkg/logtail"
	"github.com/carverauto/farmradar/pkg/models"
)

// LogTimeLayout is the timestamp layout of service log lines.
const LogTimeLayout = "2006-01-02T15:04:05.000"

type logLine struct {
	logtail.Line
	fields []string
	ts     time.Time
	tsErr  error
	path   string
}

func (e *Engine) parseLine(l logtail.Line, timestamped bool) *logLine {
	ll := &logLine{Line: l, fields: strings.Fields(l.Text)}

	if !timestamped {
		return ll
	}

	if len(ll.fields) == 0 {
		ll.tsErr = errBadTimestamp
		return ll
	}

	ts, err := time.ParseInLocation(LogTimeLayout, ll.fields[0], e.cfg.Location)
	if err != nil {
		ll.tsErr = fmt.Errorf("%w: %q", errBadTimestamp, ll.fields[0])
		return ll
	}

	ll.ts = models.NormalizeTime(ts)

	return ll
}

func (l *logLine) timestamp() (time.Time, error) {
	return l.ts, l.tsErr
}

// token returns the field rel positions after the first occurrence of anchor.
func (l *logLine) token(anchor string, rel int) (string, error) {
	idx := slices.Index(l.fields, anchor)
	if idx < 0 {
		return "", fmt.Errorf("%w: %q", errAnchorNotFound, anchor)
	}

	pos := idx + rel
	if pos < 0 || pos >= len(l.fields) {
		return "", fmt.Errorf("%w: %q%+d", errTokenOutOfRange, anchor, rel)
	}

	return l.fields[pos], nil
}

func (l *logLine) last() (string, error) {
	if len(l.fields) == 0 {
		return "", errTokenOutOfRange
	}

	return l.fields[len(l.fields)-1], nil
}

type lineAction struct {
	name     string
	required []string
	apply    func(e *Engine, l *logLine) error
}

func (a *lineAction) matches(text string) bool {
	for _, s := range a.required {
		if !strings.Contains(text, s) {
			return false
		}
	}

	return true
}

// dispatch runs the first action matching the line. Actions run under the
// engine mutex; a failing or panicking action is logged and skipped.
func (e *Engine) dispatch(actions []lineAction, l *logLine) {
	for i := range actions {
		a := &actions[i]
		if !a.matches(l.Text) {
			continue
		}

		e.runAction(a, l)

		return
	}
}

func (e *Engine) runAction(a *lineAction, l *logLine) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn().
				Str("action", a.name).
				Int64("offset", l.Offset).
				Interface("panic", r).
				Msg("Log action panicked")
		}
	}()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := a.apply(e, l); err != nil {
		e.log.Debug().
			Err(err).
			Str("action", a.name).
			Int64("offset", l.Offset).
			Msg("Ignoring malformed log line")
	}
}
