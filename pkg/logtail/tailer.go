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

// Package logtail follows a growing log file across truncation and
// rename-and-recreate rotation.
package logtail

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/carverauto/farmradar/pkg/logger"
)

const (
	defaultPollInterval = 250 * time.Millisecond
	defaultReopenDelay  = 5 * time.Second
)

var errRotated = errors.New("file rotated")

// Line is one complete line of the file without its terminator.
type Line struct {
	Text   string
	Offset int64
}

// Option configures a Tailer.
type Option func(*Tailer)

// WithPollInterval sets how often an open file is checked for new data.
func WithPollInterval(d time.Duration) Option {
	return func(t *Tailer) {
		if d > 0 {
			t.pollInterval = d
		}
	}
}

// WithReopenDelay sets the wait between attempts to open a missing file.
func WithReopenDelay(d time.Duration) Option {
	return func(t *Tailer) {
		if d > 0 {
			t.reopenDelay = d
		}
	}
}

// WithOnMissing registers a callback invoked once per outage of the file.
func WithOnMissing(fn func()) Option {
	return func(t *Tailer) { t.onMissing = fn }
}

// WithOnCaughtUp registers a callback invoked once per open session, after
// the existing content of the file has been delivered.
func WithOnCaughtUp(fn func()) Option {
	return func(t *Tailer) { t.onCaughtUp = fn }
}

// Tailer delivers the lines of one file, reopening it when it disappears
// or rotates. It is driven by Run and is not safe for concurrent Runs.
type Tailer struct {
	path         string
	logger       logger.Logger
	pollInterval time.Duration
	reopenDelay  time.Duration
	onMissing    func()
	onCaughtUp   func()

	caughtUp atomic.Bool
}

// New returns a Tailer for path.
func New(path string, log logger.Logger, opts ...Option) *Tailer {
	t := &Tailer{
		path:         path,
		logger:       log,
		pollInterval: defaultPollInterval,
		reopenDelay:  defaultReopenDelay,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Path returns the followed file.
func (t *Tailer) Path() string {
	return t.path
}

// CaughtUp reports whether the current open session has delivered all
// content that existed when it was last checked.
func (t *Tailer) CaughtUp() bool {
	return t.caughtUp.Load()
}

// Run delivers lines to handle until ctx is cancelled. It returns ctx.Err().
func (t *Tailer) Run(ctx context.Context, handle func(Line)) error {
	missing := false

	for {
		f, err := os.Open(t.path)
		if err != nil {
			t.caughtUp.Store(false)

			if !missing {
				missing = true

				t.logger.Warn().Err(err).Str("path", t.path).Msg("Log file unavailable, waiting for it to appear")

				if t.onMissing != nil {
					t.onMissing()
				}
			}

			if err := sleep(ctx, t.reopenDelay); err != nil {
				return err
			}

			continue
		}

		if missing {
			t.logger.Info().Str("path", t.path).Msg("Log file available")
		}

		missing = false

		err = t.follow(ctx, f, handle)
		_ = f.Close()

		t.caughtUp.Store(false)

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if errors.Is(err, errRotated) {
			t.logger.Info().Str("path", t.path).Msg("Log file rotated, reopening")
			continue
		}

		t.logger.Warn().Err(err).Str("path", t.path).Msg("Log file read failed, reopening")

		if err := sleep(ctx, t.reopenDelay); err != nil {
			return err
		}
	}
}

// session holds the read position of one open file.
type session struct {
	reader  *bufio.Reader
	pos     int64
	partial []byte
}

func (t *Tailer) follow(ctx context.Context, f *os.File, handle func(Line)) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", t.path, err)
	}

	s := &session{reader: bufio.NewReader(f)}
	signalled := false

	for {
		if err := s.drain(handle); err != nil {
			return err
		}

		if !signalled {
			signalled = true

			t.caughtUp.Store(true)
			t.logger.Debug().Str("path", t.path).Int64("offset", s.pos).Msg("Log file caught up")

			if t.onCaughtUp != nil {
				t.onCaughtUp()
			}
		}

		if err := sleep(ctx, t.pollInterval); err != nil {
			return err
		}

		current, err := os.Stat(t.path)
		if err != nil {
			// Renamed away and not recreated yet; keep reading the old handle.
			continue
		}

		if !os.SameFile(info, current) {
			if err := s.drain(handle); err != nil {
				return err
			}

			s.flushPartial(handle)

			return errRotated
		}

		if s.pos > current.Size() {
			return errRotated
		}
	}
}

// drain delivers every complete line available from the reader.
func (s *session) drain(handle func(Line)) error {
	for {
		chunk, err := s.reader.ReadBytes('\n')
		if len(chunk) > 0 {
			s.consume(chunk, handle)
		}

		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}
	}
}

func (s *session) consume(chunk []byte, handle func(Line)) {
	start := s.pos - int64(len(s.partial))
	s.pos += int64(len(chunk))

	if chunk[len(chunk)-1] != '\n' {
		s.partial = append(s.partial, chunk...)
		return
	}

	text := chunk[:len(chunk)-1]
	if len(s.partial) > 0 {
		text = append(s.partial, text...)
		s.partial = nil
	}

	handle(Line{Text: string(bytes.TrimSuffix(text, []byte{'\r'})), Offset: start})
}

// flushPartial delivers an unterminated last line of a file that will not
// grow anymore.
func (s *session) flushPartial(handle func(Line)) {
	if len(s.partial) == 0 {
		return
	}

	text := s.partial
	s.partial = nil

	handle(Line{Text: string(bytes.TrimSuffix(text, []byte{'\r'})), Offset: s.pos - int64(len(text))})
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
