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

// Package db is the registry-driven dual-table store: an append-only history
// table and a latest-state table per snapshot category, plus machine metadata.
package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/carverauto/farmradar/pkg/logger"
	"github.com/carverauto/farmradar/pkg/models"
)

// Batch is one set of change events reported by a machine at one instant.
type Batch struct {
	MachineID   string
	MachineName string
	Timestamp   time.Time
	Events      []models.ChangeEvent
}

// Store persists change events. Writes are serialized and each batch is
// applied in a single transaction.
type Store struct {
	backend  backend
	dialect  dialect
	log      logger.Logger
	writeMu  sync.Mutex
	sql      map[models.Category]*categorySQL
	ordered  []*categorySQL
	machines *machinesSQL
}

// New opens the configured database.
func New(ctx context.Context, cfg *models.DatabaseConfig, log logger.Logger) (*Store, error) {
	switch cfg.Driver {
	case models.DriverPostgres:
		pool, err := NewPostgresPool(ctx, cfg, log)
		if err != nil {
			return nil, err
		}

		return newStore(&pgBackend{pool: pool}, postgresDialect{}, log), nil
	case models.DriverSQLite:
		db, err := OpenSQLite(ctx, cfg, log)
		if err != nil {
			return nil, err
		}

		ro, err := OpenSQLiteReader(cfg)
		if err != nil {
			_ = db.Close()

			return nil, err
		}

		return newStore(&sqlBackend{db: db, ro: ro}, sqliteDialect{}, log), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func newStore(b backend, d dialect, log logger.Logger) *Store {
	s := &Store{
		backend:  b,
		dialect:  d,
		log:      log,
		sql:      make(map[models.Category]*categorySQL, len(models.Schema)),
		machines: buildMachinesSQL(d),
	}

	for _, spec := range models.Schema {
		cs := buildCategorySQL(d, spec)
		s.sql[spec.Category] = cs
		s.ordered = append(s.ordered, cs)
	}

	return s
}

// Close releases the database handle.
func (s *Store) Close() {
	s.backend.close()
}

// Init creates every table that does not exist yet.
func (s *Store) Init(ctx context.Context) error {
	stmts := []string{s.machines.create}

	for _, cs := range s.ordered {
		stmts = append(stmts, cs.createHistory, cs.createLatest)
	}

	for _, stmt := range stmts {
		if err := s.backend.exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: %w", ErrFailedToInit, err)
		}
	}

	s.log.Info().Int("categories", len(s.ordered)).Msg("database schema ready")

	return nil
}

func (s *Store) sqlFor(c models.Category) (*categorySQL, error) {
	cs, ok := s.sql[c]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q", ErrInvalidEvent, models.ErrUnknownCategory, c)
	}

	return cs, nil
}

// ApplyBatch records every event in history, applies it to the latest state
// and upserts the machine row, all in one transaction. Replaying a batch is a
// no-op.
func (s *Store) ApplyBatch(ctx context.Context, b *Batch) error {
	if b.MachineID == "" {
		return ErrMachineIDRequired
	}

	if b.Timestamp.IsZero() {
		return ErrTimestampRequired
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.inTx(ctx, func(t tx) error {
		for _, ev := range b.Events {
			if err := s.recordHistory(ctx, t, b.MachineID, b.Timestamp, ev); err != nil {
				return err
			}

			if err := s.applyState(ctx, t, b.MachineID, b.Timestamp, ev); err != nil {
				return err
			}
		}

		name := b.MachineName
		if name == "" {
			name = b.MachineID
		}

		if err := t.exec(ctx, s.machines.upsert,
			b.MachineID, name, s.encodeTime(b.Timestamp)); err != nil {
			return fmt.Errorf("%w: machines: %w", ErrFailedToInsert, err)
		}

		return nil
	})
}

// RecordHistory appends one event to the history of its category.
func (s *Store) RecordHistory(ctx context.Context, machineID string, ts time.Time, ev models.ChangeEvent) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.inTx(ctx, func(t tx) error {
		return s.recordHistory(ctx, t, machineID, ts, ev)
	})
}

// ApplyState applies one event to the latest state of its category.
func (s *Store) ApplyState(ctx context.Context, machineID string, ts time.Time, ev models.ChangeEvent) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.inTx(ctx, func(t tx) error {
		return s.applyState(ctx, t, machineID, ts, ev)
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx) error) error {
	t, err := s.backend.begin(ctx, false)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToBegin, err)
	}

	if err := fn(t); err != nil {
		if rbErr := t.rollback(ctx); rbErr != nil {
			s.log.Warn().Err(rbErr).Msg("rollback failed")
		}

		return err
	}

	if err := t.commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToCommit, err)
	}

	return nil
}

func validateEvent(ev models.ChangeEvent) error {
	if ev.Payload == nil {
		return fmt.Errorf("%w: nil payload", ErrInvalidEvent)
	}

	switch ev.Action {
	case models.ActionAdd, models.ActionUpdate, models.ActionDelete:
		return nil
	default:
		return fmt.Errorf("%w: %w: %q", ErrInvalidEvent, models.ErrUnknownAction, ev.Action)
	}
}

func (s *Store) encodeTime(ts time.Time) any {
	v, _ := s.dialect.encode(models.KindTime, ts)
	return v
}

func (s *Store) fieldArgs(p models.Payload) ([]any, error) {
	fields := p.Fields()
	args := make([]any, 0, len(fields))

	for _, f := range fields {
		v, err := s.dialect.encode(f.Kind, f.Value())
		if err != nil {
			return nil, err
		}

		args = append(args, v)
	}

	return args, nil
}

func (s *Store) recordHistory(ctx context.Context, t tx, machineID string, ts time.Time, ev models.ChangeEvent) error {
	if err := validateEvent(ev); err != nil {
		return err
	}

	cs, err := s.sqlFor(ev.Category())
	if err != nil {
		return err
	}

	fields, err := s.fieldArgs(ev.Payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	args := append([]any{machineID, s.encodeTime(ts), string(ev.Action)}, fields...)

	if err := t.exec(ctx, cs.insertHistory, args...); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFailedToInsert, cs.spec.HistoryTable(), err)
	}

	return nil
}

func (s *Store) applyState(ctx context.Context, t tx, machineID string, ts time.Time, ev models.ChangeEvent) error {
	if err := validateEvent(ev); err != nil {
		return err
	}

	cs, err := s.sqlFor(ev.Category())
	if err != nil {
		return err
	}

	if ev.Action == models.ActionDelete {
		args := []any{machineID}
		if cs.spec.Collection {
			args = append(args, ev.EntityID())
		}

		args = append(args, s.encodeTime(ts))

		if err := t.exec(ctx, cs.deleteLatest, args...); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrFailedToDelete, cs.spec.LatestTable(), err)
		}

		return nil
	}

	fields, err := s.fieldArgs(ev.Payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	args := append([]any{machineID, s.encodeTime(ts)}, fields...)

	if err := t.exec(ctx, cs.upsertLatest, args...); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFailedToInsert, cs.spec.LatestTable(), err)
	}

	return nil
}
