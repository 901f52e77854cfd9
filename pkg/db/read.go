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

package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/carverauto/farmradar/pkg/models"
)

// maxQueryRows caps ad-hoc query results.
const maxQueryRows = 10000

// HistoryRecord is one stored change of a category.
type HistoryRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	Action    models.Action  `json:"action"`
	Payload   models.Payload `json:"payload"`
}

// Machine is the metadata row of a reporting machine.
type Machine struct {
	MachineID   string    `json:"machine_id"`
	MachineName string    `json:"machine_name"`
	LastContact time.Time `json:"last_contact"`
}

func (s *Store) inReadTx(ctx context.Context, fn func(tx) error) error {
	return s.withRollback(ctx, func(ctx context.Context) (tx, error) {
		return s.backend.begin(ctx, true)
	}, fn)
}

func (s *Store) withRollback(ctx context.Context, begin func(context.Context) (tx, error), fn func(tx) error) error {
	t, err := begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToBegin, err)
	}

	defer func() {
		if err := t.rollback(ctx); err != nil {
			s.log.Debug().Err(err).Msg("read transaction rollback")
		}
	}()

	return fn(t)
}

// scanPayload scans the remaining columns of the current row into p, after
// any leading values given in prefix.
func (s *Store) scanPayload(rows Rows, p models.Payload, prefix ...any) error {
	fields := p.Fields()
	targets := make([]any, 0, len(prefix)+len(fields))
	targets = append(targets, prefix...)

	for _, f := range fields {
		targets = append(targets, s.dialect.scanTarget(f.Kind))
	}

	if err := rows.Scan(targets...); err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToScan, err)
	}

	for i, f := range fields {
		v, err := s.dialect.decode(f.Kind, targets[len(prefix)+i])
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrFailedToScan, f.Name, err)
		}

		if err := f.Set(v); err != nil {
			return fmt.Errorf("%w: %w", ErrFailedToScan, err)
		}
	}

	models.NormalizeTimes(p)

	return nil
}

// ReadLatest returns the latest state of one category for a machine, ordered
// by id for collections.
func (s *Store) ReadLatest(ctx context.Context, c models.Category, machineID string) ([]models.Payload, error) {
	cs, err := s.sqlFor(c)
	if err != nil {
		return nil, err
	}

	var out []models.Payload

	err = s.inReadTx(ctx, func(t tx) error {
		out, err = s.readLatest(ctx, t, cs, machineID)
		return err
	})

	return out, err
}

func (s *Store) readLatest(ctx context.Context, t tx, cs *categorySQL, machineID string) ([]models.Payload, error) {
	rows, err := t.query(ctx, cs.selectLatest, machineID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFailedToQuery, cs.spec.LatestTable(), err)
	}
	defer CloseRows(rows)

	var out []models.Payload

	for rows.Next() {
		p := cs.spec.New()
		if err := s.scanPayload(rows, p); err != nil {
			return nil, err
		}

		out = append(out, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	return out, nil
}

// ReadState reconstructs the last known snapshot of a machine from the latest
// tables. The snapshot timestamp is the machine's last contact.
func (s *Store) ReadState(ctx context.Context, machineID string) (*models.ComputerInfo, bool, error) {
	var (
		ci    *models.ComputerInfo
		found bool
	)

	err := s.inReadTx(ctx, func(t tx) error {
		m, ok, err := s.readMachine(ctx, t, machineID)
		if err != nil || !ok {
			return err
		}

		found = true
		ci = models.NewComputerInfo(m.MachineID, m.MachineName, m.LastContact)

		for _, cs := range s.ordered {
			payloads, err := s.readLatest(ctx, t, cs, machineID)
			if err != nil {
				return err
			}

			cs.spec.Assign(ci, payloads)
		}

		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return ci, found, nil
}

func (s *Store) scanMachine(rows Rows) (Machine, error) {
	var m Machine

	lastContact := s.dialect.scanTarget(models.KindTime)
	if err := rows.Scan(&m.MachineID, &m.MachineName, lastContact); err != nil {
		return m, fmt.Errorf("%w: %w", ErrFailedToScan, err)
	}

	v, err := s.dialect.decode(models.KindTime, lastContact)
	if err != nil {
		return m, fmt.Errorf("%w: %w", ErrFailedToScan, err)
	}

	t, _ := v.(time.Time)
	m.LastContact = models.NormalizeTime(t)

	return m, nil
}

func (s *Store) readMachine(ctx context.Context, t tx, machineID string) (Machine, bool, error) {
	rows, err := t.query(ctx, s.machines.selectOne, machineID)
	if err != nil {
		return Machine{}, false, fmt.Errorf("%w: machines: %w", ErrFailedToQuery, err)
	}
	defer CloseRows(rows)

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Machine{}, false, fmt.Errorf("%w: machines: %w", ErrFailedToQuery, err)
		}

		return Machine{}, false, nil
	}

	m, err := s.scanMachine(rows)
	if err != nil {
		return Machine{}, false, err
	}

	return m, true, nil
}

// ReadMachines lists every machine that ever reported.
func (s *Store) ReadMachines(ctx context.Context) ([]Machine, error) {
	var out []Machine

	err := s.inReadTx(ctx, func(t tx) error {
		rows, err := t.query(ctx, s.machines.selectAll)
		if err != nil {
			return fmt.Errorf("%w: machines: %w", ErrFailedToQuery, err)
		}
		defer CloseRows(rows)

		for rows.Next() {
			m, err := s.scanMachine(rows)
			if err != nil {
				return err
			}

			out = append(out, m)
		}

		return rows.Err()
	})

	return out, err
}

// ReadHistory returns the changes of one category recorded in [from, to],
// grouped by machine id and ordered by time.
func (s *Store) ReadHistory(ctx context.Context, c models.Category, from, to time.Time) (map[string][]HistoryRecord, error) {
	cs, err := s.sqlFor(c)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]HistoryRecord)

	err = s.inReadTx(ctx, func(t tx) error {
		rows, err := t.query(ctx, cs.selectHistory, s.encodeTime(from), s.encodeTime(to))
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrFailedToQuery, cs.spec.HistoryTable(), err)
		}
		defer CloseRows(rows)

		for rows.Next() {
			var (
				machineID string
				action    string
			)

			tsTarget := s.dialect.scanTarget(models.KindTime)
			p := cs.spec.New()

			if err := s.scanPayload(rows, p, &machineID, tsTarget, &action); err != nil {
				return err
			}

			v, err := s.dialect.decode(models.KindTime, tsTarget)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrFailedToScan, err)
			}

			ts, _ := v.(time.Time)

			out[machineID] = append(out[machineID], HistoryRecord{
				Timestamp: models.NormalizeTime(ts),
				Action:    models.Action(action),
				Payload:   p,
			})
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Query runs a single ad-hoc statement in a read-only transaction. On SQLite
// the statement runs on a connection opened in read-only mode.
func (s *Store) Query(ctx context.Context, query string, params ...any) ([]map[string]any, error) {
	if err := singleStatement(query); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	var out []map[string]any

	err := s.withRollback(ctx, s.backend.beginQuery, func(t tx) error {
		rows, err := t.query(ctx, query, params...)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFailedToQuery, err)
		}
		defer CloseRows(rows)

		cols, err := rows.Columns()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFailedToQuery, err)
		}

		for rows.Next() {
			if len(out) >= maxQueryRows {
				break
			}

			vals, err := rows.Values()
			if err != nil {
				return fmt.Errorf("%w: %w", ErrFailedToScan, err)
			}

			out = append(out, convertRow(cols, vals))
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrFailedToQuery, err)
		}

		return nil
	})

	return out, err
}

func convertRow(columns []string, values []any) map[string]any {
	row := make(map[string]any, len(columns))

	for i, col := range columns {
		if b, ok := values[i].([]byte); ok {
			row[col] = string(b)
			continue
		}

		row[col] = values[i]
	}

	return row
}

// singleStatement rejects input holding more than one statement. Semicolons
// inside literals, quoted identifiers and comments are ignored, and trailing
// semicolons are allowed.
func singleStatement(query string) error {
	ended := false

	for i := 0; i < len(query); i++ {
		c := query[i]

		switch {
		case c == ';':
			ended = true

			continue
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			continue
		case c == '-' && i+1 < len(query) && query[i+1] == '-':
			for i < len(query) && query[i] != '\n' {
				i++
			}

			continue
		case c == '/' && i+1 < len(query) && query[i+1] == '*':
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				return nil
			}

			i += end + 3

			continue
		}

		if ended {
			return ErrMultiStatement
		}

		switch c {
		case '\'', '"', '`':
			end := strings.IndexByte(query[i+1:], c)
			if end < 0 {
				return nil
			}

			i += end + 1
		case '$':
			tag := dollarTag(query[i:])
			if tag == "" {
				continue
			}

			end := strings.Index(query[i+len(tag):], tag)
			if end < 0 {
				return nil
			}

			i += len(tag) + end + len(tag) - 1
		}
	}

	return nil
}

// dollarTag returns the opening tag of a Postgres dollar-quoted string at the
// start of s, or "" when s does not start one.
func dollarTag(s string) string {
	for j := 1; j < len(s); j++ {
		switch c := s[j]; {
		case c == '$':
			return s[:j+1]
		case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (j > 1 && c >= '0' && c <= '9'):
		default:
			return ""
		}
	}

	return ""
}
