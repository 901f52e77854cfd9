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
	"database/sql"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/carverauto/farmradar/pkg/logger"
	"github.com/carverauto/farmradar/pkg/models"
)

const sqliteDriverName = "sqlite"

// OpenSQLite opens (creating if needed) a SQLite database file. The handle is
// limited to one connection, so writers never contend for the file lock.
func OpenSQLite(ctx context.Context, cfg *models.DatabaseConfig, log logger.Logger) (*sql.DB, error) {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")

	dsn := "file:" + cfg.Path + "?" + q.Encode()

	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: sqlite: %w", ErrFailedOpenDB, err)
	}

	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: sqlite: %w", ErrFailedOpenDB, err)
	}

	log.Info().Str("path", cfg.Path).Msg("opened SQLite database")

	return db, nil
}

// OpenSQLiteReader opens a second handle on the same file in read-only mode.
// The connection is established lazily, so the file must exist before the
// first query.
func OpenSQLiteReader(cfg *models.DatabaseConfig) (*sql.DB, error) {
	q := url.Values{}
	q.Add("mode", "ro")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "query_only(1)")

	db, err := sql.Open(sqliteDriverName, "file:"+cfg.Path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("%w: sqlite: %w", ErrFailedOpenDB, err)
	}

	return db, nil
}

type sqlBackend struct {
	db *sql.DB
	ro *sql.DB
}

func (b *sqlBackend) exec(ctx context.Context, query string, args ...any) error {
	_, err := b.db.ExecContext(ctx, query, args...)
	return err
}

func (b *sqlBackend) begin(ctx context.Context, readOnly bool) (tx, error) {
	t, err := b.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: readOnly})
	if err != nil {
		return nil, err
	}

	pragma := "PRAGMA query_only = OFF"
	if readOnly {
		pragma = "PRAGMA query_only = ON"
	}

	if _, err := t.ExecContext(ctx, pragma); err != nil {
		_ = t.Rollback()
		return nil, err
	}

	return &sqlTx{tx: t, readOnly: readOnly}, nil
}

// beginQuery starts a transaction on the read-only handle. Statements that
// end the transaction early still cannot write through it.
func (b *sqlBackend) beginQuery(ctx context.Context) (tx, error) {
	if b.ro == nil {
		return b.begin(ctx, true)
	}

	t, err := b.ro.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}

	return &sqlTx{tx: t}, nil
}

func (b *sqlBackend) close() {
	if b.ro != nil {
		_ = b.ro.Close()
	}

	_ = b.db.Close()
}

type sqlTx struct {
	tx       *sql.Tx
	readOnly bool
}

func (t *sqlTx) exec(ctx context.Context, query string, args ...any) error {
	_, err := t.tx.ExecContext(ctx, query, args...)
	return err
}

func (t *sqlTx) query(ctx context.Context, query string, args ...any) (queryRows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return &sqlRows{Rows: rows}, nil
}

func (t *sqlTx) commit(context.Context) error {
	t.resetQueryOnly()
	return t.tx.Commit()
}

func (t *sqlTx) rollback(context.Context) error {
	t.resetQueryOnly()
	return t.tx.Rollback()
}

// resetQueryOnly clears the per-connection query_only flag before the
// connection returns to the pool. Writable transactions clear it on begin as
// well, in case a cancelled read never reached this point.
func (t *sqlTx) resetQueryOnly() {
	if t.readOnly {
		_, _ = t.tx.ExecContext(context.Background(), "PRAGMA query_only = OFF")
		t.readOnly = false
	}
}

type sqlRows struct {
	*sql.Rows
}

func (r *sqlRows) Close() {
	_ = r.Rows.Close()
}

func (r *sqlRows) Values() ([]any, error) {
	cols, err := r.Rows.Columns()
	if err != nil {
		return nil, err
	}

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))

	for i := range vals {
		ptrs[i] = &vals[i]
	}

	if err := r.Rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	return vals, nil
}
