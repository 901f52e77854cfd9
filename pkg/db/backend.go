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
)

// Rows is the cursor shared by both backends.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

type queryRows interface {
	Rows
	Columns() ([]string, error)
	Values() ([]any, error)
}

type tx interface {
	exec(ctx context.Context, query string, args ...any) error
	query(ctx context.Context, query string, args ...any) (queryRows, error)
	commit(ctx context.Context) error
	rollback(ctx context.Context) error
}

type backend interface {
	exec(ctx context.Context, query string, args ...any) error
	begin(ctx context.Context, readOnly bool) (tx, error)
	beginQuery(ctx context.Context) (tx, error)
	close()
}

// CloseRows closes rows, ignoring nil.
func CloseRows(rows Rows) {
	if rows != nil {
		rows.Close()
	}
}
