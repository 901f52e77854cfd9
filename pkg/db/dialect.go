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
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/carverauto/farmradar/pkg/models"
)

// sqliteTimeLayout is fixed width so stored timestamps compare correctly as
// text.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z"

// dialect maps registry kinds onto one SQL backend.
type dialect interface {
	placeholder(n int) string
	columnType(k models.FieldKind) string
	encode(k models.FieldKind, v any) (any, error)
	scanTarget(k models.FieldKind) any
	decode(k models.FieldKind, target any) (any, error)
}

type postgresDialect struct{}

func (postgresDialect) placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func (postgresDialect) columnType(k models.FieldKind) string {
	switch k {
	case models.KindString:
		return "TEXT"
	case models.KindInt:
		return "BIGINT"
	case models.KindFloat:
		return "DOUBLE PRECISION"
	case models.KindBool:
		return "BOOLEAN"
	case models.KindTime:
		return "TIMESTAMPTZ"
	case models.KindStringList:
		return "TEXT[]"
	default:
		return "TEXT"
	}
}

func (postgresDialect) encode(k models.FieldKind, v any) (any, error) {
	switch k {
	case models.KindTime:
		t, _ := v.(time.Time)
		return models.NormalizeTime(t), nil
	case models.KindStringList:
		list, _ := v.([]string)
		if list == nil {
			list = []string{}
		}

		return list, nil
	case models.KindString, models.KindInt, models.KindFloat, models.KindBool:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: kind %s", ErrInvalidEvent, k)
	}
}

func (postgresDialect) scanTarget(k models.FieldKind) any {
	switch k {
	case models.KindInt:
		return new(int64)
	case models.KindFloat:
		return new(float64)
	case models.KindBool:
		return new(bool)
	case models.KindTime:
		return new(time.Time)
	case models.KindStringList:
		return new([]string)
	case models.KindString:
		return new(string)
	default:
		return new(string)
	}
}

func (postgresDialect) decode(_ models.FieldKind, target any) (any, error) {
	return deref(target), nil
}

type sqliteDialect struct{}

func (sqliteDialect) placeholder(int) string {
	return "?"
}

func (sqliteDialect) columnType(k models.FieldKind) string {
	switch k {
	case models.KindInt, models.KindBool:
		return "INTEGER"
	case models.KindFloat:
		return "REAL"
	case models.KindString, models.KindTime, models.KindStringList:
		return "TEXT"
	default:
		return "TEXT"
	}
}

func (sqliteDialect) encode(k models.FieldKind, v any) (any, error) {
	switch k {
	case models.KindTime:
		t, _ := v.(time.Time)
		return formatSQLiteTime(t), nil
	case models.KindStringList:
		list, _ := v.([]string)
		if list == nil {
			list = []string{}
		}

		raw, err := json.Marshal(list)
		if err != nil {
			return nil, err
		}

		return string(raw), nil
	case models.KindBool:
		if b, _ := v.(bool); b {
			return int64(1), nil
		}

		return int64(0), nil
	case models.KindString, models.KindInt, models.KindFloat:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: kind %s", ErrInvalidEvent, k)
	}
}

func (sqliteDialect) scanTarget(k models.FieldKind) any {
	switch k {
	case models.KindInt:
		return new(int64)
	case models.KindFloat:
		return new(float64)
	case models.KindBool:
		return new(bool)
	case models.KindString, models.KindTime, models.KindStringList:
		return new(string)
	default:
		return new(string)
	}
}

func (sqliteDialect) decode(k models.FieldKind, target any) (any, error) {
	switch k {
	case models.KindTime:
		return parseSQLiteTime(*target.(*string))
	case models.KindStringList:
		var list []string
		if err := json.Unmarshal([]byte(*target.(*string)), &list); err != nil {
			return nil, err
		}

		return list, nil
	case models.KindString, models.KindInt, models.KindFloat, models.KindBool:
		return deref(target), nil
	default:
		return deref(target), nil
	}
}

func formatSQLiteTime(t time.Time) string {
	return models.NormalizeTime(t).Format(sqliteTimeLayout)
}

func parseSQLiteTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}, err
	}

	return models.NormalizeTime(t), nil
}

func deref(target any) any {
	switch p := target.(type) {
	case *string:
		return *p
	case *int64:
		return *p
	case *float64:
		return *p
	case *bool:
		return *p
	case *time.Time:
		return *p
	case *[]string:
		return *p
	default:
		return target
	}
}
