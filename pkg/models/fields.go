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

package models

import (
	"fmt"
	"time"
)

// FieldKind is the storage-level type of a payload field.
type FieldKind int

const (
	KindString FieldKind = iota + 1
	KindInt
	KindFloat
	KindBool
	KindTime
	KindStringList
)

func (k FieldKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindStringList:
		return "string_list"
	default:
		return fmt.Sprintf("FieldKind(%d)", int(k))
	}
}

// Field binds a column name and kind to one struct field of a payload.
// Values cross the boundary as string, int64, float64, bool, time.Time or
// []string depending on Kind.
type Field struct {
	Name string
	Kind FieldKind

	get func() any
	set func(any) error
}

// Value returns the current value of the bound struct field.
func (f Field) Value() any {
	return f.get()
}

// Set assigns v to the bound struct field. A nil v resets it to the zero value.
func (f Field) Set(v any) error {
	if err := f.set(v); err != nil {
		return fmt.Errorf("%w: %s (%s) from %T", ErrFieldType, f.Name, f.Kind, v)
	}

	return nil
}

// StringField binds a string-like struct field.
func StringField[S ~string](name string, p *S) Field {
	return Field{
		Name: name,
		Kind: KindString,
		get:  func() any { return string(*p) },
		set: func(v any) error {
			switch x := v.(type) {
			case nil:
				*p = ""
			case string:
				*p = S(x)
			case []byte:
				*p = S(x)
			default:
				return ErrFieldType
			}

			return nil
		},
	}
}

// IntField binds an integer struct field.
func IntField[I ~int | ~int32 | ~int64](name string, p *I) Field {
	return Field{
		Name: name,
		Kind: KindInt,
		get:  func() any { return int64(*p) },
		set: func(v any) error {
			switch x := v.(type) {
			case nil:
				*p = 0
			case int64:
				*p = I(x)
			case int32:
				*p = I(x)
			case int:
				*p = I(x)
			case float64:
				*p = I(x)
			default:
				return ErrFieldType
			}

			return nil
		},
	}
}

// FloatField binds a float64 struct field.
func FloatField(name string, p *float64) Field {
	return Field{
		Name: name,
		Kind: KindFloat,
		get:  func() any { return *p },
		set: func(v any) error {
			switch x := v.(type) {
			case nil:
				*p = 0
			case float64:
				*p = x
			case float32:
				*p = float64(x)
			case int64:
				*p = float64(x)
			default:
				return ErrFieldType
			}

			return nil
		},
	}
}

// BoolField binds a bool struct field.
func BoolField(name string, p *bool) Field {
	return Field{
		Name: name,
		Kind: KindBool,
		get:  func() any { return *p },
		set: func(v any) error {
			switch x := v.(type) {
			case nil:
				*p = false
			case bool:
				*p = x
			case int64:
				*p = x != 0
			default:
				return ErrFieldType
			}

			return nil
		},
	}
}

// TimeField binds a time.Time struct field.
func TimeField(name string, p *time.Time) Field {
	return Field{
		Name: name,
		Kind: KindTime,
		get:  func() any { return *p },
		set: func(v any) error {
			switch x := v.(type) {
			case nil:
				*p = time.Time{}
			case time.Time:
				*p = x
			default:
				return ErrFieldType
			}

			return nil
		},
	}
}

// StringListField binds a []string struct field.
func StringListField(name string, p *[]string) Field {
	return Field{
		Name: name,
		Kind: KindStringList,
		get:  func() any { return *p },
		set: func(v any) error {
			switch x := v.(type) {
			case nil:
				*p = nil
			case []string:
				*p = x
			default:
				return ErrFieldType
			}

			return nil
		},
	}
}

// Column is the name and kind of a field, detached from any payload value.
type Column struct {
	Name string
	Kind FieldKind
}

// FieldMap indexes the fields of p by name.
func FieldMap(p Payload) map[string]Field {
	fields := p.Fields()
	m := make(map[string]Field, len(fields))

	for _, f := range fields {
		m[f.Name] = f
	}

	return m
}

// NormalizeTimes rewrites every time field of p with NormalizeTime.
func NormalizeTimes(p Payload) {
	for _, f := range p.Fields() {
		if f.Kind != KindTime {
			continue
		}

		t, _ := f.Value().(time.Time)
		_ = f.Set(NormalizeTime(t))
	}
}
