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

package collector

// Result is the outcome of one poll: a value, or the reason none is
// available.
type Result[T any] struct {
	value  T
	reason error
	ok     bool
}

// Ok wraps a successful poll value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Unavailable reports a failed poll.
func Unavailable[T any](reason error) Result[T] {
	if reason == nil {
		reason = errRPCFailed
	}

	return Result[T]{reason: reason}
}

// Get returns the value and whether the poll succeeded.
func (r Result[T]) Get() (T, bool) {
	return r.value, r.ok
}

// IsOk reports whether the poll succeeded.
func (r Result[T]) IsOk() bool {
	return r.ok
}

// Reason is nil for Ok results.
func (r Result[T]) Reason() error {
	return r.reason
}
