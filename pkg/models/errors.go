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

import "errors"

var (
	errInvalidDuration = errors.New("invalid duration")

	// ErrUnknownCategory is returned when a category is not part of Schema.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrUnknownAction is returned for an action outside ADD, UPDATE and DELETE.
	ErrUnknownAction = errors.New("unknown action")
	// ErrFieldType is returned when a value cannot be assigned to a field.
	ErrFieldType = errors.New("field type mismatch")
	// ErrUnknownField is returned when a column does not match any payload field.
	ErrUnknownField = errors.New("unknown field")

	errMachineIDRequired     = errors.New("machine_id is required")
	errServerAddrRequired    = errors.New("server_addr is required")
	errLogFileRequired       = errors.New("log_file is required")
	errListenAddrRequired    = errors.New("listen_addr is required")
	errDatabaseDriver        = errors.New("database.driver must be postgres or sqlite")
	errDatabasePathRequired  = errors.New("database.path is required for sqlite")
	errDatabaseURLRequired   = errors.New("database.url is required for postgres")
	errSecurityModeInvalid   = errors.New("security.mode must be none or mtls")
	errSecurityFilesRequired = errors.New("security.tls cert_file, key_file and ca_file are required for mtls")
	errTimeoutOrder          = errors.New("timeouts.overdue must be shorter than timeouts.timed_out")
	errNATSURLRequired       = errors.New("nats.url is required when nats is enabled")
	errRateLimitCategory     = errors.New("rate_limits references an unknown category")
)
