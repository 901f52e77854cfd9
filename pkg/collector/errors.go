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

import "errors"

var (
	// ErrNotConfigured is the Unavailable reason for services without an endpoint.
	ErrNotConfigured = errors.New("service not configured")

	errURLRequired     = errors.New("rpc url is required")
	errRPCStatus       = errors.New("unexpected rpc response status")
	errRPCFailed       = errors.New("rpc call reported failure")
	errLoadClientCert  = errors.New("failed to load rpc client certificate")
	errReadCACert      = errors.New("failed to read rpc CA certificate")
	errAppendCACert    = errors.New("failed to append rpc CA certificate")
	errNoCertificate   = errors.New("server presented no certificate")
	errNoCPUInfo       = errors.New("no cpu information")
	errHostUnavailable = errors.New("host metric unavailable")
)
