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

import (
	"context"
	"math"

	"github.com/shirou/gopsutil/v3/process"
)

// Processes checks OS process liveness.
type Processes struct {
	pidExists func(context.Context, int32) (bool, error)
}

// NewProcesses returns a gopsutil-backed process checker.
func NewProcesses() *Processes {
	return &Processes{pidExists: process.PidExistsWithContext}
}

// Exists reports whether pid is a live process.
func (p *Processes) Exists(ctx context.Context, pid int64) (bool, error) {
	if pid <= 0 || pid > math.MaxInt32 {
		return false, nil
	}

	return p.pidExists(ctx, int32(pid))
}
