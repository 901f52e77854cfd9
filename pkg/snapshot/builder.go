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

// Package snapshot assembles machine snapshots and computes the change events
// between two of them.
package snapshot

import (
	"context"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carverauto/farmradar/pkg/collector"
	"github.com/carverauto/farmradar/pkg/logger"
	"github.com/carverauto/farmradar/pkg/models"
)

// StateSource fills the log- and poll-derived categories of a snapshot.
type StateSource interface {
	Fill(ci *models.ComputerInfo)
}

// Builder produces immutable snapshots of one machine.
type Builder struct {
	machineID   string
	machineName string
	source      StateSource
	host        collector.HostCollector
	timeout     time.Duration
	now         func() time.Time
	log         logger.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithTimeout bounds every host collector call of one build.
func WithTimeout(d time.Duration) BuilderOption {
	return func(b *Builder) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithClock overrides the snapshot timestamp source.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		b.now = now
	}
}

// NewBuilder creates a builder. host may be nil, leaving host categories absent.
func NewBuilder(
	machineID, machineName string,
	source StateSource,
	host collector.HostCollector,
	log logger.Logger,
	opts ...BuilderOption,
) *Builder {
	b := &Builder{
		machineID:   machineID,
		machineName: machineName,
		source:      source,
		host:        host,
		timeout:     models.DefaultCollectorTimeout,
		now:         time.Now,
		log:         log,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Build gathers host metrics and engine state concurrently. A failing host
// collector leaves its categories absent; only cancellation of ctx fails
// the build.
func (b *Builder) Build(ctx context.Context) (*models.ComputerInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ci := models.NewComputerInfo(b.machineID, b.machineName, b.now())

	var (
		cpuInfo *models.CPUInfo
		ram     *models.RAMInfo
		swap    *models.SwapInfo
		disks   []models.DiskInfo
	)

	buildCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(buildCtx)

	if b.host != nil {
		g.Go(func() error {
			info, err := b.host.CPU(gctx)
			if err != nil {
				b.log.Debug().Err(err).Msg("CPU collection failed")
				return nil
			}

			cpuInfo = info

			return nil
		})

		g.Go(func() error {
			r, s, err := b.host.Memory(gctx)
			if err != nil {
				b.log.Debug().Err(err).Msg("Memory collection failed")
				return nil
			}

			ram, swap = r, s

			return nil
		})

		g.Go(func() error {
			d, err := b.host.Disks(gctx)
			if err != nil {
				b.log.Debug().Err(err).Msg("Disk collection failed")
				return nil
			}

			disks = d

			return nil
		})
	}

	if b.source != nil {
		g.Go(func() error {
			b.source.Fill(ci)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ci.CPU = cpuInfo
	ci.RAM = ram
	ci.Swap = swap
	ci.Disks = sortedDisks(disks)

	models.Normalize(ci)

	return ci, nil
}

func sortedDisks(disks []models.DiskInfo) []models.DiskInfo {
	slices.SortFunc(disks, func(a, b models.DiskInfo) int {
		return strings.Compare(a.ID, b.ID)
	})

	return disks
}
