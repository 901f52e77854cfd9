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

package state

import (
	"context"
	"time"

	"github.com/carverauto/farmradar/pkg/logger"
	"github.com/carverauto/farmradar/pkg/models"
)

// ProcessChecker reports whether an OS process is still alive.
type ProcessChecker interface {
	Exists(ctx context.Context, pid int64) (bool, error)
}

// Checks is the periodic housekeeping over an Engine.
type Checks struct {
	engine   *Engine
	procs    ProcessChecker
	interval time.Duration
	log      logger.Logger
}

// NewChecks creates the housekeeping loop. A zero interval uses the default.
func NewChecks(engine *Engine, procs ProcessChecker, interval time.Duration, log logger.Logger) *Checks {
	if interval <= 0 {
		interval = models.DefaultCheckInterval
	}

	return &Checks{
		engine:   engine,
		procs:    procs,
		interval: interval,
		log:      log,
	}
}

// Run executes the checks on every tick until ctx is done.
func (c *Checks) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce executes one round of checks.
func (c *Checks) RunOnce(ctx context.Context) {
	if ready, running := c.engine.FarmerRunning(); ready && !running {
		c.engine.DisconnectAll()
	}

	c.evictPlots(ctx)
}

func (c *Checks) evictPlots(ctx context.Context) {
	now := c.engine.cfg.Now()
	staleAfter := c.engine.cfg.PlotStaleAfter

	for _, ref := range c.engine.plotRefs() {
		if ref.processID > 0 && c.procs != nil {
			alive, err := c.procs.Exists(ctx, ref.processID)
			if err != nil {
				c.log.Debug().Err(err).Int64("pid", ref.processID).Msg("Process check failed")
				continue
			}

			if !alive {
				c.log.Info().Str("plot_id", ref.id).Int64("pid", ref.processID).Msg("Plotting process gone")
				c.engine.removePlot(ref.id)
			}

			continue
		}

		if now.Sub(ref.touched) > staleAfter {
			c.log.Info().Str("plot_id", ref.id).Msg("Evicting stale plotting job")
			c.engine.removePlot(ref.id)
		}
	}
}
