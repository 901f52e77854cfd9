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

package agent

import (
	"context"
	"sync"
	"time"

	"github.com/carverauto/farmradar/pkg/collector"
	"github.com/carverauto/farmradar/pkg/logger"
	"github.com/carverauto/farmradar/pkg/models"
	"github.com/carverauto/farmradar/pkg/state"
)

const (
	pollerFarmer    = "farmer"
	pollerHarvester = "harvester"
	pollerWallet    = "wallet"
	pollerFullNode  = "full_node"
)

// Pollers are the control-API collaborators of one agent. Nil pollers are
// skipped.
type Pollers struct {
	Farmer    collector.FarmerPoller
	Harvester collector.HarvesterPoller
	Wallet    collector.WalletPoller
	FullNode  collector.FullNodePoller
}

// PollLoop periodically polls every service and applies the results to the
// engine.
type PollLoop struct {
	engine   *state.Engine
	pollers  Pollers
	interval time.Duration
	logger   logger.Logger
}

// NewPollLoop creates a poll loop.
func NewPollLoop(engine *state.Engine, pollers Pollers, interval time.Duration, log logger.Logger) *PollLoop {
	if interval <= 0 {
		interval = models.DefaultPollInterval
	}

	return &PollLoop{
		engine:   engine,
		pollers:  pollers,
		interval: interval,
		logger:   log,
	}
}

// Names lists the configured pollers, for readiness tracking.
func (p *PollLoop) Names() []string {
	var names []string

	if p.pollers.Farmer != nil {
		names = append(names, pollerFarmer)
	}

	if p.pollers.Harvester != nil {
		names = append(names, pollerHarvester)
	}

	if p.pollers.Wallet != nil {
		names = append(names, pollerWallet)
	}

	if p.pollers.FullNode != nil {
		names = append(names, pollerFullNode)
	}

	return names
}

// Run polls immediately and then once per interval until ctx is cancelled.
func (p *PollLoop) Run(ctx context.Context) error {
	p.logger.Info().Dur("interval", p.interval).Strs("pollers", p.Names()).Msg("Starting poll loop")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.PollOnce(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// PollOnce runs one cycle of every poller concurrently and waits for all of
// them.
func (p *PollLoop) PollOnce(ctx context.Context) {
	var wg sync.WaitGroup

	run := func(name string, poll func(context.Context)) {
		wg.Add(1)

		go func() {
			defer wg.Done()

			poll(ctx)

			if ctx.Err() == nil {
				p.engine.MarkPolled(name)
			}
		}()
	}

	if p.pollers.Farmer != nil {
		run(pollerFarmer, p.pollFarmer)
	}

	if p.pollers.Harvester != nil {
		run(pollerHarvester, p.pollHarvester)
	}

	if p.pollers.Wallet != nil {
		run(pollerWallet, p.pollWallet)
	}

	if p.pollers.FullNode != nil {
		run(pollerFullNode, p.pollFullNode)
	}

	wg.Wait()
}

func (p *PollLoop) pollFarmer(ctx context.Context) {
	res := p.pollers.Farmer.Poll(ctx)

	info, ok := res.Get()
	if !ok {
		p.logger.Debug().Err(res.Reason()).Msg("Farmer unavailable")
		p.engine.FarmerUnavailable()

		return
	}

	p.engine.ReconcileFarmer(info.Peers)
}

func (p *PollLoop) pollHarvester(ctx context.Context) {
	res := p.pollers.Harvester.Poll(ctx)

	info, ok := res.Get()
	if !ok {
		p.logger.Debug().Err(res.Reason()).Msg("Harvester unavailable")
		p.engine.HarvesterUnavailable()

		return
	}

	p.engine.SetHarvester(info.Status, info.Plots)
}

func (p *PollLoop) pollWallet(ctx context.Context) {
	res := p.pollers.Wallet.Poll(ctx)

	status, ok := res.Get()
	if !ok {
		p.logger.Debug().Err(res.Reason()).Msg("Wallet unavailable")
		p.engine.WalletUnavailable()

		return
	}

	p.engine.SetWallet(status)
}

func (p *PollLoop) pollFullNode(ctx context.Context) {
	res := p.pollers.FullNode.Poll(ctx)

	status, ok := res.Get()
	if !ok {
		p.logger.Debug().Err(res.Reason()).Msg("Full node unavailable")
		p.engine.FullNodeUnavailable()

		return
	}

	p.engine.SetFullNode(status)
}
