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

// Package agent runs on a farming machine: it tails the service logs, polls
// the control APIs and host metrics, and streams changes to the core.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/carverauto/farmradar/pkg/collector"
	ggrpc "github.com/carverauto/farmradar/pkg/grpc"
	"github.com/carverauto/farmradar/pkg/logger"
	"github.com/carverauto/farmradar/pkg/logtail"
	"github.com/carverauto/farmradar/pkg/models"
	"github.com/carverauto/farmradar/pkg/ratelimit"
	"github.com/carverauto/farmradar/pkg/snapshot"
	"github.com/carverauto/farmradar/pkg/state"
	"github.com/carverauto/farmradar/proto"
)

// Agent owns every long-running loop of one machine.
type Agent struct {
	cfg      *models.AgentConfig
	logger   logger.Logger
	engine   *state.Engine
	farmer   *logtail.Tailer
	plotting *logtail.Tailer
	polls    *PollLoop
	checks   *state.Checks
	sync     *SyncClient

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures an Agent.
type Option func(*options)

type options struct {
	dialer  Dialer
	host    collector.HostCollector
	pollers *Pollers
	procs   state.ProcessChecker
}

// WithDialer replaces the gRPC dialer of the sync client.
func WithDialer(d Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithHostCollector replaces the gopsutil host collector.
func WithHostCollector(h collector.HostCollector) Option {
	return func(o *options) { o.host = h }
}

// WithPollers replaces the control-API pollers.
func WithPollers(p Pollers) Option {
	return func(o *options) { o.pollers = &p }
}

// WithProcessChecker replaces the process lookup used by the regular checks.
func WithProcessChecker(p state.ProcessChecker) Option {
	return func(o *options) { o.procs = p }
}

// New wires an agent from its configuration. cfg must have defaults applied.
func New(cfg *models.AgentConfig, log logger.Logger, opts ...Option) *Agent {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	engine := state.NewEngine(state.Config{
		OverdueThreshold: cfg.Timeouts.Overdue.Std(),
		TimeoutThreshold: cfg.Timeouts.TimedOut.Std(),
		PlotStaleAfter:   cfg.PlotStaleAfter.Std(),
	}, log)

	a := &Agent{cfg: cfg, logger: log, engine: engine}

	engine.ExpectLog(state.LogFarmer)
	a.farmer = a.newTailer(cfg.LogFile, state.LogFarmer)

	if cfg.PlottingLogFile != "" {
		engine.ExpectLog(state.LogPlotting)
		a.plotting = a.newTailer(cfg.PlottingLogFile, state.LogPlotting)
	}

	pollers := o.pollers
	if pollers == nil {
		pollers = &Pollers{
			Farmer:    collector.NewFarmerPoller(cfg.Services.Farmer, log),
			Harvester: collector.NewHarvesterPoller(cfg.Services.Harvester, log),
			Wallet:    collector.NewWalletPoller(cfg.Services.Wallet, log),
			FullNode:  collector.NewFullNodePoller(cfg.Services.FullNode, log),
		}
	}

	a.polls = NewPollLoop(engine, *pollers, cfg.PollInterval.Std(), log)
	engine.ExpectPollers(a.polls.Names()...)

	procs := o.procs
	if procs == nil {
		procs = collector.NewProcesses()
	}

	a.checks = state.NewChecks(engine, procs, cfg.CheckInterval.Std(), log)

	host := o.host
	if host == nil {
		host = collector.NewHost(log, 0)
	}

	builder := snapshot.NewBuilder(cfg.MachineID, cfg.MachineName, engine, host, log)

	dialer := o.dialer
	if dialer == nil {
		dialer = a.dialCore
	}

	a.sync = NewSyncClient(SyncClientConfig{
		MachineID:      cfg.MachineID,
		MachineName:    cfg.MachineName,
		SyncInterval:   cfg.SyncInterval.Std(),
		ReconnectDelay: cfg.ReconnectDelay.Std(),
	}, dialer, builder, engine, ratelimit.New(cfg.RateLimits), log)

	return a
}

func (a *Agent) newTailer(path string, src state.LogSource) *logtail.Tailer {
	return logtail.New(path, a.logger,
		logtail.WithPollInterval(a.cfg.Tailer.PollInterval.Std()),
		logtail.WithReopenDelay(a.cfg.Tailer.ReopenDelay.Std()),
		logtail.WithOnCaughtUp(func() {
			a.logger.Info().Str("log", string(src)).Str("path", path).Msg("Log backlog consumed")
			a.engine.MarkCaughtUp(src)
		}),
	)
}

type connCloser struct {
	closers []io.Closer
}

func (c connCloser) Close() error {
	var errs []error

	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (a *Agent) dialCore(ctx context.Context) (proto.FarmSyncClient, io.Closer, error) {
	provider, err := ggrpc.NewSecurityProvider(ctx, a.cfg.Security, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create security provider: %w", err)
	}

	conn, err := ggrpc.NewClientConn(ctx, a.cfg.ServerAddr, provider)
	if err != nil {
		_ = provider.Close()
		return nil, nil, err
	}

	return proto.NewFarmSyncClient(conn), connCloser{closers: []io.Closer{conn, provider}}, nil
}

// Engine exposes the state engine of the agent.
func (a *Agent) Engine() *state.Engine {
	return a.engine
}

// SyncClient exposes the sync client of the agent.
func (a *Agent) SyncClient() *SyncClient {
	return a.sync
}

// Start runs every loop until Stop or ctx is cancelled.
func (a *Agent) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	a.mu.Lock()
	a.cancel = cancel
	a.done = make(chan struct{})
	done := a.done
	a.mu.Unlock()

	defer close(done)
	defer cancel()

	a.logger.Info().
		Str("machine_id", a.cfg.MachineID).
		Str("server_addr", a.cfg.ServerAddr).
		Str("log_file", a.cfg.LogFile).
		Str("plotting_log_file", a.cfg.PlottingLogFile).
		Msg("Starting agent")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.farmer.Run(gctx, a.engine.HandleFarmerLine)
	})

	if a.plotting != nil {
		path := a.plotting.Path()

		g.Go(func() error {
			return a.plotting.Run(gctx, func(l logtail.Line) {
				a.engine.HandlePlottingLine(path, l)
			})
		})
	}

	g.Go(func() error { return a.polls.Run(gctx) })
	g.Go(func() error { return a.checks.Run(gctx) })
	g.Go(func() error { return a.sync.Run(gctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// Stop cancels every loop and waits for them to return.
func (a *Agent) Stop(ctx context.Context) error {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()

	select {
	case <-done:
		a.logger.Info().Msg("Agent stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
