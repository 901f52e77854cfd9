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

// Package state holds the live, log- and poll-driven view of one farming
// machine.
package state

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/carverauto/farmradar/pkg/logger"
	"github.com/carverauto/farmradar/pkg/models"
)

const readyPollInterval = 100 * time.Millisecond

// LogSource identifies a tailed logfile feeding the engine.
type LogSource string

const (
	LogFarmer   LogSource = "farmer"
	LogPlotting LogSource = "plotting"
)

// Config tunes the engine. Zero values fall back to the package defaults.
type Config struct {
	OverdueThreshold time.Duration
	TimeoutThreshold time.Duration
	PlotStaleAfter   time.Duration

	// Location is the zone service log timestamps are written in.
	Location *time.Location
	Now      func() time.Time
}

func (c *Config) applyDefaults() {
	if c.OverdueThreshold == 0 {
		c.OverdueThreshold = models.DefaultOverdueThreshold
	}

	if c.TimeoutThreshold == 0 {
		c.TimeoutThreshold = models.DefaultTimeoutThreshold
	}

	if c.PlotStaleAfter == 0 {
		c.PlotStaleAfter = models.DefaultPlotStaleAfter
	}

	if c.Location == nil {
		c.Location = time.Local
	}

	if c.Now == nil {
		c.Now = time.Now
	}
}

type harvester struct {
	models.FarmerHarvester
	connectedSince time.Time
}

type plotJob struct {
	models.PlotInProgress
	touched time.Time
}

// Engine is the mutable state of one machine. Every mutation and every read
// happens under one mutex; readers get copies.
type Engine struct {
	mu  sync.Mutex
	cfg Config
	log logger.Logger

	harvesters map[string]*harvester
	plots      map[string]*plotJob
	latestPlot string
	plotType   string
	lastSP     time.Time

	farmer         models.FarmerStatus
	harvesterState models.HarvesterStatus
	wallet         models.WalletStatus
	fullNode       models.FullNodeStatus
	harvesterPlots []models.HarvesterPlot

	logsCaughtUp map[LogSource]bool
	pollers      map[string]bool
}

// NewEngine creates an empty engine.
func NewEngine(cfg Config, log logger.Logger) *Engine {
	cfg.applyDefaults()

	return &Engine{
		cfg:          cfg,
		log:          log,
		harvesters:   make(map[string]*harvester),
		plots:        make(map[string]*plotJob),
		logsCaughtUp: make(map[LogSource]bool),
		pollers:      make(map[string]bool),
	}
}

// GetOrCreate returns the connection for a harvester node id, creating it on
// first reference. A non-empty ip replaces the stored address.
func (e *Engine) GetOrCreate(id, ip string) models.FarmerHarvester {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.getOrCreate(id, ip).FarmerHarvester
}

func (e *Engine) getOrCreate(id, ip string) *harvester {
	h, ok := e.harvesters[id]
	if !ok {
		h = &harvester{FarmerHarvester: models.FarmerHarvester{ID: id}}
		e.harvesters[id] = h

		e.log.Debug().Str("harvester_id", id).Str("ip", ip).Msg("Tracking new harvester")
	}

	if ip != "" {
		h.IPAddress = ip
	}

	return h
}

// Harvester returns a copy of one harvester connection.
func (e *Engine) Harvester(id string) (models.FarmerHarvester, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, ok := e.harvesters[id]
	if !ok {
		return models.FarmerHarvester{}, false
	}

	return h.FarmerHarvester, true
}

// Fill copies the engine-owned categories into ci.
func (e *Engine) Fill(ci *models.ComputerInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()

	farmer := e.farmer
	farmer.BlocksFarmed = append([]string(nil), e.farmer.BlocksFarmed...)
	harvesterState := e.harvesterState
	wallet := e.wallet
	fullNode := e.fullNode

	ci.Farmer = &farmer
	ci.Harvester = &harvesterState
	ci.Wallet = &wallet
	ci.FullNode = &fullNode

	ci.HarvesterPlots = append([]models.HarvesterPlot(nil), e.harvesterPlots...)

	ci.FarmerHarvesters = make([]models.FarmerHarvester, 0, len(e.harvesters))
	for _, h := range e.harvesters {
		ci.FarmerHarvesters = append(ci.FarmerHarvesters, h.FarmerHarvester)
	}

	sort.Slice(ci.FarmerHarvesters, func(i, j int) bool {
		return ci.FarmerHarvesters[i].ID < ci.FarmerHarvesters[j].ID
	})

	ci.PlotsInProgress = make([]models.PlotInProgress, 0, len(e.plots))
	for _, p := range e.plots {
		ci.PlotsInProgress = append(ci.PlotsInProgress, p.PlotInProgress)
	}

	sort.Slice(ci.PlotsInProgress, func(i, j int) bool {
		return ci.PlotsInProgress[i].ID < ci.PlotsInProgress[j].ID
	})
}

// ExpectPollers registers the polling loops that must finish a cycle before
// the engine reports ready.
func (e *Engine) ExpectPollers(names ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, name := range names {
		if _, ok := e.pollers[name]; !ok {
			e.pollers[name] = false
		}
	}
}

// MarkPolled records a completed poll cycle.
func (e *Engine) MarkPolled(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pollers[name] = true
}

// ExpectLog registers a logfile that must be caught up before the engine
// reports ready.
func (e *Engine) ExpectLog(src LogSource) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.logsCaughtUp[src]; !ok {
		e.logsCaughtUp[src] = false
	}
}

// MarkCaughtUp records that a logfile backlog has been consumed.
func (e *Engine) MarkCaughtUp(src LogSource) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.logsCaughtUp[src] = true
}

// Ready reports whether every expected logfile is caught up and every
// expected poller completed at least one cycle.
func (e *Engine) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ok := range e.logsCaughtUp {
		if !ok {
			return false
		}
	}

	for _, ok := range e.pollers {
		if !ok {
			return false
		}
	}

	return true
}

// WaitReady blocks until Ready or ctx is done.
func (e *Engine) WaitReady(ctx context.Context) error {
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for !e.Ready() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	return nil
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}

	return a
}
