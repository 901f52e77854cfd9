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
	"sort"
	"time"

	"github.com/carverauto/farmradar/pkg/models"
)

// ReconcileFarmer applies a successful farmer poll: listed peers are
// connected, every other known harvester is disconnected.
func (e *Engine) ReconcileFarmer(peers []models.HarvesterPeer) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.cfg.Now()
	e.farmer.IsReady = true
	e.farmer.IsRunning = true

	listed := make(map[string]struct{}, len(peers))

	for _, p := range peers {
		if p.NodeID == "" {
			continue
		}

		listed[p.NodeID] = struct{}{}

		h := e.getOrCreate(p.NodeID, p.Host)
		if !h.IsConnected {
			h.IsConnected = true
			h.TimedOut = false
			h.connectedSince = now
			h.LastUpdate = laterOf(h.LastUpdate, now)
		}
	}

	for id, h := range e.harvesters {
		if _, ok := listed[id]; ok {
			continue
		}

		e.disconnect(h, now)
	}
}

// FarmerUnavailable marks the farmer stopped and disconnects every harvester.
// Log-derived counters are kept.
func (e *Engine) FarmerUnavailable() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.farmer.IsReady = true
	e.farmer.IsRunning = false
	e.disconnectAll()
}

// DisconnectAll marks every harvester connection closed.
func (e *Engine) DisconnectAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.disconnectAll()
}

func (e *Engine) disconnectAll() {
	now := e.cfg.Now()

	for _, h := range e.harvesters {
		e.disconnect(h, now)
	}
}

func (*Engine) disconnect(h *harvester, now time.Time) {
	if !h.IsConnected && !h.TimedOut {
		return
	}

	h.IsConnected = false
	h.TimedOut = false
	h.connectedSince = time.Time{}
	h.LastUpdate = laterOf(h.LastUpdate, now)
}

// FarmerRunning reports the last polled farmer state.
func (e *Engine) FarmerRunning() (ready, running bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.farmer.IsReady, e.farmer.IsRunning
}

// SetHarvester applies a successful harvester poll.
func (e *Engine) SetHarvester(status models.HarvesterStatus, plots []models.HarvesterPlot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	status.IsReady = true
	status.IsRunning = true
	e.harvesterState = status

	e.harvesterPlots = append(e.harvesterPlots[:0:0], plots...)
	sort.Slice(e.harvesterPlots, func(i, j int) bool {
		return e.harvesterPlots[i].ID < e.harvesterPlots[j].ID
	})
}

// HarvesterUnavailable zeroes the harvester status and its plot list.
func (e *Engine) HarvesterUnavailable() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.harvesterState = models.HarvesterStatus{IsReady: true}
	e.harvesterPlots = nil
}

// SetWallet applies a successful wallet poll.
func (e *Engine) SetWallet(status models.WalletStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()

	status.IsReady = true
	status.IsRunning = true
	e.wallet = status
}

// WalletUnavailable zeroes the wallet status.
func (e *Engine) WalletUnavailable() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.wallet = models.WalletStatus{IsReady: true}
}

// SetFullNode applies a successful full node poll.
func (e *Engine) SetFullNode(status models.FullNodeStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()

	status.IsReady = true
	status.IsRunning = true
	e.fullNode = status
}

// FullNodeUnavailable zeroes the full node status.
func (e *Engine) FullNodeUnavailable() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.fullNode = models.FullNodeStatus{IsReady: true}
}
