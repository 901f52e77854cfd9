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
	"strconv"
	"strings"

	"github.com/carverauto/farmradar/pkg/logtail"
)

var inboundHarvesterTypes = map[string]struct{}{
	"new_proof_of_space":     {},
	"farming_info":           {},
	"respond_signatures":     {},
	"respond_plots":          {},
	"plot_sync_start":        {},
	"plot_sync_loaded":       {},
	"plot_sync_removed":      {},
	"plot_sync_invalid":      {},
	"plot_sync_keys_missing": {},
	"plot_sync_duplicates":   {},
	"plot_sync_done":         {},
	"harvester_handshake":    {},
}

var outboundHarvesterTypes = map[string]struct{}{
	"harvester_handshake":         {},
	"new_signage_point_harvester": {},
	"request_signatures":          {},
	"request_plots":               {},
	"plot_sync_response":          {},
}

// farmerActions are tried in order; the first match handles the line.
var farmerActions = []lineAction{
	{
		name:     "handshake",
		required: []string{"farmer_server", "-> harvester_handshake", "to peer"},
		apply:    (*Engine).onHandshake,
	},
	{
		name:     "outbound",
		required: []string{"farmer_server", "->", "to peer"},
		apply:    (*Engine).onOutbound,
	},
	{
		name:     "inbound",
		required: []string{"farmer_server", "<-", "from peer"},
		apply:    (*Engine).onInbound,
	},
	{
		name:     "closed",
		required: []string{"farmer_server", "Connection closed:", "node id:"},
		apply:    (*Engine).onClosed,
	},
	{
		name:     "proof_found",
		required: []string{"harvester", "plots were eligible", "Found", "proofs"},
		apply:    (*Engine).onProofsFound,
	},
	{
		name:     "block_farmed",
		required: []string{"Farmed unfinished_block"},
		apply:    (*Engine).onBlockFarmed,
	},
	{
		name:     "signage_point",
		required: []string{"Finished signage point"},
		apply:    (*Engine).onSignagePoint,
	},
}

// HandleFarmerLine applies one line of the service log.
func (e *Engine) HandleFarmerLine(l logtail.Line) {
	e.dispatch(farmerActions, e.parseLine(l, true))
}

type peerRef struct {
	msgType string
	host    string
	nodeID  string
}

func (l *logLine) outboundPeer() (peerRef, error) {
	var (
		p   peerRef
		err error
	)

	if p.msgType, err = l.token("->", 1); err != nil {
		return p, err
	}

	if p.host, err = l.token("->", 4); err != nil {
		return p, err
	}

	p.nodeID, err = l.token("->", 5)

	return p, err
}

func (e *Engine) onHandshake(l *logLine) error {
	ts, err := l.timestamp()
	if err != nil {
		return err
	}

	p, err := l.outboundPeer()
	if err != nil {
		return err
	}

	h := e.getOrCreate(p.nodeID, p.host)
	h.LastMessageOutgoing = laterOf(h.LastMessageOutgoing, ts)
	h.IsConnected = true
	h.TimedOut = false
	h.connectedSince = ts
	h.LastUpdate = laterOf(h.LastUpdate, ts)

	return nil
}

func (e *Engine) onOutbound(l *logLine) error {
	ts, err := l.timestamp()
	if err != nil {
		return err
	}

	p, err := l.outboundPeer()
	if err != nil {
		return err
	}

	if _, ok := outboundHarvesterTypes[p.msgType]; !ok {
		return nil
	}

	h := e.getOrCreate(p.nodeID, p.host)
	h.LastMessageOutgoing = laterOf(h.LastMessageOutgoing, ts)
	h.LastUpdate = laterOf(h.LastUpdate, ts)

	return nil
}

func (e *Engine) onInbound(l *logLine) error {
	ts, err := l.timestamp()
	if err != nil {
		return err
	}

	msgType, err := l.token("<-", 1)
	if err != nil {
		return err
	}

	if _, ok := inboundHarvesterTypes[msgType]; !ok {
		return nil
	}

	nodeID, err := l.token("<-", 4)
	if err != nil {
		return err
	}

	host, err := l.token("<-", 5)
	if err != nil {
		return err
	}

	h := e.getOrCreate(nodeID, host)
	h.LastMessageIncoming = laterOf(h.LastMessageIncoming, ts)
	h.NResponses++
	h.TimedOut = false

	if !h.IsConnected {
		h.IsConnected = true
		h.connectedSince = ts
	}

	h.LastUpdate = laterOf(h.LastUpdate, ts)

	return nil
}

func (e *Engine) onClosed(l *logLine) error {
	ts, err := l.timestamp()
	if err != nil {
		return err
	}

	nodeID, err := l.token("closed:", 4)
	if err != nil {
		return err
	}

	host, err := l.token("closed:", 1)
	if err != nil {
		return err
	}

	h, ok := e.harvesters[nodeID]
	if !ok {
		return nil
	}

	h.IPAddress = strings.TrimSuffix(host, ",")
	e.disconnect(h, ts)

	return nil
}

func (e *Engine) onProofsFound(l *logLine) error {
	raw, err := l.token("Found", 1)
	if err != nil {
		return err
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return err
	}

	e.farmer.TotalProofsFound += n

	return nil
}

func (e *Engine) onBlockFarmed(l *logLine) error {
	raw, err := l.token("unfinished_block", 1)
	if err != nil {
		return err
	}

	hash := strings.TrimSuffix(raw, ",")

	for _, b := range e.farmer.BlocksFarmed {
		if b == hash {
			return nil
		}
	}

	e.farmer.BlocksFarmed = append(e.farmer.BlocksFarmed, hash)

	return nil
}

// onSignagePoint evaluates every connected harvester against the overdue and
// timeout thresholds. Signage points not newer than the last one are ignored.
func (e *Engine) onSignagePoint(l *logLine) error {
	ts, err := l.timestamp()
	if err != nil {
		return err
	}

	if !ts.After(e.lastSP) {
		return nil
	}

	e.lastSP = ts

	for _, h := range e.harvesters {
		if !h.IsConnected {
			continue
		}

		elapsed := ts.Sub(laterOf(h.LastMessageIncoming, h.connectedSince))

		if elapsed > e.cfg.OverdueThreshold {
			h.NOverdueResponses++
			h.LastUpdate = laterOf(h.LastUpdate, ts)
		}

		if elapsed > e.cfg.TimeoutThreshold && !h.TimedOut {
			h.TimedOut = true

			e.log.Warn().
				Str("harvester_id", h.ID).
				Str("ip", h.IPAddress).
				Dur("elapsed", elapsed).
				Msg("Harvester timed out")
		}
	}

	return nil
}
