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
	"encoding/json"
	"math"
	"time"

	"github.com/carverauto/farmradar/pkg/logger"
	"github.com/carverauto/farmradar/pkg/models"
)

const harvesterNodeType = 2

type unavailablePoller[T any] struct {
	reason error
}

func (p unavailablePoller[T]) Poll(context.Context) Result[T] {
	return Unavailable[T](p.reason)
}

func newClient(name string, ep *models.RPCEndpoint, log logger.Logger) (*RPCClient, error) {
	client, err := NewRPCClient(ep, log)
	if err != nil && ep != nil {
		log.Warn().Err(err).Str("service", name).Msg("Control API client unavailable")
	}

	return client, err
}

type farmerRPC struct {
	client *RPCClient
}

// NewFarmerPoller polls get_connections. A nil endpoint yields a poller that
// always reports ErrNotConfigured.
func NewFarmerPoller(ep *models.RPCEndpoint, log logger.Logger) FarmerPoller {
	client, err := newClient("farmer", ep, log)
	if err != nil {
		return unavailablePoller[FarmerInfo]{reason: err}
	}

	return &farmerRPC{client: client}
}

func (p *farmerRPC) Poll(ctx context.Context) Result[FarmerInfo] {
	var resp struct {
		Connections []struct {
			NodeID   string `json:"node_id"`
			PeerHost string `json:"peer_host"`
			Type     int    `json:"type"`
		} `json:"connections"`
	}

	if err := p.client.Call(ctx, "get_connections", nil, &resp); err != nil {
		return Unavailable[FarmerInfo](err)
	}

	info := FarmerInfo{Peers: make([]models.HarvesterPeer, 0, len(resp.Connections))}

	for _, c := range resp.Connections {
		if c.Type != harvesterNodeType {
			continue
		}

		info.Peers = append(info.Peers, models.HarvesterPeer{NodeID: c.NodeID, Host: c.PeerHost})
	}

	return Ok(info)
}

type harvesterRPC struct {
	client *RPCClient
}

// NewHarvesterPoller polls get_plots.
func NewHarvesterPoller(ep *models.RPCEndpoint, log logger.Logger) HarvesterPoller {
	client, err := newClient("harvester", ep, log)
	if err != nil {
		return unavailablePoller[HarvesterInfo]{reason: err}
	}

	return &harvesterRPC{client: client}
}

func (p *harvesterRPC) Poll(ctx context.Context) Result[HarvesterInfo] {
	var resp struct {
		Plots []struct {
			PlotID          string  `json:"plot_id"`
			Filename        string  `json:"filename"`
			Size            int64   `json:"size"`
			FileSize        int64   `json:"file_size"`
			PoolPublicKey   string  `json:"pool_public_key"`
			FarmerPublicKey string  `json:"farmer_public_key"`
			PlotPublicKey   string  `json:"plot_public_key"`
			TimeModified    float64 `json:"time_modified"`
		} `json:"plots"`
		FailedToOpen []string `json:"failed_to_open_filenames"`
		NotFound     []string `json:"not_found_filenames"`
	}

	if err := p.client.Call(ctx, "get_plots", nil, &resp); err != nil {
		return Unavailable[HarvesterInfo](err)
	}

	info := HarvesterInfo{
		Status: models.HarvesterStatus{
			NPlots:        int64(len(resp.Plots)),
			NFailedToOpen: int64(len(resp.FailedToOpen)),
			NNotFound:     int64(len(resp.NotFound)),
		},
		Plots: make([]models.HarvesterPlot, 0, len(resp.Plots)),
	}

	for _, plot := range resp.Plots {
		info.Status.TotalPlotSizeBytes += plot.FileSize
		info.Plots = append(info.Plots, models.HarvesterPlot{
			ID:              plot.PlotID,
			Filename:        plot.Filename,
			Size:            plot.Size,
			FileSizeBytes:   plot.FileSize,
			PoolPublicKey:   plot.PoolPublicKey,
			FarmerPublicKey: plot.FarmerPublicKey,
			PlotPublicKey:   plot.PlotPublicKey,
			TimeModified:    unixSeconds(plot.TimeModified),
		})
	}

	return Ok(info)
}

type walletRPC struct {
	client *RPCClient
}

// NewWalletPoller polls get_sync_status and get_wallets.
func NewWalletPoller(ep *models.RPCEndpoint, log logger.Logger) WalletPoller {
	client, err := newClient("wallet", ep, log)
	if err != nil {
		return unavailablePoller[models.WalletStatus]{reason: err}
	}

	return &walletRPC{client: client}
}

func (p *walletRPC) Poll(ctx context.Context) Result[models.WalletStatus] {
	var syncResp struct {
		Synced bool `json:"synced"`
	}

	if err := p.client.Call(ctx, "get_sync_status", nil, &syncResp); err != nil {
		return Unavailable[models.WalletStatus](err)
	}

	var walletsResp struct {
		Wallets []json.RawMessage `json:"wallets"`
	}

	if err := p.client.Call(ctx, "get_wallets", nil, &walletsResp); err != nil {
		return Unavailable[models.WalletStatus](err)
	}

	return Ok(models.WalletStatus{
		IsSynced: syncResp.Synced,
		NWallets: int64(len(walletsResp.Wallets)),
	})
}

type fullNodeRPC struct {
	client *RPCClient
}

// NewFullNodePoller polls get_blockchain_state.
func NewFullNodePoller(ep *models.RPCEndpoint, log logger.Logger) FullNodePoller {
	client, err := newClient("full_node", ep, log)
	if err != nil {
		return unavailablePoller[models.FullNodeStatus]{reason: err}
	}

	return &fullNodeRPC{client: client}
}

func (p *fullNodeRPC) Poll(ctx context.Context) Result[models.FullNodeStatus] {
	var resp struct {
		BlockchainState struct {
			Peak *struct {
				Height int64 `json:"height"`
			} `json:"peak"`
			Sync struct {
				Synced             bool  `json:"synced"`
				SyncTipHeight      int64 `json:"sync_tip_height"`
				SyncProgressHeight int64 `json:"sync_progress_height"`
			} `json:"sync"`
		} `json:"blockchain_state"`
	}

	if err := p.client.Call(ctx, "get_blockchain_state", nil, &resp); err != nil {
		return Unavailable[models.FullNodeStatus](err)
	}

	state := resp.BlockchainState
	status := models.FullNodeStatus{
		IsSynced:             state.Sync.Synced,
		SyncBlockchainHeight: state.Sync.SyncTipHeight,
		SyncNodeHeight:       state.Sync.SyncProgressHeight,
	}

	if state.Peak != nil {
		status.PeakHeight = state.Peak.Height
	}

	return Ok(status)
}

func unixSeconds(s float64) time.Time {
	if s <= 0 {
		return time.Time{}
	}

	sec, frac := math.Modf(s)

	return models.NormalizeTime(time.Unix(int64(sec), int64(frac*float64(time.Second))))
}
