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

// Package collector gathers state from outside the log stream: the control
// APIs of the monitored services and host metrics.
package collector

import (
	"context"

	"github.com/carverauto/farmradar/pkg/models"
)

//go:generate mockgen -destination=mock_collector.go -package=collector github.com/carverauto/farmradar/pkg/collector FarmerPoller,HarvesterPoller,WalletPoller,FullNodePoller,HostCollector

// FarmerInfo is the farmer's view of its harvester connections.
type FarmerInfo struct {
	Peers []models.HarvesterPeer
}

// HarvesterInfo is the harvester status with its loaded plots.
type HarvesterInfo struct {
	Status models.HarvesterStatus
	Plots  []models.HarvesterPlot
}

// FarmerPoller polls the farmer control API.
type FarmerPoller interface {
	Poll(ctx context.Context) Result[FarmerInfo]
}

// HarvesterPoller polls the harvester control API.
type HarvesterPoller interface {
	Poll(ctx context.Context) Result[HarvesterInfo]
}

// WalletPoller polls the wallet control API.
type WalletPoller interface {
	Poll(ctx context.Context) Result[models.WalletStatus]
}

// FullNodePoller polls the full node control API.
type FullNodePoller interface {
	Poll(ctx context.Context) Result[models.FullNodeStatus]
}

// HostCollector reads operating system metrics.
type HostCollector interface {
	CPU(ctx context.Context) (*models.CPUInfo, error)
	Memory(ctx context.Context) (*models.RAMInfo, *models.SwapInfo, error)
	Disks(ctx context.Context) ([]models.DiskInfo, error)
}
