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

package models

import "time"

// ComputerInfo is the point-in-time state of one monitored machine.
// A nil singleton pointer means the category is absent.
type ComputerInfo struct {
	MachineID   string    `json:"machine_id"`
	MachineName string    `json:"machine_name"`
	Timestamp   time.Time `json:"timestamp"`

	CPU       *CPUInfo         `json:"cpu,omitempty"`
	RAM       *RAMInfo         `json:"ram,omitempty"`
	Swap      *SwapInfo        `json:"swap,omitempty"`
	Farmer    *FarmerStatus    `json:"farmer,omitempty"`
	Harvester *HarvesterStatus `json:"harvester,omitempty"`
	Wallet    *WalletStatus    `json:"wallet,omitempty"`
	FullNode  *FullNodeStatus  `json:"full_node,omitempty"`

	Disks            []DiskInfo        `json:"disks,omitempty"`
	HarvesterPlots   []HarvesterPlot   `json:"harvester_plots,omitempty"`
	FarmerHarvesters []FarmerHarvester `json:"farmer_harvesters,omitempty"`
	PlotsInProgress  []PlotInProgress  `json:"plots_in_progress,omitempty"`
}

// CPUInfo describes the processor and its current load.
type CPUInfo struct {
	Name        string  `json:"name"`
	NCores      int64   `json:"n_cores"`
	ClockMHz    float64 `json:"clock_mhz"`
	Usage       float64 `json:"usage"`
	Temperature float64 `json:"temperature"`
}

func (*CPUInfo) Category() Category { return CategoryCPU }

func (c *CPUInfo) Fields() []Field {
	return []Field{
		StringField("name", &c.Name),
		IntField("n_cores", &c.NCores),
		FloatField("clock_mhz", &c.ClockMHz),
		FloatField("usage", &c.Usage),
		FloatField("temperature", &c.Temperature),
	}
}

// RAMInfo is physical memory usage.
type RAMInfo struct {
	TotalBytes int64 `json:"total_bytes"`
	UsedBytes  int64 `json:"used_bytes"`
}

func (*RAMInfo) Category() Category { return CategoryRAM }

func (r *RAMInfo) Fields() []Field {
	return []Field{
		IntField("total_bytes", &r.TotalBytes),
		IntField("used_bytes", &r.UsedBytes),
	}
}

// SwapInfo is swap usage.
type SwapInfo struct {
	TotalBytes int64 `json:"total_bytes"`
	UsedBytes  int64 `json:"used_bytes"`
}

func (*SwapInfo) Category() Category { return CategorySwap }

func (s *SwapInfo) Fields() []Field {
	return []Field{
		IntField("total_bytes", &s.TotalBytes),
		IntField("used_bytes", &s.UsedBytes),
	}
}

// DiskInfo is keyed by mountpoint.
type DiskInfo struct {
	ID         string `json:"id"`
	Device     string `json:"device"`
	FSType     string `json:"fs_type"`
	TotalBytes int64  `json:"total_bytes"`
	UsedBytes  int64  `json:"used_bytes"`
}

func (*DiskInfo) Category() Category { return CategoryDisk }
func (d *DiskInfo) EntityID() string { return d.ID }

func (d *DiskInfo) Fields() []Field {
	return []Field{
		StringField("id", &d.ID),
		StringField("device", &d.Device),
		StringField("fs_type", &d.FSType),
		IntField("total_bytes", &d.TotalBytes),
		IntField("used_bytes", &d.UsedBytes),
	}
}

// FarmerStatus is the state of the local farmer service.
type FarmerStatus struct {
	IsReady          bool     `json:"is_ready"`
	IsRunning        bool     `json:"is_running"`
	TotalProofsFound int64    `json:"total_proofs_found"`
	BlocksFarmed     []string `json:"blocks_farmed"`
}

func (*FarmerStatus) Category() Category { return CategoryFarmer }

func (f *FarmerStatus) Fields() []Field {
	return []Field{
		BoolField("is_ready", &f.IsReady),
		BoolField("is_running", &f.IsRunning),
		IntField("total_proofs_found", &f.TotalProofsFound),
		StringListField("blocks_farmed", &f.BlocksFarmed),
	}
}

// HarvesterStatus is the state of the local harvester and its plots.
type HarvesterStatus struct {
	IsReady            bool  `json:"is_ready"`
	IsRunning          bool  `json:"is_running"`
	NPlots             int64 `json:"n_plots"`
	TotalPlotSizeBytes int64 `json:"total_plot_size_bytes"`
	NFailedToOpen      int64 `json:"n_failed_to_open"`
	NNotFound          int64 `json:"n_not_found"`
}

func (*HarvesterStatus) Category() Category { return CategoryHarvester }

func (h *HarvesterStatus) Fields() []Field {
	return []Field{
		BoolField("is_ready", &h.IsReady),
		BoolField("is_running", &h.IsRunning),
		IntField("n_plots", &h.NPlots),
		IntField("total_plot_size_bytes", &h.TotalPlotSizeBytes),
		IntField("n_failed_to_open", &h.NFailedToOpen),
		IntField("n_not_found", &h.NNotFound),
	}
}

// HarvesterPlot is keyed by plot id.
type HarvesterPlot struct {
	ID              string    `json:"id"`
	Filename        string    `json:"filename"`
	Size            int64     `json:"size"`
	FileSizeBytes   int64     `json:"file_size_bytes"`
	PoolPublicKey   string    `json:"pool_public_key"`
	FarmerPublicKey string    `json:"farmer_public_key"`
	PlotPublicKey   string    `json:"plot_public_key"`
	TimeModified    time.Time `json:"time_modified"`
}

func (*HarvesterPlot) Category() Category { return CategoryHarvesterPlot }
func (p *HarvesterPlot) EntityID() string { return p.ID }

func (p *HarvesterPlot) Fields() []Field {
	return []Field{
		StringField("id", &p.ID),
		StringField("filename", &p.Filename),
		IntField("size", &p.Size),
		IntField("file_size_bytes", &p.FileSizeBytes),
		StringField("pool_public_key", &p.PoolPublicKey),
		StringField("farmer_public_key", &p.FarmerPublicKey),
		StringField("plot_public_key", &p.PlotPublicKey),
		TimeField("time_modified", &p.TimeModified),
	}
}

// FarmerHarvester is a harvester connection as seen by the farmer, keyed by
// harvester node id.
type FarmerHarvester struct {
	ID                  string    `json:"id"`
	IPAddress           string    `json:"ip_address"`
	IsConnected         bool      `json:"is_connected"`
	TimedOut            bool      `json:"timed_out"`
	LastMessageIncoming time.Time `json:"last_message_incoming"`
	LastMessageOutgoing time.Time `json:"last_message_outgoing"`
	NOverdueResponses   int64     `json:"n_overdue_responses"`
	NResponses          int64     `json:"n_responses"`
	LastUpdate          time.Time `json:"last_update"`
}

func (*FarmerHarvester) Category() Category { return CategoryFarmerHarvester }
func (h *FarmerHarvester) EntityID() string { return h.ID }

func (h *FarmerHarvester) Fields() []Field {
	return []Field{
		StringField("id", &h.ID),
		StringField("ip_address", &h.IPAddress),
		BoolField("is_connected", &h.IsConnected),
		BoolField("timed_out", &h.TimedOut),
		TimeField("last_message_incoming", &h.LastMessageIncoming),
		TimeField("last_message_outgoing", &h.LastMessageOutgoing),
		IntField("n_overdue_responses", &h.NOverdueResponses),
		IntField("n_responses", &h.NResponses),
		TimeField("last_update", &h.LastUpdate),
	}
}

// WalletStatus is the state of the local wallet service.
type WalletStatus struct {
	IsReady   bool  `json:"is_ready"`
	IsRunning bool  `json:"is_running"`
	IsSynced  bool  `json:"is_synced"`
	NWallets  int64 `json:"n_wallets"`
}

func (*WalletStatus) Category() Category { return CategoryWallet }

func (w *WalletStatus) Fields() []Field {
	return []Field{
		BoolField("is_ready", &w.IsReady),
		BoolField("is_running", &w.IsRunning),
		BoolField("is_synced", &w.IsSynced),
		IntField("n_wallets", &w.NWallets),
	}
}

// FullNodeStatus is the state of the local full node and its sync progress.
type FullNodeStatus struct {
	IsReady              bool  `json:"is_ready"`
	IsRunning            bool  `json:"is_running"`
	IsSynced             bool  `json:"is_synced"`
	SyncBlockchainHeight int64 `json:"sync_blockchain_height"`
	SyncNodeHeight       int64 `json:"sync_node_height"`
	PeakHeight           int64 `json:"peak_height"`
}

func (*FullNodeStatus) Category() Category { return CategoryFullNode }

func (n *FullNodeStatus) Fields() []Field {
	return []Field{
		BoolField("is_ready", &n.IsReady),
		BoolField("is_running", &n.IsRunning),
		BoolField("is_synced", &n.IsSynced),
		IntField("sync_blockchain_height", &n.SyncBlockchainHeight),
		IntField("sync_node_height", &n.SyncNodeHeight),
		IntField("peak_height", &n.PeakHeight),
	}
}

// PlotState is the phase of a plotting job. Values sort in phase order.
type PlotState string

const (
	PlotStateStarting PlotState = "STARTING"
	PlotStatePhase1   PlotState = "PHASE_1"
	PlotStatePhase2   PlotState = "PHASE_2"
	PlotStatePhase3   PlotState = "PHASE_3"
	PlotStatePhase4   PlotState = "PHASE_4"
)

// Rank orders plot states; unknown states rank below STARTING.
func (s PlotState) Rank() int {
	switch s {
	case PlotStateStarting:
		return 1
	case PlotStatePhase1:
		return 2
	case PlotStatePhase2:
		return 3
	case PlotStatePhase3:
		return 4
	case PlotStatePhase4:
		return 5
	default:
		return 0
	}
}

// PlotInProgress is a running plotting job, keyed by plot id.
type PlotInProgress struct {
	ID              string    `json:"id"`
	ProcessID       int64     `json:"process_id"`
	PoolPublicKey   string    `json:"pool_public_key"`
	FarmerPublicKey string    `json:"farmer_public_key"`
	StartTime       time.Time `json:"start_time"`
	Progress        float64   `json:"progress"`
	PlotType        string    `json:"plot_type"`
	State           PlotState `json:"state"`
}

func (*PlotInProgress) Category() Category { return CategoryPlotInProgress }
func (p *PlotInProgress) EntityID() string { return p.ID }

func (p *PlotInProgress) Fields() []Field {
	return []Field{
		StringField("id", &p.ID),
		IntField("process_id", &p.ProcessID),
		StringField("pool_public_key", &p.PoolPublicKey),
		StringField("farmer_public_key", &p.FarmerPublicKey),
		TimeField("start_time", &p.StartTime),
		FloatField("progress", &p.Progress),
		StringField("plot_type", &p.PlotType),
		StringField("state", &p.State),
	}
}

var (
	_ Payload = (*CPUInfo)(nil)
	_ Payload = (*RAMInfo)(nil)
	_ Payload = (*SwapInfo)(nil)
	_ Payload = (*FarmerStatus)(nil)
	_ Payload = (*HarvesterStatus)(nil)
	_ Payload = (*WalletStatus)(nil)
	_ Payload = (*FullNodeStatus)(nil)
	_ Entity  = (*DiskInfo)(nil)
	_ Entity  = (*HarvesterPlot)(nil)
	_ Entity  = (*FarmerHarvester)(nil)
	_ Entity  = (*PlotInProgress)(nil)
)

// HarvesterPeer is a harvester connection reported by the farmer control API.
type HarvesterPeer struct {
	NodeID string `json:"node_id"`
	Host   string `json:"host"`
}
