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
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/carverauto/farmradar/pkg/logger"
	"github.com/carverauto/farmradar/pkg/models"
)

const defaultSampleInterval = 200 * time.Millisecond

var cpuSensorHints = []string{"coretemp", "k10temp", "cpu", "package"}

// Host reads host metrics through gopsutil.
type Host struct {
	log            logger.Logger
	sampleInterval time.Duration

	cpuInfo       func(context.Context) ([]cpu.InfoStat, error)
	cpuCounts     func(context.Context, bool) (int, error)
	cpuPercent    func(context.Context, time.Duration, bool) ([]float64, error)
	temperatures  func(context.Context) ([]host.TemperatureStat, error)
	virtualMemory func(context.Context) (*mem.VirtualMemoryStat, error)
	swapMemory    func(context.Context) (*mem.SwapMemoryStat, error)
	partitions    func(context.Context, bool) ([]disk.PartitionStat, error)
	usage         func(context.Context, string) (*disk.UsageStat, error)
}

var _ HostCollector = (*Host)(nil)

// NewHost creates a host collector. CPU usage is sampled over sampleInterval.
func NewHost(log logger.Logger, sampleInterval time.Duration) *Host {
	if sampleInterval <= 0 {
		sampleInterval = defaultSampleInterval
	}

	return &Host{
		log:            log,
		sampleInterval: sampleInterval,
		cpuInfo:        cpu.InfoWithContext,
		cpuCounts:      cpu.CountsWithContext,
		cpuPercent:     cpu.PercentWithContext,
		temperatures:   host.SensorsTemperaturesWithContext,
		virtualMemory:  mem.VirtualMemoryWithContext,
		swapMemory:     mem.SwapMemoryWithContext,
		partitions:     disk.PartitionsWithContext,
		usage:          disk.UsageWithContext,
	}
}

func (h *Host) CPU(ctx context.Context) (*models.CPUInfo, error) {
	infos, err := h.cpuInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("cpu info: %w", err)
	}

	if len(infos) == 0 {
		return nil, errNoCPUInfo
	}

	info := &models.CPUInfo{
		Name:     strings.TrimSpace(infos[0].ModelName),
		ClockMHz: infos[0].Mhz,
	}

	if cores, err := h.cpuCounts(ctx, true); err != nil {
		h.log.Debug().Err(err).Msg("cpu core count failed")
	} else {
		info.NCores = int64(cores)
	}

	if percent, err := h.cpuPercent(ctx, h.sampleInterval, false); err != nil {
		h.log.Debug().Err(err).Msg("cpu usage failed; reporting zero")
	} else if len(percent) > 0 {
		info.Usage = percent[0]
	}

	info.Temperature = h.cpuTemperature(ctx)

	return info, nil
}

// cpuTemperature returns the hottest CPU-like sensor, or zero. Sensor reads
// can fail partially, so any returned readings are used.
func (h *Host) cpuTemperature(ctx context.Context) float64 {
	temps, err := h.temperatures(ctx)
	if err != nil && len(temps) == 0 {
		h.log.Debug().Err(err).Msg("temperature sensors unavailable")
		return 0
	}

	var hottest float64

	for _, t := range temps {
		key := strings.ToLower(t.SensorKey)

		for _, hint := range cpuSensorHints {
			if strings.Contains(key, hint) && t.Temperature > hottest {
				hottest = t.Temperature
			}
		}
	}

	return hottest
}

func (h *Host) Memory(ctx context.Context) (*models.RAMInfo, *models.SwapInfo, error) {
	vm, err := h.virtualMemory(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: virtual memory: %w", errHostUnavailable, err)
	}

	ram := &models.RAMInfo{TotalBytes: int64(vm.Total), UsedBytes: int64(vm.Used)}

	sw, err := h.swapMemory(ctx)
	if err != nil {
		h.log.Debug().Err(err).Msg("swap memory failed")
		return ram, nil, nil
	}

	return ram, &models.SwapInfo{TotalBytes: int64(sw.Total), UsedBytes: int64(sw.Used)}, nil
}

func (h *Host) Disks(ctx context.Context) ([]models.DiskInfo, error) {
	parts, err := h.partitions(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("%w: partitions: %w", errHostUnavailable, err)
	}

	disks := make([]models.DiskInfo, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))

	for _, p := range parts {
		if _, ok := seen[p.Mountpoint]; ok {
			continue
		}

		u, err := h.usage(ctx, p.Mountpoint)
		if err != nil {
			h.log.Debug().Err(err).Str("mountpoint", p.Mountpoint).Msg("disk usage failed")
			continue
		}

		seen[p.Mountpoint] = struct{}{}
		disks = append(disks, models.DiskInfo{
			ID:         p.Mountpoint,
			Device:     p.Device,
			FSType:     p.Fstype,
			TotalBytes: int64(u.Total),
			UsedBytes:  int64(u.Used),
		})
	}

	return disks, nil
}
