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

import (
	"fmt"
	"time"
)

// CategorySpec describes one category of the snapshot: how to create its
// payload, where it lives in ComputerInfo and what its columns are.
type CategorySpec struct {
	Category   Category
	Collection bool

	New     func() Payload
	Extract func(*ComputerInfo) []Payload
	Assign  func(*ComputerInfo, []Payload)

	columns []Column
}

// Columns returns the storage columns of the category in declaration order.
// Collection categories always start with "id".
func (s *CategorySpec) Columns() []Column {
	return s.columns
}

// HistoryTable is the append-only table holding every change of the category.
func (s *CategorySpec) HistoryTable() string {
	return "history_" + string(s.Category)
}

// LatestTable is the table holding the current value per machine (and id).
func (s *CategorySpec) LatestTable() string {
	return "latest_" + string(s.Category)
}

// Schema lists every category in the fixed order used for diffing and storage.
//
//nolint:gochecknoglobals // closed registry of snapshot categories
var Schema = []*CategorySpec{
	singleton(CategoryCPU, func(ci *ComputerInfo) **CPUInfo { return &ci.CPU }),
	singleton(CategoryRAM, func(ci *ComputerInfo) **RAMInfo { return &ci.RAM }),
	singleton(CategorySwap, func(ci *ComputerInfo) **SwapInfo { return &ci.Swap }),
	singleton(CategoryFarmer, func(ci *ComputerInfo) **FarmerStatus { return &ci.Farmer }),
	singleton(CategoryHarvester, func(ci *ComputerInfo) **HarvesterStatus { return &ci.Harvester }),
	singleton(CategoryWallet, func(ci *ComputerInfo) **WalletStatus { return &ci.Wallet }),
	singleton(CategoryFullNode, func(ci *ComputerInfo) **FullNodeStatus { return &ci.FullNode }),
	collection(CategoryDisk, func(ci *ComputerInfo) *[]DiskInfo { return &ci.Disks }),
	collection(CategoryHarvesterPlot, func(ci *ComputerInfo) *[]HarvesterPlot { return &ci.HarvesterPlots }),
	collection(CategoryFarmerHarvester, func(ci *ComputerInfo) *[]FarmerHarvester { return &ci.FarmerHarvesters }),
	collection(CategoryPlotInProgress, func(ci *ComputerInfo) *[]PlotInProgress { return &ci.PlotsInProgress }),
}

//nolint:gochecknoglobals // index over Schema, built once at init
var schemaIndex = buildIndex()

func buildIndex() map[Category]*CategorySpec {
	idx := make(map[Category]*CategorySpec, len(Schema))

	for _, spec := range Schema {
		if _, dup := idx[spec.Category]; dup {
			panic(fmt.Sprintf("models: duplicate category %q", spec.Category))
		}

		p := spec.New()
		if p.Category() != spec.Category {
			panic(fmt.Sprintf("models: category %q builds payload for %q", spec.Category, p.Category()))
		}

		for _, f := range p.Fields() {
			spec.columns = append(spec.columns, Column{Name: f.Name, Kind: f.Kind})
		}

		if spec.Collection && (len(spec.columns) == 0 || spec.columns[0].Name != "id" || spec.columns[0].Kind != KindString) {
			panic(fmt.Sprintf("models: collection %q must declare a leading string id field", spec.Category))
		}

		idx[spec.Category] = spec
	}

	return idx
}

// Lookup returns the spec of a category.
func Lookup(c Category) (*CategorySpec, error) {
	spec, ok := schemaIndex[c]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}

	return spec, nil
}

// NewPayload returns an empty payload for a category.
func NewPayload(c Category) (Payload, error) {
	spec, err := Lookup(c)
	if err != nil {
		return nil, err
	}

	return spec.New(), nil
}

// Normalize rewrites every timestamp in ci, including the snapshot timestamp,
// with NormalizeTime.
func Normalize(ci *ComputerInfo) {
	ci.Timestamp = NormalizeTime(ci.Timestamp)

	for _, spec := range Schema {
		for _, p := range spec.Extract(ci) {
			NormalizeTimes(p)
		}
	}
}

// NewComputerInfo returns an empty snapshot header.
func NewComputerInfo(machineID, machineName string, ts time.Time) *ComputerInfo {
	return &ComputerInfo{
		MachineID:   machineID,
		MachineName: machineName,
		Timestamp:   NormalizeTime(ts),
	}
}

func singleton[T any, PT interface {
	*T
	Payload
}](c Category, field func(*ComputerInfo) **T) *CategorySpec {
	return &CategorySpec{
		Category: c,
		New:      func() Payload { return PT(new(T)) },
		Extract: func(ci *ComputerInfo) []Payload {
			p := *field(ci)
			if p == nil {
				return nil
			}

			return []Payload{PT(p)}
		},
		Assign: func(ci *ComputerInfo, ps []Payload) {
			if len(ps) == 0 {
				*field(ci) = nil
				return
			}

			if p, ok := ps[0].(PT); ok {
				*field(ci) = (*T)(p)
			}
		},
	}
}

func collection[T any, PT interface {
	*T
	Entity
}](c Category, field func(*ComputerInfo) *[]T) *CategorySpec {
	return &CategorySpec{
		Category:   c,
		Collection: true,
		New:        func() Payload { return PT(new(T)) },
		Extract: func(ci *ComputerInfo) []Payload {
			items := *field(ci)
			if len(items) == 0 {
				return nil
			}

			out := make([]Payload, 0, len(items))
			for i := range items {
				out = append(out, PT(&items[i]))
			}

			return out
		},
		Assign: func(ci *ComputerInfo, ps []Payload) {
			if len(ps) == 0 {
				*field(ci) = nil
				return
			}

			items := make([]T, 0, len(ps))

			for _, p := range ps {
				if v, ok := p.(PT); ok {
					items = append(items, *(*T)(v))
				}
			}

			*field(ci) = items
		},
	}
}
