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
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "string", input: `"10s"`, want: 10 * time.Second},
		{name: "nanoseconds", input: `1500000000`, want: 1500 * time.Millisecond},
		{name: "bad string", input: `"ten"`, wantErr: true},
		{name: "bool", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration

			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Std())
		})
	}
}

func TestSchemaOrderAndColumns(t *testing.T) {
	var got []Category
	for _, spec := range Schema {
		got = append(got, spec.Category)
	}

	assert.Equal(t, []Category{
		CategoryCPU, CategoryRAM, CategorySwap, CategoryFarmer, CategoryHarvester,
		CategoryWallet, CategoryFullNode, CategoryDisk, CategoryHarvesterPlot,
		CategoryFarmerHarvester, CategoryPlotInProgress,
	}, got)

	spec, err := Lookup(CategoryFarmerHarvester)
	require.NoError(t, err)
	assert.True(t, spec.Collection)
	assert.Equal(t, "history_farmer_harvester", spec.HistoryTable())
	assert.Equal(t, "latest_farmer_harvester", spec.LatestTable())
	assert.Equal(t, Column{Name: "id", Kind: KindString}, spec.Columns()[0])

	_, err = Lookup("gpu")
	require.ErrorIs(t, err, ErrUnknownCategory)
}

func TestSchemaExtractAssign(t *testing.T) {
	ci := &ComputerInfo{
		CPU:            &CPUInfo{Name: "epyc"},
		HarvesterPlots: []HarvesterPlot{{ID: "a"}, {ID: "b"}},
	}

	cpu, err := Lookup(CategoryCPU)
	require.NoError(t, err)

	plots, err := Lookup(CategoryHarvesterPlot)
	require.NoError(t, err)

	ram, err := Lookup(CategoryRAM)
	require.NoError(t, err)

	require.Len(t, cpu.Extract(ci), 1)
	require.Len(t, plots.Extract(ci), 2)
	assert.Empty(t, ram.Extract(ci))

	out := &ComputerInfo{}
	cpu.Assign(out, cpu.Extract(ci))
	plots.Assign(out, plots.Extract(ci))

	assert.Equal(t, ci.CPU, out.CPU)
	assert.Equal(t, ci.HarvesterPlots, out.HarvesterPlots)

	plots.Assign(out, nil)
	assert.Nil(t, out.HarvesterPlots)
}

func TestFieldSetAndValue(t *testing.T) {
	p := &PlotInProgress{}
	fields := FieldMap(p)

	require.NoError(t, fields["id"].Set("job-1"))
	require.NoError(t, fields["process_id"].Set(int64(42)))
	require.NoError(t, fields["progress"].Set(0.5))
	require.NoError(t, fields["state"].Set("PHASE_2"))

	assert.Equal(t, "job-1", p.ID)
	assert.Equal(t, int64(42), p.ProcessID)
	assert.InDelta(t, 0.5, p.Progress, 1e-9)
	assert.Equal(t, PlotStatePhase2, p.State)
	assert.Equal(t, "PHASE_2", fields["state"].Value())

	err := fields["progress"].Set("half")
	require.ErrorIs(t, err, ErrFieldType)

	require.NoError(t, fields["process_id"].Set(nil))
	assert.Zero(t, p.ProcessID)
}

func TestNormalize(t *testing.T) {
	loc := time.FixedZone("X", 3600)
	ts := time.Date(2024, 5, 1, 12, 0, 0, 123456789, loc)

	ci := &ComputerInfo{
		Timestamp:        ts,
		FarmerHarvesters: []FarmerHarvester{{ID: "h1", LastMessageIncoming: ts}},
	}

	Normalize(ci)

	want := time.Date(2024, 5, 1, 11, 0, 0, 123456000, time.UTC)
	assert.Equal(t, want, ci.Timestamp)
	assert.Equal(t, want, ci.FarmerHarvesters[0].LastMessageIncoming)
	assert.True(t, ci.FarmerHarvesters[0].LastUpdate.IsZero())
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("update")
	require.NoError(t, err)
	assert.Equal(t, ActionUpdate, a)

	_, err = ParseAction("upsert")
	require.ErrorIs(t, err, ErrUnknownAction)
}

func TestChangeEventIdentity(t *testing.T) {
	ev := ChangeEvent{Action: ActionAdd, Payload: &FarmerHarvester{ID: "H1"}}
	assert.Equal(t, CategoryFarmerHarvester, ev.Category())
	assert.Equal(t, "H1", ev.EntityID())
	assert.Equal(t, "ADD farmer_harvester{id:H1}", ev.String())

	single := ChangeEvent{Action: ActionUpdate, Payload: &RAMInfo{}}
	assert.Empty(t, single.EntityID())
}

func TestAgentConfigDefaultsAndValidate(t *testing.T) {
	cfg := &AgentConfig{MachineID: "m1", ServerAddr: "core:50061", LogFile: "/var/log/debug.log"}
	cfg.ApplyDefaults()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "m1", cfg.MachineName)
	assert.Equal(t, DefaultSyncInterval, cfg.SyncInterval.Std())
	assert.Equal(t, DefaultOverdueThreshold, cfg.Timeouts.Overdue.Std())
	assert.Equal(t, Duration(60*time.Second), cfg.RateLimits[CategoryCPU])

	cfg.RateLimits["gpu"] = Duration(time.Second)
	require.ErrorIs(t, cfg.Validate(), errRateLimitCategory)

	bad := &AgentConfig{ServerAddr: "x", LogFile: "y"}
	require.ErrorIs(t, bad.Validate(), errMachineIDRequired)
}

func TestCoreConfigValidate(t *testing.T) {
	cfg := &CoreConfig{Database: DatabaseConfig{Path: "/tmp/farm.db"}}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, DefaultCoreMaxRecvSize, cfg.MaxRecvSize)

	cfg.Database = DatabaseConfig{Driver: DriverPostgres}
	require.ErrorIs(t, cfg.Validate(), errDatabaseURLRequired)

	cfg.Database = DatabaseConfig{Driver: DriverSQLite, Path: "x"}
	cfg.Security = &SecurityConfig{Mode: SecurityModeMTLS}
	require.ErrorIs(t, cfg.Validate(), errSecurityFilesRequired)
}
