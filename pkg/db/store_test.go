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

package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/farmradar/pkg/logger"
	"github.com/carverauto/farmradar/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	cfg := &models.DatabaseConfig{
		Driver: models.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "farm.db"),
	}

	s, err := New(ctx, cfg, logger.NewTestLogger())
	require.NoError(t, err)

	t.Cleanup(s.Close)

	require.NoError(t, s.Init(ctx))
	// Init is idempotent.
	require.NoError(t, s.Init(ctx))

	return s
}

func ts(sec int) time.Time {
	return time.Date(2026, 3, 1, 12, 0, sec, 123456000, time.UTC)
}

func add(p models.Payload) models.ChangeEvent {
	return models.ChangeEvent{Action: models.ActionAdd, Payload: p}
}

func update(p models.Payload) models.ChangeEvent {
	return models.ChangeEvent{Action: models.ActionUpdate, Payload: p}
}

func del(p models.Payload) models.ChangeEvent {
	return models.ChangeEvent{Action: models.ActionDelete, Payload: p}
}

func TestApplyBatchRejectsMissingHeader(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.ApplyBatch(ctx, &Batch{Timestamp: ts(0)})
	require.ErrorIs(t, err, ErrMachineIDRequired)

	err = s.ApplyBatch(ctx, &Batch{MachineID: "m1"})
	require.ErrorIs(t, err, ErrTimestampRequired)
}

func TestApplyBatchReplayIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := &Batch{
		MachineID:   "m1",
		MachineName: "farm-one",
		Timestamp:   ts(0),
		Events: []models.ChangeEvent{
			add(&models.CPUInfo{Name: "Ryzen", NCores: 16, ClockMHz: 3400.5, Usage: 12.5}),
			add(&models.DiskInfo{ID: "/dev/sda1", Device: "/dev/sda1", FSType: "ext4", TotalBytes: 1000, UsedBytes: 10}),
		},
	}

	require.NoError(t, s.ApplyBatch(ctx, batch))
	require.NoError(t, s.ApplyBatch(ctx, batch))

	disks, err := s.ReadLatest(ctx, models.CategoryDisk, "m1")
	require.NoError(t, err)
	require.Len(t, disks, 1)
	assert.Equal(t, "/dev/sda1", disks[0].(*models.DiskInfo).ID)

	history, err := s.ReadHistory(ctx, models.CategoryCPU, ts(0), ts(10))
	require.NoError(t, err)
	assert.Len(t, history["m1"], 1)
}

func TestApplyBatchDeleteUnknownIsNoop(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.ApplyBatch(ctx, &Batch{
		MachineID: "m1",
		Timestamp: ts(0),
		Events:    []models.ChangeEvent{del(&models.DiskInfo{ID: "/dev/missing"})},
	})
	require.NoError(t, err)

	disks, err := s.ReadLatest(ctx, models.CategoryDisk, "m1")
	require.NoError(t, err)
	assert.Empty(t, disks)

	history, err := s.ReadHistory(ctx, models.CategoryDisk, ts(0), ts(0))
	require.NoError(t, err)
	require.Len(t, history["m1"], 1)
	assert.Equal(t, models.ActionDelete, history["m1"][0].Action)
}

func TestReadStateRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lastMsg := ts(3)
	want := models.NewComputerInfo("m1", "farm-one", ts(5))
	want.CPU = &models.CPUInfo{Name: "Ryzen", NCores: 16, ClockMHz: 3400.5, Usage: 12.5, Temperature: 45}
	want.RAM = &models.RAMInfo{TotalBytes: 32 << 30, UsedBytes: 8 << 30}
	want.Farmer = &models.FarmerStatus{IsReady: true, IsRunning: true, TotalProofsFound: 2, BlocksFarmed: []string{"0xabc"}}
	want.Disks = []models.DiskInfo{
		{ID: "/a", Device: "/dev/a", FSType: "xfs", TotalBytes: 10, UsedBytes: 1},
		{ID: "/b", Device: "/dev/b", FSType: "ext4", TotalBytes: 20, UsedBytes: 2},
	}
	want.FarmerHarvesters = []models.FarmerHarvester{
		{ID: "h1", IPAddress: "10.0.0.2", IsConnected: true, LastMessageIncoming: lastMsg, NResponses: 4},
	}

	var events []models.ChangeEvent
	for _, spec := range models.Schema {
		for _, p := range spec.Extract(want) {
			events = append(events, add(p))
		}
	}

	require.NoError(t, s.ApplyBatch(ctx, &Batch{
		MachineID:   want.MachineID,
		MachineName: want.MachineName,
		Timestamp:   want.Timestamp,
		Events:      events,
	}))

	got, ok, err := s.ReadState(ctx, "m1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, cmp.Diff(want, got, cmpopts.EquateEmpty()))

	_, ok, err = s.ReadState(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLatestStateFollowsUpdatesAndDeletes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	disk := &models.DiskInfo{ID: "/a", Device: "/dev/a", TotalBytes: 10, UsedBytes: 1}
	require.NoError(t, s.ApplyBatch(ctx, &Batch{MachineID: "m1", Timestamp: ts(0),
		Events: []models.ChangeEvent{add(disk)}}))

	grown := &models.DiskInfo{ID: "/a", Device: "/dev/a", TotalBytes: 10, UsedBytes: 7}
	require.NoError(t, s.ApplyBatch(ctx, &Batch{MachineID: "m1", Timestamp: ts(1),
		Events: []models.ChangeEvent{update(grown)}}))

	disks, err := s.ReadLatest(ctx, models.CategoryDisk, "m1")
	require.NoError(t, err)
	require.Len(t, disks, 1)
	assert.Equal(t, int64(7), disks[0].(*models.DiskInfo).UsedBytes)

	// An older write does not overwrite newer state.
	require.NoError(t, s.ApplyBatch(ctx, &Batch{MachineID: "m1", Timestamp: ts(0),
		Events: []models.ChangeEvent{update(disk)}}))

	disks, err = s.ReadLatest(ctx, models.CategoryDisk, "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), disks[0].(*models.DiskInfo).UsedBytes)

	require.NoError(t, s.ApplyBatch(ctx, &Batch{MachineID: "m1", Timestamp: ts(2),
		Events: []models.ChangeEvent{del(grown)}}))

	disks, err = s.ReadLatest(ctx, models.CategoryDisk, "m1")
	require.NoError(t, err)
	assert.Empty(t, disks)

	history, err := s.ReadHistory(ctx, models.CategoryDisk, ts(0), ts(2))
	require.NoError(t, err)

	var actions []models.Action
	for _, r := range history["m1"] {
		actions = append(actions, r.Action)
	}

	assert.ElementsMatch(t, []models.Action{
		models.ActionAdd, models.ActionUpdate, models.ActionDelete,
	}, actions)
}

func TestStaleDeleteKeepsNewerState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	disk := &models.DiskInfo{ID: "/a", Device: "/dev/a", TotalBytes: 10, UsedBytes: 3}
	require.NoError(t, s.ApplyBatch(ctx, &Batch{MachineID: "m1", Timestamp: ts(10),
		Events: []models.ChangeEvent{add(disk), add(&models.RAMInfo{TotalBytes: 8, UsedBytes: 2})}}))

	// A delete stamped before the current row is replayed late.
	require.NoError(t, s.ApplyBatch(ctx, &Batch{MachineID: "m1", Timestamp: ts(5),
		Events: []models.ChangeEvent{del(disk), del(&models.RAMInfo{})}}))

	disks, err := s.ReadLatest(ctx, models.CategoryDisk, "m1")
	require.NoError(t, err)
	require.Len(t, disks, 1)
	assert.Equal(t, int64(3), disks[0].(*models.DiskInfo).UsedBytes)

	ram, err := s.ReadLatest(ctx, models.CategoryRAM, "m1")
	require.NoError(t, err)
	assert.Len(t, ram, 1)

	// A delete with the same timestamp as the row still applies.
	require.NoError(t, s.ApplyBatch(ctx, &Batch{MachineID: "m1", Timestamp: ts(10),
		Events: []models.ChangeEvent{del(disk)}}))

	disks, err = s.ReadLatest(ctx, models.CategoryDisk, "m1")
	require.NoError(t, err)
	assert.Empty(t, disks)
}

func TestRecordHistoryAndApplyState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ram := &models.RAMInfo{TotalBytes: 100, UsedBytes: 40}

	require.NoError(t, s.RecordHistory(ctx, "m1", ts(1), add(ram)))

	// History alone leaves the latest table untouched.
	latest, err := s.ReadLatest(ctx, models.CategoryRAM, "m1")
	require.NoError(t, err)
	assert.Empty(t, latest)

	history, err := s.ReadHistory(ctx, models.CategoryRAM, ts(0), ts(5))
	require.NoError(t, err)
	require.Len(t, history["m1"], 1)
	assert.Equal(t, models.ActionAdd, history["m1"][0].Action)
	assert.Equal(t, ts(1), history["m1"][0].Timestamp)

	require.NoError(t, s.ApplyState(ctx, "m1", ts(1), add(ram)))
	require.NoError(t, s.ApplyState(ctx, "m1", ts(2), update(&models.RAMInfo{TotalBytes: 100, UsedBytes: 60})))

	latest, err = s.ReadLatest(ctx, models.CategoryRAM, "m1")
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, int64(60), latest[0].(*models.RAMInfo).UsedBytes)

	// State changes are not recorded as history.
	history, err = s.ReadHistory(ctx, models.CategoryRAM, ts(0), ts(5))
	require.NoError(t, err)
	assert.Len(t, history["m1"], 1)

	require.NoError(t, s.ApplyState(ctx, "m1", ts(3), del(&models.RAMInfo{})))

	latest, err = s.ReadLatest(ctx, models.CategoryRAM, "m1")
	require.NoError(t, err)
	assert.Empty(t, latest)

	require.ErrorIs(t, s.ApplyState(ctx, "m1", ts(4), models.ChangeEvent{Action: models.ActionAdd}), ErrInvalidEvent)
	require.ErrorIs(t, s.RecordHistory(ctx, "m1", ts(4), models.ChangeEvent{Action: "BOGUS", Payload: ram}), ErrInvalidEvent)
}

func TestReadMachines(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ApplyBatch(ctx, &Batch{MachineID: "b", Timestamp: ts(1)}))
	require.NoError(t, s.ApplyBatch(ctx, &Batch{MachineID: "a", MachineName: "alpha", Timestamp: ts(2)}))

	machines, err := s.ReadMachines(ctx)
	require.NoError(t, err)
	require.Len(t, machines, 2)

	assert.Equal(t, Machine{MachineID: "a", MachineName: "alpha", LastContact: ts(2)}, machines[0])
	assert.Equal(t, Machine{MachineID: "b", MachineName: "b", LastContact: ts(1)}, machines[1])
}

func TestQueryIsReadOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ApplyBatch(ctx, &Batch{MachineID: "m1", Timestamp: ts(0),
		Events: []models.ChangeEvent{add(&models.RAMInfo{TotalBytes: 100, UsedBytes: 40})}}))

	rows, err := s.Query(ctx, `SELECT machine_id, used_bytes FROM latest_ram`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "m1", rows[0]["machine_id"])
	assert.EqualValues(t, 40, rows[0]["used_bytes"])

	_, err = s.Query(ctx, `DELETE FROM latest_ram`)
	require.Error(t, err)

	// Writes still work after a rejected query.
	require.NoError(t, s.ApplyBatch(ctx, &Batch{MachineID: "m1", Timestamp: ts(1),
		Events: []models.ChangeEvent{update(&models.RAMInfo{TotalBytes: 100, UsedBytes: 50})}}))

	rows, err = s.Query(ctx, `SELECT used_bytes FROM latest_ram WHERE machine_id = ?`, "m1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 50, rows[0]["used_bytes"])
}

func TestQueryRejectsStackedStatements(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ApplyBatch(ctx, &Batch{MachineID: "m1", Timestamp: ts(0),
		Events: []models.ChangeEvent{add(&models.RAMInfo{TotalBytes: 100, UsedBytes: 40})}}))

	for _, q := range []string{
		`COMMIT; PRAGMA query_only = OFF; DELETE FROM machines`,
		`PRAGMA query_only = OFF; DELETE FROM machines`,
		`SELECT 1; DELETE FROM latest_ram`,
		`SELECT ';' AS x; DELETE FROM latest_ram`,
	} {
		_, err := s.Query(ctx, q)
		require.ErrorIs(t, err, ErrMultiStatement, q)
	}

	machines, err := s.ReadMachines(ctx)
	require.NoError(t, err)
	assert.Len(t, machines, 1)

	rows, err := s.Query(ctx, `SELECT COUNT(*) AS n FROM latest_ram`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 1, rows[0]["n"])
}

func TestQueryConnectionCannotWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ApplyBatch(ctx, &Batch{MachineID: "m1", Timestamp: ts(0),
		Events: []models.ChangeEvent{add(&models.RAMInfo{TotalBytes: 100, UsedBytes: 40})}}))

	qt, err := s.backend.beginQuery(ctx)
	require.NoError(t, err)

	// Clearing query_only does not make the handle writable.
	require.NoError(t, qt.exec(ctx, `PRAGMA query_only = OFF`))
	require.Error(t, qt.exec(ctx, `DELETE FROM machines`))
	_ = qt.rollback(ctx)

	machines, err := s.ReadMachines(ctx)
	require.NoError(t, err)
	assert.Len(t, machines, 1)
}

func TestSingleStatement(t *testing.T) {
	tests := []struct {
		query string
		multi bool
	}{
		{query: `SELECT 1`},
		{query: `SELECT 1;`},
		{query: "SELECT 1 ;  \n"},
		{query: `SELECT 1; -- trailing note`},
		{query: `SELECT 1; /* done */`},
		{query: `SELECT 'a;b' AS x`},
		{query: `SELECT "odd;name" FROM t`},
		{query: `SELECT $$;$$, $tag$ ; $tag$`},
		{query: `SELECT * FROM t WHERE id = $1`},
		{query: `SELECT 1; SELECT 2`, multi: true},
		{query: `SELECT 1;; DELETE FROM t`, multi: true},
		{query: "SELECT 1; -- note\nDELETE FROM t", multi: true},
		{query: `SELECT 'x'; DROP TABLE t`, multi: true},
	}

	for _, tt := range tests {
		err := singleStatement(tt.query)
		if tt.multi {
			assert.ErrorIs(t, err, ErrMultiStatement, tt.query)
		} else {
			assert.NoError(t, err, tt.query)
		}
	}
}

func TestUnknownCategory(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ReadLatest(context.Background(), models.Category("nope"), "m1")
	require.ErrorIs(t, err, ErrInvalidEvent)
}
