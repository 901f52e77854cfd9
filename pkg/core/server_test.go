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

package core

import (
	"context"
	"errors"
	"io"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/carverauto/farmradar/pkg/db"
	ggrpc "github.com/carverauto/farmradar/pkg/grpc"
	"github.com/carverauto/farmradar/pkg/logger"
	"github.com/carverauto/farmradar/pkg/models"
	"github.com/carverauto/farmradar/proto"
)

var errTestStore = errors.New("disk on fire")

type recordingNotifier struct {
	mu      sync.Mutex
	batches []*db.Batch
}

func (n *recordingNotifier) Publish(_ context.Context, b *db.Batch) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.batches = append(n.batches, b)

	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return len(n.batches)
}

type failingStore struct {
	Store
}

func (failingStore) ApplyBatch(context.Context, *db.Batch) error {
	return errTestStore
}

func (failingStore) ReadState(context.Context, string) (*models.ComputerInfo, bool, error) {
	return nil, false, errTestStore
}

func newSQLiteStore(t *testing.T) *db.Store {
	t.Helper()

	ctx := context.Background()

	store, err := db.New(ctx, &models.DatabaseConfig{
		Driver: models.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "core.db"),
	}, logger.NewTestLogger())
	require.NoError(t, err)

	t.Cleanup(store.Close)

	require.NoError(t, store.Init(ctx))

	return store
}

func startSyncServer(t *testing.T, store Store, notifier Notifier) proto.FarmSyncClient {
	t.Helper()

	log := logger.NewTestLogger()

	srv := ggrpc.NewServer("bufnet", log,
		ggrpc.WithServerOptions(grpc.Creds(insecure.NewCredentials())),
		ggrpc.WithTelemetryDisabled())
	srv.RegisterService(&proto.FarmSync_ServiceDesc, NewSyncServer(store, notifier, log))

	lis := bufconn.Listen(1 << 20)

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() { srv.Stop(context.Background()) })

	conn, err := ggrpc.NewClientConn(context.Background(), "passthrough:///bufnet", &ggrpc.NoSecurityProvider{},
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return proto.NewFarmSyncClient(conn)
}

func testSnapshot(ts time.Time) *models.ComputerInfo {
	ci := models.NewComputerInfo("m1", "farm-one", ts)
	ci.CPU = &models.CPUInfo{Name: "EPYC", NCores: 32, ClockMHz: 2800, Usage: 40.5}
	ci.Farmer = &models.FarmerStatus{IsReady: true, IsRunning: true, TotalProofsFound: 1}
	ci.Disks = []models.DiskInfo{{ID: "/plots", Device: "/dev/sdb1", FSType: "xfs", TotalBytes: 100, UsedBytes: 90}}
	ci.FarmerHarvesters = []models.FarmerHarvester{
		{ID: "h1", IPAddress: "10.0.0.9", IsConnected: true, LastMessageIncoming: ts.Add(-time.Second), NResponses: 3},
	}

	return ci
}

func addEvents(ci *models.ComputerInfo) []models.ChangeEvent {
	var events []models.ChangeEvent

	for _, spec := range models.Schema {
		for _, p := range spec.Extract(ci) {
			events = append(events, models.ChangeEvent{Action: models.ActionAdd, Payload: p})
		}
	}

	return events
}

func TestSyncAppliesBatchesAndServesState(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	notifier := &recordingNotifier{}
	client := startSyncServer(t, newSQLiteStore(t), notifier)

	resp, err := client.GetState(ctx, &proto.StateRequest{MachineID: "m1"})
	require.NoError(t, err)
	assert.False(t, resp.Found)
	assert.Nil(t, resp.State)

	ts := time.Date(2026, 5, 1, 8, 30, 0, 250000000, time.UTC)
	want := testSnapshot(ts)

	batch, err := proto.NewChangeBatch(want.MachineID, want.MachineName, ts, addEvents(want))
	require.NoError(t, err)

	stream, err := client.Sync(ctx)
	require.NoError(t, err)

	// Replaying the same batch is acknowledged and leaves the state unchanged.
	for range 2 {
		require.NoError(t, stream.Send(batch))

		ack, err := stream.Recv()
		require.NoError(t, err)
		assert.True(t, ts.Equal(ack.Timestamp))
		assert.Equal(t, len(batch.Events), ack.Applied)
	}

	require.NoError(t, stream.CloseSend())

	_, err = stream.Recv()
	require.ErrorIs(t, err, io.EOF)

	resp, err = client.GetState(ctx, &proto.StateRequest{MachineID: "m1"})
	require.NoError(t, err)
	require.True(t, resp.Found)
	assert.Empty(t, cmp.Diff(want, resp.State, cmpopts.EquateEmpty()))

	assert.Equal(t, 2, notifier.count())
}

func TestSyncEmptyBatchIsAcknowledgedWithoutNotification(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	notifier := &recordingNotifier{}
	client := startSyncServer(t, newSQLiteStore(t), notifier)

	stream, err := client.Sync(ctx)
	require.NoError(t, err)

	ts := time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)
	require.NoError(t, stream.Send(&proto.ChangeBatch{MachineID: "m1", Timestamp: ts}))

	ack, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, 0, ack.Applied)
	assert.Equal(t, 0, notifier.count())

	resp, err := client.GetState(ctx, &proto.StateRequest{MachineID: "m1"})
	require.NoError(t, err)
	require.True(t, resp.Found)
	assert.Equal(t, "m1", resp.State.MachineName)
}

func TestSyncRejectsInvalidBatches(t *testing.T) {
	ts := time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		batch *proto.ChangeBatch
	}{
		{name: "missing machine id", batch: &proto.ChangeBatch{Timestamp: ts}},
		{name: "missing timestamp", batch: &proto.ChangeBatch{MachineID: "m1"}},
		{
			name: "unknown category",
			batch: &proto.ChangeBatch{MachineID: "m1", Timestamp: ts, Events: []proto.Event{
				{Category: "gpu", Action: "ADD"},
			}},
		},
		{
			name: "unknown action",
			batch: &proto.ChangeBatch{MachineID: "m1", Timestamp: ts, Events: []proto.Event{
				{Category: string(models.CategoryCPU), Action: "MERGE"},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			client := startSyncServer(t, newSQLiteStore(t), nil)

			stream, err := client.Sync(ctx)
			require.NoError(t, err)
			require.NoError(t, stream.Send(tt.batch))

			_, err = stream.Recv()
			require.Error(t, err)
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}
}

func TestStoreFailuresMapToInternal(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := startSyncServer(t, failingStore{}, nil)

	_, err := client.GetState(ctx, &proto.StateRequest{MachineID: "m1"})
	assert.Equal(t, codes.Internal, status.Code(err))

	stream, err := client.Sync(ctx)
	require.NoError(t, err)
	require.NoError(t, stream.Send(&proto.ChangeBatch{MachineID: "m1", Timestamp: time.Now()}))

	_, err = stream.Recv()
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestGetStateRequiresMachineID(t *testing.T) {
	client := startSyncServer(t, newSQLiteStore(t), nil)

	_, err := client.GetState(context.Background(), &proto.StateRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
