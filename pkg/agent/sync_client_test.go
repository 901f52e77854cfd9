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

package agent

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/carverauto/farmradar/pkg/logger"
	"github.com/carverauto/farmradar/pkg/models"
	"github.com/carverauto/farmradar/pkg/ratelimit"
	"github.com/carverauto/farmradar/proto"
)

var errDialRefused = errors.New("dial refused")

type fakeCore struct {
	proto.UnimplementedFarmSyncServer

	baseline      *models.ComputerInfo
	batches       chan *proto.ChangeBatch
	getStates     atomic.Int32
	failFirstSync atomic.Bool
}

func (f *fakeCore) GetState(_ context.Context, _ *proto.StateRequest) (*proto.StateResponse, error) {
	f.getStates.Add(1)

	return &proto.StateResponse{Found: f.baseline != nil, State: f.baseline}, nil
}

func (f *fakeCore) Sync(stream proto.FarmSync_SyncServer) error {
	if f.failFirstSync.CompareAndSwap(true, false) {
		return status.Error(codes.Unavailable, "core restarting")
	}

	for {
		batch, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		f.batches <- batch

		if err := stream.Send(&proto.BatchAck{Timestamp: batch.Timestamp, Applied: len(batch.Events)}); err != nil {
			return err
		}
	}
}

type fixedBuilder struct {
	snap *models.ComputerInfo
}

func (b *fixedBuilder) Build(context.Context) (*models.ComputerInfo, error) {
	ci := *b.snap
	ci.Timestamp = time.Now().UTC()

	return &ci, nil
}

type gate chan struct{}

func (g gate) WaitReady(ctx context.Context) error {
	select {
	case <-g:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func openGate() gate {
	g := make(gate)
	close(g)

	return g
}

// startFakeCore serves core on bufconn and returns a Dialer that fails the
// first failDials attempts.
func startFakeCore(t *testing.T, core proto.FarmSyncServer, failDials int32) (Dialer, *atomic.Int32) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	proto.RegisterFarmSyncServer(srv, core)

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	var dials atomic.Int32

	dial := func(context.Context) (proto.FarmSyncClient, io.Closer, error) {
		if dials.Add(1) <= failDials {
			return nil, nil, errDialRefused
		}

		conn, err := grpc.NewClient("passthrough:///bufnet",
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}))
		if err != nil {
			return nil, nil, err
		}

		return proto.NewFarmSyncClient(conn), conn, nil
	}

	return dial, &dials
}

func machineSnapshot() *models.ComputerInfo {
	ci := models.NewComputerInfo("m1", "farm-one", time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	ci.RAM = &models.RAMInfo{TotalBytes: 64 << 30, UsedBytes: 16 << 30}

	return ci
}

// timedBuilder records when each Build starts and takes delay to finish.
type timedBuilder struct {
	snap  *models.ComputerInfo
	delay time.Duration

	mu     sync.Mutex
	starts []time.Time
}

func (b *timedBuilder) Build(ctx context.Context) (*models.ComputerInfo, error) {
	b.mu.Lock()
	b.starts = append(b.starts, time.Now())
	b.mu.Unlock()

	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	ci := *b.snap
	ci.Timestamp = time.Now().UTC()

	return &ci, nil
}

func (b *timedBuilder) gaps(n int) []time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.starts) < n+1 {
		return nil
	}

	out := make([]time.Duration, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, b.starts[i].Sub(b.starts[i-1]))
	}

	return out
}

func runSyncClient(t *testing.T, dial Dialer, builder SnapshotBuilder, ready ReadinessWaiter) *SyncClient {
	t.Helper()

	return runSyncClientEvery(t, 20*time.Millisecond, dial, builder, ready)
}

func runSyncClientEvery(t *testing.T, interval time.Duration, dial Dialer, builder SnapshotBuilder, ready ReadinessWaiter) *SyncClient {
	t.Helper()

	client := NewSyncClient(SyncClientConfig{
		MachineID:      "m1",
		MachineName:    "farm-one",
		SyncInterval:   interval,
		ReconnectDelay: 10 * time.Millisecond,
	}, dial, builder, ready, ratelimit.New(nil), logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- client.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	})

	return client
}

func receiveBatch(t *testing.T, batches <-chan *proto.ChangeBatch) []models.ChangeEvent {
	t.Helper()

	select {
	case batch := <-batches:
		assert.Equal(t, "m1", batch.MachineID)
		assert.Equal(t, "farm-one", batch.MachineName)

		events, err := batch.ChangeEvents()
		require.NoError(t, err)

		return events
	case <-time.After(5 * time.Second):
		t.Fatal("no batch received")
		return nil
	}
}

func actionsByCategory(events []models.ChangeEvent) map[models.Category]models.Action {
	out := make(map[models.Category]models.Action, len(events))
	for _, ev := range events {
		out[ev.Category()] = ev.Action
	}

	return out
}

func TestSyncClientDiffsAgainstCoreBaseline(t *testing.T) {
	core := &fakeCore{baseline: machineSnapshot(), batches: make(chan *proto.ChangeBatch, 16)}
	dial, _ := startFakeCore(t, core, 0)

	cur := machineSnapshot()
	cur.RAM.UsedBytes = 20 << 30
	cur.Disks = []models.DiskInfo{{ID: "/plots", Device: "/dev/sdb1", TotalBytes: 100, UsedBytes: 10}}

	client := runSyncClient(t, dial, &fixedBuilder{snap: cur}, openGate())

	events := receiveBatch(t, core.batches)
	assert.Equal(t, map[models.Category]models.Action{
		models.CategoryRAM:  models.ActionUpdate,
		models.CategoryDisk: models.ActionAdd,
	}, actionsByCategory(events))

	// Unchanged snapshots produce no further batches.
	select {
	case batch := <-core.batches:
		t.Fatalf("unexpected batch with %d events", len(batch.Events))
	case <-time.After(100 * time.Millisecond):
	}

	assert.Equal(t, StateSynchronized, client.State())
	assert.Equal(t, int64(1), client.BatchesSent())
}

func TestSyncClientSendsFullStateWithoutBaseline(t *testing.T) {
	core := &fakeCore{batches: make(chan *proto.ChangeBatch, 16)}
	dial, _ := startFakeCore(t, core, 0)

	runSyncClient(t, dial, &fixedBuilder{snap: machineSnapshot()}, openGate())

	events := receiveBatch(t, core.batches)
	assert.Equal(t, map[models.Category]models.Action{
		models.CategoryRAM: models.ActionAdd,
	}, actionsByCategory(events))
}

func TestSyncClientWaitsForReadiness(t *testing.T) {
	core := &fakeCore{batches: make(chan *proto.ChangeBatch, 16)}
	dial, _ := startFakeCore(t, core, 0)

	ready := make(gate)
	client := runSyncClient(t, dial, &fixedBuilder{snap: machineSnapshot()}, ready)

	require.Eventually(t, func() bool { return core.getStates.Load() == 1 }, 5*time.Second, 5*time.Millisecond)

	select {
	case <-core.batches:
		t.Fatal("batch sent before readiness")
	case <-time.After(100 * time.Millisecond):
	}

	assert.Equal(t, StateConnecting, client.State())

	close(ready)

	receiveBatch(t, core.batches)
	assert.Equal(t, StateSynchronized, client.State())
}

func TestSyncClientReconnects(t *testing.T) {
	core := &fakeCore{baseline: machineSnapshot(), batches: make(chan *proto.ChangeBatch, 16)}
	core.failFirstSync.Store(true)

	dial, dials := startFakeCore(t, core, 1)

	cur := machineSnapshot()
	cur.RAM.UsedBytes = 32 << 30

	runSyncClient(t, dial, &fixedBuilder{snap: cur}, openGate())

	events := receiveBatch(t, core.batches)
	assert.Equal(t, map[models.Category]models.Action{
		models.CategoryRAM: models.ActionUpdate,
	}, actionsByCategory(events))

	// One refused dial, one session dropped by the core, then the session
	// that delivered the batch. Every session re-fetches the baseline.
	assert.GreaterOrEqual(t, dials.Load(), int32(3))
	assert.GreaterOrEqual(t, core.getStates.Load(), int32(2))
}

func TestSyncClientSpacesFastCycles(t *testing.T) {
	const interval = 50 * time.Millisecond

	core := &fakeCore{batches: make(chan *proto.ChangeBatch, 16)}
	dial, _ := startFakeCore(t, core, 0)

	builder := &timedBuilder{snap: machineSnapshot()}
	runSyncClientEvery(t, interval, dial, builder, openGate())

	var gaps []time.Duration

	require.Eventually(t, func() bool {
		gaps = builder.gaps(4)
		return gaps != nil
	}, 5*time.Second, 5*time.Millisecond)

	// Each cycle starts one interval after the previous one started.
	for _, gap := range gaps {
		assert.GreaterOrEqual(t, gap, interval-5*time.Millisecond)
	}
}

func TestSyncClientStartsSlowCyclesImmediately(t *testing.T) {
	const (
		interval = 100 * time.Millisecond
		delay    = 150 * time.Millisecond
	)

	core := &fakeCore{batches: make(chan *proto.ChangeBatch, 16)}
	dial, _ := startFakeCore(t, core, 0)

	builder := &timedBuilder{snap: machineSnapshot(), delay: delay}
	runSyncClientEvery(t, interval, dial, builder, openGate())

	var gaps []time.Duration

	require.Eventually(t, func() bool {
		gaps = builder.gaps(3)
		return gaps != nil
	}, 5*time.Second, 10*time.Millisecond)

	// A cycle that overran the interval is followed at once by the next,
	// without another interval of sleep.
	for _, gap := range gaps {
		assert.GreaterOrEqual(t, gap, delay)
		assert.Less(t, gap, delay+interval)
	}
}
