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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/farmradar/pkg/core"
	"github.com/carverauto/farmradar/pkg/db"
	"github.com/carverauto/farmradar/pkg/logger"
	"github.com/carverauto/farmradar/pkg/models"
	"github.com/carverauto/farmradar/pkg/state"
	"github.com/carverauto/farmradar/proto"
)

var errNoHost = errors.New("host metrics unavailable")

type noHost struct{}

func (noHost) CPU(context.Context) (*models.CPUInfo, error) { return nil, errNoHost }

func (noHost) Memory(context.Context) (*models.RAMInfo, *models.SwapInfo, error) {
	return nil, nil, errNoHost
}

func (noHost) Disks(context.Context) ([]models.DiskInfo, error) { return nil, errNoHost }

func farmerLogLine(ts time.Time, msg string) string {
	return fmt.Sprintf("%s farmer farmer_server : DEBUG    %s", ts.Format(state.LogTimeLayout), msg)
}

func TestAgentReplicatesHarvesterConnection(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	log := logger.NewTestLogger()

	store, err := db.New(ctx, &models.DatabaseConfig{
		Driver: models.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "core.db"),
	}, log)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Init(ctx))

	dial, _ := startFakeCore(t, core.NewSyncServer(store, nil, log), 0)

	seen := time.Now().Add(-time.Second)
	logPath := filepath.Join(t.TempDir(), "debug.log")
	lines := []string{
		farmerLogLine(seen, "-> harvester_handshake to peer 10.0.0.7 H1"),
		farmerLogLine(seen, "<- farming_info from peer H1 10.0.0.7"),
	}
	require.NoError(t, os.WriteFile(logPath, []byte(strings.Join(lines, "\n")+"\n"), 0o600))

	cfg := &models.AgentConfig{
		MachineID:    "m1",
		MachineName:  "farm-one",
		LogFile:      logPath,
		SyncInterval: models.Duration(20 * time.Millisecond),
		Tailer:       models.TailerConfig{PollInterval: models.Duration(10 * time.Millisecond)},
	}
	cfg.ApplyDefaults()

	a := New(cfg, log, WithDialer(dial), WithHostCollector(noHost{}), WithPollers(Pollers{}))

	done := make(chan error, 1)
	go func() { done <- a.Start(ctx) }()

	client, closer, err := dial(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closer.Close() })

	var resp *proto.StateResponse

	require.Eventually(t, func() bool {
		resp, err = client.GetState(ctx, &proto.StateRequest{MachineID: "m1"})
		return err == nil && resp.Found && len(resp.State.FarmerHarvesters) == 1
	}, 10*time.Second, 20*time.Millisecond)

	h := resp.State.FarmerHarvesters[0]
	assert.Equal(t, "H1", h.ID)
	assert.Equal(t, "10.0.0.7", h.IPAddress)
	assert.True(t, h.IsConnected)
	assert.Equal(t, "farm-one", resp.State.MachineName)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()

	require.NoError(t, a.Stop(stopCtx))
	require.NoError(t, <-done)
	assert.Equal(t, StateDisconnected, a.SyncClient().State())
}
