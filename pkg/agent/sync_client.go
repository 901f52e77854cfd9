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
	"io"
	"sync/atomic"
	"time"

	"github.com/carverauto/farmradar/pkg/logger"
	"github.com/carverauto/farmradar/pkg/models"
	"github.com/carverauto/farmradar/pkg/ratelimit"
	"github.com/carverauto/farmradar/pkg/snapshot"
	"github.com/carverauto/farmradar/proto"
)

// ConnState is the state of the sync session.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateSynchronized
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateSynchronized:
		return "SYNCHRONIZED"
	default:
		return fmt.Sprintf("ConnState(%d)", int32(s))
	}
}

// SnapshotBuilder produces the current snapshot of the machine.
type SnapshotBuilder interface {
	Build(ctx context.Context) (*models.ComputerInfo, error)
}

// ReadinessWaiter blocks until the state is complete enough to send.
type ReadinessWaiter interface {
	WaitReady(ctx context.Context) error
}

// Dialer opens a FarmSync connection. The returned closer releases it.
type Dialer func(ctx context.Context) (proto.FarmSyncClient, io.Closer, error)

// SyncClientConfig tunes the sync loop.
type SyncClientConfig struct {
	MachineID      string
	MachineName    string
	SyncInterval   time.Duration
	ReconnectDelay time.Duration
}

// SyncClient keeps the core's copy of this machine up to date. Each session
// fetches the core's state as baseline, waits for readiness, then sends the
// rate-limited difference between consecutive snapshots.
type SyncClient struct {
	cfg     SyncClientConfig
	dial    Dialer
	builder SnapshotBuilder
	ready   ReadinessWaiter
	limiter *ratelimit.Limiter
	logger  logger.Logger
	state   atomic.Int32
	sent    atomic.Int64
}

// NewSyncClient creates a sync client.
func NewSyncClient(
	cfg SyncClientConfig,
	dial Dialer,
	builder SnapshotBuilder,
	ready ReadinessWaiter,
	limiter *ratelimit.Limiter,
	log logger.Logger,
) *SyncClient {
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = models.DefaultSyncInterval
	}

	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = models.DefaultReconnectDelay
	}

	return &SyncClient{
		cfg:     cfg,
		dial:    dial,
		builder: builder,
		ready:   ready,
		limiter: limiter,
		logger:  log,
	}
}

// State returns the current session state.
func (c *SyncClient) State() ConnState {
	return ConnState(c.state.Load())
}

// BatchesSent returns the number of batches sent since start.
func (c *SyncClient) BatchesSent() int64 {
	return c.sent.Load()
}

func (c *SyncClient) setState(s ConnState) {
	if ConnState(c.state.Swap(int32(s))) != s {
		c.logger.Debug().Str("state", s.String()).Msg("Sync state changed")
	}
}

// Run keeps a session open until ctx is cancelled, reconnecting after
// reconnect_delay whenever it fails. It returns ctx.Err().
func (c *SyncClient) Run(ctx context.Context) error {
	c.logger.Info().
		Dur("sync_interval", c.cfg.SyncInterval).
		Dur("reconnect_delay", c.cfg.ReconnectDelay).
		Msg("Starting sync client")

	for {
		err := c.session(ctx)

		c.setState(StateDisconnected)

		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn().Err(err).Dur("retry_in", c.cfg.ReconnectDelay).Msg("Sync session ended, reconnecting")

		timer := time.NewTimer(c.cfg.ReconnectDelay)

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *SyncClient) session(ctx context.Context) error {
	c.setState(StateConnecting)

	client, closer, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	defer func() {
		if err := closer.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Failed to close sync connection")
		}
	}()

	resp, err := client.GetState(ctx, &proto.StateRequest{MachineID: c.cfg.MachineID})
	if err != nil {
		return fmt.Errorf("get state: %w", err)
	}

	var baseline *models.ComputerInfo
	if resp.Found {
		baseline = resp.State
	}

	sctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	stream, err := client.Sync(sctx)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}

	go c.receiveAcks(stream, cancel)

	if err := c.ready.WaitReady(sctx); err != nil {
		return sessionErr(sctx, err)
	}

	c.setState(StateSynchronized)
	c.logger.Info().Bool("baseline_found", resp.Found).Msg("Synchronized with core")

	for {
		start := time.Now()

		next, err := c.syncOnce(sctx, stream, baseline)
		if err != nil {
			return sessionErr(sctx, err)
		}

		baseline = next

		wait := time.NewTimer(time.Until(start.Add(c.cfg.SyncInterval)))

		select {
		case <-sctx.Done():
			wait.Stop()
			return sessionErr(sctx, sctx.Err())
		case <-wait.C:
		}
	}
}

// syncOnce builds a snapshot, sends its rate-limited difference to baseline
// and returns the snapshot as the next baseline.
func (c *SyncClient) syncOnce(ctx context.Context, stream proto.FarmSync_SyncClient, baseline *models.ComputerInfo) (*models.ComputerInfo, error) {
	snap, err := c.builder.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("build snapshot: %w", err)
	}

	events := snapshot.Diff(baseline, snap)
	allowed := c.limiter.Filter(events)

	if len(allowed) > 0 {
		batch, err := proto.NewChangeBatch(c.cfg.MachineID, c.cfg.MachineName, snap.Timestamp, allowed)
		if err != nil {
			return nil, err
		}

		if err := stream.Send(batch); err != nil {
			return nil, fmt.Errorf("send batch: %w", err)
		}

		c.sent.Add(1)

		c.logger.Debug().
			Int("events", len(allowed)).
			Int("throttled", len(events)-len(allowed)).
			Msg("Sent change batch")
	}

	return snap, nil
}

func (c *SyncClient) receiveAcks(stream proto.FarmSync_SyncClient, cancel context.CancelCauseFunc) {
	for {
		ack, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = errStreamClosed
			}

			cancel(fmt.Errorf("receive ack: %w", err))

			return
		}

		c.logger.Debug().Time("timestamp", ack.Timestamp).Int("applied", ack.Applied).Msg("Batch acknowledged")
	}
}

// sessionErr prefers the cause recorded by the ack receiver.
func sessionErr(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}

	return err
}
