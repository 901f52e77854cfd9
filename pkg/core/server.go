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

// Package core is the central service: it receives change batches from the
// agents over FarmSync, persists them, notifies subscribers and serves a
// read-only query API.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/carverauto/farmradar/pkg/db"
	ggrpc "github.com/carverauto/farmradar/pkg/grpc"
	"github.com/carverauto/farmradar/pkg/logger"
	"github.com/carverauto/farmradar/pkg/models"
	"github.com/carverauto/farmradar/proto"
)

// Store is the persistence used by the core.
type Store interface {
	ApplyBatch(ctx context.Context, b *db.Batch) error
	ReadState(ctx context.Context, machineID string) (*models.ComputerInfo, bool, error)
	ReadMachines(ctx context.Context) ([]db.Machine, error)
	ReadHistory(ctx context.Context, c models.Category, from, to time.Time) (map[string][]db.HistoryRecord, error)
	Query(ctx context.Context, query string, params ...any) ([]map[string]any, error)
}

// SyncServer implements the FarmSync service.
type SyncServer struct {
	proto.UnimplementedFarmSyncServer

	store    Store
	notifier Notifier
	log      logger.Logger
}

// NewSyncServer creates a FarmSync server. A nil notifier disables
// notifications.
func NewSyncServer(store Store, notifier Notifier, log logger.Logger) *SyncServer {
	if notifier == nil {
		notifier = noopNotifier{}
	}

	return &SyncServer{
		store:    store,
		notifier: notifier,
		log:      log,
	}
}

// GetState returns the latest state stored for a machine.
func (s *SyncServer) GetState(ctx context.Context, req *proto.StateRequest) (*proto.StateResponse, error) {
	if req == nil || req.MachineID == "" {
		return nil, status.Error(codes.InvalidArgument, errMachineIDRequired.Error())
	}

	ci, found, err := s.store.ReadState(ctx, req.MachineID)
	if err != nil {
		s.log.Error().Err(err).Str("machine_id", req.MachineID).Msg("Failed to read machine state")

		return nil, status.Error(codes.Internal, errStateFailure.Error())
	}

	ggrpc.FromContext(ctx).Debug().
		Str("machine_id", req.MachineID).
		Bool("found", found).
		Msg("Served machine state")

	return &proto.StateResponse{Found: found, State: ci}, nil
}

// Sync applies every inbound batch in order and acknowledges it. A batch that
// violates the protocol aborts the stream with InvalidArgument; a storage
// failure aborts it with Internal.
func (s *SyncServer) Sync(stream proto.FarmSync_SyncServer) error {
	ctx := stream.Context()
	reqLog := ggrpc.FromContext(ctx)

	for {
		batch, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		applied, err := s.apply(ctx, batch)
		if err != nil {
			reqLog.Warn().Err(err).Str("machine_id", batch.MachineID).Msg("Rejected change batch")

			return err
		}

		if err := stream.Send(&proto.BatchAck{Timestamp: batch.Timestamp, Applied: applied}); err != nil {
			return err
		}
	}
}

func (s *SyncServer) apply(ctx context.Context, batch *proto.ChangeBatch) (int, error) {
	if batch.MachineID == "" {
		return 0, status.Error(codes.InvalidArgument, errMachineIDRequired.Error())
	}

	if batch.Timestamp.IsZero() {
		return 0, status.Error(codes.InvalidArgument, errTimestampRequired.Error())
	}

	events, err := batch.ChangeEvents()
	if err != nil {
		return 0, status.Error(codes.InvalidArgument, fmt.Sprintf("%s: %v", errInvalidBatch, err))
	}

	b := &db.Batch{
		MachineID:   batch.MachineID,
		MachineName: batch.MachineName,
		Timestamp:   models.NormalizeTime(batch.Timestamp),
		Events:      events,
	}

	if err := s.store.ApplyBatch(ctx, b); err != nil {
		s.log.Error().Err(err).Str("machine_id", b.MachineID).Msg("Failed to apply change batch")

		if errors.Is(err, db.ErrInvalidEvent) {
			return 0, status.Error(codes.InvalidArgument, fmt.Sprintf("%s: %v", errInvalidBatch, err))
		}

		return 0, status.Error(codes.Internal, errStoreFailure.Error())
	}

	s.log.Debug().
		Str("machine_id", b.MachineID).
		Time("timestamp", b.Timestamp).
		Int("events", len(events)).
		Msg("Applied change batch")

	if len(events) > 0 {
		if err := s.notifier.Publish(ctx, b); err != nil {
			s.log.Warn().Err(err).Str("machine_id", b.MachineID).Msg("Failed to publish change notification")
		}
	}

	return len(events), nil
}
