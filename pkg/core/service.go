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
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/carverauto/farmradar/pkg/db"
	ggrpc "github.com/carverauto/farmradar/pkg/grpc"
	"github.com/carverauto/farmradar/pkg/logger"
	"github.com/carverauto/farmradar/pkg/models"
	"github.com/carverauto/farmradar/pkg/natsutil"
	"github.com/carverauto/farmradar/proto"
)

// Service owns the store, the FarmSync gRPC server, the notifier and the
// HTTP API.
type Service struct {
	cfg      *models.CoreConfig
	log      logger.Logger
	store    *db.Store
	provider ggrpc.SecurityProvider
	grpcSrv  *ggrpc.Server
	api      *APIServer
	nc       *nats.Conn
	done     chan struct{}
	stopOnce sync.Once
}

// NewService opens the store, creates its schema and wires every server.
func NewService(ctx context.Context, cfg *models.CoreConfig, log logger.Logger) (*Service, error) {
	store, err := db.New(ctx, &cfg.Database, log)
	if err != nil {
		return nil, err
	}

	s := &Service{cfg: cfg, log: log, store: store, done: make(chan struct{})}

	if err := s.init(ctx); err != nil {
		_ = s.close()
		return nil, err
	}

	return s, nil
}

func (s *Service) init(ctx context.Context) error {
	if err := s.store.Init(ctx); err != nil {
		return err
	}

	var notifier Notifier

	if s.cfg.NATS != nil && s.cfg.NATS.Enabled {
		nc, err := natsutil.Connect(s.cfg.NATS, s.cfg.Security, s.log)
		if err != nil {
			return err
		}

		s.nc = nc

		n, err := NewNATSNotifier(ctx, nc, s.cfg.NATS, s.log)
		if err != nil {
			return err
		}

		notifier = n
	}

	provider, err := ggrpc.NewSecurityProvider(ctx, s.cfg.Security, s.log)
	if err != nil {
		return fmt.Errorf("failed to create security provider: %w", err)
	}

	s.provider = provider

	creds, err := provider.GetServerCredentials(ctx)
	if err != nil {
		return fmt.Errorf("failed to get server credentials: %w", err)
	}

	s.grpcSrv = ggrpc.NewServer(s.cfg.ListenAddr, s.log,
		ggrpc.WithServerOptions(creds),
		ggrpc.WithMaxRecvSize(s.cfg.MaxRecvSize),
		ggrpc.WithTelemetryFilter(ggrpc.SkipHealthChecks))
	s.grpcSrv.RegisterService(&proto.FarmSync_ServiceDesc, NewSyncServer(s.store, notifier, s.log))

	if s.cfg.HTTPAddr != "" {
		s.api = NewAPIServer(s.store, s.log, WithAPIKey(s.cfg.APIKey))
	}

	return nil
}

// Start serves gRPC and HTTP until Stop or until one of them fails, in which
// case the other is stopped as well.
func (s *Service) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(s.grpcSrv.Start)

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-s.done:
		}

		s.grpcSrv.Stop(context.Background())

		if s.api != nil {
			return s.api.Stop(context.Background())
		}

		return nil
	})

	if s.api != nil {
		g.Go(func() error {
			return s.api.Start(s.cfg.HTTPAddr)
		})
	}

	s.log.Info().
		Str("grpc_addr", s.cfg.ListenAddr).
		Str("http_addr", s.cfg.HTTPAddr).
		Str("database", string(s.cfg.Database.Driver)).
		Msg("Core service started")

	return g.Wait()
}

// Stop shuts every server down and releases the store.
func (s *Service) Stop(ctx context.Context) error {
	var errs []error

	s.stopOnce.Do(func() { close(s.done) })

	if s.grpcSrv != nil {
		s.grpcSrv.Stop(ctx)
	}

	if s.api != nil {
		if err := s.api.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if err := s.close(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (s *Service) close() error {
	var err error

	if s.nc != nil {
		if drainErr := s.nc.Drain(); drainErr != nil {
			err = drainErr
		}
	}

	if s.provider != nil {
		if closeErr := s.provider.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}

	s.store.Close()

	return err
}
