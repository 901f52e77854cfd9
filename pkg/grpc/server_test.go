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

package grpc

import (
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	grpcstats "google.golang.org/grpc/stats"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/carverauto/farmradar/pkg/logger"
	"github.com/carverauto/farmradar/pkg/models"
)

func TestNewSecurityProviderRequiresInsecureOptIn(t *testing.T) {
	ctx := context.Background()
	log := logger.NewTestLogger()

	t.Setenv(AllowInsecureEnv, "")

	_, err := NewSecurityProvider(ctx, nil, log)
	require.ErrorIs(t, err, errInsecureNotAllowed)

	t.Setenv(AllowInsecureEnv, "true")

	provider, err := NewSecurityProvider(ctx, &models.SecurityConfig{Mode: "NONE"}, log)
	require.NoError(t, err)
	assert.IsType(t, &NoSecurityProvider{}, provider)

	_, err = NewSecurityProvider(ctx, &models.SecurityConfig{Mode: "spiffe"}, log)
	require.ErrorIs(t, err, errUnknownSecurityMode)

	_, err = NewSecurityProvider(ctx, &models.SecurityConfig{Mode: models.SecurityModeMTLS}, log)
	require.ErrorIs(t, err, errFailedToCreateMTLSProvider)
}

func TestMTLSHealthCheckOverBufconn(t *testing.T) {
	dir := t.TempDir()
	writeTestPKI(t, dir)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log := logger.NewTestLogger()

	serverProvider, err := NewSecurityProvider(ctx, &models.SecurityConfig{
		Mode: models.SecurityModeMTLS,
		TLS: models.TLSConfig{
			CertFile: filepath.Join(dir, "core.pem"),
			KeyFile:  filepath.Join(dir, "core-key.pem"),
			CAFile:   filepath.Join(dir, "ca.pem"),
		},
	}, log)
	require.NoError(t, err)

	creds, err := serverProvider.GetServerCredentials(ctx)
	require.NoError(t, err)

	srv := NewServer("bufnet", log, WithServerOptions(creds), WithTelemetryDisabled())
	srv.RegisterService(&grpc.ServiceDesc{ServiceName: "farmradar.Test", HandlerType: (*interface{})(nil)}, struct{}{})

	lis := bufconn.Listen(1 << 20)

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() { srv.Stop(context.Background()) })

	clientProvider, err := NewMTLSProvider(&models.SecurityConfig{
		Mode:       models.SecurityModeMTLS,
		ServerName: "localhost",
		TLS: models.TLSConfig{
			CertFile: filepath.Join(dir, "agent.pem"),
			KeyFile:  filepath.Join(dir, "agent-key.pem"),
			CAFile:   filepath.Join(dir, "ca.pem"),
		},
	}, log)
	require.NoError(t, err)

	conn, err := NewClientConn(ctx, "passthrough:///bufnet", clientProvider,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: "farmradar.Test"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestMaxRecvSizeRejectsLargeMessages(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log := logger.NewTestLogger()

	srv := NewServer("bufnet", log,
		WithServerOptions(grpc.Creds(insecure.NewCredentials())),
		WithTelemetryDisabled(),
		WithMaxRecvSize(1024))
	srv.RegisterService(&grpc.ServiceDesc{ServiceName: "farmradar.Test", HandlerType: (*interface{})(nil)}, struct{}{})

	lis := bufconn.Listen(1 << 20)

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() { srv.Stop(context.Background()) })

	conn, err := NewClientConn(ctx, "passthrough:///bufnet", &NoSecurityProvider{},
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client := healthpb.NewHealthClient(conn)

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "farmradar.Test"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	_, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: strings.Repeat("x", 4096)})
	require.Error(t, err)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestSkipHealthChecks(t *testing.T) {
	assert.False(t, SkipHealthChecks(&grpcstats.RPCTagInfo{FullMethodName: "/grpc.health.v1.Health/Check"}))
	assert.False(t, SkipHealthChecks(&grpcstats.RPCTagInfo{FullMethodName: "/grpc.health.v1.Health/Watch"}))
	assert.True(t, SkipHealthChecks(&grpcstats.RPCTagInfo{FullMethodName: "/farmradar.FarmSync/Sync"}))
}

func TestNewClientConnRequiresAddress(t *testing.T) {
	_, err := NewClientConn(context.Background(), "", &NoSecurityProvider{})
	require.ErrorIs(t, err, errAddressRequired)
}

func TestRecoveryInterceptor(t *testing.T) {
	interceptor := RecoveryInterceptor(logger.NewTestLogger())

	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x/Y"},
		func(context.Context, interface{}) (interface{}, error) { panic("boom") })

	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))
}

type fakeServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f *fakeServerStream) Context() context.Context { return f.ctx }

func TestStreamInterceptors(t *testing.T) {
	log := logger.NewTestLogger()
	info := &grpc.StreamServerInfo{FullMethod: "/farmradar.FarmSync/Sync"}
	ss := &fakeServerStream{ctx: context.Background()}

	err := StreamRecoveryInterceptor(log)(nil, ss, info, func(interface{}, grpc.ServerStream) error {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))

	var injected logger.Logger

	err = StreamLoggingInterceptor(log)(nil, ss, info, func(_ interface{}, stream grpc.ServerStream) error {
		injected, _ = stream.Context().Value(loggerKey{}).(logger.Logger)
		return nil
	})
	require.NoError(t, err)
	assert.NotNil(t, injected)
}
