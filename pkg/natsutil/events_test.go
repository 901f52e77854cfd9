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

package natsutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/farmradar/pkg/logger"
	"github.com/carverauto/farmradar/pkg/models"
)

func runJetStreamServer(t *testing.T) *server.Server {
	t.Helper()

	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	}

	srv, err := server.NewServer(opts)
	require.NoError(t, err)

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		t.Fatalf("embedded NATS server not ready for connections")
	}

	require.Eventually(t, func() bool {
		return srv.JetStreamEnabled()
	}, 5*time.Second, 50*time.Millisecond, "embedded NATS server not ready for JetStream")

	t.Cleanup(srv.Shutdown)

	return srv
}

func TestPublishCreatesStreamAndStoresCloudEvent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	srv := runJetStreamServer(t)

	nc, err := Connect(&models.NATSConfig{URL: srv.ClientURL()}, nil, logger.NewTestLogger())
	require.NoError(t, err)

	defer nc.Close()

	pub, err := CreateEventPublisher(ctx, nc, "TEST", "farmradar/test", []string{"test.>"})
	require.NoError(t, err)
	assert.Equal(t, "TEST", pub.Stream())

	// A second publisher reuses the existing stream.
	_, err = CreateEventPublisher(ctx, nc, "TEST", "farmradar/test", []string{"test.>"})
	require.NoError(t, err)

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	seq, err := pub.Publish(ctx, "test.m1", "com.example.test", ts, map[string]string{"hello": "world"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	stream, err := js.Stream(ctx, "TEST")
	require.NoError(t, err)

	msg, err := stream.GetLastMsgForSubject(ctx, "test.m1")
	require.NoError(t, err)

	var got struct {
		CloudEvent
		Data map[string]string `json:"data"`
	}

	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, "1.0", got.SpecVersion)
	assert.Equal(t, "farmradar/test", got.Source)
	assert.Equal(t, "com.example.test", got.Type)
	assert.Equal(t, "test.m1", got.Subject)
	assert.NotEmpty(t, got.ID)
	require.NotNil(t, got.Time)
	assert.True(t, ts.Equal(*got.Time))
	assert.Equal(t, map[string]string{"hello": "world"}, got.Data)
}

func TestTLSConfigRequiresMTLS(t *testing.T) {
	_, err := TLSConfig(nil)
	require.ErrorIs(t, err, ErrMTLSRequired)

	_, err = TLSConfig(&models.SecurityConfig{Mode: models.SecurityModeNone})
	require.ErrorIs(t, err, ErrMTLSRequired)
}
