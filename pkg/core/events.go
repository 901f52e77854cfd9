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
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/carverauto/farmradar/pkg/db"
	"github.com/carverauto/farmradar/pkg/logger"
	"github.com/carverauto/farmradar/pkg/models"
	"github.com/carverauto/farmradar/pkg/natsutil"
)

const (
	eventSource       = "farmradar/core"
	changeBatchEvent  = "com.carverauto.farmradar.changes.batch"
	subjectTokenLimit = 128
)

// Notifier is told about every applied batch.
type Notifier interface {
	Publish(ctx context.Context, b *db.Batch) error
}

type noopNotifier struct{}

func (noopNotifier) Publish(context.Context, *db.Batch) error { return nil }

// ChangeNotification is one event of a BatchNotification.
type ChangeNotification struct {
	Category models.Category `json:"category"`
	Action   models.Action   `json:"action"`
	EntityID string          `json:"entity_id,omitempty"`
	Summary  string          `json:"summary"`
	Payload  models.Payload  `json:"payload"`
}

// BatchNotification is the CloudEvent data published for an applied batch.
type BatchNotification struct {
	MachineID   string               `json:"machine_id"`
	MachineName string               `json:"machine_name"`
	Timestamp   time.Time            `json:"timestamp"`
	Changes     []ChangeNotification `json:"changes"`
}

// NewBatchNotification converts an applied batch into its notification.
func NewBatchNotification(b *db.Batch) BatchNotification {
	n := BatchNotification{
		MachineID:   b.MachineID,
		MachineName: b.MachineName,
		Timestamp:   b.Timestamp,
		Changes:     make([]ChangeNotification, 0, len(b.Events)),
	}

	if n.MachineName == "" {
		n.MachineName = b.MachineID
	}

	for _, ev := range b.Events {
		n.Changes = append(n.Changes, ChangeNotification{
			Category: ev.Category(),
			Action:   ev.Action,
			EntityID: ev.EntityID(),
			Summary:  ev.String(),
			Payload:  ev.Payload,
		})
	}

	return n
}

// NATSNotifier publishes applied batches as CloudEvents on
// "<subject_prefix>.<machine_id>".
type NATSNotifier struct {
	pub    *natsutil.EventPublisher
	prefix string
	log    logger.Logger
}

// NewNATSNotifier ensures the configured stream exists and returns a notifier
// publishing into it.
func NewNATSNotifier(ctx context.Context, nc *nats.Conn, cfg *models.NATSConfig, log logger.Logger) (*NATSNotifier, error) {
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = models.DefaultNATSSubjectPrefix
	}

	stream := cfg.Stream
	if stream == "" {
		stream = models.DefaultNATSStream
	}

	pub, err := natsutil.CreateEventPublisher(ctx, nc, stream, eventSource, []string{prefix + ".>"})
	if err != nil {
		return nil, err
	}

	log.Info().Str("stream", stream).Str("subject_prefix", prefix).Msg("Change notifications enabled")

	return &NATSNotifier{pub: pub, prefix: prefix, log: log}, nil
}

// Subject returns the subject notifications for machineID are published on.
func (n *NATSNotifier) Subject(machineID string) string {
	return n.prefix + "." + subjectToken(machineID)
}

// Publish implements Notifier.
func (n *NATSNotifier) Publish(ctx context.Context, b *db.Batch) error {
	subject := n.Subject(b.MachineID)

	seq, err := n.pub.Publish(ctx, subject, changeBatchEvent, b.Timestamp, NewBatchNotification(b))
	if err != nil {
		return fmt.Errorf("notify %s: %w", subject, err)
	}

	n.log.Debug().Str("subject", subject).Uint64("seq", seq).Int("changes", len(b.Events)).Msg("Published change notification")

	return nil
}

// subjectToken maps a machine id onto a single NATS subject token.
func subjectToken(id string) string {
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		default:
			return r
		}
	}, id)

	if len(token) > subjectTokenLimit {
		token = token[:subjectTokenLimit]
	}

	if token == "" {
		return "_"
	}

	return token
}
