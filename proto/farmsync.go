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

// Package proto holds the FarmSync wire messages, their CBOR codec and the
// gRPC service stubs shared by the agent and the core.
package proto

import (
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/carverauto/farmradar/pkg/models"
)

var errNilPayload = errors.New("event has no payload")

// StateRequest asks for the last state the core holds for a machine.
type StateRequest struct {
	MachineID string `cbor:"1,keyasint"`
}

// StateResponse carries the latest-state projection of a machine.
// Found is false for machines the core has never heard from.
type StateResponse struct {
	Found bool                 `cbor:"1,keyasint"`
	State *models.ComputerInfo `cbor:"2,keyasint,omitempty"`
}

// Event is the wire form of models.ChangeEvent. Data is the CBOR
// encoding of the category payload.
type Event struct {
	Category string          `cbor:"1,keyasint"`
	Action   string          `cbor:"2,keyasint"`
	Data     cbor.RawMessage `cbor:"3,keyasint"`
}

// ChangeBatch is one agent send: every event produced by one sync cycle.
type ChangeBatch struct {
	MachineID   string    `cbor:"1,keyasint"`
	MachineName string    `cbor:"2,keyasint"`
	Timestamp   time.Time `cbor:"3,keyasint"`
	Events      []Event   `cbor:"4,keyasint"`
}

// BatchAck acknowledges a ChangeBatch by its timestamp.
type BatchAck struct {
	Timestamp time.Time `cbor:"1,keyasint"`
	Applied   int       `cbor:"2,keyasint"`
}

// NewEvent encodes a change event for the wire.
func NewEvent(ev models.ChangeEvent) (Event, error) {
	if ev.Payload == nil {
		return Event{}, errNilPayload
	}

	data, err := Marshal(ev.Payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", ev.Category(), err)
	}

	return Event{
		Category: string(ev.Category()),
		Action:   string(ev.Action),
		Data:     data,
	}, nil
}

// ChangeEvent decodes the wire event into its typed payload.
func (e *Event) ChangeEvent() (models.ChangeEvent, error) {
	action, err := models.ParseAction(e.Action)
	if err != nil {
		return models.ChangeEvent{}, err
	}

	payload, err := models.NewPayload(models.Category(e.Category))
	if err != nil {
		return models.ChangeEvent{}, err
	}

	if err := Unmarshal(e.Data, payload); err != nil {
		return models.ChangeEvent{}, fmt.Errorf("decode %s payload: %w", e.Category, err)
	}

	models.NormalizeTimes(payload)

	return models.ChangeEvent{Action: action, Payload: payload}, nil
}

// NewChangeBatch encodes a sync cycle's events.
func NewChangeBatch(machineID, machineName string, ts time.Time, events []models.ChangeEvent) (*ChangeBatch, error) {
	batch := &ChangeBatch{
		MachineID:   machineID,
		MachineName: machineName,
		Timestamp:   models.NormalizeTime(ts),
		Events:      make([]Event, 0, len(events)),
	}

	for _, ev := range events {
		wire, err := NewEvent(ev)
		if err != nil {
			return nil, err
		}

		batch.Events = append(batch.Events, wire)
	}

	return batch, nil
}

// ChangeEvents decodes every event of the batch, in order.
func (b *ChangeBatch) ChangeEvents() ([]models.ChangeEvent, error) {
	out := make([]models.ChangeEvent, 0, len(b.Events))

	for i := range b.Events {
		ev, err := b.Events[i].ChangeEvent()
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}

		out = append(out, ev)
	}

	return out, nil
}
