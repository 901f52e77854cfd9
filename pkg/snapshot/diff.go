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

package snapshot

import (
	"sort"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/carverauto/farmradar/pkg/models"
)

var payloadEqual = []cmp.Option{cmpopts.EquateEmpty()}

// Diff returns the events turning old into cur, in Schema category order and
// ascending id order within collections. A nil snapshot is treated as empty.
func Diff(old, cur *models.ComputerInfo) []models.ChangeEvent {
	if old == nil {
		old = &models.ComputerInfo{}
	}

	if cur == nil {
		cur = &models.ComputerInfo{}
	}

	var events []models.ChangeEvent

	for _, spec := range models.Schema {
		before := spec.Extract(old)
		after := spec.Extract(cur)

		if spec.Collection {
			events = diffCollection(events, before, after)
		} else {
			events = diffSingleton(events, before, after)
		}
	}

	return events
}

func diffSingleton(events []models.ChangeEvent, before, after []models.Payload) []models.ChangeEvent {
	switch {
	case len(before) == 0 && len(after) == 0:
		return events
	case len(before) == 0:
		return append(events, models.ChangeEvent{Action: models.ActionAdd, Payload: after[0]})
	case len(after) == 0:
		return append(events, models.ChangeEvent{Action: models.ActionDelete, Payload: before[0]})
	case !cmp.Equal(before[0], after[0], payloadEqual...):
		return append(events, models.ChangeEvent{Action: models.ActionUpdate, Payload: after[0]})
	default:
		return events
	}
}

func diffCollection(events []models.ChangeEvent, before, after []models.Payload) []models.ChangeEvent {
	oldByID := indexByID(before)
	newByID := indexByID(after)

	ids := make([]string, 0, len(oldByID)+len(newByID))
	for id := range oldByID {
		ids = append(ids, id)
	}

	for id := range newByID {
		if _, ok := oldByID[id]; !ok {
			ids = append(ids, id)
		}
	}

	sort.Strings(ids)

	for _, id := range ids {
		o, hadOld := oldByID[id]
		n, hasNew := newByID[id]

		switch {
		case !hadOld:
			events = append(events, models.ChangeEvent{Action: models.ActionAdd, Payload: n})
		case !hasNew:
			events = append(events, models.ChangeEvent{Action: models.ActionDelete, Payload: o})
		case !cmp.Equal(o, n, payloadEqual...):
			events = append(events, models.ChangeEvent{Action: models.ActionUpdate, Payload: n})
		}
	}

	return events
}

func indexByID(payloads []models.Payload) map[string]models.Payload {
	byID := make(map[string]models.Payload, len(payloads))

	for _, p := range payloads {
		if e, ok := p.(models.Entity); ok {
			byID[e.EntityID()] = p
		}
	}

	return byID
}
