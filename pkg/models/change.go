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

package models

import (
	"fmt"
	"strings"
)

// Category names one sub-tree of a ComputerInfo snapshot.
type Category string

const (
	CategoryCPU             Category = "cpu"
	CategoryRAM             Category = "ram"
	CategorySwap            Category = "swap"
	CategoryDisk            Category = "disk"
	CategoryFarmer          Category = "farmer"
	CategoryHarvester       Category = "harvester"
	CategoryHarvesterPlot   Category = "harvester_plot"
	CategoryFarmerHarvester Category = "farmer_harvester"
	CategoryWallet          Category = "wallet"
	CategoryFullNode        Category = "full_node"
	CategoryPlotInProgress  Category = "plot_in_progress"
)

// Action is the kind of change carried by a ChangeEvent.
type Action string

const (
	ActionAdd    Action = "ADD"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// ParseAction accepts an action name in any case.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToUpper(s)); a {
	case ActionAdd, ActionUpdate, ActionDelete:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

// Payload is implemented by every category struct of the snapshot.
type Payload interface {
	Category() Category
	Fields() []Field
}

// Entity is a Payload that lives in a collection and carries a stable id.
type Entity interface {
	Payload
	EntityID() string
}

// ChangeEvent is one ADD, UPDATE or DELETE of a category payload.
type ChangeEvent struct {
	Action  Action
	Payload Payload
}

func (e ChangeEvent) Category() Category {
	return e.Payload.Category()
}

// EntityID returns the collection id of the payload, or "" for singletons.
func (e ChangeEvent) EntityID() string {
	if ent, ok := e.Payload.(Entity); ok {
		return ent.EntityID()
	}

	return ""
}

func (e ChangeEvent) String() string {
	if id := e.EntityID(); id != "" {
		return fmt.Sprintf("%s %s{id:%s}", e.Action, e.Category(), id)
	}

	return fmt.Sprintf("%s %s", e.Action, e.Category())
}
