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

package state

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/farmradar/pkg/logtail"
	"github.com/carverauto/farmradar/pkg/models"
)

const (
	plotTableCount = 7
	progressPhase1 = 0.40
	progressPhase2 = 0.60
	progressPhase3 = 0.95
	progressDone   = 1.0
)

var plottingActions = []lineAction{
	{name: "plotter", required: []string{"Multi-threaded pipelined Chia", "plotter"}, apply: (*Engine).onPlotter},
	{name: "crafting", required: []string{"Crafting plot"}, apply: (*Engine).onCrafting},
	{name: "process_id", required: []string{"Process ID:"}, apply: (*Engine).onProcessID},
	{name: "pool_key", required: []string{"Pool Public Key:"}, apply: (*Engine).onPoolKey},
	{name: "farmer_key", required: []string{"Farmer Public Key:"}, apply: (*Engine).onFarmerKey},
	{name: "p1_table", required: []string{"[P1] Table", "took"}, apply: (*Engine).onP1Table},
	{name: "phase1", required: []string{"Phase 1 took"}, apply: phaseDone(models.PlotStatePhase2, progressPhase1)},
	{name: "p2_table", required: []string{"[P2] Table", "rewrite took"}, apply: (*Engine).onP2Table},
	{name: "phase2", required: []string{"Phase 2 took"}, apply: phaseDone(models.PlotStatePhase3, progressPhase2)},
	{name: "p3_table", required: []string{"[P3-2] Table", "took"}, apply: (*Engine).onP3Table},
	{name: "phase3", required: []string{"Phase 3 took"}, apply: phaseDone(models.PlotStatePhase4, progressPhase3)},
	{name: "phase4", required: []string{"Phase 4 took"}, apply: phaseDone(models.PlotStatePhase4, progressDone)},
	{name: "copy", required: []string{"Started copy to"}, apply: (*Engine).onCopyStarted},
}

// HandlePlottingLine applies one line of the plotter output read from path.
func (e *Engine) HandlePlottingLine(path string, l logtail.Line) {
	ll := e.parseLine(l, false)
	ll.path = path

	e.dispatch(plottingActions, ll)
}

// PlotJobID derives a stable job id from the log path and the byte offset of
// the line that started the job.
func PlotJobID(path string, offset int64) string {
	name := path + "#" + strconv.FormatInt(offset, 10)

	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

func (e *Engine) latestJob() (*plotJob, error) {
	job, ok := e.plots[e.latestPlot]
	if !ok {
		return nil, errNoLatestJob
	}

	return job, nil
}

func (e *Engine) onPlotter(l *logLine) error {
	plotType, err := l.token("Chia", 1)
	if err != nil {
		return err
	}

	e.plotType = plotType

	return nil
}

func (e *Engine) onCrafting(l *logLine) error {
	now := e.cfg.Now()
	id := PlotJobID(l.path, l.Offset)

	e.plots[id] = &plotJob{
		PlotInProgress: models.PlotInProgress{
			ID:        id,
			StartTime: models.NormalizeTime(now),
			PlotType:  e.plotType,
			State:     models.PlotStateStarting,
		},
		touched: now,
	}
	e.latestPlot = id

	e.log.Info().Str("plot_id", id).Str("plot_type", e.plotType).Msg("Plotting job started")

	return nil
}

func (e *Engine) onProcessID(l *logLine) error {
	job, err := e.latestJob()
	if err != nil {
		return err
	}

	raw, err := l.last()
	if err != nil {
		return err
	}

	pid, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return err
	}

	job.ProcessID = pid
	job.touched = e.cfg.Now()

	return nil
}

func (e *Engine) onPoolKey(l *logLine) error {
	job, err := e.latestJob()
	if err != nil {
		return err
	}

	if job.PoolPublicKey, err = l.last(); err != nil {
		return err
	}

	job.touched = e.cfg.Now()

	return nil
}

func (e *Engine) onFarmerKey(l *logLine) error {
	job, err := e.latestJob()
	if err != nil {
		return err
	}

	if job.FarmerPublicKey, err = l.last(); err != nil {
		return err
	}

	job.touched = e.cfg.Now()

	return nil
}

func (l *logLine) tableNumber() (float64, error) {
	raw, err := l.token("Table", 1)
	if err != nil {
		return 0, err
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}

	return float64(n), nil
}

func (e *Engine) onP1Table(l *logLine) error {
	n, err := l.tableNumber()
	if err != nil {
		return err
	}

	return e.advance(models.PlotStatePhase1, 0.05+0.35*n/plotTableCount)
}

func (e *Engine) onP2Table(l *logLine) error {
	n, err := l.tableNumber()
	if err != nil {
		return err
	}

	return e.advance(models.PlotStatePhase2, progressPhase1+0.20*(plotTableCount+1-n)/plotTableCount)
}

func (e *Engine) onP3Table(l *logLine) error {
	n, err := l.tableNumber()
	if err != nil {
		return err
	}

	return e.advance(models.PlotStatePhase3, progressPhase2+0.35*(n-1)/(plotTableCount-1))
}

func phaseDone(next models.PlotState, progress float64) func(*Engine, *logLine) error {
	return func(e *Engine, _ *logLine) error {
		return e.advance(next, progress)
	}
}

// advance moves the latest job forward. Neither state nor progress ever
// moves backwards.
func (e *Engine) advance(state models.PlotState, progress float64) error {
	job, err := e.latestJob()
	if err != nil {
		return err
	}

	if state.Rank() > job.State.Rank() {
		job.State = state
	}

	if progress > job.Progress {
		job.Progress = min(progress, progressDone)
	}

	job.touched = e.cfg.Now()

	return nil
}

func (e *Engine) onCopyStarted(_ *logLine) error {
	job, err := e.latestJob()
	if err != nil {
		return err
	}

	delete(e.plots, job.ID)
	e.latestPlot = ""

	e.log.Info().Str("plot_id", job.ID).Msg("Plotting job finished")

	return nil
}

type plotRef struct {
	id        string
	processID int64
	touched   time.Time
}

func (e *Engine) plotRefs() []plotRef {
	e.mu.Lock()
	defer e.mu.Unlock()

	refs := make([]plotRef, 0, len(e.plots))
	for _, p := range e.plots {
		refs = append(refs, plotRef{id: p.ID, processID: p.ProcessID, touched: p.touched})
	}

	return refs
}

func (e *Engine) removePlot(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.plots, id)

	if e.latestPlot == id {
		e.latestPlot = ""
	}
}
