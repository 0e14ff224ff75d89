/*
Copyright © 2019 the canopyflux authors.
This file is part of canopyflux.

canopyflux is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

canopyflux is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with canopyflux.  If not, see <http://www.gnu.org/licenses/>.
*/

package canopyutil

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/canopyflux"
)

// load reads the vegetation table and the scenario. If vegFile is
// empty, the default vegetation table is used.
func load(ctx context.Context, scenarioFile, vegFile string) ([]*canopyflux.Element, error) {
	if scenarioFile == "" {
		return nil, fmt.Errorf("canopyflux: the Scenario configuration variable is not set")
	}
	veg := canopyflux.DefaultVegTable()
	if vegFile != "" {
		b, err := readInput(ctx, vegFile)
		if err != nil {
			return nil, err
		}
		if veg, err = canopyflux.ReadVegTable(bytes.NewReader(b)); err != nil {
			return nil, err
		}
	}
	b, err := readInput(ctx, scenarioFile)
	if err != nil {
		return nil, err
	}
	return canopyflux.ReadScenario(bytes.NewReader(b), veg)
}

// Run solves the fluxes of the elements in scenarioFile for numTimesteps
// timesteps of length dt seconds and writes the outputVariables of the
// final timestep to outputFile.
// If ebWarn > 0, elements whose leaf energy balance residual exceeds it
// are logged.
func Run(ctx context.Context, log logrus.FieldLogger, scenarioFile, vegFile, outputFile string,
	outputVariables map[string]string, dt float64, numTimesteps int, ebWarn float64) (*canopyflux.Domain, error) {

	startTime := time.Now()
	if !(dt > 0) {
		return nil, fmt.Errorf("canopyflux: Timestep=%g but should be >0", dt)
	}
	if numTimesteps < 1 {
		return nil, fmt.Errorf("canopyflux: NumTimesteps=%d but should be >0", numTimesteps)
	}

	elements, err := load(ctx, scenarioFile, vegFile)
	if err != nil {
		return nil, err
	}
	log.WithField("elements", len(elements)).Info("read scenario")

	o, err := canopyflux.NewOutputter(outputFile, outputVariables, nil)
	if err != nil {
		return nil, err
	}

	d := &canopyflux.Domain{
		Elements:  elements,
		Dt:        dt,
		InitFuncs: []canopyflux.DomainManipulator{o.CheckOutputVars()},
		RunFuncs: []canopyflux.DomainManipulator{
			canopyflux.Calculations(canopyflux.SolveFluxes(log, ebWarn)),
			canopyflux.Log(log),
			canopyflux.TimestepCheck(numTimesteps),
		},
		CleanupFuncs: []canopyflux.DomainManipulator{
			canopyflux.LogSummary(log),
			o.Output(),
		},
	}
	if err = d.Init(); err != nil {
		return nil, err
	}
	if err = d.Run(); err != nil {
		return nil, err
	}
	if err = d.Cleanup(); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"output":   outputFile,
		"walltime": time.Since(startTime).Round(time.Millisecond),
	}).Info("run complete")
	return d, nil
}

// Trace solves the element named elementName in scenarioFile for one
// timestep of length dt seconds and writes a plot of its stability
// iteration to traceFile.
func Trace(ctx context.Context, log logrus.FieldLogger, scenarioFile, vegFile, elementName, traceFile string,
	dt float64) (*canopyflux.Element, error) {

	elements, err := load(ctx, scenarioFile, vegFile)
	if err != nil {
		return nil, err
	}
	var e *canopyflux.Element
	for _, ee := range elements {
		if ee.Name == elementName {
			e = ee
			break
		}
	}
	if e == nil {
		return nil, fmt.Errorf("canopyflux: element %q is not in scenario %s", elementName, scenarioFile)
	}
	e.RecordTrace = true
	if err = e.Solve(dt); err != nil {
		return e, err
	}
	b := new(bytes.Buffer)
	if err = e.TracePlot(b); err != nil {
		return e, err
	}
	if err = writeOutput(ctx, traceFile, b.Bytes()); err != nil {
		return e, err
	}
	log.WithFields(logrus.Fields{
		"element":    e.Name,
		"iterations": e.State.Iterations,
		"converged":  e.State.Converged,
		"tveg":       e.Fluxes.TVeg,
		"output":     traceFile,
	}).Info("trace complete")
	return e, nil
}
