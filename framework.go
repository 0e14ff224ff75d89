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

package canopyflux

import (
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/canopyflux/internal/hash"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Domain holds a set of land surface elements and the functions that
// operate on them.
type Domain struct {
	Elements []*Element
	Dt       float64 // timestep [s]

	// InitFuncs are run once by Init.
	InitFuncs []DomainManipulator

	// RunFuncs are run repeatedly by Run until Done is true.
	RunFuncs []DomainManipulator

	// CleanupFuncs are run once by Cleanup.
	CleanupFuncs []DomainManipulator

	// Done specifies whether the simulation is finished.
	Done bool
}

// DomainManipulator is a function that operates on a domain.
type DomainManipulator func(d *Domain) error

// ElementManipulator is a function that operates on a single element
// with timestep Dt [s].
type ElementManipulator func(e *Element, Dt float64)

// Init runs the initialization functions.
func (d *Domain) Init() error {
	for _, f := range d.InitFuncs {
		if err := f(d); err != nil {
			return err
		}
	}
	return nil
}

// Run runs the RunFuncs until one of them marks the simulation as done.
func (d *Domain) Run() error {
	d.Done = false
	for !d.Done {
		for _, f := range d.RunFuncs {
			if err := f(d); err != nil {
				return err
			}
		}
	}
	return nil
}

// Cleanup runs the cleanup functions.
func (d *Domain) Cleanup() error {
	for _, f := range d.CleanupFuncs {
		if err := f(d); err != nil {
			return err
		}
	}
	return nil
}

// Calculations returns a function that concurrently runs a series of
// calculations on all of the elements in the domain. Elements share no
// state, so each one is handled by a single goroutine.
func Calculations(calculators ...ElementManipulator) DomainManipulator {
	nprocs := runtime.GOMAXPROCS(0)

	return func(d *Domain) error {
		var wg sync.WaitGroup
		wg.Add(nprocs)
		for pp := 0; pp < nprocs; pp++ {
			go func(pp int) {
				for ii := pp; ii < len(d.Elements); ii += nprocs {
					e := d.Elements[ii]
					for _, f := range calculators {
						f(e, d.Dt)
					}
				}
				wg.Done()
			}(pp)
		}
		wg.Wait()
		return nil
	}
}

// SolveFluxes returns a function that solves the fluxes of an element.
// Errors are kept in the element's Err field and logged, and do not stop
// the other elements from being solved. If ebWarn > 0, a warning is
// logged for elements whose energy balance residual is larger in
// magnitude than ebWarn [W/m²].
func SolveFluxes(log logrus.FieldLogger, ebWarn float64) ElementManipulator {
	return func(e *Element, dt float64) {
		if err := e.Solve(dt); err != nil {
			log.WithFields(logrus.Fields{
				"element": e.Name,
				"vegtype": e.VegType,
			}).Error(err)
			return
		}
		if ebWarn > 0 && math.Abs(e.Fluxes.EnergyBalanceError) > ebWarn {
			log.WithFields(logrus.Fields{
				"element":  e.Name,
				"vegtype":  e.VegType,
				"residual": e.Fluxes.EnergyBalanceError,
			}).Warn("leaf energy balance not closed")
		}
	}
}

// TimestepCheck marks the simulation as done after numTimesteps calls.
func TimestepCheck(numTimesteps int) DomainManipulator {
	timestep := 0
	return func(d *Domain) error {
		timestep++
		if timestep >= numTimesteps {
			d.Done = true
		}
		return nil
	}
}

// Log reports the progress of each timestep to log.
func Log(log logrus.FieldLogger) DomainManipulator {
	startTime := time.Now()
	timestepTime := time.Now()
	timestep := 0

	return func(d *Domain) error {
		timestep++
		var converged, failed int
		for _, e := range d.Elements {
			if e.Err != nil {
				failed++
			} else if e.State.Converged {
				converged++
			}
		}
		log.WithFields(logrus.Fields{
			"timestep":  timestep,
			"walltime":  time.Since(startTime).Round(time.Millisecond),
			"Δwalltime": time.Since(timestepTime).Round(time.Millisecond),
			"converged": converged,
			"failed":    failed,
		}).Info("timestep complete")
		timestepTime = time.Now()
		return nil
	}
}

// Summary holds statistics of the most recent timestep.
type Summary struct {
	Elements   int // total number of elements
	Vegetated  int // number of vegetated elements solved
	Converged  int // number of vegetated elements that converged
	Failed     int // number of elements with errors
	Iterations struct {
		Mean, Max float64
	}
	TVeg struct {
		Mean, StdDev, Min, Max float64
	}
}

// Summarize calculates statistics of the most recent timestep.
func (d *Domain) Summarize() Summary {
	var s Summary
	s.Elements = len(d.Elements)
	var tveg, iters []float64
	for _, e := range d.Elements {
		if e.Err != nil {
			s.Failed++
			continue
		}
		if e.path() != pathVegetated {
			continue
		}
		s.Vegetated++
		if e.State.Converged {
			s.Converged++
		}
		tveg = append(tveg, e.Fluxes.TVeg)
		iters = append(iters, float64(e.State.Iterations))
	}
	if len(tveg) > 0 {
		s.TVeg.Mean = stat.Mean(tveg, nil)
		if len(tveg) > 1 {
			s.TVeg.StdDev = stat.StdDev(tveg, nil)
		}
		s.TVeg.Min = floats.Min(tveg)
		s.TVeg.Max = floats.Max(tveg)
		s.Iterations.Mean = stat.Mean(iters, nil)
		s.Iterations.Max = floats.Max(iters)
	}
	return s
}

// LogSummary reports summary statistics of the most recent timestep to log.
func LogSummary(log logrus.FieldLogger) DomainManipulator {
	return func(d *Domain) error {
		s := d.Summarize()
		log.WithFields(logrus.Fields{
			"elements":        s.Elements,
			"vegetated":       s.Vegetated,
			"converged":       s.Converged,
			"failed":          s.Failed,
			"mean_iterations": fmt.Sprintf("%.3g", s.Iterations.Mean),
			"max_iterations":  s.Iterations.Max,
			"mean_tveg":       fmt.Sprintf("%.5g", s.TVeg.Mean),
			"sd_tveg":         fmt.Sprintf("%.3g", s.TVeg.StdDev),
			"min_tveg":        s.TVeg.Min,
			"max_tveg":        s.TVeg.Max,
		}).Info("run summary")
		return nil
	}
}

// Fingerprint returns a hash of the outputs and canopy water of all
// elements. Runs with identical inputs give identical fingerprints.
func (d *Domain) Fingerprint() string {
	out := make([]Fluxes, len(d.Elements))
	for i, e := range d.Elements {
		out[i] = e.Fluxes
	}
	return hash.Hash(out)
}
