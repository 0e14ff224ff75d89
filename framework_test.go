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
	"testing"

	"github.com/kr/pretty"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// testDomain returns a domain with vegetated elements under a range of
// radiation and humidity, a bare ground element, a lake and an element
// whose forcing height is below the canopy.
func testDomain() *Domain {
	var elements []*Element
	for i, sabv := range []float64{0, 10, 100, 300, 600} {
		for j, q := range []float64{0.008, 0.012} {
			e := testElement(sabv, 420, q, sabv/3)
			e.Name = fmt.Sprintf("veg_%d_%d", i, j)
			elements = append(elements, e)
		}
	}
	bare := defaultTestElement()
	bare.Name = "bare"
	bare.Canopy.FracVegNoSno = 0
	lake := defaultTestElement()
	lake.Name = "lake"
	lake.Unit = Lake
	low := defaultTestElement()
	low.Name = "low"
	low.Forcing.HgtU = 0.5
	elements = append(elements, bare, lake, low)
	return &Domain{Elements: elements, Dt: testDt}
}

func TestDomainRun(t *testing.T) {
	log, hook := test.NewNullLogger()
	d := testDomain()
	const nSteps = 3
	d.RunFuncs = []DomainManipulator{
		Calculations(SolveFluxes(log, 0)),
		Log(log),
		TimestepCheck(nSteps),
	}
	d.CleanupFuncs = []DomainManipulator{LogSummary(log)}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	if err := d.Run(); err != nil {
		t.Fatal(err)
	}
	if err := d.Cleanup(); err != nil {
		t.Fatal(err)
	}

	var errs, steps, summaries int
	for _, entry := range hook.AllEntries() {
		switch {
		case entry.Level == logrus.ErrorLevel:
			errs++
			if entry.Data["element"] != "low" {
				t.Errorf("error logged for element %v", entry.Data["element"])
			}
		case entry.Message == "timestep complete":
			steps++
			if entry.Data["failed"] != 1 {
				t.Errorf("failed = %v, want 1", entry.Data["failed"])
			}
		case entry.Message == "run summary":
			summaries++
		}
	}
	if errs != nSteps || steps != nSteps || summaries != 1 {
		t.Errorf("logged %d errors, %d timesteps and %d summaries", errs, steps, summaries)
	}

	s := d.Summarize()
	if s.Elements != 13 || s.Vegetated != 10 || s.Failed != 1 {
		t.Errorf("summary counts %+v", s)
	}
	if s.Converged != s.Vegetated {
		t.Errorf("%d of %d elements converged", s.Converged, s.Vegetated)
	}
	if !(s.TVeg.Min < s.TVeg.Mean && s.TVeg.Mean < s.TVeg.Max && s.TVeg.StdDev > 0) {
		t.Errorf("leaf temperature statistics %+v", s.TVeg)
	}
	if s.Iterations.Mean < itmin+1 || s.Iterations.Max > itmax+1 {
		t.Errorf("iteration statistics %+v", s.Iterations)
	}
}

func TestEnergyBalanceWarning(t *testing.T) {
	log, hook := test.NewNullLogger()
	e := defaultTestElement()
	SolveFluxes(log, 1.e-20)(e, testDt)
	SolveFluxes(log, 0)(e, testDt)
	var warnings int
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warnings++
		}
	}
	want := 0
	if math.Abs(e.Fluxes.EnergyBalanceError) > 1.e-20 {
		want = 1
	}
	if warnings != want {
		t.Errorf("%d warnings for residual %g, want %d", warnings, e.Fluxes.EnergyBalanceError, want)
	}
}

func TestDewAccumulates(t *testing.T) {
	e := testElement(0, 300, 0.0165, 0)
	d := &Domain{
		Elements: []*Element{e},
		Dt:       testDt,
		RunFuncs: []DomainManipulator{
			Calculations(SolveFluxes(logrus.StandardLogger(), 0)),
			TimestepCheck(1),
		},
	}
	prev := e.Canopy.H2OCan
	for i := 0; i < 3; i++ {
		if err := d.Run(); err != nil {
			t.Fatal(err)
		}
		if e.Canopy.H2OCan <= prev {
			t.Errorf("step %d: canopy water %g did not increase from %g", i, e.Canopy.H2OCan, prev)
		}
		prev = e.Canopy.H2OCan
	}
}

func TestDeterminism(t *testing.T) {
	run := func(procs int) *Domain {
		old := runtime.GOMAXPROCS(procs)
		defer runtime.GOMAXPROCS(old)
		d := testDomain()
		d.RunFuncs = []DomainManipulator{
			Calculations(SolveFluxes(logrus.StandardLogger(), 0)),
			TimestepCheck(2),
		}
		if err := d.Run(); err != nil {
			t.Fatal(err)
		}
		return d
	}
	d1, d2 := run(1), run(4)
	if f1, f2 := d1.Fingerprint(), d2.Fingerprint(); f1 != f2 {
		for i := range d1.Elements {
			if diff := pretty.Diff(d1.Elements[i].Fluxes, d2.Elements[i].Fluxes); len(diff) > 0 {
				t.Errorf("element %s: %v", d1.Elements[i].Name, diff)
			}
		}
		t.Errorf("fingerprints differ: %s != %s", f1, f2)
	}
	d3 := testDomain()
	if d3.Fingerprint() == d1.Fingerprint() {
		t.Error("unsolved domain has the same fingerprint as a solved one")
	}
}

func TestTimestepCheck(t *testing.T) {
	d := &Domain{}
	check := TimestepCheck(3)
	for i := 1; i <= 3; i++ {
		if err := check(d); err != nil {
			t.Fatal(err)
		}
		if d.Done != (i == 3) {
			t.Errorf("step %d: done = %v", i, d.Done)
		}
	}
}
