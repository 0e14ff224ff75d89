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
	"os"
	"strings"
	"testing"

	"github.com/kr/pretty"
	"github.com/spatialmodel/canopyflux/internal/physconst"
)

func readTestScenario(t *testing.T, veg VegTable) []*Element {
	f, err := os.Open("testdata/scenario.toml")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	elements, err := ReadScenario(f, veg)
	if err != nil {
		t.Fatal(err)
	}
	return elements
}

func TestReadScenario(t *testing.T) {
	elements := readTestScenario(t, DefaultVegTable())
	if len(elements) != 3 {
		t.Fatalf("%d elements, want 3", len(elements))
	}
	names := []string{"grassland", "bare", "pond"}
	units := []LandUnit{Soil, Soil, Lake}
	paths := []path{pathVegetated, pathBareGround, pathSkip}
	for i, e := range elements {
		if e.Name != names[i] || e.Unit != units[i] || e.path() != paths[i] {
			t.Errorf("element %d: %s, %v, %v", i, e.Name, e.Unit, e.path())
		}
	}

	g := elements[0]
	if g.Veg.Name != "c3_non-arctic_grass" {
		t.Errorf("vegetation %s", g.Veg.Name)
	}
	f := g.Forcing
	if f.Th != 295 || f.HgtT != 10 || f.HgtQ != 10 {
		t.Errorf("forcing defaults %+v", f)
	}
	if absDifferent(f.PO2, 0.209*101325, 1.e-9) || absDifferent(f.PCO2, 367.e-6*101325, 1.e-12) {
		t.Errorf("partial pressures %g, %g", f.PO2, f.PCO2)
	}
	if g.Surface.Htvp != physconst.HVap {
		t.Errorf("latent heat %g", g.Surface.Htvp)
	}
	if len(g.Surface.TSoiSno) != NLevSno+g.nSoil() || g.nSoil() != 10 {
		t.Errorf("column sizes %d, %d", len(g.Surface.TSoiSno), g.nSoil())
	}

	for _, e := range elements {
		if err := e.Solve(testDt); err != nil {
			t.Errorf("%s: %v", e.Name, err)
		}
	}
	if !g.State.Converged || g.Fluxes.TVeg <= g.Forcing.T {
		t.Errorf("sunny grassland: converged=%v, TVeg=%g", g.State.Converged, g.Fluxes.TVeg)
	}
	if elements[1].Fluxes.TVeg != 295 {
		t.Errorf("bare ground leaf temperature %g", elements[1].Fluxes.TVeg)
	}
	if elements[2].Fluxes != (Fluxes{}) {
		t.Errorf("lake fluxes %# v", pretty.Formatter(elements[2].Fluxes))
	}
}

func TestReadScenarioErrors(t *testing.T) {
	tests := []struct {
		name, doc, msg string
	}{
		{
			name: "veg type",
			doc:  "[[Element]]\nVegType = 99\n",
			msg:  "vegetation type 99",
		},
		{
			name: "unit",
			doc:  "[[Element]]\nUnit = \"glacier\"\n",
			msg:  "invalid land unit",
		},
		{
			name: "layers",
			doc: "[[Element]]\n[Element.Soil]\nWatsat = [0.4, 0.4]\nSucsat = [200.0, 200.0]\n" +
				"Bsw = [6.0, 6.0]\nRootFr = [1.0]\n",
			msg: "RootFr has 1 layers",
		},
		{
			name: "snow layers",
			doc: "[[Element]]\n[Element.Surface]\nSnl = 6\nTSoiSno = [0.0, 0.0, 0.0, 0.0, 0.0]\n" +
				"H2OSoiLiq = [0.0, 0.0, 0.0, 0.0, 0.0]\nH2OSoiIce = [0.0, 0.0, 0.0, 0.0, 0.0]\n" +
				"Dz = [0.0, 0.0, 0.0, 0.0, 0.0]\n",
			msg: "Snl 6 out of range",
		},
		{
			name: "day length",
			doc: "[[Element]]\nVegType = 13\n[Element.Canopy]\nFracVegNoSno = 1\nDayl = 43200.0\n" +
				"[Element.Surface]\nTSoiSno = [0.0, 0.0, 0.0, 0.0, 0.0]\n" +
				"H2OSoiLiq = [0.0, 0.0, 0.0, 0.0, 0.0]\nH2OSoiIce = [0.0, 0.0, 0.0, 0.0, 0.0]\n" +
				"Dz = [0.0, 0.0, 0.0, 0.0, 0.0]\n",
			msg: "MaxDayl 0 must be >0",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ReadScenario(strings.NewReader(test.doc), DefaultVegTable())
			if err == nil || !strings.Contains(err.Error(), test.msg) {
				t.Errorf("error %v, want it to contain %q", err, test.msg)
			}
		})
	}
}

func TestReadVegTable(t *testing.T) {
	f, err := os.Open("testdata/vegparams.toml")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	veg, err := ReadVegTable(f)
	if err != nil {
		t.Fatal(err)
	}
	def := DefaultVegTable()
	if len(veg) != len(def)+1 {
		t.Fatalf("%d vegetation types, want %d", len(veg), len(def)+1)
	}
	want := def[13]
	want.Vcmax25Top = 60
	want.Smpso = -70000
	if veg[13] != want {
		t.Errorf("type 13: %v", pretty.Diff(veg[13], want))
	}
	if veg[12] != def[12] {
		t.Errorf("type 12 changed: %v", pretty.Diff(veg[12], def[12]))
	}
	if veg[25].Name != "bioenergy_grass" || veg[25].C3 || veg[25].Vcmax25Top != 70 {
		t.Errorf("type 25: %+v", veg[25])
	}

	elements := readTestScenario(t, veg)
	if elements[0].Veg.Vcmax25Top != 60 {
		t.Errorf("scenario uses Vcmax25Top %g", elements[0].Veg.Vcmax25Top)
	}

	if _, err = ReadVegTable(strings.NewReader("[Veg.grass]\nVcmax25Top = 1.0\n")); err == nil {
		t.Error("non-numeric vegetation type should fail")
	}
}

func TestDefaultVegTable(t *testing.T) {
	veg := DefaultVegTable()
	if len(veg) != 25 {
		t.Errorf("%d vegetation types, want 25", len(veg))
	}
	for i, v := range veg {
		c4 := i == 14 || i == 17 || i == 18
		if v.C3 == c4 {
			t.Errorf("type %d (%s): C3 = %v", i, v.Name, v.C3)
		}
		if v.Smpso <= v.Smpsc {
			t.Errorf("type %d: opening potential %g should exceed closing potential %g", i, v.Smpso, v.Smpsc)
		}
	}
	if _, err := veg.Lookup(-1); err == nil {
		t.Error("negative vegetation type should fail")
	}
}

func TestLandUnitText(t *testing.T) {
	for u := Soil; u <= Ice; u++ {
		b, err := u.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var u2 LandUnit
		if err := u2.UnmarshalText(b); err != nil {
			t.Fatal(err)
		}
		if u2 != u {
			t.Errorf("%v round trips to %v", u, u2)
		}
	}
	if LandUnit(10).String() != "LandUnit(10)" {
		t.Errorf("unknown unit %s", LandUnit(10))
	}
}
