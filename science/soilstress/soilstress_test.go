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

package soilstress

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
)

const (
	smpso = -66000.
	smpsc = -255000.
)

func TestEffectivePorosity(t *testing.T) {
	watsat := []float64{0.45, 0.45, 0.45}
	ice := []float64{0, 4.585, 1000}
	dz := []float64{0.1, 0.1, 0.1}
	out := make([]float64, 3)
	EffectivePorosity(watsat, ice, dz, out)
	want := []float64{0.45, 0.4, 0.01}
	for i := range want {
		if math.Abs(out[i]-want[i]) > 1.e-12 {
			t.Errorf("layer %d: effective porosity %g, want %g", i, out[i], want[i])
		}
	}
}

func TestVolumetricLiquid(t *testing.T) {
	eff := []float64{0.4, 0.4}
	liq := []float64{20, 100}
	dz := []float64{0.1, 0.1}
	out := make([]float64, 2)
	VolumetricLiquid(eff, liq, dz, out)
	if math.Abs(out[0]-0.2) > 1.e-12 {
		t.Errorf("volumetric liquid %g, want 0.2", out[0])
	}
	if out[1] != 0.4 {
		t.Errorf("volumetric liquid %g, want it limited to 0.4", out[1])
	}
}

func TestRootMoistStress(t *testing.T) {
	watsat := []float64{0.45, 0.45, 0.45, 0.45}
	sucsat := []float64{200, 200, 200, 200}
	bsw := []float64{6, 6, 6, 6}
	rootFr := []float64{0.4, 0.3, 0.2, 0.1}

	cases := []struct {
		name      string
		volLiq    []float64
		tSoil     []float64
		wantBtran float64
		wantRootr []float64
	}{
		{
			name:      "saturated",
			volLiq:    []float64{0.45, 0.45, 0.45, 0.45},
			tSoil:     []float64{290, 290, 290, 290},
			wantBtran: 1,
			wantRootr: []float64{0.4, 0.3, 0.2, 0.1},
		},
		{
			name:      "frozen top",
			volLiq:    []float64{0.45, 0.45, 0.45, 0.45},
			tSoil:     []float64{270, 290, 290, 290},
			wantBtran: 0.6,
			wantRootr: []float64{0, 0.5, 1. / 3, 1. / 6},
		},
		{
			name:      "dry",
			volLiq:    []float64{0, 0, 0, 0},
			tSoil:     []float64{290, 290, 290, 290},
			wantBtran: 0,
			wantRootr: []float64{0, 0, 0, 0},
		},
		{
			name:      "wilting",
			volLiq:    []float64{0.01, 0.01, 0.01, 0.01},
			tSoil:     []float64{290, 290, 290, 290},
			wantBtran: 0,
			wantRootr: []float64{0, 0, 0, 0},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rootr := []float64{-1, -1, -1, -1}
			btran := RootMoistStress(c.volLiq, rootFr, c.tSoil, watsat, watsat, sucsat, bsw,
				-2, smpso, smpsc, rootr)
			if math.Abs(btran-c.wantBtran) > 1.e-12 {
				t.Errorf("btran = %g, want %g", btran, c.wantBtran)
			}
			if !floats.EqualApprox(rootr, c.wantRootr, 1.e-12) {
				t.Errorf("rootr = %v, want %v", rootr, c.wantRootr)
			}
		})
	}
}

func TestRootMoistStressPartial(t *testing.T) {
	watsat := []float64{0.45}
	rootr := make([]float64, 1)
	btran := RootMoistStress([]float64{0.15}, []float64{1}, []float64{290}, watsat, watsat,
		[]float64{200}, []float64{6}, -2, smpso, smpsc, rootr)
	if btran <= 0 || btran >= 1 {
		t.Errorf("btran = %g, want between 0 and 1", btran)
	}
	if rootr[0] != 1 {
		t.Errorf("rootr = %g, want 1 after normalization", rootr[0])
	}
}
