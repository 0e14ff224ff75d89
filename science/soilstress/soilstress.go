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

// Package soilstress calculates the soil moisture state seen by plant
// roots and the resulting transpiration wetness factor (btran), using
// the Clapp and Hornberger (1978) soil water retention curve.
//
// All slices in this package hold one value per soil layer, top layer
// first, and must have equal lengths.
package soilstress

import (
	"math"

	"github.com/spatialmodel/canopyflux/internal/physconst"
	"gonum.org/v1/gonum/floats"
)

// EffectivePorosity calculates the pore space not occupied by ice in
// each layer from the porosity watsat [m3/m3], the ice content ice
// [kg/m2] and the layer thickness dz [m], writing the result to out.
// The effective porosity is never less than 0.01.
func EffectivePorosity(watsat, ice, dz, out []float64) {
	for i, ws := range watsat {
		volIce := math.Min(ws, ice[i]/(dz[i]*physconst.DenIce))
		out[i] = math.Max(0.01, ws-volIce)
	}
}

// VolumetricLiquid calculates the volumetric liquid water content
// [m3/m3] of each layer from its liquid water content liq [kg/m2],
// limited to the effective porosity, writing the result to out.
func VolumetricLiquid(effPorosity, liq, dz, out []float64) {
	for i, ep := range effPorosity {
		out[i] = math.Min(ep, liq[i]/(dz[i]*physconst.DenH2O))
	}
}

// RootMoistStress calculates the transpiration wetness factor btran
// (0 to 1) and the effective fraction of roots in each layer, which is
// written to rootr.
//
// A layer contributes nothing if it has no liquid water or if its
// temperature tSoil [K] is at or below the freezing point plus the
// critical stress temperature tcStress [°C]. Otherwise its soil matric
// potential is calculated from the saturated suction sucsat [mm] and
// the Clapp and Hornberger exponent bsw and scaled between the
// potentials for stomatal closure (smpsc [mm]) and full opening
// (smpso [mm]). When btran is positive, rootr is normalized to sum
// to 1.
func RootMoistStress(volLiq, rootFr, tSoil, effPorosity, watsat, sucsat, bsw []float64,
	tcStress, smpso, smpsc float64, rootr []float64) (btran float64) {

	for i, vl := range volLiq {
		if vl <= 0 || tSoil[i] <= physconst.TFrz+tcStress {
			rootr[i] = 0
			continue
		}
		s := math.Max(vl/effPorosity[i], 0.01)
		smp := math.Max(smpsc, -sucsat[i]*math.Pow(s, -bsw[i]))
		rresis := math.Min((effPorosity[i]/watsat[i])*(smp-smpsc)/(smpso-smpsc), 1)
		rootr[i] = rootFr[i] * rresis
		btran += math.Max(rootr[i], 0)
	}

	// Normalize root resistances to get the layer contribution to ET.
	if btran > 0 {
		floats.Scale(1/btran, rootr)
	} else {
		for i := range rootr {
			rootr[i] = 0
		}
	}
	return btran
}
