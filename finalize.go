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
	"math"

	"github.com/spatialmodel/canopyflux/internal/physconst"
	"github.com/spatialmodel/canopyflux/science/qsat"
)

// ComputeFlux divides the fluxes between the leaves, the ground and the
// ground surface types, calculates the 2 m diagnostics, longwave
// radiation and ground flux derivatives, and updates the canopy water
// with the leaf evaporation and transpiration over the timestep dt [s].
// It is called after StabilityIteration.
func (e *Element) ComputeFlux(dt float64) {
	if e.path() != pathVegetated {
		return
	}
	s := &e.State
	f := &e.Forcing
	c := &e.Canopy
	sf := &e.Surface
	out := &e.Fluxes

	thm := f.Thm()
	lwGrnd := e.groundLongwave()
	tl := s.TLBef
	// Leaf emission linearized about the leaf temperature at the start
	// of the last pass.
	tl4 := math.Pow(tl, 3) * (tl + 4*s.DtVeg)

	out.TVeg = s.TVeg
	out.Btran = s.Btran
	out.QflxTranVeg = s.QflxTranVeg
	out.QflxEvapVeg = s.QflxEvapVeg
	out.EflxShVeg = s.EflxShVeg
	out.RsSun, out.RsSha = s.RsSun, s.RsSha
	out.PsnSun, out.PsnSha = s.PsnSun, s.PsnSha
	out.LeafTempClampResidual = s.ClampResidual

	out.EnergyBalanceError = e.Radiation.SABV + s.Air + s.Bir*tl4 + s.Cir*lwGrnd -
		s.EflxShVeg - physconst.HVap*s.QflxEvapVeg

	// Sensible heat from the ground and each surface type.
	shFlux := func(tg float64) float64 {
		return physconst.CpAir * s.Rho * s.Wtg * (s.Wtal*tg - s.Wtl0*s.TVeg - s.Wta0*thm)
	}
	out.EflxShGrnd = shFlux(sf.TGrnd)
	out.EflxShSnow = shFlux(sf.TSoiSno[NLevSno-sf.Snl])
	out.EflxShSoil = shFlux(sf.TSoiSno[NLevSno])
	out.EflxShH2OSfc = shFlux(sf.TH2OSfc)

	// Evaporation from the ground and each surface type.
	out.QflxEvapSoi = s.Rho * s.Wtgq * s.DelQ
	evFlux := func(qg float64) float64 {
		return s.Rho * s.Wtgq * (s.Wtalq*qg - s.Wtlq0*s.QSatL - s.Wtaq0*f.Q)
	}
	out.QflxEvSnow = evFlux(sf.QGSnow)
	out.QflxEvSoil = evFlux(sf.QGSoil)
	out.QflxEvH2OSfc = evFlux(sf.QGH2OSfc)

	// 2 m air temperature and humidity.
	out.TRef2m = thm + s.Temp1*s.Dth*(1/s.Temp12m-1/s.Temp1)
	out.TRef2mR = out.TRef2m
	out.QRef2m = f.Q + s.Temp2*s.Dqh*(1/s.Temp22m-1/s.Temp2)
	_, _, qsRef2m, _ := qsat.QSat(out.TRef2m, f.Pbot)
	out.RHRef2m = math.Min(100, out.QRef2m/qsRef2m*100)
	out.RHRef2mR = out.RHRef2m

	// Longwave radiation below and above the canopy.
	emv, emg := c.Emv, sf.Emg
	out.DLRad = (1-emv)*emg*f.LWRad + emv*emg*physconst.SB*tl4
	out.ULRad = (1-emg)*(1-emv)*(1-emv)*f.LWRad +
		emv*(1+(1-emg)*(1-emv))*physconst.SB*tl4 +
		emg*(1-emv)*physconst.SB*lwGrnd

	// Derivatives of the ground fluxes with respect to ground temperature.
	out.CGrndS = sf.CGrndS + physconst.CpAir*s.Rho*s.Wtg*s.Wtal
	out.CGrndL = sf.CGrndL + s.Rho*s.Wtgq*s.Wtalq*sf.DQGDT
	out.CGrnd = out.CGrndS + out.CGrndL*sf.Htvp

	// Dew accumulation.
	c.H2OCan = math.Max(0, c.H2OCan+(s.QflxTranVeg-s.QflxEvapVeg)*dt)
	out.H2OCan = c.H2OCan
}
