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
	"github.com/spatialmodel/canopyflux/science/frictionvelocity"
	"github.com/spatialmodel/canopyflux/science/photosynthesis"
	"github.com/spatialmodel/canopyflux/science/qsat"
)

const (
	itmin = 2  // minimum number of passes before checking convergence
	itmax = 40 // maximum pass index

	csoilc   = 0.004 // drag coefficient for soil under canopy
	btran0   = 0.    // btran below which there is no transpiration
	dtVegMax = 1.0   // maximum change in leaf temperature per pass [K]

	// Convergence tolerances for leaf temperature [K] and leaf latent
	// heat flux [W/m²].
	dtVegTol = 0.01
	efeTol   = 0.1

	snowDepthLitter = 0.05 // snow depth that buries the litter layer [m]
	laiLitter       = 0.5  // litter area index
	hgtPBL          = 1000 // convective boundary layer height [m]
)

// StabilityIteration iterates the leaf energy balance together with the
// Monin-Obukhov length, aerodynamic resistances and stomatal resistances
// until the leaf temperature and leaf latent heat flux stop changing or
// the maximum number of passes is reached. InitializeFlux must be called
// first. dt is the timestep [s].
//
// State.Converged reports whether the tolerances were met and
// State.Iterations the number of passes. Elements that are not vegetated
// are left unchanged.
func (e *Element) StabilityIteration(dt float64) {
	if e.path() != pathVegetated {
		return
	}
	for e.State.Iterations <= itmax && !e.State.Converged {
		e.IterateOnce(dt)
	}
}

// IterateOnce performs a single pass of the stability iteration,
// including the convergence check, regardless of whether the iteration
// has already converged.
func (e *Element) IterateOnce(dt float64) {
	if e.path() != pathVegetated {
		return
	}
	s := &e.State
	f := &e.Forcing
	c := &e.Canopy
	sf := &e.Surface
	r := &e.Radiation

	thm := f.Thm()
	thv := f.Thv()

	// Friction velocity and the temperature and humidity profiles of
	// the surface boundary layer.
	s.Ustar = frictionvelocity.Wind(f.HgtU, s.Displa, s.Um, s.Obu, s.Z0MV)
	s.Temp1 = frictionvelocity.Temperature(f.HgtT, s.Displa, s.Obu, s.Z0HV)
	s.Temp2 = frictionvelocity.Humidity(f.HgtQ, f.HgtT, s.Displa, s.Obu, s.Z0HV, s.Z0QV, s.Temp1)
	s.Temp12m = frictionvelocity.Temperature2m(s.Obu, s.Z0HV)
	s.Temp22m = frictionvelocity.Humidity2m(s.Obu, s.Z0HV, s.Z0QV, s.Temp12m)

	s.TLBef = s.TVeg
	del2 := s.del

	// Aerodynamic resistances.
	s.Ram = 1 / (s.Ustar * s.Ustar / s.Um)
	s.Rah[0] = 1 / (s.Temp1 * s.Ustar)
	s.Raw[0] = 1 / (s.Temp2 * s.Ustar)

	// Bulk boundary layer resistance of leaves.
	uaf := s.Um * math.Sqrt(1/(s.Ram*s.Um))
	cf := 0.01 / (math.Sqrt(uaf) * math.Sqrt(e.Veg.DLeaf))
	s.Rb = 1 / (cf * uaf)

	// Under-canopy soil resistance, varying with canopy density
	// (X. Zeng) and under-canopy stability (Sakaguchi and Zeng, 2009).
	tlsai := c.ELAI + c.ESAI
	w := math.Exp(-tlsai)
	csoilb := physconst.VKC / (0.13 * math.Pow(sf.Z0MG*uaf/1.5e-5, 0.45))
	ri := (physconst.Grav * c.HTop * (s.TAF - sf.TGrnd)) / math.Pow(s.TAF*uaf, 2)
	var csoilcn float64
	if s.TAF-sf.TGrnd > 0 {
		ricsoilc := csoilc / (1 + 0.5*math.Min(ri, 10))
		csoilcn = csoilb*w + ricsoilc*(1-w)
	} else {
		csoilcn = csoilb*w + csoilc*(1-w)
	}
	s.Rah[1] = 1 / (csoilcn * uaf)
	s.Raw[1] = s.Rah[1]

	// Stomatal resistances of the sunlit and shaded canopy.
	eah := f.Pbot * s.QAF / 0.622
	veg := e.Veg.photosynthesis()
	leaf := photosynthesis.Leaf{
		Pbot:       f.Pbot,
		TVeg:       s.TVeg,
		T10:        c.T10,
		Esat:       s.El,
		Eair:       eah,
		O2:         f.PO2,
		CO2:        f.PCO2,
		Rb:         s.Rb,
		DaylFactor: s.DaylFactor,
		Thm:        thm,
	}
	soybean := e.VegType == nSoybean || e.VegType == nSoybeanIrrig
	if soybean {
		s.Btran = math.Min(1, s.Btran*1.25)
	}
	leaf.Btran = s.Btran
	s.RsSun, s.PsnSun = photosynthesis.StomatalResistance(veg, leaf, photosynthesis.Profile{
		NRad: r.NRad, TLAI: r.TLAIZ, PAR: r.ParSunZ, LAI: r.LAISunZ, Vcmaxcint: r.VcmaxcintSun,
	})
	if soybean {
		s.Btran = math.Min(1, s.Btran*1.25)
	}
	leaf.Btran = s.Btran
	s.RsSha, s.PsnSha = photosynthesis.StomatalResistance(veg, leaf, photosynthesis.Profile{
		NRad: r.NRad, TLAI: r.TLAIZ, PAR: r.ParShaZ, LAI: r.LAIShaZ, Vcmaxcint: r.VcmaxcintSha,
	})

	// Sensible heat conductances for air, leaf and ground.
	wta := 1 / s.Rah[0]
	wtl := tlsai / s.Rb
	s.Wtg = 1 / s.Rah[1]
	wtshi := 1 / (wta + wtl + s.Wtg)
	s.Wtl0 = wtl * wtshi
	wtg0 := s.Wtg * wtshi
	s.Wta0 = wta * wtshi
	wtga := s.Wta0 + wtg0
	s.Wtal = s.Wta0 + s.Wtl0

	// Fraction of potential evaporation from leaves.
	var rppdry float64
	if c.FDry > 0 {
		rppdry = c.FDry * s.Rb * (c.LAISun/(s.Rb+s.RsSun) + c.LAISha/(s.Rb+s.RsSha)) / c.ELAI
	}

	h2ocanRate := c.H2OCan / dt
	var rpp float64
	efpot := s.Rho * wtl * (s.QSatL - s.QAF)
	if efpot > 0 {
		if s.Btran > btran0 {
			s.QflxTranVeg = efpot * rppdry
			rpp = rppdry + c.FWet
		} else {
			rpp = c.FWet
			s.QflxTranVeg = 0
		}
		// Limit total evapotranspiration from leaves.
		rpp = math.Min(rpp, (s.QflxTranVeg+h2ocanRate)/efpot)
	} else {
		rpp = 1
		s.QflxTranVeg = 0
	}

	// Latent heat conductances. Air has the same conductance for
	// sensible and latent heat.
	fveg := float64(c.FracVegNoSno)
	wtaq := fveg / s.Raw[0]
	wtlq := fveg * tlsai / s.Rb * rpp

	// Litter layer resistance (Sakaguchi).
	fsnoDL := sf.SnowDepth / snowDepthLitter
	elaiDL := laiLitter * (1 - math.Min(fsnoDL, 1))
	rdl := (1 - math.Exp(-elaiDL)) / (0.004 * uaf)

	// The soil wetness factor does not apply to dew.
	if s.DelQ < 0 {
		s.Wtgq = fveg / (s.Raw[1] + rdl)
	} else {
		s.Wtgq = sf.SoilBeta * fveg / (s.Raw[1] + rdl)
	}

	wtsqi := 1 / (wtaq + wtlq + s.Wtgq)
	wtgq0 := s.Wtgq * wtsqi
	s.Wtlq0 = wtlq * wtsqi
	s.Wtaq0 = wtaq * wtsqi
	wtgaq := s.Wtaq0 + wtgq0
	s.Wtalq = s.Wtaq0 + s.Wtlq0

	dc1 := s.Rho * physconst.CpAir * wtl
	dc2 := physconst.HVap * s.Rho * wtlq
	efsh := dc1 * (wtga*s.TVeg - wtg0*sf.TGrnd - s.Wta0*thm)
	s.Efe = dc2 * (wtgaq*s.QSatL - wtgq0*sf.QG - s.Wtaq0*f.Q)

	// Damp the leaf latent heat flux when its sign flips.
	var erre float64
	if s.Efe*s.efeb < 0 {
		efeold := s.Efe
		s.Efe = 0.1 * efeold
		erre = s.Efe - efeold
	}

	// Leaf temperature increment from the linearized energy balance.
	lwGrnd := e.groundLongwave()
	tv := s.TVeg
	dtVeg := (r.SABV + s.Air + s.Bir*math.Pow(tv, 4) + s.Cir*lwGrnd - efsh - s.Efe) /
		(-4*s.Bir*math.Pow(tv, 3) + dc1*wtga + dc2*wtgaq*s.QSatLdT)
	rawDtVeg := dtVeg
	s.TVeg = s.TLBef + dtVeg
	dels := dtVeg
	s.del = math.Abs(dels)
	s.ClampResidual = 0
	clamped := false
	if s.del > dtVegMax {
		dtVeg = dtVegMax * dels / s.del
		s.TVeg = s.TLBef + dtVeg
		clamped = true
		tl := s.TLBef
		s.ClampResidual = r.SABV + s.Air + s.Bir*math.Pow(tl, 3)*(tl+4*dtVeg) + s.Cir*lwGrnd -
			(efsh + dc1*wtga*dtVeg) - (s.Efe + dc2*wtgaq*s.QSatLdT*dtVeg)
	}
	s.DtVeg = dtVeg

	// Fluxes from leaves to canopy space. The limits on the latent
	// heat flux are balanced by the sensible heat flux.
	efpot = s.Rho * wtl * (wtgaq*(s.QSatL+s.QSatLdT*dtVeg) - wtgq0*sf.QG - s.Wtaq0*f.Q)
	s.QflxEvapVeg = rpp * efpot
	if efpot > 0 && s.Btran > btran0 {
		s.QflxTranVeg = efpot * rppdry
	} else {
		s.QflxTranVeg = 0
	}
	// Excess energy if all intercepted water evaporates.
	ecidif := math.Max(0, s.QflxEvapVeg-s.QflxTranVeg-h2ocanRate)
	s.QflxEvapVeg = math.Min(s.QflxEvapVeg, s.QflxTranVeg+h2ocanRate)
	s.EflxShVeg = efsh + dc1*wtga*dtVeg + s.ClampResidual + erre + physconst.HVap*ecidif

	s.El, _, s.QSatL, s.QSatLdT = qsat.QSat(s.TVeg, f.Pbot)

	// Canopy air temperature and humidity for the next pass.
	s.TAF = wtg0*sf.TGrnd + s.Wta0*thm + s.Wtl0*s.TVeg
	s.QAF = s.Wtlq0*s.QSatL + wtgq0*sf.QG + f.Q*s.Wtaq0

	// Monin-Obukhov length and wind speed including the stability
	// effect.
	s.Dth = thm - s.TAF
	s.Dqh = f.Q - s.QAF
	s.DelQ = s.Wtalq*sf.QG - s.Wtlq0*s.QSatL - s.Wtaq0*f.Q
	tstar := s.Temp1 * s.Dth
	qstar := s.Temp2 * s.Dqh
	thvstar := tstar*(1+0.61*f.Q) + 0.61*f.Th*qstar
	zeta := s.Zldis * physconst.VKC * physconst.Grav * thvstar / (s.Ustar * s.Ustar * thv)
	if zeta >= 0 { // stable
		zeta = math.Min(2, math.Max(zeta, 0.01))
		s.Um = math.Max(s.Ur, 0.1)
	} else { // unstable
		zeta = math.Max(-100, math.Min(zeta, -0.01))
		wc := math.Pow(-physconst.Grav*s.Ustar*thvstar*hgtPBL/thv, 0.333)
		s.Um = math.Sqrt(s.Ur*s.Ur + wc*wc)
	}
	s.Obu = s.trackSign(s.Zldis / zeta)

	if e.RecordTrace {
		s.Trace = append(s.Trace, Iteration{
			TVeg:     s.TVeg,
			RawDelta: rawDtVeg,
			Delta:    dtVeg,
			Clamped:  clamped,
			Obu:      s.Obu,
			Efe:      s.Efe,
		})
	}

	// Test for convergence.
	s.Iterations++
	if s.Iterations > itmin {
		dele := math.Abs(s.Efe - s.efeb)
		s.efeb = s.Efe
		det := math.Max(s.del, del2)
		if det < dtVegTol && dele < efeTol {
			s.Converged = true
		}
	}
}

// groundLongwave returns the fourth power of the ground emitting
// temperature, weighted by the snow, soil and surface water fractions
// [K⁴].
func (e *Element) groundLongwave() float64 {
	sf := &e.Surface
	tSnow := sf.TSoiSno[NLevSno-sf.Snl]
	tSoil := sf.TSoiSno[NLevSno]
	return sf.FracSno*math.Pow(tSnow, 4) +
		(1-sf.FracSno-sf.FracH2OSfc)*math.Pow(tSoil, 4) +
		sf.FracH2OSfc*math.Pow(sf.TH2OSfc, 4)
}
