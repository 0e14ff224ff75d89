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

	"github.com/spatialmodel/canopyflux/internal/physconst"
	"github.com/spatialmodel/canopyflux/science/frictionvelocity"
	"github.com/spatialmodel/canopyflux/science/qsat"
	"github.com/spatialmodel/canopyflux/science/soilstress"
)

// tlsaiCrit is the critical value of leaf plus stem area index above
// which the canopy is considered dense.
const tlsaiCrit = 2.0

// InitializeFlux resets the solver state and sets up the quantities that
// stay fixed during the stability iteration: soil water stress, canopy
// aerodynamic parameters, longwave coefficients and the initial
// Monin-Obukhov length. Elements without exposed vegetation receive their
// final leaf fluxes here.
//
// A *ForcingHeightError is returned if the wind observation height is
// below the displacement height.
func (e *Element) InitializeFlux() error {
	s := &e.State
	*s = SolverState{}
	e.Fluxes = Fluxes{}
	e.Err = nil

	p := e.path()
	if p == pathSkip {
		return nil
	}

	f := &e.Forcing
	s.Rho = f.Rho
	if s.Rho == 0 {
		s.Rho = f.density()
	}
	thm := f.Thm()
	s.Rootr = make([]float64, e.nSoil())
	s.TVeg = f.T

	if p == pathBareGround {
		s.Btran = 0
		// Nominal bare ground conductance gives a negligible resistance.
		cfBare := f.Pbot / (physconst.RGas * 0.001 * thm) * 1.e6
		s.RsSun = 1 / 1.e15 * cfBare
		s.RsSha = 1 / 1.e15 * cfBare
		e.bareGroundFluxes()
		return nil
	}

	c := &e.Canopy
	sf := &e.Surface

	if !(c.MaxDayl > 0) {
		return fmt.Errorf("canopyflux: element %q: maximum day length %g s must be >0", e.Name, c.MaxDayl)
	}
	s.DaylFactor = math.Min(1, math.Max(0.01, (c.Dayl*c.Dayl)/(c.MaxDayl*c.MaxDayl)))

	// Soil water stress from the soil layers of the column.
	n := e.nSoil()
	s.EffPoros = make([]float64, n)
	volLiq := make([]float64, n)
	soilstress.EffectivePorosity(e.Soil.Watsat, sf.H2OSoiIce[NLevSno:], sf.Dz[NLevSno:], s.EffPoros)
	soilstress.VolumetricLiquid(s.EffPoros, sf.H2OSoiLiq[NLevSno:], sf.Dz[NLevSno:], volLiq)
	s.Btran = soilstress.RootMoistStress(volLiq, e.Soil.RootFr, sf.TSoiSno[NLevSno:], s.EffPoros,
		e.Soil.Watsat, e.Soil.Sucsat, e.Soil.Bsw, e.Soil.TcStress, e.Veg.Smpso, e.Veg.Smpsc, s.Rootr)

	// Aerodynamic parameters for sparse and dense canopies (X. Zeng).
	lt := math.Min(c.ELAI+c.ESAI, tlsaiCrit)
	egvf := (1 - math.Exp(-lt)) / (1 - math.Exp(-tlsaiCrit))
	s.Displa = c.Displa * egvf
	s.Z0MV = math.Exp(egvf*math.Log(c.Z0MV) + (1-egvf)*math.Log(sf.Z0MG))
	s.Z0HV = s.Z0MV
	s.Z0QV = s.Z0MV

	// Net absorbed longwave radiation by canopy and ground.
	s.Air = c.Emv * (1 + (1-c.Emv)*(1-sf.Emg)) * f.LWRad
	s.Bir = -(2 - c.Emv*(1-sf.Emg)) * c.Emv * physconst.SB
	s.Cir = c.Emv * sf.Emg * physconst.SB

	s.El, _, s.QSatL, s.QSatLdT = qsat.QSat(s.TVeg, f.Pbot)

	// Initial flux profile.
	s.TAF = (sf.TGrnd + thm) / 2
	s.QAF = (f.Q + sf.QG) / 2
	s.Ur = math.Max(1, math.Sqrt(f.U*f.U+f.V*f.V))
	dth := thm - s.TAF
	dqh := f.Q - s.QAF
	s.DelQ = sf.QG - s.QAF
	dthv := dth*(1+0.61*f.Q) + 0.61*f.Th*dqh
	s.Zldis = f.HgtU - s.Displa

	if s.Zldis < 0 {
		return &ForcingHeightError{Element: e.Name, HgtU: f.HgtU, Displa: s.Displa}
	}

	s.Um, s.Obu = frictionvelocity.MoninObukIni(s.Ur, f.Thv(), dthv, s.Zldis, s.Z0MV)
	return nil
}

// bareGroundFluxes sets the leaf outputs of an element without exposed
// vegetation.
func (e *Element) bareGroundFluxes() {
	s := &e.State
	e.Fluxes = Fluxes{
		TVeg:   s.TVeg,
		Btran:  s.Btran,
		RsSun:  s.RsSun,
		RsSha:  s.RsSha,
		CGrndS: e.Surface.CGrndS,
		CGrndL: e.Surface.CGrndL,
		CGrnd:  e.Surface.CGrndS + e.Surface.CGrndL*e.Surface.Htvp,
		H2OCan: e.Canopy.H2OCan,
	}
}
