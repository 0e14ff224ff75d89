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

// path is the set of calculations that apply to an element.
type path int

const (
	// pathSkip elements (lakes and urban areas) are not solved.
	pathSkip path = iota
	// pathBareGround elements have no exposed vegetation.
	pathBareGround
	// pathVegetated elements are solved iteratively.
	pathVegetated
)

func (p path) String() string {
	switch p {
	case pathSkip:
		return "skip"
	case pathBareGround:
		return "bare ground"
	default:
		return "vegetated"
	}
}

// path returns the calculations that apply to e.
func (e *Element) path() path {
	switch {
	case e.Unit == Lake || e.Unit == Urban:
		return pathSkip
	case e.Canopy.FracVegNoSno == 0:
		return pathBareGround
	default:
		return pathVegetated
	}
}

// Iteration records one pass of the stability iteration.
type Iteration struct {
	TVeg     float64 // leaf temperature after the pass [K]
	RawDelta float64 // leaf temperature increment before limiting [K]
	Delta    float64 // leaf temperature increment applied [K]
	Clamped  bool    // whether the increment was limited
	Obu      float64 // Monin-Obukhov length for the next pass [m]
	Efe      float64 // latent heat flux from leaves [W/m²]
}

// SolverState holds the intermediate quantities of a solve. It is reset
// by InitializeFlux.
type SolverState struct {
	Btran      float64   // transpiration wetness factor (0 to 1)
	DaylFactor float64   // day length scaling of Vcmax (0 to 1)
	Rootr      []float64 // effective fraction of roots in each soil layer
	EffPoros   []float64 // effective porosity of each soil layer

	// Aerodynamic parameters adjusted for canopy density [m].
	Displa, Z0MV, Z0HV, Z0QV float64

	// Linearized net longwave coefficients.
	Air, Bir, Cir float64

	El      float64 // vapor pressure at the leaf surface [Pa]
	QSatL   float64 // leaf saturation specific humidity [kg/kg]
	QSatLdT float64 // derivative of QSatL with respect to leaf temperature [1/K]

	TVeg  float64 // leaf temperature [K]
	TLBef float64 // leaf temperature at the start of the last pass [K]
	DtVeg float64 // leaf temperature increment applied in the last pass [K]
	TAF   float64 // canopy air temperature [K]
	QAF   float64 // canopy air specific humidity [kg/kg]

	Rho   float64 // air density [kg/m³]
	Ur    float64 // wind speed at the reference height [m/s]
	Um    float64 // wind speed including the stability effect [m/s]
	Obu   float64 // Monin-Obukhov length [m]
	Zldis float64 // reference height minus displacement height [m]
	Ustar float64 // friction velocity [m/s]

	DelQ float64 // ground to canopy-air specific humidity difference [kg/kg]
	Dth  float64 // reference to canopy-air temperature difference [K]
	Dqh  float64 // reference to canopy-air humidity difference [kg/kg]

	// Similarity relations for temperature and humidity at the
	// reference height and at 2 m.
	Temp1, Temp2, Temp12m, Temp22m float64

	Rb  float64    // leaf boundary layer resistance [s/m]
	Ram float64    // aerodynamic resistance for momentum [s/m]
	Rah [2]float64 // sensible heat resistances, above and below canopy [s/m]
	Raw [2]float64 // moisture resistances, above and below canopy [s/m]

	RsSun, RsSha   float64 // stomatal resistances [s/m]
	PsnSun, PsnSha float64 // photosynthesis [µmol CO2/m²/s]

	// Sensible heat conductance of the ground [m/s] and normalized
	// conductances of leaf, air, and air plus leaf.
	Wtg, Wtl0, Wta0, Wtal float64

	// Latent heat conductance of the ground [m/s] and normalized
	// conductances of air plus leaf, leaf, and air.
	Wtgq, Wtalq, Wtlq0, Wtaq0 float64

	QflxTranVeg float64 // transpiration [mm H2O/s]
	QflxEvapVeg float64 // evaporation from leaves [mm H2O/s]
	EflxShVeg   float64 // sensible heat from leaves [W/m²]
	Efe         float64 // latent heat from leaves [W/m²]

	// ClampResidual is the energy balance residual caused by limiting
	// the leaf temperature increment in the last pass [W/m²].
	ClampResidual float64

	Iterations  int  // number of stability iteration passes
	SignChanges int  // number of changes in sign of Obu
	Converged   bool // whether the convergence criteria were met

	// Trace holds one record per pass when the element's RecordTrace
	// is set.
	Trace []Iteration

	del    float64 // magnitude of the last leaf temperature increment [K]
	efeb   float64 // latent heat flux at the last convergence check [W/m²]
	obuOld float64 // Monin-Obukhov length from the last pass [m]
}

// trackSign counts changes in the sign of the Monin-Obukhov length obu
// between passes. After four changes the length is held at a near-neutral
// value to stop the oscillation. It returns the length to use.
func (s *SolverState) trackSign(obu float64) float64 {
	if s.obuOld*obu < 0 {
		s.SignChanges++
	}
	if s.SignChanges >= 4 {
		obu = s.Zldis / -0.01
	}
	s.obuOld = obu
	return obu
}
