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

// Package canopyflux calculates leaf temperature and the partitioning of
// energy absorbed by a vegetation canopy into sensible heat, latent heat
// and transpiration for independent land surface elements, coupling
// Monin-Obukhov similarity theory to a stomatal conductance model.
//
// The calculations for one element proceed in three steps:
// InitializeFlux, StabilityIteration and ComputeFlux. Solve runs the
// steps that apply to the element. A Domain runs Solve concurrently over
// many elements.
package canopyflux

import (
	"fmt"
	"strings"

	"github.com/spatialmodel/canopyflux/internal/physconst"
)

// NLevSno is the maximum number of snow layers. Snow and soil column
// arrays hold NLevSno snow layer slots followed by the soil layers.
const NLevSno = 5

// LandUnit is the land-unit class of an element.
type LandUnit int

// Land-unit classes.
const (
	Soil LandUnit = iota
	Crop
	Wetland
	Lake
	Urban
	Ice
)

var landUnitNames = []string{"soil", "crop", "wetland", "lake", "urban", "ice"}

func (u LandUnit) String() string {
	if u < 0 || int(u) >= len(landUnitNames) {
		return fmt.Sprintf("LandUnit(%d)", int(u))
	}
	return landUnitNames[u]
}

// UnmarshalText allows land-unit classes to be specified by name in
// configuration files.
func (u *LandUnit) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for i, n := range landUnitNames {
		if n == name {
			*u = LandUnit(i)
			return nil
		}
	}
	return fmt.Errorf("canopyflux: invalid land unit %q", text)
}

// MarshalText is the inverse of UnmarshalText.
func (u LandUnit) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// LandElement identifies the land-unit class and vegetation type of an
// element.
type LandElement struct {
	Unit    LandUnit
	VegType int
}

// AtmosphericForcing holds the atmospheric state at the reference height.
type AtmosphericForcing struct {
	U, V  float64 // wind speed in east and north directions [m/s]
	T     float64 // air temperature [K]
	Th    float64 // potential temperature [K]
	Q     float64 // specific humidity [kg/kg]
	Pbot  float64 // atmospheric pressure [Pa]
	Rho   float64 // air density [kg/m³]; calculated from Pbot, T and Q when zero
	LWRad float64 // downward longwave radiation [W/m²]
	PCO2  float64 // CO2 partial pressure [Pa]
	PO2   float64 // O2 partial pressure [Pa]

	// Observation heights of wind, temperature and humidity [m].
	HgtU, HgtT, HgtQ float64
}

// Thm is the air temperature adjusted to the observation height [K].
func (f *AtmosphericForcing) Thm() float64 { return f.T + 0.0098*f.HgtT }

// Thv is the virtual potential temperature [K].
func (f *AtmosphericForcing) Thv() float64 { return f.Th * (1 + 0.61*f.Q) }

// density returns the density of moist air [kg/m³].
func (f *AtmosphericForcing) density() float64 {
	vp := f.Q * f.Pbot / (0.622 + 0.378*f.Q)
	return (f.Pbot - 0.378*vp) / (physconst.RAir * f.T)
}

// SurfaceState holds the state of the ground under the canopy, as
// calculated by the hydrology and ground flux routines.
type SurfaceState struct {
	TGrnd    float64 // ground temperature [K]
	QG       float64 // ground specific humidity [kg/kg]
	QGSnow   float64 // specific humidity at the snow surface [kg/kg]
	QGSoil   float64 // specific humidity at the soil surface [kg/kg]
	QGH2OSfc float64 // specific humidity at the surface water [kg/kg]
	DQGDT    float64 // temperature derivative of QG [1/K]
	Htvp     float64 // latent heat of vaporization or sublimation [J/kg]
	Emg      float64 // ground emissivity
	Z0MG     float64 // momentum roughness length of the ground [m]

	FracSno    float64 // fraction of ground covered by snow
	FracH2OSfc float64 // fraction of ground covered by surface water
	TH2OSfc    float64 // surface water temperature [K]
	SnowDepth  float64 // [m]
	SoilBeta   float64 // soil wetness relative to field capacity
	Snl        int     // number of snow layers

	// Derivatives of ground sensible and latent heat fluxes with
	// respect to ground temperature from the ground flux routine
	// [W/m²/K]. The canopy contribution is added to these.
	CGrndS, CGrndL float64

	// Snow and soil column: NLevSno snow slots followed by the soil
	// layers.
	TSoiSno   []float64 // temperature [K]
	H2OSoiLiq []float64 // liquid water [kg/m²]
	H2OSoiIce []float64 // ice [kg/m²]
	Dz        []float64 // layer thickness [m]
}

// SoilColumn holds the hydraulic properties and rooting of each soil
// layer.
type SoilColumn struct {
	Watsat []float64 // porosity [m³/m³]
	Sucsat []float64 // saturated soil suction [mm]
	Bsw    []float64 // Clapp and Hornberger exponent
	RootFr []float64 // fraction of roots in each layer

	// TcStress is the critical soil temperature for soil water
	// stress [°C].
	TcStress float64
}

// CanopyState holds the state of the vegetation canopy.
type CanopyState struct {
	FracVegNoSno int     // 1 if vegetation is exposed above snow, else 0
	ELAI, ESAI   float64 // exposed leaf and stem area indices
	LAISun       float64 // sunlit leaf area index
	LAISha       float64 // shaded leaf area index
	FWet         float64 // fraction of canopy that is wet
	FDry         float64 // fraction of foliage that is green and dry

	// H2OCan is the canopy water [mm H2O]. It is the only quantity
	// updated by the solver that persists between timesteps.
	H2OCan float64

	HTop    float64 // canopy top height [m]
	Displa  float64 // displacement height of a dense canopy [m]
	Z0MV    float64 // momentum roughness length of a dense canopy [m]
	Emv     float64 // vegetation emissivity
	Dayl    float64 // day length [s]
	MaxDayl float64 // maximum day length [s]
	T10     float64 // 10-day running mean of 2 m temperature [K]
}

// AbsorbedRadiation holds the output of the canopy radiative transfer
// calculations.
type AbsorbedRadiation struct {
	SABV float64 // solar radiation absorbed by vegetation [W/m²]
	NRad int     // number of canopy layers above snow

	TLAIZ   []float64 // total leaf area index of each canopy layer
	ParSunZ []float64 // PAR absorbed per unit sunlit LAI in each layer [W/m²]
	ParShaZ []float64 // PAR absorbed per unit shaded LAI in each layer [W/m²]
	LAISunZ []float64 // sunlit leaf area index of each layer
	LAIShaZ []float64 // shaded leaf area index of each layer

	// Leaf to canopy scaling coefficients for a single-layer canopy.
	VcmaxcintSun, VcmaxcintSha float64
}

// Element holds the inputs, state and outputs of a single land surface
// element.
type Element struct {
	Name string
	LandElement

	Forcing   AtmosphericForcing
	Surface   SurfaceState
	Soil      SoilColumn
	Canopy    CanopyState
	Radiation AbsorbedRadiation
	Veg       VegProperties `toml:"-"`

	// RecordTrace specifies whether the stability iteration
	// history should be kept in State.Trace.
	RecordTrace bool

	State  SolverState `toml:"-"`
	Fluxes Fluxes      `toml:"-"`

	// Err holds the error from the most recent solve, if any.
	Err error `toml:"-"`
}

// nSoil returns the number of soil layers.
func (e *Element) nSoil() int { return len(e.Soil.Watsat) }
