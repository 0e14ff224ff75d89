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

// Fluxes holds the results of a solve. Positive heat and water fluxes
// are directed toward the atmosphere.
type Fluxes struct {
	TVeg  float64 `desc:"Leaf temperature" units:"K"`
	Btran float64 `desc:"Transpiration wetness factor" units:"fraction"`

	QflxTranVeg float64 `desc:"Transpiration" units:"kg/m²/s"`
	QflxEvapVeg float64 `desc:"Evaporation from leaves" units:"kg/m²/s"`
	EflxShVeg   float64 `desc:"Sensible heat flux from leaves" units:"W/m²"`

	EflxShGrnd   float64 `desc:"Sensible heat flux from ground" units:"W/m²"`
	EflxShSnow   float64 `desc:"Sensible heat flux from snow" units:"W/m²"`
	EflxShSoil   float64 `desc:"Sensible heat flux from soil" units:"W/m²"`
	EflxShH2OSfc float64 `desc:"Sensible heat flux from surface water" units:"W/m²"`

	QflxEvapSoi  float64 `desc:"Evaporation from ground" units:"kg/m²/s"`
	QflxEvSnow   float64 `desc:"Evaporation from snow" units:"kg/m²/s"`
	QflxEvSoil   float64 `desc:"Evaporation from soil" units:"kg/m²/s"`
	QflxEvH2OSfc float64 `desc:"Evaporation from surface water" units:"kg/m²/s"`

	DLRad float64 `desc:"Downward longwave radiation below the canopy" units:"W/m²"`
	ULRad float64 `desc:"Upward longwave radiation above the canopy" units:"W/m²"`

	CGrndS float64 `desc:"Derivative of ground sensible heat flux with respect to ground temperature" units:"W/m²/K"`
	CGrndL float64 `desc:"Derivative of ground evaporation with respect to ground temperature" units:"kg/m²/s/K"`
	CGrnd  float64 `desc:"Derivative of ground energy flux with respect to ground temperature" units:"W/m²/K"`

	TRef2m   float64 `desc:"2 m air temperature" units:"K"`
	TRef2mR  float64 `desc:"Rural 2 m air temperature" units:"K"`
	QRef2m   float64 `desc:"2 m specific humidity" units:"kg/kg"`
	RHRef2m  float64 `desc:"2 m relative humidity" units:"percent"`
	RHRef2mR float64 `desc:"Rural 2 m relative humidity" units:"percent"`

	RsSun  float64 `desc:"Sunlit stomatal resistance" units:"s/m"`
	RsSha  float64 `desc:"Shaded stomatal resistance" units:"s/m"`
	PsnSun float64 `desc:"Sunlit leaf photosynthesis" units:"μmol/m²/s"`
	PsnSha float64 `desc:"Shaded leaf photosynthesis" units:"μmol/m²/s"`

	EnergyBalanceError    float64 `desc:"Leaf energy balance residual" units:"W/m²"`
	LeafTempClampResidual float64 `desc:"Energy residual from limiting the leaf temperature change" units:"W/m²"`

	H2OCan float64 `desc:"Canopy water" units:"kg/m²"`
}
