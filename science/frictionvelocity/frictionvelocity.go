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

// Package frictionvelocity calculates friction velocity and the
// Monin-Obukhov similarity relations for temperature and humidity
// profiles in the surface layer, following Zeng et al. (1998),
// "Intercomparison of bulk aerodynamic algorithms for the computation
// of sea surface fluxes using TOGA COARE and TAO data",
// Journal of Climate 11: 2628-2644.
//
// All lengths are in meters. obu is the Monin-Obukhov length, which is
// positive for stable and negative for unstable conditions.
package frictionvelocity

import (
	"math"

	"github.com/spatialmodel/canopyflux/internal/physconst"
)

const (
	zetam = 1.574 // transition point of flux-gradient relation (wind profile)
	zetat = 0.465 // transition point of flux-gradient relation (temperature profile)
)

// StabilityFunc1 is the integral of the momentum flux-gradient relation
// for unstable conditions.
func StabilityFunc1(zeta float64) float64 {
	chik := math.Pow(1-16*zeta, 0.25)
	chik2 := chik * chik
	return 2*math.Log((1+chik)*0.5) + math.Log((1+chik2)*0.5) -
		2*math.Atan(chik) + math.Pi*0.5
}

// StabilityFunc2 is the integral of the heat and moisture flux-gradient
// relation for unstable conditions.
func StabilityFunc2(zeta float64) float64 {
	chik2 := math.Sqrt(1 - 16*zeta)
	return 2 * math.Log((1+chik2)*0.5)
}

// Wind returns the friction velocity [m/s] for wind speed um [m/s]
// observed at height hgtU above a surface with displacement height
// displa and momentum roughness length z0m.
func Wind(hgtU, displa, um, obu, z0m float64) float64 {
	zldis := hgtU - displa
	zeta := zldis / obu
	switch {
	case zeta < -zetam: // very unstable
		return physconst.VKC * um / (math.Log(-zetam*obu/z0m) -
			StabilityFunc1(-zetam) + StabilityFunc1(z0m/obu) +
			1.14*(math.Pow(-zeta, 0.333)-math.Pow(zetam, 0.333)))
	case zeta < 0: // unstable
		return physconst.VKC * um / (math.Log(zldis/z0m) -
			StabilityFunc1(zeta) + StabilityFunc1(z0m/obu))
	case zeta <= 1: // stable
		return physconst.VKC * um / (math.Log(zldis/z0m) + 5*zeta - 5*z0m/obu)
	default: // very stable
		return physconst.VKC * um / (math.Log(obu/z0m) + 5 - 5*z0m/obu +
			(5*math.Log(zeta) + zeta - 1))
	}
}

// scalarProfile is the similarity relation shared by the temperature
// and humidity profiles, for a scalar with roughness length z0 and
// measurement height zldis above the displacement height.
func scalarProfile(zldis, obu, z0 float64) float64 {
	zeta := zldis / obu
	switch {
	case zeta < -zetat: // very unstable
		return physconst.VKC / (math.Log(-zetat*obu/z0) -
			StabilityFunc2(-zetat) + StabilityFunc2(z0/obu) +
			0.8*(math.Pow(zetat, -0.333)-math.Pow(-zeta, -0.333)))
	case zeta < 0: // unstable
		return physconst.VKC / (math.Log(zldis/z0) -
			StabilityFunc2(zeta) + StabilityFunc2(z0/obu))
	case zeta <= 1: // stable
		return physconst.VKC / (math.Log(zldis/z0) + 5*zeta - 5*z0/obu)
	default: // very stable
		return physconst.VKC / (math.Log(obu/z0) + 5 - 5*z0/obu +
			(5*math.Log(zeta) + zeta - 1))
	}
}

// Temperature returns the relation for the potential temperature
// profile (temp1), for temperature observed at height hgtT and heat
// roughness length z0h.
func Temperature(hgtT, displa, obu, z0h float64) float64 {
	return scalarProfile(hgtT-displa, obu, z0h)
}

// Humidity returns the relation for the specific humidity profile
// (temp2). When humidity is observed at the temperature height and the
// roughness lengths match, the temperature relation temp1 is reused.
func Humidity(hgtQ, hgtT, displa, obu, z0h, z0q, temp1 float64) float64 {
	if hgtQ == hgtT && z0q == z0h {
		return temp1
	}
	return scalarProfile(hgtQ-displa, obu, z0q)
}

// Temperature2m returns the relation for the potential temperature
// profile applied at 2 m above the heat roughness length.
func Temperature2m(obu, z0h float64) float64 {
	return scalarProfile(2+z0h, obu, z0h)
}

// Humidity2m returns the relation for the specific humidity profile
// applied at 2 m. temp12m is reused when the roughness lengths match.
func Humidity2m(obu, z0h, z0q, temp12m float64) float64 {
	if z0q == z0h {
		return temp12m
	}
	return scalarProfile(2+z0q, obu, z0q)
}

// MoninObukIni returns an initial estimate of the wind speed including
// the stability effect, um [m/s], and the Monin-Obukhov length obu [m],
// from the reference wind speed ur [m/s], the virtual potential
// temperature thv [K], the virtual potential temperature difference
// between the reference height and the surface dthv [K], the reference
// height above the displacement height zldis [m], and the momentum
// roughness length z0m [m].
func MoninObukIni(ur, thv, dthv, zldis, z0m float64) (um, obu float64) {
	const wc = 0.5 // convective velocity [m/s]

	if dthv >= 0 {
		um = math.Max(ur, 0.1)
	} else {
		um = math.Sqrt(ur*ur + wc*wc)
	}

	rib := physconst.Grav * zldis * dthv / (thv * um * um)

	var zeta float64
	if rib >= 0 { // neutral or stable
		zeta = rib * math.Log(zldis/z0m) / (1 - 5*math.Min(rib, 0.19))
		zeta = math.Min(2, math.Max(zeta, 0.01))
	} else { // unstable
		zeta = rib * math.Log(zldis/z0m)
		zeta = math.Max(-100, math.Min(zeta, -0.01))
	}
	obu = zldis / zeta
	return
}
