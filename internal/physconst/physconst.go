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

// Package physconst holds the physical constants shared by the canopy flux
// science packages. Values follow the ELM/CLM land model.
package physconst

const (
	// Grav is the acceleration of gravity [m/s²].
	Grav = 9.80616
	// SB is the Stefan-Boltzmann constant [W/m²/K⁴].
	SB = 5.67e-8
	// VKC is the von Karman constant [-].
	VKC = 0.4
	// CpAir is the specific heat of dry air [J/kg/K].
	CpAir = 1.00464e3
	// HVap is the latent heat of evaporation [J/kg].
	HVap = 2.501e6
	// HSub is the latent heat of sublimation [J/kg].
	HSub = 2.8440e6
	// TFrz is the freezing temperature of fresh water [K].
	TFrz = 273.15
	// RGas is the universal gas constant [J/K/kmole].
	RGas = 6.02214e26 * 1.38065e-23
	// RAir is the gas constant for dry air [J/kg/K].
	RAir = RGas / 28.966
	// DenH2O is the density of liquid water [kg/m³].
	DenH2O = 1000.
	// DenIce is the density of ice [kg/m³].
	DenIce = 917.
)
