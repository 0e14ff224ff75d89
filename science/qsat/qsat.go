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

// Package qsat calculates saturation vapor pressure and saturation specific
// humidity, along with their temperature derivatives, over water and ice.
//
// The polynomial fits are from Flatau et al. (1992), "Polynomial fits to
// saturation vapor pressure", Journal of Applied Meteorology 31: 1507-1513,
// valid between -75 °C and 100 °C.
package qsat

import (
	"github.com/spatialmodel/canopyflux/internal/physconst"
)

// Coefficients for saturation vapor pressure over water (T >= 0 °C) [mb].
var a = [9]float64{
	6.11213476, 0.444007856, 0.143064234e-01, 0.264461437e-03,
	0.305903558e-05, 0.196237241e-07, 0.892344772e-10,
	-0.373208410e-12, 0.209339997e-15,
}

// Coefficients for the derivative of saturation vapor pressure over water [mb/K].
var b = [9]float64{
	0.444017302, 0.286064092e-01, 0.794683137e-03, 0.121211669e-04,
	0.103354611e-06, 0.404125005e-09, -0.788037859e-12,
	-0.114596802e-13, 0.381294516e-16,
}

// Coefficients for saturation vapor pressure over ice (T < 0 °C) [mb].
var c = [9]float64{
	6.11123516, 0.503109514, 0.188369801e-01, 0.420547422e-03,
	0.614396778e-05, 0.602780717e-07, 0.387940929e-09,
	0.149436277e-11, 0.262655803e-14,
}

// Coefficients for the derivative of saturation vapor pressure over ice [mb/K].
var d = [9]float64{
	0.503277922, 0.377289173e-01, 0.126801703e-02, 0.249468427e-04,
	0.313703411e-06, 0.257180651e-08, 0.133268878e-10,
	0.394116744e-13, 0.498070196e-16,
}

// poly evaluates the polynomial with coefficients p at x using
// Horner's method.
func poly(p *[9]float64, x float64) float64 {
	v := p[8]
	for i := 7; i >= 0; i-- {
		v = v*x + p[i]
	}
	return v
}

// QSat returns the saturation vapor pressure es [Pa], its temperature
// derivative esdT [Pa/K], the saturation specific humidity qs [kg/kg]
// and its temperature derivative qsdT [1/K] for temperature t [K] and
// atmospheric pressure p [Pa].
func QSat(t, p float64) (es, esdT, qs, qsdT float64) {
	td := t - physconst.TFrz
	if td > 100 {
		td = 100
	} else if td < -75 {
		td = -75
	}

	if td >= 0 {
		es = poly(&a, td)
		esdT = poly(&b, td)
	} else {
		es = poly(&c, td)
		esdT = poly(&d, td)
	}

	es *= 100   // mb -> Pa
	esdT *= 100 // mb/K -> Pa/K
	vp := 1. / (p - 0.378*es)
	vp1 := 0.622 * vp
	vp2 := vp1 * vp

	qs = es * vp1
	qsdT = esdT * vp2 * p
	return
}
