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

// Package photosynthesis calculates leaf photosynthesis and stomatal
// resistance for the sunlit or shaded fraction of a canopy, following
// the Farquhar et al. (1980) model for C3 plants, the Collatz et al.
// (1992) model for C4 plants and the Ball-Berry (1987) stomatal
// conductance model, as formulated in the Community Land Model 4.5.
package photosynthesis

import (
	"math"

	"github.com/spatialmodel/canopyflux/internal/physconst"
)

// Vegetation holds the photosynthetic parameters of a vegetation type.
type Vegetation struct {
	// C3 is true for C3 plants and false for C4 plants.
	C3 bool

	// Vcmax25Top is the maximum carboxylation rate at 25 °C at the
	// top of the canopy [µmol CO2/m2/s].
	Vcmax25Top float64

	// Mbbopt is the Ball-Berry slope of the conductance-photosynthesis
	// relationship, unstressed.
	Mbbopt float64

	// Bbbopt is the Ball-Berry minimum leaf conductance, unstressed
	// [µmol H2O/m2/s].
	Bbbopt float64
}

// Leaf describes the microclimate surrounding the leaves.
type Leaf struct {
	Pbot       float64 // Atmospheric pressure [Pa]
	TVeg       float64 // Leaf temperature [K]
	T10        float64 // 10-day running mean of the 2 m temperature [K]
	Esat       float64 // Saturation vapor pressure at TVeg [Pa]
	Eair       float64 // Vapor pressure of canopy air [Pa]
	O2         float64 // Atmospheric O2 partial pressure [Pa]
	CO2        float64 // Atmospheric CO2 partial pressure [Pa]
	Rb         float64 // Leaf boundary layer resistance [s/m]
	Btran      float64 // Transpiration wetness factor (0 to 1)
	DaylFactor float64 // Day length scaling of Vcmax (0 to 1)
	Thm        float64 // Air temperature at the reference height [K]
}

// Profile is the canopy-layer radiation profile of either the sunlit or
// the shaded fraction of the canopy.
type Profile struct {
	// NRad is the number of canopy layers above snow.
	NRad int

	// TLAI is the total leaf area index of each canopy layer.
	TLAI []float64

	// PAR is the absorbed photosynthetically active radiation per
	// unit leaf area of each canopy layer [W/m2].
	PAR []float64

	// LAI is the leaf area index of the fraction in each layer.
	LAI []float64

	// Vcmaxcint is the leaf to canopy scaling coefficient, used
	// when the canopy is represented by a single layer.
	Vcmaxcint float64
}

const (
	rsmax0    = 2.e4 // maximum stomatal resistance [s/m]
	fnps      = 0.15 // fraction of light absorbed by non-photosynthetic pigments
	thetaPSII = 0.7  // empirical curvature parameter for electron transport rate
	thetaIP   = 0.95 // empirical curvature parameter for ap photosynthesis co-limitation
	qeC4      = 0.05 // quantum efficiency, C4 plants [mol CO2/mol photon]

	// Activation energies [J/mol].
	kcha    = 79430.
	koha    = 36380.
	cpha    = 37830.
	vcmaxha = 65330.
	jmaxha  = 43540.
	tpuha   = 53100.
	lmrha   = 46390.

	// Deactivation energies [J/mol].
	vcmaxhd = 149250.
	jmaxhd  = 152040.
	tpuhd   = 150650.
	lmrhd   = 150650.

	lmrse = 490. // entropy term for leaf respiration [J/mol/K]

	// Conversion from W/m2 of PAR to µmol photons/m2/s.
	parToPhoton = 4.6
)

// rgasMol is the universal gas constant [J/K/mol].
const rgasMol = physconst.RGas * 1.e-3

// ft is the photosynthesis temperature response.
func ft(tl, ha float64) float64 {
	const t25 = physconst.TFrz + 25
	return math.Exp(ha / (rgasMol * t25) * (1 - t25/tl))
}

// fth is the photosynthesis temperature inhibition.
func fth(tl, hd, se, scale float64) float64 {
	return scale / (1 + math.Exp((-hd+se*tl)/(rgasMol*tl)))
}

// fth25 is the scaling factor for photosynthesis temperature inhibition.
func fth25(hd, se float64) float64 {
	const t25 = physconst.TFrz + 25
	return 1 + math.Exp((-hd+se*t25)/(rgasMol*t25))
}

// quadratic returns the roots of a*x^2 + b*x + c = 0, using the
// numerically stable form of Press et al. (1992).
// A negative discriminant is treated as zero.
func quadratic(a, b, c float64) (r1, r2 float64) {
	d := math.Sqrt(math.Max(b*b-4*a*c, 0))
	var q float64
	if b >= 0 {
		q = -0.5 * (b + d)
	} else {
		q = -0.5 * (b - d)
	}
	r1 = q / a
	if q != 0 {
		r2 = c / q
	} else {
		r2 = 1.e36
	}
	return
}

// layer holds the temperature-adjusted photosynthetic capacities of
// one canopy layer.
type layer struct {
	vcmax, jmax, tpu, kp, lmr float64
}

// StomatalResistance returns the stomatal resistance rs [s/m] and the
// leaf-area-weighted mean photosynthesis psn [µmol CO2/m2/s] of the
// canopy fraction described by p.
func StomatalResistance(v Vegetation, l Leaf, p Profile) (rs, psn float64) {
	const tfrz = physconst.TFrz

	thetaCJ := 0.98
	if !v.C3 {
		thetaCJ = 0.80
	}
	bbb := math.Max(v.Bbbopt*l.Btran, 1)
	mbb := v.Mbbopt

	cair := l.CO2
	oair := l.O2

	// µmol/m3 conversion from m/s.
	cf := l.Pbot / (physconst.RGas * 1.e-3 * l.Thm) * 1.e6
	gbMol := (1 / l.Rb) * cf

	kc25 := 404.9e-6 * l.Pbot
	ko25 := 278.4e-3 * l.Pbot
	sco := 0.5 * 0.209 / 42.75e-6
	cp25 := 0.5 * oair / sco

	kc := kc25 * ft(l.TVeg, kcha)
	ko := ko25 * ft(l.TVeg, koha)
	cp := cp25 * ft(l.TVeg, cpha)

	// Thermal acclimation of the entropy terms.
	t10c := math.Min(math.Max(l.T10-tfrz, 11), 35)
	vcmaxse := 668.39 - 1.07*t10c
	jmaxse := 659.70 - 0.75*t10c
	tpuse := vcmaxse
	vcmaxc := fth25(vcmaxhd, vcmaxse)
	jmaxc := fth25(jmaxhd, jmaxse)
	tpuc := fth25(tpuhd, tpuse)
	lmrc := fth25(lmrhd, lmrse)

	vcmax25top := v.Vcmax25Top * l.DaylFactor
	jmax25top := (2.59 - 0.035*t10c) * vcmax25top
	tpu25top := 0.167 * vcmax25top
	kp25top := 20000 * vcmax25top
	var lmr25top float64
	if v.C3 {
		lmr25top = 0.015 * vcmax25top
	} else {
		lmr25top = 0.025 * vcmax25top
	}

	// Nitrogen extinction coefficient (Lloyd et al. 2010).
	kn := math.Exp(0.00963*vcmax25top - 2.43)

	q10 := func(t float64) float64 { return math.Pow(2, (t-(tfrz+25))/10) }

	var psncan, gscan, laican float64
	var cumLAI float64
	for iv := 0; iv < p.NRad; iv++ {
		// Cumulative leaf area to the middle of the layer.
		if iv == 0 {
			cumLAI = 0.5 * p.TLAI[iv]
		} else {
			cumLAI += 0.5 * (p.TLAI[iv-1] + p.TLAI[iv])
		}
		var nscaler float64
		if p.NRad == 1 {
			nscaler = p.Vcmaxcint
		} else {
			nscaler = math.Exp(-kn * cumLAI)
		}

		var c layer
		tv := l.TVeg
		if v.C3 {
			c.vcmax = vcmax25top * nscaler * ft(tv, vcmaxha) * fth(tv, vcmaxhd, vcmaxse, vcmaxc)
			c.jmax = jmax25top * nscaler * ft(tv, jmaxha) * fth(tv, jmaxhd, jmaxse, jmaxc)
			c.tpu = tpu25top * nscaler * ft(tv, tpuha) * fth(tv, tpuhd, tpuse, tpuc)
			c.lmr = lmr25top * nscaler * ft(tv, lmrha) * fth(tv, lmrhd, lmrse, lmrc)
		} else {
			c.vcmax = vcmax25top * nscaler * q10(tv)
			c.vcmax /= 1 + math.Exp(0.2*((tfrz+15)-tv))
			c.vcmax /= 1 + math.Exp(0.3*(tv-(tfrz+40)))
			c.lmr = lmr25top * nscaler * q10(tv)
			c.lmr /= 1 + math.Exp(1.3*(tv-(tfrz+55)))
		}
		c.kp = kp25top * nscaler * q10(tv)

		par := p.PAR[iv]
		if par <= 0 { // night time
			c.vcmax, c.jmax, c.tpu, c.kp = 0, 0, 0, 0
		}
		// Soil water stress.
		c.vcmax *= l.Btran
		c.lmr *= l.Btran

		var rsz, psnz float64
		if par <= 0 {
			rsz = math.Min(rsmax0, 1/bbb*cf)
		} else {
			rsz, psnz = leafConductance(v.C3, c, par, l, cair, oair, kc, ko, cp,
				cf, gbMol, bbb, mbb, thetaCJ)
		}

		psncan += psnz * p.LAI[iv]
		gscan += p.LAI[iv] / (l.Rb + rsz)
		laican += p.LAI[iv]
	}

	if laican > 0 {
		psn = psncan / laican
		rs = laican/gscan - l.Rb
	}
	return rs, psn
}

// leafConductance solves the coupled assimilation and stomatal
// conductance of a sunlit leaf by fixed-point iteration on the
// intercellular CO2 partial pressure. It returns the stomatal
// resistance [s/m] and the gross photosynthesis [µmol CO2/m2/s].
func leafConductance(c3 bool, c layer, par float64, l Leaf, cair, oair, kc, ko, cp,
	cf, gbMol, bbb, mbb, thetaCJ float64) (rs, ag float64) {

	const maxIter = 5

	// Electron transport rate for C3 plants.
	qabs := 0.5 * (1 - fnps) * par * parToPhoton
	r1, r2 := quadratic(thetaPSII, -(qabs + c.jmax), qabs*c.jmax)
	je := math.Min(r1, r2)

	ceair := math.Min(l.Eair, l.Esat)
	rhCan := ceair / l.Esat

	var ci float64
	if c3 {
		ci = 0.7 * cair
	} else {
		ci = 0.4 * cair
	}

	var an, gsMol float64
	for niter := 1; ; niter++ {
		ciold := ci

		var ac, aj, ap float64
		if c3 {
			ac = c.vcmax * math.Max(ci-cp, 0) / (ci + kc*(1+oair/ko))
			aj = je * math.Max(ci-cp, 0) / (4*ci + 8*cp)
			ap = 3 * c.tpu
		} else {
			ac = c.vcmax
			aj = qeC4 * par * parToPhoton
			ap = c.kp * math.Max(ci, 0) / l.Pbot
		}

		// Co-limit ac and aj, then ap.
		r1, r2 = quadratic(thetaCJ, -(ac + aj), ac*aj)
		ai := math.Min(r1, r2)
		r1, r2 = quadratic(thetaIP, -(ai + ap), ai*ap)
		ag = math.Min(r1, r2)

		an = ag - c.lmr
		if an < 0 {
			gsMol = bbb
			break
		}

		// Ball-Berry conductance with an known.
		cs := math.Max(cair-1.4/gbMol*an*l.Pbot, 1.e-6)
		aquad := cs
		bquad := cs*(gbMol-bbb) - mbb*an*l.Pbot
		cquad := -gbMol * (cs*bbb + mbb*an*l.Pbot*rhCan)
		r1, r2 = quadratic(aquad, bquad, cquad)
		gsMol = math.Max(r1, r2)

		ci = cair - an*l.Pbot*(1.4*gsMol+1.6*gbMol)/(gbMol*gsMol)

		if math.Abs(ci-ciold)/ci < 1.e-6 || niter == maxIter {
			break
		}
	}

	gs := gsMol / cf
	return math.Min(1/gs, rsmax0), ag
}
