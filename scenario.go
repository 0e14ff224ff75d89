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
	"io"

	"github.com/BurntSushi/toml"
	"github.com/spatialmodel/canopyflux/internal/physconst"
)

// scenario is the file representation of a set of elements.
type scenario struct {
	Element []*Element
}

// ReadScenario reads a set of elements from a TOML document with one
// [[Element]] table per element, for example:
//
//	[[Element]]
//	Name = "grassland"
//	Unit = "soil"
//	VegType = 13
//	[Element.Forcing]
//	U = 3.0
//	T = 295.0
//	...
//
// Vegetation properties are looked up in veg. Unset potential
// temperature, observation heights, O2 and CO2 partial pressures and
// latent heat of vaporization are given default values.
func ReadScenario(r io.Reader, veg VegTable) ([]*Element, error) {
	var s scenario
	if _, err := toml.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("canopyflux: reading scenario: %v", err)
	}
	for i, e := range s.Element {
		if e.Name == "" {
			e.Name = fmt.Sprintf("element%d", i)
		}
		var err error
		if e.Veg, err = veg.Lookup(e.VegType); err != nil {
			return nil, fmt.Errorf("canopyflux: element %q: %v", e.Name, err)
		}
		e.setDefaults()
		if err := e.Validate(); err != nil {
			return nil, err
		}
	}
	return s.Element, nil
}

// setDefaults fills in inputs that are commonly omitted.
func (e *Element) setDefaults() {
	f := &e.Forcing
	if f.Th == 0 {
		f.Th = f.T
	}
	if f.HgtT == 0 {
		f.HgtT = f.HgtU
	}
	if f.HgtQ == 0 {
		f.HgtQ = f.HgtU
	}
	if f.PO2 == 0 {
		f.PO2 = 0.209 * f.Pbot
	}
	if f.PCO2 == 0 {
		f.PCO2 = 367.e-6 * f.Pbot
	}
	if e.Surface.Htvp == 0 {
		e.Surface.Htvp = physconst.HVap
	}
}

// Validate checks that the array inputs of e have consistent lengths
// and that vegetated elements have a maximum day length.
func (e *Element) Validate() error {
	n := e.nSoil()
	for name, v := range map[string][]float64{
		"Sucsat": e.Soil.Sucsat,
		"Bsw":    e.Soil.Bsw,
		"RootFr": e.Soil.RootFr,
	} {
		if len(v) != n {
			return fmt.Errorf("canopyflux: element %q: Soil.%s has %d layers, want %d", e.Name, name, len(v), n)
		}
	}
	for name, v := range map[string][]float64{
		"TSoiSno":   e.Surface.TSoiSno,
		"H2OSoiLiq": e.Surface.H2OSoiLiq,
		"H2OSoiIce": e.Surface.H2OSoiIce,
		"Dz":        e.Surface.Dz,
	} {
		if len(v) != NLevSno+n {
			return fmt.Errorf("canopyflux: element %q: Surface.%s has length %d, want %d", e.Name, name, len(v), NLevSno+n)
		}
	}
	if e.Surface.Snl < 0 || e.Surface.Snl > NLevSno {
		return fmt.Errorf("canopyflux: element %q: Surface.Snl %d out of range [0, %d]", e.Name, e.Surface.Snl, NLevSno)
	}
	if e.path() == pathVegetated && !(e.Canopy.MaxDayl > 0) {
		return fmt.Errorf("canopyflux: element %q: Canopy.MaxDayl %g must be >0 for vegetated elements", e.Name, e.Canopy.MaxDayl)
	}
	r := e.Radiation
	for name, v := range map[string][]float64{
		"TLAIZ":   r.TLAIZ,
		"ParSunZ": r.ParSunZ,
		"ParShaZ": r.ParShaZ,
		"LAISunZ": r.LAISunZ,
		"LAIShaZ": r.LAIShaZ,
	} {
		if len(v) < r.NRad {
			return fmt.Errorf("canopyflux: element %q: Radiation.%s has %d layers, want at least %d", e.Name, name, len(v), r.NRad)
		}
	}
	return nil
}
