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
	"sort"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/spatialmodel/canopyflux/science/photosynthesis"
)

// Vegetation types that receive the soybean water stress adjustment.
const (
	nSoybean      = 23
	nSoybeanIrrig = 24
)

// VegProperties holds the parameters of a vegetation type.
type VegProperties struct {
	Name       string
	DLeaf      float64 // characteristic leaf dimension [m]
	C3         bool    // true for C3 photosynthesis, false for C4
	Mbbopt     float64 // Ball-Berry slope, unstressed
	Bbbopt     float64 // Ball-Berry minimum leaf conductance [µmol H2O/m²/s]
	Vcmax25Top float64 // canopy-top Vcmax at 25 °C [µmol CO2/m²/s]
	Smpso      float64 // soil water potential at full stomatal opening [mm]
	Smpsc      float64 // soil water potential at full stomatal closure [mm]
}

func (v VegProperties) photosynthesis() photosynthesis.Vegetation {
	return photosynthesis.Vegetation{
		C3:         v.C3,
		Vcmax25Top: v.Vcmax25Top,
		Mbbopt:     v.Mbbopt,
		Bbbopt:     v.Bbbopt,
	}
}

// VegTable holds vegetation properties indexed by vegetation type.
type VegTable []VegProperties

func c3(name string, vcmax, smpso, smpsc float64) VegProperties {
	return VegProperties{Name: name, DLeaf: 0.04, C3: true, Mbbopt: 9, Bbbopt: 10000,
		Vcmax25Top: vcmax, Smpso: smpso, Smpsc: smpsc}
}

func c4(name string, vcmax, smpso, smpsc float64) VegProperties {
	return VegProperties{Name: name, DLeaf: 0.04, C3: false, Mbbopt: 4, Bbbopt: 40000,
		Vcmax25Top: vcmax, Smpso: smpso, Smpsc: smpsc}
}

// DefaultVegTable returns properties for the 25 standard plant
// functional types.
func DefaultVegTable() VegTable {
	return VegTable{
		c3("not_vegetated", 0, -66000, -255000),
		c3("needleleaf_evergreen_temperate_tree", 51, -66000, -255000),
		c3("needleleaf_evergreen_boreal_tree", 43, -66000, -255000),
		c3("needleleaf_deciduous_boreal_tree", 43, -66000, -255000),
		c3("broadleaf_evergreen_tropical_tree", 61, -66000, -224000),
		c3("broadleaf_evergreen_temperate_tree", 58, -66000, -224000),
		c3("broadleaf_deciduous_tropical_tree", 59, -35000, -224000),
		c3("broadleaf_deciduous_temperate_tree", 58, -35000, -224000),
		c3("broadleaf_deciduous_boreal_tree", 58, -35000, -224000),
		c3("broadleaf_evergreen_shrub", 62, -83000, -428000),
		c3("broadleaf_deciduous_temperate_shrub", 54, -83000, -428000),
		c3("broadleaf_deciduous_boreal_shrub", 54, -83000, -428000),
		c3("c3_arctic_grass", 78, -74000, -275000),
		c3("c3_non-arctic_grass", 78, -74000, -275000),
		c4("c4_grass", 51, -74000, -275000),
		c3("c3_crop", 100, -74000, -275000),
		c3("c3_irrigated", 100, -74000, -275000),
		c4("corn", 100, -74000, -275000),
		c4("irrigated_corn", 100, -74000, -275000),
		c3("spring_temperate_cereal", 100, -74000, -275000),
		c3("irrigated_spring_temperate_cereal", 100, -74000, -275000),
		c3("winter_temperate_cereal", 100, -74000, -275000),
		c3("irrigated_winter_temperate_cereal", 100, -74000, -275000),
		c3("soybean", 100, -74000, -275000),
		c3("irrigated_soybean", 100, -74000, -275000),
	}
}

// Lookup returns the properties of vegetation type i.
func (t VegTable) Lookup(i int) (VegProperties, error) {
	if i < 0 || i >= len(t) {
		return VegProperties{}, fmt.Errorf("canopyflux: vegetation type %d out of range [0, %d)", i, len(t))
	}
	return t[i], nil
}

// ReadVegTable reads vegetation properties from a TOML document and
// applies them on top of the default table. Each vegetation type is a
// table keyed by its index, and only the fields it lists are changed:
//
//	[Veg.13]
//	Vcmax25Top = 80.0
//	Smpso = -70000.0
func ReadVegTable(r io.Reader) (VegTable, error) {
	var f struct {
		Veg map[string]toml.Primitive
	}
	md, err := toml.NewDecoder(r).Decode(&f)
	if err != nil {
		return nil, fmt.Errorf("canopyflux: reading vegetation table: %v", err)
	}
	t := DefaultVegTable()
	keys := make([]string, 0, len(f.Veg))
	for k := range f.Veg {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 {
			return nil, fmt.Errorf("canopyflux: invalid vegetation type %q", k)
		}
		for i >= len(t) {
			t = append(t, VegProperties{})
		}
		v := t[i]
		if err := md.PrimitiveDecode(f.Veg[k], &v); err != nil {
			return nil, fmt.Errorf("canopyflux: vegetation type %d: %v", i, err)
		}
		t[i] = v
	}
	return t, nil
}
