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
	"errors"
	"fmt"
)

// ErrForcingBelowCanopy is matched by errors returned when the wind
// observation height is below the displacement height of the canopy.
var ErrForcingBelowCanopy = errors.New("forcing height is below the canopy")

// ForcingHeightError reports an element whose wind observation height is
// below its displacement height.
type ForcingHeightError struct {
	Element string
	HgtU    float64 // wind observation height [m]
	Displa  float64 // displacement height [m]
}

func (e *ForcingHeightError) Error() string {
	return fmt.Sprintf("canopyflux: element %q: forcing height %g m is below displacement height %g m",
		e.Element, e.HgtU, e.Displa)
}

// Unwrap allows errors.Is to match ErrForcingBelowCanopy.
func (e *ForcingHeightError) Unwrap() error { return ErrForcingBelowCanopy }
