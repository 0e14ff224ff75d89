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

// Solve calculates the fluxes of e for a timestep of dt seconds.
// Lake and urban elements are not changed. Elements without exposed
// vegetation are only initialized. For vegetated elements, the stability
// iteration is run and the fluxes are finalized.
//
// The returned error is also stored in e.Err.
func (e *Element) Solve(dt float64) error {
	switch e.path() {
	case pathSkip:
		e.Err = nil
		return nil
	case pathBareGround:
		e.Err = e.InitializeFlux()
		return e.Err
	}
	if err := e.InitializeFlux(); err != nil {
		e.Err = err
		return err
	}
	e.StabilityIteration(dt)
	e.ComputeFlux(dt)
	return nil
}
