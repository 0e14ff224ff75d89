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
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"reflect"
	"regexp"
	"sort"
	"strconv"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/unit"
	"github.com/spatialmodel/canopyflux/cloud"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// fluxIndex maps the names of the described Fluxes fields to their
// positions in the struct.
var fluxIndex = func() map[string]int {
	t := reflect.TypeOf(Fluxes{})
	m := make(map[string]int)
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("desc") != "" {
			m[t.Field(i).Name] = i
		}
	}
	return m
}()

// OutputOptions returns the names of the variables that can be output,
// along with their descriptions and units.
func OutputOptions() (names []string, descriptions []string, units []string) {
	t := reflect.TypeOf(Fluxes{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		desc := f.Tag.Get("desc")
		if desc == "" {
			continue
		}
		names = append(names, f.Name)
		descriptions = append(descriptions, desc)
		units = append(units, f.Tag.Get("units"))
	}
	return
}

// fluxValue returns the value of the named output variable of e.
func (e *Element) fluxValue(name string) (float64, error) {
	i, ok := fluxIndex[name]
	if !ok {
		return math.NaN(), fmt.Errorf("canopyflux: undefined variable name '%s'", name)
	}
	return reflect.ValueOf(e.Fluxes).Field(i).Float(), nil
}

// unitDimensions maps the units used in Fluxes struct tags to their
// dimensions and the factor that converts them to SI. Amounts of
// substance are treated as dimensionless.
var unitDimensions = map[string]struct {
	dims   unit.Dimensions
	factor float64
}{
	"K":         {unit.Dimensions{unit.TemperatureDim: 1}, 1},
	"fraction":  {unit.Dimensions{}, 1},
	"percent":   {unit.Dimensions{}, 0.01},
	"kg/kg":     {unit.Dimensions{}, 1},
	"kg/m²":     {unit.Dimensions{unit.MassDim: 1, unit.LengthDim: -2}, 1},
	"kg/m²/s":   {unit.Dimensions{unit.MassDim: 1, unit.LengthDim: -2, unit.TimeDim: -1}, 1},
	"kg/m²/s/K": {unit.Dimensions{unit.MassDim: 1, unit.LengthDim: -2, unit.TimeDim: -1, unit.TemperatureDim: -1}, 1},
	"W/m²":      {unit.Dimensions{unit.MassDim: 1, unit.TimeDim: -3}, 1},
	"W/m²/K":    {unit.Dimensions{unit.MassDim: 1, unit.TimeDim: -3, unit.TemperatureDim: -1}, 1},
	"s/m":       {unit.Dimensions{unit.TimeDim: 1, unit.LengthDim: -1}, 1},
	"μmol/m²/s": {unit.Dimensions{unit.LengthDim: -2, unit.TimeDim: -1}, 1e-6},
}

// Quantity returns the value of output variable name for element i,
// converted to SI units.
func (d *Domain) Quantity(name string, i int) (*unit.Unit, error) {
	if i < 0 || i >= len(d.Elements) {
		return nil, fmt.Errorf("canopyflux: element index %d out of range [0, %d)", i, len(d.Elements))
	}
	v, err := d.Elements[i].fluxValue(name)
	if err != nil {
		return nil, err
	}
	f, _ := reflect.TypeOf(Fluxes{}).FieldByName(name)
	u, ok := unitDimensions[f.Tag.Get("units")]
	if !ok {
		return nil, fmt.Errorf("canopyflux: unknown units '%s' for variable %s", f.Tag.Get("units"), name)
	}
	return unit.New(v*u.factor, u.dims), nil
}

// Outputter is a holder for output parameters.
//
// fileName contains the path or blob URL where the output will be saved.
//
// outputVariables maps the names of the columns to be output to
// expressions that define how they should be calculated. Expressions can
// use the output variables listed by OutputOptions, other user-defined
// variables and functions.
//
// modelVariables is automatically generated based on the model variables
// that are required to calculate the requested output variables.
type Outputter struct {
	fileName        string
	outputVariables map[string]string
	modelVariables  []string
	outputFunctions map[string]govaluate.ExpressionFunction

	expressions map[string]*govaluate.EvaluableExpression
	aggregates  map[string]aggregate
}

// aggregate is a reduction of a model variable across all elements.
type aggregate struct {
	function, variable string
}

var aggregateFuncs = map[string]func([]float64) float64{
	"sum":  floats.Sum,
	"mean": func(x []float64) float64 { return stat.Mean(x, nil) },
	"max":  floats.Max,
	"min":  floats.Min,
}

var (
	aggregateRegexp = regexp.MustCompile(`\b(sum|mean|max|min)\(\s*([A-Za-z_]\w*)\s*\)`)
	nameRegexp      = regexp.MustCompile(`^[A-Za-z]\w*$`)

	// tokenRegexp matches numbers and identifiers in expressions.
	tokenRegexp = regexp.MustCompile(`[0-9.]+(?:[eE][-+]?[0-9]+)?|[A-Za-z_]\w*`)
)

// NewOutputter initializes a new Outputter holder and adds a set of default
// output functions. Default functions include:
//
// 'exp(x)' which applies the exponential function e^x.
//
// 'sum(x)', 'mean(x)', 'max(x)' and 'min(x)', which reduce an output
// variable across all elements. Their argument must be the name of an
// output variable listed by OutputOptions, e.g. 'TVeg - mean(TVeg)'.
func NewOutputter(fileName string, outputVariables map[string]string, outputFunctions map[string]govaluate.ExpressionFunction) (*Outputter, error) {
	funcs := map[string]govaluate.ExpressionFunction{
		"exp": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("canopyflux: got %d arguments for function 'exp', but needs 1", len(arg))
			}
			return math.Exp(arg[0].(float64)), nil
		},
	}
	for name := range aggregateFuncs {
		name := name
		funcs[name] = func(arg ...interface{}) (interface{}, error) {
			return nil, fmt.Errorf("canopyflux: the argument of function '%s' must be an output variable name", name)
		}
	}
	for key, val := range outputFunctions {
		funcs[key] = val
	}

	o := &Outputter{
		fileName:        fileName,
		outputVariables: make(map[string]string, len(outputVariables)),
		outputFunctions: funcs,
		expressions:     make(map[string]*govaluate.EvaluableExpression),
		aggregates:      make(map[string]aggregate),
	}
	for k, v := range outputVariables {
		o.outputVariables[k] = v
	}
	if err := o.checkForDerivatives(); err != nil {
		return nil, err
	}
	return o, nil
}

// checkForDerivatives replaces user-defined variables that appear in
// other output expressions with the expressions that define them,
// replaces reductions of model variables with placeholder parameters,
// and identifies the unique model variables that are required to
// calculate the requested output variables.
func (o *Outputter) checkForDerivatives() error {
	names := make([]string, 0, len(o.outputVariables))
	for k := range o.outputVariables {
		names = append(names, k)
	}
	sort.Strings(names)

	expanded := make(map[string]string, len(names))
	var expand func(name string, visiting map[string]bool) (string, error)
	expand = func(name string, visiting map[string]bool) (string, error) {
		if e, ok := expanded[name]; ok {
			return e, nil
		}
		if visiting[name] {
			return "", fmt.Errorf("canopyflux: output variable '%s' is defined in terms of itself", name)
		}
		visiting[name] = true
		defer delete(visiting, name)

		expr := plainNumbers(o.outputVariables[name])
		e, err := govaluate.NewEvaluableExpressionWithFunctions(expr, o.outputFunctions)
		if err != nil {
			return "", fmt.Errorf("canopyflux: output variable %s: %v", name, err)
		}
		subs := make(map[string]string)
		for _, v := range e.Vars() {
			if _, ok := o.outputVariables[v]; !ok || v == name {
				continue
			}
			sub, err := expand(v, visiting)
			if err != nil {
				return "", err
			}
			if !nameRegexp.MatchString(sub) {
				sub = "(" + sub + ")"
			}
			subs[v] = sub
		}
		expr = tokenRegexp.ReplaceAllStringFunc(expr, func(tok string) string {
			if sub, ok := subs[tok]; ok {
				return sub
			}
			return tok
		})
		expanded[name] = expr
		return expr, nil
	}

	vars := make(map[string]bool)
	placeholders := make(map[aggregate]string)
	for _, name := range names {
		expr, err := expand(name, make(map[string]bool))
		if err != nil {
			return err
		}
		expr = aggregateRegexp.ReplaceAllStringFunc(expr, func(m string) string {
			sm := aggregateRegexp.FindStringSubmatch(m)
			a := aggregate{function: sm[1], variable: sm[2]}
			p, ok := placeholders[a]
			if !ok {
				p = fmt.Sprintf("aggregate%d", len(placeholders))
				placeholders[a] = p
				o.aggregates[p] = a
			}
			vars[a.variable] = true
			return p
		})
		e, err := govaluate.NewEvaluableExpressionWithFunctions(expr, o.outputFunctions)
		if err != nil {
			return fmt.Errorf("canopyflux: output variable %s: %v", name, err)
		}
		for _, v := range e.Vars() {
			if _, ok := o.aggregates[v]; !ok {
				vars[v] = true
			}
		}
		o.expressions[name] = e
	}
	o.modelVariables = make([]string, 0, len(vars))
	for v := range vars {
		o.modelVariables = append(o.modelVariables, v)
	}
	sort.Strings(o.modelVariables)
	return nil
}

// plainNumbers rewrites numeric literals in expr in positional notation,
// which is the only form govaluate can parse, e.g. 2.5e3 becomes 2500.
func plainNumbers(expr string) string {
	return tokenRegexp.ReplaceAllStringFunc(expr, func(tok string) string {
		if c := tok[0]; c != '.' && (c < '0' || c > '9') {
			return tok
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return tok
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	})
}

// checkModelVars checks whether the model variables are available.
func checkModelVars(g ...string) error {
	for _, v := range g {
		if _, ok := fluxIndex[v]; !ok {
			return fmt.Errorf("canopyflux: undefined variable name '%s'", v)
		}
	}
	return nil
}

// checkOutputNames checks that the output variable names can be used
// as column headers.
func checkOutputNames(o map[string]string) error {
	for key := range o {
		if !nameRegexp.MatchString(key) {
			return fmt.Errorf("canopyflux: output variable name '%s' includes unsupported characters", key)
		}
	}
	return nil
}

// CheckOutputVars ensures the output variables can be calculated.
func (o *Outputter) CheckOutputVars() DomainManipulator {
	return func(d *Domain) error {
		if err := checkModelVars(o.modelVariables...); err != nil {
			return err
		}
		return checkOutputNames(o.outputVariables)
	}
}

// Results calculates the output variables for every element of d.
// Elements that failed to solve are given NaN values and are left
// out of reductions such as sum and mean.
func (o *Outputter) Results(d *Domain) (map[string][]float64, error) {
	if err := checkModelVars(o.modelVariables...); err != nil {
		return nil, err
	}
	model := make(map[string][]float64, len(o.modelVariables))
	for _, v := range o.modelVariables {
		vals := make([]float64, len(d.Elements))
		for i, e := range d.Elements {
			vals[i], _ = e.fluxValue(v)
			if e.Err != nil {
				vals[i] = math.NaN()
			}
		}
		model[v] = vals
	}

	params := make(map[string]interface{}, len(o.modelVariables)+len(o.aggregates))
	for p, a := range o.aggregates {
		var ok []float64
		for _, v := range model[a.variable] {
			if !math.IsNaN(v) {
				ok = append(ok, v)
			}
		}
		if len(ok) == 0 {
			params[p] = math.NaN()
			continue
		}
		params[p] = aggregateFuncs[a.function](ok)
	}

	r := make(map[string][]float64, len(o.expressions))
	for name, expr := range o.expressions {
		vals := make([]float64, len(d.Elements))
		for i, e := range d.Elements {
			if e.Err != nil {
				vals[i] = math.NaN()
				continue
			}
			for _, v := range o.modelVariables {
				params[v] = model[v][i]
			}
			result, err := expr.Evaluate(params)
			if err != nil {
				return nil, fmt.Errorf("canopyflux: evaluating output variable %s: %v", name, err)
			}
			f, ok := result.(float64)
			if !ok {
				return nil, fmt.Errorf("canopyflux: output variable %s evaluates to %T, not a number", name, result)
			}
			vals[i] = f
		}
		r[name] = vals
	}
	return r, nil
}

// Output returns a function that writes the output variables of every
// element to a CSV file, with one row per element. The file name may be
// a local path or a blob URL such as "gs://bucket/fluxes.csv".
func (o *Outputter) Output() DomainManipulator {
	return func(d *Domain) error {
		results, err := o.Results(d)
		if err != nil {
			return err
		}
		vars := make([]string, 0, len(results))
		for v := range results {
			vars = append(vars, v)
		}
		sort.Strings(vars)

		b := new(bytes.Buffer)
		w := csv.NewWriter(b)
		if err = w.Write(append([]string{"Element"}, vars...)); err != nil {
			return fmt.Errorf("canopyflux: writing output: %v", err)
		}
		row := make([]string, len(vars)+1)
		for i, e := range d.Elements {
			row[0] = e.Name
			if row[0] == "" {
				row[0] = strconv.Itoa(i)
			}
			for j, v := range vars {
				row[j+1] = strconv.FormatFloat(results[v][i], 'g', 8, 64)
			}
			if err = w.Write(row); err != nil {
				return fmt.Errorf("canopyflux: writing output: %v", err)
			}
		}
		w.Flush()
		if err = w.Error(); err != nil {
			return fmt.Errorf("canopyflux: writing output: %v", err)
		}

		if cloud.IsURL(o.fileName) {
			return cloud.WriteFile(context.TODO(), o.fileName, b.Bytes())
		}
		if err = os.WriteFile(o.fileName, b.Bytes(), 0644); err != nil {
			return fmt.Errorf("canopyflux: writing output: %v", err)
		}
		return nil
	}
}

// OutputVariableNames returns the sorted names of the output columns.
func (o *Outputter) OutputVariableNames() []string {
	names := make([]string, 0, len(o.outputVariables))
	for k := range o.outputVariables {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
