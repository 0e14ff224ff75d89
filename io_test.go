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
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/unit"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/canopyflux/cloud"
)

func solvedTestDomain(t *testing.T) *Domain {
	d := testDomain()
	d.RunFuncs = []DomainManipulator{
		Calculations(SolveFluxes(logrus.StandardLogger(), 0)),
		TimestepCheck(1),
	}
	if err := d.Run(); err != nil {
		t.Fatal(err)
	}
	return d
}

func TestOutputOptions(t *testing.T) {
	names, descriptions, units := OutputOptions()
	if len(names) != reflect.TypeOf(Fluxes{}).NumField() {
		t.Errorf("%d output options, want one per Fluxes field", len(names))
	}
	if len(descriptions) != len(names) || len(units) != len(names) {
		t.Fatalf("lengths %d, %d, %d", len(names), len(descriptions), len(units))
	}
	if names[0] != "TVeg" || descriptions[0] != "Leaf temperature" || units[0] != "K" {
		t.Errorf("first option %s (%s, %s)", names[0], descriptions[0], units[0])
	}
	for i, u := range units {
		if _, ok := unitDimensions[u]; !ok {
			t.Errorf("%s: unknown units %q", names[i], u)
		}
	}
}

func TestOutputter(t *testing.T) {
	d := solvedTestDomain(t)
	o, err := NewOutputter("", map[string]string{
		"TVeg":    "TVeg",
		"TC":      "TVeg - 273.15",
		"Anomaly": "TC - (mean(TVeg) - 273.15)",
		"TotTran": "sum(QflxTranVeg)",
		"LE":      "QflxEvapVeg * 2.501e6",
		"Hot":     "max(TVeg) - min(TVeg)",
		"ExpBt":   "exp(Btran)",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err = o.CheckOutputVars()(d); err != nil {
		t.Fatal(err)
	}
	want := []string{"Btran", "QflxEvapVeg", "QflxTranVeg", "TVeg"}
	if !reflect.DeepEqual(o.modelVariables, want) {
		t.Errorf("model variables %v, want %v", o.modelVariables, want)
	}
	r, err := o.Results(d)
	if err != nil {
		t.Fatal(err)
	}

	var tveg, tran []float64
	for _, e := range d.Elements {
		if e.Err == nil {
			tveg = append(tveg, e.Fluxes.TVeg)
			tran = append(tran, e.Fluxes.QflxTranVeg)
		}
	}
	var mean, sum, min, max float64
	min, max = math.Inf(1), math.Inf(-1)
	for i, v := range tveg {
		mean += v / float64(len(tveg))
		sum += tran[i]
		min = math.Min(min, v)
		max = math.Max(max, v)
	}

	for i, e := range d.Elements {
		if e.Err != nil {
			for name, v := range r {
				if !math.IsNaN(v[i]) {
					t.Errorf("%s: failed element has value %g", name, v[i])
				}
			}
			continue
		}
		if r["TVeg"][i] != e.Fluxes.TVeg {
			t.Errorf("%s: TVeg %g, want %g", e.Name, r["TVeg"][i], e.Fluxes.TVeg)
		}
		if absDifferent(r["TC"][i], e.Fluxes.TVeg-273.15, 1.e-10) {
			t.Errorf("%s: TC %g", e.Name, r["TC"][i])
		}
		if absDifferent(r["Anomaly"][i], e.Fluxes.TVeg-mean, 1.e-9) {
			t.Errorf("%s: anomaly %g, want %g", e.Name, r["Anomaly"][i], e.Fluxes.TVeg-mean)
		}
		if absDifferent(r["TotTran"][i], sum, 1.e-15) {
			t.Errorf("%s: total transpiration %g, want %g", e.Name, r["TotTran"][i], sum)
		}
		if absDifferent(r["Hot"][i], max-min, 1.e-9) {
			t.Errorf("%s: range %g, want %g", e.Name, r["Hot"][i], max-min)
		}
		if absDifferent(r["LE"][i], e.Fluxes.QflxEvapVeg*2.501e6, 1.e-9) {
			t.Errorf("%s: LE %g", e.Name, r["LE"][i])
		}
		if absDifferent(r["ExpBt"][i], math.Exp(e.Fluxes.Btran), 1.e-12) {
			t.Errorf("%s: exp(Btran) %g", e.Name, r["ExpBt"][i])
		}
	}
}

func TestOutputterCustomFunction(t *testing.T) {
	d := solvedTestDomain(t)
	o, err := NewOutputter("", map[string]string{"TF": "fahrenheit(TVeg)"},
		map[string]govaluate.ExpressionFunction{
			"fahrenheit": func(arg ...interface{}) (interface{}, error) {
				return (arg[0].(float64)-273.15)*9/5 + 32, nil
			},
		})
	if err != nil {
		t.Fatal(err)
	}
	r, err := o.Results(d)
	if err != nil {
		t.Fatal(err)
	}
	if want := (d.Elements[0].Fluxes.TVeg-273.15)*9/5 + 32; absDifferent(r["TF"][0], want, 1.e-9) {
		t.Errorf("TF = %g, want %g", r["TF"][0], want)
	}
}

func TestOutputterErrors(t *testing.T) {
	d := solvedTestDomain(t)
	if _, err := NewOutputter("", map[string]string{"A": "B + 1", "B": "A * 2"}, nil); err == nil {
		t.Error("circular definition should fail")
	}
	if _, err := NewOutputter("", map[string]string{"A": "TVeg +"}, nil); err == nil {
		t.Error("invalid expression should fail")
	}
	o, err := NewOutputter("", map[string]string{"A": "Nonexistent * 2"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err = o.CheckOutputVars()(d); err == nil || !strings.Contains(err.Error(), "Nonexistent") {
		t.Errorf("undefined variable error %v", err)
	}
	o, err = NewOutputter("", map[string]string{"bad name": "TVeg"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err = o.CheckOutputVars()(d); err == nil {
		t.Error("invalid column name should fail")
	}
	o, err = NewOutputter("", map[string]string{"A": "sum(TVeg * 2)"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = o.Results(d); err == nil {
		t.Error("reduction of an expression should fail")
	}
}

func TestPlainNumbers(t *testing.T) {
	tests := []struct{ in, want string }{
		{in: "QflxEvapVeg * 2.501e6", want: "QflxEvapVeg * 2501000"},
		{in: "TVeg*1E-3+0.5", want: "TVeg*0.001+0.5"},
		{in: "x1e5 + 2", want: "x1e5 + 2"},
		{in: "exp(-1.5e+1)", want: "exp(-15)"},
	}
	for _, test := range tests {
		if have := plainNumbers(test.in); have != test.want {
			t.Errorf("%q: have %q, want %q", test.in, have, test.want)
		}
	}
}

func TestOutput(t *testing.T) {
	d := solvedTestDomain(t)
	dir := t.TempDir()
	vars := map[string]string{"TVeg": "TVeg", "TC": "TVeg-273.15"}

	check := func(b []byte) {
		recs, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(recs[0], []string{"Element", "TC", "TVeg"}) {
			t.Errorf("header %v", recs[0])
		}
		if len(recs) != len(d.Elements)+1 {
			t.Errorf("%d rows, want %d", len(recs)-1, len(d.Elements))
		}
		if recs[1][0] != d.Elements[0].Name {
			t.Errorf("first element %s, want %s", recs[1][0], d.Elements[0].Name)
		}
	}

	local := filepath.Join(dir, "fluxes.csv")
	o, err := NewOutputter(local, vars, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err = o.Output()(d); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(local)
	if err != nil {
		t.Fatal(err)
	}
	check(b)

	blob := "file://" + filepath.ToSlash(filepath.Join(dir, "blob.csv"))
	o, err = NewOutputter(blob, vars, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err = o.Output()(d); err != nil {
		t.Fatal(err)
	}
	b, err = cloud.ReadFile(context.Background(), blob)
	if err != nil {
		t.Fatal(err)
	}
	check(b)
}

func TestQuantity(t *testing.T) {
	d := solvedTestDomain(t)
	q, err := d.Quantity("TVeg", 0)
	if err != nil {
		t.Fatal(err)
	}
	if !q.Dimensions().Matches(unit.Dimensions{unit.TemperatureDim: 1}) || q.Value() != d.Elements[0].Fluxes.TVeg {
		t.Errorf("TVeg quantity %v", q)
	}
	q, err = d.Quantity("PsnSun", 0)
	if err != nil {
		t.Fatal(err)
	}
	if absDifferent(q.Value(), d.Elements[0].Fluxes.PsnSun*1.e-6, 1.e-15) {
		t.Errorf("PsnSun quantity %v", q)
	}
	q, err = d.Quantity("EflxShVeg", 0)
	if err != nil {
		t.Fatal(err)
	}
	if !q.Dimensions().Matches(unit.Dimensions{unit.MassDim: 1, unit.TimeDim: -3}) {
		t.Errorf("sensible heat dimensions %v", q.Dimensions())
	}
	if _, err = d.Quantity("Nonexistent", 0); err == nil {
		t.Error("undefined variable should fail")
	}
	if _, err = d.Quantity("TVeg", len(d.Elements)); err == nil {
		t.Error("out of range element should fail")
	}
}

func TestTracePlot(t *testing.T) {
	e := testElement(600, 420, 0.012, 200)
	if err := e.Solve(testDt); err != nil {
		t.Fatal(err)
	}
	if err := e.TracePlot(new(bytes.Buffer)); err == nil {
		t.Error("plot without a trace should fail")
	}
	e.RecordTrace = true
	if err := e.Solve(testDt); err != nil {
		t.Fatal(err)
	}
	b := new(bytes.Buffer)
	if err := e.TracePlot(b); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(b.Bytes(), []byte("\x89PNG")) {
		t.Error("output is not a PNG image")
	}
}
