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

package canopyutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/canopyflux/cloud"
	"github.com/spf13/cast"
)

// checkOutputVars removes end lines and expands environment
// variables in the output variables.
func checkOutputVars(vars map[string]string) (map[string]string, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("there are no variables specified for output. Please fill in " +
			"the OutputVariables configuration and try again")
	}
	o := make(map[string]string, len(vars))
	for k, v := range vars {
		v = strings.Replace(v, "\r\n", " ", -1)
		v = strings.Replace(v, "\n", " ", -1)
		o[os.ExpandEnv(k)] = os.ExpandEnv(v)
	}
	return o, nil
}

// expandPath expands any environment variables in a file path.
func expandPath(p string) string { return os.ExpandEnv(p) }

// checkOutputFile makes sure that the output file is specified and its
// directory or bucket exists, and expands any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`you need to specify an output file configuration variable (for example: OutputFile="fluxes.csv")`)
	}
	f = os.ExpandEnv(f)
	if cloud.IsURL(f) {
		u, err := url.Parse(f)
		if err != nil {
			return f, err
		}
		bucket := u.Scheme + "://" + u.Host
		if u.Scheme == "file" {
			bucket = "file://" + filepath.Dir(u.Host+u.Path)
		}
		b, err := cloud.OpenBucket(context.TODO(), bucket)
		if err != nil {
			return f, fmt.Errorf("canopyflux: error when checking OutputFile location: %v", err)
		}
		b.Close()
		return f, nil
	}
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("canopyflux: the OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// readInput reads a local file or a blob.
func readInput(ctx context.Context, name string) ([]byte, error) {
	if cloud.IsURL(name) {
		return cloud.ReadFile(ctx, name)
	}
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("canopyflux: %v", err)
	}
	return b, nil
}

// writeOutput writes a local file or a blob.
func writeOutput(ctx context.Context, name string, data []byte) error {
	if cloud.IsURL(name) {
		return cloud.WriteFile(ctx, name, data)
	}
	if err := os.WriteFile(name, data, 0644); err != nil {
		return fmt.Errorf("canopyflux: %v", err)
	}
	return nil
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		return cast.ToStringMapStringE(v)
	case string:
		o := make(map[string]string)
		if err := json.NewDecoder(bytes.NewBufferString(v)).Decode(&o); err != nil {
			return nil, fmt.Errorf("canopyflux: parsing %s as a JSON object: %v", varName, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("canopyflux: invalid type for %s: %#v", varName, i)
	}
}
