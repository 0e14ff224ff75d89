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

// Package canopyutil contains the command-line interface for the canopy
// flux solver.
package canopyutil

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/canopyflux"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

// Log receives the messages from the commands.
var Log logrus.FieldLogger = logrus.StandardLogger()

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to canopyflux.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Scenario",
			usage: `
              Scenario is the path to the TOML file describing the land surface
              elements to be solved. It can be a local path or a blob location
              such as gs://bucket/scenario.toml.`,
			shorthand:  "s",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), traceCmd.Flags()},
		},
		{
			name: "VegParams",
			usage: `
              VegParams is the path to an optional TOML file that overrides the
              properties of the default vegetation types.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), traceCmd.Flags()},
		},
		{
			name: "Timestep",
			usage: `
              Timestep is the length of the model timestep in seconds.`,
			defaultVal: 1800.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), traceCmd.Flags()},
		},
		{
			name: "NumTimesteps",
			usage: `
              NumTimesteps is the number of timesteps to run. Only the canopy
              water changes between timesteps.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the CSV file where the results should
              be written. It can be a local path or a blob location such as
              s3://bucket/fluxes.csv.`,
			shorthand:  "o",
			defaultVal: "fluxes.csv",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputVariables",
			usage: `
              OutputVariables specifies which output variables to include in the
              output file, in the format {"column_name":"expression",...}.
              Expressions can contain the variables listed by the 'outputs'
              command, other output variables and the functions exp, sum, mean,
              max and min.`,
			defaultVal: map[string]string{
				"TVeg":        "TVeg",
				"EflxShVeg":   "EflxShVeg",
				"QflxTranVeg": "QflxTranVeg",
				"QflxEvapVeg": "QflxEvapVeg",
				"H2OCan":      "H2OCan",
			},
			flagsets: []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "EnergyBalanceWarn",
			usage: `
              EnergyBalanceWarn is the magnitude of the leaf energy balance
              residual in W/m² above which a warning is logged. Zero disables
              the warnings.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "element",
			usage: `
              element is the name of the element whose stability iteration
              should be plotted.`,
			shorthand:  "e",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{traceCmd.Flags()},
		},
		{
			name: "TraceFile",
			usage: `
              TraceFile is the path where the PNG image of the stability
              iteration should be written.`,
			defaultVal: "trace.png",
			flagsets:   []*pflag.FlagSet{traceCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("CANOPYFLUX")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			case map[string]string:
				b := bytes.NewBuffer(nil)
				json.NewEncoder(b).Encode(v)
				set.StringP(option.name, option.shorthand, b.String(), option.usage)
			default:
				panic("invalid argument type")
			}
		}
		Cfg.BindPFlag(option.name, option.flagsets[0].Lookup(option.name))
	}

	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(traceCmd)
	Root.AddCommand(outputsCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("canopyflux: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "canopyflux",
	Short: "A vegetation canopy energy and water flux solver.",
	Long: `canopyflux calculates leaf temperature and the sensible heat, latent heat
and transpiration fluxes of vegetated land surface elements.
Use the subcommands specified below to access the model functionality.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'CANOPYFLUX_var' where 'var' is the
name of the variable to be set. File paths are additionally allowed to contain
environment variables within them.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of canopyflux.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("canopyflux v%s\n", canopyflux.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Solve the fluxes of a scenario.",
	Long: `run solves the canopy fluxes of every element in the scenario for
NumTimesteps timesteps and writes the OutputVariables of the last
timestep to OutputFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFile, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		outputVars, err := GetStringMapString("OutputVariables", Cfg)
		if err != nil {
			return err
		}
		outputVars, err = checkOutputVars(outputVars)
		if err != nil {
			return err
		}
		_, err = Run(
			cmd.Context(),
			Log,
			expandPath(Cfg.GetString("Scenario")),
			expandPath(Cfg.GetString("VegParams")),
			outputFile,
			outputVars,
			Cfg.GetFloat64("Timestep"),
			Cfg.GetInt("NumTimesteps"),
			Cfg.GetFloat64("EnergyBalanceWarn"),
		)
		return err
	},
	DisableAutoGenTag: true,
}

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Plot the stability iteration of an element.",
	Long: `trace solves a single element of the scenario, recording the leaf
temperature and Monin-Obukhov length after each stability iteration, and
writes a plot of them to TraceFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := Trace(
			cmd.Context(),
			Log,
			expandPath(Cfg.GetString("Scenario")),
			expandPath(Cfg.GetString("VegParams")),
			Cfg.GetString("element"),
			expandPath(Cfg.GetString("TraceFile")),
			Cfg.GetFloat64("Timestep"),
		)
		return err
	},
	DisableAutoGenTag: true,
}

var outputsCmd = &cobra.Command{
	Use:   "outputs",
	Short: "List the available output variables.",
	Long: `outputs lists the names, descriptions and units of the variables that
can be used in OutputVariables expressions.`,
	Run: func(cmd *cobra.Command, args []string) {
		names, descriptions, units := canopyflux.OutputOptions()
		for i, n := range names {
			cmd.Printf("%-22s %s [%s]\n", n, descriptions[i], units[i])
		}
	},
	DisableAutoGenTag: true,
}
