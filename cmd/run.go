/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io/ioutil"
	"log"

	"github.com/spf13/cobra"

	"github.com/notargets/goparticles/config"
	"github.com/notargets/goparticles/integrator"
	"github.com/notargets/goparticles/mesh"
	"github.com/notargets/goparticles/mesh/fakemesh"
	"github.com/notargets/goparticles/migrate"
	"github.com/notargets/goparticles/particle"
	"github.com/notargets/goparticles/property"
	"github.com/notargets/goparticles/store"
	"github.com/notargets/goparticles/world"
)

// runCmd runs a single-rank demonstration of the timestep driver over a
// small in-memory mesh: a two-cell 1D domain with one particle crossing
// the boundary between them on a constant velocity field.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a demonstration timestep loop over an in-memory mesh",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		steps, _ := cmd.Flags().GetInt("steps")
		dt, _ := cmd.Flags().GetFloat64("dt")
		runDemo(cfg, steps, dt)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("nmax-config", "c", "", "YAML config file setting NMax (default: unlimited)")
	runCmd.Flags().IntP("steps", "s", 10, "number of timesteps to advance")
	runCmd.Flags().Float64P("dt", "t", 0.5, "timestep size")
}

func loadConfig(cmd *cobra.Command) config.Config {
	path, _ := cmd.Flags().GetString("nmax-config")
	cfg := config.Config{}
	if path == "" {
		return cfg
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		log.Fatalf("run: reading config file %q: %v", path, err)
	}
	if err := cfg.Parse(data); err != nil {
		log.Fatalf("run: parsing config file %q: %v", path, err)
	}
	return cfg
}

type constantVelocity struct{ v []float64 }

func (c constantVelocity) SampleVelocity(cell mesh.Cell, unitPoints [][]float64) [][]float64 {
	out := make([][]float64, len(unitPoints))
	for i := range out {
		out[i] = c.v
	}
	return out
}

func runDemo(cfg config.Config, steps int, dt float64) {
	m := fakemesh.New(1, 0)
	m.AddCell(0, 0, fakemesh.Box{Min: []float64{0}, Max: []float64{1}}, 0, []bool{false})
	m.AddCell(0, 1, fakemesh.Box{Min: []float64{1}, Max: []float64{2}}, 0, []bool{true})

	w := world.New(store.New(), m, fakemesh.AffineMapping{}, migrate.NewComm(),
		integrator.NewEuler(), property.ScalarTracer{}, 1, cfg.NMax)
	w.AddParticle(particle.Particle{ID: 1, Loc: []float64{0.1}})

	v := constantVelocity{v: []float64{0.2}}
	fmt.Printf("running %d steps of dt=%g on a single rank\n", steps, dt)
	for i := 0; i < steps; i++ {
		w.AdvanceTimestep(dt, v, v, nil)
	}

	for _, e := range w.Store.All() {
		fmt.Printf("particle %d at %v\n", e.P.ID, e.P.Loc)
	}
}
