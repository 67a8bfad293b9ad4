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

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/notargets/goparticles/config"
	"github.com/notargets/goparticles/integrator"
	"github.com/notargets/goparticles/mesh/fakemesh"
	"github.com/notargets/goparticles/migrate"
	"github.com/notargets/goparticles/particle"
	"github.com/notargets/goparticles/property"
	"github.com/notargets/goparticles/store"
	"github.com/notargets/goparticles/world"
)

// benchCmd runs the same demonstration loop as run, but many particles
// and many timesteps, optionally under a CPU profile.
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run the timestep loop at scale, optionally under --cpuprofile",
	Run: func(cmd *cobra.Command, args []string) {
		if on, _ := cmd.Flags().GetBool("cpuprofile"); on {
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
		}
		cfg := loadConfig(cmd)
		n, _ := cmd.Flags().GetInt("particles")
		steps, _ := cmd.Flags().GetInt("steps")
		dt, _ := cmd.Flags().GetFloat64("dt")
		benchDemo(cfg, n, steps, dt)
	},
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().StringP("nmax-config", "c", "", "YAML config file setting NMax (default: unlimited)")
	benchCmd.Flags().Bool("cpuprofile", false, "write a CPU profile of the timestep loop to cpu.pprof")
	benchCmd.Flags().IntP("particles", "p", 1000, "number of particles to track")
	benchCmd.Flags().IntP("steps", "s", 100, "number of timesteps to advance")
	benchCmd.Flags().Float64P("dt", "t", 0.01, "timestep size")
}

func benchDemo(cfg config.Config, n, steps int, dt float64) {
	m := fakemesh.New(1, 0)
	m.AddCell(0, 0, fakemesh.Box{Min: []float64{0}, Max: []float64{1}}, 0, []bool{true})

	w := world.New(store.New(), m, fakemesh.AffineMapping{}, migrate.NewComm(),
		integrator.NewEuler(), property.ScalarTracer{}, 1, cfg.NMax)
	for i := 0; i < n; i++ {
		w.AddParticle(particle.Particle{ID: particle.ID(i), Loc: []float64{0.01 * float64(i%100)}})
	}

	v := constantVelocity{v: []float64{0}}
	for i := 0; i < steps; i++ {
		w.AdvanceTimestep(dt, v, v, nil)
	}
	fmt.Printf("advanced %d particles through %d steps\n", n, steps)
}
