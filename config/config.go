// Package config loads the tracker's single tunable from a YAML file,
// mirroring the teacher's InputParameters2D parse/print shape.
package config

import (
	"fmt"

	"github.com/ghodss/yaml"
)

// Config is the system configuration (spec.md §6): Nmax, the per-cell
// soft density cap shared by MPI reinsertion and coarsen merging.
// Zero means unlimited.
type Config struct {
	NMax int `yaml:"NMax"`
}

// Parse populates c from YAML-encoded data.
func (c *Config) Parse(data []byte) error {
	return yaml.Unmarshal(data, c)
}

// Print writes a human-readable summary of c, in the teacher's
// one-field-per-line style.
func (c *Config) Print() {
	fmt.Printf("%8d\t\t= NMax (0 = unlimited)\n", c.NMax)
}
