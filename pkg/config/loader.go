// Package config reads service configuration from the process environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load fills cfg from environment variables according to its `env` struct
// tags (with `envDefault` supplying fallbacks and `envSeparator` splitting
// list values). cfg must be a pointer to a struct.
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
