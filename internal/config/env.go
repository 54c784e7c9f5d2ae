package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment variable ApplyEnv reads, for
// example BURSTSTATE_STORE_WORKERS or BURSTSTATE_PERSISTENCE_BACKEND.
const EnvPrefix = "BURSTSTATE_"

// ApplyEnv overrides fields of m with the environment variables that are
// set. Unset variables leave the current value alone.
func ApplyEnv(m *Model) error {
	return applyEnv(m, nil)
}

func applyEnv(m *Model, environment map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix, Environment: environment}
	if err := env.ParseWithOptions(m, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
