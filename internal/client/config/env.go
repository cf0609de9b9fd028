package config

import "github.com/kelseyhightower/envconfig"

// parseEnv overlays cfg with CASEVAULT_* variables. Unset variables keep
// the current value; malformed ones panic.
func parseEnv(cfg *Config) {
	if err := envconfig.Process("CASEVAULT", cfg); err != nil {
		panic(err)
	}
}
