package config

import (
	"github.com/dmitrijs2005/casevault/internal/flagx"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "CASEVAULT"

// parseEnv overlays CASEVAULT_* environment variables. A dotenv file given
// with -env-file is loaded first; variables already set in the process
// environment win over the file. Unset variables leave the current value.
func parseEnv(config *Config) {
	if envFile := flagx.EnvFileFlags(); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			panic(err)
		}
	}

	if err := envconfig.Process(envPrefix, config); err != nil {
		panic(err)
	}
}
