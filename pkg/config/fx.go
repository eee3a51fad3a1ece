package config

import (
	"os"

	"github.com/pseudomuto/strata/pkg/consts"
	"go.uber.org/fx"
)

var Module = fx.Module("config", fx.Provide(
	// Loads the configuration from $STRATA_CONFIG or strata.yaml. Returns nil
	// if neither exists, allowing commands that don't require config (like
	// init and help) to function properly.
	func() (*Config, error) {
		path := os.Getenv(consts.ConfigEnvVar)
		if path == "" {
			path = consts.ConfigFile
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, nil
		}

		return LoadConfigFile(path)
	},
))
