package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix for archivum settings.
const envPrefix = "ARCHIVUM"

// Load reads configuration from file, environment variables, and defaults.
// If configPath is non-empty it is used as the explicit config file path;
// otherwise .archivum.yaml is searched in the working directory. A missing
// config file is not an error; defaults apply.
//
// Environment variables override file keys: ARCHIVUM_BATCHSIZE,
// ARCHIVUM_SERVER_LISTEN, and so on. CLI flags override both and are applied
// by the command layer after Load returns.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	applyDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(".archivum")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("hashThreads", runtime.NumCPU())
	v.SetDefault("batchSize", DefaultBatchSize)
	v.SetDefault("followSymlinks", false)
	v.SetDefault("skipSystemDirs", true)
	v.SetDefault("excludePatterns", []string{})
	v.SetDefault("extractExif", true)
	v.SetDefault("server.listen", DefaultListen)
	v.SetDefault("server.db", DefaultDBPath)
}
