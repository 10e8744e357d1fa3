// Package config provides configuration loading and validation for archivum.
package config

import (
	"errors"
	"fmt"
	"runtime"
)

// Sentinel validation errors.
var (
	ErrInvalidThreads   = errors.New("hashThreads must be positive")
	ErrInvalidBatchSize = errors.New("batchSize must be positive")
	ErrInvalidListen    = errors.New("server.listen must not be empty")
	ErrInvalidDBPath    = errors.New("server.db must not be empty")
)

// Default configuration values.
const (
	DefaultBatchSize = 1000
	DefaultListen    = "127.0.0.1:8080"
	DefaultDBPath    = "archivum.db"
)

// Config holds all configuration for the archivum scanner and server.
// Precedence: CLI flags > environment > config file > defaults.
type Config struct {
	// Scanner settings.
	HashThreads     int      `mapstructure:"hashThreads"`
	BatchSize       int      `mapstructure:"batchSize"`
	FollowSymlinks  bool     `mapstructure:"followSymlinks"`
	SkipSystemDirs  bool     `mapstructure:"skipSystemDirs"`
	ExcludePatterns []string `mapstructure:"excludePatterns"`
	ExtractExif     bool     `mapstructure:"extractExif"`

	Server ServerConfig `mapstructure:"server"`
}

// ServerConfig holds catalog-server settings.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
	DB     string `mapstructure:"db"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HashThreads:    runtime.NumCPU(),
		BatchSize:      DefaultBatchSize,
		SkipSystemDirs: true,
		ExtractExif:    true,
		Server: ServerConfig{
			Listen: DefaultListen,
			DB:     DefaultDBPath,
		},
	}
}

// Validate checks the configuration for internally inconsistent values.
func (c *Config) Validate() error {
	if c.HashThreads <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidThreads, c.HashThreads)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBatchSize, c.BatchSize)
	}
	if c.Server.Listen == "" {
		return ErrInvalidListen
	}
	if c.Server.DB == "" {
		return ErrInvalidDBPath
	}
	return nil
}
