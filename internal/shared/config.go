package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed source.example.toml
var exampleSourceConf []byte

//go:embed target.example.toml
var exampleTargetConf []byte

// StoreConfig represents one store connection document loaded from a TOML file.
// A migration run takes two of these: one for the source store being read and
// one for the target store being written.
type StoreConfig struct {
	Database DatabaseConfig `toml:"database"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver       string `toml:"driver"`
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`

	// Streaming reports whether the backend supports server-side row
	// streaming. When false the extraction driver materializes the full
	// eligible user set before iterating.
	Streaming bool `toml:"streaming"`
}

// LoadStoreConfig reads and parses a TOML store configuration file from the specified path.
func LoadStoreConfig(path string) (*StoreConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config StoreConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if config.Database.Driver == "" {
		config.Database.Driver = "sqlite3"
	}
	if config.Database.Path == "" {
		return nil, fmt.Errorf("%w: database.path is required in %s", ErrInvalidConfig, path)
	}

	return &config, nil
}

// DefaultSourceConfig returns a StoreConfig parsed from the embedded source example.
func DefaultSourceConfig() *StoreConfig {
	return mustParse(exampleSourceConf)
}

// DefaultTargetConfig returns a StoreConfig parsed from the embedded target example.
func DefaultTargetConfig() *StoreConfig {
	return mustParse(exampleTargetConf)
}

func mustParse(data []byte) *StoreConfig {
	var config StoreConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateSourceConfigFile creates a source store config file at the specified
// path using the embedded example.
func CreateSourceConfigFile(path string) error {
	return createConfigFile(path, exampleSourceConf)
}

// CreateTargetConfigFile creates a target store config file at the specified
// path using the embedded example.
func CreateTargetConfigFile(path string) error {
	return createConfigFile(path, exampleTargetConf)
}

func createConfigFile(path string, content []byte) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
