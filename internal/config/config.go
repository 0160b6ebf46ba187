// Package config handles loading and validating poolctl configuration
// from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joao-brasil/providerpool/internal/pool"
	"github.com/joao-brasil/providerpool/pkg/rpcprovider"
)

// ProviderConfig describes one upstream provider endpoint the pool may
// open connections against.
type ProviderConfig struct {
	ID       rpcprovider.ID `yaml:"id"`
	Endpoint string         `yaml:"endpoint"`
	Weight   int            `yaml:"weight"`
	Warmup   int            `yaml:"warmup"`
}

// ServerConfig holds the ambient ports poolctl listens on.
type ServerConfig struct {
	PoolName    string `yaml:"pool_name"`
	MetricsPort int    `yaml:"metrics_port"`
	StatusPort  int    `yaml:"status_port"`
}

// Config is the root configuration structure for poolctl.
type Config struct {
	Pool      pool.Config      `yaml:"pool"`
	Providers []ProviderConfig `yaml:"providers"`
	Server    ServerConfig     `yaml:"server"`
}

// fileConfig mirrors the YAML structure on disk.
type fileConfig struct {
	Pool      pool.Config      `yaml:"pool"`
	Providers []ProviderConfig `yaml:"providers"`
	Server    ServerConfig     `yaml:"server"`
}

// Load reads and parses the poolctl configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg := &Config{
		Pool:      file.Pool,
		Providers: file.Providers,
		Server:    file.Server,
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}
	seen := make(map[rpcprovider.ID]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.ID == "" {
			return fmt.Errorf("providers[%d].id is required", i)
		}
		if p.Endpoint == "" {
			return fmt.Errorf("providers[%d].endpoint is required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("providers[%d].id %q is duplicated", i, p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

// applyDefaults fills in defaults for poolctl's own fields. pool.Config's
// defaults are applied separately by pool.New, which already does this
// unconditionally.
func (c *Config) applyDefaults() {
	if c.Server.PoolName == "" {
		c.Server.PoolName = "default"
	}
	if c.Server.MetricsPort == 0 {
		c.Server.MetricsPort = 9090
	}
	if c.Server.StatusPort == 0 {
		c.Server.StatusPort = 8080
	}
	for i := range c.Providers {
		if c.Providers[i].Weight == 0 {
			c.Providers[i].Weight = 1
		}
	}
}

// ProviderByID returns the provider configuration for a given id.
func (c *Config) ProviderByID(id rpcprovider.ID) (*ProviderConfig, bool) {
	for i := range c.Providers {
		if c.Providers[i].ID == id {
			return &c.Providers[i], true
		}
	}
	return nil, false
}

// DescriptorDefaultTimeout is the default window used for warmup
// context deadlines when poolctl calls pool.Warmup per-provider.
const DescriptorDefaultTimeout = 30 * time.Second
