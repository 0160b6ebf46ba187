package pool

import (
	"time"

	"github.com/joao-brasil/providerpool/pkg/rpcprovider"
)

// LoadBalancerConfig configures the Selector.
type LoadBalancerConfig struct {
	Strategy Strategy                  `yaml:"strategy"`
	Weights  map[rpcprovider.ID]int    `yaml:"weights"`
}

// Config carries every option from spec.md §6's configuration table.
type Config struct {
	MaxConnections       int           `yaml:"max_connections"`
	MinConnections       int           `yaml:"min_connections"`
	MaxConnectionAge     time.Duration `yaml:"max_connection_age"`
	IdleTimeout          time.Duration `yaml:"idle_timeout"`
	HealthCheckInterval  time.Duration `yaml:"health_check_interval"`
	MaxConsecutiveErrors int           `yaml:"max_consecutive_errors"`
	ConnectionTimeout    time.Duration `yaml:"connection_timeout"`

	// RetryDelay is parsed and stored but never consumed by the pool
	// engine. Reserved for a possible future reconnect backoff; see
	// spec.md §9's open question. Preserved verbatim rather than
	// dropped, per that note.
	RetryDelay time.Duration `yaml:"retry_delay"`

	ScaleUpThreshold   float64 `yaml:"scale_up_threshold"`
	ScaleDownThreshold float64 `yaml:"scale_down_threshold"`

	LoadBalancer LoadBalancerConfig `yaml:"load_balancer"`
}

// DefaultConfig returns conservative defaults, mirroring the teacher's
// applyDefaults idiom.
func DefaultConfig() Config {
	return Config{
		MaxConnections:       10,
		MinConnections:       0,
		MaxConnectionAge:     0,
		IdleTimeout:          5 * time.Minute,
		HealthCheckInterval:  15 * time.Second,
		MaxConsecutiveErrors: 3,
		ConnectionTimeout:    30 * time.Second,
		ScaleUpThreshold:     80,
		ScaleDownThreshold:   20,
		LoadBalancer: LoadBalancerConfig{
			Strategy: StrategyRoundRobin,
		},
	}
}

// applyDefaults fills in zero-valued fields, matching the teacher's
// config.applyDefaults pattern.
func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.MaxConnections == 0 {
		c.MaxConnections = d.MaxConnections
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.HealthCheckInterval == 0 {
		c.HealthCheckInterval = d.HealthCheckInterval
	}
	if c.MaxConsecutiveErrors == 0 {
		c.MaxConsecutiveErrors = d.MaxConsecutiveErrors
	}
	if c.ConnectionTimeout == 0 {
		c.ConnectionTimeout = d.ConnectionTimeout
	}
	if c.ScaleUpThreshold == 0 {
		c.ScaleUpThreshold = d.ScaleUpThreshold
	}
	if c.ScaleDownThreshold == 0 {
		c.ScaleDownThreshold = d.ScaleDownThreshold
	}
	if c.LoadBalancer.Strategy == "" {
		c.LoadBalancer.Strategy = d.LoadBalancer.Strategy
	}
}
