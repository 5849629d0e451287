// Package config resolves the deployment configuration for the sonic-infra
// CDK app from the process environment, an optional .env file, and CDK
// context parameters.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Deployment topologies for the API stack.
const (
	DeploymentTypeECS = "ecs"
	DeploymentTypeEC2 = "ec2"
)

// Config is the resolved deployment environment. It is built once in main
// and threaded through every stack constructor; nothing below main reads
// the process environment.
type Config struct {
	Account         string `env:"CDK_DEFAULT_ACCOUNT"`
	Region          string `env:"CDK_DEFAULT_REGION" envDefault:"us-east-1"`
	DeploymentType  string `env:"SONIC_DEPLOYMENT_TYPE" envDefault:"ecs"`
	NovaTableName   string `env:"SONIC_NOVA_TABLE_NAME" envDefault:"SonicNovaTranscripts"`
	DailyTableName  string `env:"SONIC_DAILY_TABLE_NAME" envDefault:"SonicDailyTranscripts"`
	CreateNewTables bool   `env:"SONIC_CREATE_NEW_TABLES" envDefault:"true"`
	DNSConfigPath   string `env:"SONIC_DNS_CONFIG" envDefault:"config/dns.json"`
	LogLevel        string `env:"SONIC_LOG_LEVEL" envDefault:"info"`

	// DNS is populated by LoadDNS; nil means HTTP-only deployment.
	DNS *DNSConfig
}

// Load resolves the configuration from the environment. A .env file in the
// working directory is merged in first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate re-checks the configuration, for callers that mutate it after
// Load (the CDK context overrides in main).
func (c *Config) Validate() error { return validate(c) }

func validate(cfg *Config) error {
	switch cfg.DeploymentType {
	case DeploymentTypeECS, DeploymentTypeEC2:
	default:
		return fmt.Errorf("unsupported deployment type %q (want %q or %q)",
			cfg.DeploymentType, DeploymentTypeECS, DeploymentTypeEC2)
	}
	if cfg.NovaTableName == "" {
		return fmt.Errorf("nova table name is required")
	}
	if cfg.DailyTableName == "" {
		return fmt.Errorf("daily table name is required")
	}
	return nil
}

// HTTPS reports whether the deployment carries a custom domain and
// certificates. All HTTPS wiring in the stacks branches on this.
func (c *Config) HTTPS() bool {
	return c.DNS != nil
}
