// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads bridge configuration from a YAML file with
// environment-variable overrides for the credentials and endpoint.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables overriding file values.
const (
	EnvPublicKey = "TRACEBRIDGE_PUBLIC_KEY"
	EnvSecretKey = "TRACEBRIDGE_SECRET_KEY"
	EnvEndpoint  = "TRACEBRIDGE_ENDPOINT"
)

// Config is the bridge configuration.
type Config struct {
	// PublicKey is the collector project public key. Required.
	PublicKey string `yaml:"public_key"`

	// SecretKey is the collector project secret key. Required.
	SecretKey string `yaml:"secret_key"`

	// Endpoint is the collector base URL. Empty selects the public
	// cloud endpoint.
	Endpoint string `yaml:"endpoint"`

	// PropagateErrors surfaces transport failures to callers instead
	// of logging and swallowing them.
	PropagateErrors bool `yaml:"propagate_errors"`

	// Scopes are glob patterns selecting the instrumentation scopes
	// to forward. Empty selects the framework defaults.
	Scopes []string `yaml:"scopes"`

	// QueueSize bounds the listener work queue. Zero selects the
	// default.
	QueueSize int `yaml:"queue_size"`

	// Timeout is the per-request timeout for collector calls.
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Timeout: 30 * time.Second,
	}
}

// Load reads the configuration file at path (when it exists),
// applies environment overrides, and validates the result. An empty
// path skips the file and uses environment values alone.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// Fall through to env-only configuration.
		case err != nil:
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvPublicKey); v != "" {
		c.PublicKey = v
	}
	if v := os.Getenv(EnvSecretKey); v != "" {
		c.SecretKey = v
	}
	if v := os.Getenv(EnvEndpoint); v != "" {
		c.Endpoint = v
	}
}

// Validate checks for required fields. Missing credentials are fatal
// here rather than at first use.
func (c *Config) Validate() error {
	if c.PublicKey == "" {
		return fmt.Errorf("public key is required (set public_key or %s)", EnvPublicKey)
	}
	if c.SecretKey == "" {
		return fmt.Errorf("secret key is required (set secret_key or %s)", EnvSecretKey)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("queue_size must be >= 0, got %d", c.QueueSize)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %v", c.Timeout)
	}
	return nil
}
