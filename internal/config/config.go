// Copyright 2025 Blink Labs Software
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

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blinklabs-io/vaultguard/strategy"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "vaultguard.config"

const (
	DefaultBlobPlugin      = "badger"
	DefaultMetadataPlugin  = "sqlite"
	DefaultShutdownTimeout = "30s"
	// EnvPrefix is prepended to every environment variable name
	EnvPrefix = "vaultguard"
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type OverrideConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Owner          string `yaml:"owner"`
	WeightSource   string `yaml:"weightSource"   split_words:"true"`
	VotesThreshold uint64 `yaml:"votesThreshold" split_words:"true"`
	RoundPeriod    uint64 `yaml:"roundPeriod"    split_words:"true"`
	HaltDuration   uint64 `yaml:"haltDuration"   split_words:"true"`
}

type LinearConfig struct {
	Enabled      bool   `yaml:"enabled"`
	VotingPeriod uint64 `yaml:"votingPeriod" split_words:"true"`
	Quorum       uint64 `yaml:"quorum"`
	Basis        uint64 `yaml:"basis"`
}

type Config struct {
	DatabasePath    string         `yaml:"databasePath"    split_words:"true"`
	BlobPlugin      string         `yaml:"blobPlugin"      split_words:"true"`
	MetadataPlugin  string         `yaml:"metadataPlugin"  split_words:"true"`
	MetadataDSN     string         `yaml:"metadataDsn"     envconfig:"METADATA_DSN"`
	BindAddr        string         `yaml:"bindAddr"        split_words:"true"`
	Owner           string         `yaml:"owner"`
	Strategy        string         `yaml:"strategy"`
	ShutdownTimeout string         `yaml:"shutdownTimeout" split_words:"true"`
	Proposers       []string       `yaml:"proposers"`
	Linear          LinearConfig   `yaml:"linear"`
	Veto            OverrideConfig `yaml:"veto"`
	Freeze          OverrideConfig `yaml:"freeze"`
	TimelockPeriod  uint64         `yaml:"timelockPeriod"  split_words:"true"`
	ExecutionPeriod uint64         `yaml:"executionPeriod" split_words:"true"`
	ProposerWeight  uint64         `yaml:"proposerWeight"  split_words:"true"`
	MetricsPort     uint           `yaml:"metricsPort"     split_words:"true"`
	Tracing         bool           `yaml:"tracing"`
	TracingStdout   bool           `yaml:"tracingStdout"   split_words:"true"`
}

func defaultConfig() *Config {
	return &Config{
		DatabasePath:    ".vaultguard",
		BlobPlugin:      DefaultBlobPlugin,
		MetadataPlugin:  DefaultMetadataPlugin,
		BindAddr:        "0.0.0.0",
		MetricsPort:     12799,
		Strategy:        strategy.ManualName,
		TimelockPeriod:  172800,
		ExecutionPeriod: 259200,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

var globalConfig = defaultConfig()

// LoadConfig overlays the config file, when one is found, and then the
// environment onto the defaults
func LoadConfig(configFile string) (*Config, error) {
	if configFile == "" {
		// Check for config file in this path: ~/.vaultguard/vaultguard.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".vaultguard", "vaultguard.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}
		if configFile == "" {
			systemPath := "/etc/vaultguard/vaultguard.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, globalConfig); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if err := envconfig.Process(EnvPrefix, globalConfig); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := globalConfig.Validate(); err != nil {
		return nil, err
	}
	return globalConfig, nil
}

func GetConfig() *Config {
	return globalConfig
}

// Validate checks values that would otherwise only fail once the node starts
func (c *Config) Validate() error {
	if c.Owner == "" {
		return errors.New("owner must be set")
	}
	if (c.MetadataPlugin == "postgres" || c.MetadataPlugin == "mysql") && c.MetadataDSN == "" {
		return fmt.Errorf("metadataDsn must be set for the %s metadata plugin", c.MetadataPlugin)
	}
	switch c.Strategy {
	case strategy.ManualName:
	case strategy.LinearName:
		if !c.Linear.Enabled {
			return errors.New("strategy is linear but the linear strategy is not enabled")
		}
	default:
		return fmt.Errorf("unknown strategy: %q", c.Strategy)
	}
	if c.Linear.Enabled {
		if c.Linear.VotingPeriod == 0 {
			return errors.New("linear.votingPeriod must be non-zero")
		}
		if c.Linear.Basis >= strategy.BasisDenominator {
			return fmt.Errorf("linear.basis must be below %d", strategy.BasisDenominator)
		}
	}
	for name, ovr := range map[string]OverrideConfig{"veto": c.Veto, "freeze": c.Freeze} {
		if !ovr.Enabled {
			continue
		}
		if ovr.VotesThreshold == 0 {
			return fmt.Errorf("%s.votesThreshold must be non-zero", name)
		}
		if ovr.RoundPeriod == 0 {
			return fmt.Errorf("%s.roundPeriod must be non-zero", name)
		}
	}
	if _, err := c.ShutdownTimeoutDuration(); err != nil {
		return err
	}
	return nil
}

func (c *Config) ShutdownTimeoutDuration() (time.Duration, error) {
	if c.ShutdownTimeout == "" {
		return 30 * time.Second, nil
	}
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid shutdown timeout: %w", err)
	}
	return d, nil
}
