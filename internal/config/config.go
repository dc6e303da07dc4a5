// Package config loads the service configuration from a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server       Server       `toml:"server"`
	Log          Log          `toml:"log"`
	LLM          LLM          `toml:"llm"`
	Agent        Agent        `toml:"agent"`
	Capabilities Capabilities `toml:"capabilities"`
	Selection    Selection    `toml:"selection"`
}

type Server struct {
	Addr            string        `toml:"addr"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

type Log struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

type LLM struct {
	Model string `toml:"model"`
	// TokenEnv names the environment variable holding the API token.
	TokenEnv string `toml:"token_env"`
	BaseURL  string `toml:"base_url"`
}

type Agent struct {
	MaxIterations int           `toml:"max_iterations"`
	OracleTimeout time.Duration `toml:"oracle_timeout"`
	// MaxSteps bounds the Starlark steps of one routine, zero for no bound.
	MaxSteps      uint64        `toml:"max_steps"`
	StatusTimeout time.Duration `toml:"status_timeout"`
}

type Capabilities struct {
	// Catalog is an optional YAML file extending the built-in capabilities.
	Catalog      string        `toml:"catalog"`
	HTTPTimeout  time.Duration `toml:"http_timeout"`
	HTTPMaxBytes int           `toml:"http_max_bytes"`
}

type Selection struct {
	// Tools is the YAML tool catalog of chat sessions.
	Tools string `toml:"tools"`
}

func New() Config {
	return Config{
		Server: Server{Addr: ":8080", ShutdownTimeout: 15 * time.Second},
		Log:    Log{Level: "info", Pretty: true},
		LLM:    LLM{Model: "gpt-4o-mini", TokenEnv: "OPENAI_API_KEY"},
		Agent: Agent{
			MaxIterations: 2,
			OracleTimeout: 2 * time.Minute,
			MaxSteps:      10_000_000,
			StatusTimeout: 5 * time.Minute,
		},
		Capabilities: Capabilities{HTTPTimeout: 30 * time.Second, HTTPMaxBytes: 1 << 20},
		Selection:    Selection{Tools: "configs/tools.yaml"},
	}
}

// Load reads path over the defaults. A missing file leaves the defaults.
func Load(path string) (Config, error) {
	cfg := New()
	if path == "" {
		return cfg, nil
	}
	_, err := toml.DecodeFile(path, &cfg)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Agent.MaxIterations < 1 {
		return fmt.Errorf("agent.max_iterations must be at least 1, got %d", c.Agent.MaxIterations)
	}
	if c.Capabilities.HTTPMaxBytes < 1 {
		return fmt.Errorf("capabilities.http_max_bytes must be positive, got %d", c.Capabilities.HTTPMaxBytes)
	}
	return nil
}
