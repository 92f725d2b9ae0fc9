// Package config provides centralized configuration management using Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration values for prdloop.
type Config struct {
	AgentCommand  string `mapstructure:"agent_command" yaml:"agent_command"`
	AgentTimeout  int    `mapstructure:"agent_timeout" yaml:"agent_timeout"` // seconds
	DataDir       string `mapstructure:"data_dir" yaml:"data_dir"`
	LogLevel      string `mapstructure:"log_level" yaml:"log_level"`
	LogFile       string `mapstructure:"log_file" yaml:"log_file"`
	MaxIterations int    `mapstructure:"max_iterations" yaml:"max_iterations"`
	FailStreak    int    `mapstructure:"fail_streak" yaml:"fail_streak"`
}

// Load loads configuration with full precedence:
// CLI flags > ENV vars > project config > XDG global config > defaults
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("prdloop")

	// Defaults (agent_command has no default - it's required)
	v.SetDefault("agent_timeout", 900)
	v.SetDefault("data_dir", ".prdloop")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("max_iterations", 10)
	v.SetDefault("fail_streak", 3)

	// Setup ENV binding with PRDLOOP_ prefix
	v.SetEnvPrefix("PRDLOOP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Explicit ENV bindings for better int parsing
	for key, env := range map[string]string{
		"agent_command":  "PRDLOOP_AGENT_COMMAND",
		"agent_timeout":  "PRDLOOP_AGENT_TIMEOUT",
		"data_dir":       "PRDLOOP_DATA_DIR",
		"log_level":      "PRDLOOP_LOG_LEVEL",
		"log_file":       "PRDLOOP_LOG_FILE",
		"max_iterations": "PRDLOOP_MAX_ITERATIONS",
		"fail_streak":    "PRDLOOP_FAIL_STREAK",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s env: %w", key, err)
		}
	}

	// Load global config first (if exists)
	globalPath := GlobalPath()
	if fileExists(globalPath) {
		v.SetConfigFile(globalPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading global config: %w", err)
		}
	}

	// Merge project config on top (if exists)
	projectPath := ProjectPath()
	if fileExists(projectPath) {
		v.SetConfigFile(projectPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.AgentCommand == "" {
		return fmt.Errorf("agent_command is required (set it in prdloop.yml or PRDLOOP_AGENT_COMMAND)")
	}
	if c.AgentTimeout <= 0 {
		return fmt.Errorf("agent_timeout must be positive, got %d", c.AgentTimeout)
	}
	return nil
}

// Exists returns true if any config file exists (global or project).
func Exists() bool {
	return fileExists(GlobalPath()) || fileExists(ProjectPath())
}

// GlobalPath returns the XDG global config path.
// Returns ~/.config/prdloop/prdloop.yml or $XDG_CONFIG_HOME/prdloop/prdloop.yml.
func GlobalPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "prdloop", "prdloop.yml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "prdloop", "prdloop.yml")
}

// ProjectPath returns the project-local config path.
// Returns ./prdloop.yml in the current working directory.
func ProjectPath() string {
	return "prdloop.yml"
}

// WriteProject writes the config to the project-local location.
func WriteProject(cfg *Config) error {
	return WriteTo(ProjectPath(), cfg)
}

// WriteTo writes the config as YAML to the given path.
func WriteTo(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
