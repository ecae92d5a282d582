package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// matches $(VAR_NAME)
var envPattern = regexp.MustCompile(`\$\(([A-Za-z0-9_]+)\)`)

// replaces $(VAR) with os.Getenv(VAR)
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(m string) string {
		key := mapEnvKey(envPattern.FindStringSubmatch(m)[1])
		return os.Getenv(key)
	})
}

// Load reads a YAML file on top of the defaults.
func Load(path string) (*Config, error) {
	// read raw YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// expand $(ENV_VAR) placeholders
	expanded := expandEnvVars(string(data))

	// unmarshal into struct
	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling yaml: %w", err)
	}

	cfg.ApplyEnvironment()
	return cfg, nil
}

// ApplyEnvironment fills repository settings restic itself reads from the
// environment, so they show up in logs and error messages.
func (c *Config) ApplyEnvironment() {
	if c.Restic.Repository == "" {
		c.Restic.Repository = os.Getenv("RESTIC_REPOSITORY")
	}
	if c.Restic.PasswordCommand == "" {
		c.Restic.PasswordCommand = os.Getenv("RESTIC_PASSWORD_COMMAND")
	}
}
