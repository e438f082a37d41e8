// Package config loads rpack settings from an optional YAML file and the
// environment. Command-line flags are applied on top by the CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	envVarPrefix = "RPACK"

	// FileEnvVar names the YAML file to read before the environment.
	FileEnvVar = envVarPrefix + "_CONFIG_FILE"
)

// Config holds the settings shared by every rpack command.
type Config struct {
	Output        string `envconfig:"OUTPUT"          yaml:"output"`
	Mountpoint    string `envconfig:"MOUNTPOINT"      yaml:"mountpoint"`
	FsName        string `envconfig:"FSNAME"          yaml:"fsName"`
	Script        string `envconfig:"SCRIPT"          yaml:"script"`
	ClampReads    bool   `envconfig:"CLAMP_READS"     yaml:"clampReads"`
	SortEntries   bool   `envconfig:"SORT"            yaml:"sort"`
	UseIgnoreFile bool   `envconfig:"USE_IGNORE_FILE" yaml:"useIgnoreFile"`
	Workers       int    `envconfig:"WORKERS"         yaml:"workers"`
	LogLevel      string `envconfig:"LOG_LEVEL"       yaml:"logLevel"`
	LogFormat     string `envconfig:"LOG_FORMAT"      yaml:"logFormat"`
	LogFile       string `envconfig:"LOG_FILE"        yaml:"logFile"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Output:        "./out.blob",
		Mountpoint:    "./fusemount",
		FsName:        "rpackage",
		ClampReads:    true,
		UseIgnoreFile: true,
		Workers:       runtime.NumCPU(),
		LogLevel:      "info",
		LogFormat:     "console",
	}
}

// Load layers the YAML file named by RPACK_CONFIG_FILE (if set) and then
// RPACK_* environment variables over the defaults.
func Load() (*Config, error) {
	c := Default()

	if configFile := os.Getenv(FileEnvVar); configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := decodeYAML(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshaling config file %s: %w", configFile, err)
		}
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func decodeYAML(data []byte, c *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate reports the first required setting that is empty or out of range.
func (c *Config) Validate() error {
	if y, e := func() (string, string) {
		if c.Output == "" {
			return "output", "OUTPUT"
		}
		if c.Mountpoint == "" {
			return "mountpoint", "MOUNTPOINT"
		}
		if c.FsName == "" {
			return "fsName", "FSNAME"
		}
		return "", ""
	}(); y != "" {
		return fmt.Errorf("missing required configuration: %s / %s_%s", y, envVarPrefix, e)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}
