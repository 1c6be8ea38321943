package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/insightloom/internal/utils"
)

// Global configuration structure.
type Global struct {
	Depth            int     `mapstructure:"depth" yaml:"depth"`
	K                int     `mapstructure:"k" yaml:"k"`
	Aggregation      string  `mapstructure:"aggregation" yaml:"aggregation"`
	Cutoff           float64 `mapstructure:"cutoff" yaml:"cutoff"`
	OrdinalDimension string  `mapstructure:"ordinal_dimension" yaml:"ordinal_dimension"`
	Workers          int     `mapstructure:"workers" yaml:"workers"`
	OutputFormat     string  `mapstructure:"output_format" yaml:"output_format"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	ServeAddr string `mapstructure:"serve_addr" yaml:"serve_addr"`
	MaxRows   int    `mapstructure:"max_rows" yaml:"max_rows"`
}

var validFormats = []string{"text", "markdown", "md", "html", "csv", "json", "yaml"}

// Validate reports the first invalid setting.
func (c *Global) Validate() error {
	if c.Depth != 1 && c.Depth != 2 {
		return fmt.Errorf("invalid depth: %d (use 1 or 2)", c.Depth)
	}
	if c.K < 1 {
		return fmt.Errorf("invalid k: %d (must be at least 1)", c.K)
	}
	switch strings.ToLower(c.Aggregation) {
	case "sum", "count":
	default:
		return fmt.Errorf("invalid aggregation: %s (use sum or count)", c.Aggregation)
	}
	if c.Cutoff >= 1 {
		return fmt.Errorf("invalid cutoff: %v (must be below 1)", c.Cutoff)
	}
	if c.Workers < 1 {
		return fmt.Errorf("invalid workers: %d", c.Workers)
	}
	if !contains(validFormats, strings.ToLower(c.OutputFormat)) {
		return fmt.Errorf("invalid output_format: %s", c.OutputFormat)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log_level: %s (use debug, info, warn or error)", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format: %s (use text or json)", c.LogFormat)
	}
	if c.MaxRows < 0 {
		return errors.New("invalid max_rows: must not be negative")
	}
	return nil
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

// Dir returns ~/.insightloom.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".insightloom"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.insightloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. A .env file in the working
// directory is read first when present.
func Load(cfgFile string) (*Global, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("INSIGHTLOOM")
	v.AutomaticEnv()

	v.SetDefault("depth", 2)
	v.SetDefault("k", 10)
	v.SetDefault("aggregation", "sum")
	v.SetDefault("cutoff", 0.01)
	v.SetDefault("ordinal_dimension", "year")
	v.SetDefault("workers", 1)
	v.SetDefault("output_format", "text")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("serve_addr", "127.0.0.1:8080")
	v.SetDefault("max_rows", 0)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}
