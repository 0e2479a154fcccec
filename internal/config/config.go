package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/daimatz/jdex/internal/logger"
)

type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

var validColorModes = map[ColorMode]bool{
	ColorAuto:   true,
	ColorAlways: true,
	ColorNever:  true,
}

type Config struct {
	LogLevel string `json:"log_level,omitempty"`
	// VerifyChecksum rejects dex files whose Adler-32 checksum does not match.
	VerifyChecksum bool `json:"verify_checksum"`
	// VerifySignature also checks the SHA-1 signature. Many real-world
	// files carry stale signatures, so it is off unless requested.
	VerifySignature bool      `json:"verify_signature"`
	Lenient         bool      `json:"lenient,omitempty"`
	Color           ColorMode `json:"color,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:        "info",
		VerifyChecksum:  true,
		VerifySignature: false,
		Lenient:         false,
		Color:           ColorAuto,
	}
}

func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(home, ".jdex", "config.json"), nil
}

// Load builds the effective configuration: defaults, then the JSON file in
// the user's home directory, then JDEX_* environment variables.
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom is Load with an explicit config file path. A missing file is not
// an error.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.LogLevel = getEnv("JDEX_LOG_LEVEL", c.LogLevel)
	c.Color = ColorMode(getEnv("JDEX_COLOR", string(c.Color)))
	c.VerifyChecksum = getBoolEnv("JDEX_VERIFY_CHECKSUM", c.VerifyChecksum)
	c.VerifySignature = getBoolEnv("JDEX_VERIFY_SIGNATURE", c.VerifySignature)
	c.Lenient = getBoolEnv("JDEX_LENIENT", c.Lenient)
}

func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !validColorModes[c.Color] {
		return fmt.Errorf("invalid config: color must be one of auto, always, never; got %q", c.Color)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}
