// Package config handles configuration loading from TOML files and environment variables.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	Display   DisplayConfig             `toml:"display"`
	Providers map[string]ProviderConfig `toml:"providers"`
}

// DisplayConfig holds the transcript display settings. Each flag maps to a
// toggle in the UI; the file value is only the starting state.
type DisplayConfig struct {
	ShowToolCalls  bool `toml:"show_tool_calls"`
	ShowReasoning  bool `toml:"show_reasoning"`
	ShowTimestamps bool `toml:"show_timestamps"`
}

// ProviderConfig holds LLM provider settings.
type ProviderConfig struct {
	Endpoint    string  `toml:"endpoint"`
	Model       string  `toml:"model"`
	APIKeyEnv   string  `toml:"api_key_env"`
	Temperature float64 `toml:"temperature"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Display: DisplayConfig{
			ShowToolCalls:  true,
			ShowReasoning:  true,
			ShowTimestamps: false,
		},
		Providers: map[string]ProviderConfig{
			"openai": {
				Endpoint:    "https://api.openai.com/v1",
				Model:       "gpt-4o",
				APIKeyEnv:   "OPENAI_API_KEY",
				Temperature: 0.7,
			},
			"local": {
				Endpoint:    "http://localhost:11434/v1",
				Model:       "llama3",
				Temperature: 0.7,
			},
		},
	}
}

// Load reads configuration from a TOML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Load from file if it exists
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, err
			}
		}
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LUMI_SHOW_TOOL_CALLS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Display.ShowToolCalls = b
		}
	}

	if v := os.Getenv("LUMI_SHOW_REASONING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Display.ShowReasoning = b
		}
	}

	if v := os.Getenv("LUMI_SHOW_TIMESTAMPS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Display.ShowTimestamps = b
		}
	}

	for _, name := range []string{"openai", "local"} {
		prefix := "LUMI_" + envName(name)
		p, ok := cfg.Providers[name]
		if !ok {
			continue
		}
		if v := os.Getenv(prefix + "_ENDPOINT"); v != "" {
			p.Endpoint = v
		}
		if v := os.Getenv(prefix + "_MODEL"); v != "" {
			p.Model = v
		}
		if v := os.Getenv(prefix + "_TEMPERATURE"); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				p.Temperature = f
			}
		}
		cfg.Providers[name] = p
	}
}

func envName(provider string) string {
	out := make([]byte, 0, len(provider))
	for i := 0; i < len(provider); i++ {
		c := provider[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}

// DataDir returns the path to the lumi data directory (~/.lumi).
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".lumi"), nil
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
