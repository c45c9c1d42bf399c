package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type ProviderConfig struct {
	APIKey string `yaml:"api_key"`
}

// Duration is a time.Duration that reads "10s"-style values from YAML.
// Plain integers are accepted as nanoseconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Thresholds are the tunable risk constants. They are configuration, not
// hard-coded business truth; the defaults match what the scoring engine
// was calibrated with.
type Thresholds struct {
	ActionScore   float64 `yaml:"action_score"`   // create an action item above this asset score
	CriticalScore float64 `yaml:"critical_score"` // action priority CRITICAL above this
	HighScore     float64 `yaml:"high_score"`     // action priority HIGH above this
}

// Caps bound the work a single session may generate.
type Caps struct {
	Endpoints        int `yaml:"endpoints"`          // endpoints kept after recon
	TestedEndpoints  int `yaml:"tested_endpoints"`   // endpoints probed by the attack stage
	Forms            int `yaml:"forms"`              // forms probed by the attack stage
	PayloadsPerCheck int `yaml:"payloads_per_check"` // payloads issued per attack category
}

type StoreConfig struct {
	Backend string `yaml:"backend"` // memory or arango
}

type Config struct {
	SelectedProvider string                    `yaml:"selected_provider"`
	SelectedModel    string                    `yaml:"selected_model"`
	Providers        map[string]ProviderConfig `yaml:"providers"`
	Crawler          string                    `yaml:"crawler"` // http or chrome
	ShodanAPIKey     string                    `yaml:"shodan_api_key"`
	Store            StoreConfig               `yaml:"store"`
	Thresholds       Thresholds                `yaml:"thresholds"`
	Caps             Caps                      `yaml:"caps"`
	ProbeTimeout     Duration                  `yaml:"probe_timeout"`
	ToolTimeout      Duration                  `yaml:"tool_timeout"`
	MaxSessions      int                       `yaml:"max_sessions"`
}

func defaultConfig() *Config {
	return &Config{
		SelectedProvider: "gemini",
		SelectedModel:    "gemini-1.5-flash",
		Providers:        make(map[string]ProviderConfig),
		Crawler:          "http",
		Store:            StoreConfig{Backend: "memory"},
		Thresholds: Thresholds{
			ActionScore:   50,
			CriticalScore: 80,
			HighScore:     60,
		},
		Caps: Caps{
			Endpoints:        50,
			TestedEndpoints:  20,
			Forms:            10,
			PayloadsPerCheck: 2,
		},
		ProbeTimeout: Duration(10 * time.Second),
		ToolTimeout:  Duration(30 * time.Second),
		MaxSessions:  4,
	}
}

func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".scanforge")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

func LoadConfig() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return defaultConfig(), nil
	}
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// 0600 permissions for security (api keys)
	return os.WriteFile(path, data, 0600)
}

func (c *Config) SetAPIKey(provider, key string) {
	p := c.Providers[provider]
	p.APIKey = key
	c.Providers[provider] = p
}

func (c *Config) GetAPIKey(provider string) string {
	return c.Providers[provider].APIKey
}

// GetEnvDefault is a convenience function for handling env vars
func GetEnvDefault(key, defVal string) string {
	val, ex := os.LookupEnv(key)
	if !ex {
		return defVal
	}
	return val
}
