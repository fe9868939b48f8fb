package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "proxyup/internal/errors"
	"proxyup/internal/system"
)

//go:embed defaults.yaml
var embeddedDefaults []byte

// Config enumerates every tunable of a proxyup run. It is resolved once at
// startup and handed to components by value.
type Config struct {
	OutputDir string        `yaml:"output_dir"`
	Rules     RulesConfig   `yaml:"rules"`
	Proxy     ProxyConfig   `yaml:"proxy"`
	HTTP      HTTPConfig    `yaml:"http"`
	History   HistoryConfig `yaml:"history"`
	Log       LogConfig     `yaml:"log"`
}

// RulesConfig holds the two rule-data sources.
type RulesConfig struct {
	IPURL     string `yaml:"ip_url"`
	DomainURL string `yaml:"domain_url"`
}

// ProxyConfig selects the managed proxy and where its releases live.
type ProxyConfig struct {
	Variant    string `yaml:"variant"`
	ReleaseURL string `yaml:"release_url"`
	AssetName  string `yaml:"asset_name"`
}

// HTTPConfig tunes the shared HTTP client. A zero Timeout leaves requests
// unbounded.
type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`

	timeoutSet bool
}

// SetTimeout sets Timeout and marks it explicit, so Merge applies it even
// when it is zero.
func (h *HTTPConfig) SetTimeout(d time.Duration) {
	h.Timeout = d
	h.timeoutSet = true
}

// UnmarshalYAML records whether the timeout key was present.
func (h *HTTPConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain HTTPConfig
	var raw plain
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*h = HTTPConfig(raw)
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "timeout" {
			h.timeoutSet = true
		}
	}
	return nil
}

// HistoryConfig locates the run ledger.
type HistoryConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

// LogConfig selects log verbosity and rendering.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the embedded default configuration.
func Default() (*Config, error) {
	cfg, err := Parse(embeddedDefaults)
	if err != nil {
		return nil, apperrors.ConfigError(apperrors.CodeConfigLoad, "failed to parse embedded defaults", err).
			WithModule("config").
			WithOperation("Default")
	}
	return cfg, nil
}

// Load reads a YAML configuration file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.ConfigError(apperrors.CodeConfigLoad, "failed to read config file", err).
			WithModule("config").
			WithOperation("Load").
			WithField("path", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, apperrors.ConfigError(apperrors.CodeConfigLoad, "failed to parse config file", err).
			WithModule("config").
			WithOperation("Load").
			WithField("path", path)
	}
	return cfg, nil
}

// Parse decodes configuration data from bytes. Empty input yields a zero Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if len(data) == 0 {
		return &cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Merge overlays later configurations onto earlier ones. Only non-empty
// values override, except an explicitly set HTTP timeout, which wins even
// when zero.
func Merge(cfgs ...*Config) *Config {
	var result Config
	for _, cfg := range cfgs {
		if cfg == nil {
			continue
		}
		overrideString(&result.OutputDir, cfg.OutputDir)
		overrideString(&result.Rules.IPURL, cfg.Rules.IPURL)
		overrideString(&result.Rules.DomainURL, cfg.Rules.DomainURL)
		overrideString(&result.Proxy.Variant, cfg.Proxy.Variant)
		overrideString(&result.Proxy.ReleaseURL, cfg.Proxy.ReleaseURL)
		overrideString(&result.Proxy.AssetName, cfg.Proxy.AssetName)
		if cfg.HTTP.timeoutSet || cfg.HTTP.Timeout > 0 {
			result.HTTP.SetTimeout(cfg.HTTP.Timeout)
		}
		overrideString(&result.HTTP.UserAgent, cfg.HTTP.UserAgent)
		overrideString(&result.History.Path, cfg.History.Path)
		if cfg.History.Disabled {
			result.History.Disabled = true
		}
		overrideString(&result.Log.Level, cfg.Log.Level)
		overrideString(&result.Log.Format, cfg.Log.Format)
	}
	return &result
}

func overrideString(dst *string, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		*dst = trimmed
	}
}

// Resolve fills values derived from the host platform: the release asset
// name when unset and a history path anchored in the output directory.
func (c *Config) Resolve(p system.Platform) error {
	if c.Proxy.AssetName == "" {
		name, err := p.XrayAssetName()
		if err != nil {
			return apperrors.ConfigError(apperrors.CodeConfigInvalid, "cannot derive release asset name", err).
				WithModule("config").
				WithOperation("Resolve").
				WithField("platform", p.String())
		}
		c.Proxy.AssetName = name
	}

	if c.History.Path != "" && !filepath.IsAbs(c.History.Path) {
		c.History.Path = filepath.Join(c.OutputDir, c.History.Path)
	}
	return nil
}

// Validate checks that every required value is present.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"output_dir", c.OutputDir},
		{"rules.ip_url", c.Rules.IPURL},
		{"rules.domain_url", c.Rules.DomainURL},
		{"proxy.variant", c.Proxy.Variant},
		{"proxy.release_url", c.Proxy.ReleaseURL},
		{"proxy.asset_name", c.Proxy.AssetName},
	}

	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return apperrors.ConfigError(apperrors.CodeConfigInvalid, "required configuration value is empty", nil).
				WithModule("config").
				WithOperation("Validate").
				WithField("key", field.key)
		}
	}

	if !c.History.Disabled && strings.TrimSpace(c.History.Path) == "" {
		return apperrors.ConfigError(apperrors.CodeConfigInvalid, "history path is empty while history is enabled", nil).
			WithModule("config").
			WithOperation("Validate")
	}

	return nil
}
