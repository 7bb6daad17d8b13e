package calibration

import (
	_ "embed"
	"fmt"
	"os"

	"go.mau.fi/util/configupgrade"
	"gopkg.in/yaml.v3"
)

//go:embed example-config.yaml
var exampleConfig string

// Config is the on-disk calibration file shape: one PlatformProfile per
// known platform name (SPEC_FULL.md §4.8).
type Config struct {
	Platforms map[string]PlatformProfile `yaml:"platforms"`
}

// Profile returns the named platform's profile, falling back to the
// built-in default for that platform if the loaded config omits it
// (e.g. a user file predating a newly-added platform).
func (c *Config) Profile(platform string) PlatformProfile {
	if c != nil {
		if p, ok := c.Platforms[platform]; ok {
			return p
		}
	}
	return DefaultProfiles()[platform]
}

// upgradeConfig copies every known field forward from a user's existing
// calibration file onto the embedded default, the same field-by-field
// approach as the teacher's pkg/simpleruntime/config.go upgradeConfig,
// so that unset fields in a hand-edited file fall back to the shipped
// default instead of zero values.
func upgradeConfig(helper configupgrade.Helper) {
	for _, platform := range []string{PlatformChatGPT, PlatformGemini, PlatformGrok} {
		helper.Copy(configupgrade.Int, "platforms", platform, "sfe", "min_stable_ms")
		helper.Copy(configupgrade.Int, "platforms", platform, "sfe", "max_stabilization_wait_ms")
		helper.Copy(configupgrade.Int, "platforms", platform, "sfe", "sample_ttl_ms")
		helper.Copy(configupgrade.Int, "platforms", platform, "sfe", "max_samples")
		helper.Copy(configupgrade.Int, "platforms", platform, "warm_fetch", "max_attempts")
		helper.Copy(configupgrade.Int, "platforms", platform, "warm_fetch", "base_delay_ms")
		helper.Copy(configupgrade.Int, "platforms", platform, "warm_fetch", "max_delay_ms")
		helper.Copy(configupgrade.List, "platforms", platform, "disabled_signals")
	}
}

// Load reads the calibration file at path, upgrading it in place
// against the embedded default schema via configupgrade.DoUpgrade (the
// same mechanism the teacher's OpenAIConnector.GetConfig wires into
// the bridge's config loader). A missing file is treated as an empty
// user override, so the result is exactly the shipped defaults.
func Load(path string) (*Config, error) {
	userData, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("calibration: reading %s: %w", path, err)
		}
		userData = nil
	}

	upgraded, _, err := configupgrade.DoUpgrade(string(userData), exampleConfig, configupgrade.SimpleUpgrader(upgradeConfig))
	if err != nil {
		return nil, fmt.Errorf("calibration: upgrading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(upgraded), &cfg); err != nil {
		return nil, fmt.Errorf("calibration: parsing upgraded config: %w", err)
	}
	if cfg.Platforms == nil {
		cfg.Platforms = DefaultProfiles()
	}
	return &cfg, nil
}

// Save writes cfg back to path as YAML, for tooling that edits
// calibration profiles programmatically.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("calibration: marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
