// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"firestige.xyz/pktcraft/internal/log"
	"firestige.xyz/pktcraft/pkg/protocols"
)

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
	OutputHex  = "hex"
	OutputPcap = "pcap"
)

// Config represents the top-level configuration.
// Maps to the `pktcraft:` root key in YAML.
type Config struct {
	Log    log.LoggerConfig `mapstructure:"log"`
	Decode DecodeConfig     `mapstructure:"decode"`
	Craft  CraftConfig      `mapstructure:"craft"`
}

// DecodeConfig controls `pktcraft decode`.
type DecodeConfig struct {
	Start  string `mapstructure:"start"`  // protocol of the first layer of every packet; empty = by link type
	Output string `mapstructure:"output"` // text / json / yaml
}

// CraftConfig controls `pktcraft craft`.
type CraftConfig struct {
	Seed     uint64 `mapstructure:"seed"`   // 0 = nondeterministic
	Output   string `mapstructure:"output"` // hex / pcap
	LinkType uint32 `mapstructure:"linktype"`
	SnapLen  uint32 `mapstructure:"snaplen"`
}

// configRoot is the top-level wrapper matching the YAML structure `pktcraft: ...`.
type configRoot struct {
	Pktcraft Config `mapstructure:"pktcraft"`
}

// Load loads configuration from file. An empty path loads defaults and
// environment overrides only.
// Env vars use the PKTCRAFT_ prefix (e.g., PKTCRAFT_LOG_LEVEL).
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// key "pktcraft.log.level" -> env "PKTCRAFT_LOG_LEVEL"
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Pktcraft

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use "pktcraft." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	def := log.DefaultConfig()

	// Log defaults
	v.SetDefault("pktcraft.log.level", def.Level)
	v.SetDefault("pktcraft.log.format", def.Format)
	v.SetDefault("pktcraft.log.pattern", def.Pattern)
	v.SetDefault("pktcraft.log.time", def.Time)
	v.SetDefault("pktcraft.log.file.filename", "")
	v.SetDefault("pktcraft.log.file.max_size", 0)
	v.SetDefault("pktcraft.log.file.max_backups", 0)
	v.SetDefault("pktcraft.log.file.max_age", 0)
	v.SetDefault("pktcraft.log.file.compress", false)

	// Decode defaults
	v.SetDefault("pktcraft.decode.start", "")
	v.SetDefault("pktcraft.decode.output", OutputText)

	// Craft defaults
	v.SetDefault("pktcraft.craft.seed", 0)
	v.SetDefault("pktcraft.craft.output", OutputHex)
	v.SetDefault("pktcraft.craft.linktype", protocols.LinkTypeEthernet)
	v.SetDefault("pktcraft.craft.snaplen", 65535)
}

// Validate checks every section.
func (cfg *Config) Validate() error {
	if err := cfg.Log.Validate(); err != nil {
		return err
	}

	if cfg.Decode.Start != "" {
		if _, err := protocols.ByName(cfg.Decode.Start); err != nil {
			return fmt.Errorf("invalid decode.start: %w", err)
		}
	}
	switch cfg.Decode.Output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		return fmt.Errorf("invalid decode.output: %s (must be text/json/yaml)", cfg.Decode.Output)
	}

	switch cfg.Craft.Output {
	case OutputHex, OutputPcap:
	default:
		return fmt.Errorf("invalid craft.output: %s (must be hex/pcap)", cfg.Craft.Output)
	}
	if cfg.Craft.SnapLen == 0 {
		return fmt.Errorf("craft.snaplen must be positive")
	}
	return nil
}
