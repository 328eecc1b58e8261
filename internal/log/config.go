package log

import (
	"fmt"
	"strings"
	"time"
)

const (
	FormatPattern  = "pattern"
	FormatPrefixed = "prefixed"
	FormatJSON     = "json"
)

const DefaultPattern = "%time [%level] %field %msg"

type LoggerConfig struct {
	Level   string          `mapstructure:"level"`
	Format  string          `mapstructure:"format"`
	Pattern string          `mapstructure:"pattern"`
	Time    string          `mapstructure:"time"`
	File    FileAppenderOpt `mapstructure:"file"`
}

type FileAppenderOpt struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

func DefaultConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:   "warn",
		Format:  FormatPattern,
		Pattern: DefaultPattern,
		Time:    time.RFC3339,
	}
}

// Validate checks the level and format names.
func (c *LoggerConfig) Validate() error {
	if _, err := parseLevel(c.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Format) {
	case "", FormatPattern, FormatPrefixed, FormatJSON:
	default:
		return fmt.Errorf("unsupported log format: %s (must be pattern, prefixed or json)", c.Format)
	}
	if c.File.Filename == "" && (c.File.MaxSize != 0 || c.File.MaxBackups != 0 || c.File.MaxAge != 0) {
		return fmt.Errorf("log file rotation requires 'filename'")
	}
	return nil
}
