// Package config loads the importer's TOML configuration file.
//
// The file carries the pre-provisioned credentials for both platforms plus
// sticker conversion defaults. Tokens are read-only configuration; no
// authentication flow is performed.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

// DefaultFileName is the config file name looked up in the config directory.
const DefaultFileName = "config.toml"

// Telegram holds the source platform credentials.
type Telegram struct {
	BotKey string `toml:"bot_key"`
}

// Matrix holds the target platform credentials.
type Matrix struct {
	Homeserver  string `toml:"homeserver_url"`
	User        string `toml:"user"`
	AccessToken string `toml:"access_token"`
}

// Color is the background color used when rendering animations to GIF.
type Color struct {
	R     uint8 `toml:"r"`
	G     uint8 `toml:"g"`
	B     uint8 `toml:"b"`
	Alpha bool  `toml:"alpha"`
}

// Sticker holds conversion defaults applied to every imported sticker.
type Sticker struct {
	AnimationFormat  string `toml:"animation_format"`
	TransparentColor Color  `toml:"transparent_color"`
}

// Config is the root of the TOML configuration file.
type Config struct {
	Telegram Telegram `toml:"telegram"`
	Matrix   Matrix   `toml:"matrix"`
	Sticker  Sticker  `toml:"sticker"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := &Config{
		Sticker: Sticker{
			AnimationFormat:  "webp",
			TransparentColor: Color{Alpha: true},
		},
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	log.Debug().Str("path", path).Msg("Config loaded")
	return cfg, nil
}

// Validate checks that the credentials required by every run are present.
func (c *Config) Validate() error {
	if c.Telegram.BotKey == "" {
		return fmt.Errorf("telegram.bot_key is not set")
	}
	if c.Matrix.Homeserver == "" {
		return fmt.Errorf("matrix.homeserver_url is not set")
	}
	if c.Matrix.User == "" {
		return fmt.Errorf("matrix.user is not set")
	}
	if c.Matrix.AccessToken == "" {
		return fmt.Errorf("matrix.access_token is not set")
	}
	switch c.Sticker.AnimationFormat {
	case "webp", "gif":
	default:
		return fmt.Errorf("sticker.animation_format must be \"webp\" or \"gif\", got %q", c.Sticker.AnimationFormat)
	}
	return nil
}

// Dir returns the directory holding the config file and the dedup database,
// creating it if necessary.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	dir := filepath.Join(base, "matrix-sticker-import")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	return dir, nil
}
