// sticker-import imports Telegram sticker packs into Matrix sticker picker
// packs, deduplicating uploads across runs through a content-addressed
// store.
package main

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mkranz/matrix-sticker-import/internal/config"
	"github.com/mkranz/matrix-sticker-import/internal/logging"
)

// configFlag is the persistent config file override.
var configFlag string

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "sticker-import",
	Short: "Import Telegram sticker packs into Matrix",
	Long: `sticker-import downloads the stickers of one or more Telegram sticker
packs, converts animated and video stickers to formats Matrix clients can
render, uploads them to a Matrix homeserver, and writes a sticker picker
pack document per imported pack.

Identical payloads are uploaded only once: a content-addressed store maps
the digest of every uploaded file to its mxc:// URI, so re-importing a pack
(or overlapping packs) reuses the existing media.

Examples:
  sticker-import import https://t.me/addstickers/NekoAtsume
  sticker-import import tg://addstickers?set=pack_one tg://addstickers?set=pack_two --save
  sticker-import import https://t.me/addstickers/NekoAtsume --dryrun
  sticker-import set-widget https://stickers.example.org/picker.html
  sticker-import create-index --pretty`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to the config file (default: <user config dir>/matrix-sticker-import/config.toml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves the config file path and loads it.
func loadConfig() *config.Config {
	path := configFlag
	if path == "" {
		dir, err := config.Dir()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to locate config directory")
		}
		path = filepath.Join(dir, config.DefaultFileName)
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	return cfg
}
