package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mkranz/matrix-sticker-import/internal/matrix"
)

var setWidgetCmd = &cobra.Command{
	Use:   "set-widget <widget url>",
	Short: "Point the account's sticker picker widget at a picker page",
	Args:  cobra.ExactArgs(1),
	Run:   runSetWidget,
}

func init() {
	rootCmd.AddCommand(setWidgetCmd)
}

func runSetWidget(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	client, err := matrix.NewClient(cfg.Matrix.Homeserver, cfg.Matrix.User, cfg.Matrix.AccessToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid Matrix configuration")
	}
	if err := client.SetWidget(context.Background(), client.User(), args[0]); err != nil {
		log.Fatal().Err(err).Msg("Failed to set sticker picker widget")
	}
}
