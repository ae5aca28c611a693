package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mkranz/matrix-sticker-import/internal/pack"
)

// create-index command flags
var (
	prettyFlag     bool
	homeserverFlag string
)

var createIndexCmd = &cobra.Command{
	Use:   "create-index",
	Short: "Write a picker index.json listing the pack documents in the working directory",
	Args:  cobra.NoArgs,
	Run:   runCreateIndex,
}

func init() {
	createIndexCmd.Flags().BoolVarP(&prettyFlag, "pretty", "p", false, "Write a human readable index.json")
	createIndexCmd.Flags().StringVarP(&homeserverFlag, "homeserver", "s", "", "Matrix homeserver that renders the preview thumbnails (default from config)")

	rootCmd.AddCommand(createIndexCmd)
}

func runCreateIndex(cmd *cobra.Command, args []string) {
	homeserver := homeserverFlag
	if homeserver == "" {
		homeserver = loadConfig().Matrix.Homeserver
	}

	index, err := pack.BuildIndex(".", homeserver)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build index")
	}
	if err := index.WriteFile("index.json", prettyFlag); err != nil {
		log.Fatal().Err(err).Msg("Failed to write index.json")
	}
	log.Info().Int("packs", len(index.Packs)).Msg("index.json written")
}
