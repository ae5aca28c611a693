package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mkranz/matrix-sticker-import/internal/config"
	"github.com/mkranz/matrix-sticker-import/internal/dedup"
	"github.com/mkranz/matrix-sticker-import/internal/importer"
	"github.com/mkranz/matrix-sticker-import/internal/matrix"
	"github.com/mkranz/matrix-sticker-import/internal/media"
	"github.com/mkranz/matrix-sticker-import/internal/pack"
	"github.com/mkranz/matrix-sticker-import/internal/telegram"
)

// import command flags
var (
	saveFlag        bool
	dryRunFlag      bool
	keepFlag        bool
	databaseFlag    string
	formatFlag      string
	packFormatFlag  string
	rendererFlag    string
	concurrencyFlag int
	timeoutFlag     time.Duration
)

var importCmd = &cobra.Command{
	Use:   "import <pack url>...",
	Short: "Import one or more Telegram sticker packs",
	Args:  cobra.MinimumNArgs(1),
	Run:   runImport,
}

func init() {
	importCmd.Flags().BoolVarP(&saveFlag, "save", "s", false, "Save converted stickers to ./stickers/<pack>/")
	importCmd.Flags().BoolVarP(&dryRunFlag, "dryrun", "d", false, "Perform all local processing but never contact the Matrix homeserver")
	importCmd.Flags().BoolVarP(&keepFlag, "no-format", "F", false, "Upload stickers unconverted; clients may not be able to render them")
	importCmd.Flags().StringVar(&databaseFlag, "database", "", "Path to the dedup database (default: <user config dir>/matrix-sticker-import/uploads.jsonl, \"none\" disables dedup)")
	importCmd.Flags().StringVar(&formatFlag, "animation-format", "", "Format animated stickers are rendered to: webp or gif (default from config)")
	importCmd.Flags().StringVar(&packFormatFlag, "pack-format", "legacy", "Output document shape: legacy (maunium picker) or modern (MSC2545)")
	importCmd.Flags().StringVar(&rendererFlag, "renderer", "", "Lottie renderer executable (default: "+media.DefaultRenderer+")")
	importCmd.Flags().IntVar(&concurrencyFlag, "concurrency", importer.DefaultConcurrency, "Maximum in-flight sticker imports per pack")
	importCmd.Flags().DurationVar(&timeoutFlag, "timeout", importer.DefaultAssetTimeout, "Per-sticker timeout covering download, conversion and upload")

	rootCmd.AddCommand(importCmd)
}

// packOutcome is one line of the end-of-run summary.
type packOutcome struct {
	name     string
	err      error
	empty    bool
	failures []importer.Failure
}

func runImport(cmd *cobra.Command, args []string) {
	// Indirection keeps deferred cleanup (the dedup store's file handle)
	// running before the process exits.
	os.Exit(runImportPacks(args))
}

func runImportPacks(args []string) int {
	cfg := loadConfig()
	ctx := context.Background()
	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Logger()

	if packFormatFlag != "legacy" && packFormatFlag != "modern" {
		logger.Fatal().Str("pack_format", packFormatFlag).Msg("Unknown pack format, expected legacy or modern")
	}

	// Every reference must parse before any asset work begins.
	packNames := make([]string, 0, len(args))
	for _, arg := range args {
		name, err := telegram.PackURLToName(arg)
		if err != nil {
			logger.Fatal().Err(&importer.InvalidReference{Ref: arg, Err: err}).Msg("Invalid pack reference")
		}
		packNames = append(packNames, name)
	}

	mxClient, err := matrix.NewClient(cfg.Matrix.Homeserver, cfg.Matrix.User, cfg.Matrix.AccessToken)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid Matrix configuration")
	}
	if !dryRunFlag {
		identity, err := mxClient.WhoAmI(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to the Matrix homeserver")
		}
		logger.Info().Str("user_id", identity.UserID).Msg("Connected to Matrix homeserver")
	}

	var store dedup.Store
	if databaseFlag != "none" {
		path := databaseFlag
		if path == "" {
			dir, err := config.Dir()
			if err != nil {
				logger.Fatal().Err(err).Msg("Failed to locate config directory")
			}
			path = filepath.Join(dir, "uploads.jsonl")
		}
		fileStore, err := dedup.OpenFileStore(path)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to open dedup database")
		}
		defer fileStore.Close()
		store = fileStore
	}

	imp := &importer.Importer{
		Source:    telegram.NewClient(cfg.Telegram.BotKey),
		Target:    mxClient,
		Converter: media.NewConverter(rendererFlag),
		Store:     store,
		Opts: importer.Options{
			DryRun:       dryRunFlag,
			KeepAnimated: keepFlag,
			KeepVideo:    keepFlag,
			Render:       renderOptions(cfg, logger),
			Concurrency:  concurrencyFlag,
			AssetTimeout: timeoutFlag,
		},
	}
	if saveFlag {
		imp.Opts.SaveDir = "./stickers"
	}

	// One pack's outcome never aborts the rest of the run; everything is
	// collected for the end-of-run summary.
	outcomes := make([]packOutcome, 0, len(packNames))
	for _, name := range packNames {
		outcomes = append(outcomes, importPack(ctx, imp, name, logger))
	}

	exitCode := 0
	for _, outcome := range outcomes {
		switch {
		case outcome.err != nil:
			logger.Error().Str("pack", outcome.name).Err(outcome.err).Msg("Pack could not be imported")
			exitCode = 1
		case outcome.empty:
			logger.Error().Str("pack", outcome.name).Msg("Pack produced no stickers and was not saved")
			exitCode = 1
		case len(outcome.failures) > 0:
			for _, failure := range outcome.failures {
				logger.Error().
					Str("pack", outcome.name).
					Int("index", failure.Index).
					Err(failure.Err).
					Msg("Sticker failed to import; pack document is incomplete")
			}
			exitCode = 1
		default:
			logger.Info().Str("pack", outcome.name).Msg("Pack imported completely")
		}
	}
	return exitCode
}

// importPack imports one pack and writes its document unless it came out
// empty.
func importPack(ctx context.Context, imp *importer.Importer, name string, logger zerolog.Logger) packOutcome {
	outcome := packOutcome{name: name}

	result, err := imp.ImportPack(ctx, name)
	if err != nil {
		outcome.err = err
		return outcome
	}
	outcome.failures = result.Failures
	if result.Empty() {
		outcome.empty = true
		return outcome
	}

	var doc any = result.Pack.Legacy()
	if packFormatFlag == "modern" {
		doc = result.Pack.Modern()
	}
	path := fmt.Sprintf("./%s.json", name)
	if err := pack.WriteFile(path, doc); err != nil {
		outcome.err = &importer.SerializationError{Err: err}
		return outcome
	}
	logger.Info().Str("pack", name).Str("path", path).Msg("Pack document written")
	return outcome
}

// renderOptions maps the config's sticker section onto the converter.
func renderOptions(cfg *config.Config, logger zerolog.Logger) media.RenderOptions {
	format := cfg.Sticker.AnimationFormat
	if formatFlag != "" {
		format = formatFlag
	}
	parsed, err := media.ParseAnimationFormat(format)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid animation format")
	}
	return media.RenderOptions{
		Format: parsed,
		Background: media.Color{
			R:     cfg.Sticker.TransparentColor.R,
			G:     cfg.Sticker.TransparentColor.G,
			B:     cfg.Sticker.TransparentColor.B,
			Alpha: cfg.Sticker.TransparentColor.Alpha,
		},
	}
}
