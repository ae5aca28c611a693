// Package importer runs the sticker import pipeline: per-asset concurrent
// fetch, format conversion, content-addressed deduplication, upload, and
// assembly of the resulting pack document.
//
// Per-asset failures are caught and recorded against the asset's original
// index; they never abort sibling imports. Only a pack metadata fetch is
// fatal to the pack.
package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mkranz/matrix-sticker-import/internal/dedup"
	"github.com/mkranz/matrix-sticker-import/internal/media"
	"github.com/mkranz/matrix-sticker-import/internal/pack"
	"github.com/mkranz/matrix-sticker-import/internal/telegram"
)

// DefaultConcurrency caps in-flight asset imports per pack. The upstream
// importer spawned one task per sticker with no cap, which can exhaust
// file descriptors and hammer both APIs on multi-hundred-asset packs.
const DefaultConcurrency = 8

// DefaultAssetTimeout bounds one asset's fetch+convert+upload, turning a
// hung call into a recorded failure instead of an indefinitely blocked slot.
const DefaultAssetTimeout = 5 * time.Minute

// Source is the subset of the Telegram client the pipeline consumes.
type Source interface {
	GetStickerPack(ctx context.Context, name string) (*telegram.StickerPack, error)
	GetFile(ctx context.Context, fileID string) (*telegram.File, error)
	Download(ctx context.Context, filePath string) ([]byte, error)
}

// Target is the subset of the Matrix client the pipeline consumes.
type Target interface {
	UploadMedia(ctx context.Context, data []byte, filename, mimeType string) (string, error)
}

// Converter is the conversion capability consumed per asset.
type Converter interface {
	SupportsAnimation() bool
	SupportsVideo() bool
	ConvertAnimation(ctx context.Context, asset *media.Asset, opts media.RenderOptions) (*media.Asset, error)
	ConvertVideo(ctx context.Context, asset *media.Asset) (*media.Asset, error)
}

// Options control one import run.
type Options struct {
	// DryRun skips every target platform call and issues DryRunURI
	// placeholders.
	DryRun bool
	// SaveDir, when set, is the base directory converted payloads are
	// written to under <SaveDir>/<packName>/.
	SaveDir string
	// KeepAnimated uploads vector animations unconverted.
	KeepAnimated bool
	// KeepVideo uploads video clips unconverted.
	KeepVideo bool
	// Render selects the animated raster format and GIF background.
	Render media.RenderOptions
	// Concurrency caps in-flight asset imports; 0 means DefaultConcurrency.
	Concurrency int
	// AssetTimeout bounds one asset's pipeline; 0 means DefaultAssetTimeout.
	AssetTimeout time.Duration
}

// Importer wires the pipeline's collaborators together. Store may be nil
// to disable deduplication.
type Importer struct {
	Source    Source
	Target    Target
	Converter Converter
	Store     dedup.Store
	Opts      Options
}

// Failure records one asset that could not be imported.
type Failure struct {
	// Index is the asset's original position in the pack.
	Index int
	Err   error
}

// Result is the outcome of importing one pack.
type Result struct {
	// Pack holds the successes, ordered by original pack position.
	Pack *pack.Pack
	// Failures lists the assets that failed, by original position.
	Failures []Failure
	// Skipped counts assets deliberately filtered out (not failures).
	Skipped int
	// NewUploads and Reused split the successes by dedup outcome.
	NewUploads int
	Reused     int
}

// Empty reports whether the pack produced zero successes. An empty pack is
// a distinct user-visible condition, not silently an empty file.
func (r *Result) Empty() bool {
	return len(r.Pack.Stickers) == 0
}

// ImportPack fetches a pack's metadata and imports every asset
// concurrently. The metadata fetch is fatal; per-asset failures are
// recorded in the result. All units run to completion: a slow or failing
// asset never starves the rest.
func (imp *Importer) ImportPack(ctx context.Context, packName string) (*Result, error) {
	tgPack, err := imp.Source.GetStickerPack(ctx, packName)
	if err != nil {
		return nil, classifyCallError(err)
	}
	log.Info().
		Str("pack", tgPack.Name).
		Str("title", tgPack.Title).
		Int("stickers", len(tgPack.Stickers)).
		Msg("Importing sticker pack")

	if imp.Opts.SaveDir != "" {
		dir := filepath.Join(imp.Opts.SaveDir, tgPack.Name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create save directory %s: %w", dir, err)
		}
	}

	concurrency := imp.Opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	timeout := imp.Opts.AssetTimeout
	if timeout <= 0 {
		timeout = DefaultAssetTimeout
	}

	results := make([]*StickerResult, len(tgPack.Stickers))
	errs := make([]error, len(tgPack.Stickers))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for i, tgSticker := range tgPack.Stickers {
		i, tgSticker := i, tgSticker
		group.Go(func() error {
			assetCtx, cancel := context.WithTimeout(groupCtx, timeout)
			defer cancel()
			results[i], errs[i] = imp.importSticker(assetCtx, i, tgSticker, tgPack.Name)
			// Errors are recorded, never returned: returning one would
			// cancel the sibling imports through the group context.
			return nil
		})
	}
	group.Wait()

	result := &Result{Pack: pack.New(tgPack.Title, tgPack.Name)}
	for i := range results {
		switch {
		case errs[i] != nil:
			log.Error().Int("index", i).Err(errs[i]).Msg("Sticker import failed")
			result.Failures = append(result.Failures, Failure{Index: i, Err: errs[i]})
		case results[i].Filtered:
			result.Skipped++
		default:
			result.Pack.Stickers = append(result.Pack.Stickers, *results[i].Sticker)
			if results[i].WasNewUpload {
				result.NewUploads++
			} else {
				result.Reused++
			}
		}
	}
	// Completion order is not meaningful; restore original pack order
	// before any ordering-sensitive consumer sees the result.
	sort.SliceStable(result.Pack.Stickers, func(a, b int) bool {
		return result.Pack.Stickers[a].Telegram.Index < result.Pack.Stickers[b].Telegram.Index
	})

	log.Info().
		Str("pack", tgPack.Name).
		Int("imported", len(result.Pack.Stickers)).
		Int("failed", len(result.Failures)).
		Int("skipped", result.Skipped).
		Int("new_uploads", result.NewUploads).
		Int("reused", result.Reused).
		Msg("Pack import finished")
	return result, nil
}
