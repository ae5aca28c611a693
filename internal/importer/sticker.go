package importer

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/mkranz/matrix-sticker-import/internal/dedup"
	"github.com/mkranz/matrix-sticker-import/internal/media"
	"github.com/mkranz/matrix-sticker-import/internal/pack"
	"github.com/mkranz/matrix-sticker-import/internal/telegram"
)

// DryRunURI is the placeholder media reference issued in dry-run mode.
// Dry runs never contact the target platform; the local payload is still
// carried on the result so disk saves work unchanged.
const DryRunURI = "mxc://dry-run/not-uploaded"

// StickerResult is the outcome of one successful (or filtered) asset import.
type StickerResult struct {
	// Sticker is the assembled pack entry; nil when Filtered.
	Sticker *pack.Sticker
	// Asset retains the final payload for disk saves and dry runs.
	Asset *media.Asset
	// WasNewUpload is false when the digest was already in the dedup store
	// and no network upload occurred.
	WasNewUpload bool
	// Filtered marks an asset that was deliberately skipped, not failed.
	Filtered bool
}

// importSticker runs the per-asset pipeline: filter, fetch, convert,
// optional disk save, digest, dedup lookup, upload, result assembly.
func (imp *Importer) importSticker(ctx context.Context, idx int, tgSticker telegram.Sticker, packName string) (*StickerResult, error) {
	logger := log.With().Int("index", idx).Str("emoji", tgSticker.Emoji).Str("pack", packName).Logger()

	// Video stickers the environment cannot convert are deliberately
	// skipped rather than failed, matching the upstream importer.
	if tgSticker.IsVideo && !imp.Opts.KeepVideo && !imp.Converter.SupportsVideo() {
		logger.Warn().Msg("Skipping video sticker, video conversion unavailable")
		return &StickerResult{Filtered: true}, nil
	}

	logger.Debug().Msg("Downloading sticker")
	file, err := imp.Source.GetFile(ctx, tgSticker.FileID)
	if err != nil {
		return nil, classifyCallError(err)
	}
	data, err := imp.Source.Download(ctx, file.FilePath)
	if err != nil {
		return nil, classifyCallError(err)
	}

	asset := &media.Asset{
		FileName: path.Base(file.FilePath),
		Data:     data,
		Width:    tgSticker.Width,
		Height:   tgSticker.Height,
	}

	asset, err = imp.convert(ctx, asset, tgSticker)
	if err != nil {
		return nil, err
	}

	if imp.Opts.SaveDir != "" {
		target := filepath.Join(imp.Opts.SaveDir, packName, asset.FileName)
		logger.Debug().Str("path", target).Msg("Saving sticker to disk")
		if err := os.WriteFile(target, asset.Data, 0o644); err != nil {
			return nil, fmt.Errorf("save sticker to disk: %w", err)
		}
	}

	if imp.Opts.DryRun {
		logger.Debug().Msg("Dry run, skipping upload")
		return imp.assemble(asset, tgSticker, packName, idx, DryRunURI, false)
	}

	hash := dedup.Sum(asset.Data)
	if imp.Store != nil {
		if url, ok := imp.Store.Get(hash); ok {
			logger.Debug().Str("mxc", url).Msg("Upload skipped, payload already uploaded")
			return imp.assemble(asset, tgSticker, packName, idx, url, false)
		}
	}

	mimeType, err := asset.MimeType()
	if err != nil {
		return nil, &ConversionError{Err: err}
	}
	logger.Debug().Str("mimetype", mimeType).Msg("Uploading sticker")
	url, err := imp.Target.UploadMedia(ctx, asset.Data, asset.FileName, mimeType)
	if err != nil {
		return nil, classifyCallError(err)
	}

	if imp.Store != nil {
		// A store failure after a successful upload degrades dedup
		// bookkeeping for future runs; the sticker import itself stands.
		if err := imp.Store.Add(hash, url); err != nil {
			storeErr := &StoreError{Err: err}
			logger.Warn().Err(storeErr).Msg("Failed to record upload in dedup store")
		}
	}

	return imp.assemble(asset, tgSticker, packName, idx, url, true)
}

// convert applies the conversion steps the asset's kind calls for,
// honoring the per-kind keep-original switches.
func (imp *Importer) convert(ctx context.Context, asset *media.Asset, tgSticker telegram.Sticker) (*media.Asset, error) {
	if tgSticker.IsVideo {
		if imp.Opts.KeepVideo {
			return asset, nil
		}
		converted, err := imp.Converter.ConvertVideo(ctx, asset)
		if err != nil {
			return nil, classifyConversionError(err)
		}
		return converted, nil
	}

	if imp.Opts.KeepAnimated {
		return asset, nil
	}
	converted, err := imp.Converter.ConvertAnimation(ctx, asset, imp.Opts.Render)
	if err != nil {
		return nil, classifyConversionError(err)
	}
	return converted, nil
}

// assemble builds the pack entry with its provenance block.
func (imp *Importer) assemble(asset *media.Asset, tgSticker telegram.Sticker, packName string, idx int, url string, wasNewUpload bool) (*StickerResult, error) {
	mimeType, err := asset.MimeType()
	if err != nil {
		return nil, &ConversionError{Err: err}
	}

	sticker := &pack.Sticker{
		Body:     tgSticker.Emoji,
		Emoticon: tgSticker.Emoji,
		Image: pack.MediaRef{
			URL: url,
			Meta: pack.Meta{
				W:        asset.Width,
				H:        asset.Height,
				Size:     len(asset.Data),
				Mimetype: mimeType,
			},
		},
		Telegram: &pack.TelegramInfo{
			PackName:  packName,
			FileID:    tgSticker.FileID,
			Emoticons: []string{tgSticker.Emoji},
			Index:     idx,
		},
	}
	return &StickerResult{Sticker: sticker, Asset: asset, WasNewUpload: wasNewUpload}, nil
}
