package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"
)

// AnimationFormat selects the raster encoding animated stickers are
// rendered to.
type AnimationFormat string

const (
	// FormatWebP is the default animated raster format.
	FormatWebP AnimationFormat = "webp"
	// FormatGIF is the animated palette format; it takes a background
	// color since GIF has no partial transparency.
	FormatGIF AnimationFormat = "gif"
)

// ParseAnimationFormat parses a user-supplied format name.
func ParseAnimationFormat(s string) (AnimationFormat, error) {
	switch AnimationFormat(strings.ToLower(s)) {
	case FormatWebP:
		return FormatWebP, nil
	case FormatGIF:
		return FormatGIF, nil
	default:
		return "", fmt.Errorf("unknown animation format %q (supported: webp, gif)", s)
	}
}

// Color is the GIF background color, with Alpha marking it transparent.
type Color struct {
	R, G, B uint8
	Alpha   bool
}

// RenderOptions control the vector-animation conversion.
type RenderOptions struct {
	Format     AnimationFormat
	Background Color
}

// UnsupportedFormatError reports an asset that needs a conversion this
// environment cannot perform. Passing the bytes through unconverted would
// produce a pack entry Matrix clients cannot render, so the asset import
// fails instead.
type UnsupportedFormatError struct {
	Kind string // "animated" or "video"
	Tool string // the missing external tool
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("%s stickers are unsupported: %s not found in PATH", e.Kind, e.Tool)
}

// UnpackTGS gunzips a .tgs payload into the underlying lottie JSON.
// Assets with any other extension pass through unchanged.
func UnpackTGS(asset *Asset) (*Asset, error) {
	if asset.Ext() != ".tgs" {
		return asset, nil
	}
	reader, err := gzip.NewReader(bytes.NewReader(asset.Data))
	if err != nil {
		return nil, fmt.Errorf("open tgs archive %s: %w", asset.FileName, err)
	}
	defer reader.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(reader); err != nil {
		return nil, fmt.Errorf("unpack tgs archive %s: %w", asset.FileName, err)
	}
	return asset.withPayload(out.Bytes(), ".json")
}

// Converter runs the two heavy conversions through external tools.
// Capabilities are negotiated at construction by probing PATH, so the
// pipeline can check support before attempting a conversion instead of
// failing halfway through.
type Converter struct {
	ffmpegPath   string
	rendererPath string
}

// DefaultRenderer is the external lottie renderer looked up in PATH.
const DefaultRenderer = "lottie_convert.py"

// NewConverter probes PATH for ffmpeg and the lottie renderer. Missing
// tools disable the corresponding capability rather than failing; assets
// that need a disabled conversion fail individually at import time.
func NewConverter(renderer string) *Converter {
	if renderer == "" {
		renderer = DefaultRenderer
	}
	c := &Converter{}
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		c.ffmpegPath = path
		log.Debug().Str("path", path).Msg("ffmpeg found, video stickers supported")
	} else {
		log.Warn().Msg("ffmpeg not found in PATH, video stickers will fail to import")
	}
	if path, err := exec.LookPath(renderer); err == nil {
		c.rendererPath = path
		log.Debug().Str("path", path).Msg("lottie renderer found, animated stickers supported")
	} else {
		log.Warn().Str("renderer", renderer).Msg("lottie renderer not found in PATH, animated stickers will fail to import")
	}
	return c
}

// SupportsAnimation reports whether vector-animation conversion is available.
func (c *Converter) SupportsAnimation() bool {
	return c.rendererPath != ""
}

// SupportsVideo reports whether video conversion is available.
func (c *Converter) SupportsVideo() bool {
	return c.ffmpegPath != ""
}

// ConvertAnimation renders a vector animation (.tgs or unpacked .json) to
// an animated raster format. Assets with any other extension pass through
// unchanged, which also makes the conversion idempotent.
//
// The renderer needs a real file, so the payload is staged through a
// transient temp file. The external process keeps the CPU-bound work off
// the importer's goroutines.
func (c *Converter) ConvertAnimation(ctx context.Context, asset *Asset, opts RenderOptions) (*Asset, error) {
	if asset.Ext() != ".tgs" && asset.Ext() != ".json" {
		return asset, nil
	}
	if !c.SupportsAnimation() {
		return nil, &UnsupportedFormatError{Kind: "animated", Tool: DefaultRenderer}
	}

	asset, err := UnpackTGS(asset)
	if err != nil {
		return nil, err
	}

	if opts.Format == "" {
		opts.Format = FormatWebP
	}
	outExt := "." + string(opts.Format)
	in, out, cleanup, err := stageTempFiles(asset.Data, ".json", outExt)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	args := []string{in, out}
	if opts.Format == FormatGIF && !opts.Background.Alpha {
		args = append(args, "--bg-color",
			fmt.Sprintf("#%02x%02x%02x", opts.Background.R, opts.Background.G, opts.Background.B))
	}
	cmd := exec.CommandContext(ctx, c.rendererPath, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("lottie renderer failed for %s: %w: %s",
			asset.FileName, err, truncateOutput(output))
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("read rendered animation: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("lottie renderer produced no output for %s", asset.FileName)
	}
	return asset.withPayload(data, outExt)
}

// ConvertVideo decodes a short silent .webm clip and re-encodes it as an
// animated webp with the source frame timeline. Assets with any other
// extension pass through unchanged.
func (c *Converter) ConvertVideo(ctx context.Context, asset *Asset) (*Asset, error) {
	if asset.Ext() != ".webm" {
		return asset, nil
	}
	if !c.SupportsVideo() {
		return nil, &UnsupportedFormatError{Kind: "video", Tool: "ffmpeg"}
	}

	in, out, cleanup, err := stageTempFiles(asset.Data, ".webm", ".webp")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	cmd := exec.CommandContext(ctx, c.ffmpegPath,
		"-y",
		"-i", in,
		"-vf", "format=rgba",
		"-c:v", "libwebp_anim",
		"-loop", "0",
		"-an",
		out,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed for %s: %w: %s",
			asset.FileName, err, truncateOutput(output))
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("read converted video: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output for %s", asset.FileName)
	}
	return asset.withPayload(data, ".webp")
}

// stageTempFiles writes the payload to a transient input file and reserves
// an output path for the external tool.
func stageTempFiles(data []byte, inExt, outExt string) (in, out string, cleanup func(), err error) {
	inFile, err := os.CreateTemp("", "sticker-*"+inExt)
	if err != nil {
		return "", "", nil, fmt.Errorf("create temp input file: %w", err)
	}
	if _, err := inFile.Write(data); err != nil {
		inFile.Close()
		os.Remove(inFile.Name())
		return "", "", nil, fmt.Errorf("write temp input file: %w", err)
	}
	inFile.Close()

	out = strings.TrimSuffix(inFile.Name(), inExt) + outExt
	cleanup = func() {
		os.Remove(inFile.Name())
		os.Remove(out)
	}
	return inFile.Name(), out, cleanup, nil
}

// truncateOutput keeps tool stderr readable in error messages.
func truncateOutput(output []byte) string {
	const max = 512
	s := strings.TrimSpace(string(output))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
