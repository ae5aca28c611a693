// Package media holds the in-flight representation of a sticker payload and
// the format conversions applied to it before upload.
//
// Conversions are format-conditional and idempotent: each inspects the
// asset's current file extension and either passes the asset through
// unchanged or returns a new asset whose extension reflects the real
// encoding of the new payload. The extension drives the MIME type used on
// upload, so a stale extension after a conversion is a correctness bug.
package media

import (
	"bytes"
	"fmt"
	"image"
	"path"
	"strings"

	// Register decoders so dimensions can be probed from payload headers.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// supportedExtensions maps a payload's file extension to the MIME type
// reported on upload.
var supportedExtensions = map[string]string{
	".webp": "image/webp",
	".gif":  "image/gif",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webm": "video/webm",
	".tgs":  "application/gzip",
	".json": "application/json",
}

// Asset is one sticker payload with its metadata, immutable once built.
// Conversions return a new Asset rather than mutating in place, so the
// original bytes can be cheaply retained for dry runs or disk saves.
type Asset struct {
	// FileName is the payload's file name; its extension always reflects
	// the current encoding of Data.
	FileName string
	Data     []byte
	Width    int
	Height   int
}

// Ext returns the asset's current file extension, lowercased.
func (a *Asset) Ext() string {
	return strings.ToLower(path.Ext(a.FileName))
}

// MimeType infers the upload MIME type from the current file extension.
func (a *Asset) MimeType() (string, error) {
	ext := a.Ext()
	if ext == "" {
		return "", fmt.Errorf("no extension on sticker filename %q", a.FileName)
	}
	if mime, ok := supportedExtensions[ext]; ok {
		return mime, nil
	}
	return "", fmt.Errorf("unsupported file extension %q on sticker filename %q", ext, a.FileName)
}

// withPayload returns a copy of the asset carrying a new payload and file
// extension, with dimensions re-derived from the payload header.
func (a *Asset) withPayload(data []byte, newExt string) (*Asset, error) {
	name := strings.TrimSuffix(a.FileName, path.Ext(a.FileName)) + newExt
	out := &Asset{
		FileName: name,
		Data:     data,
		Width:    a.Width,
		Height:   a.Height,
	}
	if w, h, err := probeDimensions(data); err == nil {
		out.Width = w
		out.Height = h
	}
	return out, nil
}

// probeDimensions reads the natural pixel dimensions from an encoded
// payload's header. webp, gif and png are registered above.
func probeDimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("probe image dimensions: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
