// Package pack holds the document model for an imported sticker pack and
// its two on-disk JSON shapes.
//
// The legacy shape is consumed by the maunium sticker picker and is treated
// as canonical persisted provenance. The modern shape follows MSC2545
// (account/room sticker packs) and is derived from the canonical model;
// modern documents can express usage-tag sets and thumbnails the legacy
// shape does not model, so only legacy→modern is lossless.
package pack

import (
	"encoding/json"
	"fmt"
	"os"
)

// Meta is the inline metadata of one uploaded payload.
type Meta struct {
	W        int    `json:"w"`
	H        int    `json:"h"`
	Size     int    `json:"size"`
	Mimetype string `json:"mimetype"`
}

// MediaRef pairs a target media reference with the payload's metadata.
type MediaRef struct {
	URL  string
	Meta Meta
}

// TelegramInfo is the provenance block identifying the originating
// Telegram sticker.
type TelegramInfo struct {
	PackName  string
	FileID    string
	Emoticons []string
	Index     int
}

// Sticker is one imported sticker in the canonical model.
type Sticker struct {
	// Body is the sticker's display body, usually its emoji.
	Body string
	// Image is the primary uploaded payload.
	Image MediaRef
	// Thumbnail is an optional distinct thumbnail payload. When absent the
	// legacy shape reuses the primary image as its own thumbnail.
	Thumbnail *MediaRef
	// Emoticon keys the sticker in the modern shape; empty means the
	// sticker gets a positional key instead.
	Emoticon string
	// Telegram carries provenance; nil for packs not imported from Telegram.
	Telegram *TelegramInfo
}

// Pack is the canonical in-memory model of an imported pack.
type Pack struct {
	Title string
	Name  string
	ID    string
	// Stickers are ordered by original pack position.
	Stickers []Sticker
}

// New builds a canonical pack with the id scheme used for Telegram imports.
func New(title, name string) *Pack {
	return &Pack{
		Title: title,
		Name:  name,
		ID:    "tg_name_" + name,
	}
}

// WriteFile serializes doc as JSON to path.
func WriteFile(path string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode pack document: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write pack document %s: %w", path, err)
	}
	return nil
}
