package pack

// Legacy (maunium sticker picker) pack shape. One sticker object per entry
// with flattened metadata, a thumbnail url/info pair that defaults to the
// primary image, the fixed "m.sticker" discriminator, and nested
// net.maunium.telegram.* provenance blocks.

// LegacyMsgType is the fixed discriminator carried by every legacy sticker.
const LegacyMsgType = "m.sticker"

// LegacyPack is the legacy on-disk document.
type LegacyPack struct {
	Title        string          `json:"title"`
	ID           string          `json:"id"`
	TelegramPack *LegacyPackInfo `json:"net.maunium.telegram.pack,omitempty"`
	Stickers     []LegacySticker `json:"stickers"`
}

// LegacyPackInfo identifies the originating Telegram pack.
type LegacyPackInfo struct {
	ShortName string `json:"short_name"`
	Hash      string `json:"hash,omitempty"`
}

// LegacySticker is one legacy pack entry.
type LegacySticker struct {
	Body            string             `json:"body"`
	URL             string             `json:"url"`
	Info            LegacyStickerInfo  `json:"info"`
	MsgType         string             `json:"msgtype"`
	ID              string             `json:"id"`
	TelegramSticker *LegacyStickerMeta `json:"net.maunium.telegram.sticker,omitempty"`
}

// LegacyStickerInfo flattens the image metadata next to the thumbnail pair.
type LegacyStickerInfo struct {
	Meta
	ThumbnailURL  string `json:"thumbnail_url"`
	ThumbnailInfo Meta   `json:"thumbnail_info"`
}

// LegacyStickerMeta is the per-sticker provenance block.
type LegacyStickerMeta struct {
	Pack      LegacyStickerPackRef `json:"pack"`
	ID        string               `json:"id"`
	Emoticons []string             `json:"emoticons"`
}

// LegacyStickerPackRef references the originating pack from a sticker.
type LegacyStickerPackRef struct {
	ID        string `json:"id"`
	ShortName string `json:"short_name"`
}

// Legacy derives the legacy document from the canonical model.
func (p *Pack) Legacy() *LegacyPack {
	out := &LegacyPack{
		Title:    p.Title,
		ID:       p.ID,
		Stickers: make([]LegacySticker, 0, len(p.Stickers)),
	}
	if p.Name != "" {
		out.TelegramPack = &LegacyPackInfo{ShortName: p.Name}
	}

	for _, s := range p.Stickers {
		// No distinct thumbnail in the legacy shape: the primary image
		// doubles as its own thumbnail.
		thumb := s.Thumbnail
		if thumb == nil {
			thumb = &s.Image
		}
		entry := LegacySticker{
			Body: s.Body,
			URL:  s.Image.URL,
			Info: LegacyStickerInfo{
				Meta:          s.Image.Meta,
				ThumbnailURL:  thumb.URL,
				ThumbnailInfo: thumb.Meta,
			},
			MsgType: LegacyMsgType,
			ID:      s.Image.URL,
		}
		if s.Telegram != nil {
			entry.ID = "tg_file_id_" + s.Telegram.FileID
			entry.TelegramSticker = &LegacyStickerMeta{
				Pack: LegacyStickerPackRef{
					ID:        p.ID,
					ShortName: s.Telegram.PackName,
				},
				ID:        s.Telegram.FileID,
				Emoticons: s.Telegram.Emoticons,
			}
		}
		out.Stickers = append(out.Stickers, entry)
	}
	return out
}

// Canonical rebuilds the canonical model from a legacy document. Combined
// with Pack.Modern this gives the lossless legacy→modern conversion used
// when ingesting previously exported packs.
func (lp *LegacyPack) Canonical() *Pack {
	p := &Pack{
		Title: lp.Title,
		ID:    lp.ID,
	}
	if lp.TelegramPack != nil {
		p.Name = lp.TelegramPack.ShortName
	}
	for i, s := range lp.Stickers {
		sticker := Sticker{
			Body:     s.Body,
			Emoticon: s.Body,
			Image: MediaRef{
				URL:  s.URL,
				Meta: s.Info.Meta,
			},
		}
		if s.Info.ThumbnailURL != "" && s.Info.ThumbnailURL != s.URL {
			sticker.Thumbnail = &MediaRef{URL: s.Info.ThumbnailURL, Meta: s.Info.ThumbnailInfo}
		}
		if s.TelegramSticker != nil {
			sticker.Telegram = &TelegramInfo{
				PackName:  s.TelegramSticker.Pack.ShortName,
				FileID:    s.TelegramSticker.ID,
				Emoticons: s.TelegramSticker.Emoticons,
				Index:     i,
			}
			if len(s.TelegramSticker.Emoticons) > 0 {
				sticker.Emoticon = s.TelegramSticker.Emoticons[0]
			}
		}
		p.Stickers = append(p.Stickers, sticker)
	}
	return p
}
