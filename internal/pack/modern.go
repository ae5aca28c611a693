package pack

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Modern (MSC2545) pack shape: an ordered mapping from a label to a sticker
// object with inline metadata and a usage-tag set, plus top-level display
// metadata.

// Usage tags a sticker's intended use in the modern shape.
type Usage string

const (
	UsageSticker  Usage = "sticker"
	UsageEmoticon Usage = "emoticon"
)

// ModernPack is the modern on-disk document.
type ModernPack struct {
	Images *StickerMap `json:"images"`
	Pack   PackInfo    `json:"pack"`
}

// PackInfo is the modern shape's top-level display metadata.
type PackInfo struct {
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// ModernSticker is one entry of the images mapping.
type ModernSticker struct {
	Body  string  `json:"body"`
	Info  Meta    `json:"info"`
	URL   string  `json:"url"`
	Usage []Usage `json:"usage"`
}

// StickerMap is a JSON object that preserves insertion order, since the
// modern shape's images mapping is ordered.
type StickerMap struct {
	keys   []string
	values map[string]ModernSticker
}

// NewStickerMap returns an empty ordered sticker map.
func NewStickerMap() *StickerMap {
	return &StickerMap{values: make(map[string]ModernSticker)}
}

// Set inserts or replaces the entry for key, keeping first-insert order.
func (m *StickerMap) Set(key string, value ModernSticker) {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the entry for key, if any.
func (m *StickerMap) Get(key string) (ModernSticker, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *StickerMap) Keys() []string {
	return m.keys
}

// Len returns the number of entries.
func (m *StickerMap) Len() int {
	return len(m.keys)
}

// MarshalJSON writes the entries as one JSON object in insertion order.
func (m *StickerMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		valueJSON, err := json.Marshal(m.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(valueJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object preserving its key order.
func (m *StickerMap) UnmarshalJSON(data []byte) error {
	m.keys = nil
	m.values = make(map[string]ModernSticker)

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("images must be a JSON object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected key token %v", keyTok)
		}
		var value ModernSticker
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decode sticker %q: %w", key, err)
		}
		m.Set(key, value)
	}
	// consume the closing brace
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// Modern derives the modern document from the canonical model. Entries are
// keyed by emoticon when one exists, else by zero-padded original position.
func (p *Pack) Modern() *ModernPack {
	images := NewStickerMap()
	for i, s := range p.Stickers {
		usage := []Usage{UsageSticker}
		key := s.Emoticon
		if key == "" {
			key = fmt.Sprintf("%04d", i)
		} else {
			usage = append(usage, UsageEmoticon)
		}
		images.Set(key, ModernSticker{
			Body:  s.Body,
			Info:  s.Image.Meta,
			URL:   s.Image.URL,
			Usage: usage,
		})
	}
	return &ModernPack{
		Images: images,
		Pack:   PackInfo{DisplayName: p.Title},
	}
}
