package pack

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// Index is the picker front-end's index.json: the list of pack documents
// in a directory plus the homeserver that renders the preview thumbnails.
type Index struct {
	Packs         []string `json:"packs"`
	HomeserverURL string   `json:"homeserver_url"`
}

// BuildIndex lists the pack documents (any *.json except index.json) in
// dir. It fails if no pack document is found.
func BuildIndex(dir, homeserverURL string) (*Index, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read pack directory %s: %w", dir, err)
	}

	var packs []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || name == "index.json" {
			continue
		}
		log.Info().Str("pack", strings.TrimSuffix(name, ".json")).Msg("Adding pack to index")
		packs = append(packs, name)
	}
	if len(packs) == 0 {
		return nil, fmt.Errorf("no sticker packs found in %s", dir)
	}
	sort.Strings(packs)

	return &Index{Packs: packs, HomeserverURL: homeserverURL}, nil
}

// WriteFile serializes the index as JSON to path, optionally indented.
func (idx *Index) WriteFile(path string, pretty bool) error {
	var data []byte
	var err error
	if pretty {
		data, err = json.MarshalIndent(idx, "", "  ")
	} else {
		data, err = json.Marshal(idx)
	}
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write index %s: %w", path, err)
	}
	return nil
}
