package importer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/mkranz/matrix-sticker-import/internal/dedup"
	"github.com/mkranz/matrix-sticker-import/internal/media"
	"github.com/mkranz/matrix-sticker-import/internal/telegram"
)

// fakeSource serves a fixed pack; payload bytes are derived from the file id.
type fakeSource struct {
	pack    *telegram.StickerPack
	packErr error
}

func (s *fakeSource) GetStickerPack(ctx context.Context, name string) (*telegram.StickerPack, error) {
	if s.packErr != nil {
		return nil, s.packErr
	}
	return s.pack, nil
}

func (s *fakeSource) GetFile(ctx context.Context, fileID string) (*telegram.File, error) {
	return &telegram.File{FilePath: "stickers/" + fileID + ".webp"}, nil
}

func (s *fakeSource) Download(ctx context.Context, filePath string) ([]byte, error) {
	return []byte("payload-of-" + filePath), nil
}

// fakeTarget records uploads and issues one mxc URI per distinct payload.
type fakeTarget struct {
	mu      sync.Mutex
	uploads int
	refs    map[string]string
}

func (t *fakeTarget) UploadMedia(ctx context.Context, data []byte, filename, mimeType string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.uploads++
	if t.refs == nil {
		t.refs = make(map[string]string)
	}
	if ref, ok := t.refs[string(data)]; ok {
		return ref, nil
	}
	ref := fmt.Sprintf("mxc://example.org/media%d", len(t.refs))
	t.refs[string(data)] = ref
	return ref, nil
}

func (t *fakeTarget) uploadCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.uploads
}

// fakeConverter passes assets through, optionally failing on a marker in
// the file name.
type fakeConverter struct {
	animation bool
	video     bool
	failOn    string
}

func (c *fakeConverter) SupportsAnimation() bool { return c.animation }
func (c *fakeConverter) SupportsVideo() bool     { return c.video }

func (c *fakeConverter) ConvertAnimation(ctx context.Context, asset *media.Asset, opts media.RenderOptions) (*media.Asset, error) {
	if c.failOn != "" && strings.Contains(asset.FileName, c.failOn) {
		return nil, errors.New("renderer could not parse the container")
	}
	return asset, nil
}

func (c *fakeConverter) ConvertVideo(ctx context.Context, asset *media.Asset) (*media.Asset, error) {
	if c.failOn != "" && strings.Contains(asset.FileName, c.failOn) {
		return nil, errors.New("encoder failure")
	}
	return asset, nil
}

func staticPack(name string, n int) *telegram.StickerPack {
	p := &telegram.StickerPack{Name: name, Title: "Pack " + name}
	for i := 0; i < n; i++ {
		p.Stickers = append(p.Stickers, telegram.Sticker{
			Emoji:  "😀",
			FileID: fmt.Sprintf("s%d", i),
			Width:  512,
			Height: 512,
		})
	}
	return p
}

func newImporter(source Source, target Target, store dedup.Store, opts Options) *Importer {
	return &Importer{
		Source:    source,
		Target:    target,
		Converter: &fakeConverter{animation: true, video: true},
		Store:     store,
		Opts:      opts,
	}
}

func TestImportPackPartialFailureIsolation(t *testing.T) {
	source := &fakeSource{pack: staticPack("demo", 5)}
	target := &fakeTarget{}
	imp := newImporter(source, target, nil, Options{})
	imp.Converter = &fakeConverter{animation: true, video: true, failOn: "s2"}

	result, err := imp.ImportPack(context.Background(), "demo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Pack.Stickers) != 4 {
		t.Fatalf("expected 4 successes, got %d", len(result.Pack.Stickers))
	}
	if len(result.Failures) != 1 {
		t.Fatalf("expected exactly 1 failure, got %d", len(result.Failures))
	}
	if result.Failures[0].Index != 2 {
		t.Errorf("failure should carry original index 2, got %d", result.Failures[0].Index)
	}
	var convErr *ConversionError
	if !errors.As(result.Failures[0].Err, &convErr) {
		t.Errorf("expected *ConversionError, got %T", result.Failures[0].Err)
	}

	// Successes keep original ordering and provenance.
	wantIndices := []int{0, 1, 3, 4}
	for i, s := range result.Pack.Stickers {
		if s.Telegram.Index != wantIndices[i] {
			t.Errorf("sticker %d has index %d, want %d", i, s.Telegram.Index, wantIndices[i])
		}
		if s.Telegram.PackName != "demo" {
			t.Errorf("sticker %d missing pack provenance: %q", i, s.Telegram.PackName)
		}
	}
}

func TestImportPackEmptyDetection(t *testing.T) {
	pack := staticPack("allvideo", 3)
	for i := range pack.Stickers {
		pack.Stickers[i].IsVideo = true
	}
	source := &fakeSource{pack: pack}
	target := &fakeTarget{}
	imp := newImporter(source, target, nil, Options{})
	imp.Converter = &fakeConverter{animation: true, video: false} // video conversion disabled

	result, err := imp.ImportPack(context.Background(), "allvideo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Empty() {
		t.Error("pack with zero successes must report empty")
	}
	if len(result.Failures) != 0 {
		t.Errorf("filtered assets are not failures, got %d failures", len(result.Failures))
	}
	if result.Skipped != 3 {
		t.Errorf("expected 3 skipped, got %d", result.Skipped)
	}
	if target.uploadCount() != 0 {
		t.Errorf("no uploads expected, got %d", target.uploadCount())
	}
}

func TestImportPackMetadataFailureIsFatal(t *testing.T) {
	source := &fakeSource{packErr: &telegram.APIError{Code: 404, Description: "Not Found"}}
	imp := newImporter(source, &fakeTarget{}, nil, Options{})

	_, err := imp.ImportPack(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var rejection *PlatformRejection
	if !errors.As(err, &rejection) {
		t.Errorf("expected *PlatformRejection, got %T: %v", err, err)
	}
}

func TestImportPackDryRun(t *testing.T) {
	source := &fakeSource{pack: staticPack("demo", 1)}
	target := &fakeTarget{}
	imp := newImporter(source, target, nil, Options{DryRun: true})

	result, err := imp.ImportPack(context.Background(), "demo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Pack.Stickers) != 1 {
		t.Fatalf("expected 1 success, got %d", len(result.Pack.Stickers))
	}
	if result.Pack.Stickers[0].Image.URL != DryRunURI {
		t.Errorf("dry run must issue the placeholder reference, got %q", result.Pack.Stickers[0].Image.URL)
	}
	if target.uploadCount() != 0 {
		t.Errorf("dry run must never contact the target platform, got %d uploads", target.uploadCount())
	}
}

func TestImportPackIdempotentDedup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.jsonl")
	source := &fakeSource{pack: staticPack("demo", 3)}
	target := &fakeTarget{}

	runOnce := func() *Result {
		store, err := dedup.OpenFileStore(path)
		if err != nil {
			t.Fatalf("open store: %v", err)
		}
		defer store.Close()
		imp := newImporter(source, target, store, Options{})
		result, err := imp.ImportPack(context.Background(), "demo")
		if err != nil {
			t.Fatalf("import: %v", err)
		}
		return result
	}

	first := runOnce()
	if target.uploadCount() != 3 {
		t.Fatalf("first run should upload 3 payloads, got %d", target.uploadCount())
	}
	if first.NewUploads != 3 || first.Reused != 0 {
		t.Errorf("first run: new=%d reused=%d, want 3/0", first.NewUploads, first.Reused)
	}

	second := runOnce()
	if target.uploadCount() != 3 {
		t.Errorf("second run must not upload again, total uploads %d", target.uploadCount())
	}
	if second.NewUploads != 0 || second.Reused != 3 {
		t.Errorf("second run: new=%d reused=%d, want 0/3", second.NewUploads, second.Reused)
	}
	for i := range first.Pack.Stickers {
		if first.Pack.Stickers[i].Image.URL != second.Pack.Stickers[i].Image.URL {
			t.Errorf("sticker %d media reference changed across runs: %q vs %q",
				i, first.Pack.Stickers[i].Image.URL, second.Pack.Stickers[i].Image.URL)
		}
	}
}

// failingStore accepts lookups but cannot persist.
type failingStore struct{}

func (failingStore) Get(hash dedup.Hash) (string, bool) { return "", false }
func (failingStore) Add(hash dedup.Hash, url string) error {
	return errors.New("disk full")
}

func TestStoreWriteFailureDoesNotFailSticker(t *testing.T) {
	source := &fakeSource{pack: staticPack("demo", 1)}
	target := &fakeTarget{}
	imp := newImporter(source, target, failingStore{}, Options{})

	result, err := imp.ImportPack(context.Background(), "demo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Failures) != 0 {
		t.Fatalf("store write failure must not fail the sticker: %v", result.Failures)
	}
	if len(result.Pack.Stickers) != 1 || result.Pack.Stickers[0].Image.URL == "" {
		t.Error("sticker should keep its media reference despite the store failure")
	}
}

func TestImportPackKeepVideo(t *testing.T) {
	pack := staticPack("vid", 1)
	pack.Stickers[0].IsVideo = true
	source := &fakeSource{pack: pack}
	target := &fakeTarget{}
	imp := newImporter(source, target, nil, Options{KeepVideo: true})
	imp.Converter = &fakeConverter{} // no conversion support at all

	result, err := imp.ImportPack(context.Background(), "vid")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Pack.Stickers) != 1 {
		t.Fatalf("keep-video should upload the original payload, got %d successes", len(result.Pack.Stickers))
	}
	if result.Skipped != 0 {
		t.Errorf("keep-video must not skip, got %d skipped", result.Skipped)
	}
}
