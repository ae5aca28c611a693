package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// newTestClient creates a Client pointing at a test HTTP server.
func newTestClient(server *httptest.Server) *Client {
	return &Client{
		httpClient: server.Client(),
		botKey:     "test-bot-key",
		baseURL:    server.URL,
	}
}

func TestGetStickerPack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/bottest-bot-key/getStickerSet") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("name") != "demo_pack" {
			t.Errorf("unexpected name param: %s", r.URL.Query().Get("name"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"result": StickerPack{
				Name:  "demo_pack",
				Title: "Demo Pack",
				Stickers: []Sticker{
					{Emoji: "😀", FileID: "file-1", Width: 512, Height: 512},
					{Emoji: "😺", FileID: "file-2", Width: 512, Height: 512, IsVideo: true},
				},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server)
	pack, err := client.GetStickerPack(context.Background(), "demo_pack")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pack.Title != "Demo Pack" {
		t.Errorf("expected title Demo Pack, got %s", pack.Title)
	}
	if len(pack.Stickers) != 2 {
		t.Fatalf("expected 2 stickers, got %d", len(pack.Stickers))
	}
	if !pack.Stickers[1].IsVideo {
		t.Errorf("expected second sticker to be a video")
	}
}

func TestGetStickerPackAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"ok":          false,
			"error_code":  404,
			"description": "Not Found: STICKERSET_INVALID",
		})
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.GetStickerPack(context.Background(), "nope")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Code != 404 {
		t.Errorf("expected code 404, got %d", apiErr.Code)
	}
	if !strings.Contains(apiErr.Description, "STICKERSET_INVALID") {
		t.Errorf("description not preserved: %s", apiErr.Description)
	}
}

func TestGetFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("file_id") != "file-1" {
			t.Errorf("unexpected file_id: %s", r.URL.Query().Get("file_id"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": File{FilePath: "stickers/sticker_001.webp"},
		})
	}))
	defer server.Close()

	client := newTestClient(server)
	file, err := client.GetFile(context.Background(), "file-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if file.FilePath != "stickers/sticker_001.webp" {
		t.Errorf("unexpected file path: %s", file.FilePath)
	}
}

func TestDownload(t *testing.T) {
	payload := []byte("sticker-bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/file/bottest-bot-key/stickers/sticker_001.webp") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write(payload)
	}))
	defer server.Close()

	client := newTestClient(server)
	data, err := client.Download(context.Background(), "stickers/sticker_001.webp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("downloaded bytes do not match: %q", data)
	}
}

func TestPackURLToName(t *testing.T) {
	tests := []struct {
		url      string
		expected string
		wantErr  bool
	}{
		{"https://t.me/addstickers/foo", "foo", false},
		{"t.me/addstickers/foo", "foo", false},
		{"tg://addstickers?set=foo", "foo", false},
		{"https://example.com/foo", "", true},
		{"https://t.me/addstickers/", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			name, err := PackURLToName(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got nil", tt.url)
				}
				for _, prefix := range packURLPrefixes {
					if !strings.Contains(err.Error(), prefix) {
						t.Errorf("error should name prefix %q: %v", prefix, err)
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if name != tt.expected {
				t.Errorf("PackURLToName(%q) = %q, want %q", tt.url, name, tt.expected)
			}
		})
	}
}
