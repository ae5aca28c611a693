// Package telegram provides a client for the Telegram Bot API endpoints
// needed to read a sticker pack: getStickerSet, getFile, and the file
// download endpoint.
//
// Every Bot API response is a tagged union: {"ok":true,"result":...} on
// success or {"ok":false,"error_code":...,"description":...} on failure.
// Non-ok responses are surfaced as *APIError with code and description
// preserved.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// defaultBaseURL is the Telegram Bot API base URL.
	defaultBaseURL = "https://api.telegram.org"

	// defaultTimeout is the HTTP client timeout for API calls.
	defaultTimeout = 30 * time.Second
)

// Client provides read access to a bot's sticker packs via the Bot API.
type Client struct {
	httpClient *http.Client
	botKey     string
	baseURL    string
}

// NewClient creates a Telegram Bot API client.
// The bot key is pre-provisioned, read-only configuration.
func NewClient(botKey string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		botKey:  botKey,
		baseURL: defaultBaseURL,
	}
}

// APIError is a well-formed non-success Bot API response.
type APIError struct {
	Code        int    `json:"error_code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram request was not successful: %d %s", e.Code, e.Description)
}

// apiResponse is the tagged-union envelope of every Bot API response.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Code        int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

// StickerPack is the getStickerSet result.
type StickerPack struct {
	Name       string    `json:"name"`
	Title      string    `json:"title"`
	IsAnimated bool      `json:"is_animated"`
	IsVideo    bool      `json:"is_video"`
	Stickers   []Sticker `json:"stickers"`
}

// Sticker is one sticker as listed in a pack.
type Sticker struct {
	Emoji      string `json:"emoji"`
	FileID     string `json:"file_id"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	IsAnimated bool   `json:"is_animated"`
	IsVideo    bool   `json:"is_video"`
}

// File is the getFile result; FilePath is the download location of the
// sticker's payload and doubles as its original file name.
type File struct {
	FilePath string `json:"file_path"`
}

// GetStickerPack fetches a sticker pack's metadata and asset list by name.
func (c *Client) GetStickerPack(ctx context.Context, name string) (*StickerPack, error) {
	log.Debug().Str("pack", name).Msg("Fetching sticker pack metadata")
	var pack StickerPack
	if err := c.get(ctx, "getStickerSet", url.Values{"name": {name}}, &pack); err != nil {
		return nil, fmt.Errorf("get sticker pack %q: %w", name, err)
	}
	log.Info().
		Str("pack", pack.Name).
		Str("title", pack.Title).
		Int("stickers", len(pack.Stickers)).
		Msg("Sticker pack found")
	return &pack, nil
}

// GetFile resolves a sticker's file id to its download path.
func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	var file File
	if err := c.get(ctx, "getFile", url.Values{"file_id": {fileID}}, &file); err != nil {
		return nil, fmt.Errorf("get file %q: %w", fileID, err)
	}
	return &file, nil
}

// Download fetches the raw bytes of a file previously resolved via GetFile.
func (c *Client) Download(ctx context.Context, filePath string) ([]byte, error) {
	reqURL := fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.botKey, filePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", filePath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Code: resp.StatusCode, Description: "file download failed"}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read download body: %w", err)
	}
	log.Debug().Str("path", filePath).Int("size_bytes", len(data)).Msg("File downloaded")
	return data, nil
}

// get performs a Bot API method call and decodes the tagged response.
func (c *Client) get(ctx context.Context, method string, params url.Values, out any) error {
	reqURL := fmt.Sprintf("%s/bot%s/%s?%s", c.baseURL, c.botKey, method, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !envelope.OK {
		return &APIError{Code: envelope.Code, Description: envelope.Description}
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
