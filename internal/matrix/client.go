// Package matrix provides a client for the Matrix client-server API calls
// the importer needs: the whoami pre-flight check, media upload, and the
// sticker picker widget account-data call.
//
// Matrix reports failures with a standard error body {"errcode","error"};
// it is decoded into *APIError and preserved alongside the HTTP status.
package matrix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// defaultTimeout is the HTTP client timeout for API calls. Media uploads
// of large animated stickers can take a while on slow links.
const defaultTimeout = 2 * time.Minute

// Client provides access to a Matrix homeserver on behalf of one user.
type Client struct {
	httpClient  *http.Client
	homeserver  string
	user        string
	accessToken string
}

// NewClient creates a Matrix client for the given homeserver and user.
// The access token is pre-provisioned, read-only configuration.
func NewClient(homeserver, user, accessToken string) (*Client, error) {
	if _, err := url.Parse(homeserver); err != nil {
		return nil, fmt.Errorf("invalid homeserver url %q: %w", homeserver, err)
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		homeserver:  homeserver,
		user:        user,
		accessToken: accessToken,
	}, nil
}

// User returns the Matrix user id the client acts as.
func (c *Client) User() string {
	return c.user
}

// APIError is the standard Matrix error response body.
type APIError struct {
	Errcode string `json:"errcode"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("matrix api request was not successful: %s %s", e.Errcode, e.Message)
}

// UploadError is a failed media upload, carrying the HTTP status and the
// decoded Matrix error if one could be read from the body.
type UploadError struct {
	StatusCode int
	Filename   string
	APIError   *APIError
}

func (e *UploadError) Error() string {
	if e.APIError != nil {
		return fmt.Sprintf("failed to upload %q with status code %d: %s %s",
			e.Filename, e.StatusCode, e.APIError.Errcode, e.APIError.Message)
	}
	return fmt.Sprintf("failed to upload %q with status code %d", e.Filename, e.StatusCode)
}

// Identity is the whoami result.
type Identity struct {
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id"`
}

// contentURI is the media upload result.
type contentURI struct {
	ContentURI string `json:"content_uri"`
}

// WhoAmI verifies that the homeserver is reachable and the access token
// valid. It is used as a pre-flight check before any asset work begins.
func (c *Client) WhoAmI(ctx context.Context) (*Identity, error) {
	reqURL := c.endpoint("/_matrix/client/v3/account/whoami", nil)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build whoami request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whoami: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.decodeError(resp)
	}
	var identity Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return nil, fmt.Errorf("decode whoami response: %w", err)
	}
	log.Debug().Str("user_id", identity.UserID).Msg("Matrix connection verified")
	return &identity, nil
}

// UploadMedia uploads a media payload to the homeserver's content
// repository and returns the issued mxc:// URI.
func (c *Client) UploadMedia(ctx context.Context, data []byte, filename, mimeType string) (string, error) {
	reqURL := c.endpoint("/_matrix/media/v3/upload", url.Values{"filename": {filename}})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		uploadErr := &UploadError{StatusCode: resp.StatusCode, Filename: filename}
		var apiErr APIError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil {
			uploadErr.APIError = &apiErr
		}
		return "", uploadErr
	}

	var uri contentURI
	if err := json.NewDecoder(resp.Body).Decode(&uri); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	log.Debug().
		Str("filename", filename).
		Str("mimetype", mimeType).
		Str("mxc", uri.ContentURI).
		Int("size_bytes", len(data)).
		Msg("Media uploaded")
	return uri.ContentURI, nil
}

// SetWidget points the user's sticker picker widget at widgetURL via the
// m.widgets account-data event.
func (c *Client) SetWidget(ctx context.Context, userID, widgetURL string) error {
	widget := newStickerWidget(widgetURL, userID)
	body, err := json.Marshal(widget)
	if err != nil {
		return fmt.Errorf("encode widget: %w", err)
	}

	reqURL := c.endpoint(fmt.Sprintf("/_matrix/client/v3/user/%s/account_data/m.widgets", url.PathEscape(c.user)), nil)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, reqURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build set-widget request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("set widget: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.decodeError(resp)
	}
	log.Info().Str("url", widgetURL).Msg("Sticker picker widget set")
	return nil
}

// endpoint builds a full request URL with the access token attached.
func (c *Client) endpoint(path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", c.accessToken)
	return fmt.Sprintf("%s%s?%s", c.homeserver, path, params.Encode())
}

// decodeError turns a non-200 response into an *APIError, falling back to
// the bare status if the body is not a standard error response.
func (c *Client) decodeError(resp *http.Response) error {
	var apiErr APIError
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Errcode == "" {
		return fmt.Errorf("matrix api request failed with status %d", resp.StatusCode)
	}
	return &apiErr
}
