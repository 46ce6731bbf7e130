// Package cloudinary implements the AssetStore port against the Cloudinary
// signed upload API.
package cloudinary

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/undermod/gitback/internal/config"
	"github.com/undermod/gitback/internal/domain/port/driven"
)

const defaultBaseURL = "https://api.cloudinary.com/v1_1"

// Compile-time interface satisfaction check.
var _ driven.AssetStore = (*Client)(nil)

// Client uploads and destroys image assets using Cloudinary's REST API with
// SHA1-signed requests. All assets live under a single configured folder.
type Client struct {
	cloudName  string
	apiKey     string
	apiSecret  string
	folder     string
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a Cloudinary client from the application config.
func NewClient(cfg config.Config) *Client {
	return &Client{
		cloudName:  cfg.CloudinaryCloudName,
		apiKey:     cfg.CloudinaryAPIKey,
		apiSecret:  cfg.CloudinaryAPISecret,
		folder:     cfg.CloudinaryFolder,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
}

// NewClientWithHTTPClient creates a Client against a custom endpoint. This
// constructor is intended for testing, allowing injection of an httptest
// server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, cfg config.Config) *Client {
	c := NewClient(cfg)
	c.httpClient = httpClient
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// Upload stores the image and returns its HTTPS delivery URL. The asset gets
// a random public id under the configured folder; the original filename is
// kept only for logging.
func (c *Client) Upload(ctx context.Context, r io.Reader, filename string) (string, error) {
	publicID := uuid.NewString()
	ts := strconv.FormatInt(c.now().Unix(), 10)

	var body strings.Builder
	mw := multipart.NewWriter(&body)

	fields := map[string]string{
		"api_key":   c.apiKey,
		"folder":    c.folder,
		"public_id": publicID,
		"timestamp": ts,
		"signature": c.sign("folder=" + c.folder + "&public_id=" + publicID + "&timestamp=" + ts),
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return "", fmt.Errorf("writing form field %s: %w", name, err)
		}
	}

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("creating file part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("copying file contents: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finalizing form: %w", err)
	}

	endpoint := c.baseURL + "/" + c.cloudName + "/image/upload"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body.String()))
	if err != nil {
		return "", fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result struct {
		SecureURL string `json:"secure_url"`
		URL       string `json:"url"`
		Error     struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := c.do(req, &result); err != nil {
		return "", fmt.Errorf("uploading %s: %w", filename, err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("uploading %s: %s", filename, result.Error.Message)
	}

	uploadedURL := result.SecureURL
	if uploadedURL == "" {
		uploadedURL = result.URL
	}
	if uploadedURL == "" {
		return "", fmt.Errorf("uploading %s: no url in response", filename)
	}

	slog.Debug("asset uploaded", "filename", filename, "public_id", publicID)

	return uploadedURL, nil
}

// Delete destroys the asset behind a delivery URL. The public id is the last
// URL segment with its file extension stripped, re-prefixed with the
// configured folder.
func (c *Client) Delete(ctx context.Context, assetURL string) error {
	publicID, err := c.publicIDFromURL(assetURL)
	if err != nil {
		return err
	}

	ts := strconv.FormatInt(c.now().Unix(), 10)

	form := url.Values{}
	form.Set("public_id", publicID)
	form.Set("api_key", c.apiKey)
	form.Set("timestamp", ts)
	form.Set("signature", c.sign("public_id="+publicID+"&timestamp="+ts))

	endpoint := c.baseURL + "/" + c.cloudName + "/image/destroy"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating destroy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var result struct {
		Result string `json:"result"`
		Error  struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := c.do(req, &result); err != nil {
		return fmt.Errorf("destroying %s: %w", publicID, err)
	}
	if result.Error.Message != "" {
		return fmt.Errorf("destroying %s: %s", publicID, result.Error.Message)
	}
	// "not found" counts as deleted; the remote asset is already gone.
	if result.Result != "ok" && result.Result != "not found" {
		return fmt.Errorf("destroying %s: unexpected result %q", publicID, result.Result)
	}

	return nil
}

func (c *Client) do(req *http.Request, out any) error {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	return nil
}

// sign computes the Cloudinary request signature: the SHA1 hex digest of the
// alphabetically ordered parameter string with the API secret appended.
func (c *Client) sign(params string) string {
	return fmt.Sprintf("%x", sha1.Sum([]byte(params+c.apiSecret)))
}

func (c *Client) publicIDFromURL(assetURL string) (string, error) {
	u, err := url.Parse(assetURL)
	if err != nil {
		return "", fmt.Errorf("parsing asset url %q: %w", assetURL, err)
	}

	last := path.Base(u.Path)
	if last == "." || last == "/" || last == "" {
		return "", fmt.Errorf("asset url %q has no path segment", assetURL)
	}

	publicID := strings.TrimSuffix(last, path.Ext(last))
	if c.folder != "" {
		publicID = c.folder + "/" + publicID
	}

	return publicID, nil
}
