// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	// BaseURL qualifies relative image URLs when composing issue bodies.
	BaseURL   string
	JWTSecret string

	GitHubClientID     string
	GitHubClientSecret string
	// OAuthCallbackURL must match the callback registered on the GitHub
	// OAuth app exactly.
	OAuthCallbackURL string

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string
}

// HasGitHubOAuth returns true when an OAuth app is configured. If absent,
// the app starts but the GitHub login/link routes report a configuration
// error instead of redirecting.
func (c *Config) HasGitHubOAuth() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// HasCloudinary returns true when asset-host credentials are configured.
func (c *Config) HasCloudinary() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// Load reads configuration from environment variables and returns a
// validated Config. GITBACK_JWT_SECRET is required (min 16 chars); OAuth
// and Cloudinary credentials are optional. Optional variables with
// defaults: GITBACK_LISTEN_ADDR (127.0.0.1:8080), GITBACK_DB_PATH
// (gitback.db), GITBACK_BASE_URL (http://<listen addr>).
func Load() (*Config, error) {
	secret := os.Getenv("GITBACK_JWT_SECRET")
	if len(secret) < 16 {
		return nil, fmt.Errorf("GITBACK_JWT_SECRET must be set to at least 16 characters")
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("GITBACK_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "gitback.db"
	if v, ok := os.LookupEnv("GITBACK_DB_PATH"); ok {
		dbPath = v
	}

	baseURL := "http://" + listenAddr
	if v, ok := os.LookupEnv("GITBACK_BASE_URL"); ok {
		baseURL = strings.TrimRight(v, "/")
	}

	folder := "feedback_images"
	if v, ok := os.LookupEnv("CLOUDINARY_FOLDER"); ok && v != "" {
		folder = v
	}

	return &Config{
		ListenAddr:          listenAddr,
		DBPath:              dbPath,
		BaseURL:             baseURL,
		JWTSecret:           secret,
		GitHubClientID:      os.Getenv("GITBACK_GITHUB_CLIENT_ID"),
		GitHubClientSecret:  os.Getenv("GITBACK_GITHUB_CLIENT_SECRET"),
		OAuthCallbackURL:    os.Getenv("GITBACK_OAUTH_CALLBACK_URL"),
		CloudinaryCloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: os.Getenv("CLOUDINARY_API_SECRET"),
		CloudinaryFolder:    folder,
	}, nil
}
