package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every env var that Load() reads.
var allConfigKeys = []string{
	"GITBACK_JWT_SECRET",
	"GITBACK_LISTEN_ADDR",
	"GITBACK_DB_PATH",
	"GITBACK_BASE_URL",
	"GITBACK_GITHUB_CLIENT_ID",
	"GITBACK_GITHUB_CLIENT_SECRET",
	"GITBACK_OAUTH_CALLBACK_URL",
	"CLOUDINARY_CLOUD_NAME",
	"CLOUDINARY_API_KEY",
	"CLOUDINARY_API_SECRET",
	"CLOUDINARY_FOLDER",
}

// isolateConfigEnv saves and unsets all config env vars so tests don't
// inherit values from the host environment.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("GITBACK_JWT_SECRET", "0123456789abcdef")
	t.Setenv("GITBACK_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("GITBACK_DB_PATH", "/tmp/test.db")
	t.Setenv("GITBACK_BASE_URL", "https://gitback.example.com/")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, "https://gitback.example.com", cfg.BaseURL, "trailing slash trimmed")
	assert.Equal(t, "feedback_images", cfg.CloudinaryFolder)
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("GITBACK_JWT_SECRET", "0123456789abcdef")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "gitback.db", cfg.DBPath)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.BaseURL)
	assert.False(t, cfg.HasGitHubOAuth())
	assert.False(t, cfg.HasCloudinary())
}

func TestLoad_MissingSecret(t *testing.T) {
	isolateConfigEnv(t)

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ShortSecret(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("GITBACK_JWT_SECRET", "short")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_OptionalCredentials(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("GITBACK_JWT_SECRET", "0123456789abcdef")
	t.Setenv("GITBACK_GITHUB_CLIENT_ID", "Iv1.abc")
	t.Setenv("GITBACK_GITHUB_CLIENT_SECRET", "secret")
	t.Setenv("CLOUDINARY_CLOUD_NAME", "demo")
	t.Setenv("CLOUDINARY_API_KEY", "key")
	t.Setenv("CLOUDINARY_API_SECRET", "apisecret")
	t.Setenv("CLOUDINARY_FOLDER", "custom_folder")

	cfg, err := Load()

	require.NoError(t, err)
	assert.True(t, cfg.HasGitHubOAuth())
	assert.True(t, cfg.HasCloudinary())
	assert.Equal(t, "custom_folder", cfg.CloudinaryFolder)
}
