package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// newTestProvider points both OAuth endpoints at a local httptest server.
func newTestProvider(t *testing.T, handler http.Handler) *GitHubProvider {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p := NewGitHubProvider("client-id", "client-secret", "http://localhost:8080/auth/github/callback")
	p.config.Endpoint = oauth2.Endpoint{
		AuthURL:  server.URL + "/login/oauth/authorize",
		TokenURL: server.URL + "/login/oauth/access_token",
	}
	p.userAPI = server.URL + "/user"

	return p
}

func TestGitHubProvider_AuthURL(t *testing.T) {
	p := NewGitHubProvider("client-id", "client-secret", "http://localhost:8080/auth/github/callback")

	u := p.AuthURL("state-123")
	assert.Contains(t, u, "github.com/login/oauth/authorize")
	assert.Contains(t, u, "state=state-123")
	assert.Contains(t, u, "client_id=client-id")
	assert.Contains(t, u, "scope=repo+read%3Auser+user%3Aemail")
}

func TestGitHubProvider_Exchange(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/login/oauth/access_token"):
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "the-code", r.FormValue("code"))

			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token": "gho_abc123", "token_type": "bearer"}`)
		case r.URL.Path == "/user":
			assert.Equal(t, "Bearer gho_abc123", r.Header.Get("Authorization"))

			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id": 99, "login": "octocat", "name": "The Octocat", "email": "octo@github.com"}`)
		default:
			t.Fatalf("unexpected request: %s", r.URL.Path)
		}
	})

	p := newTestProvider(t, handler)

	user, token, err := p.Exchange(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, int64(99), user.ID)
	assert.Equal(t, "octocat", user.Login)
	assert.Equal(t, "The Octocat", user.Name)
	assert.Equal(t, "octo@github.com", user.Email)
	assert.Equal(t, "gho_abc123", token)
}

func TestGitHubProvider_Exchange_BadCode(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	p := newTestProvider(t, handler)

	_, _, err := p.Exchange(context.Background(), "bad-code")
	assert.Error(t, err)
}

func TestGitHubProvider_Exchange_InvalidUser(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasPrefix(r.URL.Path, "/login/oauth/access_token") {
			fmt.Fprint(w, `{"access_token": "gho_abc123", "token_type": "bearer"}`)
			return
		}
		fmt.Fprint(w, `{"id": 0}`)
	})

	p := newTestProvider(t, handler)

	_, _, err := p.Exchange(context.Background(), "the-code")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid user")
}
