package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubUser is the subset of the GitHub /user response the app needs.
type GitHubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// GitHubProvider runs the GitHub authorization code flow. The granted access
// token is kept because the app calls the GitHub API on the user's behalf
// afterwards, so the "repo" scope is requested up front.
type GitHubProvider struct {
	config  *oauth2.Config
	userAPI string
}

func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"repo", "read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		userAPI: "https://api.github.com/user",
	}
}

// AuthURL returns the GitHub authorization URL for the given CSRF state.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for the user's profile and access
// token. The token is stored on the user row so repository and issue calls
// can be made later without re-authorization.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, string, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("exchanging OAuth code: %w", err)
	}

	client := p.config.Client(ctx, oauthToken)

	resp, err := client.Get(p.userAPI)
	if err != nil {
		return nil, "", fmt.Errorf("calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("GitHub /user API returned status %d", resp.StatusCode)
	}

	var ghUser GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&ghUser); err != nil {
		return nil, "", fmt.Errorf("decoding GitHub /user response: %w", err)
	}
	if ghUser.ID == 0 {
		return nil, "", fmt.Errorf("GitHub returned an invalid user")
	}

	return &ghUser, oauthToken.AccessToken, nil
}
