package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OAuthClient drives the authorization-code identity flow against the chat
// platform's OAuth endpoints.
type OAuthClient struct {
	clientID     string
	clientSecret string
	redirectURI  string
	baseURL      string
	client       *http.Client
}

// NewOAuthClient builds an OAuth client rooted at the platform API base URL.
func NewOAuthClient(clientID, clientSecret, redirectURI, baseURL string) *OAuthClient {
	return &OAuthClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       &http.Client{Timeout: 15 * time.Second},
	}
}

// AuthorizeURL renders the user-facing consent URL carrying the given state.
func (o *OAuthClient) AuthorizeURL(state string) string {
	query := url.Values{
		"client_id":     {o.clientID},
		"redirect_uri":  {o.redirectURI},
		"response_type": {"code"},
		"scope":         {"identify"},
		"state":         {state},
	}
	return o.baseURL + "/oauth2/authorize?" + query.Encode()
}

// Exchange swaps an authorization code for a bearer token.
func (o *OAuthClient) Exchange(ctx context.Context, code string) (string, error) {
	form := url.Values{
		"client_id":     {o.clientID},
		"client_secret": {o.clientSecret},
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {o.redirectURI},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: token exchange returned %d: %s", ErrTransport, resp.StatusCode, body)
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrTransport)
	}
	return token.AccessToken, nil
}

// Identity resolves the authorizing user's id and username.
func (o *OAuthClient) Identity(ctx context.Context, accessToken string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/users/@me", nil)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("%w: identity lookup returned %d", ErrTransport, resp.StatusCode)
	}

	var user struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return user.ID, user.Username, nil
}
