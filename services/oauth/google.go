package oauthsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/kozi/core"
	"github.com/trezcool/kozi/core/user"
)

const (
	defaultAuthURL     = "https://accounts.google.com/o/oauth2/auth"
	defaultTokenURL    = "https://oauth2.googleapis.com/token"
	defaultUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
)

// GoogleProvider signs users in with Google OAuth 2.0: authorization-code
// exchange followed by a userinfo fetch.
type GoogleProvider struct {
	clientID     string
	clientSecret string
	redirectURL  string

	// overridable in tests
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	hc *http.Client
}

func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURL:  redirectURL,
		AuthURL:      defaultAuthURL,
		TokenURL:     defaultTokenURL,
		UserInfoURL:  defaultUserInfoURL,
		hc:           &http.Client{Timeout: 10 * time.Second},
	}
}

// NewGoogleProviderFromConfig returns a ready provider, or (nil, false) when
// the oauth credentials are missing or still carrying sample-file placeholders.
func NewGoogleProviderFromConfig(conf *core.Config) (*GoogleProvider, bool) {
	if !conf.GoogleOAuthConfigured() {
		return nil, false
	}
	return NewGoogleProvider(conf.Google.ClientID, conf.Google.ClientSecret, conf.Google.RedirectURL), true
}

// LoginURL builds the Google consent screen URL; state round-trips the `next`
// destination through the provider.
func (p *GoogleProvider) LoginURL(state string) string {
	params := url.Values{
		"client_id":     {p.clientID},
		"redirect_uri":  {p.redirectURL},
		"response_type": {"code"},
		"scope":         {"openid email profile"},
		"state":         {state},
	}
	return p.AuthURL + "?" + params.Encode()
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type userInfo struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// ExchangeCode trades an authorization code for the Google profile behind it.
func (p *GoogleProvider) ExchangeCode(ctx context.Context, code string) (user.ExternalIdentity, error) {
	token, err := p.exchangeToken(ctx, code)
	if err != nil {
		return user.ExternalIdentity{}, errors.Wrap(err, "exchanging token")
	}
	info, err := p.fetchUserInfo(ctx, token.AccessToken)
	if err != nil {
		return user.ExternalIdentity{}, errors.Wrap(err, "fetching user info")
	}
	return user.ExternalIdentity{
		Email:     info.Email,
		Name:      info.Name,
		AvatarURL: info.Picture,
	}, nil
}

func (p *GoogleProvider) exchangeToken(ctx context.Context, code string) (tokenResponse, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {p.clientID},
		"client_secret": {p.clientSecret},
		"redirect_uri":  {p.redirectURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return tokenResponse{}, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := p.hc.Do(req)
	if err != nil {
		return tokenResponse{}, errors.Wrap(err, "calling token endpoint")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return tokenResponse{}, errors.Errorf("token exchange failed with status %d", res.StatusCode)
	}
	var token tokenResponse
	if err = json.NewDecoder(res.Body).Decode(&token); err != nil {
		return tokenResponse{}, errors.Wrap(err, "decoding response body")
	}
	if token.AccessToken == "" {
		return tokenResponse{}, errors.New("empty access token in response")
	}
	return token, nil
}

func (p *GoogleProvider) fetchUserInfo(ctx context.Context, accessToken string) (userInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.UserInfoURL, nil)
	if err != nil {
		return userInfo{}, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	res, err := p.hc.Do(req)
	if err != nil {
		return userInfo{}, errors.Wrap(err, "calling userinfo endpoint")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return userInfo{}, errors.Errorf("user info fetch failed with status %d", res.StatusCode)
	}
	var info userInfo
	if err = json.NewDecoder(res.Body).Decode(&info); err != nil {
		return userInfo{}, errors.Wrap(err, "decoding response body")
	}
	if info.Email == "" {
		return userInfo{}, errors.New("empty email in user info response")
	}
	return info, nil
}
