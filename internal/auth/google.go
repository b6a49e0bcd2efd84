package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/Sequence-Game/auth-module/internal/apperror"
)

// defaultGoogleUserInfoURL is Google's OpenID Connect userinfo endpoint.
// Overridable via config so tests can point it at an httptest server.
const defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// ErrProviderToken means the identity provider rejected the access token the
// client gave us — the token is expired, revoked, or was never valid. It is
// an *apperror.AppError so the handler layer maps it to a 401.
var ErrProviderToken = apperror.Unauthorized("invalid provider token")

// SocialIdentity is the verified identity tuple an external provider vouches
// for. ExternalID is the provider's stable user ID (the OIDC "sub") — email
// can change on the provider side, sub never does.
type SocialIdentity struct {
	Email      string
	ExternalID string
}

// googleUserInfo is the portion of Google's userinfo response we care about.
type googleUserInfo struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
}

// GoogleProvider talks to Google as the external identity provider.
//
// It supports two entry points:
//
//   - VerifyToken: the client already holds a Google access token (mobile /
//     SPA flows) and posts it to /social-login. We call the userinfo endpoint
//     with it; if Google accepts the token, the identity is verified.
//   - AuthURL + Exchange: the classic server-side authorization-code flow for
//     browsers. The code-for-token exchange happens server-to-server with our
//     ClientSecret, so the token never touches the browser.
//
// Both paths end in the same verified SocialIdentity.
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

// NewGoogleProvider creates a GoogleProvider with the given OAuth app
// credentials. callbackURL must exactly match the redirect URI registered in
// the Google Cloud console. userInfoURL may be empty to use Google's real
// endpoint.
func NewGoogleProvider(clientID, clientSecret, callbackURL, userInfoURL string) *GoogleProvider {
	if userInfoURL == "" {
		userInfoURL = defaultGoogleUserInfoURL
	}
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: userInfoURL,
	}
}

// Name returns the provider key stored in social_accounts.provider.
func (p *GoogleProvider) Name() string {
	return "google"
}

// AuthURL returns the URL to redirect the browser to for authorization.
// The state value is verified on callback to prevent CSRF.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for a verified identity: code →
// access token (server-to-server), then the same userinfo call VerifyToken
// makes.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*SocialIdentity, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w",
			apperror.Upstream("Google token exchange failed"))
	}
	return p.VerifyToken(ctx, token.AccessToken)
}

// VerifyToken checks a Google access token by calling the userinfo endpoint
// with it. Google accepting the bearer token IS the verification — we never
// see or check the user's Google credentials ourselves.
//
// Returns ErrProviderToken if Google answers non-200, or an upstream error
// if Google is unreachable.
func (p *GoogleProvider) VerifyToken(ctx context.Context, accessToken string) (*SocialIdentity, error) {
	// oauth2.NewClient gives us an *http.Client that attaches
	// "Authorization: Bearer <token>" to every request.
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	client := oauth2.NewClient(ctx, src)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building userinfo request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling Google userinfo: %w",
			apperror.Upstream("Google userinfo unreachable"))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: Google userinfo returned status %d: %w",
			resp.StatusCode, ErrProviderToken)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("auth: decoding Google userinfo response: %w", err)
	}

	if info.Sub == "" || info.Email == "" {
		return nil, fmt.Errorf("auth: Google userinfo missing sub or email: %w", ErrProviderToken)
	}

	return &SocialIdentity{
		Email:      info.Email,
		ExternalID: info.Sub,
	}, nil
}
