package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rs/xid"

	"github.com/Sequence-Game/auth-module/internal/apperror"
	"github.com/Sequence-Game/auth-module/internal/auth"
	"github.com/Sequence-Game/auth-module/internal/service"
)

// SocialProvider is the slice of an external identity provider the handler
// needs. *auth.GoogleProvider satisfies it; tests plug in a stub.
type SocialProvider interface {
	// Name returns the provider key used in social account rows ("google").
	Name() string
	// AuthURL builds the browser redirect for the authorization-code flow.
	AuthURL(state string) string
	// Exchange trades an authorization code for a verified identity.
	Exchange(ctx context.Context, code string) (*auth.SocialIdentity, error)
	// VerifyToken validates a provider-issued access token directly.
	VerifyToken(ctx context.Context, accessToken string) (*auth.SocialIdentity, error)
}

// AuthHandler owns every authentication endpoint.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister / HandleLogin → credential signup and signin
//   - HandleRefresh / HandleLogout → refresh token lifecycle
//   - HandleSocialLogin            → token-based social signin (mobile/SPA)
//   - HandleGoogleLogin/Callback   → browser authorization-code flow
//   - HandleMe                     → current user's profile
//
// DEPENDENCY CHAIN:
//   - identity *service.IdentityService → users, passwords, social accounts
//   - sessions *service.SessionService  → token pairs, refresh, revocation
//   - provider SocialProvider           → verifies Google identities
type AuthHandler struct {
	identity *service.IdentityService
	sessions *service.SessionService
	provider SocialProvider
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected here;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(
	identity *service.IdentityService,
	sessions *service.SessionService,
	provider SocialProvider,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		identity: identity,
		sessions: sessions,
		provider: provider,
		logger:   logger,
	}
}

// ==== REQUEST / RESPONSE SHAPES ====

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type socialLoginRequest struct {
	Provider    string `json:"provider"`
	AccessToken string `json:"access_token"`
}

// TokenResponse is the body of every successful login/register/refresh.
// RefreshToken is omitted on refresh responses when rotation is disabled.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
}

// UserResponse is the profile shape returned by HandleMe.
type UserResponse struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	IsActive bool   `json:"is_active"`
}

func tokenResponse(pair *service.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
	}
}

// validateCredentials applies the request-level rules shared by register and
// login. Deeper checks (does the email exist, does the password match) belong
// to the service layer.
func validateCredentials(req credentialsRequest) error {
	if req.Email == "" {
		return apperror.ValidationFailed("email", "must not be empty")
	}
	if !strings.Contains(req.Email, "@") {
		return apperror.ValidationFailed("email", "must be a valid email address")
	}
	if len(req.Password) < 8 {
		return apperror.ValidationFailed("password", "must be at least 8 characters")
	}
	return nil
}

// decodeJSON decodes the request body into dst, mapping malformed JSON to a
// validation error so writeError turns it into a 400.
func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "invalid JSON")
	}
	return nil
}

// HandleRegister creates a credential account and logs it straight in.
//
// HTTP: POST /api/v1/auth/register
// REQUEST BODY: {"email": "a@example.com", "password": "secret123"}
//
// A duplicate email is a 400, not a 409 — see writeError.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validateCredentials(req); err != nil {
		writeError(w, err)
		return
	}

	userID, err := h.identity.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	pair, err := h.sessions.IssueTokens(r.Context(), userID)
	if err != nil {
		h.logger.Error("register: issuing tokens failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse(pair))
}

// HandleLogin verifies credentials and issues a fresh token pair.
//
// HTTP: POST /api/v1/auth/login
//
// A wrong password and an unknown email produce the SAME 401 body, so the
// endpoint can't be used to probe which emails are registered.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validateCredentials(req); err != nil {
		writeError(w, err)
		return
	}

	userID, ok, err := h.identity.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, apperror.Unauthorized("incorrect email or password"))
		return
	}

	pair, err := h.sessions.IssueTokens(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse(pair))
}

// HandleRefresh trades a valid refresh token for a new access token.
//
// HTTP: POST /api/v1/auth/refresh
//
// Every validity failure — wrong token type, unknown token, expired or
// revoked row, bad signature — collapses to a 401. The refresh token itself
// never appears in logs or error messages.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.RefreshToken == "" {
		writeError(w, apperror.ValidationFailed("refresh_token", "must not be empty"))
		return
	}

	pair, err := h.sessions.RefreshAccessToken(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse(pair))
}

// HandleLogout revokes the presented refresh token.
//
// HTTP: POST /api/v1/auth/logout
//
// Always 200 — logging out with an already-revoked or never-issued token is
// a no-op, not an error. Retrying logout must be safe.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.sessions.Logout(r.Context(), req.RefreshToken); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"detail": "successfully logged out"})
}

// HandleSocialLogin signs a user in with a provider-issued access token.
//
// HTTP: POST /api/v1/auth/social-login
// REQUEST BODY: {"provider": "google", "access_token": "ya29...."}
//
// This is the path mobile apps and SPAs use: the client runs the OAuth flow
// itself and hands us the resulting provider token. We verify it with the
// provider, reconcile the identity with our user store, and issue our own
// token pair.
func (h *AuthHandler) HandleSocialLogin(w http.ResponseWriter, r *http.Request) {
	var req socialLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Provider != h.provider.Name() {
		writeError(w, apperror.ValidationFailed("provider", "unsupported provider"))
		return
	}
	if req.AccessToken == "" {
		writeError(w, apperror.ValidationFailed("access_token", "must not be empty"))
		return
	}

	identity, err := h.provider.VerifyToken(r.Context(), req.AccessToken)
	if err != nil {
		h.logger.Warn("social login: provider verification failed",
			slog.String("provider", req.Provider),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	userID, err := h.identity.ReconcileSocialLogin(r.Context(), h.provider.Name(), identity.ExternalID, identity.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	pair, err := h.sessions.IssueTokens(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse(pair))
}

// HandleGoogleLogin redirects the browser to Google's authorization page.
//
// HTTP: GET /auth/google/login
//
// CSRF PROTECTION VIA STATE:
// We generate a random state string and store it in a short-lived cookie.
// When Google calls back, HandleGoogleCallback verifies the state matches,
// proving the flow was initiated by this server.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the browser OAuth flow.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a verified Google identity
//  3. Reconcile the identity with our user store
//  4. Respond with a token pair
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("google callback: missing state cookie")
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("google callback: state mismatch")
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}

	// Clear the state cookie — it's single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	// Google sends error= when the user denies authorization.
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("google callback: authorization denied", slog.String("error", errParam))
		writeError(w, apperror.Unauthorized("authorization denied"))
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	identity, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("google callback: exchange failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	userID, err := h.identity.ReconcileSocialLogin(r.Context(), h.provider.Name(), identity.ExternalID, identity.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	pair, err := h.sessions.IssueTokens(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse(pair))
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/v1/auth/me
// Auth: Required (RequireAuth middleware sets userID in context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		// Should never happen on a RequireAuth-protected route, but be safe.
		writeError(w, apperror.Unauthorized("missing authentication"))
		return
	}

	user, err := h.identity.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("me: user lookup failed", slog.String("userID", userID))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{
		UserID:   user.ID,
		Email:    user.Email,
		IsActive: user.IsActive,
	})
}
