// Package auth implements OAuth password-grant authentication against the
// Optiply auth service, with refresh-grant fast path and automatic fallback
// to a full re-authentication when the refresh is rejected.
package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/optisync/optiply-target/pkg/clients"
	"github.com/optisync/optiply-target/pkg/errors"
	"github.com/optisync/optiply-target/pkg/metrics"
)

// DefaultExpiryBuffer is subtracted from the token lifetime when deciding
// whether the cached token is still usable. Five minutes matches the window
// the Optiply auth service itself recommends.
const DefaultExpiryBuffer = 5 * time.Minute

// Config holds the credentials and endpoint for the auth service.
type Config struct {
	AuthURL      string `json:"auth_url"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Username     string `json:"username"`
	Password     string `json:"password"`

	// ExpiryBuffer overrides DefaultExpiryBuffer when positive
	ExpiryBuffer time.Duration `json:"expiry_buffer"`
}

// Validate checks that every credential needed for the password grant is set.
func (c *Config) Validate() error {
	var missing []string
	if c.AuthURL == "" {
		missing = append(missing, "auth_url")
	}
	if c.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if c.Username == "" {
		missing = append(missing, "username")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return errors.New(errors.ErrorTypeConfig,
			fmt.Sprintf("missing required credentials: %s", strings.Join(missing, ", ")))
	}
	return nil
}

// Token is the cached credential. Owned exclusively by the TokenManager and
// never persisted across process restarts.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// TokenManager owns the credential lifecycle. Access is mutex-guarded;
// a refresh in one goroutine cannot be clobbered by a stale token from
// another, but callers sharing one manager still serialize on the lock.
type TokenManager struct {
	config     *Config
	logger     *zap.Logger
	httpClient *clients.HTTPClient

	mu    sync.Mutex
	token *Token

	// Stats
	refreshes int64
	fullAuths int64

	now func() time.Time // injectable clock for tests
}

// NewTokenManager creates a token manager. No network call is made until the
// first AuthHeaders request.
func NewTokenManager(config *Config, httpClient *clients.HTTPClient, logger *zap.Logger) *TokenManager {
	if config.ExpiryBuffer <= 0 {
		config.ExpiryBuffer = DefaultExpiryBuffer
	}
	return &TokenManager{
		config:     config,
		logger:     logger.With(zap.String("component", "token_manager")),
		httpClient: httpClient,
		now:        time.Now,
	}
}

// AuthHeaders returns the Authorization header for the current token,
// authenticating or refreshing first when necessary. Authentication failure
// is fatal for the run: no record can be written without a credential.
func (tm *TokenManager) AuthHeaders(ctx context.Context) (map[string]string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if !tm.isValidLocked() {
		if err := tm.renewLocked(ctx); err != nil {
			return nil, err
		}
	}

	return map[string]string{
		"Authorization": "Bearer " + tm.token.AccessToken,
	}, nil
}

// IsValid reports whether a usable token is cached.
func (tm *TokenManager) IsValid() bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.isValidLocked()
}

func (tm *TokenManager) isValidLocked() bool {
	if tm.token == nil || tm.token.AccessToken == "" {
		return false
	}
	return tm.now().Before(tm.token.ExpiresAt.Add(-tm.config.ExpiryBuffer))
}

// renewLocked refreshes the credential: refresh grant when a refresh token is
// cached, full password grant otherwise or when the refresh fails.
func (tm *TokenManager) renewLocked(ctx context.Context) error {
	if tm.token != nil && tm.token.RefreshToken != "" {
		token, err := tm.requestToken(ctx, "refresh_token", url.Values{
			"refresh_token": {tm.token.RefreshToken},
		})
		if err == nil {
			// Some auth servers omit the refresh token on refresh grants
			if token.RefreshToken == "" {
				token.RefreshToken = tm.token.RefreshToken
			}
			tm.token = token
			tm.refreshes++
			metrics.TokenRenewals.WithLabelValues("refresh").Inc()
			tm.logger.Info("access token refreshed", zap.Time("expires_at", token.ExpiresAt))
			return nil
		}
		tm.logger.Warn("token refresh failed, falling back to full authentication", zap.Error(err))
	}

	token, err := tm.requestToken(ctx, "password", url.Values{
		"username": {tm.config.Username},
		"password": {tm.config.Password},
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeAuthentication, "authentication failed")
	}

	tm.token = token
	tm.fullAuths++
	metrics.TokenRenewals.WithLabelValues("password").Inc()
	tm.logger.Info("access token acquired", zap.Time("expires_at", token.ExpiresAt))
	return nil
}

// requestToken performs one grant call against the auth endpoint.
func (tm *TokenManager) requestToken(ctx context.Context, grantType string, params url.Values) (*Token, error) {
	endpoint := fmt.Sprintf("%s?grant_type=%s", tm.config.AuthURL, grantType)

	basic := base64.StdEncoding.EncodeToString(
		[]byte(tm.config.ClientID + ":" + tm.config.ClientSecret))
	headers := map[string]string{
		"Authorization": "Basic " + basic,
		"Content-Type":  "application/x-www-form-urlencoded",
	}

	resp, err := tm.httpClient.Post(ctx, endpoint, strings.NewReader(params.Encode()), headers)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "token request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.ErrorTypeAuthentication,
			fmt.Sprintf("token request returned status %d", resp.StatusCode))
	}

	var tokenResp tokenResponse
	if err := gojson.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode token response")
	}
	if tokenResp.AccessToken == "" {
		return nil, errors.New(errors.ErrorTypeAuthentication, "token response missing access_token")
	}

	expiresIn := tokenResp.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}

	token := &Token{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		TokenType:    tokenResp.TokenType,
		ExpiresAt:    tm.now().Add(time.Duration(expiresIn) * time.Second),
	}
	if tokenResp.Scope != "" {
		token.Scopes = strings.Split(tokenResp.Scope, " ")
	}

	return token, nil
}

// SetToken seeds the cached token. Intended for tests.
func (tm *TokenManager) SetToken(token *Token) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.token = token
}

// Stats returns refresh and full-authentication counts.
func (tm *TokenManager) Stats() (refreshes, fullAuths int64) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.refreshes, tm.fullAuths
}

// tokenResponse is the auth endpoint's wire shape
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	Scope        string `json:"scope,omitempty"`
}
