package gcal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultTokenURI = "https://oauth2.googleapis.com/token"
	expiryLeeway    = time.Minute
)

// TokenSource supplies bearer tokens for API calls
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token
type StaticToken string

// Token returns the token itself
func (s StaticToken) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("token not available")
	}
	return string(s), nil
}

// TokenManager manages the access token stored in an authorized-user token
// file. An expired token is refreshed through the token endpoint and the
// refreshed token is written back to the file.
type TokenManager struct {
	mu         sync.RWMutex
	path       string
	tokenURI   string
	creds      tokenFile
	loaded     bool
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// NewTokenManager creates a new token manager for the file at path.
// tokenURI overrides the endpoint recorded in the file when non-empty.
func NewTokenManager(path, tokenURI string, logger *zap.Logger) *TokenManager {
	return &TokenManager{
		path:     path,
		tokenURI: tokenURI,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
		now:    time.Now,
	}
}

// Load reads the token file
func (tm *TokenManager) Load() error {
	data, err := os.ReadFile(tm.path)
	if err != nil {
		return fmt.Errorf("failed to read token file: %w", err)
	}

	var creds tokenFile
	if err := json.Unmarshal(data, &creds); err != nil {
		return fmt.Errorf("failed to parse token file %s: %w", tm.path, err)
	}
	if creds.accessToken() == "" && creds.RefreshToken == "" {
		return fmt.Errorf("token file %s holds neither an access token nor a refresh token", tm.path)
	}

	tm.mu.Lock()
	tm.creds = creds
	tm.loaded = true
	tm.mu.Unlock()

	tm.logger.Debug("Token file loaded",
		zap.String("file", tm.path),
		zap.Time("expiry", creds.Expiry))

	return nil
}

// IsTokenValid checks if current token is still valid
// A token without expiry is trusted; otherwise it must outlive the leeway
func (tm *TokenManager) IsTokenValid() bool {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	if tm.creds.accessToken() == "" {
		return false
	}
	if tm.creds.Expiry.IsZero() {
		return true
	}
	return tm.creds.Expiry.Sub(tm.now()) > expiryLeeway
}

// Token returns a valid access token, refreshing it when needed
func (tm *TokenManager) Token(ctx context.Context) (string, error) {
	tm.mu.RLock()
	loaded := tm.loaded
	tm.mu.RUnlock()

	if !loaded {
		if err := tm.Load(); err != nil {
			return "", err
		}
	}

	if !tm.IsTokenValid() {
		if err := tm.Refresh(ctx); err != nil {
			return "", err
		}
	}

	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.creds.accessToken(), nil
}

// Refresh exchanges the refresh token for a new access token and persists it
func (tm *TokenManager) Refresh(ctx context.Context) error {
	tm.mu.RLock()
	creds := tm.creds
	tm.mu.RUnlock()

	if creds.RefreshToken == "" {
		return fmt.Errorf("access token expired and no refresh token is available; re-authorize and rewrite %s", tm.path)
	}

	endpoint := tm.tokenURI
	if endpoint == "" {
		endpoint = creds.TokenURI
	}
	if endpoint == "" {
		endpoint = defaultTokenURI
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {creds.RefreshToken},
		"client_id":     {creds.ClientID},
		"client_secret": {creds.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := tm.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("token refresh failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read token response: %w", err)
	}

	var refreshed refreshResponse
	if err := json.Unmarshal(body, &refreshed); err != nil && resp.StatusCode == http.StatusOK {
		return fmt.Errorf("failed to parse token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || refreshed.AccessToken == "" {
		if refreshed.Error != "" {
			return fmt.Errorf("token refresh rejected (status %d): %s %s", resp.StatusCode, refreshed.Error, refreshed.Description)
		}
		return fmt.Errorf("token refresh rejected with status %d", resp.StatusCode)
	}

	now := tm.now()
	tm.mu.Lock()
	tm.creds.Token = refreshed.AccessToken
	tm.creds.AccessToken = ""
	if refreshed.ExpiresIn > 0 {
		tm.creds.Expiry = now.Add(time.Duration(refreshed.ExpiresIn) * time.Second).UTC()
	} else {
		tm.creds.Expiry = time.Time{}
	}
	updated := tm.creds
	tm.mu.Unlock()

	tm.logger.Info("Access token refreshed successfully",
		zap.Time("expires_at", updated.Expiry))

	if err := tm.save(updated); err != nil {
		// The new token is still usable for this run
		tm.logger.Warn("Failed to persist refreshed token", zap.Error(err))
	}

	return nil
}

func (tm *TokenManager) save(creds tokenFile) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := os.WriteFile(tm.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}
