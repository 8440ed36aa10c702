package creds

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const oauthTokenURL = "https://api.anthropic.com/v1/oauth/token"

// ErrNotFound indicates no credentials file exists
var ErrNotFound = errors.New("credentials not found, run the claude CLI to authenticate")

// Credentials holds the OAuth tokens stored by the agent CLI
type Credentials struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    string `json:"expiresAt"`
	TokenType    string `json:"tokenType"`
}

// Manager loads, validates and refreshes OAuth credentials
type Manager struct {
	path   string
	client *http.Client
	now    func() time.Time
}

// NewManager returns a manager over the default credentials file
// at ~/.claude/.credentials.json.
func NewManager() (*Manager, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return NewManagerAt(filepath.Join(home, ".claude", ".credentials.json")), nil
}

// NewManagerAt returns a manager over an explicit credentials path
func NewManagerAt(path string) *Manager {
	return &Manager{
		path:   path,
		client: &http.Client{Timeout: 30 * time.Second},
		now:    time.Now,
	}
}

// Load reads the credentials file
func (m *Manager) Load() (*Credentials, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	if c.TokenType == "" {
		c.TokenType = "Bearer"
	}
	return &c, nil
}

// IsExpired reports whether the access token's expiry has passed
func (m *Manager) IsExpired(c *Credentials) bool {
	expires, err := time.Parse(time.RFC3339, c.ExpiresAt)
	if err != nil {
		// Unparseable expiry is treated as expired so a refresh is forced.
		return true
	}
	return !m.now().Before(expires)
}

// Refresh exchanges the refresh token for a new access token and
// persists the result back to the credentials file.
func (m *Manager) Refresh(c *Credentials) (*Credentials, error) {
	body, err := json.Marshal(map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": c.RefreshToken,
	})
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Post(oauthTokenURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token refresh failed: HTTP %d", resp.StatusCode)
	}

	var token struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresAt    string `json:"expires_at"`
		TokenType    string `json:"token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}

	refreshed := &Credentials{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.ExpiresAt,
		TokenType:    token.TokenType,
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = c.RefreshToken
	}
	if refreshed.TokenType == "" {
		refreshed.TokenType = "Bearer"
	}

	if err := m.save(refreshed); err != nil {
		return nil, err
	}
	return refreshed, nil
}

// ValidToken loads credentials, refreshing first if they are expired
func (m *Manager) ValidToken() (string, error) {
	c, err := m.Load()
	if err != nil {
		return "", err
	}
	if m.IsExpired(c) {
		c, err = m.Refresh(c)
		if err != nil {
			return "", err
		}
	}
	return c.AccessToken, nil
}

func (m *Manager) save(c *Credentials) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0600)
}
