package creds

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeCreds(t *testing.T, dir, expiresAt string) string {
	t.Helper()
	path := filepath.Join(dir, ".credentials.json")
	content := `{
  "accessToken": "tok-123",
  "refreshToken": "ref-456",
  "expiresAt": "` + expiresAt + `",
  "tokenType": "Bearer"
}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing credentials: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeCreds(t, t.TempDir(), "2027-01-01T00:00:00Z")
	m := NewManagerAt(path)

	c, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.AccessToken != "tok-123" {
		t.Errorf("unexpected access token %q", c.AccessToken)
	}
	if c.RefreshToken != "ref-456" {
		t.Errorf("unexpected refresh token %q", c.RefreshToken)
	}
}

func TestLoadMissingFile(t *testing.T) {
	m := NewManagerAt(filepath.Join(t.TempDir(), "absent.json"))

	_, err := m.Load()
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIsExpired(t *testing.T) {
	m := NewManagerAt("")
	m.now = func() time.Time {
		return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	}

	tests := []struct {
		expiresAt string
		want      bool
	}{
		{"2026-06-01T13:00:00Z", false},
		{"2026-06-01T11:00:00Z", true},
		{"2026-06-01T12:00:00Z", true},
		{"not-a-timestamp", true},
	}
	for _, tt := range tests {
		c := &Credentials{ExpiresAt: tt.expiresAt}
		if got := m.IsExpired(c); got != tt.want {
			t.Errorf("IsExpired(%q) = %v, want %v", tt.expiresAt, got, tt.want)
		}
	}
}

func TestLoadDefaultsTokenType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".credentials.json")
	content := `{"accessToken": "a", "refreshToken": "r", "expiresAt": "2027-01-01T00:00:00Z"}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing credentials: %v", err)
	}

	c, err := NewManagerAt(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.TokenType != "Bearer" {
		t.Errorf("expected default Bearer token type, got %q", c.TokenType)
	}
}
