package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Timezone: "Europe/London",
		BaseURL:  "https://shifts.example.org",
		Capacity: 6,
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{DSN: "postgres://localhost/shifts"},
		Auth:     AuthConfig{JWTSecret: "0123456789abcdef0123"},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, Validate(validConfig()))
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing dsn", func(c *Config) { c.Database.DSN = "" }},
		{"short jwt secret", func(c *Config) { c.Auth.JWTSecret = "short" }},
		{"bad base url", func(c *Config) { c.BaseURL = "not a url" }},
		{"zero capacity", func(c *Config) { c.Capacity = 0 }},
		{"unknown timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
		{"half a vapid pair", func(c *Config) { c.Push.VAPIDPublicKey = "pub" }},
		{"bad sender", func(c *Config) { c.Gmail.Sender = "nobody" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestLoadFromPath(t *testing.T) {
	t.Setenv("SHIFTS_DATABASE_DSN", "postgres://db/shifts")
	t.Setenv("SHIFTS_AUTH_JWT_SECRET", "a-very-long-test-secret")
	t.Setenv("SHIFTS_PUSH_VAPID_PRIVATE_KEY", "private")
	t.Setenv("SHIFTS_REMINDERS_LEAD_TIME", "36h")

	dir := t.TempDir()
	path := filepath.Join(dir, "test_config.yaml")
	content := `
timezone: Europe/London
baseURL: https://shifts.example.org
database:
  dsn: postgres://ignored/in-favour-of-env
push:
  vapidPublicKey: public
  subscriber: admin@example.org
gmail:
  sender: rota@example.org
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://db/shifts", cfg.Database.DSN)
	assert.Equal(t, "a-very-long-test-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 36*time.Hour, cfg.Reminders.LeadTime)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 6, cfg.Capacity)
	assert.Equal(t, 86400, cfg.Push.TTL)
	assert.True(t, cfg.PushEnabled())
	assert.Equal(t, "Europe/London", cfg.Location().String())
}

func TestLoadFromPath_MissingSecret(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test_config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("baseURL: https://shifts.example.org\n"), 0644))

	_, err := LoadFromPath(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoadFromPath_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test_config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timezone: [unterminated"), 0644))

	_, err := LoadFromPath(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestLoadFromPath_NonExistent(t *testing.T) {
	_, err := LoadFromPath("/nonexistent/test_config.yaml")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}

func TestLoadOAuthClient(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "oauthClient.json")
	content := `{"installed":{
		"client_id":"id.apps.googleusercontent.com",
		"project_id":"shifts",
		"auth_uri":"https://accounts.google.com/o/oauth2/auth",
		"token_uri":"https://oauth2.googleapis.com/token",
		"client_secret":"secret",
		"redirect_uris":["http://localhost"]}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadOAuthClient(GmailConfig{OAuthClientFile: path}, "test")
	require.NoError(t, err)
	assert.Equal(t, "shifts", cfg.Installed.ProjectID)
}

func TestValidateOAuthClient_InvalidURL(t *testing.T) {
	cfg := &OAuthClientConfig{
		Installed: OAuthInstalled{
			ClientID:     "id",
			ProjectID:    "shifts",
			AuthURI:      "not-a-valid-url",
			TokenURI:     "https://oauth2.googleapis.com/token",
			ClientSecret: "secret",
			RedirectURIs: []string{"http://localhost"},
		},
	}

	err := ValidateOAuthClient(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}
