package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Playlists.Albums != "The Playlist" {
			t.Errorf("expected albums playlist The Playlist, got %s", config.Playlists.Albums)
		}

		if config.Playlists.Singles != "The Singles Playlist" {
			t.Errorf("expected singles playlist The Singles Playlist, got %s", config.Playlists.Singles)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Credentials.Spotify.RedirectURI != "http://localhost:3000/callback" {
			t.Errorf("expected default redirect URI, got %s", config.Credentials.Spotify.RedirectURI)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Playlists.Albums != defaultConfig.Playlists.Albums {
			t.Errorf("created config playlist names don't match defaults")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
redirect_uri = "http://localhost:9090/callback"

[playlists]
albums = "My Albums"
singles = "My Singles"

[server]
host = "0.0.0.0"
port = 8080
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected spotify client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if config.Playlists.Albums != "My Albums" {
			t.Errorf("expected albums playlist My Albums, got %s", config.Playlists.Albums)
		}

		if config.Server.Addr() != "0.0.0.0:8080" {
			t.Errorf("expected server addr 0.0.0.0:8080, got %s", config.Server.Addr())
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		if !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("environment overlays file values", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[credentials.spotify]
client_id = "file_client_id"
client_secret = "file_secret"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		t.Setenv("SPOTIFY_CLIENT_ID", "env_client_id")
		t.Setenv("FRESHCUT_SINGLES_PLAYLIST", "Env Singles")
		t.Setenv("FRESHCUT_PORT", "4242")

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Credentials.Spotify.ClientID != "env_client_id" {
			t.Errorf("environment should win over the file, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Credentials.Spotify.ClientSecret != "file_secret" {
			t.Errorf("unset environment keys should leave file values, got %s", config.Credentials.Spotify.ClientSecret)
		}
		if config.Playlists.Singles != "Env Singles" {
			t.Errorf("expected overlaid singles playlist, got %s", config.Playlists.Singles)
		}
		if config.Server.Port != 4242 {
			t.Errorf("expected overlaid port 4242, got %d", config.Server.Port)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		config := DefaultConfig()
		if err := config.Validate(); !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials for blank credentials, got %v", err)
		}

		config.Credentials.Spotify.ClientID = "id"
		config.Credentials.Spotify.ClientSecret = "secret"
		if err := config.Validate(); err != nil {
			t.Errorf("expected valid config, got %v", err)
		}
	})

	t.Run("credentials map", func(t *testing.T) {
		spotify := SpotifyConfig{ClientID: "id", ClientSecret: "secret", RedirectURI: "uri"}
		m := spotify.Map()
		if m["client_id"] != "id" || m["client_secret"] != "secret" || m["redirect_uri"] != "uri" {
			t.Errorf("Map() = %v", m)
		}
	})
}
