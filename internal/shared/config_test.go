package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Backend.BaseURL != "http://localhost:8000" {
			t.Errorf("expected backend base URL http://localhost:8000, got %s", config.Backend.BaseURL)
		}

		if config.Backend.DemoMode {
			t.Error("expected demo mode disabled by default")
		}

		if config.Database.Path != "scout.db" {
			t.Errorf("expected database path scout.db, got %s", config.Database.Path)
		}

		if config.Session.CredentialsPath != "~/.scout/credentials.json" {
			t.Errorf("expected credentials path ~/.scout/credentials.json, got %s", config.Session.CredentialsPath)
		}
	})

	t.Run("duration helpers default sensibly", func(t *testing.T) {
		var b BackendConfig
		if b.PollInterval() != 3*time.Second {
			t.Errorf("expected default poll interval 3s, got %v", b.PollInterval())
		}
		if b.RequestTimeout() != 30*time.Second {
			t.Errorf("expected default request timeout 30s, got %v", b.RequestTimeout())
		}

		b = BackendConfig{PollIntervalSeconds: 10, RequestTimeoutSeconds: 5}
		if b.PollInterval() != 10*time.Second {
			t.Errorf("expected poll interval 10s, got %v", b.PollInterval())
		}
		if b.RequestTimeout() != 5*time.Second {
			t.Errorf("expected request timeout 5s, got %v", b.RequestTimeout())
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
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[backend]
base_url = "https://research.example.com"
demo_mode = true
poll_interval_seconds = 5

[session]
credentials_path = "/custom/credentials.json"

[database]
path = "/custom/path.db"
max_open_conns = 20
max_idle_conns = 10
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Backend.BaseURL != "https://research.example.com" {
			t.Errorf("expected custom base URL, got %s", config.Backend.BaseURL)
		}
		if !config.Backend.DemoMode {
			t.Error("expected demo mode enabled")
		}
		if config.Backend.PollInterval() != 5*time.Second {
			t.Errorf("expected poll interval 5s, got %v", config.Backend.PollInterval())
		}
		if config.Session.CredentialsPath != "/custom/credentials.json" {
			t.Errorf("expected custom credentials path, got %s", config.Session.CredentialsPath)
		}
		if config.Database.MaxOpenConns != 20 {
			t.Errorf("expected max open conns 20, got %d", config.Database.MaxOpenConns)
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
			t.Error("expected error for missing config file")
		}
	})

	t.Run("LoadConfig invalid TOML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		os.WriteFile(configPath, []byte("not [valid toml"), 0644)

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected error for invalid TOML")
		}
	})
}
