package shared

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	t.Run("writes to the provided writer", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		logger.Info("hello")

		if !strings.Contains(buf.String(), "hello") {
			t.Errorf("expected log output, got %q", buf.String())
		}
	})

	t.Run("nil writer defaults to stderr", func(t *testing.T) {
		if NewLogger(nil) == nil {
			t.Error("expected logger, got nil")
		}
	})
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "scout.log")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create file logger: %v", err)
	}
	logger.Info("written to file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file should exist: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("expected log line in file, got %q", string(data))
	}
}

func TestGenerateID(t *testing.T) {
	a := GenerateID()
	b := GenerateID()

	if a == b {
		t.Error("expected unique ids")
	}
	if len(a) != 36 {
		t.Errorf("expected uuid string length 36, got %d", len(a))
	}
}

func TestExpandPath(t *testing.T) {
	t.Run("expands leading tilde", func(t *testing.T) {
		home, err := os.UserHomeDir()
		if err != nil {
			t.Skipf("no home directory: %v", err)
		}

		got := ExpandPath("~/.scout/credentials.json")
		want := filepath.Join(home, ".scout", "credentials.json")
		if got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	})

	t.Run("leaves other paths alone", func(t *testing.T) {
		for _, path := range []string{"", "/absolute/path", "relative/path"} {
			if got := ExpandPath(path); got != path {
				t.Errorf("expected %q unchanged, got %q", path, got)
			}
		}
	})
}

func TestDatabase(t *testing.T) {
	t.Run("opens in-memory database with pool limits", func(t *testing.T) {
		db, err := NewDatabase(DatabaseConfig{Path: ":memory:", MaxOpenConns: 1, MaxIdleConns: 1})
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := db.Exec("CREATE TABLE t (id INTEGER)"); err != nil {
			t.Errorf("expected usable connection, got %v", err)
		}
		if got := db.Stats().MaxOpenConnections; got != 1 {
			t.Errorf("expected pool limit applied, got %d", got)
		}
	})

	t.Run("unusable path is an error", func(t *testing.T) {
		cfg := DatabaseConfig{Path: filepath.Join(t.TempDir(), "missing-dir", "x.db")}
		if _, err := NewDatabase(cfg); err == nil {
			t.Error("expected error for unreachable database path")
		}
	})
}
