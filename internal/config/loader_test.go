package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultConfigWhenMissing(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, resolved, err := Load(nil, path)
	req.NoError(err)
	req.Equal(path, resolved)
	req.Equal(":8080", cfg.Addr)
	req.Equal("general", cfg.Room)
	req.Equal(5*time.Second, cfg.ShutdownTimeout)
	req.Equal(64, cfg.SendBuffer)

	_, statErr := os.Stat(path)
	req.NoError(statErr)
}

func TestLoadReadsFileAndEnv(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "addr: \":9090\"\nroom: lobby\nstore_driver: memory\nsend_buffer: 8\n"
	req.NoError(os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("HUDDLE_ROOM", "sales")
	t.Setenv("HUDDLE_WRITE_TIMEOUT", "3s")

	cfg, _, err := Load(nil, path)
	req.NoError(err)
	req.Equal(":9090", cfg.Addr)
	req.Equal("sales", cfg.Room)
	req.Equal("memory", cfg.StoreDriver)
	req.Equal(8, cfg.SendBuffer)
	req.Equal(3*time.Second, cfg.WriteTimeout)
}

func TestUpdateFromKeepsZeroValues(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Addr: ":1234", CensoredWords: []string{"spam"}})

	if cfg.Addr != ":1234" {
		t.Fatalf("addr not overridden: %q", cfg.Addr)
	}
	if cfg.Room != "general" {
		t.Fatalf("room should keep default, got %q", cfg.Room)
	}
	if len(cfg.CensoredWords) != 1 || cfg.CensoredWords[0] != "spam" {
		t.Fatalf("unexpected censored words: %v", cfg.CensoredWords)
	}
}
