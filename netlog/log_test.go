package netlog

import (
	"path/filepath"
	"testing"

	"meshnet/config"
)

func TestNewBuildsLogger(t *testing.T) {
	logger, err := New(config.Log{Level: "info", Path: filepath.Join(t.TempDir(), "mesh.log")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer logger.Sync()
	logger.Info("started")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(config.Log{Level: "verbose", Path: filepath.Join(t.TempDir(), "mesh.log")}); err == nil {
		t.Fatal("expected an error for an unknown log level")
	}
}
