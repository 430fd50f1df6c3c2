package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ashwinyue/next-chat/internal/config"
	"github.com/ashwinyue/next-chat/internal/model"
)

func TestNew_SQLite(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			Path:   filepath.Join(t.TempDir(), "chat.db"),
		},
	}

	db, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	for _, m := range model.AllModels {
		if !db.Migrator().HasTable(m) {
			t.Errorf("table for %T not migrated", m)
		}
	}
}

func TestNew_UnsupportedDriver(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{Driver: "oracle"}}
	if _, err := New(cfg); err == nil {
		t.Fatal("New() accepted unsupported driver")
	}
}
