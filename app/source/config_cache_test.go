package source

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lysyi3m/eth-comb/app/database"
)

func writeSourceFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".yml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestConfigCacheLoadValidConfig(t *testing.T) {
	// Create temp directory
	tempDir := t.TempDir()

	writeSourceFile(t, tempDir, "ethresear.ch", `
name: "Ethereum Research"
base_url: "https://ethresear.ch"
adapter: "discourse"
poll_interval: 900
default_category: "research"
options:
  max_pages: "2"
`)

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	if configCache.GetConfigCount() != 1 {
		t.Errorf("Expected 1 config, got %d", configCache.GetConfigCount())
	}

	config, err := configCache.GetConfig("ethresear.ch")
	if err != nil {
		t.Fatal(err)
	}

	if config.ID != "ethresear.ch" {
		t.Errorf("Expected id from file name, got '%s'", config.ID)
	}
	if !config.IsActive() {
		t.Error("Expected source to be active by default")
	}

	src := config.ToSource()
	if src.DefaultCategory != database.CategoryResearch {
		t.Errorf("Expected RESEARCH category, got '%s'", src.DefaultCategory)
	}
	if src.PollInterval != 900 {
		t.Errorf("Expected poll interval 900, got %d", src.PollInterval)
	}
	if src.Options["max_pages"] != "2" {
		t.Errorf("Expected max_pages option, got %v", src.Options)
	}
	if src.Name != "Ethereum Research" {
		t.Errorf("Expected name 'Ethereum Research', got '%s'", src.Name)
	}
}

func TestConfigCacheExplicitID(t *testing.T) {
	tempDir := t.TempDir()

	writeSourceFile(t, tempDir, "eips", `
id: "github.com/ethereum/EIPs"
base_url: "https://api.github.com"
adapter: "github"
active: false
options:
  repo: "ethereum/EIPs"
  kind: "pulls"
`)

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	config, err := configCache.GetConfig("github.com/ethereum/EIPs")
	if err != nil {
		t.Fatal(err)
	}
	if config.IsActive() {
		t.Error("Expected source to be inactive")
	}
	if config.PollInterval != 3600 {
		t.Errorf("Expected default poll interval 3600, got %d", config.PollInterval)
	}
	if config.ToSource().DefaultCategory != database.CategoryAnnouncement {
		t.Errorf("Expected default category ANNOUNCEMENT, got '%s'", config.ToSource().DefaultCategory)
	}
	if config.ToSource().Name != "github.com/ethereum/EIPs" {
		t.Errorf("Expected name to default to id, got '%s'", config.ToSource().Name)
	}
}

func TestConfigCacheInvalidConfigs(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing base url", `adapter: "rss"`},
		{"missing adapter", `base_url: "https://x"`},
		{"negative interval", "base_url: \"https://x\"\nadapter: \"rss\"\npoll_interval: -1"},
		{"bad category", "base_url: \"https://x\"\nadapter: \"rss\"\ndefault_category: \"NEWS\""},
		{"bad yaml", "base_url: [unterminated"},
		{"bad rps", "base_url: \"https://x\"\nadapter: \"rss\"\noptions:\n  rps: \"fast\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()
			writeSourceFile(t, tempDir, "bad", tt.content)

			if err := NewConfigCache(tempDir).Run(); err == nil {
				t.Error("Expected error for invalid config")
			}
		})
	}
}

func TestConfigCacheUnknownAdapter(t *testing.T) {
	tempDir := t.TempDir()
	writeSourceFile(t, tempDir, "tg", "base_url: \"https://t.me\"\nadapter: \"telegram\"")

	_, err := NewConfigCache(tempDir).LoadConfig("tg")
	if !errors.Is(err, ErrUnknownAdapter) {
		t.Errorf("Expected ErrUnknownAdapter, got: %v", err)
	}
}

func TestConfigCacheMissingDirectory(t *testing.T) {
	configCache := NewConfigCache(filepath.Join(t.TempDir(), "missing"))
	if err := configCache.Run(); err != nil {
		t.Errorf("Expected missing directory to be ignored, got: %v", err)
	}
	if configCache.GetConfigCount() != 0 {
		t.Errorf("Expected no configs, got %d", configCache.GetConfigCount())
	}
	if _, err := configCache.GetConfig("x"); err == nil {
		t.Error("Expected error for unknown config")
	}
}

func TestShippedSourceConfigs(t *testing.T) {
	cc := NewConfigCache(filepath.Join("..", "..", "sources"))
	if err := cc.Run(); err != nil {
		t.Fatalf("Expected shipped source configs to load, got: %v", err)
	}

	if cc.GetConfigCount() == 0 {
		t.Fatal("Expected at least one shipped source config")
	}

	registry := NewRegistry(Options{GitHubToken: "t", NewsAPIKey: "k"})
	for _, config := range cc.GetConfigs() {
		if _, err := registry.New(config.ToSource()); err != nil {
			t.Errorf("Expected adapter for %s to build, got: %v", config.ID, err)
		}
	}
}
