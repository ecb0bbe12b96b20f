package source

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/eth-comb/app/database"
)

type ConfigCache struct {
	sourcesDir string
	cache      map[string]*Config
	mu         sync.RWMutex
}

func NewConfigCache(sourcesDir string) *ConfigCache {
	return &ConfigCache{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Config),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := cc.LoadConfig(name)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source configuration loaded", "source", config.ID, "adapter", config.Adapter, "active", config.IsActive())
	}

	return nil
}

// LoadConfig reads sources/<name>.yml. Ids containing slashes, such as
// GitHub repository paths, are set with an explicit id key.
func (cc *ConfigCache) LoadConfig(name string) (*Config, error) {
	configFile := cc.getConfigFilePath(name)
	config, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	config.ID = cmp.Or(strings.TrimSpace(config.ID), name)

	if err := cc.validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[config.ID] = config

	return config, nil
}

func (cc *ConfigCache) GetConfig(id string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	config, ok := cc.cache[id]
	if !ok {
		return nil, fmt.Errorf("source config with id '%s' not found", id)
	}
	return config, nil
}

// GetConfigs returns cached configs ordered by id.
func (cc *ConfigCache) GetConfigs() []*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configs := make([]*Config, 0, len(cc.cache))
	for _, v := range cc.cache {
		configs = append(configs, v)
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].ID < configs[j].ID })
	return configs
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

// ToSource maps a config file onto a registry entry.
func (c *Config) ToSource() database.Source {
	name := c.Name
	if name == "" {
		name = c.ID
	}
	return database.Source{
		ID:              c.ID,
		Name:            name,
		BaseURL:         c.BaseURL,
		AdapterType:     c.Adapter,
		PollInterval:    c.PollInterval,
		DefaultCategory: database.Category(strings.ToUpper(c.DefaultCategory)),
		IsActive:        c.IsActive(),
		Options:         c.Options,
	}
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if config.PollInterval == 0 {
		config.PollInterval = 3600
	}
	if config.DefaultCategory == "" {
		config.DefaultCategory = string(database.CategoryAnnouncement)
	}
	if config.Options == nil {
		config.Options = map[string]string{}
	}

	return &config, nil
}

func (cc *ConfigCache) validateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	requiredFields := map[string]string{
		"source id": config.ID,
		"base URL":  config.BaseURL,
		"adapter":   config.Adapter,
	}

	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	if config.PollInterval < 0 {
		return fmt.Errorf("poll interval must be non-negative")
	}

	if !KnownAdapter(config.Adapter) {
		return fmt.Errorf("%w: %s", ErrUnknownAdapter, config.Adapter)
	}

	if _, err := database.ParseCategory(config.DefaultCategory); err != nil {
		return err
	}

	if _, err := parseRPS(config.Options, 0); err != nil {
		return err
	}

	return nil
}

func (cc *ConfigCache) getConfigFilePath(name string) string {
	return filepath.Join(cc.sourcesDir, name+".yml")
}
