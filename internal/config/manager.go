package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Manager guards the live configuration and writes edits back to disk.
// The engine takes a copy on start, so edits only apply to the next run.
type Manager struct {
	mu   sync.RWMutex
	cfg  *Config
	path string
}

// NewManager wraps an already loaded and validated config.
func NewManager(path string, cfg *Config) *Manager {
	return &Manager{cfg: cfg, path: path}
}

// Get returns a deep copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Clone()
}

// UpdateStrategies merges the given strategies into the config, key by key, and saves.
func (m *Manager) UpdateStrategies(strategies map[string]StrategyConfig) error {
	return m.Update(strategies, nil)
}

// UpdateAccounts replaces the account pool and saves.
func (m *Manager) UpdateAccounts(accounts []Account) error {
	return m.Update(nil, &accounts)
}

// Update merges strategies and, when accounts is non-nil, replaces the account
// pool. Both edits are validated and saved together or not at all.
func (m *Manager) Update(strategies map[string]StrategyConfig, accounts *[]Account) error {
	return m.update(func(c *Config) error {
		for name, s := range strategies {
			if !IsKnownStrategy(name) {
				return fmt.Errorf("strategies.%s: unknown strategy", name)
			}
			c.Strategies[name] = s
		}
		if accounts != nil {
			c.Accounts = append([]Account(nil), (*accounts)...)
		}
		return nil
	})
}

func (m *Manager) update(fn func(c *Config) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.cfg.Clone()
	if err := fn(next); err != nil {
		return err
	}
	next.ApplyDefaults()
	if err := next.Validate(); err != nil {
		return err
	}

	// The live config carries environment overrides such as the bot token.
	// Only the file's own values plus the edit are written back.
	onDisk, err := readFile(m.path)
	if err != nil {
		return err
	}
	onDisk.ApplyDefaults()
	if err := fn(onDisk); err != nil {
		return err
	}
	onDisk.ApplyDefaults()
	if err := Save(m.path, onDisk); err != nil {
		return err
	}
	m.cfg = next
	return nil
}

// Save writes the config as YAML via a temp file and rename.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}
