package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Strategy names understood by the engine.
const (
	StrategyBigSmall = "big_small"
	StrategyOddEven  = "odd_even"
)

// KnownStrategies lists every strategy in a stable order.
var KnownStrategies = []string{StrategyBigSmall, StrategyOddEven}

// StrategyConfig is the operator-editable definition of one strategy.
type StrategyConfig struct {
	Enabled      bool `yaml:"enabled" json:"enabled"`
	InitialBet   int  `yaml:"initial_bet" json:"initial_bet" validate:"min=1"`
	MaxWinStreak int  `yaml:"max_win_streak" json:"max_win_streak" validate:"min=1"`
}

// Account is one tg-signer login bound to a betting chat.
type Account struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	Alias       string `yaml:"alias" json:"alias"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	ChatID      string `yaml:"chat_id" json:"chat_id"`
}

// Usable reports whether the account can receive a bet.
func (a Account) Usable() bool {
	return a.Enabled && strings.TrimSpace(a.Alias) != "" && strings.TrimSpace(a.ChatID) != ""
}

// Config holds all application configuration.
type Config struct {
	Feed struct {
		URL              string        `yaml:"url"`
		Timeout          time.Duration `yaml:"timeout"`
		PollInterval     time.Duration `yaml:"poll_interval"`
		BootstrapBackoff time.Duration `yaml:"bootstrap_backoff"`
	} `yaml:"feed"`
	Timing struct {
		DrawCadence time.Duration `yaml:"draw_cadence"`
		PollLead    time.Duration `yaml:"poll_lead"`
		BetDelay    time.Duration `yaml:"bet_delay"`
	} `yaml:"timing"`
	Strategies map[string]StrategyConfig `yaml:"strategies" validate:"dive"`
	Accounts   []Account                 `yaml:"accounts"`
	Actuator   struct {
		Binary  string        `yaml:"binary"`
		Timeout time.Duration `yaml:"timeout"`
		WorkDir string        `yaml:"work_dir"`
	} `yaml:"actuator"`
	State struct {
		Backend   string `yaml:"backend" validate:"oneof=file badger"`
		Path      string `yaml:"path"`
		BadgerDir string `yaml:"badger_dir"`
	} `yaml:"state"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Web struct {
		Listen   string `yaml:"listen"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"web"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"log"`
	Schedule struct {
		DailyReportCron string `yaml:"daily_report_cron"`
		PruneCron       string `yaml:"prune_cron"`
		RetentionDays   int    `yaml:"retention_days" validate:"min=1"`
	} `yaml:"schedule"`
	AutoStart bool   `yaml:"autostart"`
	Proxy     string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides and defaults.
// A missing file yields a default configuration.
func Load(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	cfg.ApplyDefaults()
	return cfg, nil
}

// readFile parses the YAML file alone, without environment overrides or defaults.
func readFile(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FEED_URL"); v != "" {
		cfg.Feed.URL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("TG_SIGNER_BIN"); v != "" {
		cfg.Actuator.Binary = v
	}
	if v := os.Getenv("WEB_LISTEN"); v != "" {
		cfg.Web.Listen = v
	}
	if v := os.Getenv("WEB_USERNAME"); v != "" {
		cfg.Web.Username = v
	}
	if v := os.Getenv("WEB_PASSWORD"); v != "" {
		cfg.Web.Password = v
	}
	if v := os.Getenv("STATE_BACKEND"); v != "" {
		cfg.State.Backend = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("AUTOSTART"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AutoStart = b
		}
	}
}

// ApplyDefaults fills every missing field without discarding values already set.
func (c *Config) ApplyDefaults() {
	if c.Feed.URL == "" {
		c.Feed.URL = "http://27.106.127.108:9990/ce/apis.php"
	}
	if c.Feed.Timeout <= 0 {
		c.Feed.Timeout = 10 * time.Second
	}
	if c.Feed.PollInterval <= 0 {
		c.Feed.PollInterval = 2 * time.Second
	}
	if c.Feed.BootstrapBackoff <= 0 {
		c.Feed.BootstrapBackoff = 30 * time.Second
	}
	if c.Timing.DrawCadence <= 0 {
		c.Timing.DrawCadence = 210 * time.Second
	}
	if c.Timing.PollLead <= 0 {
		c.Timing.PollLead = 10 * time.Second
	}
	if c.Timing.BetDelay <= 0 {
		c.Timing.BetDelay = 30 * time.Second
	}

	if c.Strategies == nil {
		c.Strategies = map[string]StrategyConfig{}
	}
	for _, name := range KnownStrategies {
		s, ok := c.Strategies[name]
		if !ok {
			s.Enabled = name == StrategyBigSmall
		}
		if s.InitialBet <= 0 {
			s.InitialBet = 1
		}
		if s.MaxWinStreak <= 0 {
			s.MaxWinStreak = 3
		}
		c.Strategies[name] = s
	}
	for i := range c.Accounts {
		c.Accounts[i].Alias = strings.TrimSpace(c.Accounts[i].Alias)
		c.Accounts[i].DisplayName = strings.TrimSpace(c.Accounts[i].DisplayName)
		c.Accounts[i].ChatID = strings.TrimSpace(c.Accounts[i].ChatID)
	}

	if c.Actuator.Binary == "" {
		c.Actuator.Binary = "tg-signer"
	}
	if c.Actuator.Timeout <= 0 {
		c.Actuator.Timeout = 30 * time.Second
	}
	if c.State.Backend == "" {
		c.State.Backend = "file"
	}
	if c.State.Path == "" {
		c.State.Path = "data/state.json"
	}
	if c.State.BadgerDir == "" {
		c.State.BadgerDir = "data/state.badger"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/canada28.db"
	}
	if c.Web.Listen == "" {
		c.Web.Listen = ":8000"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 50
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 5
	}
	if c.Log.MaxAgeDays <= 0 {
		c.Log.MaxAgeDays = 14
	}
	if c.Schedule.DailyReportCron == "" {
		c.Schedule.DailyReportCron = "0 0 9 * * *"
	}
	if c.Schedule.PruneCron == "" {
		c.Schedule.PruneCron = "0 30 4 * * *"
	}
	if c.Schedule.RetentionDays <= 0 {
		c.Schedule.RetentionDays = 30
	}
}

var validate = validator.New()

// Validate checks that all fields hold usable values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for name := range c.Strategies {
		if !IsKnownStrategy(name) {
			return fmt.Errorf("strategies.%s: unknown strategy", name)
		}
	}
	if err := ValidateAccounts(c.Accounts); err != nil {
		return err
	}
	if c.Timing.DrawCadence <= c.Timing.PollLead {
		return fmt.Errorf("timing.draw_cadence must exceed timing.poll_lead")
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID != "" {
		if _, err := strconv.ParseInt(c.Telegram.ChatID, 10, 64); err != nil {
			return fmt.Errorf("telegram.chat_id %q is not an integer", c.Telegram.ChatID)
		}
	}
	return nil
}

// ValidateAccounts checks the account pool on its own, as the control surface replaces it wholesale.
func ValidateAccounts(accounts []Account) error {
	for i, a := range accounts {
		if a.Enabled && a.Alias == "" {
			return fmt.Errorf("accounts[%d]: alias is required for an enabled account", i)
		}
		if a.ChatID != "" {
			if _, err := strconv.ParseInt(a.ChatID, 10, 64); err != nil {
				return fmt.Errorf("accounts[%d]: chat_id %q is not an integer", i, a.ChatID)
			}
		}
	}
	return nil
}

// IsKnownStrategy reports whether name is a supported strategy.
func IsKnownStrategy(name string) bool {
	for _, k := range KnownStrategies {
		if k == name {
			return true
		}
	}
	return false
}

// EnabledStrategies returns the enabled strategy names in stable order.
func (c *Config) EnabledStrategies() []string {
	var out []string
	for _, name := range KnownStrategies {
		if s, ok := c.Strategies[name]; ok && s.Enabled {
			out = append(out, name)
		}
	}
	return out
}

// UsableAccounts returns the accounts that can receive a bet.
func (c *Config) UsableAccounts() []Account {
	var out []Account
	for _, a := range c.Accounts {
		if a.Usable() {
			out = append(out, a)
		}
	}
	return out
}

// Clone returns a deep copy so callers can hold it for the lifetime of a run.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Strategies = make(map[string]StrategyConfig, len(c.Strategies))
	for k, v := range c.Strategies {
		cp.Strategies[k] = v
	}
	cp.Accounts = append([]Account(nil), c.Accounts...)
	return &cp
}
