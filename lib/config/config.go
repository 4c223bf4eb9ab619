// Copyright 2026 The tgForwardbot Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for the relay daemon.
//
// The bot token is deliberately absent: it is read from the
// TELEGRAM_BOT_TOKEN environment variable so it never lands in a
// config file that might be committed or exported.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Telegram configures the group and operator identities.
	Telegram TelegramConfig `yaml:"telegram"`

	// Paths configures data file locations.
	Paths PathsConfig `yaml:"paths"`

	// Audit configures the audit ledger and its retention.
	Audit AuditConfig `yaml:"audit"`

	// Per-environment overrides, applied after the base config.
	Development *Overrides `yaml:"development,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains fields that can be overridden per environment.
type Overrides struct {
	Paths *PathsConfig `yaml:"paths,omitempty"`
	Audit *AuditConfig `yaml:"audit,omitempty"`
}

// TelegramConfig configures the staffed group and operator.
type TelegramConfig struct {
	// GroupID is the chat ID of the forum supergroup (required).
	GroupID int64 `yaml:"group_id"`

	// OwnerID is the Telegram user ID allowed to run export commands
	// (required).
	OwnerID int64 `yaml:"owner_id"`

	// UserInfoTopicName is the display name of the administrative
	// topic that receives mapping confirmations and export commands.
	UserInfoTopicName string `yaml:"user_info_topic_name"`

	// LogTopicName is the display name of the audit topic that
	// mirrors the audit ledger.
	LogTopicName string `yaml:"log_topic_name"`

	// APIBaseURL overrides the Bot API endpoint. Empty uses the
	// public https://api.telegram.org.
	APIBaseURL string `yaml:"api_base_url,omitempty"`
}

// PathsConfig configures file locations.
type PathsConfig struct {
	// DataDir holds the mapping ledger, the audit ledger, and the
	// backup directory tree.
	DataDir string `yaml:"data_dir"`

	// ControlSocket is the Unix socket path for the operator control
	// protocol. Empty disables the control socket.
	ControlSocket string `yaml:"control_socket"`
}

// AuditConfig configures audit ledger rotation and backup retention.
type AuditConfig struct {
	// RotateBytes is the ledger body size that triggers rotation.
	// Zero disables rotation.
	RotateBytes int64 `yaml:"rotate_bytes"`

	// ExportKeep is how many export backups to retain (newest kept).
	ExportKeep int `yaml:"export_keep"`

	// RotateKeep is how many rotated ledger segments to retain.
	RotateKeep int `yaml:"rotate_keep"`
}

// Default returns the default configuration. Defaults give every
// field a sensible value; the config file is still required for the
// group and owner identities.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Environment: Development,
		Telegram: TelegramConfig{
			UserInfoTopicName: "用户信息",
			LogTopicName:      "转发日志",
		},
		Paths: PathsConfig{
			DataDir:       filepath.Join(homeDir, ".local", "share", "tgforwardbot"),
			ControlSocket: "",
		},
		Audit: AuditConfig{
			RotateBytes: 4 << 20,
			ExportKeep:  10,
			RotateKeep:  10,
		},
	}
}

// Load loads configuration from the TGFORWARDBOT_CONFIG environment
// variable. There are no fallbacks or automatic discovery: if the
// variable is not set, this fails. Deterministic, auditable
// configuration with no hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("TGFORWARDBOT_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("TGFORWARDBOT_CONFIG environment variable not set; " +
			"set it to the path of your config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, applies
// environment-specific overrides, and validates the result.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnvironmentOverrides applies the section matching Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.DataDir != "" {
			c.Paths.DataDir = overrides.Paths.DataDir
		}
		if overrides.Paths.ControlSocket != "" {
			c.Paths.ControlSocket = overrides.Paths.ControlSocket
		}
	}
	if overrides.Audit != nil {
		if overrides.Audit.RotateBytes != 0 {
			c.Audit.RotateBytes = overrides.Audit.RotateBytes
		}
		if overrides.Audit.ExportKeep != 0 {
			c.Audit.ExportKeep = overrides.Audit.ExportKeep
		}
		if overrides.Audit.RotateKeep != 0 {
			c.Audit.RotateKeep = overrides.Audit.RotateKeep
		}
	}
}

// Validate checks that required identities are present and retention
// bounds are positive.
func (c *Config) Validate() error {
	if c.Telegram.GroupID == 0 {
		return fmt.Errorf("telegram.group_id is required")
	}
	if c.Telegram.OwnerID == 0 {
		return fmt.Errorf("telegram.owner_id is required")
	}
	if c.Telegram.UserInfoTopicName == "" {
		return fmt.Errorf("telegram.user_info_topic_name must not be empty")
	}
	if c.Telegram.LogTopicName == "" {
		return fmt.Errorf("telegram.log_topic_name must not be empty")
	}
	if c.Audit.ExportKeep < 1 {
		return fmt.Errorf("audit.export_keep must be at least 1, got %d", c.Audit.ExportKeep)
	}
	if c.Audit.RotateKeep < 1 {
		return fmt.Errorf("audit.rotate_keep must be at least 1, got %d", c.Audit.RotateKeep)
	}
	if c.Audit.RotateBytes < 0 {
		return fmt.Errorf("audit.rotate_bytes must not be negative, got %d", c.Audit.RotateBytes)
	}
	return nil
}
