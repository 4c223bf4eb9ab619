// Copyright 2026 The tgForwardbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the relay daemon.
//
// Configuration is loaded from a single YAML file specified by:
//   - TGFORWARDBOT_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. The config file may
// contain environment-specific sections (development, production)
// that override base values when the environment matches. The bot
// token is never part of the file; it comes from TELEGRAM_BOT_TOKEN.
package config
