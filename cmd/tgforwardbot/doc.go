// Copyright 2026 The tgForwardbot Authors
// SPDX-License-Identifier: Apache-2.0

// tgforwardbot relays private Telegram messages into per-user forum
// topics inside a staffed supergroup, and staff replies back to the
// originating users.
//
// Configuration comes from a YAML file (--config or the
// TGFORWARDBOT_CONFIG environment variable); the bot token comes from
// TELEGRAM_BOT_TOKEN, optionally via a .env file. An optional Unix
// control socket exposes status and export actions to operators.
package main
