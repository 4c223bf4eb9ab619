// Copyright 2026 The tgForwardbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package telegram is a minimal Telegram Bot API client covering the
// methods the relay daemon needs: chat inspection, forum topic
// management, sending, forwarding, copying, document upload, and
// long-poll update delivery.
//
// Every method call is a POST to https://api.telegram.org/bot<token>/
// with a JSON body; responses arrive in the standard envelope
// {ok, result, error_code, description, parameters}. Failures decode
// into *APIError so callers can branch on the status code with
// errors.As. The bot token travels only in the request URL and is
// never included in error messages or logs.
package telegram
