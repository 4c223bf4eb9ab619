// Copyright 2026 The tgForwardbot Authors
// SPDX-License-Identifier: Apache-2.0

package telegram

import (
	"context"
	"fmt"
	"log/slog"
)

// maxPollRetries is the number of consecutive getUpdates failures
// allowed before the watcher gives up. Each retry uses a 1-second
// server-side timeout so the HTTP round-trip itself provides backoff.
const maxPollRetries = 5

// longPollSeconds is the server-side hold time for normal getUpdates
// calls. The server holds the connection for up to this duration,
// returning immediately when new updates arrive.
const longPollSeconds = 30

// retryPollSeconds is the server-side timeout used after a getUpdates
// error. Short so the retry completes quickly and the next attempt
// can proceed.
const retryPollSeconds = 1

// UpdateWatcher tracks a position in the bot's update stream and
// delivers batches via long-polling. The offset advances past every
// delivered update, which acknowledges it to the server; a restarted
// watcher re-receives only updates the previous instance never
// fetched.
//
// Not safe for concurrent use. One watcher per bot token: Telegram
// allows only a single outstanding getUpdates call.
type UpdateWatcher struct {
	client *Client
	logger *slog.Logger
	offset int64
}

// NewUpdateWatcher creates a watcher starting at the server's current
// position (offset zero: the first poll returns all unacknowledged
// updates).
func NewUpdateWatcher(client *Client, logger *slog.Logger) *UpdateWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &UpdateWatcher{client: client, logger: logger}
}

// Wait blocks until at least one update arrives, then returns the
// batch. Bounded by ctx. On transient poll errors, retries up to 5
// times with a 1-second server timeout, resetting idle connections so
// the next attempt opens a fresh socket. After 5 consecutive failures
// the error is returned; the caller decides whether that is fatal.
func (w *UpdateWatcher) Wait(ctx context.Context) ([]Update, error) {
	var pollRetries int

	for {
		pollTimeout := longPollSeconds
		if pollRetries > 0 {
			pollTimeout = retryPollSeconds
		}

		updates, err := w.client.GetUpdates(ctx, w.offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("context cancelled waiting for updates: %w", ctx.Err())
			}
			pollRetries++
			// TCP-level errors (connection reset, EOF) often indicate
			// a poisoned connection in Go's HTTP pool. Drop idle
			// connections so the next attempt opens a fresh socket.
			w.client.CloseIdleConnections()
			if pollRetries > maxPollRetries {
				return nil, fmt.Errorf("getUpdates failed %d consecutive times: %w", pollRetries, err)
			}
			w.logger.Debug("update poll error, retrying",
				"attempt", pollRetries,
				"max_attempts", maxPollRetries,
				"error", err,
			)
			continue
		}
		pollRetries = 0

		if len(updates) == 0 {
			// Long-poll hold expired with nothing new.
			continue
		}

		// Acknowledge everything in the batch. Updates are delivered
		// in ascending update_id order but take the max anyway.
		for _, update := range updates {
			if update.UpdateID >= w.offset {
				w.offset = update.UpdateID + 1
			}
		}
		return updates, nil
	}
}
