// Copyright 2026 The tgForwardbot Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Resolver maps a user to their forum topic, creating the topic on
// first contact. Creation happens at most once per user even when
// multiple first-contact messages arrive concurrently: the first
// caller installs an in-flight marker and performs the creation,
// everyone else waits on the marker and shares the outcome.
type Resolver struct {
	store         *Store
	api           BotAPI
	groupID       int64
	adminThreadID int64
	logger        *slog.Logger

	mu      sync.Mutex
	pending map[int64]*creation
}

// creation is the in-flight marker for one user. The done channel is
// closed once threadID and err are final.
type creation struct {
	done     chan struct{}
	threadID int64
	err      error
}

// NewResolver creates a resolver that creates topics in groupID and
// posts mapping confirmations into the admin topic.
func NewResolver(store *Store, api BotAPI, groupID, adminThreadID int64, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:         store,
		api:           api,
		groupID:       groupID,
		adminThreadID: adminThreadID,
		logger:        logger,
		pending:       make(map[int64]*creation),
	}
}

// ResolveOrCreate returns the thread for the user, creating the forum
// topic and ledger record on first contact. On failure nothing is
// recorded: the caller drops the triggering message and the next
// message from the user retries from scratch.
func (r *Resolver) ResolveOrCreate(ctx context.Context, userID int64, username string) (int64, error) {
	// Hot path: every message after the first lands here.
	if threadID, ok := r.store.ThreadFor(userID); ok {
		return threadID, nil
	}

	r.mu.Lock()
	// Re-check under the lock: another goroutine may have finished
	// the whole creation between the hot-path miss and here.
	if threadID, ok := r.store.ThreadFor(userID); ok {
		r.mu.Unlock()
		return threadID, nil
	}
	if inflight, ok := r.pending[userID]; ok {
		r.mu.Unlock()
		select {
		case <-inflight.done:
			return inflight.threadID, inflight.err
		case <-ctx.Done():
			return 0, fmt.Errorf("waiting for in-flight topic creation for user %d: %w", userID, ctx.Err())
		}
	}

	marker := &creation{done: make(chan struct{})}
	r.pending[userID] = marker
	r.mu.Unlock()

	marker.threadID, marker.err = r.create(ctx, userID, username)
	close(marker.done)

	r.mu.Lock()
	delete(r.pending, userID)
	r.mu.Unlock()

	return marker.threadID, marker.err
}

// create performs the actual topic creation and ledger append, then
// posts a best-effort confirmation into the admin topic.
func (r *Resolver) create(ctx context.Context, userID int64, username string) (int64, error) {
	topic, err := r.api.CreateForumTopic(ctx, r.groupID, topicLabel(username, userID), topicIconColor)
	if err != nil {
		return 0, fmt.Errorf("creating topic for user %d: %w", userID, err)
	}

	if err := r.store.Append(userID, username, topic.MessageThreadID); err != nil {
		// The topic exists but the mapping was never recorded; the
		// next contact will create a second topic. Nothing to do but
		// surface it — reconciling orphaned topics needs the ledger
		// write to have succeeded.
		return 0, fmt.Errorf("recording mapping for user %d: %w", userID, err)
	}

	r.logger.Info("topic created for user",
		"user_id", userID,
		"username", username,
		"thread_id", topic.MessageThreadID,
	)

	displayUsername := username
	if displayUsername == "" {
		displayUsername = "无"
	}
	confirmation := fmt.Sprintf("用户ID: %d\n话题ID: %d\n用户名: @%s",
		userID, topic.MessageThreadID, displayUsername)
	if _, err := r.api.SendMessage(ctx, r.groupID, r.adminThreadID, confirmation); err != nil {
		// The mapping is durable; the confirmation is informational.
		r.logger.Warn("failed to post mapping confirmation",
			"user_id", userID,
			"error", err,
		)
	}

	return topic.MessageThreadID, nil
}
