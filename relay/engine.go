// Copyright 2026 The tgForwardbot Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"log/slog"

	"github.com/haiyewei/tgForwardbot/telegram"
)

// Export command strings, matched literally against message text in
// the admin and audit topics.
const (
	exportUsersCommand = "导出用户"
	exportLogCommand   = "导出日志"
)

// UpdateSource delivers batches of inbound updates. Satisfied by
// *telegram.UpdateWatcher.
type UpdateSource interface {
	Wait(ctx context.Context) ([]telegram.Update, error)
}

// userMessage is a private message from an end-user.
type userMessage struct {
	from telegram.User
	ref  telegram.MessageRef
}

// groupMessage is a message posted inside the staffed group.
type groupMessage struct {
	from     telegram.User
	threadID int64
	text     string
	ref      telegram.MessageRef
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	Store    *Store
	Resolver *Resolver
	Audit    *AuditLog
	API      BotAPI
	Updates  UpdateSource

	GroupID       int64
	AdminThreadID int64
	AuditThreadID int64
	OwnerID       int64

	// UserLedgerPath and AuditLedgerPath are the files served by the
	// export commands.
	UserLedgerPath  string
	AuditLedgerPath string

	Logger *slog.Logger
}

// Engine routes messages between end-users and the staffed group.
// Each private message is forwarded into the sender's topic; each
// staff message inside a mapped topic is copied back to that topic's
// user. Handler errors never stop the loop: a failed relay drops that
// one message and is logged with enough context to diagnose manually.
type Engine struct {
	cfg EngineConfig
}

// NewEngine creates the relay engine.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{cfg: cfg}
}

// Run consumes the update stream until ctx is cancelled. Returns nil
// on cancellation; a non-nil error means the update source gave up
// (persistent transport failure) and the process should exit.
func (e *Engine) Run(ctx context.Context) error {
	for {
		updates, err := e.cfg.Updates.Wait(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		for _, update := range updates {
			e.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate classifies one update and dispatches it. Non-message
// updates and messages from other chats are ignored.
func (e *Engine) HandleUpdate(ctx context.Context, update telegram.Update) {
	message := update.Message
	if message == nil || message.From == nil {
		return
	}

	switch {
	case message.Chat.Type == "private":
		if message.From.IsBot {
			return
		}
		e.handleUserMessage(ctx, userMessage{
			from: *message.From,
			ref:  telegram.MessageRef{ChatID: message.Chat.ID, MessageID: message.MessageID},
		})
	case message.Chat.ID == e.cfg.GroupID:
		e.handleGroupMessage(ctx, groupMessage{
			from:     *message.From,
			threadID: message.MessageThreadID,
			text:     message.Text,
			ref:      telegram.MessageRef{ChatID: message.Chat.ID, MessageID: message.MessageID},
		})
	}
}

// handleUserMessage forwards a private message into the user's topic,
// creating the topic on first contact.
func (e *Engine) handleUserMessage(ctx context.Context, msg userMessage) {
	threadID, err := e.cfg.Resolver.ResolveOrCreate(ctx, msg.from.ID, msg.from.Username)
	if err != nil {
		// Creation failure: the message is dropped with no partial
		// side effects. The user's next message retries.
		e.cfg.Logger.Error("topic resolution failed, dropping message",
			"user_id", msg.from.ID,
			"error", err,
		)
		return
	}

	if _, err := e.cfg.API.ForwardMessage(ctx, e.cfg.GroupID, threadID, msg.ref); err != nil {
		// Delivery failure after resolution: the mapping is intact,
		// this one message is lost.
		e.cfg.Logger.Error("forward to topic failed, message lost",
			"user_id", msg.from.ID,
			"thread_id", threadID,
			"error", err,
		)
		return
	}

	e.cfg.Audit.LogEvent(ctx, AuditEvent{
		Kind:     UserToGroup,
		Source:   msg.from,
		ThreadID: threadID,
	})
}

// handleGroupMessage copies a staff message to the topic's mapped
// user, or runs an export command in the admin/audit topics.
func (e *Engine) handleGroupMessage(ctx context.Context, msg groupMessage) {
	if msg.threadID == 0 || msg.from.IsBot {
		// General-timeline chatter and the relay's own messages.
		return
	}

	if e.isExportCommand(msg) {
		e.runExportCommand(ctx, msg)
		return
	}

	userID, ok := e.cfg.Store.UserFor(msg.threadID)
	if !ok {
		// A thread with no tracked user: the admin topic, the audit
		// topic, or a manually created one. Staff talk there freely.
		return
	}

	if err := e.cfg.API.CopyMessage(ctx, userID, msg.ref); err != nil {
		e.cfg.Logger.Error("copy to user failed, message lost",
			"user_id", userID,
			"thread_id", msg.threadID,
			"error", err,
		)
		return
	}

	e.cfg.Audit.LogEvent(ctx, AuditEvent{
		Kind:         GroupToUser,
		Source:       msg.from,
		ThreadID:     msg.threadID,
		TargetUserID: userID,
	})
}

// isExportCommand reports whether the message is a literal export
// command in the matching well-known topic.
func (e *Engine) isExportCommand(msg groupMessage) bool {
	switch msg.text {
	case exportUsersCommand:
		return msg.threadID == e.cfg.AdminThreadID
	case exportLogCommand:
		return msg.threadID == e.cfg.AuditThreadID
	}
	return false
}

// runExportCommand executes an export for the owner; anyone else is
// ignored without a reply.
func (e *Engine) runExportCommand(ctx context.Context, msg groupMessage) {
	if msg.from.ID != e.cfg.OwnerID {
		e.cfg.Logger.Warn("export command from non-owner ignored",
			"user_id", msg.from.ID,
			"thread_id", msg.threadID,
		)
		return
	}

	var sourceFile, label string
	switch msg.text {
	case exportUsersCommand:
		sourceFile, label = e.cfg.UserLedgerPath, "用户信息导出"
	case exportLogCommand:
		sourceFile, label = e.cfg.AuditLedgerPath, "日志导出"
	}

	if err := e.cfg.Audit.ExportBackup(ctx, sourceFile, label); err != nil {
		e.cfg.Logger.Error("export failed",
			"source", sourceFile,
			"error", err,
		)
	}
}

// ExportUsers triggers the mapping ledger export, the same path as
// the in-chat command. Used by the control socket.
func (e *Engine) ExportUsers(ctx context.Context) error {
	return e.cfg.Audit.ExportBackup(ctx, e.cfg.UserLedgerPath, "用户信息导出")
}

// ExportLog triggers the audit ledger export.
func (e *Engine) ExportLog(ctx context.Context) error {
	return e.cfg.Audit.ExportBackup(ctx, e.cfg.AuditLedgerPath, "日志导出")
}
