// Copyright 2026 The tgForwardbot Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"io"
	"strconv"

	"github.com/haiyewei/tgForwardbot/telegram"
)

// BotAPI is the slice of the Bot API the relay core uses. Satisfied
// by *telegram.Client; tests substitute a fake.
type BotAPI interface {
	CreateForumTopic(ctx context.Context, chatID int64, name string, iconColor int) (*telegram.ForumTopic, error)
	SendMessage(ctx context.Context, chatID int64, threadID int64, text string) (*telegram.Message, error)
	ForwardMessage(ctx context.Context, toChatID int64, threadID int64, from telegram.MessageRef) (*telegram.Message, error)
	CopyMessage(ctx context.Context, toChatID int64, from telegram.MessageRef) error
	SendDocument(ctx context.Context, chatID int64, threadID int64, filename string, content io.Reader, caption string) (*telegram.Message, error)
}

// topicIconColor is the icon color given to every created topic, one
// of the palette values the Bot API accepts (light blue).
const topicIconColor = 0x6FB9F0

// topicLabel renders the display label for a user's topic. Users
// without a username get the generic fallback so the label still
// carries the numeric ID.
func topicLabel(username string, userID int64) string {
	if username == "" {
		return "用户 --- " + strconv.FormatInt(userID, 10)
	}
	return username + " --- " + strconv.FormatInt(userID, 10)
}

// userLabel renders a user for audit lines: `username(id)` or the
// bare ID.
func userLabel(username string, userID int64) string {
	if username == "" {
		return strconv.FormatInt(userID, 10)
	}
	return username + "(" + strconv.FormatInt(userID, 10) + ")"
}
