// Copyright 2026 The tgForwardbot Authors
// SPDX-License-Identifier: Apache-2.0

package telegram

import "encoding/json"

// envelope is the standard Bot API response wrapper. Result is left
// raw so each method can decode into its own type.
type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *responseParams `json:"parameters"`
}

// responseParams carries the optional parameters object attached to
// some error responses.
type responseParams struct {
	RetryAfter      int   `json:"retry_after"`
	MigrateToChatID int64 `json:"migrate_to_chat_id"`
}

// User is a Telegram user or bot.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// Chat identifies a conversation: a private chat, group, supergroup,
// or channel.
type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`

	// IsForum is true for supergroups with topics enabled. The relay
	// refuses to start against a group without it.
	IsForum bool `json:"is_forum"`
}

// Message is a Telegram message. Only the fields the relay inspects
// are declared; everything else passes through untouched because
// relaying uses forwardMessage/copyMessage rather than re-sending
// decoded content.
type Message struct {
	MessageID       int    `json:"message_id"`
	From            *User  `json:"from"`
	Chat            Chat   `json:"chat"`
	Date            int64  `json:"date"`
	Text            string `json:"text"`
	MessageThreadID int64  `json:"message_thread_id"`

	// IsTopicMessage is true for messages sent inside a forum topic.
	IsTopicMessage bool `json:"is_topic_message"`
}

// Update is one entry from getUpdates. The relay only consumes
// message updates; other update types still advance the offset.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// ForumTopic is the result of createForumTopic.
type ForumTopic struct {
	MessageThreadID int64  `json:"message_thread_id"`
	Name            string `json:"name"`
	IconColor       int    `json:"icon_color"`
}

// MessageRef points at a message for forward/copy operations.
type MessageRef struct {
	ChatID    int64
	MessageID int
}
