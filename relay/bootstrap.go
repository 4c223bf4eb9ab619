// Copyright 2026 The tgForwardbot Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// topicState tracks a well-known topic through bootstrap.
type topicState int

const (
	topicUnresolved topicState = iota
	topicResolving
	topicReady
)

// TopicBootstrap resolves one well-known topic (the admin topic or
// the audit topic) at startup. The topic's ID is persisted as the
// control line of its ledger file; when present, restarts skip
// creation entirely. Any failure is fatal to the caller — continuing
// with an unverified topic setup risks writing mappings or audit
// lines into the wrong place.
type TopicBootstrap struct {
	api        BotAPI
	groupID    int64
	ledgerPath string
	name       string
	logger     *slog.Logger

	state topicState
}

// NewTopicBootstrap prepares bootstrap for the named topic, backed by
// the ledger at ledgerPath.
func NewTopicBootstrap(api BotAPI, groupID int64, ledgerPath, name string, logger *slog.Logger) *TopicBootstrap {
	if logger == nil {
		logger = slog.Default()
	}
	return &TopicBootstrap{
		api:        api,
		groupID:    groupID,
		ledgerPath: ledgerPath,
		name:       name,
		logger:     logger,
		state:      topicUnresolved,
	}
}

// Resolve returns the topic's thread ID, creating the forum topic and
// writing the control line on first run. created reports whether this
// call performed the creation.
func (b *TopicBootstrap) Resolve(ctx context.Context) (threadID int64, created bool, err error) {
	b.state = topicResolving

	threadID, found, err := b.readControlLine()
	if err != nil {
		b.state = topicUnresolved
		return 0, false, err
	}
	if found {
		b.state = topicReady
		b.logger.Info("topic resolved from ledger",
			"name", b.name,
			"thread_id", threadID,
		)
		return threadID, false, nil
	}

	topic, err := b.api.CreateForumTopic(ctx, b.groupID, b.name, topicIconColor)
	if err != nil {
		b.state = topicUnresolved
		return 0, false, fmt.Errorf("creating %s topic: %w", b.name, err)
	}

	if err := b.writeControlLine(topic.MessageThreadID); err != nil {
		b.state = topicUnresolved
		return 0, false, err
	}

	announcement := fmt.Sprintf("%s话题初始化成功！话题ID: %d", b.name, topic.MessageThreadID)
	if _, err := b.api.SendMessage(ctx, b.groupID, topic.MessageThreadID, announcement); err != nil {
		b.state = topicUnresolved
		return 0, false, fmt.Errorf("announcing %s topic: %w", b.name, err)
	}

	b.state = topicReady
	b.logger.Info("topic created",
		"name", b.name,
		"thread_id", topic.MessageThreadID,
	)
	return topic.MessageThreadID, true, nil
}

// readControlLine reads the topic ID from line 1 of the ledger.
// Missing or empty file means no control line yet. A present but
// unparseable control line is an error, not a silent re-create: a
// second topic next to a ledger full of existing data would split the
// conversation history.
func (b *TopicBootstrap) readControlLine() (threadID int64, found bool, err error) {
	file, err := os.Open(b.ledgerPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("opening ledger %s: %w", b.ledgerPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return 0, false, fmt.Errorf("reading ledger %s: %w", b.ledgerPath, err)
		}
		return 0, false, nil
	}

	line := strings.TrimSpace(scanner.Text())
	if line == "" {
		return 0, false, nil
	}
	threadID, err = strconv.ParseInt(line, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("ledger %s has a corrupt control line %q: %w", b.ledgerPath, line, err)
	}
	return threadID, true, nil
}

// writeControlLine records the topic ID as line 1 of the ledger. Only
// called when the ledger has no control line, which for the mapping
// and audit ledgers means the file is empty or absent.
func (b *TopicBootstrap) writeControlLine(threadID int64) error {
	if err := appendLine(b.ledgerPath, strconv.FormatInt(threadID, 10)); err != nil {
		return fmt.Errorf("writing control line to %s: %w", b.ledgerPath, err)
	}
	return nil
}
