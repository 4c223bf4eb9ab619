// Copyright 2026 The tgForwardbot Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"io"
	"sync"

	"github.com/haiyewei/tgForwardbot/telegram"
)

type sentMessage struct {
	chatID   int64
	threadID int64
	text     string
}

type forwardCall struct {
	toChatID int64
	threadID int64
	from     telegram.MessageRef
}

type copyCall struct {
	toChatID int64
	from     telegram.MessageRef
}

type documentCall struct {
	chatID   int64
	filename string
	content  string
	caption  string
}

// fakeAPI implements BotAPI in memory, recording every call. Error
// fields inject failures; createGate, when non-nil, blocks topic
// creation until the channel is closed so tests can pile up
// concurrent resolvers.
type fakeAPI struct {
	mu sync.Mutex

	nextThreadID int64
	createGate   chan struct{}

	createCalls   int
	createdTopics []string
	sent          []sentMessage
	forwards      []forwardCall
	copies        []copyCall
	documents     []documentCall

	createErr   error
	sendErr     error
	forwardErr  error
	copyErr     error
	documentErr error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{nextThreadID: 100}
}

func (f *fakeAPI) CreateForumTopic(ctx context.Context, chatID int64, name string, iconColor int) (*telegram.ForumTopic, error) {
	if f.createGate != nil {
		select {
		case <-f.createGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextThreadID++
	f.createdTopics = append(f.createdTopics, name)
	return &telegram.ForumTopic{
		MessageThreadID: f.nextThreadID,
		Name:            name,
		IconColor:       iconColor,
	}, nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, chatID int64, threadID int64, text string) (*telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, threadID: threadID, text: text})
	return &telegram.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) ForwardMessage(ctx context.Context, toChatID int64, threadID int64, from telegram.MessageRef) (*telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forwardErr != nil {
		return nil, f.forwardErr
	}
	f.forwards = append(f.forwards, forwardCall{toChatID: toChatID, threadID: threadID, from: from})
	return &telegram.Message{MessageID: len(f.forwards)}, nil
}

func (f *fakeAPI) CopyMessage(ctx context.Context, toChatID int64, from telegram.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.copyErr != nil {
		return f.copyErr
	}
	f.copies = append(f.copies, copyCall{toChatID: toChatID, from: from})
	return nil
}

func (f *fakeAPI) SendDocument(ctx context.Context, chatID int64, threadID int64, filename string, content io.Reader, caption string) (*telegram.Message, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.documentErr != nil {
		return nil, f.documentErr
	}
	f.documents = append(f.documents, documentCall{
		chatID:   chatID,
		filename: filename,
		content:  string(data),
		caption:  caption,
	})
	return &telegram.Message{MessageID: len(f.documents)}, nil
}

// forwardCount reads the forward tally under the lock, for tests that
// poll while the engine is still running.
func (f *fakeAPI) forwardCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.forwards)
}
