// Copyright 2026 The tgForwardbot Authors
// SPDX-License-Identifier: Apache-2.0

package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// DefaultBaseURL is the public Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// maxResponseSize bounds how much of a Bot API response we read.
// Responses are JSON method results; 10 MB is far beyond anything the
// relay requests.
const maxResponseSize = 10 << 20

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// Token is the bot token from @BotFather (required).
	Token string
	// BaseURL overrides the Bot API endpoint. Empty uses DefaultBaseURL.
	BaseURL string
	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Client is a Telegram Bot API client. It holds the bot token, the
// endpoint URL, and the HTTP transport. Safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Bot API client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Token == "" {
		return nil, fmt.Errorf("telegram: Token is required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("telegram: invalid BaseURL %q: %w", baseURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      config.Token,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// CloseIdleConnections closes idle HTTP connections in the underlying
// transport's connection pool. Call this after a network disruption to
// force subsequent requests to establish fresh TCP connections instead
// of reusing a poisoned pooled connection.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// GetMe returns the bot's own identity. Useful as a startup
// reachability and token check.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var user User
	if err := c.call(ctx, "getMe", nil, &user); err != nil {
		return nil, fmt.Errorf("telegram: getMe failed: %w", err)
	}
	return &user, nil
}

// GetChat returns details for a chat, including whether it is a forum
// supergroup.
func (c *Client) GetChat(ctx context.Context, chatID int64) (*Chat, error) {
	request := map[string]any{"chat_id": chatID}
	var chat Chat
	if err := c.call(ctx, "getChat", request, &chat); err != nil {
		return nil, fmt.Errorf("telegram: getChat %d failed: %w", chatID, err)
	}
	return &chat, nil
}

// CreateForumTopic creates a topic in a forum supergroup. iconColor
// must be one of the palette values the Bot API accepts; zero lets
// the server pick.
func (c *Client) CreateForumTopic(ctx context.Context, chatID int64, name string, iconColor int) (*ForumTopic, error) {
	request := map[string]any{
		"chat_id": chatID,
		"name":    name,
	}
	if iconColor != 0 {
		request["icon_color"] = iconColor
	}
	var topic ForumTopic
	if err := c.call(ctx, "createForumTopic", request, &topic); err != nil {
		return nil, fmt.Errorf("telegram: createForumTopic %q failed: %w", name, err)
	}
	return &topic, nil
}

// SendMessage sends a text message. threadID routes the message into
// a forum topic; zero sends to the chat's general timeline.
func (c *Client) SendMessage(ctx context.Context, chatID int64, threadID int64, text string) (*Message, error) {
	return c.sendMessage(ctx, chatID, threadID, text, false)
}

// SendSilentMessage sends a text message with disable_notification
// set, so recipients get no audible alert. Used for informational
// notices that should not ping the whole staff group.
func (c *Client) SendSilentMessage(ctx context.Context, chatID int64, threadID int64, text string) (*Message, error) {
	return c.sendMessage(ctx, chatID, threadID, text, true)
}

func (c *Client) sendMessage(ctx context.Context, chatID int64, threadID int64, text string, silent bool) (*Message, error) {
	request := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if threadID != 0 {
		request["message_thread_id"] = threadID
	}
	if silent {
		request["disable_notification"] = true
	}
	var message Message
	if err := c.call(ctx, "sendMessage", request, &message); err != nil {
		return nil, fmt.Errorf("telegram: sendMessage failed: %w", err)
	}
	return &message, nil
}

// ForwardMessage forwards a message verbatim, preserving the original
// sender attribution. threadID routes into a forum topic.
func (c *Client) ForwardMessage(ctx context.Context, toChatID int64, threadID int64, from MessageRef) (*Message, error) {
	request := map[string]any{
		"chat_id":      toChatID,
		"from_chat_id": from.ChatID,
		"message_id":   from.MessageID,
	}
	if threadID != 0 {
		request["message_thread_id"] = threadID
	}
	var message Message
	if err := c.call(ctx, "forwardMessage", request, &message); err != nil {
		return nil, fmt.Errorf("telegram: forwardMessage failed: %w", err)
	}
	return &message, nil
}

// CopyMessage re-sends a message's content without the forwarded-from
// header, so the recipient does not see which staff member replied.
func (c *Client) CopyMessage(ctx context.Context, toChatID int64, from MessageRef) error {
	request := map[string]any{
		"chat_id":      toChatID,
		"from_chat_id": from.ChatID,
		"message_id":   from.MessageID,
	}
	// copyMessage returns only a MessageId object; the relay has no
	// use for it.
	if err := c.call(ctx, "copyMessage", request, nil); err != nil {
		return fmt.Errorf("telegram: copyMessage failed: %w", err)
	}
	return nil
}

// SendDocument uploads a file as a document via multipart/form-data.
// threadID routes into a forum topic; caption is optional.
func (c *Client) SendDocument(ctx context.Context, chatID int64, threadID int64, filename string, content io.Reader, caption string) (*Message, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return nil, fmt.Errorf("telegram: building upload form: %w", err)
	}
	if threadID != 0 {
		if err := writer.WriteField("message_thread_id", strconv.FormatInt(threadID, 10)); err != nil {
			return nil, fmt.Errorf("telegram: building upload form: %w", err)
		}
	}
	if caption != "" {
		if err := writer.WriteField("caption", caption); err != nil {
			return nil, fmt.Errorf("telegram: building upload form: %w", err)
		}
	}
	part, err := writer.CreateFormFile("document", filename)
	if err != nil {
		return nil, fmt.Errorf("telegram: building upload form: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("telegram: reading document content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("telegram: building upload form: %w", err)
	}

	responseBody, err := c.doRequestRaw(ctx, "sendDocument", writer.FormDataContentType(), &body)
	if err != nil {
		return nil, fmt.Errorf("telegram: sendDocument failed: %w", err)
	}
	var message Message
	if err := json.Unmarshal(responseBody, &message); err != nil {
		return nil, fmt.Errorf("telegram: failed to parse sendDocument result: %w", err)
	}
	return &message, nil
}

// GetUpdates long-polls for incoming updates. offset acknowledges all
// updates with lower IDs; timeoutSeconds is the server-side hold time
// (zero returns immediately).
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]Update, error) {
	request := map[string]any{
		"offset":          offset,
		"timeout":         timeoutSeconds,
		"allowed_updates": []string{"message"},
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", request, &updates); err != nil {
		return nil, fmt.Errorf("telegram: getUpdates failed: %w", err)
	}
	return updates, nil
}

// call performs a JSON method call and decodes the result. A nil
// result discards the method's return value.
func (c *Client) call(ctx context.Context, method string, request any, result any) error {
	var bodyReader io.Reader
	if request != nil {
		encoded, err := json.Marshal(request)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if request != nil {
		httpRequest.Header.Set("Content-Type", "application/json")
	}

	responseBody, err := c.finishRequest(httpRequest, method)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(responseBody, result); err != nil {
		return fmt.Errorf("failed to parse result: %w", err)
	}
	return nil
}

// doRequestRaw performs a method call with a caller-built body (for
// multipart upload) and returns the raw result bytes.
func (c *Client) doRequestRaw(ctx context.Context, method string, contentType string, body io.Reader) ([]byte, error) {
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", contentType)
	return c.finishRequest(httpRequest, method)
}

// methodURL builds the request URL for a Bot API method. The token is
// a path segment, so it appears here and nowhere else.
func (c *Client) methodURL(method string) string {
	return c.baseURL + "/bot" + c.token + "/" + method
}

// finishRequest executes the request and unwraps the response
// envelope. On ok:true, returns the raw result bytes. On ok:false,
// returns an *APIError. Error messages name the method, never the
// URL, so the token cannot leak through wrapped errors.
func (c *Client) finishRequest(request *http.Request, method string) ([]byte, error) {
	response, err := c.httpClient.Do(request)
	if err != nil {
		// url.Error embeds the full request URL including the token.
		return nil, fmt.Errorf("request to %s failed: %w", method, redactURLError(err))
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(responseBody, &env); err != nil {
		return nil, fmt.Errorf("unexpected %d response from %s: not a Bot API envelope", response.StatusCode, method)
	}
	if !env.OK {
		apiErr := &APIError{
			Code:        env.ErrorCode,
			Description: env.Description,
		}
		if env.Parameters != nil {
			apiErr.RetryAfter = env.Parameters.RetryAfter
		}
		return nil, apiErr
	}
	return env.Result, nil
}

// redactURLError strips the URL from transport errors so the bot
// token never reaches logs or wrapped error chains.
func redactURLError(err error) error {
	if urlErr, ok := err.(*url.Error); ok {
		return urlErr.Err
	}
	return err
}
