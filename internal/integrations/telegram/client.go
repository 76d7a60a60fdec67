package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"support-bot/internal/domain"
)

const (
	defaultBaseURL = "https://api.telegram.org"

	// MaxMediaGroup is the Bot API limit of items in one media group.
	MaxMediaGroup = 10
)

// APIError captures a failed Bot API call.
type APIError struct {
	StatusCode  int
	Method      string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %s failed with status %d: %s", e.Method, e.StatusCode, e.Description)
}

func (e *APIError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is a focused Bot API client for the intake form.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenProvider

	tokenOnce sync.Once
	token     string
	tokenErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client. The bot token is resolved on the first call
// and reused for the lifetime of the process.
func NewClient(tokens TokenProvider, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("telegram: token provider must not be nil")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		tokens:     tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolveToken(ctx context.Context) (string, error) {
	c.tokenOnce.Do(func() {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			c.tokenErr = fmt.Errorf("telegram: resolve token: %w", err)
			return
		}
		c.token = strings.TrimSpace(token)
		if c.token == "" {
			c.tokenErr = errors.New("telegram: bot token is empty")
		}
	})
	return c.token, c.tokenErr
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}

func methodURL(baseURL, token, method string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return base + "/bot" + token + "/" + method
}

// GetMe returns the bot's own account.
func (c *Client) GetMe(ctx context.Context) (domain.User, error) {
	var me User
	if err := c.call(ctx, "getMe", struct{}{}, &me); err != nil {
		return domain.User{}, err
	}
	return me.domain(), nil
}

// GetUpdates long-polls for updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	var out []Update
	err := c.call(ctx, "getUpdates", getUpdatesRequest{
		Offset:         offset,
		Timeout:        secs,
		AllowedUpdates: []string{"message", "callback_query"},
	}, &out)
	return out, err
}

// DropPendingUpdates discards updates queued while the bot was offline.
func (c *Client) DropPendingUpdates(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", deleteWebhookRequest{DropPendingUpdates: true}, nil)
}

// SetGroupCommands registers the command menu shown in all group chats.
func (c *Client) SetGroupCommands(ctx context.Context, commands []Command) error {
	return c.call(ctx, "setMyCommands", setMyCommandsRequest{
		Commands: commands,
		Scope:    commandScope{Type: "all_group_chats"},
	}, nil)
}

// SendMessage posts text into chat with one inline button per row.
func (c *Client) SendMessage(ctx context.Context, chat domain.ChatRef, text string, controls []domain.Control) (domain.MessageRef, error) {
	req := sendMessageRequest{
		ChatID:          chat.ID,
		MessageThreadID: chat.ThreadID,
		Text:            text,
	}
	if len(controls) > 0 {
		kb := &inlineKeyboard{InlineKeyboard: make([][]inlineButton, 0, len(controls))}
		for _, ctl := range controls {
			kb.InlineKeyboard = append(kb.InlineKeyboard, []inlineButton{{Text: ctl.Label, CallbackData: ctl.Data}})
		}
		req.ReplyMarkup = kb
	}
	var sent Message
	if err := c.call(ctx, "sendMessage", req, &sent); err != nil {
		return domain.MessageRef{}, err
	}
	return sent.ref(), nil
}

// DeleteMessage removes a message the bot can delete.
func (c *Client) DeleteMessage(ctx context.Context, ref domain.MessageRef) error {
	return c.call(ctx, "deleteMessage", deleteMessageRequest{ChatID: ref.ChatID, MessageID: ref.MessageID}, nil)
}

// SendMediaBatch re-posts up to MaxMediaGroup attachments as one group.
// A single item is sent on its own since media groups need at least two.
func (c *Client) SendMediaBatch(ctx context.Context, chat domain.ChatRef, items []domain.Attachment) error {
	switch n := len(items); {
	case n == 0:
		return nil
	case n > MaxMediaGroup:
		return fmt.Errorf("telegram: media batch of %d exceeds %d items", n, MaxMediaGroup)
	case n == 1:
		return c.sendSingle(ctx, chat, items[0])
	}

	media := make([]inputMedia, 0, len(items))
	for _, a := range items {
		media = append(media, inputMedia{Type: string(a.Kind), Media: a.FileID})
	}
	return c.call(ctx, "sendMediaGroup", sendMediaGroupRequest{
		ChatID:          chat.ID,
		MessageThreadID: chat.ThreadID,
		Media:           media,
	}, nil)
}

func (c *Client) sendSingle(ctx context.Context, chat domain.ChatRef, a domain.Attachment) error {
	switch a.Kind {
	case domain.AttachmentPhoto:
		return c.call(ctx, "sendPhoto", sendPhotoRequest{ChatID: chat.ID, MessageThreadID: chat.ThreadID, Photo: a.FileID}, nil)
	case domain.AttachmentVideo:
		return c.call(ctx, "sendVideo", sendVideoRequest{ChatID: chat.ID, MessageThreadID: chat.ThreadID, Video: a.FileID}, nil)
	default:
		return fmt.Errorf("telegram: unsupported attachment kind %q", a.Kind)
	}
}

// AnswerCallback acknowledges a button press, optionally with a toast.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return c.call(ctx, "answerCallbackQuery", answerCallbackRequest{CallbackQueryID: callbackID, Text: text}, nil)
}

// call posts payload to method and decodes the result into out when non-nil.
func (c *Client) call(ctx context.Context, method string, payload, out any) error {
	token, err := c.resolveToken(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, methodURL(c.baseURL, token, method), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		// The URL carries the token; keep it out of the error.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("telegram: %s request failed: %w", method, err)
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("telegram: read %s response: %w", method, err)
	}

	var env envelope
	if decErr := json.Unmarshal(raw, &env); decErr != nil {
		if res.StatusCode < 200 || res.StatusCode >= 300 {
			return &APIError{StatusCode: res.StatusCode, Method: method, Description: strings.TrimSpace(string(raw))}
		}
		return fmt.Errorf("telegram: decode %s response: %w", method, decErr)
	}
	if !env.OK || res.StatusCode < 200 || res.StatusCode >= 300 {
		status := res.StatusCode
		if env.ErrorCode != 0 {
			status = env.ErrorCode
		}
		return &APIError{StatusCode: status, Method: method, Description: env.Description}
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("telegram: decode %s result: %w", method, err)
	}
	return nil
}
