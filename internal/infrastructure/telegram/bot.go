// Package telegram talks to the Telegram Bot API: approval prompts, operator alerts and
// channel posts all go through one bot.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultAPIBase = "https://api.telegram.org"

// Config addresses one bot and chat.
type Config struct {
	BotToken string
	ChatID   string
	APIBase  string
	Timeout  time.Duration
}

// Bot is a minimal Bot API client bound to one chat.
type Bot struct {
	token   string
	chatID  string
	apiBase string
	client  *http.Client
	now     func() time.Time
}

// NewBot builds a bot client.
func NewBot(cfg Config) *Bot {
	base := strings.TrimRight(cfg.APIBase, "/")
	if base == "" {
		base = defaultAPIBase
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Bot{
		token:   cfg.BotToken,
		chatID:  cfg.ChatID,
		apiBase: base,
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

// Configured reports whether the bot has credentials and a chat.
func (b *Bot) Configured() bool {
	return b != nil && b.token != "" && b.chatID != ""
}

type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

type sentMessage struct {
	MessageID int64 `json:"message_id"`
}

func (b *Bot) sendMessage(ctx context.Context, payload map[string]any) (sentMessage, error) {
	payload["chat_id"] = b.chatID
	var msg sentMessage
	if err := b.call(ctx, "sendMessage", payload, &msg); err != nil {
		return sentMessage{}, err
	}
	return msg, nil
}

func (b *Bot) call(ctx context.Context, method string, payload any, v any) error {
	if !b.Configured() {
		return fmt.Errorf("telegram bot misconfigured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", b.apiBase, b.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, redact(err, b.token))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("telegram %s: %s", method, resp.Status)
	}
	if !env.OK {
		return fmt.Errorf("telegram %s: %d %s", method, env.ErrorCode, env.Description)
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, v); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// redact strips the bot token from transport errors, which embed the request URL.
func redact(err error, token string) error {
	if token == "" {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), token, "<token>"))
}
