package telegram

import (
	"context"
	"fmt"
	"html"
	"strconv"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

var (
	_ ports.Alerter = (*Bot)(nil)
	_ ports.Poster  = (*Bot)(nil)
)

// Name identifies the bot as a posting platform.
func (b *Bot) Name() string { return "telegram" }

// Alert sends a plain-text operator notice.
func (b *Bot) Alert(ctx context.Context, message string) error {
	if _, err := b.sendMessage(ctx, map[string]any{"text": message}); err != nil {
		return fmt.Errorf("send alert: %w", err)
	}
	return nil
}

// Post publishes an approved article caption to the chat.
func (b *Bot) Post(ctx context.Context, content domain.PostContent) (domain.PostReceipt, error) {
	text := html.EscapeString(content.Text)
	if content.Link != "" {
		text += fmt.Sprintf("\n\n<a href=\"%s\">Read more</a>", html.EscapeString(content.Link))
	}
	msg, err := b.sendMessage(ctx, map[string]any{
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		return domain.PostReceipt{}, fmt.Errorf("post article %d: %w", content.ArticleID, err)
	}
	return domain.PostReceipt{Platform: b.Name(), PostID: strconv.FormatInt(msg.MessageID, 10)}, nil
}
