package telegram

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

var _ ports.ApprovalChannel = (*Bot)(nil)

type update struct {
	UpdateID      int64          `json:"update_id"`
	CallbackQuery *callbackQuery `json:"callback_query"`
}

type callbackQuery struct {
	ID      string `json:"id"`
	Data    string `json:"data"`
	Message *struct {
		MessageID int64 `json:"message_id"`
		Date      int64 `json:"date"`
	} `json:"message"`
}

// CallbackData encodes a button press as kind:action:correlation.
func CallbackData(kind domain.BatchKind, action domain.Action, correlationID string) string {
	return string(kind) + ":" + string(action) + ":" + correlationID
}

// ParseCallbackData reverses CallbackData.
func ParseCallbackData(data string) (domain.BatchKind, domain.Action, string, bool) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) != 3 || parts[2] == "" {
		return "", "", "", false
	}
	action := domain.Action(parts[1])
	if !action.Valid() {
		return "", "", "", false
	}
	return domain.BatchKind(parts[0]), action, parts[2], true
}

// SendApproval posts one reviewable plain-text item with approve, skip and approve-all buttons.
func (b *Bot) SendApproval(ctx context.Context, msg domain.ApprovalMessage) error {
	text := html.EscapeString(msg.Content)
	if msg.Link != "" {
		text += fmt.Sprintf("\n\n<a href=\"%s\">Source</a>", html.EscapeString(msg.Link))
	}

	button := func(label string, action domain.Action) map[string]string {
		return map[string]string{"text": label, "callback_data": CallbackData(msg.Kind, action, msg.CorrelationID)}
	}

	_, err := b.sendMessage(ctx, map[string]any{
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
		"reply_markup": map[string]any{
			"inline_keyboard": [][]map[string]string{
				{button("Approve", domain.ActionApprove), button("Skip", domain.ActionSkip)},
				{button("Approve all", domain.ActionApproveAll)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send approval %s: %w", msg.CorrelationID, err)
	}
	return nil
}

// PollDecisions fetches callback queries after since. The returned checkpoint is one past
// the highest update seen, which also acknowledges those updates on the Telegram side.
func (b *Bot) PollDecisions(ctx context.Context, since int64) ([]domain.DecisionEvent, int64, error) {
	payload := map[string]any{
		"timeout":         0,
		"allowed_updates": []string{"callback_query"},
	}
	if since > 0 {
		payload["offset"] = since
	}

	var updates []update
	if err := b.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, since, fmt.Errorf("poll decisions: %w", err)
	}

	next := since
	var events []domain.DecisionEvent
	for _, u := range updates {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
		cq := u.CallbackQuery
		if cq == nil {
			continue
		}
		kind, action, correlationID, ok := ParseCallbackData(cq.Data)
		if !ok {
			continue
		}
		events = append(events, domain.DecisionEvent{
			CorrelationID: correlationID,
			Kind:          kind,
			Action:        action,
			ReceivedAt:    b.now(),
		})
		b.acknowledge(ctx, cq, action)
	}
	return events, next, nil
}

// acknowledge stops the button spinner and removes the keyboard. Failures are ignored.
func (b *Bot) acknowledge(ctx context.Context, cq *callbackQuery, action domain.Action) {
	_ = b.call(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": cq.ID,
		"text":              "Recorded: " + string(action),
	}, nil)
	if cq.Message == nil {
		return
	}
	_ = b.call(ctx, "editMessageReplyMarkup", map[string]any{
		"chat_id":      b.chatID,
		"message_id":   cq.Message.MessageID,
		"reply_markup": map[string]any{"inline_keyboard": [][]map[string]string{}},
	}, nil)
}

// WithClock overrides the event timestamp source.
func (b *Bot) WithClock(now func() time.Time) *Bot {
	b.now = now
	return b
}
