// Package telegram sends trade events through the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/newthinker/predator/internal/notifier"
)

const defaultAPI = "https://api.telegram.org"

type Telegram struct {
	token  string
	chatID string
	client *resty.Client
}

var _ notifier.Notifier = (*Telegram)(nil)

type Option func(*Telegram)

// WithBaseURL points the bot at another API host.
func WithBaseURL(url string) Option {
	return func(t *Telegram) { t.client.SetBaseURL(url) }
}

func New(token, chatID string, opts ...Option) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram: bot token is required")
	}
	if chatID == "" {
		return nil, fmt.Errorf("telegram: chat id is required")
	}
	t := &Telegram{
		token:  token,
		chatID: chatID,
		client: resty.New().SetBaseURL(defaultAPI).SetTimeout(30 * time.Second),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, ev notifier.Event) error {
	return t.sendMessage(ctx, format(ev))
}

func (t *Telegram) SendBatch(ctx context.Context, evs []notifier.Event) error {
	if len(evs) == 0 {
		return nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "*%d trade events*\n\n", len(evs))
	for i, ev := range evs {
		sb.WriteString(format(ev))
		if i < len(evs)-1 {
			sb.WriteString("\n---\n\n")
		}
	}
	return t.sendMessage(ctx, sb.String())
}

func format(ev notifier.Event) string {
	var sb strings.Builder
	in := ev.Intent
	switch ev.Kind {
	case notifier.KindEntry:
		fmt.Fprintf(&sb, "📈 *BUY %s* x%d @ $%.2f\n", in.Symbol, in.Quantity, in.ReferencePrice)
		fmt.Fprintf(&sb, "Stop $%.2f / Target $%.2f\n", in.StopLossPrice, in.TakeProfitPrice)
		fmt.Fprintf(&sb, "Score %d: %s\n", in.Score, strings.Join(in.Signals, ", "))
	case notifier.KindExit:
		fmt.Fprintf(&sb, "📉 *SELL %s* x%d @ $%.2f\n", in.Symbol, in.Quantity, in.ReferencePrice)
		if in.Reason != "" {
			fmt.Fprintf(&sb, "Reason: %s\n", in.Reason)
		}
	case notifier.KindAlert:
		fmt.Fprintf(&sb, "🚨 %s\n", ev.Message)
	default:
		fmt.Fprintf(&sb, "⚠️ %s\n", ev.Message)
	}
	if !ev.Time.IsZero() {
		sb.WriteString(ev.Time.UTC().Format("2006-01-02 15:04 MST"))
	}
	return sb.String()
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	var apiErr map[string]any
	resp, err := t.client.R().
		SetContext(ctx).
		SetPathParam("token", t.token).
		SetBody(map[string]any{
			"chat_id":    t.chatID,
			"text":       text,
			"parse_mode": "Markdown",
		}).
		SetError(&apiErr).
		Post("/bot{token}/sendMessage")
	if err != nil {
		return fmt.Errorf("telegram: failed to send message: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("telegram: API error (status %d): %v", resp.StatusCode(), apiErr["description"])
	}
	return nil
}
