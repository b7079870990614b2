// Package webhook posts trade events as JSON to an HTTP endpoint.
package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/newthinker/predator/internal/notifier"
)

type Webhook struct {
	url    string
	client *resty.Client
}

var _ notifier.Notifier = (*Webhook)(nil)

func New(url string, headers map[string]string) (*Webhook, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook: url is required")
	}
	client := resty.New().
		SetTimeout(30*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeaders(headers)
	return &Webhook{url: url, client: client}, nil
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Send(ctx context.Context, ev notifier.Event) error {
	return w.post(ctx, payload(ev))
}

func (w *Webhook) SendBatch(ctx context.Context, evs []notifier.Event) error {
	if len(evs) == 0 {
		return nil
	}
	items := make([]map[string]any, len(evs))
	for i, ev := range evs {
		items[i] = payload(ev)
	}
	return w.post(ctx, map[string]any{
		"type":   "batch",
		"count":  len(evs),
		"events": items,
	})
}

func payload(ev notifier.Event) map[string]any {
	p := map[string]any{
		"type":    string(ev.Kind),
		"message": ev.Message,
		"time":    ev.Time.UTC().Format(time.RFC3339),
	}
	if ev.Intent.Symbol != "" {
		p["symbol"] = ev.Intent.Symbol
		p["side"] = string(ev.Intent.Side)
		p["qty"] = ev.Intent.Quantity
		p["price"] = ev.Intent.ReferencePrice
		p["score"] = ev.Intent.Score
		p["signals"] = ev.Intent.Signals
	}
	if ev.Intent.IsBracket() {
		p["stop_loss"] = ev.Intent.StopLossPrice
		p["take_profit"] = ev.Intent.TakeProfitPrice
	}
	if ev.OrderID != "" {
		p["order_id"] = ev.OrderID
	}
	return p
}

func (w *Webhook) post(ctx context.Context, body any) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("webhook: request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook: server returned %d", resp.StatusCode())
	}
	return nil
}
