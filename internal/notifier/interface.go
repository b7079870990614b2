// Package notifier pushes trade events to external channels.
package notifier

import (
	"context"
	"time"

	"github.com/newthinker/predator/internal/core"
)

type Kind string

const (
	KindEntry Kind = "entry"
	KindExit  Kind = "exit"
	KindError Kind = "error"
	KindAlert Kind = "alert"
)

// Event is one thing worth telling a human about.
type Event struct {
	Kind    Kind
	Intent  core.TradeIntent
	OrderID string
	Message string
	Time    time.Time
}

// FromIntent builds the event for an acknowledged intent.
func FromIntent(intent core.TradeIntent, orderID string) Event {
	kind := KindEntry
	if intent.Side == core.SideSell {
		kind = KindExit
	}
	return Event{Kind: kind, Intent: intent, OrderID: orderID, Message: intent.String(), Time: intent.CreatedAt}
}

type Notifier interface {
	Name() string
	Send(ctx context.Context, ev Event) error
	SendBatch(ctx context.Context, evs []Event) error
}
