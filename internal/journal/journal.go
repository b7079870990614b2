// Package journal keeps an append-only JSON-lines audit trail of every
// entry and exit the trader acts on.
package journal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/newthinker/predator/internal/core"
	"github.com/newthinker/predator/internal/logger"
	"github.com/newthinker/predator/internal/storage/archive"
	"go.uber.org/zap"
)

type Action string

const (
	ActionEntry Action = "ENTRY"
	ActionExit  Action = "EXIT"
)

// Entry is one journal line.
type Entry struct {
	Timestamp  time.Time `json:"timestamp"`
	Ticker     string    `json:"ticker"`
	Action     Action    `json:"action"`
	Price      float64   `json:"price"`
	Score      int       `json:"score"`
	Qty        int64     `json:"qty"`
	StopLoss   float64   `json:"stop_loss,omitempty"`
	TakeProfit float64   `json:"take_profit,omitempty"`
	Signals    []string  `json:"signals"`
	Reason     string    `json:"reason,omitempty"`
	OrderID    string    `json:"order_id,omitempty"`
	IntentID   string    `json:"intent_id,omitempty"`
}

// FromIntent converts an acknowledged intent into a journal line.
func FromIntent(intent core.TradeIntent, orderID string) Entry {
	action := ActionEntry
	if intent.Side == core.SideSell {
		action = ActionExit
	}
	signals := intent.Signals
	if signals == nil {
		signals = []string{}
	}
	return Entry{
		Timestamp:  intent.CreatedAt.UTC(),
		Ticker:     intent.Symbol,
		Action:     action,
		Price:      intent.ReferencePrice,
		Score:      intent.Score,
		Qty:        intent.Quantity,
		StopLoss:   intent.StopLossPrice,
		TakeProfit: intent.TakeProfitPrice,
		Signals:    signals,
		Reason:     intent.Reason,
		OrderID:    orderID,
		IntentID:   intent.ID,
	}
}

type Journal struct {
	store archive.Store
	key   string
	log   *zap.Logger
}

func New(store archive.Store, key string, log *zap.Logger) *Journal {
	if key == "" {
		key = "trade_journal.jsonl"
	}
	log = logger.OrNop(log)
	return &Journal{store: store, key: key, log: log}
}

// Record appends e. Failures are logged and returned; callers treat the
// journal as best effort and never undo a trade because of it.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}
	line = append(line, '\n')
	if err := j.store.Append(ctx, j.key, line); err != nil {
		j.log.Error("journal write failed",
			zap.String("ticker", e.Ticker),
			zap.String("action", string(e.Action)),
			zap.Error(err))
		return fmt.Errorf("append journal: %w", err)
	}
	j.log.Info("journal",
		zap.String("ticker", e.Ticker),
		zap.String("action", string(e.Action)),
		zap.Int64("qty", e.Qty),
		zap.Float64("price", e.Price))
	return nil
}

// RecordIntent is Record(FromIntent(intent, orderID)).
func (j *Journal) RecordIntent(ctx context.Context, intent core.TradeIntent, orderID string) error {
	return j.Record(ctx, FromIntent(intent, orderID))
}

// Entries reads the whole journal. Malformed lines are skipped.
func (j *Journal) Entries(ctx context.Context) ([]Entry, error) {
	ok, err := j.store.Exists(ctx, j.key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	data, err := j.store.Read(ctx, j.key)
	if err != nil {
		return nil, err
	}

	var out []Entry
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			j.log.Warn("skipping malformed journal line", zap.Error(err))
			continue
		}
		out = append(out, e)
	}
	return out, sc.Err()
}
