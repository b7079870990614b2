package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newthinker/predator/internal/core"
	"github.com/newthinker/predator/internal/notifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	_, err := New("", "1")
	assert.Error(t, err)
	_, err = New("tok", "")
	assert.Error(t, err)
}

func TestTelegram_Send(t *testing.T) {
	var path string
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg, err := New("123:abc", "42", WithBaseURL(srv.URL))
	require.NoError(t, err)

	ev := notifier.FromIntent(core.TradeIntent{
		Symbol: "AMD", Side: core.SideBuy, Quantity: 5, ReferencePrice: 150,
		StopLossPrice: 140, TakeProfitPrice: 180, Score: 9, Signals: []string{"Deep Dip"},
		CreatedAt: time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC),
	}, "o1")
	require.NoError(t, tg.Send(context.Background(), ev))

	assert.Equal(t, "/bot123:abc/sendMessage", path)
	assert.Equal(t, "42", body["chat_id"])
	text := body["text"].(string)
	assert.Contains(t, text, "BUY AMD")
	assert.Contains(t, text, "Stop $140.00 / Target $180.00")
	assert.Contains(t, text, "Deep Dip")
}

func TestTelegram_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	tg, err := New("t", "c", WithBaseURL(srv.URL))
	require.NoError(t, err)
	err = tg.Send(context.Background(), notifier.Event{Kind: notifier.KindError, Message: "cycle failed"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestFormat_Exit(t *testing.T) {
	text := format(notifier.FromIntent(core.TradeIntent{Symbol: "AMD", Side: core.SideSell, Quantity: 5, ReferencePrice: 160, Reason: "AlphaTrend Bearish Flip"}, ""))
	assert.Contains(t, text, "SELL AMD")
	assert.Contains(t, text, "AlphaTrend Bearish Flip")
}

func TestFormat_Alert(t *testing.T) {
	text := format(notifier.Event{Kind: notifier.KindAlert, Message: "[CRITICAL] cycle_failures: trader cycles keep failing"})
	assert.Equal(t, "🚨 [CRITICAL] cycle_failures: trader cycles keep failing\n", text)
}
