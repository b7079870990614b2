// Package alpaca adapts the Alpaca trading API to broker.Broker.
package alpaca

import (
	"context"
	"errors"
	"net/http"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/google/uuid"
	"github.com/newthinker/predator/internal/broker"
	"github.com/newthinker/predator/internal/core"
	"github.com/newthinker/predator/internal/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const PaperURL = "https://paper-api.alpaca.markets"

// tradingClient is the part of alpaca.Client the adapter calls.
type tradingClient interface {
	GetAccount() (*alpaca.Account, error)
	GetPositions() ([]alpaca.Position, error)
	PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error)
	ClosePosition(symbol string, req alpaca.ClosePositionRequest) (*alpaca.Order, error)
	GetOrders(req alpaca.GetOrdersRequest) ([]alpaca.Order, error)
	CancelOrder(orderID string) error
}

type Options struct {
	APIKey    string
	APISecret string
	// BaseURL defaults to the paper endpoint.
	BaseURL string
}

type Broker struct {
	client tradingClient
	log    *zap.Logger
}

var _ broker.Broker = (*Broker)(nil)

func New(opts Options, log *zap.Logger) (*Broker, error) {
	if opts.APIKey == "" || opts.APISecret == "" {
		return nil, core.Errorf(core.ErrConfigMissing, "alpaca api key and secret are required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = PaperURL
	}
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
		BaseURL:   opts.BaseURL,
	})
	return newWithClient(client, log), nil
}

func newWithClient(client tradingClient, log *zap.Logger) *Broker {
	log = logger.OrNop(log)
	return &Broker{client: client, log: log}
}

func (b *Broker) Name() string { return "alpaca" }

// SubmitBracketOrder places a GTC market buy with take-profit and stop legs.
func (b *Broker) SubmitBracketOrder(ctx context.Context, intent core.TradeIntent) (string, error) {
	if err := broker.ValidateBracket(intent); err != nil {
		return "", core.WrapError(core.ErrOrderRejected, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	qty := decimal.NewFromInt(intent.Quantity)
	target := decimal.NewFromFloat(intent.TakeProfitPrice).Round(2)
	stop := decimal.NewFromFloat(intent.StopLossPrice).Round(2)
	clientID := intent.ID
	if clientID == "" {
		clientID = uuid.NewString()
	}

	order, err := b.client.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:        intent.Symbol,
		Qty:           &qty,
		Side:          alpaca.Buy,
		Type:          alpaca.Market,
		TimeInForce:   alpaca.GTC,
		OrderClass:    alpaca.Bracket,
		TakeProfit:    &alpaca.TakeProfit{LimitPrice: &target},
		StopLoss:      &alpaca.StopLoss{StopPrice: &stop},
		ClientOrderID: clientID,
	})
	if err != nil {
		if isStatus(err, http.StatusForbidden, http.StatusUnprocessableEntity) {
			return "", core.WrapError(core.ErrOrderRejected, err)
		}
		return "", err
	}
	b.log.Info("bracket order placed",
		zap.String("symbol", intent.Symbol),
		zap.String("order_id", order.ID),
		zap.String("client_order_id", clientID),
		zap.Int64("qty", intent.Quantity),
		zap.String("stop", stop.String()),
		zap.String("target", target.String()))
	return order.ID, nil
}

// ClosePosition cancels the symbol's resting legs, which hold the shares,
// then liquidates at market.
func (b *Broker) ClosePosition(ctx context.Context, symbol string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	open, err := b.client.GetOrders(alpaca.GetOrdersRequest{Status: "open", Symbols: []string{symbol}})
	if err != nil {
		return "", err
	}
	for _, o := range open {
		if err := b.client.CancelOrder(o.ID); err != nil {
			b.log.Warn("cancel leg failed", zap.String("symbol", symbol), zap.String("order_id", o.ID), zap.Error(err))
		}
	}

	order, err := b.client.ClosePosition(symbol, alpaca.ClosePositionRequest{})
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return "", core.WrapError(core.ErrNoSuchPosition, err)
		}
		return "", err
	}
	return order.ID, nil
}

func (b *Broker) GetPositions(ctx context.Context) ([]broker.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := b.client.GetPositions()
	if err != nil {
		return nil, core.WrapError(core.ErrBrokerDisconnected, err)
	}
	out := make([]broker.Position, 0, len(raw))
	for _, p := range raw {
		out = append(out, broker.Position{
			Symbol:      p.Symbol,
			Quantity:    p.Qty.IntPart(),
			AverageCost: p.AvgEntryPrice.InexactFloat64(),
		})
	}
	return out, nil
}

func (b *Broker) GetEquity(ctx context.Context) (decimal.Decimal, error) {
	bal, err := b.GetBalance(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return bal.Equity, nil
}

func (b *Broker) GetBalance(ctx context.Context) (broker.Balance, error) {
	if err := ctx.Err(); err != nil {
		return broker.Balance{}, err
	}
	acct, err := b.client.GetAccount()
	if err != nil {
		return broker.Balance{}, core.WrapError(core.ErrBrokerDisconnected, err)
	}
	return broker.Balance{
		Currency:   acct.Currency,
		Cash:       acct.Cash,
		Equity:     acct.Equity,
		LastEquity: acct.LastEquity,
	}, nil
}

func (b *Broker) GetOpenOrders(ctx context.Context) ([]broker.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := b.client.GetOrders(alpaca.GetOrdersRequest{Status: "open"})
	if err != nil {
		return nil, core.WrapError(core.ErrBrokerDisconnected, err)
	}
	out := make([]broker.Order, 0, len(raw))
	for _, o := range raw {
		out = append(out, toOrder(o))
	}
	return out, nil
}

func toOrder(o alpaca.Order) broker.Order {
	side := core.SideBuy
	if o.Side == alpaca.Sell {
		side = core.SideSell
	}
	var qty int64
	if o.Qty != nil {
		qty = o.Qty.IntPart()
	}
	var leg string
	if side == core.SideSell {
		switch o.Type {
		case alpaca.Stop, alpaca.StopLimit:
			leg = "stop_loss"
		case alpaca.Limit:
			leg = "take_profit"
		}
	}
	status := broker.OrderStatusNew
	if o.Status == "partially_filled" {
		status = broker.OrderStatusPartial
	}
	return broker.Order{
		OrderID:       o.ID,
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.Symbol,
		Side:          side,
		Quantity:      qty,
		Status:        status,
		Leg:           leg,
		CreatedAt:     o.CreatedAt,
	}
}

func isStatus(err error, codes ...int) bool {
	var apiErr *alpaca.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, c := range codes {
		if apiErr.StatusCode == c {
			return true
		}
	}
	return false
}
