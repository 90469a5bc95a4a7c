package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"equity-sim/internal/events"
	"equity-sim/internal/market"
	"equity-sim/internal/risk"
)

// Order sides, types and terminal statuses.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	OrderTypeMarket = "MARKET"
	OrderTypeLimit  = "LIMIT"

	OrderStatusFilled   = "FILLED"
	OrderStatusRejected = "REJECTED"
)

// OrderRequest is a caller's order intent.
type OrderRequest struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Type       string  `json:"type"`
	Shares     int     `json:"shares"`
	LimitPrice float64 `json:"limit_price,omitempty"`
}

// Order is the record of one processed order. Rejections carry a Reason;
// fills carry the FillPrice.
type Order struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Type       string    `json:"type"`
	Shares     int       `json:"shares"`
	LimitPrice float64   `json:"limit_price,omitempty"`
	Status     string    `json:"status"`
	FillPrice  float64   `json:"fill_price,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ExecutionRecorder receives every processed order for durable logging.
type ExecutionRecorder interface {
	RecordExecution(order Order) error
}

// PaperTrader executes orders against live quotes with simulated fills.
// All entry points serialize on an internal mutex so a single instance can
// back an API.
type PaperTrader struct {
	mu       sync.Mutex
	quotes   market.QuoteProvider
	account  *Account
	drawdown *risk.DrawdownController
	exposure *risk.ExposureManager
	bus      *events.EventBus
	recorder ExecutionRecorder
	orders   []Order
	logger   zerolog.Logger
}

// NewPaperTrader wires a paper trader over an account. bus and recorder
// may be nil.
func NewPaperTrader(
	quotes market.QuoteProvider,
	account *Account,
	drawdown *risk.DrawdownController,
	exposure *risk.ExposureManager,
	bus *events.EventBus,
	recorder ExecutionRecorder,
	logger zerolog.Logger,
) *PaperTrader {
	return &PaperTrader{
		quotes:   quotes,
		account:  account,
		drawdown: drawdown,
		exposure: exposure,
		bus:      bus,
		recorder: recorder,
		logger:   logger.With().Str("component", "paper_trader").Logger(),
	}
}

// ExecuteOrder processes one order synchronously and returns its terminal
// record. Unfillable conditions reject the order; they are results, not
// errors.
func (t *PaperTrader) ExecuteOrder(ctx context.Context, req OrderRequest) Order {
	t.mu.Lock()
	defer t.mu.Unlock()

	order := Order{
		ID:         uuid.New().String(),
		Symbol:     req.Symbol,
		Side:       req.Side,
		Type:       req.Type,
		Shares:     req.Shares,
		LimitPrice: req.LimitPrice,
		Timestamp:  time.Now().UTC(),
	}

	if req.Shares <= 0 {
		return t.reject(order, "Invalid share count")
	}
	if req.Side != SideBuy && req.Side != SideSell {
		return t.reject(order, fmt.Sprintf("Unsupported side: %s", req.Side))
	}
	if req.Side == SideBuy && t.drawdown.KillSwitchActive() {
		return t.reject(order, "Kill switch active")
	}

	quote, err := t.quotes.GetQuote(ctx, req.Symbol)
	if err != nil || quote.Price <= 0 {
		return t.reject(order, fmt.Sprintf("Cannot price %s", req.Symbol))
	}

	fillPrice, reason := resolveFillPrice(req, quote)
	if reason != "" {
		return t.reject(order, reason)
	}

	switch req.Side {
	case SideBuy:
		cost := float64(req.Shares) * fillPrice
		if cost > t.account.Cash() {
			return t.reject(order, fmt.Sprintf("Insufficient cash: need %.2f, have %.2f", cost, t.account.Cash()))
		}
		if err := t.account.Buy(req.Symbol, req.Shares, fillPrice, 0, order.Timestamp); err != nil {
			return t.reject(order, err.Error())
		}

	case SideSell:
		p, held := t.account.Position(req.Symbol)
		if !held {
			return t.reject(order, fmt.Sprintf("No position in %s", req.Symbol))
		}
		if req.Shares > p.Shares {
			return t.reject(order, fmt.Sprintf("Insufficient shares: have %d, selling %d", p.Shares, req.Shares))
		}
		trade, err := t.account.Sell(req.Symbol, req.Shares, fillPrice, 0, order.Timestamp, "Sell order")
		if err != nil {
			return t.reject(order, err.Error())
		}
		t.publish(events.EventTradeClosed, map[string]interface{}{
			"symbol": trade.Symbol,
			"pnl":    trade.PnL,
			"shares": trade.Shares,
		})
	}

	order.Status = OrderStatusFilled
	order.FillPrice = fillPrice
	t.finish(order)
	t.publish(events.EventOrderFilled, map[string]interface{}{
		"order_id": order.ID,
		"symbol":   order.Symbol,
		"side":     order.Side,
		"shares":   order.Shares,
		"price":    order.FillPrice,
	})

	t.logger.Info().
		Str("order_id", order.ID).
		Str("symbol", order.Symbol).
		Str("side", order.Side).
		Int("shares", order.Shares).
		Float64("price", order.FillPrice).
		Msg("order filled")

	return order
}

// resolveFillPrice determines the execution price for a request against the
// current quote. A non-empty reason means the order cannot fill. Limit
// orders fill at the limit price only when the market has crossed it
// favorably.
func resolveFillPrice(req OrderRequest, quote market.Quote) (float64, string) {
	switch req.Type {
	case OrderTypeMarket:
		return quote.Price, ""
	case OrderTypeLimit:
		if req.LimitPrice <= 0 {
			return 0, "Invalid limit price"
		}
		if req.Side == SideBuy && quote.Price <= req.LimitPrice {
			return req.LimitPrice, ""
		}
		if req.Side == SideSell && quote.Price >= req.LimitPrice {
			return req.LimitPrice, ""
		}
		return 0, "Limit price not met"
	default:
		return 0, fmt.Sprintf("Unsupported order type: %s", req.Type)
	}
}

func (t *PaperTrader) reject(order Order, reason string) Order {
	order.Status = OrderStatusRejected
	order.Reason = reason
	t.finish(order)
	t.publish(events.EventOrderRejected, map[string]interface{}{
		"order_id": order.ID,
		"symbol":   order.Symbol,
		"side":     order.Side,
		"reason":   reason,
	})

	t.logger.Info().
		Str("order_id", order.ID).
		Str("symbol", order.Symbol).
		Str("reason", reason).
		Msg("order rejected")

	return order
}

func (t *PaperTrader) finish(order Order) {
	t.orders = append(t.orders, order)
	if t.recorder != nil {
		if err := t.recorder.RecordExecution(order); err != nil {
			t.logger.Warn().Err(err).Str("order_id", order.ID).Msg("execution record failed")
		}
	}
}

func (t *PaperTrader) publish(eventType events.EventType, data map[string]interface{}) {
	if t.bus == nil {
		return
	}
	t.bus.Publish(events.Event{Type: eventType, Data: data})
}

// ProcessMarketData refreshes marks for all held symbols and pushes the
// resulting equity into the risk subsystem. A failed quote leaves that
// symbol's previous mark in place.
func (t *PaperTrader) ProcessMarketData(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	wasKilled := t.drawdown.KillSwitchActive()

	for _, p := range t.account.Positions() {
		quote, err := t.quotes.GetQuote(ctx, p.Symbol)
		if err != nil || quote.Price <= 0 {
			continue
		}
		t.account.MarkToMarket(p.Symbol, quote.Price)
	}

	equity := t.account.Equity()
	t.account.RecordEquity(equity, time.Now().UTC())
	t.drawdown.Update(equity)
	t.exposure.UpdateAccountValue(equity)

	t.publish(events.EventEquityUpdate, map[string]interface{}{
		"equity": equity,
		"cash":   t.account.Cash(),
	})

	if !wasKilled && t.drawdown.KillSwitchActive() {
		t.publish(events.EventKillSwitchTripped, map[string]interface{}{
			"drawdown": t.drawdown.Drawdown().CurrentDrawdown,
		})
	}
}

// Orders returns all processed orders, newest last.
func (t *PaperTrader) Orders() []Order {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Order, len(t.orders))
	copy(out, t.orders)
	return out
}

// Positions returns open positions, optionally refreshing marks first.
func (t *PaperTrader) Positions(ctx context.Context, refresh bool) []Position {
	if refresh {
		t.ProcessMarketData(ctx)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.account.Positions()
}

// EquityCurve returns the recorded equity snapshots.
func (t *PaperTrader) EquityCurve() []float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	curve, _ := t.account.EquityCurve()
	return curve
}

// Trades returns all closed trades.
func (t *PaperTrader) Trades() []Trade {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.account.Trades()
}

// GetAccountSummary returns the account state for API consumption.
func (t *PaperTrader) GetAccountSummary() map[string]interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	dd := t.drawdown.Drawdown()
	return map[string]interface{}{
		"cash":           t.account.Cash(),
		"equity":         t.account.Equity(),
		"realized_pnl":   t.account.RealizedPnL(),
		"unrealized_pnl": t.account.UnrealizedPnL(),
		"open_positions": len(t.account.Positions()),
		"closed_trades":  len(t.account.Trades()),
		"total_orders":   len(t.orders),
		"drawdown":       dd.CurrentDrawdown,
		"max_drawdown":   dd.MaxDrawdown,
		"risk_state":     dd.State,
	}
}

// GetExecutionPreview estimates the cost of an order without placing it.
func (t *PaperTrader) GetExecutionPreview(ctx context.Context, symbol string, shares int) (map[string]interface{}, error) {
	quote, err := t.quotes.GetQuote(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("fetching quote for %s: %w", symbol, err)
	}
	if quote.Price <= 0 {
		return nil, fmt.Errorf("cannot price %s", symbol)
	}

	t.mu.Lock()
	cash := t.account.Cash()
	t.mu.Unlock()

	estimated := float64(shares) * quote.Price
	return map[string]interface{}{
		"symbol":          symbol,
		"shares":          shares,
		"quote_price":     quote.Price,
		"estimated_value": estimated,
		"cash":            cash,
		"sufficient_cash": estimated <= cash,
	}, nil
}

// Drawdown exposes the current risk snapshot.
func (t *PaperTrader) Drawdown() risk.DrawdownInfo {
	return t.drawdown.Drawdown()
}

// Exposure exposes the current exposure snapshot.
func (t *PaperTrader) Exposure() risk.ExposureInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exposure.TotalExposure()
}

// ResetKillSwitch clears the kill switch. Deliberate manual gate.
func (t *PaperTrader) ResetKillSwitch() {
	t.drawdown.ResetKillSwitch()
	t.publish(events.EventKillSwitchReset, map[string]interface{}{})
}
