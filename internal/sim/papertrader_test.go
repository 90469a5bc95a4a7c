package sim

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"equity-sim/config"
	"equity-sim/internal/events"
	"equity-sim/internal/market"
	"equity-sim/internal/risk"
)

func newPaperFixture(t *testing.T, initialCapital float64) (*PaperTrader, *market.SliceFeed, *risk.DrawdownController) {
	t.Helper()

	riskCfg := config.DefaultRiskConfig()
	account := NewAccount(initialCapital)
	drawdown := risk.NewDrawdownController(riskCfg, zerolog.Nop())
	exposure := risk.NewExposureManager(riskCfg, account, initialCapital)
	feed := market.NewSliceFeed()

	trader := NewPaperTrader(feed, account, drawdown, exposure, events.NewEventBus(), nil, zerolog.Nop())
	return trader, feed, drawdown
}

func TestPaperTrader_MarketOrderRoundTrip(t *testing.T) {
	trader, feed, _ := newPaperFixture(t, 100000)
	feed.SetQuote("AAPL", market.Quote{Symbol: "AAPL", Price: 100})
	ctx := context.Background()

	buy := trader.ExecuteOrder(ctx, OrderRequest{Symbol: "AAPL", Side: SideBuy, Type: OrderTypeMarket, Shares: 50})
	if buy.Status != OrderStatusFilled {
		t.Fatalf("buy rejected: %s", buy.Reason)
	}
	if buy.FillPrice != 100 {
		t.Errorf("fill price = %f, want 100", buy.FillPrice)
	}

	sell := trader.ExecuteOrder(ctx, OrderRequest{Symbol: "AAPL", Side: SideSell, Type: OrderTypeMarket, Shares: 50})
	if sell.Status != OrderStatusFilled {
		t.Fatalf("sell rejected: %s", sell.Reason)
	}

	// A zero-cost round trip at an unchanged price restores cash exactly.
	summary := trader.GetAccountSummary()
	if cash := summary["cash"].(float64); cash != 100000 {
		t.Errorf("cash after round trip = %f, want 100000", cash)
	}
}

func TestPaperTrader_LimitOrderMatrix(t *testing.T) {
	tests := []struct {
		name        string
		side        string
		limit       float64
		marketPrice float64
		wantFilled  bool
	}{
		{"buy limit above market fills at limit", SideBuy, 50, 49, true},
		{"buy limit below market rejected", SideBuy, 50, 51, false},
		{"buy limit at market fills", SideBuy, 50, 50, true},
		{"sell limit below market fills at limit", SideSell, 50, 51, true},
		{"sell limit above market rejected", SideSell, 50, 49, false},
		{"sell limit at market fills", SideSell, 50, 50, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trader, feed, _ := newPaperFixture(t, 100000)
			ctx := context.Background()

			if tt.side == SideSell {
				feed.SetQuote("AAPL", market.Quote{Symbol: "AAPL", Price: 40})
				buy := trader.ExecuteOrder(ctx, OrderRequest{Symbol: "AAPL", Side: SideBuy, Type: OrderTypeMarket, Shares: 10})
				if buy.Status != OrderStatusFilled {
					t.Fatalf("setup buy rejected: %s", buy.Reason)
				}
			}

			feed.SetQuote("AAPL", market.Quote{Symbol: "AAPL", Price: tt.marketPrice})
			order := trader.ExecuteOrder(ctx, OrderRequest{
				Symbol:     "AAPL",
				Side:       tt.side,
				Type:       OrderTypeLimit,
				Shares:     10,
				LimitPrice: tt.limit,
			})

			if tt.wantFilled {
				if order.Status != OrderStatusFilled {
					t.Fatalf("order rejected: %s", order.Reason)
				}
				if order.FillPrice != tt.limit {
					t.Errorf("fill price = %f, want limit %f", order.FillPrice, tt.limit)
				}
			} else {
				if order.Status != OrderStatusRejected {
					t.Fatal("order should be rejected")
				}
				if order.Reason != "Limit price not met" {
					t.Errorf("reason = %q, want %q", order.Reason, "Limit price not met")
				}
			}
		})
	}
}

func TestPaperTrader_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("insufficient cash", func(t *testing.T) {
		trader, feed, _ := newPaperFixture(t, 1000)
		feed.SetQuote("AAPL", market.Quote{Symbol: "AAPL", Price: 100})
		order := trader.ExecuteOrder(ctx, OrderRequest{Symbol: "AAPL", Side: SideBuy, Type: OrderTypeMarket, Shares: 100})
		if order.Status != OrderStatusRejected || !strings.Contains(order.Reason, "Insufficient cash") {
			t.Errorf("got %s (%q)", order.Status, order.Reason)
		}
	})

	t.Run("no position", func(t *testing.T) {
		trader, feed, _ := newPaperFixture(t, 100000)
		feed.SetQuote("AAPL", market.Quote{Symbol: "AAPL", Price: 100})
		order := trader.ExecuteOrder(ctx, OrderRequest{Symbol: "AAPL", Side: SideSell, Type: OrderTypeMarket, Shares: 10})
		if order.Status != OrderStatusRejected || !strings.Contains(order.Reason, "No position") {
			t.Errorf("got %s (%q)", order.Status, order.Reason)
		}
	})

	t.Run("insufficient shares", func(t *testing.T) {
		trader, feed, _ := newPaperFixture(t, 100000)
		feed.SetQuote("AAPL", market.Quote{Symbol: "AAPL", Price: 100})
		trader.ExecuteOrder(ctx, OrderRequest{Symbol: "AAPL", Side: SideBuy, Type: OrderTypeMarket, Shares: 10})
		order := trader.ExecuteOrder(ctx, OrderRequest{Symbol: "AAPL", Side: SideSell, Type: OrderTypeMarket, Shares: 20})
		if order.Status != OrderStatusRejected || !strings.Contains(order.Reason, "Insufficient shares") {
			t.Errorf("got %s (%q)", order.Status, order.Reason)
		}
	})

	t.Run("unsupported order type", func(t *testing.T) {
		trader, feed, _ := newPaperFixture(t, 100000)
		feed.SetQuote("AAPL", market.Quote{Symbol: "AAPL", Price: 100})
		order := trader.ExecuteOrder(ctx, OrderRequest{Symbol: "AAPL", Side: SideBuy, Type: "STOP", Shares: 10})
		if order.Status != OrderStatusRejected || !strings.Contains(order.Reason, "Unsupported order type") {
			t.Errorf("got %s (%q)", order.Status, order.Reason)
		}
	})

	t.Run("cannot price zero quote", func(t *testing.T) {
		trader, feed, _ := newPaperFixture(t, 100000)
		feed.SetQuote("AAPL", market.Quote{Symbol: "AAPL", Price: 0})
		order := trader.ExecuteOrder(ctx, OrderRequest{Symbol: "AAPL", Side: SideBuy, Type: OrderTypeMarket, Shares: 10})
		if order.Status != OrderStatusRejected || !strings.Contains(order.Reason, "Cannot price") {
			t.Errorf("got %s (%q)", order.Status, order.Reason)
		}
	})

	t.Run("missing quote", func(t *testing.T) {
		trader, _, _ := newPaperFixture(t, 100000)
		order := trader.ExecuteOrder(ctx, OrderRequest{Symbol: "NOPE", Side: SideBuy, Type: OrderTypeMarket, Shares: 10})
		if order.Status != OrderStatusRejected {
			t.Error("unquotable symbol must reject, not crash")
		}
	})

	t.Run("kill switch blocks buys", func(t *testing.T) {
		trader, feed, drawdown := newPaperFixture(t, 100000)
		feed.SetQuote("AAPL", market.Quote{Symbol: "AAPL", Price: 100})
		drawdown.ActivateKillSwitch()
		order := trader.ExecuteOrder(ctx, OrderRequest{Symbol: "AAPL", Side: SideBuy, Type: OrderTypeMarket, Shares: 10})
		if order.Status != OrderStatusRejected || order.Reason != "Kill switch active" {
			t.Errorf("got %s (%q)", order.Status, order.Reason)
		}
	})
}

func TestPaperTrader_VWAPOnIncrementalBuys(t *testing.T) {
	trader, feed, _ := newPaperFixture(t, 100000)
	ctx := context.Background()

	feed.SetQuote("AAPL", market.Quote{Symbol: "AAPL", Price: 100})
	trader.ExecuteOrder(ctx, OrderRequest{Symbol: "AAPL", Side: SideBuy, Type: OrderTypeMarket, Shares: 100})

	feed.SetQuote("AAPL", market.Quote{Symbol: "AAPL", Price: 110})
	trader.ExecuteOrder(ctx, OrderRequest{Symbol: "AAPL", Side: SideBuy, Type: OrderTypeMarket, Shares: 100})

	positions := trader.Positions(ctx, false)
	if len(positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(positions))
	}
	if positions[0].EntryPrice != 105 {
		t.Errorf("vwap entry = %f, want 105", positions[0].EntryPrice)
	}
	if positions[0].Shares != 200 {
		t.Errorf("shares = %d, want 200", positions[0].Shares)
	}
}

func TestPaperTrader_RealizedPnL(t *testing.T) {
	trader, feed, _ := newPaperFixture(t, 100000)
	ctx := context.Background()

	feed.SetQuote("AAPL", market.Quote{Symbol: "AAPL", Price: 100})
	trader.ExecuteOrder(ctx, OrderRequest{Symbol: "AAPL", Side: SideBuy, Type: OrderTypeMarket, Shares: 100})

	feed.SetQuote("AAPL", market.Quote{Symbol: "AAPL", Price: 120})
	trader.ExecuteOrder(ctx, OrderRequest{Symbol: "AAPL", Side: SideSell, Type: OrderTypeMarket, Shares: 100})

	trades := trader.Trades()
	if len(trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(trades))
	}
	if trades[0].PnL != 2000 {
		t.Errorf("pnl = %f, want 2000", trades[0].PnL)
	}
}

func TestPaperTrader_ProcessMarketDataTripsKillSwitch(t *testing.T) {
	trader, feed, drawdown := newPaperFixture(t, 100000)
	ctx := context.Background()

	feed.SetQuote("AAPL", market.Quote{Symbol: "AAPL", Price: 100})
	trader.ExecuteOrder(ctx, OrderRequest{Symbol: "AAPL", Side: SideBuy, Type: OrderTypeMarket, Shares: 900})
	trader.ProcessMarketData(ctx)

	if drawdown.KillSwitchActive() {
		t.Fatal("kill switch should not be active yet")
	}

	// A 25% crash on a 90% position drags equity past the 20% kill line.
	feed.SetQuote("AAPL", market.Quote{Symbol: "AAPL", Price: 75})
	trader.ProcessMarketData(ctx)

	if !drawdown.KillSwitchActive() {
		dd := trader.Drawdown()
		t.Fatalf("kill switch should trip, drawdown %f", dd.CurrentDrawdown)
	}

	summary := trader.GetAccountSummary()
	if summary["risk_state"] != risk.StateKilled {
		t.Errorf("risk state = %v, want %s", summary["risk_state"], risk.StateKilled)
	}
}

func TestPaperTrader_ExecutionPreview(t *testing.T) {
	trader, feed, _ := newPaperFixture(t, 5000)
	feed.SetQuote("AAPL", market.Quote{Symbol: "AAPL", Price: 100})

	preview, err := trader.GetExecutionPreview(context.Background(), "AAPL", 40)
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	if math.Abs(preview["estimated_value"].(float64)-4000) > 1e-9 {
		t.Errorf("estimated value = %v, want 4000", preview["estimated_value"])
	}
	if !preview["sufficient_cash"].(bool) {
		t.Error("4000 should be affordable with 5000 cash")
	}

	preview, err = trader.GetExecutionPreview(context.Background(), "AAPL", 100)
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	if preview["sufficient_cash"].(bool) {
		t.Error("10000 should not be affordable with 5000 cash")
	}
}
