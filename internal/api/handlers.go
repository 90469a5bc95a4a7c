package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"equity-sim/internal/auth"
	"equity-sim/internal/database"
	"equity-sim/internal/events"
	"equity-sim/internal/sim"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	if !s.cfg.AuthConfig.Enabled {
		c.JSON(http.StatusNotFound, gin.H{"error": "authentication disabled"})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := s.authService.Login(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

type backtestRequest struct {
	Symbol         string `json:"symbol" binding:"required"`
	StartDate      string `json:"start_date" binding:"required"` // YYYY-MM-DD
	EndDate        string `json:"end_date" binding:"required"`
	RequiredRegime string `json:"required_regime"`
}

func (s *Server) handleRunBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date, want YYYY-MM-DD"})
		return
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date, want YYYY-MM-DD"})
		return
	}

	result, err := s.runBacktest(c.Request.Context(), sim.BacktestRequest{
		Symbol:         req.Symbol,
		StartDate:      start,
		EndDate:        end,
		RequiredRegime: req.RequiredRegime,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", req.Symbol).Msg("backtest failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	if s.repo != nil {
		if err := s.repo.SaveBacktestResult(c.Request.Context(), result); err != nil {
			s.logger.Error().Err(err).Str("backtest_id", result.ID).Msg("persist failed")
		}
	}

	s.hub.Broadcast(events.Event{
		Type:      events.EventBacktestFinished,
		Timestamp: time.Now().UTC(),
		Data: map[string]interface{}{
			"backtest_id":  result.ID,
			"symbol":       result.Symbol,
			"total_trades": len(result.Trades),
		},
	})

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleListBacktests(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence disabled"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	results, err := s.repo.ListBacktestResults(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) handleGetBacktest(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence disabled"})
		return
	}

	summary, trades, err := s.repo.GetBacktestResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "backtest not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": summary, "trades": trades})
}

func (s *Server) handlePlaceOrder(c *gin.Context) {
	var req sim.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order := s.trader.ExecuteOrder(c.Request.Context(), req)
	status := http.StatusOK
	if order.Status == sim.OrderStatusRejected {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, order)
}

func (s *Server) handleListOrders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"orders": s.trader.Orders()})
}

func (s *Server) handleOrderPreview(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	shares, err := strconv.Atoi(c.DefaultQuery("shares", "0"))
	if err != nil || shares <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "shares must be a positive integer"})
		return
	}

	preview, err := s.trader.GetExecutionPreview(c.Request.Context(), symbol, shares)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, preview)
}

func (s *Server) handleAccountSummary(c *gin.Context) {
	c.JSON(http.StatusOK, s.trader.GetAccountSummary())
}

func (s *Server) handlePositions(c *gin.Context) {
	refresh := c.Query("refresh") == "true"
	c.JSON(http.StatusOK, gin.H{"positions": s.trader.Positions(c.Request.Context(), refresh)})
}

func (s *Server) handleTrades(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"trades": s.trader.Trades()})
}

func (s *Server) handlePerformance(c *gin.Context) {
	curve := s.trader.EquityCurve()
	trades := s.trader.Trades()
	years := float64(len(curve)) / 252
	c.JSON(http.StatusOK, s.analyzer.Report(curve, trades, years))
}

func (s *Server) handleTradeLog(c *gin.Context) {
	if s.tradeLog == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trade log disabled"})
		return
	}

	var start, end time.Time
	if v := c.Query("start"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start, want YYYY-MM-DD"})
			return
		}
		start = t
	}
	if v := c.Query("end"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end, want YYYY-MM-DD"})
			return
		}
		end = t
	}

	c.JSON(http.StatusOK, gin.H{
		"entries":  s.tradeLog.History(c.Query("symbol"), start, end),
		"analysis": s.tradeLog.Analyze(),
	})
}

func (s *Server) handleRiskState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"drawdown": s.trader.Drawdown(),
		"exposure": s.trader.Exposure(),
	})
}

// handleKillSwitchReset is the out-of-band manual gate: equity recovery
// never clears the switch, only this endpoint does.
func (s *Server) handleKillSwitchReset(c *gin.Context) {
	username, _ := c.Get(auth.ContextKeyUsername)
	s.logger.Warn().Interface("operator", username).Msg("kill switch reset requested")

	s.trader.ResetKillSwitch()
	c.JSON(http.StatusOK, gin.H{"kill_switch_active": false})
}
