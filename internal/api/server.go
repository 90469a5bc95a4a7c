// Package api exposes the simulators over HTTP: backtest runs, paper
// trading, risk state and a websocket event stream.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"equity-sim/config"
	"equity-sim/internal/analytics"
	"equity-sim/internal/auth"
	"equity-sim/internal/database"
	"equity-sim/internal/events"
	"equity-sim/internal/sim"
)

// BacktestRunner executes one backtest over a fresh engine instance.
// Each call must use independent account and risk state.
type BacktestRunner func(ctx context.Context, req sim.BacktestRequest) (*sim.BacktestResult, error)

// Server is the HTTP API over one paper trader and a backtest runner.
type Server struct {
	router      *gin.Engine
	cfg         config.Config
	logger      zerolog.Logger
	trader      *sim.PaperTrader
	runBacktest BacktestRunner
	repo        *database.Repository
	authService *auth.Service
	analyzer    *analytics.PerformanceAnalyzer
	tradeLog    *analytics.TradeLogger
	hub         *Hub
}

// NewServer wires routes and the websocket hub. repo and tradeLog may be
// nil when persistence is disabled.
func NewServer(
	cfg config.Config,
	trader *sim.PaperTrader,
	runBacktest BacktestRunner,
	repo *database.Repository,
	authService *auth.Service,
	tradeLog *analytics.TradeLogger,
	bus *events.EventBus,
	logger zerolog.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:      gin.New(),
		cfg:         cfg,
		logger:      logger.With().Str("component", "api").Logger(),
		trader:      trader,
		runBacktest: runBacktest,
		repo:        repo,
		authService: authService,
		analyzer:    analytics.NewPerformanceAnalyzer(),
		tradeLog:    tradeLog,
		hub:         NewHub(logger),
	}

	if bus != nil {
		bus.SubscribeAll(func(event events.Event) {
			s.hub.Broadcast(event)
		})
	}

	s.router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.ServerConfig.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.ServerConfig.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	s.router.Use(cors.New(corsConfig))

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})
	s.router.POST("/api/auth/login", s.handleLogin)
	s.router.GET("/ws", s.handleWebSocket)

	api := s.router.Group("/api")
	if s.cfg.AuthConfig.Enabled {
		api.Use(auth.Middleware(s.authService))
	}

	api.POST("/backtests", s.handleRunBacktest)
	api.GET("/backtests", s.handleListBacktests)
	api.GET("/backtests/:id", s.handleGetBacktest)

	api.POST("/orders", s.handlePlaceOrder)
	api.GET("/orders", s.handleListOrders)
	api.GET("/orders/preview", s.handleOrderPreview)

	api.GET("/account", s.handleAccountSummary)
	api.GET("/positions", s.handlePositions)
	api.GET("/trades", s.handleTrades)
	api.GET("/performance", s.handlePerformance)
	api.GET("/trade-log", s.handleTradeLog)

	api.GET("/risk", s.handleRiskState)
	api.POST("/risk/kill-switch/reset", s.handleKillSwitchReset)
}

// Run starts the hub and serves until the listener fails.
func (s *Server) Run() error {
	go s.hub.Run()

	addr := fmt.Sprintf(":%d", s.cfg.ServerConfig.Port)
	s.logger.Info().Str("addr", addr).Msg("api listening")
	return s.router.Run(addr)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
