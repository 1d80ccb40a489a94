package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"strategy-core/internal/events"
	"strategy-core/internal/ledger"
	"strategy-core/internal/market"
	"strategy-core/internal/monitor"
	"strategy-core/internal/persistence"
	"strategy-core/internal/risk"
	"strategy-core/internal/runner"
	"strategy-core/pkg/db"
)

// FeedHealth reports websocket feed liveness; satisfied by *market.PriceFeed.
type FeedHealth interface {
	Healthy() bool
	LastMessage() time.Time
}

// Server wires HTTP endpoints around the runner, ledger and event bus.
type Server struct {
	Router  *gin.Engine
	Bus     *events.Bus
	DB      *db.Database
	Runner  *runner.Runner
	Ledger  *ledger.Ledger
	Risk    *risk.Manager
	Source  market.Source
	Feed    FeedHealth
	Metrics *monitor.Metrics
	Writer  *persistence.BatchWriter

	JWTSecret         string
	AdminPasswordHash string
	Meta              SystemMeta

	limiters *ipLimiters
}

// SystemMeta describes the runtime configuration exposed at /api/status.
type SystemMeta struct {
	Live         bool    `json:"live"`
	Venue        string  `json:"venue"`
	Symbol       string  `json:"symbol"`
	Timeframe    string  `json:"timeframe"`
	UseMockFeed  bool    `json:"use_mock_feed"`
	BacktestCash float64 `json:"backtest_cash"`
	Version      string  `json:"version"`
}

// Deps carries the collaborators the server needs. DB, Feed and Writer are
// optional.
type Deps struct {
	Bus     *events.Bus
	DB      *db.Database
	Runner  *runner.Runner
	Ledger  *ledger.Ledger
	Risk    *risk.Manager
	Source  market.Source
	Feed    FeedHealth
	Metrics *monitor.Metrics
	Writer  *persistence.BatchWriter
}

// NewServer builds the router with the middleware stack and routes.
func NewServer(deps Deps, meta SystemMeta, jwtSecret, adminPasswordHash string) *Server {
	r := gin.New()
	s := &Server{
		Router:            r,
		Bus:               deps.Bus,
		DB:                deps.DB,
		Runner:            deps.Runner,
		Ledger:            deps.Ledger,
		Risk:              deps.Risk,
		Source:            deps.Source,
		Feed:              deps.Feed,
		Metrics:           deps.Metrics,
		Writer:            deps.Writer,
		JWTSecret:         jwtSecret,
		AdminPasswordHash: adminPasswordHash,
		Meta:              meta,
		limiters:          newIPLimiters(20, 50),
	}
	if s.Metrics == nil && s.Runner != nil {
		s.Metrics = s.Runner.Metrics()
	}

	// Middleware order matters.
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(s.Metrics))
	r.Use(s.limiters.Middleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.POST("/auth/login", s.login)

		api.GET("/status", s.getStatus)
		api.GET("/metrics", s.getMetrics)
		api.GET("/strategies", s.getStrategies)
		api.GET("/positions", s.getPositions)
		api.GET("/orders", s.getOrders)
		api.GET("/pnl/today", s.getPnLToday)
		api.GET("/price/:symbol", s.getPrice)
		api.GET("/backtests", s.getBacktests)
		api.GET("/risk", s.getRisk)

		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.POST("/runner/start", s.startRunner)
			protected.POST("/runner/stop", s.stopRunner)
			protected.POST("/runner/emergency-stop", s.emergencyStop)
			protected.PUT("/runner/strategy", s.setStrategy)
			protected.PUT("/risk", s.updateRisk)
			protected.POST("/orders", s.placeOrder)
			protected.POST("/backtest", s.runBacktest)
			protected.POST("/backtest/compare", s.compareBacktests)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	resp := gin.H{"status": "ok", "time": time.Now().UTC()}
	if s.Feed != nil {
		resp["feed_healthy"] = s.Feed.Healthy()
		if last := s.Feed.LastMessage(); !last.IsZero() {
			resp["feed_last_message"] = last.UTC()
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Start serves on addr until ctx ends, then drains in-flight requests.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[API] listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"code": code, "error": msg})
}
