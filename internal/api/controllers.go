package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"strategy-core/internal/backtest"
	"strategy-core/internal/ledger"
	"strategy-core/internal/market"
	"strategy-core/internal/strategy"
	"strategy-core/pkg/db"
)

const (
	defaultBacktestBars = 500
	maxBacktestBars     = 1000
)

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"runner": s.Runner.Status(),
		"risk":   s.Risk.Config(),
		"meta":   s.Meta,
	})
}

func (s *Server) getMetrics(c *gin.Context) {
	resp := gin.H{"runner": s.Metrics.Snapshot()}
	if s.Writer != nil {
		resp["persistence"] = s.Writer.Stats()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getStrategies(c *gin.Context) {
	type info struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Active      bool   `json:"active"`
	}
	active := s.Runner.Strategy().Name()
	out := make([]info, 0, len(strategy.All()))
	for _, st := range strategy.All() {
		out = append(out, info{Name: st.Name(), Description: st.Description(), Active: st.Name() == active})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getPositions(c *gin.Context) {
	c.JSON(http.StatusOK, s.Ledger.Positions())
}

func (s *Server) getOrders(c *gin.Context) {
	limit := queryInt(c, "limit", 50, 1000)
	c.JSON(http.StatusOK, s.Ledger.Orders(limit))
}

func (s *Server) getPnLToday(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"date":     time.Now().UTC().Format("2006-01-02"),
		"realized": s.Ledger.RealizedToday(),
	})
}

func (s *Server) getPrice(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	price, err := s.Source.FetchPrice(c.Request.Context(), symbol)
	if err != nil {
		respondMarketError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "price": price})
}

func (s *Server) getBacktests(c *gin.Context) {
	if s.DB == nil {
		c.JSON(http.StatusOK, []db.BacktestRun{})
		return
	}
	runs, err := s.DB.ListBacktestRuns(c.Request.Context(), queryInt(c, "limit", 50, 500))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	if runs == nil {
		runs = []db.BacktestRun{}
	}
	c.JSON(http.StatusOK, runs)
}

func (s *Server) getRisk(c *gin.Context) {
	c.JSON(http.StatusOK, s.Risk.Config())
}

func (s *Server) startRunner(c *gin.Context) {
	s.Runner.Start()
	c.JSON(http.StatusOK, gin.H{"state": s.Runner.State()})
}

func (s *Server) stopRunner(c *gin.Context) {
	s.Runner.Stop()
	c.JSON(http.StatusOK, gin.H{"state": s.Runner.State()})
}

func (s *Server) emergencyStop(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "manual"
	}
	orders := s.Runner.EmergencyStop(c.Request.Context(), req.Reason)
	if orders == nil {
		orders = []ledger.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"state": s.Runner.State(), "orders": orders})
}

func (s *Server) setStrategy(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", "name is required")
		return
	}
	if err := s.Runner.SetStrategy(req.Name); err != nil {
		respondError(c, http.StatusBadRequest, "UNKNOWN_STRATEGY", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"strategy": s.Runner.Strategy().Name()})
}

func (s *Server) updateRisk(c *gin.Context) {
	cfg := s.Risk.Config()
	if err := c.ShouldBindJSON(&cfg); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}
	if err := s.Risk.Update(cfg); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_RISK_CONFIG", err.Error())
		return
	}
	c.JSON(http.StatusOK, s.Risk.Config())
}

func (s *Server) placeOrder(c *gin.Context) {
	var req struct {
		Symbol string  `json:"symbol"`
		Side   string  `json:"side"`
		Amount float64 `json:"amount"`
		Price  float64 `json:"price"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}
	side := ledger.Side(strings.ToLower(req.Side))
	if side != ledger.SideBuy && side != ledger.SideSell {
		respondError(c, http.StatusBadRequest, "INVALID_SIDE", "side must be buy or sell")
		return
	}
	if req.Amount <= 0 || req.Price < 0 {
		respondError(c, http.StatusBadRequest, "INVALID_AMOUNT", "amount must be > 0 and price >= 0")
		return
	}
	symbol := strings.ToUpper(req.Symbol)
	if symbol == "" {
		symbol = s.Meta.Symbol
	}

	ctx := c.Request.Context()
	price := req.Price
	if price == 0 {
		p, err := s.Source.FetchPrice(ctx, symbol)
		if err != nil {
			respondMarketError(c, err)
			return
		}
		price = p
	}

	order := s.Ledger.PlaceOrder(ctx, symbol, side, req.Amount, price)
	status := http.StatusCreated
	if order.Status == ledger.StatusFailed {
		status = http.StatusBadGateway
	}
	c.JSON(status, order)
}

type backtestRequest struct {
	Strategy  string  `json:"strategy"`
	Symbol    string  `json:"symbol"`
	Timeframe string  `json:"timeframe"`
	Bars      int     `json:"bars"`
	Cash      float64 `json:"cash"`
}

func (s *Server) bindBacktest(c *gin.Context) (backtestRequest, []market.Candle, bool) {
	var req backtestRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
			return req, nil, false
		}
	}
	req.Symbol = strings.ToUpper(req.Symbol)
	if req.Symbol == "" {
		req.Symbol = s.Meta.Symbol
	}
	if req.Timeframe == "" {
		req.Timeframe = s.Meta.Timeframe
	}
	if _, err := market.ParseTimeframe(req.Timeframe); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_TIMEFRAME", err.Error())
		return req, nil, false
	}
	if req.Bars <= 0 {
		req.Bars = defaultBacktestBars
	}
	req.Bars = min(req.Bars, maxBacktestBars)
	if req.Cash <= 0 {
		req.Cash = s.Meta.BacktestCash
	}

	bars, err := s.Source.FetchBars(c.Request.Context(), req.Symbol, req.Timeframe, req.Bars)
	if err != nil {
		respondMarketError(c, err)
		return req, nil, false
	}
	if len(bars) <= backtest.WarmupBars {
		respondError(c, http.StatusUnprocessableEntity, "INSUFFICIENT_HISTORY", "not enough bars to backtest")
		return req, nil, false
	}
	return req, bars, true
}

func (s *Server) runBacktest(c *gin.Context) {
	req, bars, ok := s.bindBacktest(c)
	if !ok {
		return
	}
	name := req.Strategy
	if name == "" {
		name = s.Runner.Strategy().Name()
	}
	strat, err := strategy.Get(name)
	if err != nil {
		respondError(c, http.StatusBadRequest, "UNKNOWN_STRATEGY", err.Error())
		return
	}

	res := backtest.NewEngine(s.Risk.Config()).Run(bars, strat, req.Cash)
	s.saveRun(c, req, len(bars), res)

	c.JSON(http.StatusOK, gin.H{
		"summary": summary(res),
		"result":  res,
	})
}

func (s *Server) compareBacktests(c *gin.Context) {
	req, bars, ok := s.bindBacktest(c)
	if !ok {
		return
	}
	rep := backtest.NewEngine(s.Risk.Config()).Compare(bars, strategy.All(), req.Cash)
	for _, row := range rep.Rows {
		s.saveRun(c, req, len(bars), row.Result)
	}
	c.JSON(http.StatusOK, rep)
}

func (s *Server) saveRun(c *gin.Context, req backtestRequest, nbars int, res backtest.Result) {
	if s.DB == nil {
		return
	}
	run := db.BacktestRun{
		ID:              uuid.NewString(),
		CreatedAt:       time.Now(),
		Strategy:        res.Strategy,
		Symbol:          req.Symbol,
		Timeframe:       req.Timeframe,
		Bars:            nbars,
		StartCash:       res.StartCash,
		EndCash:         res.EndCash,
		ReturnPct:       res.ReturnPct(),
		ExcessReturnPct: res.ReturnPct() - res.BuyHoldPct(),
		Trades:          res.Trades,
		Wins:            res.Wins,
		MaxDrawdown:     res.MaxDrawdown,
	}
	if err := s.DB.InsertBacktestRun(c.Request.Context(), run); err != nil {
		c.Error(err)
	}
}

func summary(r backtest.Result) gin.H {
	return gin.H{
		"strategy":     r.Strategy,
		"start_cash":   r.StartCash,
		"end_cash":     r.EndCash,
		"return_pct":   r.ReturnPct(),
		"buy_hold_pct": r.BuyHoldPct(),
		"win_rate":     r.WinRate(),
		"trades":       r.Trades,
		"max_drawdown": r.MaxDrawdown,
	}
}

func respondMarketError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, market.ErrRateLimited):
		respondError(c, http.StatusTooManyRequests, "RATE_LIMITED", err.Error())
	default:
		respondError(c, http.StatusServiceUnavailable, "DATA_UNAVAILABLE", err.Error())
	}
}

func queryInt(c *gin.Context, key string, def, max int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
