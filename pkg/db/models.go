package db

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Order is a ledger order row.
type Order struct {
	ID         string
	Timestamp  time.Time
	Symbol     string
	Side       string
	Price      float64
	Amount     float64
	Status     string
	ExternalID string
}

// Position is the persisted per-symbol position.
type Position struct {
	Symbol      string
	Amount      float64
	AvgPrice    float64
	RealizedPnL float64
}

// BacktestRun summarizes one stored backtest.
type BacktestRun struct {
	ID              string
	CreatedAt       time.Time
	Strategy        string
	Symbol          string
	Timeframe       string
	Bars            int
	StartCash       float64
	EndCash         float64
	ReturnPct       float64
	ExcessReturnPct float64
	Trades          int
	Wins            int
	MaxDrawdown     float64
}

// Statement is a parameterized write, executed directly or queued on a
// batch writer.
type Statement struct {
	Query string
	Args  []any
}

func (d *Database) exec(ctx context.Context, st Statement) error {
	_, err := d.DB.ExecContext(ctx, st.Query, st.Args...)
	return err
}

// InsertOrderStmt appends an order row.
func InsertOrderStmt(o Order) Statement {
	return Statement{
		Query: `INSERT INTO orders (id, ts_ms, symbol, side, price, amount, status, external_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		Args: []any{o.ID, toMillis(o.Timestamp), o.Symbol, o.Side, o.Price, o.Amount, o.Status, nullString(o.ExternalID)},
	}
}

// SaveOrder appends an order row.
func (d *Database) SaveOrder(ctx context.Context, o Order) error {
	return d.exec(ctx, InsertOrderStmt(o))
}

// ListRecentOrders returns up to limit most recent orders, oldest first.
func (d *Database) ListRecentOrders(ctx context.Context, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, ts_ms, symbol, side, price, amount, status, external_id
		FROM (SELECT * FROM orders ORDER BY seq DESC LIMIT ?)
		ORDER BY seq ASC`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Order
	for rows.Next() {
		var (
			o   Order
			ts  int64
			ext sql.NullString
		)
		if err := rows.Scan(&o.ID, &ts, &o.Symbol, &o.Side, &o.Price, &o.Amount, &o.Status, &ext); err != nil {
			return nil, err
		}
		o.Timestamp = fromMillis(ts)
		o.ExternalID = ext.String
		res = append(res, o)
	}
	return res, rows.Err()
}

// UpsertPositionStmt stores the latest position for a symbol.
func UpsertPositionStmt(p Position) Statement {
	return Statement{
		Query: `INSERT INTO positions (symbol, amount, avg_price, realized_pnl, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(symbol) DO UPDATE SET
			amount = excluded.amount,
			avg_price = excluded.avg_price,
			realized_pnl = excluded.realized_pnl,
			updated_at = CURRENT_TIMESTAMP`,
		Args: []any{p.Symbol, p.Amount, p.AvgPrice, p.RealizedPnL},
	}
}

// UpsertPosition stores the latest position for a symbol.
func (d *Database) UpsertPosition(ctx context.Context, p Position) error {
	return d.exec(ctx, UpsertPositionStmt(p))
}

// ListPositions returns all stored positions.
func (d *Database) ListPositions(ctx context.Context) ([]Position, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT symbol, amount, avg_price, realized_pnl
		FROM positions ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.Symbol, &p.Amount, &p.AvgPrice, &p.RealizedPnL); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// UpsertDailyPnLStmt stores the realized total for a UTC date (YYYY-MM-DD).
func UpsertDailyPnLStmt(date string, pnl float64) Statement {
	return Statement{
		Query: `INSERT INTO daily_pnl (date, pnl) VALUES (?, ?)
		ON CONFLICT(date) DO UPDATE SET pnl = excluded.pnl`,
		Args: []any{date, pnl},
	}
}

// UpsertDailyPnL stores the realized total for a UTC date.
func (d *Database) UpsertDailyPnL(ctx context.Context, date string, pnl float64) error {
	return d.exec(ctx, UpsertDailyPnLStmt(date, pnl))
}

// GetDailyPnL returns the stored total for date, or 0 when absent.
func (d *Database) GetDailyPnL(ctx context.Context, date string) (float64, error) {
	var pnl float64
	err := d.DB.QueryRowContext(ctx, `SELECT pnl FROM daily_pnl WHERE date = ?`, date).Scan(&pnl)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return pnl, err
}

// InsertBacktestRun stores a backtest summary.
func (d *Database) InsertBacktestRun(ctx context.Context, r BacktestRun) error {
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO backtest_runs (
			id, created_ms, strategy, symbol, timeframe, bars, start_cash, end_cash,
			return_pct, excess_return_pct, trades, wins, max_drawdown
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, toMillis(created), r.Strategy, r.Symbol, r.Timeframe, r.Bars, r.StartCash, r.EndCash,
		r.ReturnPct, r.ExcessReturnPct, r.Trades, r.Wins, r.MaxDrawdown,
	)
	return err
}

// ListBacktestRuns returns the most recent runs first.
func (d *Database) ListBacktestRuns(ctx context.Context, limit int) ([]BacktestRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, created_ms, strategy, symbol, timeframe, bars, start_cash, end_cash,
			return_pct, COALESCE(excess_return_pct, 0), trades, wins, max_drawdown
		FROM backtest_runs ORDER BY created_ms DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []BacktestRun
	for rows.Next() {
		var (
			r       BacktestRun
			created int64
		)
		if err := rows.Scan(&r.ID, &created, &r.Strategy, &r.Symbol, &r.Timeframe, &r.Bars, &r.StartCash, &r.EndCash,
			&r.ReturnPct, &r.ExcessReturnPct, &r.Trades, &r.Wins, &r.MaxDrawdown); err != nil {
			return nil, err
		}
		r.CreatedAt = fromMillis(created)
		res = append(res, r)
	}
	return res, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
