package persistence

import (
	"context"

	"strategy-core/internal/ledger"
	"strategy-core/pkg/db"
)

// Store persists ledger state to SQLite. Writes go through the batch
// writer; reads hit the database directly.
type Store struct {
	db     *db.Database
	writer *BatchWriter
}

// NewStore wraps database with an async writer.
func NewStore(database *db.Database, writer *BatchWriter) *Store {
	return &Store{db: database, writer: writer}
}

func (s *Store) SaveOrder(o ledger.Order) {
	s.writer.Enqueue(db.InsertOrderStmt(toDBOrder(o)))
}

func (s *Store) SavePosition(p ledger.Position) {
	s.writer.Enqueue(db.UpsertPositionStmt(db.Position{
		Symbol:      p.Symbol,
		Amount:      p.Amount,
		AvgPrice:    p.AvgPrice,
		RealizedPnL: p.RealizedPnL,
	}))
}

func (s *Store) SaveDailyPnL(date string, pnl float64) {
	s.writer.Enqueue(db.UpsertDailyPnLStmt(date, pnl))
}

func (s *Store) LoadPositions(ctx context.Context) ([]ledger.Position, error) {
	rows, err := s.db.ListPositions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ledger.Position, 0, len(rows))
	for _, p := range rows {
		out = append(out, ledger.Position{
			Symbol:      p.Symbol,
			Amount:      p.Amount,
			AvgPrice:    p.AvgPrice,
			RealizedPnL: p.RealizedPnL,
		})
	}
	return out, nil
}

func (s *Store) LoadRecentOrders(ctx context.Context, limit int) ([]ledger.Order, error) {
	rows, err := s.db.ListRecentOrders(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]ledger.Order, 0, len(rows))
	for _, o := range rows {
		out = append(out, ledger.Order{
			ID:         o.ID,
			Timestamp:  o.Timestamp,
			Symbol:     o.Symbol,
			Side:       ledger.Side(o.Side),
			Price:      o.Price,
			Amount:     o.Amount,
			Status:     o.Status,
			ExternalID: o.ExternalID,
		})
	}
	return out, nil
}

func (s *Store) LoadDailyPnL(ctx context.Context, date string) (float64, error) {
	return s.db.GetDailyPnL(ctx, date)
}

// Flush commits queued writes; used on shutdown and in tests.
func (s *Store) Flush() error {
	return s.writer.Flush()
}

func toDBOrder(o ledger.Order) db.Order {
	return db.Order{
		ID:         o.ID,
		Timestamp:  o.Timestamp,
		Symbol:     o.Symbol,
		Side:       string(o.Side),
		Price:      o.Price,
		Amount:     o.Amount,
		Status:     o.Status,
		ExternalID: o.ExternalID,
	}
}
