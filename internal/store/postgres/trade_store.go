package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cexarb/arbot/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `trade_id, ts, pair, quantity, trade_amount_usd,
	buy_venue, buy_price, buy_fee, buy_order_id,
	sell_venue, sell_price, sell_fee, sell_order_id,
	gross_profit, net_profit, roi_pct, status`

func scanTradeRow(row pgx.Row) (domain.TradeRecord, error) {
	var rec domain.TradeRecord
	var status string
	err := row.Scan(
		&rec.TradeID, &rec.Timestamp, &rec.Symbol, &rec.Quantity, &rec.TradeAmountUSD,
		&rec.Buy.Venue, &rec.Buy.Price, &rec.Buy.Fee, &rec.Buy.OrderID,
		&rec.Sell.Venue, &rec.Sell.Price, &rec.Sell.Fee, &rec.Sell.OrderID,
		&rec.Profit.Gross, &rec.Profit.Net, &rec.Profit.ROIPct, &status,
	)
	if err != nil {
		return domain.TradeRecord{}, err
	}
	rec.Status = domain.TradeStatus(status)
	if pair, perr := domain.ParsePair(rec.Symbol); perr == nil {
		rec.Pair = pair
	}
	return rec, nil
}

func scanTradeRows(rows pgx.Rows) ([]domain.TradeRecord, error) {
	var recs []domain.TradeRecord
	for rows.Next() {
		rec, err := scanTradeRow(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Insert stores one completed trade record.
func (s *TradeStore) Insert(ctx context.Context, rec domain.TradeRecord) error {
	symbol := rec.Symbol
	if symbol == "" && !rec.Pair.IsZero() {
		symbol = rec.Pair.String()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trades (trade_id, ts, pair, quantity, trade_amount_usd,
			buy_venue, buy_price, buy_fee, buy_order_id,
			sell_venue, sell_price, sell_fee, sell_order_id,
			gross_profit, net_profit, roi_pct, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		rec.TradeID, rec.Timestamp, symbol, rec.Quantity, rec.TradeAmountUSD,
		rec.Buy.Venue, rec.Buy.Price, rec.Buy.Fee, rec.Buy.OrderID,
		rec.Sell.Venue, rec.Sell.Price, rec.Sell.Fee, rec.Sell.OrderID,
		rec.Profit.Gross, rec.Profit.Net, rec.Profit.ROIPct, string(rec.Status),
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", rec.TradeID, err)
	}
	return nil
}

// GetByID returns one trade record. It returns domain.ErrNotFound when the
// trade does not exist.
func (s *TradeStore) GetByID(ctx context.Context, tradeID string) (domain.TradeRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tradeSelectCols+` FROM trades WHERE trade_id = $1`, tradeID)
	rec, err := scanTradeRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TradeRecord{}, domain.ErrNotFound
		}
		return domain.TradeRecord{}, fmt.Errorf("postgres: get trade %s: %w", tradeID, err)
	}
	return rec, nil
}

// ListRecent returns the most recent trades, newest first.
func (s *TradeStore) ListRecent(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trades ORDER BY ts DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent trades: %w", err)
	}
	defer rows.Close()

	recs, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent trades: %w", err)
	}
	return recs, nil
}

// ListBefore returns trades older than cutoff, oldest first, up to limit.
func (s *TradeStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.TradeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trades WHERE ts < $1 ORDER BY ts ASC LIMIT $2`,
		cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	defer rows.Close()

	recs, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return recs, nil
}

// DeleteBefore removes trades older than cutoff and reports how many rows
// were deleted.
func (s *TradeStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM trades WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete trades before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

// SumNetProfit returns the total net profit of trades since the given time.
func (s *TradeStore) SumNetProfit(ctx context.Context, since time.Time) (float64, error) {
	var total float64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(net_profit), 0) FROM trades WHERE ts >= $1`, since,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("postgres: sum net profit: %w", err)
	}
	return total, nil
}

// Compile-time interface check.
var _ domain.TradeStore = (*TradeStore)(nil)
