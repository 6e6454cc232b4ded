package domain

import "time"

// TradeStatus is the terminal status of an executed arbitrage trade.
type TradeStatus string

const (
	TradeStatusCompleted TradeStatus = "completed"
)

// ExecState tracks a single execution attempt through the pipeline. The
// progression is strictly sequential; FAILED is reachable from every
// pre-order state and from order placement or confirmation failures.
type ExecState string

const (
	ExecPending          ExecState = "PENDING"
	ExecProfitChecked    ExecState = "PROFIT_CHECKED"
	ExecBuyBalanceOK     ExecState = "BUY_BALANCE_CHECKED"
	ExecSellBalanceOK    ExecState = "SELL_BALANCE_CHECKED"
	ExecPriceRevalidated ExecState = "PRICE_REVALIDATED"
	ExecBuyPlaced        ExecState = "BUY_PLACED"
	ExecBuyConfirmed     ExecState = "BUY_CONFIRMED"
	ExecSellPlaced       ExecState = "SELL_PLACED"
	ExecSellConfirmed    ExecState = "SELL_CONFIRMED"
	ExecRecorded         ExecState = "RECORDED"
	ExecFailed           ExecState = "FAILED"
)

// Terminal reports whether the execution attempt has finished.
func (s ExecState) Terminal() bool {
	return s == ExecRecorded || s == ExecFailed
}

// TradeLeg captures the confirmed fill of one side of a paired trade.
type TradeLeg struct {
	Venue   string  `json:"venue"`
	Price   float64 `json:"price"` // actual average fill price
	Fee     float64 `json:"fee"`   // quote units
	OrderID string  `json:"order_id"`
}

// TradeProfit is the realized result computed from actual fills, not from
// the detection-time estimates.
type TradeProfit struct {
	Gross  float64 `json:"gross"`
	Net    float64 `json:"net"`
	ROIPct float64 `json:"roi"`
}

// TradeRecord is an immutable record of one completed arbitrage trade.
// It is created only after both legs are confirmed filled.
type TradeRecord struct {
	TradeID        string      `json:"trade_id"`
	Timestamp      time.Time   `json:"timestamp"`
	Pair           TradingPair `json:"-"`
	Symbol         string      `json:"pair"`
	Quantity       float64     `json:"quantity"`
	TradeAmountUSD float64     `json:"trade_amount_usd"`
	Buy            TradeLeg    `json:"buy"`
	Sell           TradeLeg    `json:"sell"`
	Profit         TradeProfit `json:"profit"`
	Status         TradeStatus `json:"status"`
}

// ActiveTrade is an entry in the risk validator's concurrent-trade registry.
type ActiveTrade struct {
	TradeID      string
	RegisteredAt time.Time
}
