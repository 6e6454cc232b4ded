package domain

import "context"

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus is the lifecycle state reported by a venue for an order.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "new"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCanceled        OrderStatus = "canceled"
	OrderStatusRejected        OrderStatus = "rejected"
	OrderStatusExpired         OrderStatus = "expired"
)

// Terminal reports whether the status is final from the venue's perspective.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired:
		return true
	default:
		return false
	}
}

// Balance is one currency's holdings on a venue.
type Balance struct {
	Currency string
	Free     float64
	Locked   float64
}

// Order is the uniform order shape exposed by every venue client.
type Order struct {
	ID           string
	Pair         TradingPair
	Side         OrderSide
	Status       OrderStatus
	Quantity     float64 // requested base units
	Filled       float64 // filled base units
	AveragePrice float64 // volume-weighted fill price, 0 until filled
	Fee          float64 // quote units
	Cost         float64 // filled * average price, quote units
}

// FeeRates are maker/taker commission rates in percent (0.1 == 0.1%).
type FeeRates struct {
	MakerPct float64
	TakerPct float64
}

// VenueClient is the uniform per-venue market data and execution contract.
// Implementations own their credentials, endpoints, and HTTP timeout policy;
// the core imposes no additional deadline beyond opportunity staleness.
type VenueClient interface {
	// Name returns the registry key, e.g. "binance".
	Name() string

	// LastPrice returns the most recent trade price for the pair.
	LastPrice(ctx context.Context, pair TradingPair) (float64, error)

	// Balances returns free/locked amounts per currency. Currencies with a
	// zero free balance may be omitted.
	Balances(ctx context.Context) (map[string]Balance, error)

	// PlaceMarketOrder submits a market order for quantity base units and
	// returns the venue-assigned order, which may not yet be filled.
	PlaceMarketOrder(ctx context.Context, side OrderSide, pair TradingPair, quantity float64) (Order, error)

	// Order fetches the current state of a previously placed order.
	Order(ctx context.Context, id string, pair TradingPair) (Order, error)

	// TradingFees returns the maker/taker rates for the pair from venue
	// market metadata.
	TradingFees(ctx context.Context, pair TradingPair) (FeeRates, error)
}
