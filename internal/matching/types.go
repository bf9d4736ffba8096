package matching

import (
	"fmt"
	"time"
)

// Side represents order side (buy/sell)
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// Opposite returns the other side of the book
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderStatus represents order status
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusCompleted       OrderStatus = "COMPLETED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
)

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPartiallyFilled, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// CanTransitionTo reports whether moving from s to next is a forward transition.
// PARTIALLY_FILLED -> PARTIALLY_FILLED is allowed: a second partial fill keeps the status.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return next == OrderStatusPartiallyFilled || next == OrderStatusCompleted || next == OrderStatusCancelled
	case OrderStatusPartiallyFilled:
		return next == OrderStatusPartiallyFilled || next == OrderStatusCompleted || next == OrderStatusCancelled
	default:
		return false
	}
}

// Price is either a limit price in fund price units or a market (at-NAV) marker.
// The zero value is a market price.
type Price struct {
	value int64
	limit bool
}

// LimitPrice returns a limit price
func LimitPrice(v int64) Price {
	return Price{value: v, limit: true}
}

// MarketPrice returns the market price marker
func MarketPrice() Price {
	return Price{}
}

func (p Price) IsMarket() bool { return !p.limit }

// Value returns the limit value; ok is false for market prices
func (p Price) Value() (v int64, ok bool) {
	return p.value, p.limit
}

func (p Price) String() string {
	if !p.limit {
		return "MARKET"
	}
	return fmt.Sprintf("%d", p.value)
}

// Order represents a buy or sell intent queued in an engine
type Order struct {
	OrderID      string
	FundID       string
	AccountID    string
	Side         Side
	Price        Price
	Quantity     int64 // original quantity in fund units
	RemainingQty int64
	Status       OrderStatus
	Seq          uint64    // logical submission time, FIFO tie-break
	SubmittedAt  time.Time // wall clock at submission
	UpdatedAt    time.Time
}

// FilledQty returns the matched quantity so far
func (o *Order) FilledQty() int64 {
	return o.Quantity - o.RemainingQty
}

// IsOpen reports whether the order still participates in matching
func (o *Order) IsOpen() bool {
	return !o.Status.IsTerminal()
}

// NewOrder is the validated input for a queue append
type NewOrder struct {
	OrderID   string
	FundID    string
	AccountID string
	Side      Side
	Price     Price
	Quantity  int64
}

// Validate validates the submission
func (n *NewOrder) Validate() error {
	if n.OrderID == "" {
		return &ValidationError{Field: "order_id", Reason: "required"}
	}
	if n.FundID == "" {
		return &ValidationError{Field: "fund_id", Reason: "required"}
	}
	if n.AccountID == "" {
		return &ValidationError{Field: "account_id", Reason: "required"}
	}
	if !n.Side.IsValid() {
		return &ValidationError{Field: "side", Reason: "must be BUY or SELL"}
	}
	if n.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if v, ok := n.Price.Value(); ok && v <= 0 {
		return &ValidationError{Field: "price", Reason: "must be positive"}
	}
	return nil
}

// PriceSource records how a trade's execution price was chosen
type PriceSource string

const (
	PriceSourceResting PriceSource = "RESTING" // both limit, earlier order's price
	PriceSourceBuy     PriceSource = "BUY"     // sell was market, buy limit
	PriceSourceSell    PriceSource = "SELL"    // buy was market, sell limit
	PriceSourceNAV     PriceSource = "NAV"     // both market
)

// Trade represents a match between one buy and one sell order
type Trade struct {
	TradeID       string
	FundID        string
	BuyOrderID    string
	SellOrderID   string
	BuyAccountID  string
	SellAccountID string
	Quantity      int64
	Price         int64
	PriceSource   PriceSource
	MatchedAt     time.Time
}
