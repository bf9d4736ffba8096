package orderbook

import (
	"time"

	"github.com/shopspring/decimal"

	"partial-matching/internal/matching"
)

// EngineData is a read-only copy of one engine's orders and trades
type EngineData struct {
	EngineID string
	FundID   string // engine fund scope, empty when unscoped
	Orders   []matching.Order
	Trades   []matching.Trade
}

// Source supplies engine data to the projector. An empty engineID selects every engine.
type Source interface {
	EngineData(engineID string) ([]EngineData, error)
}

// Filter scopes a view. Zero values mean no restriction.
// From is inclusive, To is exclusive.
type Filter struct {
	EngineID string
	FundID   string
	From     time.Time
	To       time.Time
}

func (f Filter) matchesFund(fundID string) bool {
	return f.FundID == "" || f.FundID == fundID
}

func (f Filter) inRange(t time.Time) bool {
	if !f.From.IsZero() && t.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !t.Before(f.To) {
		return false
	}
	return true
}

// Level aggregates open orders resting at one price.
// Market orders form their own level ahead of every priced level.
type Level struct {
	Price   matching.Price
	Orders  int
	OpenQty decimal.Decimal // scaled units
}

// Book is the price-level depth of one fund
type Book struct {
	FundID string
	Bids   []Level // best first
	Asks   []Level // best first
}

// FundSummary condenses the open interest and trading of one fund
type FundSummary struct {
	FundID          string
	BestBid         matching.Price
	HasBid          bool
	BestAsk         matching.Price
	HasAsk          bool
	BuyOrders       int
	SellOrders      int
	BuyOpenQty      decimal.Decimal // scaled units, summed without overflow
	SellOpenQty     decimal.Decimal
	PartiallyFilled int
	TradeCount      int
	TradedQty       decimal.Decimal
	AvgPrice        decimal.Decimal // volume weighted, in price units; zero without trades
	LastPrice       int64
	NAV             int64
	HasNAV          bool
}

// OrderView is an order with the engine that holds it
type OrderView struct {
	EngineID string
	matching.Order
}

// TradeView is a trade with the engine that produced it
type TradeView struct {
	EngineID string
	matching.Trade
}
