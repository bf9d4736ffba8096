package api

import (
	"bytes"
	"encoding/json"
	"time"
)

// Response is the envelope of every API response
type Response struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Code    string `json:"code"`            // Error code
	Message string `json:"message"`         // Error message
	Field   string `json:"field,omitempty"` // Offending request field, for validation errors
}

// Amount is a decimal amount accepted as a JSON string or number.
// JSON null and the literal "MARKET" are kept as given so price can tell market orders apart.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = Amount(n.String())
	return nil
}

// CreateEngineRequest represents the optional body of create-engine
type CreateEngineRequest struct {
	EngineID   string `json:"engine_id" binding:"omitempty,max=128"`      // Explicit engine ID
	FundID     string `json:"fund_id"`                                    // Fund scope
	TTLSeconds int64  `json:"ttl_seconds" binding:"gte=0,lte=9223372036"` // Idle TTL override, bounded by time.Duration
}

// EngineResponse describes a created engine
type EngineResponse struct {
	EngineID   string    `json:"engine_id"`
	FundID     string    `json:"fund_id,omitempty"`
	TTLSeconds int64     `json:"ttl_seconds"`
	CreatedAt  time.Time `json:"created_at"`
}

// AddOrderRequest represents the request body for submitting an order
type AddOrderRequest struct {
	EngineID       string `json:"engine_id" binding:"required"`
	Side           string `json:"side" binding:"required,oneof=BUY SELL"`
	FundID         string `json:"fund_id" binding:"required"`
	AccountID      string `json:"account_id" binding:"required"`
	Quantity       Amount `json:"quantity" binding:"required"` // Units as decimal
	Price          Amount `json:"price"`                       // Absent, null or "MARKET" for a market order
	IdempotencyKey string `json:"idempotency_key" binding:"omitempty,max=128"`
}

// AddOrderResponse represents the response for an accepted order
type AddOrderResponse struct {
	OrderID     string    `json:"order_id"`
	EngineID    string    `json:"engine_id"`
	Status      string    `json:"status"`
	Seq         uint64    `json:"seq"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// CancelOrderRequest represents the request body for cancelling an order
type CancelOrderRequest struct {
	EngineID string `json:"engine_id" binding:"required"`
	OrderID  string `json:"order_id" binding:"required"`
}

// EngineRequest addresses one engine
type EngineRequest struct {
	EngineID string `json:"engine_id" binding:"required"`
}

// ProcessAllRequest represents the request body for a matching pass
type ProcessAllRequest struct {
	EngineID string            `json:"engine_id" binding:"required"`
	NAV      map[string]Amount `json:"nav"` // fund_id -> NAV override for this pass
}

// ProcessAllResponse represents the outcome of a matching pass
type ProcessAllResponse struct {
	EngineID    string         `json:"engine_id"`
	Status      string         `json:"status"` // COMPLETED or ALREADY_PROCESSING
	Trades      []TradeDTO     `json:"trades"`
	QueueStatus QueueStatusDTO `json:"queue_status"`
	Iterations  int            `json:"iterations"`
	DurationMs  float64        `json:"duration_ms"`
}

// SideTotalsDTO aggregates the open orders of one side
type SideTotalsDTO struct {
	Orders       int    `json:"orders"`
	OpenQuantity string `json:"open_quantity"`
}

// QueueStatusDTO summarises an engine queue
type QueueStatusDTO struct {
	Pending         int                      `json:"pending"`
	PartiallyFilled int                      `json:"partially_filled"`
	Completed       int                      `json:"completed"`
	Cancelled       int                      `json:"cancelled"`
	TotalsBySide    map[string]SideTotalsDTO `json:"totals_by_side"`
}

// ClearQueueResponse returns every drained order
type ClearQueueResponse struct {
	EngineID      string     `json:"engine_id"`
	DrainedCount  int        `json:"drained_count"`
	DrainedOrders []OrderDTO `json:"drained_orders"`
}

// OrdersRequest lists the orders of one engine
type OrdersRequest struct {
	EngineID      string `json:"engine_id" binding:"required"`
	Status        string `json:"status" binding:"omitempty,oneof=PENDING PARTIALLY_FILLED COMPLETED CANCELLED"`
	IncludeTrades bool   `json:"include_trades"` // Attach each order's fills
}

// OrderDTO represents an order
type OrderDTO struct {
	OrderID           string     `json:"order_id"`
	EngineID          string     `json:"engine_id,omitempty"`
	FundID            string     `json:"fund_id"`
	AccountID         string     `json:"account_id"`
	Side              string     `json:"side"`
	Price             string     `json:"price"` // "MARKET" for market orders
	Quantity          string     `json:"quantity"`
	RemainingQuantity string     `json:"remaining_quantity"`
	FilledQuantity    string     `json:"filled_quantity"`
	Status            string     `json:"status"`
	Seq               uint64     `json:"seq"`
	SubmittedAt       time.Time  `json:"submitted_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	Trades            []TradeDTO `json:"trades,omitempty"`
}

// TradeDTO represents a trade
type TradeDTO struct {
	TradeID         string    `json:"trade_id"`
	EngineID        string    `json:"engine_id,omitempty"`
	FundID          string    `json:"fund_id"`
	BuyOrderID      string    `json:"buy_order_id"`
	SellOrderID     string    `json:"sell_order_id"`
	BuyAccountID    string    `json:"buy_account_id"`
	SellAccountID   string    `json:"sell_account_id"`
	MatchedQuantity string    `json:"matched_quantity"`
	ExecutionPrice  string    `json:"execution_price"`
	PriceSource     string    `json:"price_source"`
	MatchedAt       time.Time `json:"matched_at"`
}

// QueueSizesDTO counts open orders per side
type QueueSizesDTO struct {
	Buy   int `json:"buy"`
	Sell  int `json:"sell"`
	Total int `json:"total"`
}

// EngineSummaryDTO describes one engine in listings
type EngineSummaryDTO struct {
	EngineID       string        `json:"engine_id"`
	FundID         string        `json:"fund_id,omitempty"`
	State          string        `json:"state"`
	CreatedAt      time.Time     `json:"created_at"`
	LastActivityAt time.Time     `json:"last_activity_at"`
	AgeSeconds     float64       `json:"age"`
	TTLSeconds     int64         `json:"ttl_seconds"`
	QueueSizes     QueueSizesDTO `json:"queue_sizes"`
	TradeCount     int           `json:"trade_count"`
}

// CleanupRequest represents the optional body of cleanup
type CleanupRequest struct {
	TTL *int64 `json:"ttl" binding:"omitempty,gte=0,lte=9223372036"` // Seconds; each engine's own TTL when absent
}

// CleanupResponse lists evicted engines
type CleanupResponse struct {
	RemovedEngineIDs []string `json:"removed_engine_ids"`
}

// OrderBookRequest scopes an Order Book View. Dates are RFC 3339 or YYYY-MM-DD.
type OrderBookRequest struct {
	EngineID string `json:"engine_id"`
	FundID   string `json:"fund_id"`
	From     string `json:"from"`
	To       string `json:"to"`
}

// LevelDTO is one price level
type LevelDTO struct {
	Price    string `json:"price"`
	Orders   int    `json:"orders"`
	Quantity string `json:"quantity"`
}

// BookDTO is the depth of one fund
type BookDTO struct {
	FundID string     `json:"fund_id"`
	Bids   []LevelDTO `json:"bids"`
	Asks   []LevelDTO `json:"asks"`
}

// FundSummaryDTO summarises one fund
type FundSummaryDTO struct {
	FundID           string  `json:"fund_id"`
	Name             string  `json:"name,omitempty"`
	BestBid          *string `json:"best_bid"`
	BestAsk          *string `json:"best_ask"`
	BuyOrders        int     `json:"buy_orders"`
	SellOrders       int     `json:"sell_orders"`
	BuyOpenQuantity  string  `json:"buy_open_quantity"`
	SellOpenQuantity string  `json:"sell_open_quantity"`
	NegotiatedOrders int     `json:"negotiated_orders"`
	TradeCount       int     `json:"trade_count"`
	TradedQuantity   string  `json:"traded_quantity"`
	AveragePrice     *string `json:"average_price"`
	LastPrice        *string `json:"last_price"`
	NAV              *string `json:"nav"`
}

// SetNAVRequest publishes the NAV of one fund
type SetNAVRequest struct {
	FundID string `json:"fund_id" binding:"required"`
	NAV    Amount `json:"nav" binding:"required"`
}

// FundNAVResponse reports the NAV now in effect
type FundNAVResponse struct {
	FundID  string    `json:"fund_id"`
	NAV     string    `json:"nav"`
	NAVAsOf time.Time `json:"nav_as_of"`
}

// HealthResponse reports liveness
type HealthResponse struct {
	Status  string `json:"status"`
	Engines int    `json:"engines"`
}
