package engine

import (
	"time"

	"partial-matching/internal/matching"
)

// State represents the processing state of an engine
type State string

const (
	StateIdle       State = "IDLE"
	StateProcessing State = "PROCESSING"
)

// ProcessStatus tells a completed pass apart from one rejected because another was running
type ProcessStatus string

const (
	ProcessStatusCompleted         ProcessStatus = "COMPLETED"
	ProcessStatusAlreadyProcessing ProcessStatus = "ALREADY_PROCESSING"
)

// CreateParams holds optional engine parameters
type CreateParams struct {
	EngineID string        // Explicit ID; generated when empty
	FundID   string        // Restricts the engine to one fund when set
	TTL      time.Duration // Idle TTL override; registry default when zero
}

// AddOrderRequest is an order submission with optional idempotency key
type AddOrderRequest struct {
	Order          matching.NewOrder
	IdempotencyKey string
}

// ProcessOptions carries per-pass context supplied by the caller
type ProcessOptions struct {
	NAV map[string]int64 // fund ID -> NAV override for this pass
}

// ProcessResult is the outcome of ProcessAll
type ProcessResult struct {
	Status      ProcessStatus
	Trades      []matching.Trade
	QueueStatus matching.QueueStatus
	Iterations  int
	Duration    time.Duration
}

// QueueSizes counts open orders per side
type QueueSizes struct {
	Buy   int
	Sell  int
	Total int // every order held, terminal ones included
}

// Summary describes one engine for listings
type Summary struct {
	EngineID       string
	FundID         string
	State          State
	CreatedAt      time.Time
	LastActivityAt time.Time
	Age            time.Duration
	TTL            time.Duration
	QueueSizes     QueueSizes
	TradeCount     int
}
