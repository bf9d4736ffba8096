package engine

import (
	"sync"

	"partial-matching/internal/matching"
)

// TradeLog is the append-only trade history of one engine
type TradeLog struct {
	mu      sync.RWMutex
	trades  []matching.Trade
	byID    map[string]int
	byOrder map[string][]int // order_id -> positions in trades
}

// NewTradeLog creates an empty trade log
func NewTradeLog() *TradeLog {
	return &TradeLog{
		byID:    make(map[string]int),
		byOrder: make(map[string][]int),
	}
}

// Append records the trades of one pass. Trade IDs already present are skipped.
func (l *TradeLog) Append(trades ...matching.Trade) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, t := range trades {
		if _, exists := l.byID[t.TradeID]; exists {
			continue
		}
		pos := len(l.trades)
		l.trades = append(l.trades, t)
		l.byID[t.TradeID] = pos
		l.byOrder[t.BuyOrderID] = append(l.byOrder[t.BuyOrderID], pos)
		l.byOrder[t.SellOrderID] = append(l.byOrder[t.SellOrderID], pos)
	}
}

// All returns a copy of every trade in execution order
func (l *TradeLog) All() []matching.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneTrades(l.trades)
}

// ByOrder returns the trades one order took part in
func (l *TradeLog) ByOrder(orderID string) []matching.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()

	positions := l.byOrder[orderID]
	out := make([]matching.Trade, 0, len(positions))
	for _, pos := range positions {
		out = append(out, l.trades[pos])
	}
	return out
}

// Len returns the number of trades
func (l *TradeLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.trades)
}
