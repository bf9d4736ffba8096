package matching

import (
	"fmt"
	"sort"
	"time"
)

// DefaultMaxIterations bounds the fills a single pass may perform
const DefaultMaxIterations = 100000

// NAVFunc returns the current NAV of a fund in fund price units
type NAVFunc func(fundID string) (int64, bool)

// MatchOptions carries the context a pass needs besides the orders themselves
type MatchOptions struct {
	MaxIterations int       // <= 0 means DefaultMaxIterations
	NAV           NAVFunc   // reference price when both sides are market orders
	Now           time.Time // matched_at for every trade of the pass
	TradeIDPrefix string
	TradeSeq      uint64 // last trade sequence already used; the pass continues from here
}

// MatchResult is the outcome of one pass
type MatchResult struct {
	Trades     []Trade
	Buys       []Order // still open after the pass, priority order
	Sells      []Order
	Completed  []Order // filled to zero during the pass
	Iterations int
	TradeSeq   uint64 // last trade sequence used
}

// Orders returns every order the pass touched or carried, for Queue.Replace
func (r *MatchResult) Orders() []Order {
	out := make([]Order, 0, len(r.Buys)+len(r.Sells)+len(r.Completed))
	out = append(out, r.Buys...)
	out = append(out, r.Sells...)
	out = append(out, r.Completed...)
	return out
}

// Negotiated returns the orders left partially filled after the pass
func (r *MatchResult) Negotiated() []Order {
	var out []Order
	for _, side := range [][]Order{r.Buys, r.Sells} {
		for _, o := range side {
			if o.Status == OrderStatusPartiallyFilled {
				out = append(out, o)
			}
		}
	}
	return out
}

// Match runs price-time priority matching with partial fills over open buy and sell orders.
// Inputs are not modified. Orders of different funds never match each other; funds are
// processed in fund ID order so the result is deterministic.
func Match(buys, sells []Order, opts MatchOptions) (*MatchResult, error) {
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	if opts.TradeIDPrefix == "" {
		opts.TradeIDPrefix = "trd"
	}

	buysByFund := make(map[string][]Order)
	sellsByFund := make(map[string][]Order)
	if err := groupByFund(buys, SideBuy, buysByFund); err != nil {
		return nil, err
	}
	if err := groupByFund(sells, SideSell, sellsByFund); err != nil {
		return nil, err
	}

	funds := make([]string, 0, len(buysByFund)+len(sellsByFund))
	for fundID := range buysByFund {
		funds = append(funds, fundID)
	}
	for fundID := range sellsByFund {
		if _, seen := buysByFund[fundID]; !seen {
			funds = append(funds, fundID)
		}
	}
	sort.Strings(funds)

	m := &matcher{
		opts:    opts,
		maxIter: maxIter,
		result: &MatchResult{
			Trades:   []Trade{},
			TradeSeq: opts.TradeSeq,
		},
	}
	for _, fundID := range funds {
		fundBuys, fundSells := buysByFund[fundID], sellsByFund[fundID]
		SortByPriority(fundBuys, SideBuy)
		SortByPriority(fundSells, SideSell)

		restBuys, restSells, err := m.matchFund(fundID, fundBuys, fundSells)
		if err != nil {
			return nil, err
		}
		m.result.Buys = append(m.result.Buys, restBuys...)
		m.result.Sells = append(m.result.Sells, restSells...)
	}
	SortByPriority(m.result.Buys, SideBuy)
	SortByPriority(m.result.Sells, SideSell)

	if err := verifyConservation(buys, sells, m.result); err != nil {
		return nil, err
	}
	return m.result, nil
}

func groupByFund(orders []Order, side Side, into map[string][]Order) error {
	for _, o := range orders {
		if o.Side != side {
			return &InvariantViolation{OrderID: o.OrderID, Detail: "order queued on the wrong side"}
		}
		if !o.IsOpen() {
			return &InvariantViolation{OrderID: o.OrderID, Detail: "terminal order offered for matching"}
		}
		if o.RemainingQty <= 0 || o.RemainingQty > o.Quantity {
			return &InvariantViolation{OrderID: o.OrderID, Detail: fmt.Sprintf("remaining quantity %d outside (0, %d]", o.RemainingQty, o.Quantity)}
		}
		into[o.FundID] = append(into[o.FundID], o)
	}
	return nil
}

type matcher struct {
	opts    MatchOptions
	maxIter int
	result  *MatchResult
}

func (m *matcher) matchFund(fundID string, buys, sells []Order) ([]Order, []Order, error) {
	buys, sells, err := m.cross(fundID, buys, sells)
	if err != nil || len(buys) == 0 || len(sells) == 0 {
		return buys, sells, err
	}
	if !buys[0].Price.IsMarket() || !sells[0].Price.IsMarket() {
		return buys, sells, nil
	}

	// Market heads only stop each other when the fund has no NAV. Each market side
	// still trades against the opposite limit orders, then limits cross each other.
	mb, ms := marketPrefix(buys), marketPrefix(sells)
	restMarketBuys, restLimitSells, err := m.cross(fundID, buys[:mb], sells[ms:])
	if err != nil {
		return nil, nil, err
	}
	restLimitBuys, restMarketSells, err := m.cross(fundID, buys[mb:], sells[:ms])
	if err != nil {
		return nil, nil, err
	}
	restLimitBuys, restLimitSells, err = m.cross(fundID, restLimitBuys, restLimitSells)
	if err != nil {
		return nil, nil, err
	}

	outBuys := make([]Order, 0, len(restMarketBuys)+len(restLimitBuys))
	outBuys = append(append(outBuys, restMarketBuys...), restLimitBuys...)
	outSells := make([]Order, 0, len(restMarketSells)+len(restLimitSells))
	outSells = append(append(outSells, restMarketSells...), restLimitSells...)
	return outBuys, outSells, nil
}

// marketPrefix counts the market orders at the head of a priority-sorted side
func marketPrefix(orders []Order) int {
	n := 0
	for n < len(orders) && orders[n].Price.IsMarket() {
		n++
	}
	return n
}

// cross matches heads in priority order until they no longer cross
func (m *matcher) cross(fundID string, buys, sells []Order) ([]Order, []Order, error) {
	bi, si := 0, 0
	for bi < len(buys) && si < len(sells) {
		buy, sell := &buys[bi], &sells[si]

		price, source, ok := m.executionPrice(fundID, buy, sell)
		if !ok {
			break
		}
		if m.result.Iterations >= m.maxIter {
			return nil, nil, fmt.Errorf("%w: limit %d reached on fund %s", ErrMatchBudgetExceeded, m.maxIter, fundID)
		}
		m.result.Iterations++

		qty := min(buy.RemainingQty, sell.RemainingQty)
		if qty <= 0 {
			return nil, nil, &InvariantViolation{OrderID: buy.OrderID, Detail: "non-positive match quantity"}
		}
		if err := m.fill(buy, qty); err != nil {
			return nil, nil, err
		}
		if err := m.fill(sell, qty); err != nil {
			return nil, nil, err
		}

		m.result.TradeSeq++
		m.result.Trades = append(m.result.Trades, Trade{
			TradeID:       fmt.Sprintf("%s_%d", m.opts.TradeIDPrefix, m.result.TradeSeq),
			FundID:        fundID,
			BuyOrderID:    buy.OrderID,
			SellOrderID:   sell.OrderID,
			BuyAccountID:  buy.AccountID,
			SellAccountID: sell.AccountID,
			Quantity:      qty,
			Price:         price,
			PriceSource:   source,
			MatchedAt:     m.opts.Now,
		})

		if buy.RemainingQty == 0 {
			m.result.Completed = append(m.result.Completed, *buy)
			bi++
		}
		if sell.RemainingQty == 0 {
			m.result.Completed = append(m.result.Completed, *sell)
			si++
		}
	}
	return buys[bi:], sells[si:], nil
}

// executionPrice decides whether the heads cross and at which price
func (m *matcher) executionPrice(fundID string, buy, sell *Order) (int64, PriceSource, bool) {
	bp, buyLimit := buy.Price.Value()
	sp, sellLimit := sell.Price.Value()

	switch {
	case buyLimit && sellLimit:
		if bp < sp {
			return 0, "", false
		}
		if buy.Seq < sell.Seq {
			return bp, PriceSourceResting, true
		}
		return sp, PriceSourceResting, true
	case buyLimit:
		return bp, PriceSourceBuy, true
	case sellLimit:
		return sp, PriceSourceSell, true
	default:
		if m.opts.NAV == nil {
			return 0, "", false
		}
		nav, ok := m.opts.NAV(fundID)
		if !ok || nav <= 0 {
			return 0, "", false
		}
		return nav, PriceSourceNAV, true
	}
}

func (m *matcher) fill(order *Order, qty int64) error {
	order.RemainingQty -= qty
	if order.RemainingQty < 0 {
		return &InvariantViolation{OrderID: order.OrderID, Detail: "remaining quantity below zero"}
	}

	next := OrderStatusPartiallyFilled
	if order.RemainingQty == 0 {
		next = OrderStatusCompleted
	}
	if !order.Status.CanTransitionTo(next) {
		return &InvariantViolation{OrderID: order.OrderID, Detail: "illegal status transition " + string(order.Status) + " -> " + string(next)}
	}
	order.Status = next
	order.UpdatedAt = m.opts.Now
	return nil
}

// verifyConservation checks filled-before + traded == filled-after for every order of the pass
func verifyConservation(buys, sells []Order, res *MatchResult) error {
	traded := make(map[string]int64)
	for _, t := range res.Trades {
		if t.Quantity <= 0 {
			return &InvariantViolation{OrderID: t.BuyOrderID, Detail: "trade with non-positive quantity"}
		}
		traded[t.BuyOrderID] += t.Quantity
		traded[t.SellOrderID] += t.Quantity
	}

	after := make(map[string]*Order, len(buys)+len(sells))
	for _, list := range [][]Order{res.Buys, res.Sells, res.Completed} {
		for i := range list {
			after[list[i].OrderID] = &list[i]
		}
	}

	for _, list := range [][]Order{buys, sells} {
		for i := range list {
			before := &list[i]
			out, ok := after[before.OrderID]
			if !ok {
				return &InvariantViolation{OrderID: before.OrderID, Detail: "order lost during pass"}
			}
			if out.RemainingQty < 0 || out.RemainingQty > out.Quantity {
				return &InvariantViolation{OrderID: out.OrderID, Detail: "remaining quantity out of range"}
			}
			if before.FilledQty()+traded[before.OrderID] != out.FilledQty() {
				return &InvariantViolation{OrderID: out.OrderID, Detail: "filled quantity does not match trades"}
			}
		}
	}
	if len(after) != len(buys)+len(sells) {
		return &InvariantViolation{Detail: "pass produced orders that were not offered"}
	}
	return nil
}
