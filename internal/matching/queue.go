package matching

import (
	"sort"
	"sync"
	"time"
)

// Snapshot is an immutable copy of the open orders of a queue, each side in priority order
type Snapshot struct {
	Version uint64
	Buys    []Order
	Sells   []Order
	TakenAt time.Time
}

// Len returns the number of open orders in the snapshot
func (s *Snapshot) Len() int {
	return len(s.Buys) + len(s.Sells)
}

// SideTotals aggregates open orders of one side
type SideTotals struct {
	Orders  int
	OpenQty int64
}

// QueueStatus summarises a queue by order status and side
type QueueStatus struct {
	Pending         int
	PartiallyFilled int
	Completed       int
	Cancelled       int
	Buy             SideTotals
	Sell            SideTotals
}

// Queue holds every order submitted to one engine, in insertion order.
// Terminal orders stay in the queue as history until drained.
type Queue struct {
	mu      sync.RWMutex
	fundID  string
	orders  []Order
	index   map[string]int
	nextSeq uint64
	version uint64
	now     func() time.Time
}

// NewQueue creates an empty queue. A non-empty fundID restricts appends to that fund.
func NewQueue(fundID string, now func() time.Time) *Queue {
	if now == nil {
		now = time.Now
	}
	return &Queue{
		fundID: fundID,
		orders: make([]Order, 0, 64),
		index:  make(map[string]int),
		now:    now,
	}
}

// FundID returns the fund scope, empty when the queue accepts any fund
func (q *Queue) FundID() string {
	return q.fundID
}

// Append validates and appends a new order, assigning its logical submission time
func (q *Queue) Append(n NewOrder) (Order, error) {
	if err := n.Validate(); err != nil {
		return Order{}, err
	}
	if q.fundID != "" && n.FundID != q.fundID {
		return Order{}, &ValidationError{Field: "fund_id", Reason: "engine is scoped to fund " + q.fundID}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.index[n.OrderID]; exists {
		return Order{}, &ConflictError{Kind: "order", ID: n.OrderID, Reason: ReasonDuplicateID}
	}

	q.nextSeq++
	now := q.now()
	order := Order{
		OrderID:      n.OrderID,
		FundID:       n.FundID,
		AccountID:    n.AccountID,
		Side:         n.Side,
		Price:        n.Price,
		Quantity:     n.Quantity,
		RemainingQty: n.Quantity,
		Status:       OrderStatusPending,
		Seq:          q.nextSeq,
		SubmittedAt:  now,
		UpdatedAt:    now,
	}
	q.index[order.OrderID] = len(q.orders)
	q.orders = append(q.orders, order)
	q.version++
	return order, nil
}

// Snapshot returns a copy of all open orders partitioned by side and sorted by priority
func (q *Queue) Snapshot() Snapshot {
	q.mu.RLock()
	defer q.mu.RUnlock()

	snap := Snapshot{
		Version: q.version,
		TakenAt: q.now(),
	}
	for i := range q.orders {
		o := q.orders[i]
		if !o.IsOpen() {
			continue
		}
		if o.Side == SideBuy {
			snap.Buys = append(snap.Buys, o)
		} else {
			snap.Sells = append(snap.Sells, o)
		}
	}
	SortByPriority(snap.Buys, SideBuy)
	SortByPriority(snap.Sells, SideSell)
	return snap
}

// Replace swaps in the updated orders produced by a matching pass taken at version.
// Either every update is applied or none is.
func (q *Queue) Replace(version uint64, updated []Order) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if version != q.version {
		return ErrStaleSnapshot
	}

	next := make([]Order, len(q.orders))
	copy(next, q.orders)
	for _, u := range updated {
		idx, ok := q.index[u.OrderID]
		if !ok {
			return &InvariantViolation{OrderID: u.OrderID, Detail: "updated order is not in the queue"}
		}
		cur := next[idx]
		if err := checkUpdate(&cur, &u); err != nil {
			return err
		}
		next[idx] = u
	}

	q.orders = next
	q.version++
	return nil
}

func checkUpdate(cur, next *Order) error {
	if next.Quantity != cur.Quantity || next.Side != cur.Side || next.FundID != cur.FundID || next.Seq != cur.Seq {
		return &InvariantViolation{OrderID: cur.OrderID, Detail: "immutable order fields changed"}
	}
	if next.RemainingQty < 0 || next.RemainingQty > cur.RemainingQty {
		return &InvariantViolation{OrderID: cur.OrderID, Detail: "remaining quantity out of range"}
	}
	if next.Status != cur.Status && !cur.Status.CanTransitionTo(next.Status) {
		return &InvariantViolation{OrderID: cur.OrderID, Detail: "illegal status transition " + string(cur.Status) + " -> " + string(next.Status)}
	}
	return nil
}

// DrainAll removes every order regardless of status and returns them in insertion order
func (q *Queue) DrainAll() []Order {
	q.mu.Lock()
	defer q.mu.Unlock()

	drained := q.orders
	q.orders = make([]Order, 0, 64)
	q.index = make(map[string]int)
	q.version++
	return drained
}

// Cancel moves an open order to CANCELLED
func (q *Queue) Cancel(orderID string) (Order, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx, ok := q.index[orderID]
	if !ok {
		return Order{}, &NotFoundError{Kind: "order", ID: orderID}
	}
	order := q.orders[idx]
	if !order.Status.CanTransitionTo(OrderStatusCancelled) {
		return Order{}, &ConflictError{Kind: "order", ID: orderID, Reason: "order is " + string(order.Status)}
	}

	// Copy-on-write so snapshots and earlier Orders() results stay untouched
	next := make([]Order, len(q.orders))
	copy(next, q.orders)
	order.Status = OrderStatusCancelled
	order.UpdatedAt = q.now()
	next[idx] = order
	q.orders = next
	q.version++
	return order, nil
}

// Get returns a copy of one order
func (q *Queue) Get(orderID string) (Order, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	idx, ok := q.index[orderID]
	if !ok {
		return Order{}, &NotFoundError{Kind: "order", ID: orderID}
	}
	return q.orders[idx], nil
}

// Orders returns a copy of every order in insertion order
func (q *Queue) Orders() []Order {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]Order, len(q.orders))
	copy(out, q.orders)
	return out
}

// Status counts orders by status and totals open quantity by side
func (q *Queue) Status() QueueStatus {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return StatusOf(q.orders)
}

// Len returns the number of orders held, terminal ones included
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.orders)
}

// StatusOf summarises an arbitrary order list
func StatusOf(orders []Order) QueueStatus {
	var st QueueStatus
	for i := range orders {
		o := &orders[i]
		switch o.Status {
		case OrderStatusPending:
			st.Pending++
		case OrderStatusPartiallyFilled:
			st.PartiallyFilled++
		case OrderStatusCompleted:
			st.Completed++
		case OrderStatusCancelled:
			st.Cancelled++
		}
		if !o.IsOpen() {
			continue
		}
		totals := &st.Sell
		if o.Side == SideBuy {
			totals = &st.Buy
		}
		totals.Orders++
		totals.OpenQty += o.RemainingQty
	}
	return st
}

// SortByPriority orders one side best-first: market orders, then best price, then earliest Seq.
// Buys prefer higher prices, sells lower.
func SortByPriority(orders []Order, side Side) {
	sort.SliceStable(orders, func(i, j int) bool {
		return hasPriority(&orders[i], &orders[j], side)
	})
}

func hasPriority(a, b *Order, side Side) bool {
	aMarket, bMarket := a.Price.IsMarket(), b.Price.IsMarket()
	if aMarket != bMarket {
		return aMarket
	}
	if !aMarket {
		ap, _ := a.Price.Value()
		bp, _ := b.Price.Value()
		if ap != bp {
			if side == SideBuy {
				return ap > bp
			}
			return ap < bp
		}
	}
	return a.Seq < b.Seq
}
