package matching

import (
	"errors"
	"testing"
	"time"
)

func fixedClock() func() time.Time {
	return func() time.Time { return passTime }
}

func newOrder(id string, side Side, price Price, qty int64) NewOrder {
	return NewOrder{
		OrderID:   id,
		FundID:    "FUND-A",
		AccountID: "acc_" + id,
		Side:      side,
		Price:     price,
		Quantity:  qty,
	}
}

func TestQueue_AppendValidation(t *testing.T) {
	tests := []struct {
		name  string
		order NewOrder
		field string
	}{
		{"zero quantity", newOrder("o1", SideBuy, LimitPrice(10), 0), "quantity"},
		{"negative quantity", newOrder("o1", SideBuy, LimitPrice(10), -5), "quantity"},
		{"bad side", newOrder("o1", Side("HOLD"), LimitPrice(10), 1), "side"},
		{"zero price", newOrder("o1", SideSell, LimitPrice(0), 1), "price"},
		{"missing account", NewOrder{OrderID: "o1", FundID: "FUND-A", Side: SideBuy, Quantity: 1}, "account_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue("", fixedClock())
			_, err := q.Append(tt.order)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, verr.Field)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected errors.Is(ErrValidation)")
			}
			if q.Len() != 0 {
				t.Errorf("rejected order must not be queued")
			}
		})
	}
}

func TestQueue_AppendAssignsSequence(t *testing.T) {
	q := NewQueue("", fixedClock())
	first, err := q.Append(newOrder("o1", SideBuy, LimitPrice(10), 5))
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	second, err := q.Append(newOrder("o2", SideBuy, MarketPrice(), 5))
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if first.Seq != 1 || second.Seq != 2 {
		t.Errorf("expected seq 1, 2; got %d, %d", first.Seq, second.Seq)
	}
	if first.Status != OrderStatusPending || first.RemainingQty != 5 {
		t.Errorf("expected PENDING with full remaining, got %s/%d", first.Status, first.RemainingQty)
	}

	if _, err := q.Append(newOrder("o1", SideSell, LimitPrice(10), 1)); !errors.Is(err, ErrConflict) {
		t.Errorf("expected conflict for duplicate order_id, got %v", err)
	}
}

func TestQueue_FundScope(t *testing.T) {
	q := NewQueue("FUND-A", fixedClock())
	o := newOrder("o1", SideBuy, LimitPrice(10), 5)
	o.FundID = "FUND-B"
	if _, err := q.Append(o); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for foreign fund, got %v", err)
	}
}

func TestQueue_SnapshotOrdering(t *testing.T) {
	q := NewQueue("", fixedClock())
	appends := []NewOrder{
		newOrder("b-low", SideBuy, LimitPrice(9), 1),
		newOrder("b-high", SideBuy, LimitPrice(11), 1),
		newOrder("b-mkt", SideBuy, MarketPrice(), 1),
		newOrder("b-high-late", SideBuy, LimitPrice(11), 1),
		newOrder("s-high", SideSell, LimitPrice(12), 1),
		newOrder("s-low", SideSell, LimitPrice(10), 1),
		newOrder("s-mkt", SideSell, MarketPrice(), 1),
	}
	for _, o := range appends {
		if _, err := q.Append(o); err != nil {
			t.Fatalf("Append %s failed: %v", o.OrderID, err)
		}
	}

	snap := q.Snapshot()
	ids := func(orders []Order) []string {
		var out []string
		for _, o := range orders {
			out = append(out, o.OrderID)
		}
		return out
	}

	wantBuys := []string{"b-mkt", "b-high", "b-high-late", "b-low"}
	wantSells := []string{"s-mkt", "s-low", "s-high"}
	if got := ids(snap.Buys); !equalStrings(got, wantBuys) {
		t.Errorf("buys: expected %v, got %v", wantBuys, got)
	}
	if got := ids(snap.Sells); !equalStrings(got, wantSells) {
		t.Errorf("sells: expected %v, got %v", wantSells, got)
	}

	// Snapshot is a copy
	snap.Buys[0].RemainingQty = 0
	if o, _ := q.Get("b-mkt"); o.RemainingQty != 1 {
		t.Errorf("mutating a snapshot leaked into the queue")
	}
}

func TestQueue_ReplaceAppliesPass(t *testing.T) {
	q := NewQueue("", fixedClock())
	q.Append(newOrder("b", SideBuy, LimitPrice(10), 100))
	q.Append(newOrder("s", SideSell, LimitPrice(10), 60))

	snap := q.Snapshot()
	res, err := Match(snap.Buys, snap.Sells, MatchOptions{Now: passTime})
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if err := q.Replace(snap.Version, res.Orders()); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	st := q.Status()
	if st.PartiallyFilled != 1 || st.Completed != 1 || st.Pending != 0 {
		t.Errorf("unexpected status after pass: %+v", st)
	}
	if st.Buy.OpenQty != 40 || st.Sell.OpenQty != 0 {
		t.Errorf("unexpected open totals: buy %d sell %d", st.Buy.OpenQty, st.Sell.OpenQty)
	}

	next := q.Snapshot()
	if len(next.Buys) != 1 || len(next.Sells) != 0 {
		t.Errorf("expected completed sell to leave the snapshot")
	}
	if q.Len() != 2 {
		t.Errorf("completed orders must stay in history, got %d orders", q.Len())
	}
}

func TestQueue_ReplaceRejectsStaleSnapshot(t *testing.T) {
	q := NewQueue("", fixedClock())
	q.Append(newOrder("b", SideBuy, LimitPrice(10), 10))
	snap := q.Snapshot()
	q.Append(newOrder("s", SideSell, LimitPrice(10), 10))

	if err := q.Replace(snap.Version, snap.Buys); !errors.Is(err, ErrStaleSnapshot) {
		t.Fatalf("expected ErrStaleSnapshot, got %v", err)
	}
}

func TestQueue_ReplaceIsAllOrNothing(t *testing.T) {
	q := NewQueue("", fixedClock())
	q.Append(newOrder("b1", SideBuy, LimitPrice(10), 10))
	q.Append(newOrder("b2", SideBuy, LimitPrice(10), 10))
	before := q.Orders()
	snap := q.Snapshot()

	good := snap.Buys[0]
	good.RemainingQty = 5
	good.Status = OrderStatusPartiallyFilled
	bad := snap.Buys[1]
	bad.RemainingQty = -1

	err := q.Replace(snap.Version, []Order{good, bad})
	if !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected invariant violation, got %v", err)
	}
	after := q.Orders()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("queue changed after rejected replace: %+v -> %+v", before[i], after[i])
		}
	}
}

func TestQueue_ReplaceRejectsBackwardsTransition(t *testing.T) {
	q := NewQueue("", fixedClock())
	q.Append(newOrder("b", SideBuy, LimitPrice(10), 10))
	if _, err := q.Cancel("b"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	snapVersion := q.Snapshot().Version
	revived, _ := q.Get("b")
	revived.Status = OrderStatusPending

	if err := q.Replace(snapVersion, []Order{revived}); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected invariant violation for CANCELLED -> PENDING, got %v", err)
	}
}

func TestQueue_DrainAll(t *testing.T) {
	q := NewQueue("", fixedClock())
	for _, id := range []string{"o1", "o2", "o3"} {
		if _, err := q.Append(newOrder(id, SideBuy, LimitPrice(10), 1)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	drained := q.DrainAll()
	if len(drained) != 3 {
		t.Fatalf("expected 3 drained orders, got %d", len(drained))
	}
	for i, id := range []string{"o1", "o2", "o3"} {
		if drained[i].OrderID != id {
			t.Errorf("expected drained[%d]=%s, got %s", i, id, drained[i].OrderID)
		}
	}

	st := q.Status()
	if st != (QueueStatus{}) {
		t.Errorf("expected zero status after drain, got %+v", st)
	}

	// IDs are reusable once drained
	if _, err := q.Append(newOrder("o1", SideBuy, LimitPrice(10), 1)); err != nil {
		t.Errorf("expected append after drain to succeed, got %v", err)
	}
}

func TestQueue_Cancel(t *testing.T) {
	q := NewQueue("", fixedClock())
	q.Append(newOrder("o1", SideSell, LimitPrice(10), 3))

	cancelled, err := q.Cancel("o1")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelled.Status != OrderStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", cancelled.Status)
	}
	if _, err := q.Cancel("o1"); !errors.Is(err, ErrConflict) {
		t.Errorf("expected conflict on second cancel, got %v", err)
	}
	if _, err := q.Cancel("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if snap := q.Snapshot(); snap.Len() != 0 {
		t.Errorf("cancelled order must not be offered for matching")
	}
	if st := q.Status(); st.Cancelled != 1 || st.Sell.OpenQty != 0 {
		t.Errorf("unexpected status after cancel: %+v", st)
	}
}

func TestOrderStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{OrderStatusPending, OrderStatusPartiallyFilled, true},
		{OrderStatusPending, OrderStatusCompleted, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPartiallyFilled, OrderStatusCompleted, true},
		{OrderStatusPartiallyFilled, OrderStatusCancelled, true},
		{OrderStatusPartiallyFilled, OrderStatusPending, false},
		{OrderStatusCompleted, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusCompleted, OrderStatusPartiallyFilled, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.ok {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.ok, got)
		}
	}
}

func TestPrice_Variant(t *testing.T) {
	if !MarketPrice().IsMarket() {
		t.Error("MarketPrice must be market")
	}
	var zero Price
	if !zero.IsMarket() {
		t.Error("zero Price must be market")
	}
	v, ok := LimitPrice(42).Value()
	if !ok || v != 42 {
		t.Errorf("expected limit 42, got %d/%v", v, ok)
	}
	if LimitPrice(42).String() != "42" || MarketPrice().String() != "MARKET" {
		t.Error("unexpected Price.String output")
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
