package matching

import (
	"fmt"
	"reflect"
	"testing"

	"pgregory.net/rapid"
)

func drawOrders(t *rapid.T, side Side, label string, seqBase uint64) []Order {
	n := rapid.IntRange(0, 12).Draw(t, label+"Count")
	orders := make([]Order, 0, n)
	for i := 0; i < n; i++ {
		qty := rapid.Int64Range(1, 500).Draw(t, fmt.Sprintf("%sQty%d", label, i))
		price := MarketPrice()
		if !rapid.Bool().Draw(t, fmt.Sprintf("%sMarket%d", label, i)) {
			price = LimitPrice(rapid.Int64Range(90, 110).Draw(t, fmt.Sprintf("%sPrice%d", label, i)))
		}
		o := testOrder(fmt.Sprintf("%s%d", label, i), side, price, qty, seqBase+uint64(i))
		o.FundID = rapid.SampledFrom([]string{"FUND-A", "FUND-B"}).Draw(t, fmt.Sprintf("%sFund%d", label, i))
		orders = append(orders, o)
	}
	return orders
}

func propertyOpts() MatchOptions {
	o := opts()
	o.NAV = func(fundID string) (int64, bool) { return 100, fundID == "FUND-A" }
	return o
}

// Conservation: quantity == remaining + sum of matched quantity, and no order goes below zero
func TestProperty_Conservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		buys := drawOrders(t, SideBuy, "b", 1)
		sells := drawOrders(t, SideSell, "s", 1000)

		res, err := Match(buys, sells, propertyOpts())
		if err != nil {
			t.Fatalf("Match failed: %v", err)
		}

		matched := make(map[string]int64)
		for _, tr := range res.Trades {
			if tr.Quantity <= 0 {
				t.Fatalf("trade %s has non-positive quantity %d", tr.TradeID, tr.Quantity)
			}
			matched[tr.BuyOrderID] += tr.Quantity
			matched[tr.SellOrderID] += tr.Quantity
		}

		seen := 0
		for _, o := range res.Orders() {
			seen++
			if o.RemainingQty < 0 {
				t.Fatalf("order %s over-filled: remaining %d", o.OrderID, o.RemainingQty)
			}
			if o.Quantity != o.RemainingQty+matched[o.OrderID] {
				t.Fatalf("order %s: quantity %d != remaining %d + matched %d", o.OrderID, o.Quantity, o.RemainingQty, matched[o.OrderID])
			}
			switch {
			case o.RemainingQty == 0 && o.Status != OrderStatusCompleted:
				t.Fatalf("order %s fully matched but %s", o.OrderID, o.Status)
			case o.RemainingQty > 0 && o.RemainingQty < o.Quantity && o.Status != OrderStatusPartiallyFilled:
				t.Fatalf("order %s partially matched but %s", o.OrderID, o.Status)
			}
		}
		if seen != len(buys)+len(sells) {
			t.Fatalf("expected %d orders after pass, got %d", len(buys)+len(sells), seen)
		}
	})
}

// After a pass no crossable pair remains at the head of any fund
func TestProperty_NoCrossRemains(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		buys := drawOrders(t, SideBuy, "b", 1)
		sells := drawOrders(t, SideSell, "s", 1000)
		o := propertyOpts()

		res, err := Match(buys, sells, o)
		if err != nil {
			t.Fatalf("Match failed: %v", err)
		}

		heads := func(orders []Order) map[string]*Order {
			out := make(map[string]*Order)
			for i := range orders {
				if _, ok := out[orders[i].FundID]; !ok {
					out[orders[i].FundID] = &orders[i]
				}
			}
			return out
		}
		buyHeads, sellHeads := heads(res.Buys), heads(res.Sells)
		m := &matcher{opts: o}
		for fundID, b := range buyHeads {
			s, ok := sellHeads[fundID]
			if !ok {
				continue
			}
			if _, _, crosses := m.executionPrice(fundID, b, s); crosses {
				t.Fatalf("fund %s still crossed after pass: buy %s vs sell %s", fundID, b.Price, s.Price)
			}
		}

		// A resting market order never sits opposite a resting limit order
		kinds := func(orders []Order, fundID string) (market, limit bool) {
			for i := range orders {
				if orders[i].FundID != fundID {
					continue
				}
				if orders[i].Price.IsMarket() {
					market = true
				} else {
					limit = true
				}
			}
			return market, limit
		}
		for fundID := range buyHeads {
			marketBuy, limitBuy := kinds(res.Buys, fundID)
			marketSell, limitSell := kinds(res.Sells, fundID)
			if (marketBuy && limitSell) || (marketSell && limitBuy) {
				t.Fatalf("fund %s left a market order resting opposite a limit order", fundID)
			}
		}
	})
}

// The same orders in any input order produce the same trades
func TestProperty_InputOrderIndependence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		buys := drawOrders(t, SideBuy, "b", 1)
		sells := drawOrders(t, SideSell, "s", 1000)

		first, err := Match(buys, sells, propertyOpts())
		if err != nil {
			t.Fatalf("Match failed: %v", err)
		}

		shuffledBuys := rapid.Permutation(buys).Draw(t, "shuffledBuys")
		shuffledSells := rapid.Permutation(sells).Draw(t, "shuffledSells")
		second, err := Match(shuffledBuys, shuffledSells, propertyOpts())
		if err != nil {
			t.Fatalf("Match failed: %v", err)
		}

		if !reflect.DeepEqual(first.Trades, second.Trades) {
			t.Fatalf("trades differ between input orders:\n%+v\n%+v", first.Trades, second.Trades)
		}
	})
}
