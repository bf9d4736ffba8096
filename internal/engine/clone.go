package engine

import "partial-matching/internal/matching"

func cloneTrades(in []matching.Trade) []matching.Trade {
	if in == nil {
		return []matching.Trade{}
	}
	return append(make([]matching.Trade, 0, len(in)), in...)
}

func filterOrders(in []matching.Order, keep func(*matching.Order) bool) []matching.Order {
	out := make([]matching.Order, 0, len(in))
	for i := range in {
		if keep(&in[i]) {
			out = append(out, in[i])
		}
	}
	return out
}
