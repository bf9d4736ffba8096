package api

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"partial-matching/internal/engine"
	"partial-matching/internal/fund"
	"partial-matching/internal/matching"
	"partial-matching/internal/orderbook"
)

const marketPrice = "MARKET"

// specFor returns the fund spec used to render amounts; unknown funds render unscaled
func (h *Handler) specFor(fundID string) fund.Spec {
	spec, err := h.catalog.Get(fundID)
	if err != nil {
		return fund.Spec{FundID: fundID}
	}
	return spec
}

func parsePrice(spec fund.Spec, raw Amount) (matching.Price, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || strings.EqualFold(s, marketPrice) {
		return matching.MarketPrice(), nil
	}
	v, err := spec.ParsePrice(s)
	if err != nil {
		return matching.Price{}, &matching.ValidationError{Field: "price", Reason: err.Error()}
	}
	return matching.LimitPrice(v), nil
}

func formatPrice(spec fund.Spec, p matching.Price) string {
	v, ok := p.Value()
	if !ok {
		return marketPrice
	}
	return spec.FormatPrice(v)
}

func (h *Handler) orderDTO(engineID string, o matching.Order) OrderDTO {
	spec := h.specFor(o.FundID)
	return OrderDTO{
		OrderID:           o.OrderID,
		EngineID:          engineID,
		FundID:            o.FundID,
		AccountID:         o.AccountID,
		Side:              string(o.Side),
		Price:             formatPrice(spec, o.Price),
		Quantity:          spec.FormatUnits(o.Quantity),
		RemainingQuantity: spec.FormatUnits(o.RemainingQty),
		FilledQuantity:    spec.FormatUnits(o.FilledQty()),
		Status:            string(o.Status),
		Seq:               o.Seq,
		SubmittedAt:       o.SubmittedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

func (h *Handler) orderDTOs(engineID string, orders []matching.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(orders))
	for _, o := range orders {
		out = append(out, h.orderDTO(engineID, o))
	}
	return out
}

func (h *Handler) tradeDTO(engineID string, t matching.Trade) TradeDTO {
	spec := h.specFor(t.FundID)
	return TradeDTO{
		TradeID:         t.TradeID,
		EngineID:        engineID,
		FundID:          t.FundID,
		BuyOrderID:      t.BuyOrderID,
		SellOrderID:     t.SellOrderID,
		BuyAccountID:    t.BuyAccountID,
		SellAccountID:   t.SellAccountID,
		MatchedQuantity: spec.FormatUnits(t.Quantity),
		ExecutionPrice:  spec.FormatPrice(t.Price),
		PriceSource:     string(t.PriceSource),
		MatchedAt:       t.MatchedAt,
	}
}

func (h *Handler) tradeDTOs(engineID string, trades []matching.Trade) []TradeDTO {
	out := make([]TradeDTO, 0, len(trades))
	for _, t := range trades {
		out = append(out, h.tradeDTO(engineID, t))
	}
	return out
}

// queueStatus summarises one consistent copy of an engine's orders.
// Open quantities are summed as decimals since unscoped engines may mix unit scales.
func (h *Handler) queueStatus(orders []matching.Order) QueueStatusDTO {
	st := matching.StatusOf(orders)
	buyQty, sellQty := decimal.Zero, decimal.Zero
	for i := range orders {
		o := &orders[i]
		if !o.IsOpen() {
			continue
		}
		qty := fund.ToDecimal(o.RemainingQty, h.specFor(o.FundID).UnitScale)
		if o.Side == matching.SideBuy {
			buyQty = buyQty.Add(qty)
		} else {
			sellQty = sellQty.Add(qty)
		}
	}
	return QueueStatusDTO{
		Pending:         st.Pending,
		PartiallyFilled: st.PartiallyFilled,
		Completed:       st.Completed,
		Cancelled:       st.Cancelled,
		TotalsBySide: map[string]SideTotalsDTO{
			string(matching.SideBuy):  {Orders: st.Buy.Orders, OpenQuantity: buyQty.String()},
			string(matching.SideSell): {Orders: st.Sell.Orders, OpenQuantity: sellQty.String()},
		},
	}
}

func engineSummaryDTO(s engine.Summary) EngineSummaryDTO {
	return EngineSummaryDTO{
		EngineID:       s.EngineID,
		FundID:         s.FundID,
		State:          string(s.State),
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt,
		AgeSeconds:     s.Age.Seconds(),
		TTLSeconds:     int64(s.TTL / time.Second),
		QueueSizes: QueueSizesDTO{
			Buy:   s.QueueSizes.Buy,
			Sell:  s.QueueSizes.Sell,
			Total: s.QueueSizes.Total,
		},
		TradeCount: s.TradeCount,
	}
}

func (h *Handler) bookDTO(b orderbook.Book) BookDTO {
	spec := h.specFor(b.FundID)
	levels := func(in []orderbook.Level) []LevelDTO {
		out := make([]LevelDTO, 0, len(in))
		for _, l := range in {
			out = append(out, LevelDTO{
				Price:    formatPrice(spec, l.Price),
				Orders:   l.Orders,
				Quantity: spec.FormatUnitTotal(l.OpenQty),
			})
		}
		return out
	}
	return BookDTO{FundID: b.FundID, Bids: levels(b.Bids), Asks: levels(b.Asks)}
}

func (h *Handler) fundSummaryDTO(s orderbook.FundSummary) FundSummaryDTO {
	spec := h.specFor(s.FundID)
	optional := func(ok bool, v string) *string {
		if !ok {
			return nil
		}
		return &v
	}
	avg := ""
	if s.TradedQty.IsPositive() {
		avg = s.AvgPrice.Shift(-int32(spec.PriceScale)).Round(int32(spec.PriceScale)).String()
	}
	return FundSummaryDTO{
		FundID:           s.FundID,
		Name:             spec.Name,
		BestBid:          optional(s.HasBid, formatPrice(spec, s.BestBid)),
		BestAsk:          optional(s.HasAsk, formatPrice(spec, s.BestAsk)),
		BuyOrders:        s.BuyOrders,
		SellOrders:       s.SellOrders,
		BuyOpenQuantity:  spec.FormatUnitTotal(s.BuyOpenQty),
		SellOpenQuantity: spec.FormatUnitTotal(s.SellOpenQty),
		NegotiatedOrders: s.PartiallyFilled,
		TradeCount:       s.TradeCount,
		TradedQuantity:   spec.FormatUnitTotal(s.TradedQty),
		AveragePrice:     optional(s.TradedQty.IsPositive(), avg),
		LastPrice:        optional(s.TradeCount > 0, spec.FormatPrice(s.LastPrice)),
		NAV:              optional(s.HasNAV, spec.FormatPrice(s.NAV)),
	}
}
