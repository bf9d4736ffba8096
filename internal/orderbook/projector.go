package orderbook

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"partial-matching/internal/fund"
	"partial-matching/internal/matching"
)

// FundLister lists the known funds, used to include funds without orders in summaries
type FundLister interface {
	List() []fund.Spec
}

// Projector builds Order Book Views from engine data. It never mutates engines.
type Projector struct {
	source Source
	funds  FundLister
}

// NewProjector creates a projector. funds may be nil.
func NewProjector(source Source, funds FundLister) *Projector {
	return &Projector{source: source, funds: funds}
}

func (p *Projector) load(ctx context.Context, f Filter) ([]EngineData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.source.EngineData(f.EngineID)
}

// Books aggregates open orders into price levels per fund, ordered by fund ID
func (p *Projector) Books(ctx context.Context, f Filter) ([]Book, error) {
	data, err := p.load(ctx, f)
	if err != nil {
		return nil, err
	}

	type sides struct{ bids, asks []matching.Order }
	byFund := make(map[string]*sides)
	for _, d := range data {
		for _, o := range d.Orders {
			if !o.IsOpen() || !f.matchesFund(o.FundID) || !f.inRange(o.SubmittedAt) {
				continue
			}
			s := byFund[o.FundID]
			if s == nil {
				s = &sides{}
				byFund[o.FundID] = s
			}
			if o.Side == matching.SideBuy {
				s.bids = append(s.bids, o)
			} else {
				s.asks = append(s.asks, o)
			}
		}
	}

	books := make([]Book, 0, len(byFund))
	for fundID, s := range byFund {
		books = append(books, Book{
			FundID: fundID,
			Bids:   levels(s.bids, matching.SideBuy),
			Asks:   levels(s.asks, matching.SideSell),
		})
	}
	sort.Slice(books, func(i, j int) bool { return books[i].FundID < books[j].FundID })
	return books, nil
}

// levels groups open orders of one side by price, best level first
func levels(orders []matching.Order, side matching.Side) []Level {
	matching.SortByPriority(orders, side)
	out := []Level{}
	for _, o := range orders {
		n := len(out)
		if n > 0 && out[n-1].Price == o.Price {
			out[n-1].Orders++
			out[n-1].OpenQty = out[n-1].OpenQty.Add(decimal.NewFromInt(o.RemainingQty))
			continue
		}
		out = append(out, Level{Price: o.Price, Orders: 1, OpenQty: decimal.NewFromInt(o.RemainingQty)})
	}
	return out
}

// Funds summarises every fund seen in engine data or listed in the catalog
func (p *Projector) Funds(ctx context.Context, f Filter) ([]FundSummary, error) {
	data, err := p.load(ctx, f)
	if err != nil {
		return nil, err
	}

	summaries := make(map[string]*FundSummary)
	get := func(fundID string) *FundSummary {
		s := summaries[fundID]
		if s == nil {
			s = &FundSummary{FundID: fundID}
			summaries[fundID] = s
		}
		return s
	}

	navs := make(map[string]int64)
	if p.funds != nil {
		for _, spec := range p.funds.List() {
			if !f.matchesFund(spec.FundID) {
				continue
			}
			get(spec.FundID)
			if spec.NAV > 0 {
				navs[spec.FundID] = spec.NAV
			}
		}
	}

	notional := make(map[string]decimal.Decimal)
	lastAt := make(map[string]int) // fund -> index in trades of the latest trade seen
	var trades []matching.Trade
	for _, d := range data {
		for _, o := range d.Orders {
			if !f.matchesFund(o.FundID) || !f.inRange(o.SubmittedAt) {
				continue
			}
			s := get(o.FundID)
			if o.Status == matching.OrderStatusPartiallyFilled {
				s.PartiallyFilled++
			}
			if !o.IsOpen() {
				continue
			}
			if o.Side == matching.SideBuy {
				s.BuyOrders++
				s.BuyOpenQty = s.BuyOpenQty.Add(decimal.NewFromInt(o.RemainingQty))
				if !s.HasBid || betterPrice(o.Price, s.BestBid, matching.SideBuy) {
					s.BestBid, s.HasBid = o.Price, true
				}
			} else {
				s.SellOrders++
				s.SellOpenQty = s.SellOpenQty.Add(decimal.NewFromInt(o.RemainingQty))
				if !s.HasAsk || betterPrice(o.Price, s.BestAsk, matching.SideSell) {
					s.BestAsk, s.HasAsk = o.Price, true
				}
			}
		}
		for _, t := range d.Trades {
			if !f.matchesFund(t.FundID) || !f.inRange(t.MatchedAt) {
				continue
			}
			s := get(t.FundID)
			s.TradeCount++
			s.TradedQty = s.TradedQty.Add(decimal.NewFromInt(t.Quantity))
			notional[t.FundID] = notional[t.FundID].Add(decimal.NewFromInt(t.Price).Mul(decimal.NewFromInt(t.Quantity)))

			trades = append(trades, t)
			if idx, ok := lastAt[t.FundID]; !ok || !t.MatchedAt.Before(trades[idx].MatchedAt) {
				lastAt[t.FundID] = len(trades) - 1
			}
		}
	}

	out := make([]FundSummary, 0, len(summaries))
	for fundID, s := range summaries {
		if s.TradedQty.IsPositive() {
			s.AvgPrice = notional[fundID].Div(s.TradedQty)
		}
		if idx, ok := lastAt[fundID]; ok {
			s.LastPrice = trades[idx].Price
		}
		if nav, ok := navs[fundID]; ok {
			s.NAV, s.HasNAV = nav, true
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FundID < out[j].FundID })
	return out, nil
}

// betterPrice reports whether a ranks ahead of b on side
func betterPrice(a, b matching.Price, side matching.Side) bool {
	if a.IsMarket() || b.IsMarket() {
		return a.IsMarket() && !b.IsMarket()
	}
	av, _ := a.Value()
	bv, _ := b.Value()
	if side == matching.SideBuy {
		return av > bv
	}
	return av < bv
}

// Completed lists trades ordered by matched_at, then trade ID
func (p *Projector) Completed(ctx context.Context, f Filter) ([]TradeView, error) {
	data, err := p.load(ctx, f)
	if err != nil {
		return nil, err
	}

	out := []TradeView{}
	for _, d := range data {
		for _, t := range d.Trades {
			if f.matchesFund(t.FundID) && f.inRange(t.MatchedAt) {
				out = append(out, TradeView{EngineID: d.EngineID, Trade: t})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].MatchedAt.Equal(out[j].MatchedAt) {
			return out[i].MatchedAt.Before(out[j].MatchedAt)
		}
		if out[i].EngineID != out[j].EngineID {
			return out[i].EngineID < out[j].EngineID
		}
		return out[i].TradeID < out[j].TradeID
	})
	return out, nil
}

// Negotiated lists orders left PARTIALLY_FILLED by a pass, ordered by submission
func (p *Projector) Negotiated(ctx context.Context, f Filter) ([]OrderView, error) {
	data, err := p.load(ctx, f)
	if err != nil {
		return nil, err
	}

	out := []OrderView{}
	for _, d := range data {
		for _, o := range d.Orders {
			if o.Status != matching.OrderStatusPartiallyFilled {
				continue
			}
			if f.matchesFund(o.FundID) && f.inRange(o.SubmittedAt) {
				out = append(out, OrderView{EngineID: d.EngineID, Order: o})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		if out[i].EngineID != out[j].EngineID {
			return out[i].EngineID < out[j].EngineID
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}
