package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"partial-matching/internal/matching"
	"partial-matching/internal/orderbook"
)

const dateLayout = "2006-01-02"

// OrderBook handles POST /order-book
func (h *Handler) OrderBook(c *gin.Context) {
	f, ok := h.filter(c)
	if !ok {
		return
	}
	books, err := h.views.Books(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]BookDTO, 0, len(books))
	for _, b := range books {
		out = append(out, h.bookDTO(b))
	}
	writeData(c, http.StatusOK, out)
}

// FundSummaries handles POST /order-book/funds
func (h *Handler) FundSummaries(c *gin.Context) {
	f, ok := h.filter(c)
	if !ok {
		return
	}
	summaries, err := h.views.Funds(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]FundSummaryDTO, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, h.fundSummaryDTO(s))
	}
	writeData(c, http.StatusOK, out)
}

// CompletedOrders handles POST /order-book/completed
func (h *Handler) CompletedOrders(c *gin.Context) {
	f, ok := h.filter(c)
	if !ok {
		return
	}
	trades, err := h.views.Completed(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]TradeDTO, 0, len(trades))
	for _, t := range trades {
		out = append(out, h.tradeDTO(t.EngineID, t.Trade))
	}
	writeData(c, http.StatusOK, out)
}

// NegotiatedOrders handles POST /order-book/negotiated
func (h *Handler) NegotiatedOrders(c *gin.Context) {
	f, ok := h.filter(c)
	if !ok {
		return
	}
	orders, err := h.views.Negotiated(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]OrderDTO, 0, len(orders))
	for _, o := range orders {
		out = append(out, h.orderDTO(o.EngineID, o.Order))
	}
	writeData(c, http.StatusOK, out)
}

// filter binds the optional scope of an Order Book View
func (h *Handler) filter(c *gin.Context) (orderbook.Filter, bool) {
	var req OrderBookRequest
	if !h.bind(c, &req, true) {
		return orderbook.Filter{}, false
	}

	f := orderbook.Filter{EngineID: strings.TrimSpace(req.EngineID)}
	if req.FundID != "" {
		spec, err := h.catalog.Get(req.FundID)
		if err != nil {
			h.writeError(c, err)
			return orderbook.Filter{}, false
		}
		f.FundID = spec.FundID
	}

	var err error
	if f.From, err = parseBound(req.From, false); err != nil {
		h.writeError(c, &matching.ValidationError{Field: "from", Reason: err.Error()})
		return orderbook.Filter{}, false
	}
	if f.To, err = parseBound(req.To, true); err != nil {
		h.writeError(c, &matching.ValidationError{Field: "to", Reason: err.Error()})
		return orderbook.Filter{}, false
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		h.writeError(c, &matching.ValidationError{Field: "to", Reason: "must be after from"})
		return orderbook.Filter{}, false
	}
	return f, true
}

// parseBound accepts RFC 3339 or a calendar date. A date used as upper bound
// includes the whole day.
func parseBound(raw string, upper bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, errInvalidDate
	}
	if upper {
		d = d.AddDate(0, 0, 1)
	}
	return d, nil
}

var errInvalidDate = errors.New("must be RFC 3339 or YYYY-MM-DD")
